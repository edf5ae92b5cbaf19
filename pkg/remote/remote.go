// Package remote runs commands and transfers files on cluster instances.
package remote

import (
	"context"
	"strings"
	"time"

	"github.com/cuemby/sahara/pkg/types"
)

// Remote is an open command channel to one instance
type Remote interface {
	// Host returns the address the remote is connected to
	Host() string
	// ExecuteCommand runs cmd and returns its exit code and combined
	// output. A non-zero exit is an error unless IgnoreExitCode is set.
	ExecuteCommand(ctx context.Context, cmd string, opts ...Option) (int, string, error)
	// WriteFile replaces the file at path with data
	WriteFile(ctx context.Context, path string, data []byte, opts ...Option) error
	// ReadFile returns the content of the file at path. A missing file is
	// reported with errors.CodeNotFound; any other failure keeps its own code.
	ReadFile(ctx context.Context, path string, opts ...Option) ([]byte, error)
	Close() error
}

// Connector opens remotes to cluster instances
type Connector interface {
	Connect(ctx context.Context, cluster *types.Cluster, instance *types.Instance) (Remote, error)
}

// Option adjusts a single remote operation
type Option func(*Options)

// Options is the resolved form of a set of Option values
type Options struct {
	RunAsRoot      bool
	Timeout        time.Duration
	RaiseWhenError bool
}

// RunAsRoot runs the operation through sudo
func RunAsRoot() Option {
	return func(o *Options) { o.RunAsRoot = true }
}

// WithTimeout bounds the operation
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// IgnoreExitCode returns non-zero exits to the caller instead of failing
func IgnoreExitCode() Option {
	return func(o *Options) { o.RaiseWhenError = false }
}

// ResolveOptions applies opts over the defaults
func ResolveOptions(opts ...Option) Options {
	o := Options{RaiseWhenError: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Quote returns s quoted for a POSIX shell
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// WrapCommand returns the shell command line that runs cmd with opts
func WrapCommand(cmd string, o Options) string {
	if o.RunAsRoot {
		return "sudo bash -c " + Quote(cmd)
	}
	return cmd
}
