package remote

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/types"
)

// Response is a scripted reply of a FakeConnector
type Response struct {
	ExitCode int
	Output   string
	Err      error
}

// FakeConnector is an in-memory Connector for tests. Commands are recorded
// per host and answered from scripted responses matched by substring.
type FakeConnector struct {
	mu        sync.Mutex
	commands  map[string][]string
	files     map[string]map[string][]byte
	responses map[string]Response
	connectFn func(*types.Instance) error
}

// NewFakeConnector creates an empty FakeConnector
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		commands:  make(map[string][]string),
		files:     make(map[string]map[string][]byte),
		responses: make(map[string]Response),
	}
}

// Respond scripts the reply to every command containing fragment
func (f *FakeConnector) Respond(fragment string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[fragment] = resp
}

// FailConnect makes Connect fail for instances matched by fn
func (f *FakeConnector) FailConnect(fn func(*types.Instance) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectFn = fn
}

// SetFile seeds a file on host
func (f *FakeConnector) SetFile(host, path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files[host] == nil {
		f.files[host] = make(map[string][]byte)
	}
	f.files[host][path] = append([]byte(nil), data...)
}

// File returns the content of a file written on host
func (f *FakeConnector) File(host, path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[host][path]
	return data, ok
}

// Commands returns the commands executed on host, in order
func (f *FakeConnector) Commands(host string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands[host]...)
}

// AllCommands returns every executed command prefixed by its host
func (f *FakeConnector) AllCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []string
	hosts := make([]string, 0, len(f.commands))
	for h := range f.commands {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		for _, c := range f.commands[h] {
			all = append(all, h+": "+c)
		}
	}
	return all
}

// Connect implements Connector
func (f *FakeConnector) Connect(ctx context.Context, cluster *types.Cluster, instance *types.Instance) (Remote, error) {
	f.mu.Lock()
	fn := f.connectFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(instance); err != nil {
			return nil, err
		}
	}
	host := instance.ManagementIP
	if host == "" {
		host = instance.InternalIP
	}
	return &fakeRemote{host: host, parent: f}, nil
}

type fakeRemote struct {
	host   string
	parent *FakeConnector
}

func (r *fakeRemote) Host() string { return r.host }

func (r *fakeRemote) Close() error { return nil }

func (r *fakeRemote) record(cmd string) Response {
	f := r.parent
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands[r.host] = append(f.commands[r.host], cmd)

	var matched string
	for fragment := range f.responses {
		if strings.Contains(cmd, fragment) && len(fragment) > len(matched) {
			matched = fragment
		}
	}
	if matched == "" {
		return Response{}
	}
	return f.responses[matched]
}

func (r *fakeRemote) ExecuteCommand(ctx context.Context, cmd string, opts ...Option) (int, string, error) {
	if err := ctx.Err(); err != nil {
		return -1, "", err
	}
	o := ResolveOptions(opts...)
	resp := r.record(cmd)
	if resp.Err != nil {
		return -1, "", resp.Err
	}
	if resp.ExitCode != 0 && o.RaiseWhenError {
		return resp.ExitCode, resp.Output, errors.RemoteCommandFailed(r.host, cmd, resp.ExitCode, resp.Output)
	}
	return resp.ExitCode, resp.Output, nil
}

func (r *fakeRemote) WriteFile(ctx context.Context, path string, data []byte, opts ...Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp := r.record("write " + path)
	if resp.Err != nil {
		return resp.Err
	}
	r.parent.SetFile(r.host, path, data)
	return nil
}

func (r *fakeRemote) ReadFile(ctx context.Context, path string, opts ...Option) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp := r.record("read " + path)
	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.ExitCode != 0 {
		return nil, errors.RemoteCommandFailed(r.host, "cat "+path, resp.ExitCode, resp.Output)
	}
	data, ok := r.parent.File(r.host, path)
	if !ok {
		return nil, errors.NotFound("file", path).WithDetail("host", r.host)
	}
	return data, nil
}
