package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/sahara/pkg/remote"
)

// RemoteChecker runs a command on an instance and judges its outcome
type RemoteChecker struct {
	Remote  remote.Remote
	Command string
	Timeout time.Duration
	// Healthy decides the outcome. The default requires exit code 0.
	Healthy func(exitCode int, output string) bool
}

// NewRemoteChecker creates a checker that is healthy when cmd exits 0
func NewRemoteChecker(r remote.Remote, cmd string) *RemoteChecker {
	return &RemoteChecker{
		Remote:  r,
		Command: cmd,
		Timeout: 30 * time.Second,
	}
}

// WhenOutputEmpty makes the check healthy only when cmd prints nothing
func (c *RemoteChecker) WhenOutputEmpty() *RemoteChecker {
	c.Healthy = func(code int, output string) bool {
		return code == 0 && strings.TrimSpace(output) == ""
	}
	return c
}

// Check runs the command once
func (c *RemoteChecker) Check(ctx context.Context) Result {
	start := time.Now()

	code, output, err := c.Remote.ExecuteCommand(ctx, c.Command,
		remote.IgnoreExitCode(), remote.WithTimeout(c.Timeout))
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("command on %s failed: %v", c.Remote.Host(), err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	judge := c.Healthy
	if judge == nil {
		judge = func(code int, _ string) bool { return code == 0 }
	}
	healthy := judge(code, output)

	message := fmt.Sprintf("Command: %s, Exit code: %d", c.Command, code)
	if out := strings.TrimSpace(output); out != "" {
		message = fmt.Sprintf("%s, Output: %s", message, out)
	}
	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (c *RemoteChecker) Type() CheckType {
	return CheckTypeRemote
}
