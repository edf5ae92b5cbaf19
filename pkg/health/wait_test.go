package health

import (
	"context"
	stderrors "errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/domain"
	"github.com/cuemby/sahara/pkg/remote"
	"github.com/cuemby/sahara/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChecker struct {
	results []bool
	calls   int32
}

func (s *scriptedChecker) Check(ctx context.Context) Result {
	i := int(atomic.AddInt32(&s.calls, 1)) - 1
	healthy := s.results[len(s.results)-1]
	if i < len(s.results) {
		healthy = s.results[i]
	}
	return Result{Healthy: healthy, Message: "scripted", CheckedAt: time.Now()}
}

func (s *scriptedChecker) Type() CheckType { return CheckTypeRemote }

func TestWaitFor(t *testing.T) {
	tests := []struct {
		name      string
		results   []bool
		successes int
		wantErr   bool
		wantCalls int32
	}{
		{name: "healthy at once", results: []bool{true}, successes: 1, wantCalls: 1},
		{name: "healthy after failures", results: []bool{false, false, true}, successes: 1, wantCalls: 3},
		{name: "needs consecutive successes", results: []bool{true, false, true, true}, successes: 2, wantCalls: 4},
		{name: "never healthy", results: []bool{false}, successes: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &scriptedChecker{results: tt.results}
			status, err := WaitFor(context.Background(), checker, Config{
				Interval:  time.Millisecond,
				Timeout:   100 * time.Millisecond,
				Successes: tt.successes,
			})
			if tt.wantErr {
				assert.True(t, stderrors.Is(err, errors.ErrTimeout), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&checker.calls))
			assert.True(t, status.LastResult.Healthy)
		})
	}
}

func TestWaitForParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitFor(ctx, &scriptedChecker{results: []bool{false}}, Config{Interval: time.Millisecond, Timeout: time.Second})
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestTCPChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	checkers := ProcessPortCheckers("127.0.0.1", domain.NodeProcess{Name: "cldb", UIName: "CLDB", OpenPorts: []int{port}})
	require.Len(t, checkers, 1)
	result := checkers[0].Check(context.Background())
	assert.True(t, result.Healthy)
	assert.Contains(t, result.Message, "CLDB on 127.0.0.1:")
	assert.Equal(t, CheckTypeTCP, checkers[0].Type())

	ln.Close()
	result = checkers[0].Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "not reachable")
}

func TestRemoteChecker(t *testing.T) {
	ctx := context.Background()
	fake := remote.NewFakeConnector()
	r, err := fake.Connect(ctx, &types.Cluster{}, &types.Instance{ManagementIP: "10.0.0.1"})
	require.NoError(t, err)

	fake.Respond("maprcli node cldbmaster", remote.Response{ExitCode: 1, Output: "CLDB not ready"})
	checker := NewRemoteChecker(r, "maprcli node cldbmaster")
	result := checker.Check(ctx)
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "CLDB not ready")

	fake.Respond("maprcli node cldbmaster", remote.Response{ExitCode: 0, Output: "ServerID: 1"})
	assert.True(t, checker.Check(ctx).Healthy)

	fake.Respond("maprcli node list", remote.Response{Output: "10.0.0.9\n"})
	heartbeat := NewRemoteChecker(r, "maprcli node list -filter '[ip==10.0.0.9]'").WhenOutputEmpty()
	assert.False(t, heartbeat.Check(ctx).Healthy)

	fake.Respond("maprcli node list", remote.Response{Output: ""})
	assert.True(t, heartbeat.Check(ctx).Healthy)
}
