package manager

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&Config{NodeID: "node-1", BindAddr: "127.0.0.1:0", DataDir: t.TempDir()})
	require.NoError(t, err)

	_, transport := raft.NewInmemTransport("")
	err = m.start(transport, raft.NewInmemStore(), raft.NewInmemStore(), raft.NewInmemSnapshotStore(), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	require.Eventually(t, m.IsLeader, 5*time.Second, 20*time.Millisecond)
	return m
}

func TestManagerReplicatesWrites(t *testing.T) {
	m := newTestManager(t)

	cluster := &types.Cluster{ID: "c1", Name: "demo", Status: types.ClusterStatusActive}
	require.NoError(t, m.CreateCluster(cluster))

	got, err := m.GetCluster("c1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)

	cluster.Status = types.ClusterStatusScaling
	require.NoError(t, m.UpdateCluster(cluster))
	got, err = m.GetCluster("c1")
	require.NoError(t, err)
	assert.Equal(t, types.ClusterStatusScaling, got.Status)

	require.NoError(t, m.DeleteCluster("c1"))
	_, err = m.GetCluster("c1")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	stats := m.Stats()
	assert.Greater(t, stats["applied_index"], uint64(0))
	assert.GreaterOrEqual(t, stats["last_log_index"], stats["applied_index"])
}

func TestManagerTemplatesAndImages(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.CreateNodeGroupTemplate(&types.NodeGroupTemplate{ID: "ngt-1", Name: "worker"}))
	require.NoError(t, m.CreateClusterTemplate(&types.ClusterTemplate{ID: "ct-1", Name: "small"}))
	require.NoError(t, m.PutImage(&types.Image{ID: "img-1", Tags: []string{"centos"}}))
	require.NoError(t, m.PutFlavor(&types.Flavor{ID: "m1.large", Ephemeral: 20}))

	ngts, err := m.ListNodeGroupTemplates()
	require.NoError(t, err)
	assert.Len(t, ngts, 1)

	img, err := m.GetImage("img-1")
	require.NoError(t, err)
	assert.True(t, img.HasTag("centos"))

	require.NoError(t, m.DeleteClusterTemplate("ct-1"))
	cts, err := m.ListClusterTemplates()
	require.NoError(t, err)
	assert.Empty(t, cts)
}

func TestManagerNotStarted(t *testing.T) {
	m, err := NewManager(&Config{NodeID: "node-1", DataDir: t.TempDir()})
	require.NoError(t, err)
	defer m.Shutdown()

	assert.False(t, m.IsLeader())
	assert.Nil(t, m.Stats())
	assert.Error(t, m.CreateCluster(&types.Cluster{ID: "c1"}))
}

func applyCommand(t *testing.T, fsm *SaharaFSM, cmd Command) interface{} {
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	return fsm.Apply(&raft.Log{Data: data})
}

type bufferSink struct {
	bytes.Buffer
	cancelled bool
}

func (s *bufferSink) ID() string    { return "test" }
func (s *bufferSink) Close() error  { return nil }
func (s *bufferSink) Cancel() error { s.cancelled = true; return nil }

func TestFSMSnapshotRestore(t *testing.T) {
	source, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer source.Close()
	fsm := NewSaharaFSM(source)

	assert.Nil(t, applyCommand(t, fsm, Command{Op: OpPut, Bucket: storage.BucketClusters, Key: "c1",
		Data: json.RawMessage(`{"id":"c1","name":"demo"}`)}))
	assert.Nil(t, applyCommand(t, fsm, Command{Op: OpPut, Bucket: storage.BucketImages, Key: "img-1",
		Data: json.RawMessage(`{"id":"img-1","tags":["ubuntu"]}`)}))

	snapshot, err := fsm.Snapshot()
	require.NoError(t, err)
	sink := &bufferSink{}
	require.NoError(t, snapshot.Persist(sink))
	assert.False(t, sink.cancelled)

	target, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer target.Close()
	require.NoError(t, target.CreateCluster(&types.Cluster{ID: "stale"}))

	restored := NewSaharaFSM(target)
	require.NoError(t, restored.Restore(io.NopCloser(&sink.Buffer)))

	clusters, err := target.ListClusters()
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "demo", clusters[0].Name)

	img, err := target.GetImage("img-1")
	require.NoError(t, err)
	assert.True(t, img.HasTag("ubuntu"))
}

func TestFSMRejectsUnknownCommands(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	fsm := NewSaharaFSM(store)

	tests := []struct {
		name string
		cmd  Command
	}{
		{name: "unknown op", cmd: Command{Op: "truncate", Bucket: storage.BucketClusters}},
		{name: "unknown bucket", cmd: Command{Op: OpPut, Bucket: "nodes", Key: "n1", Data: json.RawMessage(`{}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := applyCommand(t, fsm, tt.cmd)
			_, isErr := resp.(error)
			assert.True(t, isErr)
		})
	}

	assert.NotNil(t, fsm.Apply(&raft.Log{Data: []byte("not json")}))
}
