package storage

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestClusterCRUD(t *testing.T) {
	store := newTestStore(t)

	cluster := &types.Cluster{
		ID:         "cluster-1",
		Name:       "analytics",
		PluginName: "mapr",
		Status:     types.ClusterStatusActive,
		NodeGroups: []*types.NodeGroup{
			{ID: "ng-1", Name: "master", Count: 1, NodeProcesses: []string{"CLDB"}},
		},
	}
	require.NoError(t, store.CreateCluster(cluster))

	got, err := store.GetCluster("cluster-1")
	require.NoError(t, err)
	assert.Equal(t, "analytics", got.Name)
	require.Len(t, got.NodeGroups, 1)
	assert.Equal(t, []string{"CLDB"}, got.NodeGroups[0].NodeProcesses)

	got.Status = types.ClusterStatusError
	require.NoError(t, store.UpdateCluster(got))

	clusters, err := store.ListClusters()
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, types.ClusterStatusError, clusters[0].Status)

	require.NoError(t, store.DeleteCluster("cluster-1"))
	_, err = store.GetCluster("cluster-1")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name string
		get  func() error
		kind string
	}{
		{
			name: "cluster template",
			get:  func() error { _, err := store.GetClusterTemplate("x"); return err },
			kind: "Cluster template",
		},
		{
			name: "node group template",
			get:  func() error { _, err := store.GetNodeGroupTemplate("x"); return err },
			kind: "Node group template",
		},
		{
			name: "image",
			get:  func() error { _, err := store.GetImage("x"); return err },
			kind: "Image",
		},
		{
			name: "flavor",
			get:  func() error { _, err := store.GetFlavor("x"); return err },
			kind: "Flavor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.get()
			require.Error(t, err)
			assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
			kind, _ := errors.DetailOf(err, "kind")
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestListProvisionStepsOrdered(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.CreateProvisionStep(&types.ProvisionStep{ID: "b", ClusterID: "c1", StepName: "second", CreatedAt: now.Add(time.Second)}))
	require.NoError(t, store.CreateProvisionStep(&types.ProvisionStep{ID: "a", ClusterID: "c1", StepName: "first", CreatedAt: now}))
	require.NoError(t, store.CreateProvisionStep(&types.ProvisionStep{ID: "c", ClusterID: "c2", StepName: "other", CreatedAt: now}))

	steps, err := store.ListProvisionSteps("c1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "first", steps[0].StepName)
	assert.Equal(t, "second", steps[1].StepName)
}

func TestDumpAndLoad(t *testing.T) {
	src := newTestStore(t)
	require.NoError(t, src.PutImage(&types.Image{ID: "img-1", Tags: []string{"centos"}}))
	require.NoError(t, src.PutFlavor(&types.Flavor{ID: "m1.large", Ephemeral: 10}))

	dump, err := src.Dump()
	require.NoError(t, err)

	dst := newTestStore(t)
	require.NoError(t, dst.PutImage(&types.Image{ID: "stale"}))
	require.NoError(t, dst.Load(dump))

	images, err := dst.ListImages()
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.True(t, images[0].HasTag("centos"))

	flavor, err := dst.GetFlavor("m1.large")
	require.NoError(t, err)
	assert.Equal(t, 10, flavor.Ephemeral)
}

func TestPutRawUnknownBucket(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.PutRaw("nope", "k", []byte("v")))
}

func TestSecondOpenTimesOut(t *testing.T) {
	defer func(d time.Duration) { lockTimeout = d }(lockTimeout)
	lockTimeout = 100 * time.Millisecond

	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = NewBoltStore(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
