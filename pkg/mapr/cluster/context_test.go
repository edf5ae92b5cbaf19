package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/domain"
	"github.com/cuemby/sahara/pkg/types"
)

var (
	cldb       = domain.NodeProcess{UIName: "CLDB", Package: "mapr-cldb"}
	fileServer = domain.NodeProcess{UIName: "FileServer", Package: "mapr-fileserver"}
	zookeeper  = domain.NodeProcess{UIName: "ZooKeeper", Package: "mapr-zookeeper"}
	nodeMgr    = domain.NodeProcess{UIName: "NodeManager", Package: "mapr-nodemanager"}
	metastore  = domain.NodeProcess{UIName: "HiveMetastore", Package: "mapr-hivemetastore"}
)

func testRegistry(t *testing.T) *domain.Registry {
	services := []*domain.Service{
		{UIName: "MapRFS", Processes: []domain.NodeProcess{cldb, fileServer},
			WebUIs: []domain.WebUI{{Label: "CLDB", Process: "CLDB", Scheme: "http", Port: 7221}}},
		{UIName: "Management", Processes: []domain.NodeProcess{zookeeper}},
		{UIName: "YARN", Version: "2.7.0", Processes: []domain.NodeProcess{nodeMgr}},
		{UIName: "Hive", Version: "1.2", Processes: []domain.NodeProcess{metastore}},
		{UIName: "Hive", Version: "1.3", Processes: []domain.NodeProcess{metastore}},
		{UIName: SwiftService},
	}
	general := []domain.ConfigOption{{Name: "Enable MapR-DB", Target: "general", Default: true}}
	r, err := domain.NewRegistry("test", services, nil, general)
	require.NoError(t, err)
	return r
}

func testCluster() *types.Cluster {
	return &types.Cluster{
		ID: "c1",
		NodeGroups: []*types.NodeGroup{
			{ID: "ng-master", Name: "master", Count: 1, NodeProcesses: []string{"CLDB", "FileServer", "ZooKeeper"},
				NodeConfigs: types.Configs{"general": {"rack": "/rack-a"}},
				Instances: []*types.Instance{
					{ID: "m1", NodeGroupID: "ng-master", InstanceName: "master-1", InternalIP: "10.0.0.1"},
				}},
			{ID: "ng-worker", Name: "worker", Count: 2, NodeProcesses: []string{"FileServer", "NodeManager"},
				Instances: []*types.Instance{
					{ID: "w1", NodeGroupID: "ng-worker", InstanceName: "worker-1", InternalIP: "10.0.0.2"},
					{ID: "w2", NodeGroupID: "ng-worker", InstanceName: "worker-2", InternalIP: "10.0.0.3"},
				}},
		},
	}
}

func serviceNames(services []*domain.Service) []string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.String())
	}
	return names
}

func TestNewResolvesServices(t *testing.T) {
	ctx, err := New(testCluster(), testRegistry(t), nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"MapRFS", "Management", "YARN 2.7.0", "Swift"}, serviceNames(ctx.ClusterServices()))
	assert.True(t, ctx.HasService(domain.ServiceKey{UIName: "YARN", Version: "2.7.0"}))
	assert.True(t, ctx.HasService(domain.ServiceKey{UIName: "YARN"}))
	assert.False(t, ctx.HasService(domain.ServiceKey{UIName: "YARN", Version: "2.5.1"}))
	assert.False(t, ctx.HasService(domain.ServiceKey{UIName: "Hive"}))
}

func TestNewUnknownProcess(t *testing.T) {
	c := testCluster()
	c.NodeGroups[1].NodeProcesses = append(c.NodeGroups[1].NodeProcesses, "Nimbus")

	_, err := New(c, testRegistry(t), nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidData, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "Service not found in services list")
}

func TestTopologyQueries(t *testing.T) {
	ctx, err := New(testCluster(), testRegistry(t), nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, ctx.InstancesCount("FileServer"))
	assert.Equal(t, 1, ctx.InstancesCount("CLDB"))
	assert.Equal(t, 0, ctx.InstancesCount("ResourceManager"))
	assert.Equal(t, []string{"master-1"}, ctx.CLDBHosts())
	assert.Equal(t, []string{"master-1"}, ctx.ZooKeeperHosts())
	assert.Equal(t, "master-1:5181", ctx.ConnectString("ZooKeeper", 5181))
	assert.Equal(t, "", ctx.HistoryServerHost())

	master := ctx.AllInstances()[0]
	worker := ctx.AllInstances()[1]
	assert.True(t, ctx.IsControlNode(master))
	assert.False(t, ctx.IsControlNode(worker))
	assert.Equal(t, []string{"MapRFS", "YARN 2.7.0", "Swift"}, serviceNames(ctx.InstanceServices(worker)))

	assert.Equal(t, "10.0.0.1 /rack-a\n10.0.0.2 /default-rack\n10.0.0.3 /default-rack\n",
		ctx.TopologyData(ctx.AllInstances()))

	assert.Equal(t, map[string]map[string]string{
		"MapRFS": {"CLDB": "http://master-1:7221"},
	}, ctx.WebUIInfo())

	v, ok := ctx.ConfigValue("general", "Enable MapR-DB")
	assert.True(t, ok)
	assert.Equal(t, true, v)
	assert.Equal(t, "true", ctx.ConfigString("general", "Enable MapR-DB"))
	assert.Equal(t, "", ctx.ConfigString("general", "missing"))
}

func TestMembershipPartitions(t *testing.T) {
	c := testCluster()
	added := []*types.Instance{c.NodeGroups[1].Instances[1]}
	removed := []*types.Instance{c.NodeGroups[1].Instances[0]}

	ctx, err := New(c, testRegistry(t), nil, added, removed)
	require.NoError(t, err)

	ids := func(instances []*types.Instance) []string {
		out := make([]string, 0, len(instances))
		for _, i := range instances {
			out = append(out, i.ID)
		}
		return out
	}

	assert.Equal(t, []string{"w2"}, ids(ctx.AddedInstances()))
	assert.Equal(t, []string{"w1"}, ids(ctx.RemovedInstances()))
	assert.Equal(t, []string{"m1"}, ids(ctx.ExistingInstances()))
	assert.Equal(t, []string{"m1", "w2"}, ids(ctx.RemainingInstances()))
	assert.Equal(t, []string{"worker-2"}, ctx.ProcessHosts("NodeManager"))
	assert.False(t, ctx.HasControlNodes(ctx.AddedInstances()))
	assert.True(t, ctx.HasControlNodes(ctx.AllInstances()))
}

func TestWithMembershipRebuildsServices(t *testing.T) {
	c := testCluster()
	ctx, err := New(c, testRegistry(t), nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, ctx.HasService(domain.ServiceKey{UIName: "Hive"}))

	scaled := *c
	scaled.NodeGroups = append(append([]*types.NodeGroup(nil), c.NodeGroups...), &types.NodeGroup{
		ID: "ng-hive", Name: "hive", Count: 1, NodeProcesses: []string{"FileServer", "HiveMetastore"},
		Instances: []*types.Instance{{ID: "h1", NodeGroupID: "ng-hive", InstanceName: "hive-1"}},
	})

	next, err := ctx.WithMembership(&scaled, scaled.NodeGroups[2].Instances, nil)
	require.NoError(t, err)

	hive, ok := next.Service("Hive")
	require.True(t, ok)
	assert.Equal(t, "1.3", hive.Version)
	assert.Len(t, next.AddedInstances(), 1)

	assert.False(t, ctx.HasService(domain.ServiceKey{UIName: "Hive"}))
}
