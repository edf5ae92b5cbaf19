package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sahara/pkg/config"
	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/cluster"
	"github.com/cuemby/sahara/pkg/mapr/services"
	"github.com/cuemby/sahara/pkg/remote"
	"github.com/cuemby/sahara/pkg/types"
)

type stepRecord struct {
	name      string
	total     int
	succeeded int
	failed    int
}

type fakeRecorder struct {
	mu    sync.Mutex
	steps []*stepRecord
	info  map[string]map[string]string
}

func (r *fakeRecorder) ProvisionStepAdd(ctx context.Context, clusterID, name string, total int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, &stepRecord{name: name, total: total})
	return fmt.Sprintf("%d", len(r.steps)-1), nil
}

func (r *fakeRecorder) ProvisionEventAdd(ctx context.Context, stepID string, instance *types.Instance, successful bool, info string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var i int
	fmt.Sscanf(stepID, "%d", &i)
	if successful {
		r.steps[i].succeeded++
	} else {
		r.steps[i].failed++
	}
	return nil
}

func (r *fakeRecorder) ClusterSetInfo(ctx context.Context, rc *types.RequestContext, id string, info map[string]map[string]string) (*types.Cluster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = info
	return &types.Cluster{ID: id, Info: info}, nil
}

func (r *fakeRecorder) stepNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.steps))
	for _, s := range r.steps {
		out = append(out, s.name)
	}
	return out
}

func (r *fakeRecorder) step(name string) *stepRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.steps {
		if s.name == name {
			return s
		}
	}
	return nil
}

const (
	masterHost  = "172.16.0.1"
	worker1Host = "172.16.0.2"
	worker2Host = "172.16.0.3"
)

func master(id, name, ip string) *types.Instance {
	return &types.Instance{ID: id, NodeGroupID: "ng-master", InstanceName: name, ManagementIP: ip, InternalIP: "10" + ip[3:]}
}

func worker(id, name, ip string) *types.Instance {
	return &types.Instance{ID: id, NodeGroupID: "ng-worker", InstanceName: name, ManagementIP: ip, InternalIP: "10" + ip[3:]}
}

func testCluster() *types.Cluster {
	return &types.Cluster{
		ID:                   "c1",
		Name:                 "demo",
		HadoopVersion:        "5.2.0.mrv2",
		ManagementPrivateKey: "private-key",
		NodeGroups: []*types.NodeGroup{
			{
				ID: "ng-master", Name: "master", Count: 1,
				NodeProcesses: []string{"CLDB", "FileServer", "ZooKeeper", "Webserver", "ResourceManager", "HistoryServer"},
				Instances:     []*types.Instance{master("m1", "master-1", masterHost)},
			},
			{
				ID: "ng-worker", Name: "worker", Count: 2, VolumesPerNode: 2,
				NodeProcesses: []string{"FileServer", "NodeManager"},
				Instances: []*types.Instance{
					worker("w1", "worker-1", worker1Host),
					worker("w2", "worker-2", worker2Host),
				},
			},
		},
	}
}

func newContext(t *testing.T, c *types.Cluster, added, removed []*types.Instance) *cluster.Context {
	registry, err := services.Registry(c.HadoopVersion)
	require.NoError(t, err)
	cc, err := cluster.New(c, registry, nil, added, removed)
	require.NoError(t, err)
	return cc
}

func newOrchestrator(recorder Recorder, connector remote.Connector) *Orchestrator {
	cfg := config.ProvisioningConfig{
		FanOut:           4,
		InstallTimeout:   time.Second,
		DiskSetupTimeout: time.Second,
		CommandTimeout:   time.Second,
		HeartbeatTimeout: 50 * time.Millisecond,
	}
	return New(recorder, connector, cfg, WithPollInterval(time.Millisecond))
}

func contains(commands []string, fragment string) bool {
	for _, c := range commands {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}

func count(commands []string, fragment string) int {
	n := 0
	for _, c := range commands {
		if strings.Contains(c, fragment) {
			n++
		}
	}
	return n
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestConfigure(t *testing.T) {
	recorder := &fakeRecorder{}
	fake := remote.NewFakeConnector()
	o := newOrchestrator(recorder, fake)
	cc := newContext(t, testCluster(), nil, nil)

	require.NoError(t, o.Configure(context.Background(), cc, nil))

	steps := recorder.stepNames()
	sequence := []string{
		StepConfigureSSH,
		StepInstallRepo,
		"install_services: MapRFS",
		"install_services: YARN 2.7.0",
		"install_services: Management",
		StepConfigureTopology,
		StepConfigureServices,
		StepConfigureSHCluster,
		StepSetClusterMode,
		StepWriteConfigFiles,
		StepConfigureEnvironment,
	}
	last := -1
	for _, name := range sequence {
		i := indexOf(steps, name)
		require.GreaterOrEqual(t, i, 0, "step %s not recorded", name)
		assert.Greater(t, i, last, "step %s out of order", name)
		last = i
	}
	assert.Equal(t, -1, indexOf(steps, StepConfigureDatabase), "no service needs a database")

	ssh := recorder.step(StepConfigureSSH)
	assert.Equal(t, 3, ssh.total)
	assert.Equal(t, 3, ssh.succeeded)

	key, ok := fake.File(worker1Host, privateKeyPath)
	require.True(t, ok)
	assert.Equal(t, "private-key", string(key))

	masterCmds := fake.Commands(masterHost)
	assert.True(t, contains(masterCmds, "yum install -y mapr-cldb mapr-fileserver"))
	assert.True(t, contains(masterCmds,
		"/opt/mapr/server/configure.sh -N demo -C master-1 -Z master-1 -RM master-1 -HS master-1 -no-autostart -f"))
	assert.True(t, contains(masterCmds, "maprcli cluster mapreduce set -mode yarn"))
	assert.False(t, contains(fake.Commands(worker1Host), "maprcli cluster mapreduce"))

	disks, ok := fake.File(worker1Host, diskListPath)
	require.True(t, ok)
	assert.Equal(t, "/dev/vdb\n/dev/vdc\n", string(disks))
	assert.True(t, contains(fake.Commands(worker1Host), "/opt/mapr/server/disksetup -F /tmp/disk.list"))

	topology, ok := fake.File(worker2Host, topologyDataPath)
	require.True(t, ok)
	assert.Equal(t, "10.16.0.1 /default-rack\n10.16.0.2 /default-rack\n10.16.0.3 /default-rack\n", string(topology))

	yarnSite, ok := fake.File(worker1Host, "/opt/mapr/hadoop/hadoop-2.7.0/etc/hadoop/yarn-site.xml")
	require.True(t, ok)
	assert.Contains(t, string(yarnSite), "<name>yarn.resourcemanager.hostname</name>")
	assert.Contains(t, string(yarnSite), "<value>master-1</value>")

	require.NotNil(t, recorder.info)
	assert.Equal(t, "https://master-1:8443", recorder.info[services.ManagementService]["Web Console"])
}

func TestConfigureUbuntuRepo(t *testing.T) {
	fake := remote.NewFakeConnector()
	fake.Respond("cat /etc/os-release", remote.Response{Output: "NAME=\"Ubuntu\"\nID=ubuntu\n"})
	o := newOrchestrator(&fakeRecorder{}, fake)
	cc := newContext(t, testCluster(), nil, nil)

	require.NoError(t, o.Configure(context.Background(), cc, nil))

	list, ok := fake.File(masterHost, "/etc/apt/sources.list.d/maprtech.list")
	require.True(t, ok)
	assert.Contains(t, string(list), "http://package.mapr.com/releases/v5.2.0/ubuntu")
	assert.True(t, contains(fake.Commands(masterHost), "apt-get install -y --force-yes mapr-cldb"))
	_, ok = fake.File(masterHost, "/etc/yum.repos.d/maprtech.repo")
	assert.False(t, ok)
}

func TestConfigureFailsFast(t *testing.T) {
	recorder := &fakeRecorder{}
	fake := remote.NewFakeConnector()
	fake.Respond("disksetup", remote.Response{ExitCode: 1, Output: "no such device"})
	o := newOrchestrator(recorder, fake)
	cc := newContext(t, testCluster(), nil, nil)

	err := o.Configure(context.Background(), cc, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRemoteCommandFailed)

	step := recorder.step(StepConfigureServices)
	require.NotNil(t, step)
	assert.Greater(t, step.failed, 0)

	assert.Equal(t, -1, indexOf(recorder.stepNames(), StepConfigureSHCluster))
	assert.False(t, contains(fake.AllCommands(), "configure.sh"))
}

func TestConfigureConnectFailure(t *testing.T) {
	fake := remote.NewFakeConnector()
	fake.FailConnect(func(i *types.Instance) error {
		if i.ID == "w2" {
			return fmt.Errorf("connection refused")
		}
		return nil
	})
	o := newOrchestrator(&fakeRecorder{}, fake)
	cc := newContext(t, testCluster(), nil, nil)

	err := o.Configure(context.Background(), cc, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure_ssh on worker-2")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStartOrder(t *testing.T) {
	recorder := &fakeRecorder{}
	fake := remote.NewFakeConnector()
	o := newOrchestrator(recorder, fake)
	cc := newContext(t, testCluster(), nil, nil)

	require.NoError(t, o.Start(context.Background(), cc, nil))

	assert.Equal(t, []string{StepStartZooKeeper, StepStartCLDB, StepStartServices}, recorder.stepNames())
	assert.Equal(t, []string{
		"service mapr-zookeeper start",
		"nc -z 127.0.0.1 5181",
		"service mapr-warden start",
		"nc -z 127.0.0.1 7222",
	}, fake.Commands(masterHost))
	assert.Equal(t, []string{"service mapr-warden start"}, fake.Commands(worker1Host))
	assert.Equal(t, 2, recorder.step(StepStartServices).total)
}

func TestStartTimesOutWaitingForPort(t *testing.T) {
	fake := remote.NewFakeConnector()
	fake.Respond("nc -z 127.0.0.1 7222", remote.Response{ExitCode: 1})
	cfg := config.ProvisioningConfig{FanOut: 1}
	o := New(&fakeRecorder{}, fake, cfg, WithPollInterval(time.Millisecond))
	cc := newContext(t, testCluster(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := o.Start(ctx, cc, nil)
	require.Error(t, err)
	assert.False(t, contains(fake.Commands(worker1Host), "mapr-warden start"))
}

func TestStop(t *testing.T) {
	recorder := &fakeRecorder{}
	fake := remote.NewFakeConnector()
	o := newOrchestrator(recorder, fake)
	cc := newContext(t, testCluster(), nil, nil)

	require.NoError(t, o.Stop(context.Background(), cc, nil))

	assert.Equal(t, []string{StepStopServices, StepStopZooKeeper}, recorder.stepNames())
	assert.Equal(t, []string{"service mapr-warden stop", "service mapr-zookeeper stop"}, fake.Commands(masterHost))
	assert.Equal(t, []string{"service mapr-warden stop"}, fake.Commands(worker2Host))
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name          string
		added         *types.Instance
		reconfigureSh bool
	}{
		{name: "worker added", added: worker("w3", "worker-3", "172.16.0.4"), reconfigureSh: false},
		{name: "control node added", added: master("m2", "master-2", "172.16.0.5"), reconfigureSh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCluster()
			ng := c.NodeGroups[1]
			if tt.added.NodeGroupID == "ng-master" {
				ng = c.NodeGroups[0]
			}
			ng.Instances = append(ng.Instances, tt.added)
			ng.Count++

			recorder := &fakeRecorder{}
			fake := remote.NewFakeConnector()
			o := newOrchestrator(recorder, fake)
			cc := newContext(t, c, []*types.Instance{tt.added}, nil)

			require.NoError(t, o.Update(context.Background(), cc))

			steps := recorder.stepNames()
			assert.Equal(t, tt.reconfigureSh, indexOf(steps, StepConfigureSHCluster) >= 0)
			assert.Equal(t, tt.reconfigureSh, contains(fake.Commands(worker1Host), "configure.sh -N demo"))
			assert.True(t, contains(fake.Commands(worker1Host), "/opt/mapr/server/configure.sh -R"))
			assert.Empty(t, fake.Commands(tt.added.ManagementIP), "added instances are left to Configure")

			topology, ok := fake.File(masterHost, topologyDataPath)
			require.True(t, ok)
			assert.Contains(t, string(topology), tt.added.InternalIP)
		})
	}
}

func TestUpdateRestartsChangedServices(t *testing.T) {
	recorder := &fakeRecorder{}
	fake := remote.NewFakeConnector()
	yarnSite := "/opt/mapr/hadoop/hadoop-2.7.0/etc/hadoop/yarn-site.xml"
	mapredSite := "/opt/mapr/hadoop/hadoop-2.7.0/etc/hadoop/mapred-site.xml"
	fake.SetFile(worker1Host, yarnSite, []byte("<configuration><property><name>custom.key</name><value>1</value></property></configuration>"))
	fake.SetFile(worker1Host, mapredSite, []byte("<configuration></configuration>"))
	o := newOrchestrator(recorder, fake)
	cc := newContext(t, testCluster(), nil, nil)

	require.NoError(t, o.Update(context.Background(), cc))

	commands := fake.Commands(worker1Host)
	assert.Equal(t, 1, count(commands, "maprcli node services -name nodemanager -action restart -nodes worker-1"))
	assert.False(t, contains(fake.Commands(worker2Host), "maprcli node services"))
	assert.Equal(t, 1, recorder.step(StepRestartServices).total)

	merged, _ := fake.File(worker1Host, yarnSite)
	assert.Contains(t, string(merged), "<name>custom.key</name>")

	// a second pass finds nothing to change
	fake2 := remote.NewFakeConnector()
	rendered, _ := fake.File(worker1Host, yarnSite)
	fake2.SetFile(worker1Host, yarnSite, rendered)
	renderedMapred, _ := fake.File(worker1Host, mapredSite)
	fake2.SetFile(worker1Host, mapredSite, renderedMapred)
	require.NoError(t, newOrchestrator(&fakeRecorder{}, fake2).Update(context.Background(), cc))
	assert.False(t, contains(fake2.Commands(worker1Host), "maprcli node services"))
}

func TestUpdateKeepsConfigWhenReadFails(t *testing.T) {
	tests := []struct {
		name string
		resp remote.Response
	}{
		{name: "session lost", resp: remote.Response{Err: fmt.Errorf("ssh: session channel closed")}},
		{name: "permission denied", resp: remote.Response{ExitCode: 1, Output: "cat: yarn-site.xml: Permission denied"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			fake := remote.NewFakeConnector()
			yarnSite := "/opt/mapr/hadoop/hadoop-2.7.0/etc/hadoop/yarn-site.xml"
			original := []byte("<configuration><property><name>custom.key</name><value>1</value></property></configuration>")
			fake.SetFile(worker1Host, yarnSite, original)
			fake.Respond("read "+yarnSite, tt.resp)
			o := newOrchestrator(recorder, fake)
			cc := newContext(t, testCluster(), nil, nil)

			err := o.Update(context.Background(), cc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), yarnSite)

			kept, _ := fake.File(worker1Host, yarnSite)
			assert.Equal(t, string(original), string(kept))
			assert.False(t, contains(fake.Commands(worker1Host), "write "+yarnSite))
			assert.False(t, contains(fake.Commands(worker1Host), "maprcli node services"))
			assert.Positive(t, recorder.step(StepWriteConfigFiles).failed)
		})
	}
}

func TestDecommission(t *testing.T) {
	c := testCluster()
	removed := c.NodeGroups[1].Instances[1]
	recorder := &fakeRecorder{}
	fake := remote.NewFakeConnector()
	o := newOrchestrator(recorder, fake)
	cc := newContext(t, c, nil, []*types.Instance{removed})

	require.NoError(t, o.Decommission(context.Background(), cc))

	assert.Equal(t, []string{
		StepMoveNodes,
		StepStopServices,
		StepAwaitNoHeartbeat,
		StepRemoveNodes,
		StepUpdateServices,
	}, recorder.stepNames())

	assert.Equal(t, []string{
		"maprcli node move -serverids $(cat /opt/mapr/hostid) -topology /decommissioned",
		"service mapr-warden stop",
	}, fake.Commands(worker2Host))

	masterCmds := fake.Commands(masterHost)
	assert.True(t, contains(masterCmds, "maprcli node list -filter '[hostname==worker-2]'"))
	assert.True(t, contains(masterCmds, "maprcli node remove -nodes worker-2"))
	assert.True(t, contains(masterCmds, "configure.sh -R"))
	assert.Equal(t, 2, recorder.step(StepUpdateServices).total)
}

func TestDecommissionHeartbeatTimeout(t *testing.T) {
	fake := remote.NewFakeConnector()
	fake.Respond("maprcli node list", remote.Response{Output: "worker-2\n"})
	o := newOrchestrator(&fakeRecorder{}, fake)
	c := testCluster()
	cc := newContext(t, c, nil, []*types.Instance{c.NodeGroups[1].Instances[1]})

	err := o.Decommission(context.Background(), cc)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.False(t, contains(fake.Commands(masterHost), "maprcli node remove"))
}

func TestDecommissionNothingRemoved(t *testing.T) {
	recorder := &fakeRecorder{}
	o := newOrchestrator(recorder, remote.NewFakeConnector())
	require.NoError(t, o.Decommission(context.Background(), newContext(t, testCluster(), nil, nil)))
	assert.Empty(t, recorder.stepNames())
}

func TestScale(t *testing.T) {
	c := testCluster()
	added := worker("w3", "worker-3", "172.16.0.4")
	c.NodeGroups[1].Instances = append(c.NodeGroups[1].Instances, added)
	c.NodeGroups[1].Count = 3

	recorder := &fakeRecorder{}
	fake := remote.NewFakeConnector()
	o := newOrchestrator(recorder, fake)
	cc := newContext(t, c, []*types.Instance{added}, nil)

	require.NoError(t, o.Scale(context.Background(), cc))

	addedCmds := fake.Commands(added.ManagementIP)
	assert.True(t, contains(addedCmds, "yum install -y mapr-fileserver"))
	assert.True(t, contains(addedCmds, "service mapr-warden start"))
	assert.False(t, contains(addedCmds, "configure.sh -R"))
	assert.True(t, contains(fake.Commands(worker1Host), "configure.sh -R"))
	assert.False(t, contains(fake.Commands(worker1Host), "yum install"))
}

func TestFanOutLimit(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	o := New(&fakeRecorder{}, remote.NewFakeConnector(), config.ProvisioningConfig{FanOut: 2})
	cc := newContext(t, testCluster(), nil, nil)

	err := o.runStep(context.Background(), cc, "fan_out", cc.AllInstances(), func(ctx context.Context, _ *types.Instance) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

func TestRestartTrackerDedupes(t *testing.T) {
	registry, err := services.Registry("5.2.0.mrv2")
	require.NoError(t, err)
	yarn, _ := registry.Latest(services.YARNService)
	fs, _ := registry.Latest(services.MapRFSService)
	w1 := worker("w1", "worker-1", worker1Host)
	w2 := worker("w2", "worker-2", worker2Host)

	tracker := newRestartTracker()
	tracker.mark(yarn, w2)
	tracker.mark(yarn, w1)
	tracker.mark(yarn, w2)
	tracker.mark(fs, w1)

	pending := tracker.drain()
	require.Len(t, pending, 3)
	assert.Equal(t, "MapRFS", pending[0].service.UIName)
	assert.Equal(t, "w1", pending[1].instance.ID)
	assert.Equal(t, "w2", pending[2].instance.ID)

	assert.Empty(t, tracker.drain())
}
