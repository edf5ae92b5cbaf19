package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sahara/pkg/conductor"
	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/types"
)

const version = "6.0.0.mrv2"

var mapr = Filter{PluginName: "mapr"}

func newTestTool(t *testing.T) (*Tool, *conductor.Conductor) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := conductor.New(store, conductor.WithKeyGenerator(func() (string, string, error) {
		return "private-key", "ssh-rsa AAAA", nil
	}))
	return New(c, ""), c
}

func ngt(name, flavor string, processes ...string) *Template {
	list := make([]interface{}, 0, len(processes))
	for _, p := range processes {
		list = append(list, p)
	}
	values := types.Values{
		"name":           name,
		"plugin_name":    "mapr",
		"hadoop_version": version,
		"node_processes": list,
	}
	if flavor != "" {
		values["flavor_id"] = flavor
	}
	return &Template{Kind: KindNodeGroup, Name: name, PluginName: "mapr", HadoopVersion: version, Values: values}
}

func ct(name string, nodeGroups ...map[string]interface{}) *Template {
	list := make([]interface{}, 0, len(nodeGroups))
	for _, ng := range nodeGroups {
		list = append(list, ng)
	}
	return &Template{Kind: KindCluster, Name: name, PluginName: "mapr", HadoopVersion: version, Values: types.Values{
		"name":           name,
		"plugin_name":    "mapr",
		"hadoop_version": version,
		"node_groups":    list,
	}}
}

func ref(name, template string, count int) map[string]interface{} {
	return map[string]interface{}{"name": name, "node_group_template_id": "{" + template + "}", "count": count}
}

func defaultSet() []*Template {
	return []*Template{
		ngt("master", "m1.large", "CLDB", "FileServer", "ZooKeeper", "Webserver", "ResourceManager", "HistoryServer"),
		ngt("worker", "m1.large", "FileServer", "NodeManager"),
		ct("mapr-cluster", ref("master", "master", 1), ref("worker", "worker", 3)),
	}
}

func statuses(r *Result) map[string]Status {
	out := make(map[string]Status, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[o.Name] = o.Status
	}
	return out
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"cluster.json": `{"name": "c", "plugin_name": "mapr", "hadoop_version": "6.0.0.mrv2",
			"node_groups": [{"name": "w", "node_group_template_id": "{worker}", "count": 2}]}`,
		"worker.yaml": "name: worker\nplugin_name: mapr\nhadoop_version: 6.0.0.mrv2\nflavor_id: m1.large\nnode_processes: [FileServer]\n",
		"old/worker.yml": "name: worker\nplugin_name: mapr\nhadoop_version: 5.2.0.mrv2\nflavor_id: m1.large\nnode_processes: [FileServer]\n",
		"vanilla.yaml":   "name: v\nplugin_name: vanilla\nhadoop_version: 2.7.1\nflavor_id: m1\nnode_processes: [namenode]\n",
		"README.md":      "not a template",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	loaded, err := LoadDir(dir, Filter{PluginName: "mapr", PluginVersions: []string{version}})
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, KindNodeGroup, loaded[0].Kind)
	assert.Equal(t, "worker", loaded[0].Name)
	assert.Equal(t, KindCluster, loaded[1].Kind)
	assert.Equal(t, "c", loaded[1].Name)

	all, err := LoadDir(dir, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestLoadFileRejectsUnknownDocuments(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing version", content: "name: x\nplugin_name: mapr\nnode_processes: [CLDB]\n"},
		{name: "no kind", content: "name: x\nplugin_name: mapr\nhadoop_version: 6.0.0.mrv2\n"},
		{name: "empty", content: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "t.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadFile(path)
			assert.ErrorIs(t, err, errors.ErrInvalidData)
		})
	}
}

func TestUpdateCreatesTemplates(t *testing.T) {
	tool, c := newTestTool(t)
	ctx := context.Background()

	result := tool.Update(ctx, defaultSet())
	require.False(t, result.Error, "%v", result.Err)
	assert.Equal(t, map[string]Status{
		"master":       StatusCreated,
		"worker":       StatusCreated,
		"mapr-cluster": StatusCreated,
	}, statuses(result))

	cluster := result.Find(KindCluster, "mapr-cluster")
	tmpl, err := c.ClusterTemplateGet(ctx, nil, cluster.ID)
	require.NoError(t, err)
	assert.True(t, tmpl.IsDefault)
	require.Len(t, tmpl.NodeGroups, 2)
	assert.Equal(t, result.Find(KindNodeGroup, "worker").ID, tmpl.NodeGroups[1].NodeGroupTemplateID)
	assert.Equal(t, []string{"FileServer", "NodeManager"}, tmpl.NodeGroups[1].NodeProcesses)
	assert.Equal(t, 3, tmpl.NodeGroups[1].Count)
}

func TestUpdateIsIdempotent(t *testing.T) {
	tool, _ := newTestTool(t)
	ctx := context.Background()

	require.False(t, tool.Update(ctx, defaultSet()).Error)
	result := tool.Update(ctx, defaultSet())
	require.False(t, result.Error, "%v", result.Err)
	assert.Equal(t, map[string]Status{
		"master":       StatusUnchanged,
		"worker":       StatusUnchanged,
		"mapr-cluster": StatusUnchanged,
	}, statuses(result))
}

func TestUpdateChangedTemplate(t *testing.T) {
	tool, c := newTestTool(t)
	ctx := context.Background()
	require.False(t, tool.Update(ctx, defaultSet()).Error)

	set := defaultSet()
	set[2] = ct("mapr-cluster", ref("master", "master", 1), ref("worker", "worker", 5))
	result := tool.Update(ctx, set)
	require.False(t, result.Error, "%v", result.Err)
	assert.Equal(t, StatusUpdated, result.Find(KindCluster, "mapr-cluster").Status)

	tmpl, err := c.ClusterTemplateGet(ctx, nil, result.Find(KindCluster, "mapr-cluster").ID)
	require.NoError(t, err)
	assert.Equal(t, 5, tmpl.NodeGroups[1].Count)
}

func TestUpdateRollsBackCreations(t *testing.T) {
	tool, c := newTestTool(t)
	ctx := context.Background()

	batch := []*Template{
		ngt("master", "m1.large", "CLDB", "FileServer"),
		ngt("worker", "m1.large", "FileServer", "NodeManager"),
		ngt("broken", "", "FileServer"),
	}
	result := tool.Update(ctx, batch)

	assert.True(t, result.Error)
	assert.ErrorIs(t, result.Err, errors.ErrInvalidData)
	assert.Equal(t, map[string]Status{
		"master": StatusRolledBack,
		"worker": StatusRolledBack,
		"broken": StatusFailed,
	}, statuses(result))

	remaining, err := c.NodeGroupTemplateGetAll(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestUpdateRollsBackUpdates(t *testing.T) {
	tool, c := newTestTool(t)
	ctx := context.Background()
	first := tool.Update(ctx, []*Template{ngt("worker", "m1.large", "FileServer", "NodeManager")})
	require.False(t, first.Error)
	workerID := first.Find(KindNodeGroup, "worker").ID

	result := tool.Update(ctx, []*Template{
		ngt("worker", "m1.xlarge", "FileServer", "NodeManager"),
		ngt("broken", "", "FileServer"),
	})
	assert.True(t, result.Error)
	assert.Equal(t, StatusRolledBack, result.Find(KindNodeGroup, "worker").Status)

	restored, err := c.NodeGroupTemplateGet(ctx, nil, workerID)
	require.NoError(t, err)
	assert.Equal(t, "m1.large", restored.FlavorID)
	assert.True(t, restored.IsDefault)
}

func TestUpdateUnknownPlaceholder(t *testing.T) {
	tool, c := newTestTool(t)
	ctx := context.Background()

	result := tool.Update(ctx, []*Template{
		ngt("worker", "m1.large", "FileServer", "NodeManager"),
		ct("mapr-cluster", ref("worker", "worker", 1), ref("edge", "edge", 1)),
	})
	assert.True(t, result.Error)
	assert.ErrorIs(t, result.Err, errors.ErrNotFound)

	remaining, err := c.NodeGroupTemplateGetAll(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestUpdateSkipsNonDefaultTemplates(t *testing.T) {
	tool, c := newTestTool(t)
	ctx := context.Background()

	custom, err := c.NodeGroupTemplateCreate(ctx, nil, ngt("worker", "m1.small", "FileServer").Values)
	require.NoError(t, err)

	result := tool.Update(ctx, []*Template{ngt("worker", "m1.large", "FileServer", "NodeManager")})
	require.False(t, result.Error)
	assert.Equal(t, StatusSkipped, result.Find(KindNodeGroup, "worker").Status)

	unchanged, err := c.NodeGroupTemplateGet(ctx, nil, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, "m1.small", unchanged.FlavorID)
}

func TestUpdateReportsTemplatesInUse(t *testing.T) {
	tool, c := newTestTool(t)
	ctx := context.Background()
	first := tool.Update(ctx, defaultSet())
	require.False(t, first.Error)

	_, err := c.ClusterCreate(ctx, nil, types.Values{
		"name":                "demo",
		"cluster_template_id": first.Find(KindCluster, "mapr-cluster").ID,
	})
	require.NoError(t, err)

	set := defaultSet()
	set[2] = ct("mapr-cluster", ref("master", "master", 1), ref("worker", "worker", 10))
	result := tool.Update(ctx, set)
	require.False(t, result.Error, "%v", result.Err)
	assert.Equal(t, StatusInUse, result.Find(KindCluster, "mapr-cluster").Status)
}

func TestDelete(t *testing.T) {
	tool, c := newTestTool(t)
	ctx := context.Background()
	first := tool.Update(ctx, defaultSet())
	require.False(t, first.Error)

	t.Run("template in use", func(t *testing.T) {
		result := tool.Delete(ctx, mapr, "worker")
		require.False(t, result.Error)
		assert.Equal(t, StatusInUse, result.Find(KindNodeGroup, "worker").Status)
	})

	t.Run("by id", func(t *testing.T) {
		result := tool.Delete(ctx, mapr, first.Find(KindCluster, "mapr-cluster").ID)
		require.False(t, result.Error, "%v", result.Err)
		assert.Equal(t, StatusDeleted, result.Find(KindCluster, "mapr-cluster").Status)
	})

	t.Run("by name", func(t *testing.T) {
		result := tool.Delete(ctx, mapr, "worker")
		require.False(t, result.Error, "%v", result.Err)
		assert.Equal(t, StatusDeleted, result.Find(KindNodeGroup, "worker").Status)
	})

	t.Run("unknown", func(t *testing.T) {
		result := tool.Delete(ctx, mapr, "nope")
		assert.True(t, result.Error)
		assert.ErrorIs(t, result.Err, errors.ErrNotFound)
	})

	t.Run("not a default", func(t *testing.T) {
		_, err := c.NodeGroupTemplateCreate(ctx, nil, ngt("custom", "m1.small", "FileServer").Values)
		require.NoError(t, err)
		result := tool.Delete(ctx, mapr, "custom")
		assert.True(t, result.Error)
		assert.ErrorIs(t, result.Err, errors.ErrDeletionFailed)
	})
}

func TestPrune(t *testing.T) {
	tool, _ := newTestTool(t)
	ctx := context.Background()
	set := append(defaultSet(), ngt("edge", "m1.small", "FileServer"))
	require.False(t, tool.Update(ctx, set).Error)

	// Only the cluster template and its master survive the next release
	kept := []*Template{set[0], ct("mapr-cluster", ref("master", "master", 1))}
	result := tool.Prune(ctx, mapr, kept)
	require.False(t, result.Error, "%v", result.Err)
	assert.Equal(t, map[string]Status{
		"worker": StatusInUse,
		"edge":   StatusDeleted,
	}, statuses(result))

	entries, err := tool.List(ctx, mapr)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, string(e.Kind)+":"+e.Name)
	}
	assert.Equal(t, []string{
		"node_group_template:master",
		"node_group_template:worker",
		"cluster_template:mapr-cluster",
	}, names)
}

func TestContainsValues(t *testing.T) {
	have := map[string]interface{}{
		"name":  "worker",
		"count": float64(3),
		"list":  []interface{}{map[string]interface{}{"a": "b", "id": "x"}},
	}
	tests := []struct {
		name     string
		want     interface{}
		expected bool
	}{
		{name: "subset", want: map[string]interface{}{"name": "worker"}, expected: true},
		{name: "nested subset", want: map[string]interface{}{"list": []interface{}{map[string]interface{}{"a": "b"}}}, expected: true},
		{name: "different value", want: map[string]interface{}{"count": float64(4)}, expected: false},
		{name: "missing key", want: map[string]interface{}{"flavor_id": "m1"}, expected: false},
		{name: "list length", want: map[string]interface{}{"list": []interface{}{}}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsValues(have, tt.want))
		})
	}
}
