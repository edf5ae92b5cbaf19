package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfigs(t *testing.T) {
	tests := []struct {
		name      string
		defaults  Configs
		overrides Configs
		expected  Configs
	}{
		{
			name:      "nil overrides keep defaults",
			defaults:  Configs{"HDFS": {"dfs.replication": 3}},
			overrides: nil,
			expected:  Configs{"HDFS": {"dfs.replication": 3}},
		},
		{
			name:      "override wins on conflict",
			defaults:  Configs{"HDFS": {"dfs.replication": 3, "dfs.blocksize": "128m"}},
			overrides: Configs{"HDFS": {"dfs.replication": 1}},
			expected:  Configs{"HDFS": {"dfs.replication": 1, "dfs.blocksize": "128m"}},
		},
		{
			name:      "target only in overrides is included",
			defaults:  Configs{"HDFS": {"dfs.replication": 3}},
			overrides: Configs{"Hive": {"Hive Version": "1.2"}},
			expected: Configs{
				"HDFS": {"dfs.replication": 3},
				"Hive": {"Hive Version": "1.2"},
			},
		},
		{
			name:      "both empty",
			defaults:  nil,
			overrides: nil,
			expected:  Configs{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MergeConfigs(tt.defaults, tt.overrides)
			if diff := cmp.Diff(tt.expected, result); diff != "" {
				t.Errorf("MergeConfigs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeConfigsDoesNotMutateInputs(t *testing.T) {
	defaults := Configs{"general": {"a": 1, "b": 2}}
	overrides := Configs{"general": {"b": 3}, "Hive": {"c": 4}}

	defaultsSnapshot := Configs{"general": {"a": 1, "b": 2}}
	overridesSnapshot := Configs{"general": {"b": 3}, "Hive": {"c": 4}}

	merged := MergeConfigs(defaults, overrides)
	merged["general"]["a"] = 100

	assert.Empty(t, cmp.Diff(defaultsSnapshot, defaults))
	assert.Empty(t, cmp.Diff(overridesSnapshot, overrides))
}

func TestMergeConfigsIdempotent(t *testing.T) {
	defaults := Configs{"general": {"a": 1, "b": 2}, "YARN": {"x": "y"}}
	overrides := Configs{"general": {"b": 3}, "Hive": {"c": 4}}

	once := MergeConfigs(defaults, overrides)
	twice := MergeConfigs(defaults, MergeConfigs(defaults, overrides))

	assert.Empty(t, cmp.Diff(once, twice))
}

func TestMergeConfigsPrecedence(t *testing.T) {
	defaults := Configs{"t": {"k1": "d1", "k2": "d2"}}
	overrides := Configs{"t": {"k1": "o1", "k2": "o2"}}

	merged := MergeConfigs(defaults, overrides)
	for k, v := range overrides["t"] {
		assert.Equal(t, v, merged["t"][k])
	}
}

func TestDecodeEncode(t *testing.T) {
	values := Values{
		"name":           "ng-1",
		"count":          3,
		"node_processes": []interface{}{"CLDB", "FileServer"},
		"node_configs":   map[string]interface{}{"general": map[string]interface{}{"k": "v"}},
		"unknown_field":  true,
	}

	var ng NodeGroup
	require.NoError(t, Decode(values, &ng))
	assert.Equal(t, "ng-1", ng.Name)
	assert.Equal(t, 3, ng.Count)
	assert.True(t, ng.HasProcess("CLDB"))
	assert.False(t, ng.HasProcess("ZooKeeper"))

	v, ok := ng.NodeConfigs.GetString("general", "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	encoded, err := Encode(&ng)
	require.NoError(t, err)
	assert.Equal(t, "ng-1", encoded["name"])
	_, hasUnknown := encoded["unknown_field"]
	assert.False(t, hasUnknown)
}

func TestConfigsFromValue(t *testing.T) {
	raw := map[string]interface{}{
		"Hive":  map[string]interface{}{"Hive Version": "1.2"},
		"bogus": "not-a-section",
	}

	configs := ConfigsFromValue(raw)
	v, ok := configs.GetString("Hive", "Hive Version")
	assert.True(t, ok)
	assert.Equal(t, "1.2", v)
	_, ok = configs["bogus"]
	assert.False(t, ok)

	assert.Nil(t, ConfigsFromValue("nope"))
}
