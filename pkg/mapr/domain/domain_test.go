package domain

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	metastore = NodeProcess{Name: "hivemeta", UIName: "HiveMetastore", Package: "mapr-hivemetastore", OpenPorts: []int{9083}}
	hs2       = NodeProcess{Name: "hs2", UIName: "HiveServer2", Package: "mapr-hiveserver2", OpenPorts: []int{10000}}
	cldb      = NodeProcess{Name: "cldb", UIName: "CLDB", Package: "mapr-cldb", OpenPorts: []int{7222}}
)

func testServices() []*Service {
	return []*Service{
		{Name: "maprfs", UIName: "MapRFS", Processes: []NodeProcess{cldb}},
		{Name: "hive", UIName: "Hive", Version: "1.2", Processes: []NodeProcess{metastore, hs2}, ExtraPackages: []string{"mapr-hive"}},
		{Name: "hive", UIName: "Hive", Version: "1.3", Processes: []NodeProcess{metastore, hs2}, ExtraPackages: []string{"mapr-hive"},
			Configs: []ConfigOption{{Name: "hive.exec.parallel", Target: "Hive", Scope: ScopeCluster, Type: TypeBool, Default: false}}},
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry("6.0.0.mrv2", testServices(), []ServiceKey{{UIName: "MapRFS"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "6.0.0.mrv2", r.Version())
	assert.Equal(t, []string{"1.2", "1.3"}, r.Versions("Hive"))

	latest, ok := r.Latest("Hive")
	require.True(t, ok)
	assert.Equal(t, "1.3", latest.Version)

	pinned, ok := r.Get("Hive", "1.2")
	require.True(t, ok)
	assert.Equal(t, ServiceKey{UIName: "Hive", Version: "1.2"}, pinned.Key())

	_, ok = r.Get("Hive", "2.0")
	assert.False(t, ok)

	name, ok := r.ServiceNameByProcess("HiveServer2")
	assert.True(t, ok)
	assert.Equal(t, "Hive", name)

	p, ok := r.Process("CLDB")
	require.True(t, ok)
	assert.Equal(t, []int{7222}, p.OpenPorts)

	assert.Equal(t, 0, r.Order(ServiceKey{UIName: "MapRFS"}))
	assert.Equal(t, -1, r.Order(ServiceKey{UIName: "Spark"}))
	require.Len(t, r.RequiredServices(), 1)
	assert.Equal(t, "MapRFS", r.RequiredServices()[0].UIName)

	assert.Equal(t, map[string][]string{
		"MapRFS": {"CLDB"},
		"Hive":   {"HiveMetastore", "HiveServer2"},
	}, r.ProcessesByService())
}

func TestNewRegistryRejectsInconsistentCatalogues(t *testing.T) {
	tests := []struct {
		name     string
		services []*Service
		required []ServiceKey
		errMatch string
	}{
		{
			name:     "duplicate identity",
			services: []*Service{{UIName: "Hive", Version: "1.2"}, {UIName: "Hive", Version: "1.2"}},
			errMatch: "declared twice",
		},
		{
			name: "process owned twice",
			services: []*Service{
				{UIName: "MapRFS", Processes: []NodeProcess{cldb}},
				{UIName: "Other", Processes: []NodeProcess{cldb}},
			},
			errMatch: "owned by both",
		},
		{
			name:     "unknown required service",
			services: []*Service{{UIName: "MapRFS"}},
			required: []ServiceKey{{UIName: "YARN", Version: "2.7.0"}},
			errMatch: "not declared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry("v", tt.services, tt.required, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMatch)
		})
	}
}

func TestRegistryConfigs(t *testing.T) {
	general := []ConfigOption{{Name: "Enable MapR-DB", Target: "general", Scope: ScopeCluster, Type: TypeBool, Default: true}}
	r, err := NewRegistry("6.0.0.mrv2", testServices(), nil, general)
	require.NoError(t, err)

	configs := r.Configs()
	require.Len(t, configs, 3)
	assert.Equal(t, "Enable MapR-DB", configs[0].Name)
	assert.Equal(t, "Hive Version", configs[1].Name)
	assert.Equal(t, "Hive", configs[1].Target)
	assert.Equal(t, TypeDropdown, configs[1].Type)
	assert.Equal(t, "1.3", configs[1].Default)
	assert.Equal(t, []string{"1.2", "1.3"}, configs[1].Choices)
	assert.Equal(t, "hive.exec.parallel", configs[2].Name)

	opt, ok := r.GeneralConfig("Enable MapR-DB")
	assert.True(t, ok)
	assert.Equal(t, true, opt.Default)
}

func TestServicePackages(t *testing.T) {
	hive := testServices()[1]

	assert.Equal(t, []string{"mapr-hivemetastore", "mapr-hive"}, hive.Packages([]string{"HiveMetastore", "CLDB"}))
	assert.Equal(t, []string{"mapr-hivemetastore", "mapr-hiveserver2", "mapr-hive"}, hive.Packages([]string{"HiveServer2", "HiveMetastore"}))
	assert.Empty(t, hive.Packages([]string{"CLDB"}))
	assert.True(t, hive.HostedBy([]string{"FileServer", "HiveServer2"}))
	assert.False(t, hive.HostedBy([]string{"FileServer"}))
	assert.Equal(t, "Hive 1.2", hive.String())
	assert.Equal(t, "Hive Version", hive.VersionConfigName())
}

func TestIsControlProcess(t *testing.T) {
	assert.True(t, IsControlProcess("CLDB"))
	assert.True(t, IsControlProcess("ResourceManager"))
	assert.False(t, IsControlProcess("NodeManager"))
}

func TestRenderParse(t *testing.T) {
	values := map[string]string{
		"yarn.resourcemanager.hostname": "rm-1",
		"yarn.log-aggregation-enable":   "true",
		"yarn.app.mapreduce.am.env":     "JAVA_OPTS=-Xmx1g ",
	}

	for _, format := range []FileFormat{FormatXML, FormatProperties, FormatEnv} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := Render(format, values)
			require.NoError(t, err)

			parsed, err := Parse(format, data)
			require.NoError(t, err)
			if diff := cmp.Diff(values, parsed); diff != "" {
				t.Errorf("Parse(Render()) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPropertiesLeadingWhitespace(t *testing.T) {
	values := map[string]string{
		"padded":  "  two spaces",
		"tabbed":  "\tafter a tab",
		"escaped": `\ already a backslash`,
	}

	data, err := Render(FormatProperties, values)
	require.NoError(t, err)
	assert.Contains(t, string(data), "padded=\\  two spaces\n")

	parsed, err := Parse(FormatProperties, data)
	require.NoError(t, err)
	assert.Equal(t, values, parsed)

	parsed, err = Parse(FormatProperties, []byte("separator =   value\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"separator": "value"}, parsed)
}

func TestRenderXMLLayout(t *testing.T) {
	data, err := Render(FormatXML, map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "<?xml"))
	assert.Contains(t, text, "<configuration>")
	assert.Less(t, strings.Index(text, "<name>a</name>"), strings.Index(text, "<name>b</name>"))
}

func TestParseHandwrittenFiles(t *testing.T) {
	tests := []struct {
		name     string
		format   FileFormat
		data     string
		expected map[string]string
	}{
		{
			name:   "hadoop xml",
			format: FormatXML,
			data: `<?xml version="1.0"?>
<configuration>
  <property>
    <name> fs.defaultFS </name>
    <value>maprfs:///</value>
    <description>ignored</description>
  </property>
</configuration>`,
			expected: map[string]string{"fs.defaultFS": "maprfs:///"},
		},
		{
			name:     "properties with comments",
			format:   FormatProperties,
			data:     "# comment\n! other\n\na = 1\nb:2\nflag\n",
			expected: map[string]string{"a": "1", "b": "2", "flag": ""},
		},
		{
			name:     "env exports",
			format:   FormatEnv,
			data:     "#!/bin/bash\nexport JAVA_HOME=\"/usr/lib/jvm\"\nMAPR_HOME='/opt/mapr'\n",
			expected: map[string]string{"JAVA_HOME": "/usr/lib/jvm", "MAPR_HOME": "/opt/mapr"},
		},
		{
			name:     "empty",
			format:   FormatXML,
			data:     "  \n",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.format, []byte(tt.data))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.expected, parsed); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeFile(t *testing.T) {
	existing, err := Render(FormatXML, map[string]string{"unrelated.key": "keep", "managed.key": "old"})
	require.NoError(t, err)

	rendered, changed, err := MergeFile(FormatXML, existing, map[string]string{"managed.key": "new"})
	require.NoError(t, err)
	assert.True(t, changed)

	parsed, err := Parse(FormatXML, rendered)
	require.NoError(t, err)
	assert.Equal(t, "keep", parsed["unrelated.key"])
	assert.Equal(t, "new", parsed["managed.key"])

	again, changed, err := MergeFile(FormatXML, rendered, map[string]string{"managed.key": "new"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, string(rendered), string(again))

	for _, format := range []FileFormat{FormatXML, FormatProperties, FormatEnv} {
		desired := map[string]string{"padded.key": " value with spaces  "}
		first, _, err := MergeFile(format, nil, desired)
		require.NoError(t, err)
		_, changed, err := MergeFile(format, first, desired)
		require.NoError(t, err)
		assert.False(t, changed, "%s value with surrounding spaces", format)
	}

	_, _, err = MergeFile(FormatXML, []byte("<configuration><property>"), nil)
	assert.Error(t, err)
}
