package templates

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/types"
)

// Kind distinguishes the two template families
type Kind string

const (
	KindNodeGroup Kind = "node_group_template"
	KindCluster   Kind = "cluster_template"
)

// Template is one template document read from disk
type Template struct {
	Kind          Kind
	Path          string
	Name          string
	PluginName    string
	HadoopVersion string
	Values        types.Values
}

// Filter restricts loading and listing to one plugin and, optionally, a
// set of its versions
type Filter struct {
	PluginName     string
	PluginVersions []string
}

// Match reports whether a template of the given plugin and version passes
// the filter
func (f Filter) Match(pluginName, version string) bool {
	if f.PluginName != "" && f.PluginName != pluginName {
		return false
	}
	if len(f.PluginVersions) == 0 {
		return true
	}
	for _, v := range f.PluginVersions {
		if v == version {
			return true
		}
	}
	return false
}

// LoadDir reads every *.json, *.yaml and *.yml file below dir. Node group
// templates are returned before cluster templates, each family sorted by
// path.
func LoadDir(dir string, filter Filter) ([]*Template, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan template directory: %w", err)
	}
	sort.Strings(paths)

	var nodeGroups, clusters []*Template
	for _, path := range paths {
		t, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if !filter.Match(t.PluginName, t.HadoopVersion) {
			continue
		}
		if t.Kind == KindNodeGroup {
			nodeGroups = append(nodeGroups, t)
		} else {
			clusters = append(clusters, t)
		}
	}
	return append(nodeGroups, clusters...), nil
}

// LoadFile reads a single template document. JSON documents are parsed as
// YAML.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	var values types.Values
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidData, fmt.Sprintf("malformed template file %s", path))
	}
	return parse(path, values)
}

func parse(path string, values types.Values) (*Template, error) {
	if values == nil {
		return nil, errors.InvalidData(fmt.Sprintf("template file %s is empty", path))
	}
	t := &Template{Path: path, Values: values}
	t.Name, _ = values["name"].(string)
	t.PluginName, _ = values["plugin_name"].(string)
	t.HadoopVersion, _ = values["hadoop_version"].(string)
	if t.Name == "" || t.PluginName == "" || t.HadoopVersion == "" {
		return nil, errors.InvalidData(
			fmt.Sprintf("template file %s needs name, plugin_name and hadoop_version", path))
	}

	switch {
	case values["node_groups"] != nil:
		t.Kind = KindCluster
	case values["node_processes"] != nil:
		t.Kind = KindNodeGroup
	default:
		return nil, errors.InvalidData(
			fmt.Sprintf("template file %s is neither a cluster nor a node group template", path))
	}
	return t, nil
}
