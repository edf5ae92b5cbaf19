package conductor

import (
	"context"
	"fmt"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/types"
)

// Fields a template never contributes to the object built from it
var (
	clusterTemplateStripped   = []string{"id", "created_at", "updated_at", "is_default", "is_public", "is_protected", "tenant_id"}
	nodeGroupTemplateStripped = []string{"id", "created_at", "updated_at"}
)

func strip(values types.Values, keys []string) types.Values {
	for _, k := range keys {
		delete(values, k)
	}
	return values
}

func update(dst, src types.Values) {
	for k, v := range src {
		dst[k] = v
	}
}

// ResolveCluster builds the merged cluster document for a create request.
// Precedence, lowest first: cluster defaults, the referenced cluster
// template, the request. When a template is used, cluster_configs are merged
// key by key instead of replaced. Node groups are resolved against their
// node group templates the same way.
func (c *Conductor) ResolveCluster(ctx context.Context, rc *types.RequestContext, values types.Values) (types.Values, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	request := ApplyDefaults(values, nil)

	merged := ClusterDefaults()
	merged["tenant_id"] = tenantOf(rc)

	var tmpl types.Values
	if id, ok := request["cluster_template_id"].(string); ok && id != "" {
		ct, err := c.store.GetClusterTemplate(id)
		if err != nil {
			return nil, err
		}
		tmpl, err = types.Encode(ct)
		if err != nil {
			return nil, err
		}
		strip(tmpl, clusterTemplateStripped)
		update(merged, tmpl)
	}

	update(merged, request)
	merged["tenant_id"] = tenantOf(rc)

	if tmpl != nil {
		merged["cluster_configs"] = types.MergeConfigs(
			types.ConfigsFromValue(tmpl["cluster_configs"]),
			types.ConfigsFromValue(request["cluster_configs"]),
		)
	}

	nodeGroups, err := c.populateNodeGroups(rc, merged["node_groups"])
	if err != nil {
		return nil, err
	}
	merged["node_groups"] = nodeGroups
	return merged, nil
}

func (c *Conductor) populateNodeGroups(rc *types.RequestContext, raw interface{}) ([]interface{}, error) {
	entries, err := valuesList(raw)
	if err != nil {
		return nil, err
	}
	nodeGroups := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		ng, err := c.populateNodeGroup(rc, entry)
		if err != nil {
			return nil, err
		}
		nodeGroups = append(nodeGroups, map[string]interface{}(ng))
	}
	return nodeGroups, nil
}

// populateNodeGroup resolves one node group entry: node group defaults, then
// the node group template, then the entry itself.
func (c *Conductor) populateNodeGroup(rc *types.RequestContext, entry types.Values) (types.Values, error) {
	entry = strip(ApplyDefaults(entry, nil), nodeGroupTemplateStripped)
	merged := NodeGroupDefaults()

	var tmpl types.Values
	if id, ok := entry["node_group_template_id"].(string); ok && id != "" {
		ngt, err := c.store.GetNodeGroupTemplate(id)
		if err != nil {
			return nil, err
		}
		tmpl, err = types.Encode(ngt)
		if err != nil {
			return nil, err
		}
		strip(tmpl, nodeGroupTemplateStripped)
		update(merged, tmpl)
	}

	update(merged, entry)
	if tmpl != nil {
		merged["node_configs"] = types.MergeConfigs(
			types.ConfigsFromValue(tmpl["node_configs"]),
			types.ConfigsFromValue(entry["node_configs"]),
		)
	}
	merged["tenant_id"] = tenantOf(rc)
	return merged, nil
}

func valuesList(raw interface{}) ([]types.Values, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []types.Values:
		return v, nil
	case []map[string]interface{}:
		out := make([]types.Values, 0, len(v))
		for _, m := range v {
			out = append(out, types.Values(m))
		}
		return out, nil
	case []interface{}:
		out := make([]types.Values, 0, len(v))
		for i, item := range v {
			switch m := item.(type) {
			case map[string]interface{}:
				out = append(out, types.Values(m))
			case types.Values:
				out = append(out, m)
			default:
				return nil, errors.InvalidData(fmt.Sprintf("node group entry %d is not an object", i))
			}
		}
		return out, nil
	}
	return nil, errors.InvalidData("node_groups must be a list")
}
