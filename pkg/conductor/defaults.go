package conductor

import (
	"github.com/cuemby/sahara/pkg/types"
	"github.com/mohae/deepcopy"
)

var clusterDefaults = types.Values{
	"cluster_configs":    map[string]interface{}{},
	"status":             string(types.ClusterStatusUndefined),
	"anti_affinity":      []interface{}{},
	"status_description": "",
	"info":               map[string]interface{}{},
	"rollback_info":      map[string]interface{}{},
	"sahara_info":        map[string]interface{}{},
}

var nodeGroupDefaults = types.Values{
	"node_processes":            []interface{}{},
	"node_configs":              map[string]interface{}{},
	"volumes_per_node":          0,
	"volumes_size":              0,
	"volumes_availability_zone": nil,
	"volume_mount_prefix":       "/volumes/disk",
	"volume_type":               nil,
	"floating_ip_pool":          nil,
	"security_groups":           nil,
	"auto_security_group":       false,
	"availability_zone":         nil,
	"is_proxy_gateway":          false,
	"volume_local_to_instance":  false,
}

var nodeGroupTemplateDefaults = ApplyDefaults(types.Values{
	"is_default":   false,
	"is_public":    false,
	"is_protected": false,
}, nodeGroupDefaults)

var clusterTemplateDefaults = types.Values{
	"cluster_configs": map[string]interface{}{},
	"node_groups":     []interface{}{},
	"anti_affinity":   []interface{}{},
	"is_default":      false,
	"is_public":       false,
	"is_protected":    false,
}

var instanceDefaults = types.Values{
	"volumes": []interface{}{},
}

var dataSourceDefaults = types.Values{
	"credentials": map[string]interface{}{},
}

// ApplyDefaults returns a deep copy of defaults with every top-level key of
// values replacing the corresponding default. Nested documents are not
// merged at this layer.
func ApplyDefaults(values, defaults types.Values) types.Values {
	merged, _ := deepcopy.Copy(defaults).(types.Values)
	if merged == nil {
		merged = types.Values{}
	}
	copied, _ := deepcopy.Copy(values).(types.Values)
	for k, v := range copied {
		merged[k] = v
	}
	return merged
}

// ClusterDefaults returns a fresh copy of the cluster skeleton
func ClusterDefaults() types.Values { return ApplyDefaults(nil, clusterDefaults) }

// NodeGroupDefaults returns a fresh copy of the node group skeleton
func NodeGroupDefaults() types.Values { return ApplyDefaults(nil, nodeGroupDefaults) }

// InstanceDefaults returns a fresh copy of the instance skeleton
func InstanceDefaults() types.Values { return ApplyDefaults(nil, instanceDefaults) }

// DataSourceDefaults returns a fresh copy of the data source skeleton
func DataSourceDefaults() types.Values { return ApplyDefaults(nil, dataSourceDefaults) }
