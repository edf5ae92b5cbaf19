package conductor

import (
	"fmt"

	"github.com/cuemby/sahara/pkg/types"
)

// clusterTemplateHolders names the clusters built from a cluster template
func (c *Conductor) clusterTemplateHolders(id string) ([]string, error) {
	clusters, err := c.store.ListClusters()
	if err != nil {
		return nil, err
	}
	var holders []string
	for _, cluster := range clusters {
		if cluster.ClusterTemplateID == id {
			holders = append(holders, fmt.Sprintf("cluster '%s'", cluster.Name))
		}
	}
	return holders, nil
}

// nodeGroupTemplateHolders names the cluster templates and clusters with a
// node group built from a node group template
func (c *Conductor) nodeGroupTemplateHolders(id string) ([]string, error) {
	templates, err := c.store.ListClusterTemplates()
	if err != nil {
		return nil, err
	}
	clusters, err := c.store.ListClusters()
	if err != nil {
		return nil, err
	}

	var holders []string
	for _, tmpl := range templates {
		if usesTemplate(tmpl.NodeGroups, id) {
			holders = append(holders, fmt.Sprintf("cluster template '%s'", tmpl.Name))
		}
	}
	for _, cluster := range clusters {
		if usesTemplate(cluster.NodeGroups, id) {
			holders = append(holders, fmt.Sprintf("cluster '%s'", cluster.Name))
		}
	}
	return holders, nil
}

func usesTemplate(nodeGroups []*types.NodeGroup, id string) bool {
	for _, ng := range nodeGroups {
		if ng.NodeGroupTemplateID == id {
			return true
		}
	}
	return false
}

// ClusterTemplateInUse reports whether any cluster references the template
func (c *Conductor) ClusterTemplateInUse(id string) (bool, error) {
	holders, err := c.clusterTemplateHolders(id)
	return len(holders) > 0, err
}

// NodeGroupTemplateInUse reports whether any cluster template or cluster
// node group references the template
func (c *Conductor) NodeGroupTemplateInUse(id string) (bool, error) {
	holders, err := c.nodeGroupTemplateHolders(id)
	return len(holders) > 0, err
}
