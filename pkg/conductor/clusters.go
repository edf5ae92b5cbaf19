package conductor

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/events"
	"github.com/cuemby/sahara/pkg/types"
)

// ClusterGet returns the cluster with the given id
func (c *Conductor) ClusterGet(ctx context.Context, rc *types.RequestContext, id string) (*types.Cluster, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	cluster, err := c.store.GetCluster(id)
	if err != nil {
		return nil, err
	}
	if !visible(rc, cluster.TenantID, cluster.IsPublic) {
		return nil, errors.NotFound("Cluster", id)
	}
	return c.openCluster(cluster)
}

// ClusterGetAll returns the visible clusters whose fields equal filters
func (c *Conductor) ClusterGetAll(ctx context.Context, rc *types.RequestContext, filters types.Values) ([]*types.Cluster, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	all, err := c.store.ListClusters()
	if err != nil {
		return nil, err
	}
	var result []*types.Cluster
	for _, cluster := range all {
		if !visible(rc, cluster.TenantID, cluster.IsPublic) {
			continue
		}
		ok, err := matches(cluster, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		opened, err := c.openCluster(cluster)
		if err != nil {
			return nil, err
		}
		result = append(result, opened)
	}
	return result, nil
}

// ClusterCreate resolves the request against defaults and templates,
// generates the management key pair and persists the new cluster.
func (c *Conductor) ClusterCreate(ctx context.Context, rc *types.RequestContext, values types.Values) (*types.Cluster, error) {
	merged, err := c.ResolveCluster(ctx, rc, values)
	if err != nil {
		return nil, err
	}

	if key, _ := merged["management_private_key"].(string); key == "" {
		private, public, err := c.keyGen()
		if err != nil {
			return nil, fmt.Errorf("failed to generate management key pair: %w", err)
		}
		merged["management_private_key"] = private
		merged["management_public_key"] = public
	}

	var cluster types.Cluster
	if err := types.Decode(merged, &cluster); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidData, "malformed cluster")
	}

	now := c.now()
	cluster.ID = c.newID()
	cluster.CreatedAt = now
	cluster.UpdatedAt = now
	for _, ng := range cluster.NodeGroups {
		c.initNodeGroup(&cluster, ng, now)
	}

	if err := c.saveCluster(&cluster, true); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("cluster_id", cluster.ID).
		Str("name", cluster.Name).
		Int("node_groups", len(cluster.NodeGroups)).
		Msg("Cluster created")
	c.publish(events.EventClusterCreated, cluster.ID, fmt.Sprintf("cluster %s created", cluster.Name), nil)
	return &cluster, nil
}

// ClusterUpdate applies top-level field updates to a cluster. Node groups
// and instances are changed through their own operations.
func (c *Conductor) ClusterUpdate(ctx context.Context, rc *types.RequestContext, id string, values types.Values) (*types.Cluster, error) {
	return c.clusterUpdate(ctx, rc, id, values, true)
}

func (c *Conductor) clusterUpdate(ctx context.Context, rc *types.RequestContext, id string, values types.Values, checkProtected bool) (*types.Cluster, error) {
	cluster, err := c.ClusterGet(ctx, rc, id)
	if err != nil {
		return nil, err
	}
	if checkProtected {
		if err := protectedFromUpdate("Cluster", id, cluster.IsProtected, false, values, false); err != nil {
			return nil, err
		}
	}

	current, err := types.Encode(cluster)
	if err != nil {
		return nil, err
	}
	request := strip(ApplyDefaults(values, nil), []string{"id", "created_at", "updated_at", "node_groups", "tenant_id"})
	merged := ApplyDefaults(request, current)

	var updated types.Cluster
	if err := types.Decode(merged, &updated); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidData, "malformed cluster update")
	}
	updated.UpdatedAt = c.now()
	if err := c.saveCluster(&updated, false); err != nil {
		return nil, err
	}

	if updated.Status != cluster.Status {
		c.publish(events.EventClusterStatusChanged, id, string(updated.Status), map[string]string{
			"from": string(cluster.Status),
			"to":   string(updated.Status),
		})
	} else {
		c.publish(events.EventClusterUpdated, id, "cluster updated", nil)
	}
	return &updated, nil
}

// ClusterSetStatus records a status transition with an optional
// description. Protection does not apply to provisioning progress.
func (c *Conductor) ClusterSetStatus(ctx context.Context, rc *types.RequestContext, id string, status types.ClusterStatus, description string) (*types.Cluster, error) {
	return c.clusterUpdate(ctx, rc, id, types.Values{
		"status":             string(status),
		"status_description": description,
	}, false)
}

// ClusterSetInfo replaces the operator-facing info section of a cluster
func (c *Conductor) ClusterSetInfo(ctx context.Context, rc *types.RequestContext, id string, info map[string]map[string]string) (*types.Cluster, error) {
	section := make(map[string]interface{}, len(info))
	for k, v := range info {
		entries := make(map[string]interface{}, len(v))
		for name, value := range v {
			entries[name] = value
		}
		section[k] = entries
	}
	return c.clusterUpdate(ctx, rc, id, types.Values{"info": section}, false)
}

// ClusterSetSaharaInfo replaces the internal bookkeeping section of a
// cluster, such as the instances a pending scale operation brings in
func (c *Conductor) ClusterSetSaharaInfo(ctx context.Context, rc *types.RequestContext, id string, info map[string]interface{}) (*types.Cluster, error) {
	if info == nil {
		info = map[string]interface{}{}
	}
	return c.clusterUpdate(ctx, rc, id, types.Values{"sahara_info": info}, false)
}

// ClusterDestroy removes a cluster and its provision steps
func (c *Conductor) ClusterDestroy(ctx context.Context, rc *types.RequestContext, id string) error {
	cluster, err := c.ClusterGet(ctx, rc, id)
	if err != nil {
		return err
	}
	if err := protectedFromDeletion("Cluster", id, cluster.IsProtected, false, false); err != nil {
		return err
	}

	steps, err := c.store.ListProvisionSteps(id)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if err := c.store.DeleteProvisionStep(step.ID); err != nil {
			return err
		}
	}
	if err := c.store.DeleteCluster(id); err != nil {
		return err
	}

	c.logger.Info().Str("cluster_id", id).Msg("Cluster destroyed")
	c.publish(events.EventClusterDeleted, id, fmt.Sprintf("cluster %s deleted", cluster.Name), nil)
	return nil
}

// NodeGroupAdd resolves and appends a node group to a cluster
func (c *Conductor) NodeGroupAdd(ctx context.Context, rc *types.RequestContext, clusterID string, values types.Values) (string, error) {
	ngValues, err := c.populateNodeGroup(rc, values)
	if err != nil {
		return "", err
	}
	var ng types.NodeGroup
	if err := types.Decode(ngValues, &ng); err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidData, "malformed node group")
	}

	err = c.mutateCluster(ctx, rc, clusterID, func(cluster *types.Cluster) error {
		c.initNodeGroup(cluster, &ng, c.now())
		cluster.NodeGroups = append(cluster.NodeGroups, &ng)
		return nil
	})
	if err != nil {
		return "", err
	}
	return ng.ID, nil
}

// NodeGroupUpdate applies field updates to a node group
func (c *Conductor) NodeGroupUpdate(ctx context.Context, rc *types.RequestContext, clusterID, nodeGroupID string, values types.Values) error {
	return c.mutateCluster(ctx, rc, clusterID, func(cluster *types.Cluster) error {
		for i, ng := range cluster.NodeGroups {
			if ng.ID != nodeGroupID {
				continue
			}
			current, err := types.Encode(ng)
			if err != nil {
				return err
			}
			request := strip(ApplyDefaults(values, nil), []string{"id", "cluster_id", "created_at", "updated_at", "instances"})
			var updated types.NodeGroup
			if err := types.Decode(ApplyDefaults(request, current), &updated); err != nil {
				return errors.Wrap(err, errors.CodeInvalidData, "malformed node group update")
			}
			updated.UpdatedAt = c.now()
			cluster.NodeGroups[i] = &updated
			return nil
		}
		return errors.NotFound("Node group", nodeGroupID)
	})
}

// NodeGroupRemove removes a node group and its instances from a cluster
func (c *Conductor) NodeGroupRemove(ctx context.Context, rc *types.RequestContext, clusterID, nodeGroupID string) error {
	return c.mutateCluster(ctx, rc, clusterID, func(cluster *types.Cluster) error {
		for i, ng := range cluster.NodeGroups {
			if ng.ID == nodeGroupID {
				cluster.NodeGroups = append(cluster.NodeGroups[:i], cluster.NodeGroups[i+1:]...)
				return nil
			}
		}
		return errors.NotFound("Node group", nodeGroupID)
	})
}

// InstanceAdd appends an instance to a node group and returns its id
func (c *Conductor) InstanceAdd(ctx context.Context, rc *types.RequestContext, clusterID, nodeGroupID string, values types.Values) (string, error) {
	var inst types.Instance
	if err := types.Decode(ApplyDefaults(values, instanceDefaults), &inst); err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidData, "malformed instance")
	}

	err := c.mutateCluster(ctx, rc, clusterID, func(cluster *types.Cluster) error {
		ng := cluster.NodeGroup(nodeGroupID)
		if ng == nil {
			return errors.NotFound("Node group", nodeGroupID)
		}
		now := c.now()
		inst.ID = c.newID()
		inst.NodeGroupID = nodeGroupID
		inst.CreatedAt = now
		inst.UpdatedAt = now
		ng.Instances = append(ng.Instances, &inst)
		return nil
	})
	if err != nil {
		return "", err
	}
	return inst.ID, nil
}

// Growth describes instances joining existing node groups of a cluster
type Growth struct {
	// Instances maps node group IDs to the documents of their new instances
	Instances map[string][]types.Values
	// InfoKey, when set, names the sahara_info entry that lists the new
	// instance IDs
	InfoKey string
	// Status, when set, is the status the cluster moves to
	Status types.ClusterStatus
}

// ClusterGrow adds the instances of g and raises the node group counts to
// match in a single write, so a failure leaves the cluster untouched. It
// returns the new instance IDs in node group order.
func (c *Conductor) ClusterGrow(ctx context.Context, rc *types.RequestContext, id string, g Growth) ([]string, error) {
	cluster, err := c.ClusterGet(ctx, rc, id)
	if err != nil {
		return nil, err
	}
	for ngID := range g.Instances {
		if cluster.NodeGroup(ngID) == nil {
			return nil, errors.NotFound("Node group", ngID)
		}
	}

	now := c.now()
	var added []string
	for _, ng := range cluster.NodeGroups {
		for _, values := range g.Instances[ng.ID] {
			var inst types.Instance
			if err := types.Decode(ApplyDefaults(values, instanceDefaults), &inst); err != nil {
				return nil, errors.Wrap(err, errors.CodeInvalidData, "malformed instance")
			}
			inst.ID = c.newID()
			inst.NodeGroupID = ng.ID
			inst.CreatedAt = now
			inst.UpdatedAt = now
			ng.Instances = append(ng.Instances, &inst)
			ng.Count++
			ng.UpdatedAt = now
			added = append(added, inst.ID)
		}
	}

	if g.InfoKey != "" {
		if cluster.SaharaInfo == nil {
			cluster.SaharaInfo = map[string]interface{}{}
		}
		ids := make([]interface{}, len(added))
		for i, instID := range added {
			ids[i] = instID
		}
		cluster.SaharaInfo[g.InfoKey] = ids
	}
	if err := c.saveMembership(cluster, g.Status, now); err != nil {
		return nil, err
	}
	return added, nil
}

// Shrink describes instances leaving a cluster
type Shrink struct {
	// InstanceIDs lists the instances to drop. Each one lowers the count of
	// its node group.
	InstanceIDs []string
	// ClearInfo empties sahara_info
	ClearInfo bool
	// Status, when set, is the status the cluster moves to
	Status types.ClusterStatus
}

// ClusterShrink drops the instances of s and lowers the node group counts
// to match in a single write. An unknown instance leaves the cluster
// untouched.
func (c *Conductor) ClusterShrink(ctx context.Context, rc *types.RequestContext, id string, s Shrink) error {
	cluster, err := c.ClusterGet(ctx, rc, id)
	if err != nil {
		return err
	}

	gone := make(map[string]bool, len(s.InstanceIDs))
	for _, instID := range s.InstanceIDs {
		if _, _, ok := findInstance(cluster, instID); !ok {
			return errors.NotFound("Instance", instID)
		}
		gone[instID] = true
	}
	now := c.now()
	for _, ng := range cluster.NodeGroups {
		kept := make([]*types.Instance, 0, len(ng.Instances))
		for _, inst := range ng.Instances {
			if !gone[inst.ID] {
				kept = append(kept, inst)
				continue
			}
			if ng.Count > 0 {
				ng.Count--
			}
			ng.UpdatedAt = now
		}
		ng.Instances = kept
	}

	if s.ClearInfo {
		cluster.SaharaInfo = map[string]interface{}{}
	}
	return c.saveMembership(cluster, s.Status, now)
}

func findInstance(cluster *types.Cluster, id string) (*types.NodeGroup, int, bool) {
	for _, ng := range cluster.NodeGroups {
		for i, inst := range ng.Instances {
			if inst.ID == id {
				return ng, i, true
			}
		}
	}
	return nil, 0, false
}

// saveMembership stores a cluster whose instances changed, moving it to
// status when one is given
func (c *Conductor) saveMembership(cluster *types.Cluster, status types.ClusterStatus, now time.Time) error {
	previous := cluster.Status
	if status != "" {
		cluster.Status = status
		cluster.StatusDescription = ""
	}
	cluster.UpdatedAt = now
	if err := c.saveCluster(cluster, false); err != nil {
		return err
	}

	if cluster.Status != previous {
		c.publish(events.EventClusterStatusChanged, cluster.ID, string(cluster.Status), map[string]string{
			"from": string(previous),
			"to":   string(cluster.Status),
		})
	} else {
		c.publish(events.EventClusterUpdated, cluster.ID, "cluster updated", nil)
	}
	return nil
}

// InstanceUpdate applies field updates to an instance
func (c *Conductor) InstanceUpdate(ctx context.Context, rc *types.RequestContext, clusterID, instanceID string, values types.Values) error {
	return c.mutateInstance(ctx, rc, clusterID, instanceID, func(ng *types.NodeGroup, i int) error {
		current, err := types.Encode(ng.Instances[i])
		if err != nil {
			return err
		}
		request := strip(ApplyDefaults(values, nil), []string{"id", "node_group_id", "created_at", "updated_at"})
		var updated types.Instance
		if err := types.Decode(ApplyDefaults(request, current), &updated); err != nil {
			return errors.Wrap(err, errors.CodeInvalidData, "malformed instance update")
		}
		updated.UpdatedAt = c.now()
		ng.Instances[i] = &updated
		return nil
	})
}

// InstanceRemove removes an instance from its node group
func (c *Conductor) InstanceRemove(ctx context.Context, rc *types.RequestContext, clusterID, instanceID string) error {
	return c.mutateInstance(ctx, rc, clusterID, instanceID, func(ng *types.NodeGroup, i int) error {
		ng.Instances = append(ng.Instances[:i], ng.Instances[i+1:]...)
		return nil
	})
}

// AppendVolume records a volume attached to an instance
func (c *Conductor) AppendVolume(ctx context.Context, rc *types.RequestContext, clusterID, instanceID, volumeID string) error {
	return c.mutateInstance(ctx, rc, clusterID, instanceID, func(ng *types.NodeGroup, i int) error {
		inst := ng.Instances[i]
		for _, v := range inst.Volumes {
			if v == volumeID {
				return nil
			}
		}
		inst.Volumes = append(inst.Volumes, volumeID)
		inst.UpdatedAt = c.now()
		return nil
	})
}

// RemoveVolume forgets a volume of an instance
func (c *Conductor) RemoveVolume(ctx context.Context, rc *types.RequestContext, clusterID, instanceID, volumeID string) error {
	return c.mutateInstance(ctx, rc, clusterID, instanceID, func(ng *types.NodeGroup, i int) error {
		inst := ng.Instances[i]
		for j, v := range inst.Volumes {
			if v == volumeID {
				inst.Volumes = append(inst.Volumes[:j], inst.Volumes[j+1:]...)
				inst.UpdatedAt = c.now()
				return nil
			}
		}
		return errors.NotFound("Volume", volumeID)
	})
}

func (c *Conductor) initNodeGroup(cluster *types.Cluster, ng *types.NodeGroup, now time.Time) {
	ng.ID = c.newID()
	ng.ClusterID = cluster.ID
	ng.TenantID = cluster.TenantID
	ng.CreatedAt = now
	ng.UpdatedAt = now
}

func (c *Conductor) mutateCluster(ctx context.Context, rc *types.RequestContext, id string, fn func(*types.Cluster) error) error {
	cluster, err := c.ClusterGet(ctx, rc, id)
	if err != nil {
		return err
	}
	if err := fn(cluster); err != nil {
		return err
	}
	cluster.UpdatedAt = c.now()
	if err := c.saveCluster(cluster, false); err != nil {
		return err
	}
	c.publish(events.EventClusterUpdated, id, "cluster updated", nil)
	return nil
}

func (c *Conductor) mutateInstance(ctx context.Context, rc *types.RequestContext, clusterID, instanceID string, fn func(*types.NodeGroup, int) error) error {
	return c.mutateCluster(ctx, rc, clusterID, func(cluster *types.Cluster) error {
		ng, i, ok := findInstance(cluster, instanceID)
		if !ok {
			return errors.NotFound("Instance", instanceID)
		}
		return fn(ng, i)
	})
}

// saveCluster persists a copy of cluster with its private key sealed
func (c *Conductor) saveCluster(cluster *types.Cluster, create bool) error {
	stored := *cluster
	if c.secrets != nil && stored.ManagementPrivateKey != "" {
		sealed, err := c.secrets.SealString(stored.ManagementPrivateKey)
		if err != nil {
			return fmt.Errorf("failed to seal management key: %w", err)
		}
		stored.ManagementPrivateKey = sealed
	}
	if create {
		return c.store.CreateCluster(&stored)
	}
	return c.store.UpdateCluster(&stored)
}

func (c *Conductor) openCluster(cluster *types.Cluster) (*types.Cluster, error) {
	if c.secrets == nil || cluster.ManagementPrivateKey == "" {
		return cluster, nil
	}
	opened, err := c.secrets.OpenString(cluster.ManagementPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to open management key: %w", err)
	}
	cluster.ManagementPrivateKey = opened
	return cluster, nil
}
