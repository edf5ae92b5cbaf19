package conductor

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/events"
	"github.com/cuemby/sahara/pkg/types"
)

// ClusterTemplateGet returns the cluster template with the given id
func (c *Conductor) ClusterTemplateGet(ctx context.Context, rc *types.RequestContext, id string) (*types.ClusterTemplate, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	tmpl, err := c.store.GetClusterTemplate(id)
	if err != nil {
		return nil, err
	}
	if !visible(rc, tmpl.TenantID, tmpl.IsPublic) {
		return nil, errors.NotFound("Cluster template", id)
	}
	return tmpl, nil
}

// ClusterTemplateGetAll returns the visible cluster templates matching filters
func (c *Conductor) ClusterTemplateGetAll(ctx context.Context, rc *types.RequestContext, filters types.Values) ([]*types.ClusterTemplate, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	all, err := c.store.ListClusterTemplates()
	if err != nil {
		return nil, err
	}
	var result []*types.ClusterTemplate
	for _, tmpl := range all {
		if !visible(rc, tmpl.TenantID, tmpl.IsPublic) {
			continue
		}
		ok, err := matches(tmpl, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, tmpl)
		}
	}
	return result, nil
}

// ClusterTemplateCreate applies defaults, resolves node groups against
// their templates and persists a new cluster template.
func (c *Conductor) ClusterTemplateCreate(ctx context.Context, rc *types.RequestContext, values types.Values) (*types.ClusterTemplate, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	merged := ApplyDefaults(values, clusterTemplateDefaults)
	merged["tenant_id"] = tenantOf(rc)

	nodeGroups, err := c.populateNodeGroups(rc, merged["node_groups"])
	if err != nil {
		return nil, err
	}
	merged["node_groups"] = nodeGroups

	var tmpl types.ClusterTemplate
	if err := types.Decode(merged, &tmpl); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidData, "malformed cluster template")
	}
	now := c.now()
	tmpl.ID = c.newID()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	c.initTemplateNodeGroups(&tmpl, now)

	if err := c.store.CreateClusterTemplate(&tmpl); err != nil {
		return nil, err
	}
	c.publish(events.EventTemplateCreated, "", fmt.Sprintf("cluster template %s created", tmpl.Name),
		map[string]string{"kind": "cluster_template", "id": tmpl.ID})
	return &tmpl, nil
}

// ClusterTemplateUpdate applies field updates to a cluster template. A
// template referenced by a cluster can only change its visibility and
// protection flags.
func (c *Conductor) ClusterTemplateUpdate(ctx context.Context, rc *types.RequestContext, id string, values types.Values, ignoreProtOnDefault bool) (*types.ClusterTemplate, error) {
	current, err := c.ClusterTemplateGet(ctx, rc, id)
	if err != nil {
		return nil, err
	}
	if err := protectedFromUpdate("Cluster template", id, current.IsProtected, current.IsDefault, values, ignoreProtOnDefault); err != nil {
		return nil, err
	}
	if !onlyFlags(values) {
		holders, err := c.clusterTemplateHolders(id)
		if err != nil {
			return nil, err
		}
		if len(holders) > 0 {
			return nil, errors.UpdateFailed(
				fmt.Sprintf("Cluster template '%s' is in use and can not be updated", current.Name), holders...)
		}
	}

	encoded, err := types.Encode(current)
	if err != nil {
		return nil, err
	}
	request := strip(ApplyDefaults(values, nil), []string{"id", "created_at", "updated_at", "tenant_id"})
	merged := ApplyDefaults(request, encoded)
	if _, ok := request["node_groups"]; ok {
		nodeGroups, err := c.populateNodeGroups(rc, merged["node_groups"])
		if err != nil {
			return nil, err
		}
		merged["node_groups"] = nodeGroups
	}

	var updated types.ClusterTemplate
	if err := types.Decode(merged, &updated); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidData, "malformed cluster template update")
	}
	now := c.now()
	updated.UpdatedAt = now
	if _, ok := request["node_groups"]; ok {
		c.initTemplateNodeGroups(&updated, now)
	}

	if err := c.store.UpdateClusterTemplate(&updated); err != nil {
		return nil, err
	}
	c.publish(events.EventTemplateUpdated, "", fmt.Sprintf("cluster template %s updated", updated.Name),
		map[string]string{"kind": "cluster_template", "id": id})
	return &updated, nil
}

// ClusterTemplateDestroy removes a cluster template that no cluster uses
func (c *Conductor) ClusterTemplateDestroy(ctx context.Context, rc *types.RequestContext, id string, ignoreProtOnDefault bool) error {
	current, err := c.ClusterTemplateGet(ctx, rc, id)
	if err != nil {
		return err
	}
	if err := protectedFromDeletion("Cluster template", id, current.IsProtected, current.IsDefault, ignoreProtOnDefault); err != nil {
		return err
	}
	holders, err := c.clusterTemplateHolders(id)
	if err != nil {
		return err
	}
	if len(holders) > 0 {
		return errors.DeletionFailed(
			fmt.Sprintf("Cluster template '%s' is in use and can not be deleted", current.Name), holders...)
	}
	if err := c.store.DeleteClusterTemplate(id); err != nil {
		return err
	}
	c.publish(events.EventTemplateDeleted, "", fmt.Sprintf("cluster template %s deleted", current.Name),
		map[string]string{"kind": "cluster_template", "id": id})
	return nil
}

// NodeGroupTemplateGet returns the node group template with the given id
func (c *Conductor) NodeGroupTemplateGet(ctx context.Context, rc *types.RequestContext, id string) (*types.NodeGroupTemplate, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	tmpl, err := c.store.GetNodeGroupTemplate(id)
	if err != nil {
		return nil, err
	}
	if !visible(rc, tmpl.TenantID, tmpl.IsPublic) {
		return nil, errors.NotFound("Node group template", id)
	}
	return tmpl, nil
}

// NodeGroupTemplateGetAll returns the visible node group templates matching filters
func (c *Conductor) NodeGroupTemplateGetAll(ctx context.Context, rc *types.RequestContext, filters types.Values) ([]*types.NodeGroupTemplate, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	all, err := c.store.ListNodeGroupTemplates()
	if err != nil {
		return nil, err
	}
	var result []*types.NodeGroupTemplate
	for _, tmpl := range all {
		if !visible(rc, tmpl.TenantID, tmpl.IsPublic) {
			continue
		}
		ok, err := matches(tmpl, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, tmpl)
		}
	}
	return result, nil
}

// NodeGroupTemplateCreate applies defaults and persists a node group template
func (c *Conductor) NodeGroupTemplateCreate(ctx context.Context, rc *types.RequestContext, values types.Values) (*types.NodeGroupTemplate, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	merged := ApplyDefaults(values, nodeGroupTemplateDefaults)
	merged["tenant_id"] = tenantOf(rc)

	var tmpl types.NodeGroupTemplate
	if err := types.Decode(merged, &tmpl); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidData, "malformed node group template")
	}
	now := c.now()
	tmpl.ID = c.newID()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	if err := c.store.CreateNodeGroupTemplate(&tmpl); err != nil {
		return nil, err
	}
	c.publish(events.EventTemplateCreated, "", fmt.Sprintf("node group template %s created", tmpl.Name),
		map[string]string{"kind": "node_group_template", "id": tmpl.ID})
	return &tmpl, nil
}

// NodeGroupTemplateUpdate applies field updates to a node group template. A
// template referenced by a cluster template or a cluster node group can only
// change its visibility and protection flags.
func (c *Conductor) NodeGroupTemplateUpdate(ctx context.Context, rc *types.RequestContext, id string, values types.Values, ignoreProtOnDefault bool) (*types.NodeGroupTemplate, error) {
	current, err := c.NodeGroupTemplateGet(ctx, rc, id)
	if err != nil {
		return nil, err
	}
	if err := protectedFromUpdate("Node group template", id, current.IsProtected, current.IsDefault, values, ignoreProtOnDefault); err != nil {
		return nil, err
	}
	if !onlyFlags(values) {
		holders, err := c.nodeGroupTemplateHolders(id)
		if err != nil {
			return nil, err
		}
		if len(holders) > 0 {
			return nil, errors.UpdateFailed(
				fmt.Sprintf("Node group template '%s' is in use and can not be updated", current.Name), holders...)
		}
	}

	encoded, err := types.Encode(current)
	if err != nil {
		return nil, err
	}
	request := strip(ApplyDefaults(values, nil), []string{"id", "created_at", "updated_at", "tenant_id"})
	var updated types.NodeGroupTemplate
	if err := types.Decode(ApplyDefaults(request, encoded), &updated); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidData, "malformed node group template update")
	}
	updated.UpdatedAt = c.now()

	if err := c.store.UpdateNodeGroupTemplate(&updated); err != nil {
		return nil, err
	}
	c.publish(events.EventTemplateUpdated, "", fmt.Sprintf("node group template %s updated", updated.Name),
		map[string]string{"kind": "node_group_template", "id": id})
	return &updated, nil
}

// NodeGroupTemplateDestroy removes a node group template nothing references
func (c *Conductor) NodeGroupTemplateDestroy(ctx context.Context, rc *types.RequestContext, id string, ignoreProtOnDefault bool) error {
	current, err := c.NodeGroupTemplateGet(ctx, rc, id)
	if err != nil {
		return err
	}
	if err := protectedFromDeletion("Node group template", id, current.IsProtected, current.IsDefault, ignoreProtOnDefault); err != nil {
		return err
	}
	holders, err := c.nodeGroupTemplateHolders(id)
	if err != nil {
		return err
	}
	if len(holders) > 0 {
		return errors.DeletionFailed(
			fmt.Sprintf("Node group template '%s' is in use and can not be deleted", current.Name), holders...)
	}
	if err := c.store.DeleteNodeGroupTemplate(id); err != nil {
		return err
	}
	c.publish(events.EventTemplateDeleted, "", fmt.Sprintf("node group template %s deleted", current.Name),
		map[string]string{"kind": "node_group_template", "id": id})
	return nil
}

func (c *Conductor) initTemplateNodeGroups(tmpl *types.ClusterTemplate, now time.Time) {
	for _, ng := range tmpl.NodeGroups {
		ng.ID = c.newID()
		ng.TenantID = tmpl.TenantID
		ng.CreatedAt = now
		ng.UpdatedAt = now
	}
}

// onlyFlags reports whether values touches nothing but visibility and
// protection flags
func onlyFlags(values types.Values) bool {
	for k := range values {
		switch k {
		case "is_public", "is_protected":
		default:
			return false
		}
	}
	return true
}
