package reconciler

import (
	"context"
	"fmt"

	"github.com/cuemby/sahara/pkg/conductor"
	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/services"
	"github.com/cuemby/sahara/pkg/mapr/validation"
	"github.com/cuemby/sahara/pkg/types"
)

// The Request* operations only record the wanted transition. The status
// they set is picked up by the next reconciliation cycle; a cluster that
// is already transitioning rejects further requests.

// RequestProvision queues a new or failed cluster for validation and
// provisioning
func (r *Reconciler) RequestProvision(ctx context.Context, rc *types.RequestContext, id string) error {
	c, err := r.conductor.ClusterGet(ctx, rc, id)
	if err != nil {
		return err
	}
	switch c.Status {
	case types.ClusterStatusUndefined, types.ClusterStatusError, "":
	default:
		return busy(c)
	}
	_, err = r.conductor.ClusterSetStatus(ctx, rc, id, types.ClusterStatusValidating, "")
	return err
}

// RequestScale registers new instances and queues them for provisioning.
// additions maps node group IDs to the documents of the instances joining
// that group. The resulting topology is validated before anything is
// recorded.
func (r *Reconciler) RequestScale(ctx context.Context, rc *types.RequestContext, id string, additions map[string][]types.Values) error {
	c, err := r.activeCluster(ctx, rc, id)
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(additions))
	for ngID, instances := range additions {
		ng := c.NodeGroup(ngID)
		if ng == nil {
			return errors.NotFound("Node group", ngID)
		}
		counts[ngID] = ng.Count + len(instances)
	}
	registry, err := services.Registry(c.HadoopVersion)
	if err != nil {
		return err
	}
	if err := validation.ValidateScaling(c, registry, r.lookup, counts, nil); err != nil {
		return err
	}

	_, err = r.conductor.ClusterGrow(ctx, rc, id, conductor.Growth{
		Instances: additions,
		InfoKey:   infoScaleAdded,
		Status:    types.ClusterStatusScaling,
	})
	return err
}

// RequestDecommission queues instances for removal from the cluster. The
// topology left behind is validated first.
func (r *Reconciler) RequestDecommission(ctx context.Context, rc *types.RequestContext, id string, instanceIDs []string) error {
	c, err := r.activeCluster(ctx, rc, id)
	if err != nil {
		return err
	}
	if len(instanceIDs) == 0 {
		return errors.InvalidData("No instances to decommission")
	}

	removed, err := instancesByID(c, instanceIDs)
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, inst := range removed {
		ng := c.NodeGroup(inst.NodeGroupID)
		if _, ok := counts[ng.ID]; !ok {
			counts[ng.ID] = ng.Count
		}
		counts[ng.ID]--
	}
	registry, err := services.Registry(c.HadoopVersion)
	if err != nil {
		return err
	}
	if err := validation.ValidateScaling(c, registry, r.lookup, counts, nil); err != nil {
		return err
	}

	if _, err := r.conductor.ClusterSetSaharaInfo(ctx, rc, id, map[string]interface{}{infoDecommissionRemoved: instanceIDs}); err != nil {
		return err
	}
	_, err = r.conductor.ClusterSetStatus(ctx, rc, id, types.ClusterStatusDecommissioning, "")
	return err
}

// RequestDelete queues a cluster for teardown
func (r *Reconciler) RequestDelete(ctx context.Context, rc *types.RequestContext, id string) error {
	c, err := r.conductor.ClusterGet(ctx, rc, id)
	if err != nil {
		return err
	}
	if c.IsProtected {
		return errors.DeletionFailed(fmt.Sprintf("Cluster id '%s' is protected", id))
	}
	if c.Status == types.ClusterStatusDeleting {
		return nil
	}
	_, err = r.conductor.ClusterSetStatus(ctx, rc, id, types.ClusterStatusDeleting, "")
	return err
}

func (r *Reconciler) activeCluster(ctx context.Context, rc *types.RequestContext, id string) (*types.Cluster, error) {
	c, err := r.conductor.ClusterGet(ctx, rc, id)
	if err != nil {
		return nil, err
	}
	if c.Status != types.ClusterStatusActive {
		return nil, busy(c)
	}
	return c, nil
}

func busy(c *types.Cluster) error {
	return errors.UpdateFailed(fmt.Sprintf("Cluster id '%s' is in status '%s'", c.ID, c.Status)).
		WithDetail("status", string(c.Status))
}
