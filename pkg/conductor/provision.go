package conductor

import (
	"context"
	"fmt"

	"github.com/cuemby/sahara/pkg/events"
	"github.com/cuemby/sahara/pkg/types"
)

// ProvisionStepAdd opens a new provision step for a cluster and returns its id
func (c *Conductor) ProvisionStepAdd(ctx context.Context, clusterID, name string, total int) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	cluster, err := c.store.GetCluster(clusterID)
	if err != nil {
		return "", err
	}

	now := c.now()
	step := &types.ProvisionStep{
		ID:             c.newID(),
		ClusterID:      clusterID,
		TenantID:       cluster.TenantID,
		StepName:       name,
		StepType:       "Plugin: configure cluster",
		TotalInstances: total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.store.CreateProvisionStep(step); err != nil {
		return "", err
	}

	c.publish(events.EventProvisionStepStarted, clusterID, name, map[string]string{
		"step_id": step.ID,
		"total":   fmt.Sprint(total),
	})
	return step.ID, nil
}

// ProvisionEventAdd records the outcome of a step on one instance. The step
// fails on the first unsuccessful event and succeeds once every instance
// has reported success.
func (c *Conductor) ProvisionEventAdd(ctx context.Context, stepID string, instance *types.Instance, successful bool, info string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	step, err := c.store.GetProvisionStep(stepID)
	if err != nil {
		return err
	}

	event := &types.ProvisionEvent{
		ID:         c.newID(),
		StepID:     stepID,
		Successful: successful,
		EventInfo:  info,
		CreatedAt:  c.now(),
	}
	if instance != nil {
		event.InstanceID = instance.InstanceID
		event.InstanceName = instance.InstanceName
		event.NodeGroupID = instance.NodeGroupID
	}
	step.Events = append(step.Events, event)
	step.UpdatedAt = event.CreatedAt

	wasOpen := step.Successful == nil
	if !successful {
		failed := false
		step.Successful = &failed
	} else if step.Successful == nil && countSuccessful(step.Events) >= step.TotalInstances {
		done := true
		step.Successful = &done
	}

	if err := c.store.UpdateProvisionStep(step); err != nil {
		return err
	}

	switch {
	case !successful:
		c.publish(events.EventProvisionInstanceFailed, step.ClusterID, info, map[string]string{
			"step_id":  stepID,
			"instance": event.InstanceName,
		})
		if wasOpen {
			c.publish(events.EventProvisionStepFailed, step.ClusterID, step.StepName, map[string]string{"step_id": stepID})
		}
	case wasOpen && step.Successful != nil && *step.Successful:
		c.publish(events.EventProvisionStepCompleted, step.ClusterID, step.StepName, map[string]string{"step_id": stepID})
	}
	return nil
}

// ProvisionStepsGet returns the steps of a cluster in creation order
func (c *Conductor) ProvisionStepsGet(ctx context.Context, clusterID string) ([]*types.ProvisionStep, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return c.store.ListProvisionSteps(clusterID)
}

func countSuccessful(evs []*types.ProvisionEvent) int {
	n := 0
	for _, ev := range evs {
		if ev.Successful {
			n++
		}
	}
	return n
}
