/*
Package reconciler moves clusters through their provisioning states.

Cluster status doubles as the lock on a cluster: the Request* operations
validate a wanted transition and record it as a status (Validating,
Scaling, Decommissioning or Deleting), and the reconciler is the only
writer that moves a cluster out of those states again. API handlers never
touch remote hosts; they only validate and record intent.

# Architecture

The reconciler wakes on a fixed interval, lists every cluster through the
conductor and hands each pending one to the Provisioner:

	┌──────────────────────────────────────────────────────────┐
	│                   Reconciliation Loop                    │
	│                 (every interval, def. 10s)               │
	└────────────────┬─────────────────────────────────────────┘
	                 │ ClusterGetAll
	                 ▼
	        ┌─────────────────┐      not pending / in flight
	        │  pending(status)├──────────────────────────► skip
	        └────────┬────────┘
	                 │ claim(id)
	                 ▼
	   ┌─────────────┴──────────────┬───────────────┬──────────────┐
	   ▼                            ▼               ▼              ▼
	provision                    scale        decommission      delete
	   │                            │               │              │
	   └──────────► Provisioner (pkg/mapr/lifecycle) ◄─────────────┘

Clusters are processed concurrently inside an errgroup. The in-flight set
guarantees a cluster is never processed by two cycles at once: a cluster
still being processed when the next tick fires is skipped by that cycle.

# Transitions

	Validating       validate, Configuring, configure, Starting, start, Active
	Scaling          validate, configure and start the added instances, Active
	Decommissioning  decommission the removed instances, drop them, Active
	Deleting         stop services (best effort), destroy the cluster

Any failure leaves the cluster in Error with the error text as its status
description. RequestProvision accepts clusters in Error, so a failed
provisioning can be retried.

## Requests

	RequestProvision     Undefined, Error → Validating
	RequestScale         Active           → Scaling
	RequestDecommission  Active           → Decommissioning
	RequestDelete        any unprotected  → Deleting

A request against a cluster in any other status fails with
errors.CodeUpdateFailed and a "status" detail. RequestDelete of a cluster
already in Deleting is a no-op; a protected cluster fails with
errors.CodeDeletionFailed.

## Membership Changes

Instances joining or leaving the cluster are kept in the cluster's
sahara_info until the transition completes:

	scale_added            IDs of the instances added by RequestScale
	decommission_removed   IDs of the instances queued for removal

RequestScale validates the topology the cluster would have after the
change before anything is written, then adds the instances, raises the
node group counts, records scale_added and moves the cluster to Scaling
in a single conductor write (conductor.ClusterGrow). A malformed instance
or an unknown node group leaves the cluster exactly as it was.

RequestDecommission refuses an empty list and validates the topology left
behind. The instances stay in their node groups until the Provisioner has
decommissioned them; only then are they removed and the counts lowered.

# Core Components

Provisioner: the MapR lifecycle operations the reconciler drives. The
production implementation is *lifecycle.Orchestrator; tests use a fake
that records calls.

	type Provisioner interface {
		Configure(ctx, cc, instances) error
		Start(ctx, cc, instances) error
		Stop(ctx, cc, instances) error
		Scale(ctx, cc) error
		Decommission(ctx, cc) error
	}

Reconciler: the loop itself. It reads all state through the conductor on
each cycle and keeps nothing between cycles except the in-flight set.

# Usage

	r := reconciler.NewReconciler(cond, orchestrator, lookup, 10*time.Second)
	r.Start(ctx)
	defer r.Stop()

	if err := r.RequestProvision(ctx, rc, clusterID); err != nil {
		return err
	}

Reconcile can also be called directly, which is what the CLI does for a
one-shot run and what the tests do instead of waiting for a tick:

	if err := r.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

A failure of a single cluster is recorded on that cluster and does not
fail the cycle; Reconcile only returns an error when the clusters cannot
be listed.

# Integration Points

  - pkg/conductor: every read and write of cluster state
  - pkg/mapr/validation: topology checks before provision and membership changes
  - pkg/mapr/cluster: the per-run cluster.Context handed to the Provisioner
  - pkg/images: image tag lookup for the image requirement rules
  - pkg/metrics: sahara_reconciliation_duration_seconds and
    sahara_reconciliation_cycles_total

# Troubleshooting

Cluster stuck in Scaling or Decommissioning:
  - Check the reconciler is running (serve starts it, the CLI runs one cycle)
  - Look for "Reconciling cluster" log lines with the cluster_id
  - sahara_info still lists the pending instances; they are retried next cycle

Cluster in Error after provisioning:
  - The status description holds the failing step and error text
  - Provision steps of the cluster show which hosts failed
  - Fix the cause and call RequestProvision again
*/
package reconciler
