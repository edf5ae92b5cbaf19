package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/sahara/pkg/conductor"
	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/images"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/mapr/cluster"
	"github.com/cuemby/sahara/pkg/mapr/services"
	"github.com/cuemby/sahara/pkg/mapr/validation"
	"github.com/cuemby/sahara/pkg/metrics"
	"github.com/cuemby/sahara/pkg/types"
)

// Keys of the internal bookkeeping kept in a cluster's sahara_info while a
// membership change is pending
const (
	infoScaleAdded          = "scale_added"
	infoDecommissionRemoved = "decommission_removed"
)

// Provisioner runs the MapR lifecycle sequences against a cluster
type Provisioner interface {
	Configure(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error
	Start(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error
	Stop(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error
	Scale(ctx context.Context, cc *cluster.Context) error
	Decommission(ctx context.Context, cc *cluster.Context) error
}

// Reconciler drives clusters through their provisioning states
type Reconciler struct {
	conductor   *conductor.Conductor
	provisioner Provisioner
	lookup      images.Lookup
	interval    time.Duration
	rc          *types.RequestContext
	logger      zerolog.Logger

	mu       sync.Mutex
	inflight map[string]bool
	stopCh   chan struct{}
}

// NewReconciler creates a new reconciler
func NewReconciler(c *conductor.Conductor, p Provisioner, lookup images.Lookup, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{
		conductor:   c,
		provisioner: p,
		lookup:      lookup,
		interval:    interval,
		rc:          &types.RequestContext{IsAdmin: true},
		logger:      log.WithComponent("reconciler"),
		inflight:    make(map[string]bool),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Reconciliation cycle failed")
			}
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Reconcile performs one reconciliation cycle. Every cluster waiting on a
// transition is processed concurrently; a cluster is never processed by two
// cycles at once. Failures of a single cluster are recorded on the cluster
// itself and do not fail the cycle.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	clusters, err := r.conductor.ClusterGetAll(ctx, r.rc, nil)
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range clusters {
		c := c
		if !pending(c.Status) || !r.claim(c.ID) {
			continue
		}
		g.Go(func() error {
			defer r.release(c.ID)
			r.process(gctx, c)
			return nil
		})
	}
	return g.Wait()
}

func pending(status types.ClusterStatus) bool {
	switch status {
	case types.ClusterStatusValidating,
		types.ClusterStatusScaling,
		types.ClusterStatusDecommissioning,
		types.ClusterStatusDeleting:
		return true
	}
	return false
}

func (r *Reconciler) claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[id] {
		return false
	}
	r.inflight[id] = true
	return true
}

func (r *Reconciler) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}

func (r *Reconciler) process(ctx context.Context, c *types.Cluster) {
	logger := log.WithClusterID(c.ID).With().Str("status", string(c.Status)).Logger()
	logger.Info().Msg("Reconciling cluster")

	var err error
	switch c.Status {
	case types.ClusterStatusValidating:
		err = r.provision(ctx, c)
	case types.ClusterStatusScaling:
		err = r.scale(ctx, c)
	case types.ClusterStatusDecommissioning:
		err = r.decommission(ctx, c)
	case types.ClusterStatusDeleting:
		err = r.delete(ctx, c)
	}

	if err != nil {
		logger.Error().Err(err).Msg("Cluster transition failed")
		if _, serr := r.conductor.ClusterSetStatus(ctx, r.rc, c.ID, types.ClusterStatusError, err.Error()); serr != nil {
			logger.Error().Err(serr).Msg("Failed to record cluster error")
		}
	}
}

func (r *Reconciler) clusterContext(c *types.Cluster, added, removed []*types.Instance) (*cluster.Context, error) {
	registry, err := services.Registry(c.HadoopVersion)
	if err != nil {
		return nil, err
	}
	return cluster.New(c, registry, r.lookup, added, removed)
}

func (r *Reconciler) setStatus(ctx context.Context, id string, status types.ClusterStatus) error {
	_, err := r.conductor.ClusterSetStatus(ctx, r.rc, id, status, "")
	return err
}

func (r *Reconciler) provision(ctx context.Context, c *types.Cluster) error {
	cc, err := r.clusterContext(c, nil, nil)
	if err != nil {
		return err
	}
	if err := validation.Validate(cc); err != nil {
		return err
	}

	if err := r.setStatus(ctx, c.ID, types.ClusterStatusConfiguring); err != nil {
		return err
	}
	if err := r.provisioner.Configure(ctx, cc, nil); err != nil {
		return err
	}

	if err := r.setStatus(ctx, c.ID, types.ClusterStatusStarting); err != nil {
		return err
	}
	if err := r.provisioner.Start(ctx, cc, nil); err != nil {
		return err
	}
	return r.setStatus(ctx, c.ID, types.ClusterStatusActive)
}

func (r *Reconciler) scale(ctx context.Context, c *types.Cluster) error {
	added, err := instancesByID(c, stringList(c.SaharaInfo[infoScaleAdded]))
	if err != nil {
		return err
	}
	cc, err := r.clusterContext(c, added, nil)
	if err != nil {
		return err
	}
	if err := validation.Validate(cc); err != nil {
		return err
	}
	if err := r.provisioner.Scale(ctx, cc); err != nil {
		return err
	}

	if _, err := r.conductor.ClusterSetSaharaInfo(ctx, r.rc, c.ID, nil); err != nil {
		return err
	}
	return r.setStatus(ctx, c.ID, types.ClusterStatusActive)
}

func (r *Reconciler) decommission(ctx context.Context, c *types.Cluster) error {
	removed, err := instancesByID(c, stringList(c.SaharaInfo[infoDecommissionRemoved]))
	if err != nil {
		return err
	}
	cc, err := r.clusterContext(c, nil, removed)
	if err != nil {
		return err
	}
	if err := r.provisioner.Decommission(ctx, cc); err != nil {
		return err
	}

	ids := make([]string, len(removed))
	for i, inst := range removed {
		ids[i] = inst.ID
	}
	return r.conductor.ClusterShrink(ctx, r.rc, c.ID, conductor.Shrink{
		InstanceIDs: ids,
		ClearInfo:   true,
		Status:      types.ClusterStatusActive,
	})
}

func (r *Reconciler) delete(ctx context.Context, c *types.Cluster) error {
	cc, err := r.clusterContext(c, nil, nil)
	if err == nil {
		err = r.provisioner.Stop(ctx, cc, nil)
	}
	if err != nil {
		logger := log.WithClusterID(c.ID)
		logger.Warn().Err(err).Msg("Failed to stop cluster services, deleting anyway")
	}
	return r.conductor.ClusterDestroy(ctx, r.rc, c.ID)
}

func instancesByID(c *types.Cluster, ids []string) ([]*types.Instance, error) {
	byID := make(map[string]*types.Instance)
	for _, inst := range c.Instances() {
		byID[inst.ID] = inst
	}
	out := make([]*types.Instance, 0, len(ids))
	for _, id := range ids {
		inst, ok := byID[id]
		if !ok {
			return nil, errors.NotFound("Instance", id)
		}
		out = append(out, inst)
	}
	return out, nil
}

// stringList reads a list of strings back from a JSON-decoded document
func stringList(v interface{}) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []interface{}:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
