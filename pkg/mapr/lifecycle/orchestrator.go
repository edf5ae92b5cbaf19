package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/sahara/pkg/config"
	"github.com/cuemby/sahara/pkg/health"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/mapr/cluster"
	"github.com/cuemby/sahara/pkg/metrics"
	"github.com/cuemby/sahara/pkg/remote"
	"github.com/cuemby/sahara/pkg/types"
)

// Recorder persists provisioning progress
type Recorder interface {
	ProvisionStepAdd(ctx context.Context, clusterID, name string, total int) (string, error)
	ProvisionEventAdd(ctx context.Context, stepID string, instance *types.Instance, successful bool, info string) error
	ClusterSetInfo(ctx context.Context, rc *types.RequestContext, id string, info map[string]map[string]string) (*types.Cluster, error)
}

// Orchestrator runs the MapR lifecycle sequences
type Orchestrator struct {
	recorder  Recorder
	connector remote.Connector
	cfg       config.ProvisioningConfig
	poll      time.Duration
	rc        *types.RequestContext
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPollInterval sets the interval between readiness checks
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.poll = d }
}

// New creates an orchestrator
func New(recorder Recorder, connector remote.Connector, cfg config.ProvisioningConfig, opts ...Option) *Orchestrator {
	if cfg.FanOut < 1 {
		cfg.FanOut = 1
	}
	o := &Orchestrator{
		recorder:  recorder,
		connector: connector,
		cfg:       cfg,
		poll:      5 * time.Second,
		rc:        &types.RequestContext{IsAdmin: true},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type instanceFunc func(ctx context.Context, instance *types.Instance) error

// runStep records a provisioning step and runs fn on every instance with
// at most FanOut in flight. It returns once all started operations have
// finished.
func (o *Orchestrator) runStep(ctx context.Context, cc *cluster.Context, name string, instances []*types.Instance, fn instanceFunc) error {
	if len(instances) == 0 {
		return nil
	}
	clusterID := cc.Cluster().ID
	logger := log.WithClusterID(clusterID).With().Str("step", name).Logger()

	stepID, err := o.recorder.ProvisionStepAdd(ctx, clusterID, name, len(instances))
	if err != nil {
		return fmt.Errorf("failed to record step %s: %w", name, err)
	}

	logger.Info().Int("instances", len(instances)).Msg("Step started")
	timer := metrics.NewTimer()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.FanOut)
	for _, instance := range instances {
		instance := instance
		g.Go(func() error {
			err := fn(gctx, instance)
			o.recordEvent(ctx, logger, stepID, instance, err)
			if err != nil {
				return fmt.Errorf("%s on %s: %w", name, instance.FQDN(), err)
			}
			return nil
		})
	}

	err = g.Wait()
	timer.ObserveDurationVec(metrics.StepDuration, name)
	if err != nil {
		metrics.StepsFailed.WithLabelValues(name).Inc()
		logger.Error().Err(err).Msg("Step failed")
		return err
	}
	logger.Info().Dur("duration", timer.Duration()).Msg("Step completed")
	return nil
}

func (o *Orchestrator) recordEvent(ctx context.Context, logger zerolog.Logger, stepID string, instance *types.Instance, err error) {
	info := ""
	if err != nil {
		info = err.Error()
		logger.Error().Err(err).Str("instance_id", instance.ID).Msg("Instance operation failed")
	}
	if recErr := o.recorder.ProvisionEventAdd(ctx, stepID, instance, err == nil, info); recErr != nil {
		logger.Warn().Err(recErr).Str("instance_id", instance.ID).Msg("Failed to record provision event")
	}
}

// onRemote opens a connection to instance for the duration of fn
func (o *Orchestrator) onRemote(ctx context.Context, cc *cluster.Context, instance *types.Instance, fn func(remote.Remote) error) error {
	r, err := o.connector.Connect(ctx, cc.Cluster(), instance)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer r.Close()
	return fn(r)
}

// exec runs cmd as root and counts the outcome
func (o *Orchestrator) exec(ctx context.Context, r remote.Remote, cmd string, opts ...remote.Option) (string, error) {
	if o.cfg.CommandTimeout > 0 {
		opts = append([]remote.Option{remote.WithTimeout(o.cfg.CommandTimeout)}, opts...)
	}
	opts = append(opts, remote.RunAsRoot())
	_, out, err := r.ExecuteCommand(ctx, cmd, opts...)
	if err != nil {
		metrics.RemoteCommandsTotal.WithLabelValues("failure").Inc()
		return out, err
	}
	metrics.RemoteCommandsTotal.WithLabelValues("success").Inc()
	return out, nil
}

// run is onRemote followed by a single exec
func (o *Orchestrator) run(ctx context.Context, cc *cluster.Context, instance *types.Instance, cmd string, opts ...remote.Option) error {
	return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
		_, err := o.exec(ctx, r, cmd, opts...)
		return err
	})
}

// waitForPort polls the instance until something listens on port
func (o *Orchestrator) waitForPort(ctx context.Context, cc *cluster.Context, instance *types.Instance, port int, timeout time.Duration) error {
	return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
		checker := health.NewRemoteChecker(r, fmt.Sprintf("nc -z 127.0.0.1 %d", port))
		_, err := health.WaitFor(ctx, checker, health.Config{Interval: o.poll, Timeout: timeout, Successes: 1})
		return err
	})
}

// intersect keeps the instances of candidates that are also in targets
func intersect(candidates, targets []*types.Instance) []*types.Instance {
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t.ID] = true
	}
	var out []*types.Instance
	for _, c := range candidates {
		if set[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
