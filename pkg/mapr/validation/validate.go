package validation

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/images"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/mapr/cluster"
	"github.com/cuemby/sahara/pkg/mapr/domain"
	"github.com/cuemby/sahara/pkg/metrics"
	"github.com/cuemby/sahara/pkg/types"
)

// Validate checks that the required services are present and then runs the
// rules of every cluster service in declaration order. The first violation
// is returned.
func Validate(t domain.Topology) error {
	logger := log.WithClusterID(t.Cluster().ID)

	for _, required := range t.RequiredServices() {
		if !t.HasService(required.Key()) {
			return failed(logger, errors.RequiredServiceMissing(required.String(), ""))
		}
	}

	for _, service := range t.ClusterServices() {
		for _, rule := range service.Rules {
			if err := rule.Check(t); err != nil {
				logger.Debug().
					Str("service", service.String()).
					Str("rule", rule.Description).
					Msg("Validation rule violated")
				return failed(logger, err)
			}
		}
	}
	return nil
}

func failed(logger zerolog.Logger, err error) error {
	code := errors.CodeOf(err)
	if code == "" {
		code = errors.CodeInvalidData
	}
	metrics.ValidationFailures.WithLabelValues(string(code)).Inc()
	logger.Warn().Err(err).Msg("Cluster validation failed")
	return err
}

// ValidateScaling validates the topology a scale operation would produce.
// existing and additional map node group IDs to their new counts; groups in
// neither keep their current count. The cluster itself is not modified.
func ValidateScaling(c *types.Cluster, registry *domain.Registry, lookup images.Lookup, existing, additional map[string]int) error {
	scaled := *c
	scaled.NodeGroups = make([]*types.NodeGroup, 0, len(c.NodeGroups))
	for _, ng := range c.NodeGroups {
		clone := *ng
		if count, ok := existing[ng.ID]; ok {
			clone.Count = count
		}
		if count, ok := additional[ng.ID]; ok {
			clone.Count = count
		}
		scaled.NodeGroups = append(scaled.NodeGroups, &clone)
	}

	for id := range existing {
		if c.NodeGroup(id) == nil {
			return errors.NotFound("Node group", id)
		}
	}
	for id := range additional {
		if c.NodeGroup(id) == nil {
			return errors.NotFound("Node group", id)
		}
	}

	ctx, err := cluster.New(&scaled, registry, lookup, nil, nil)
	if err != nil {
		return err
	}
	return Validate(ctx)
}
