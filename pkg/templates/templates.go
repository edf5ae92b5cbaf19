// Package templates maintains the default node group and cluster templates
// shipped with a plugin. Templates are read from a directory and created,
// updated or removed in bulk; a failed update is compensated by deleting
// what it created and restoring what it changed.
package templates

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/cuemby/sahara/pkg/conductor"
	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/metrics"
	"github.com/cuemby/sahara/pkg/types"
)

// Status is the outcome of one template in a bulk operation
type Status string

const (
	StatusCreated    Status = "created"
	StatusUpdated    Status = "updated"
	StatusUnchanged  Status = "unchanged"
	StatusSkipped    Status = "skipped"
	StatusInUse      Status = "in_use"
	StatusDeleted    Status = "deleted"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Outcome records what happened to one template
type Outcome struct {
	Kind   Kind
	Name   string
	ID     string
	Status Status
	Err    error
}

// Result summarises a bulk operation. Err combines every failure,
// including failed compensations.
type Result struct {
	Outcomes []*Outcome
	Error    bool
	Err      error
}

func (r *Result) add(o *Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	metrics.TemplatesApplied.WithLabelValues(string(o.Status)).Inc()
}

func (r *Result) fail(o *Outcome, err error) {
	o.Status = StatusFailed
	o.Err = err
	r.add(o)
	r.Error = true
	r.Err = multierr.Append(r.Err, fmt.Errorf("%s %s: %w", o.Kind, o.Name, err))
}

// Find returns the outcome for a template name, or nil
func (r *Result) Find(kind Kind, name string) *Outcome {
	for _, o := range r.Outcomes {
		if o.Kind == kind && o.Name == name {
			return o
		}
	}
	return nil
}

// Tool applies default templates through the conductor on behalf of one
// tenant
type Tool struct {
	conductor *conductor.Conductor
	rc        *types.RequestContext
	logger    zerolog.Logger
}

// New creates a tool acting as tenant
func New(c *conductor.Conductor, tenant string) *Tool {
	return &Tool{
		conductor: c,
		rc:        &types.RequestContext{TenantID: tenant},
		logger:    log.WithComponent("templates"),
	}
}

// change is a compensation to run if the batch fails
type change struct {
	kind Kind
	name string
	id   string
	old  types.Values // nil for creations
}

type batch struct {
	*Tool
	result  *Result
	changes []change
	ngIDs   map[string]string
}

// Update creates or updates every template in templates. Node group
// templates are processed first so that cluster templates can refer to
// them by "{name}" placeholders. A same-named template that is not a
// default is left alone, and a default template still in use is reported
// as InUse. The first failure stops the batch and undoes its changes.
func (t *Tool) Update(ctx context.Context, templates []*Template) *Result {
	b := &batch{Tool: t, result: &Result{}, ngIDs: make(map[string]string)}

	for _, kind := range []Kind{KindNodeGroup, KindCluster} {
		for _, tmpl := range templates {
			if tmpl.Kind != kind {
				continue
			}
			if err := b.apply(ctx, tmpl); err != nil {
				b.result.fail(&Outcome{Kind: tmpl.Kind, Name: tmpl.Name}, err)
				t.logger.Error().Err(err).Str("template", tmpl.Name).Str("path", tmpl.Path).
					Msg("Failed to apply default template, rolling back")
				b.rollback(ctx)
				return b.result
			}
		}
	}
	return b.result
}

func (b *batch) apply(ctx context.Context, tmpl *Template) error {
	values := types.Values{}
	for k, v := range tmpl.Values {
		values[k] = v
	}
	values["is_default"] = true

	if tmpl.Kind == KindCluster {
		if err := b.substitute(ctx, tmpl, values); err != nil {
			return err
		}
	}

	existing, err := b.findByName(ctx, tmpl.Kind, tmpl.Name, tmpl.PluginName, tmpl.HadoopVersion)
	if err != nil {
		return err
	}
	if existing == nil {
		id, err := b.create(ctx, tmpl.Kind, values)
		if err != nil {
			return err
		}
		b.changes = append(b.changes, change{kind: tmpl.Kind, name: tmpl.Name, id: id})
		b.done(tmpl, id, StatusCreated)
		return nil
	}

	if !existing.isDefault {
		b.logger.Warn().Str("template", tmpl.Name).Str("id", existing.id).
			Msg("A non-default template with the same name exists, skipping")
		b.done(tmpl, existing.id, StatusSkipped)
		return nil
	}
	if containsValues(existing.values, normalize(values)) {
		b.done(tmpl, existing.id, StatusUnchanged)
		return nil
	}

	inUse, err := b.inUse(tmpl.Kind, existing.id)
	if err != nil {
		return err
	}
	if inUse {
		b.logger.Info().Str("template", tmpl.Name).Str("id", existing.id).
			Msg("Default template is in use, skipping update")
		b.done(tmpl, existing.id, StatusInUse)
		return nil
	}

	if err := b.update(ctx, tmpl.Kind, existing.id, values); err != nil {
		return err
	}
	b.changes = append(b.changes, change{kind: tmpl.Kind, name: tmpl.Name, id: existing.id, old: restorable(existing.values)})
	b.done(tmpl, existing.id, StatusUpdated)
	return nil
}

func (b *batch) done(tmpl *Template, id string, status Status) {
	if tmpl.Kind == KindNodeGroup {
		b.ngIDs[tmpl.Name] = id
	}
	b.result.add(&Outcome{Kind: tmpl.Kind, Name: tmpl.Name, ID: id, Status: status})
}

var placeholder = regexp.MustCompile(`^\{(.+)\}$`)

// substitute replaces "{name}" node group template references with ids,
// preferring templates of the current batch over existing defaults
func (b *batch) substitute(ctx context.Context, tmpl *Template, values types.Values) error {
	raw, ok := values["node_groups"].([]interface{})
	if !ok {
		return errors.InvalidData(fmt.Sprintf("cluster template %s has malformed node_groups", tmpl.Name))
	}
	nodeGroups := make([]interface{}, 0, len(raw))
	for _, entry := range raw {
		ng, ok := asValues(entry)
		if !ok {
			return errors.InvalidData(fmt.Sprintf("cluster template %s has malformed node_groups", tmpl.Name))
		}
		copied := types.Values{}
		for k, v := range ng {
			copied[k] = v
		}
		if ref, _ := ng["node_group_template_id"].(string); ref != "" {
			if m := placeholder.FindStringSubmatch(ref); m != nil {
				id, err := b.resolveNodeGroup(ctx, m[1], tmpl)
				if err != nil {
					return err
				}
				copied["node_group_template_id"] = id
			}
		}
		nodeGroups = append(nodeGroups, map[string]interface{}(copied))
	}
	values["node_groups"] = nodeGroups
	return nil
}

func (b *batch) resolveNodeGroup(ctx context.Context, name string, tmpl *Template) (string, error) {
	if id, ok := b.ngIDs[name]; ok {
		return id, nil
	}
	existing, err := b.findByName(ctx, KindNodeGroup, name, tmpl.PluginName, tmpl.HadoopVersion)
	if err != nil {
		return "", err
	}
	if existing == nil || !existing.isDefault {
		return "", errors.NotFound("Node group template", name).
			WithDetail("cluster_template", tmpl.Name)
	}
	return existing.id, nil
}

// rollback deletes the templates the batch created and restores the ones it
// updated, newest first
func (b *batch) rollback(ctx context.Context) {
	for i := len(b.changes) - 1; i >= 0; i-- {
		c := b.changes[i]
		var err error
		if c.old == nil {
			err = b.destroy(ctx, c.kind, c.id)
		} else {
			err = b.update(ctx, c.kind, c.id, c.old)
		}
		if err != nil {
			b.result.Err = multierr.Append(b.result.Err, fmt.Errorf("rollback of %s %s: %w", c.kind, c.name, err))
			b.logger.Error().Err(err).Str("template", c.name).Msg("Failed to roll back template")
			continue
		}
		if o := b.result.Find(c.kind, c.name); o != nil {
			o.Status = StatusRolledBack
		}
		metrics.TemplatesApplied.WithLabelValues(string(StatusRolledBack)).Inc()
	}
}

// restorable strips the fields an update must not carry from a stored
// template document
func restorable(values types.Values) types.Values {
	out := types.Values{}
	for k, v := range values {
		switch k {
		case "id", "created_at", "updated_at", "tenant_id":
			continue
		}
		out[k] = v
	}
	return out
}

// normalize passes values through the same encoding stored templates go
// through, so numbers and nested documents compare equal
func normalize(values types.Values) types.Values {
	var out types.Values
	if err := types.Decode(values, &out); err != nil {
		return values
	}
	return out
}

// containsValues reports whether every field of want is present in have
// with the same value. Nested documents and lists are compared the same
// way, so fields the store adds (ids, timestamps, resolved defaults) are
// ignored.
func containsValues(have, want interface{}) bool {
	switch w := want.(type) {
	case map[string]interface{}:
		h, ok := have.(map[string]interface{})
		if !ok {
			return false
		}
		for k, v := range w {
			if !containsValues(h[k], v) {
				return false
			}
		}
		return true
	case types.Values:
		if h, ok := have.(types.Values); ok {
			have = map[string]interface{}(h)
		}
		return containsValues(have, map[string]interface{}(w))
	case []interface{}:
		h, ok := have.([]interface{})
		if !ok || len(h) != len(w) {
			return false
		}
		for i := range w {
			if !containsValues(h[i], w[i]) {
				return false
			}
		}
		return true
	}
	return cmp.Equal(have, want)
}

func asValues(v interface{}) (types.Values, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case types.Values:
		return m, true
	}
	return nil, false
}
