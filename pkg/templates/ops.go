package templates

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/types"
)

// Entry is a default template as listed
type Entry struct {
	Kind          Kind
	ID            string
	Name          string
	HadoopVersion string
}

// List returns the default templates matching filter, node group templates
// first, each family sorted by version and name
func (t *Tool) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var out []Entry
	for _, kind := range []Kind{KindNodeGroup, KindCluster} {
		defaults, err := t.defaults(ctx, kind, filter)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(defaults))
		for _, s := range defaults {
			entries = append(entries, Entry{Kind: kind, ID: s.id, Name: s.name, HadoopVersion: s.version})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].HadoopVersion != entries[j].HadoopVersion {
				return entries[i].HadoopVersion < entries[j].HadoopVersion
			}
			return entries[i].Name < entries[j].Name
		})
		out = append(out, entries...)
	}
	return out, nil
}

func (t *Tool) defaults(ctx context.Context, kind Kind, filter Filter) ([]*stored, error) {
	filters := types.Values{"is_default": true}
	if filter.PluginName != "" {
		filters["plugin_name"] = filter.PluginName
	}
	all, err := t.list(ctx, kind, filters)
	if err != nil {
		return nil, err
	}
	var out []*stored
	for _, s := range all {
		if filter.Match(filter.PluginName, s.version) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Delete removes one default template given its id or name. Names may
// match templates of several versions; all of them are removed. Cluster
// templates go before node group templates so references are released
// first.
func (t *Tool) Delete(ctx context.Context, filter Filter, nameOrID string) *Result {
	result := &Result{}
	found := false
	for _, kind := range []Kind{KindCluster, KindNodeGroup} {
		all, err := t.list(ctx, kind, nil)
		if err != nil {
			result.fail(&Outcome{Kind: kind, Name: nameOrID}, err)
			return result
		}
		for _, s := range all {
			if s.id != nameOrID && s.name != nameOrID {
				continue
			}
			if pluginName, _ := s.values["plugin_name"].(string); !filter.Match(pluginName, s.version) {
				continue
			}
			found = true
			if !s.isDefault {
				result.fail(&Outcome{Kind: kind, Name: s.name, ID: s.id},
					errors.DeletionFailed(fmt.Sprintf("Template '%s' is not a default template", s.name)))
				continue
			}
			t.remove(ctx, result, s)
		}
	}
	if !found {
		result.fail(&Outcome{Name: nameOrID}, errors.NotFound("Template", nameOrID))
	}
	return result
}

// Prune removes the default templates matching filter that are not part
// of loaded. Templates still in use are kept and reported as InUse.
func (t *Tool) Prune(ctx context.Context, filter Filter, loaded []*Template) *Result {
	keep := make(map[string]bool, len(loaded))
	for _, tmpl := range loaded {
		keep[pruneKey(tmpl.Kind, tmpl.Name, tmpl.HadoopVersion)] = true
	}

	result := &Result{}
	for _, kind := range []Kind{KindCluster, KindNodeGroup} {
		defaults, err := t.defaults(ctx, kind, filter)
		if err != nil {
			result.fail(&Outcome{Kind: kind}, err)
			return result
		}
		for _, s := range defaults {
			if keep[pruneKey(kind, s.name, s.version)] {
				continue
			}
			t.remove(ctx, result, s)
		}
	}
	return result
}

func pruneKey(kind Kind, name, version string) string {
	return string(kind) + "/" + version + "/" + name
}

func (t *Tool) remove(ctx context.Context, result *Result, s *stored) {
	outcome := &Outcome{Kind: s.kind, Name: s.name, ID: s.id}
	inUse, err := t.inUse(s.kind, s.id)
	if err != nil {
		result.fail(outcome, err)
		return
	}
	if inUse {
		outcome.Status = StatusInUse
		result.add(outcome)
		t.logger.Info().Str("template", s.name).Str("id", s.id).Msg("Default template is in use, not deleting")
		return
	}
	if err := t.destroy(ctx, s.kind, s.id); err != nil {
		result.fail(outcome, err)
		return
	}
	outcome.Status = StatusDeleted
	result.add(outcome)
	t.logger.Info().Str("template", s.name).Str("id", s.id).Msg("Default template deleted")
}
