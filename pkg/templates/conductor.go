package templates

import (
	"context"
	"fmt"

	"github.com/cuemby/sahara/pkg/conductor"
	"github.com/cuemby/sahara/pkg/types"
)

// stored is a template as currently persisted
type stored struct {
	kind      Kind
	id        string
	name      string
	version   string
	isDefault bool
	values    types.Values
}

func (t *Tool) list(ctx context.Context, kind Kind, filters types.Values) ([]*stored, error) {
	var out []*stored
	switch kind {
	case KindNodeGroup:
		all, err := t.conductor.NodeGroupTemplateGetAll(ctx, t.rc, filters)
		if err != nil {
			return nil, err
		}
		for _, ngt := range all {
			values, err := types.Encode(ngt)
			if err != nil {
				return nil, err
			}
			out = append(out, &stored{kind: kind, id: ngt.ID, name: ngt.Name, version: ngt.HadoopVersion, isDefault: ngt.IsDefault, values: values})
		}
	case KindCluster:
		all, err := t.conductor.ClusterTemplateGetAll(ctx, t.rc, filters)
		if err != nil {
			return nil, err
		}
		for _, ct := range all {
			values, err := types.Encode(ct)
			if err != nil {
				return nil, err
			}
			out = append(out, &stored{kind: kind, id: ct.ID, name: ct.Name, version: ct.HadoopVersion, isDefault: ct.IsDefault, values: values})
		}
	default:
		return nil, fmt.Errorf("unknown template kind %q", kind)
	}
	return out, nil
}

func (t *Tool) findByName(ctx context.Context, kind Kind, name, pluginName, version string) (*stored, error) {
	found, err := t.list(ctx, kind, types.Values{
		"name":           name,
		"plugin_name":    pluginName,
		"hadoop_version": version,
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	// A default template wins over same-named tenant templates
	for _, s := range found {
		if s.isDefault {
			return s, nil
		}
	}
	return found[0], nil
}

func (t *Tool) create(ctx context.Context, kind Kind, values types.Values) (string, error) {
	switch kind {
	case KindNodeGroup:
		if err := conductor.ValidateNodeGroupTemplate(values); err != nil {
			return "", err
		}
		ngt, err := t.conductor.NodeGroupTemplateCreate(ctx, t.rc, values)
		if err != nil {
			return "", err
		}
		return ngt.ID, nil
	default:
		if err := conductor.ValidateClusterTemplate(values); err != nil {
			return "", err
		}
		ct, err := t.conductor.ClusterTemplateCreate(ctx, t.rc, values)
		if err != nil {
			return "", err
		}
		return ct.ID, nil
	}
}

func (t *Tool) update(ctx context.Context, kind Kind, id string, values types.Values) error {
	var err error
	switch kind {
	case KindNodeGroup:
		if err = conductor.ValidateNodeGroupTemplate(values); err != nil {
			return err
		}
		_, err = t.conductor.NodeGroupTemplateUpdate(ctx, t.rc, id, values, true)
	default:
		if err = conductor.ValidateClusterTemplate(values); err != nil {
			return err
		}
		_, err = t.conductor.ClusterTemplateUpdate(ctx, t.rc, id, values, true)
	}
	return err
}

func (t *Tool) destroy(ctx context.Context, kind Kind, id string) error {
	if kind == KindNodeGroup {
		return t.conductor.NodeGroupTemplateDestroy(ctx, t.rc, id, true)
	}
	return t.conductor.ClusterTemplateDestroy(ctx, t.rc, id, true)
}

func (t *Tool) inUse(kind Kind, id string) (bool, error) {
	if kind == KindNodeGroup {
		return t.conductor.NodeGroupTemplateInUse(id)
	}
	return t.conductor.ClusterTemplateInUse(id)
}
