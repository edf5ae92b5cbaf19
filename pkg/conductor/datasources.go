package conductor

import (
	"context"
	"fmt"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/types"
)

// DataSourceCreate persists a data source. Credentials are sealed when a
// secrets manager is configured.
func (c *Conductor) DataSourceCreate(ctx context.Context, rc *types.RequestContext, values types.Values) (*types.DataSource, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	merged := ApplyDefaults(values, dataSourceDefaults)
	merged["tenant_id"] = tenantOf(rc)

	var ds types.DataSource
	if err := types.Decode(merged, &ds); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidData, "malformed data source")
	}
	now := c.now()
	ds.ID = c.newID()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	stored := ds
	if c.secrets != nil {
		sealed, err := c.secrets.SealCredentials(ds.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to seal credentials: %w", err)
		}
		stored.Credentials = sealed
	}
	if err := c.store.CreateDataSource(&stored); err != nil {
		return nil, err
	}
	return &ds, nil
}

// DataSourceGet returns a data source with its credentials opened
func (c *Conductor) DataSourceGet(ctx context.Context, rc *types.RequestContext, id string) (*types.DataSource, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	ds, err := c.store.GetDataSource(id)
	if err != nil {
		return nil, err
	}
	if !visible(rc, ds.TenantID, ds.IsPublic) {
		return nil, errors.NotFound("Data source", id)
	}
	if c.secrets != nil {
		opened, err := c.secrets.OpenCredentials(ds.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to open credentials: %w", err)
		}
		ds.Credentials = opened
	}
	return ds, nil
}

// DataSourceDestroy removes a data source
func (c *Conductor) DataSourceDestroy(ctx context.Context, rc *types.RequestContext, id string) error {
	ds, err := c.DataSourceGet(ctx, rc, id)
	if err != nil {
		return err
	}
	if err := protectedFromDeletion("Data source", id, ds.IsProtected, false, false); err != nil {
		return err
	}
	return c.store.DeleteDataSource(id)
}
