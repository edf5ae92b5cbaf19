package manager

import (
	"encoding/json"

	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/types"
)

var _ storage.Store = (*Manager)(nil)

func (m *Manager) put(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: OpPut, Bucket: bucket, Key: key, Data: data})
}

func (m *Manager) delete(bucket, key string) error {
	return m.Apply(Command{Op: OpDelete, Bucket: bucket, Key: key})
}

// Cluster operations
func (m *Manager) CreateCluster(cluster *types.Cluster) error {
	return m.put(storage.BucketClusters, cluster.ID, cluster)
}

func (m *Manager) GetCluster(id string) (*types.Cluster, error) {
	return m.store.GetCluster(id)
}

func (m *Manager) ListClusters() ([]*types.Cluster, error) {
	return m.store.ListClusters()
}

func (m *Manager) UpdateCluster(cluster *types.Cluster) error {
	return m.CreateCluster(cluster)
}

func (m *Manager) DeleteCluster(id string) error {
	return m.delete(storage.BucketClusters, id)
}

// Cluster template operations
func (m *Manager) CreateClusterTemplate(tmpl *types.ClusterTemplate) error {
	return m.put(storage.BucketClusterTemplates, tmpl.ID, tmpl)
}

func (m *Manager) GetClusterTemplate(id string) (*types.ClusterTemplate, error) {
	return m.store.GetClusterTemplate(id)
}

func (m *Manager) ListClusterTemplates() ([]*types.ClusterTemplate, error) {
	return m.store.ListClusterTemplates()
}

func (m *Manager) UpdateClusterTemplate(tmpl *types.ClusterTemplate) error {
	return m.CreateClusterTemplate(tmpl)
}

func (m *Manager) DeleteClusterTemplate(id string) error {
	return m.delete(storage.BucketClusterTemplates, id)
}

// Node group template operations
func (m *Manager) CreateNodeGroupTemplate(tmpl *types.NodeGroupTemplate) error {
	return m.put(storage.BucketNodeGroupTemplates, tmpl.ID, tmpl)
}

func (m *Manager) GetNodeGroupTemplate(id string) (*types.NodeGroupTemplate, error) {
	return m.store.GetNodeGroupTemplate(id)
}

func (m *Manager) ListNodeGroupTemplates() ([]*types.NodeGroupTemplate, error) {
	return m.store.ListNodeGroupTemplates()
}

func (m *Manager) UpdateNodeGroupTemplate(tmpl *types.NodeGroupTemplate) error {
	return m.CreateNodeGroupTemplate(tmpl)
}

func (m *Manager) DeleteNodeGroupTemplate(id string) error {
	return m.delete(storage.BucketNodeGroupTemplates, id)
}

// Data source operations
func (m *Manager) CreateDataSource(ds *types.DataSource) error {
	return m.put(storage.BucketDataSources, ds.ID, ds)
}

func (m *Manager) GetDataSource(id string) (*types.DataSource, error) {
	return m.store.GetDataSource(id)
}

func (m *Manager) ListDataSources() ([]*types.DataSource, error) {
	return m.store.ListDataSources()
}

func (m *Manager) DeleteDataSource(id string) error {
	return m.delete(storage.BucketDataSources, id)
}

// Image and flavor operations
func (m *Manager) PutImage(image *types.Image) error {
	return m.put(storage.BucketImages, image.ID, image)
}

func (m *Manager) GetImage(id string) (*types.Image, error) {
	return m.store.GetImage(id)
}

func (m *Manager) ListImages() ([]*types.Image, error) {
	return m.store.ListImages()
}

func (m *Manager) PutFlavor(flavor *types.Flavor) error {
	return m.put(storage.BucketFlavors, flavor.ID, flavor)
}

func (m *Manager) GetFlavor(id string) (*types.Flavor, error) {
	return m.store.GetFlavor(id)
}

func (m *Manager) ListFlavors() ([]*types.Flavor, error) {
	return m.store.ListFlavors()
}

// Provision step operations
func (m *Manager) CreateProvisionStep(step *types.ProvisionStep) error {
	return m.put(storage.BucketProvisionSteps, step.ID, step)
}

func (m *Manager) GetProvisionStep(id string) (*types.ProvisionStep, error) {
	return m.store.GetProvisionStep(id)
}

func (m *Manager) UpdateProvisionStep(step *types.ProvisionStep) error {
	return m.CreateProvisionStep(step)
}

func (m *Manager) ListProvisionSteps(clusterID string) ([]*types.ProvisionStep, error) {
	return m.store.ListProvisionSteps(clusterID)
}

func (m *Manager) DeleteProvisionStep(id string) error {
	return m.delete(storage.BucketProvisionSteps, id)
}

// Close shuts the manager down
func (m *Manager) Close() error {
	return m.Shutdown()
}
