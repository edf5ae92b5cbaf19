package storage

import (
	"github.com/cuemby/sahara/pkg/types"
)

// Store defines the interface for persisted provisioning state.
// Get methods return a NOT_FOUND coded error for missing objects.
type Store interface {
	// Clusters
	CreateCluster(cluster *types.Cluster) error
	GetCluster(id string) (*types.Cluster, error)
	ListClusters() ([]*types.Cluster, error)
	UpdateCluster(cluster *types.Cluster) error
	DeleteCluster(id string) error

	// Cluster templates
	CreateClusterTemplate(tmpl *types.ClusterTemplate) error
	GetClusterTemplate(id string) (*types.ClusterTemplate, error)
	ListClusterTemplates() ([]*types.ClusterTemplate, error)
	UpdateClusterTemplate(tmpl *types.ClusterTemplate) error
	DeleteClusterTemplate(id string) error

	// Node group templates
	CreateNodeGroupTemplate(tmpl *types.NodeGroupTemplate) error
	GetNodeGroupTemplate(id string) (*types.NodeGroupTemplate, error)
	ListNodeGroupTemplates() ([]*types.NodeGroupTemplate, error)
	UpdateNodeGroupTemplate(tmpl *types.NodeGroupTemplate) error
	DeleteNodeGroupTemplate(id string) error

	// Data sources
	CreateDataSource(ds *types.DataSource) error
	GetDataSource(id string) (*types.DataSource, error)
	ListDataSources() ([]*types.DataSource, error)
	DeleteDataSource(id string) error

	// Images and flavors
	PutImage(image *types.Image) error
	GetImage(id string) (*types.Image, error)
	ListImages() ([]*types.Image, error)
	PutFlavor(flavor *types.Flavor) error
	GetFlavor(id string) (*types.Flavor, error)
	ListFlavors() ([]*types.Flavor, error)

	// Provision steps
	CreateProvisionStep(step *types.ProvisionStep) error
	GetProvisionStep(id string) (*types.ProvisionStep, error)
	UpdateProvisionStep(step *types.ProvisionStep) error
	ListProvisionSteps(clusterID string) ([]*types.ProvisionStep, error)
	DeleteProvisionStep(id string) error

	// Utility
	Close() error
}
