package types

import (
	"time"
)

// RequestContext identifies the caller of a conductor operation
type RequestContext struct {
	TenantID string
	UserID   string
	IsAdmin  bool
}

// ClusterStatus is the provisioning state of a cluster. It is not a closed
// set: plugins and operators may record states of their own.
type ClusterStatus string

const (
	ClusterStatusUndefined       ClusterStatus = "undefined"
	ClusterStatusValidating      ClusterStatus = "Validating"
	ClusterStatusInfraUpdating   ClusterStatus = "InfraUpdating"
	ClusterStatusSpawning        ClusterStatus = "Spawning"
	ClusterStatusWaiting         ClusterStatus = "Waiting"
	ClusterStatusPreparing       ClusterStatus = "Preparing"
	ClusterStatusConfiguring     ClusterStatus = "Configuring"
	ClusterStatusStarting        ClusterStatus = "Starting"
	ClusterStatusActive          ClusterStatus = "Active"
	ClusterStatusScaling         ClusterStatus = "Scaling"
	ClusterStatusDecommissioning ClusterStatus = "Decommissioning"
	ClusterStatusDeleting        ClusterStatus = "Deleting"
	ClusterStatusError           ClusterStatus = "Error"
)

// Cluster is a provisioned (or provisioning) set of node groups
type Cluster struct {
	ID                       string                       `json:"id"`
	Name                     string                       `json:"name"`
	Description              string                       `json:"description,omitempty"`
	TenantID                 string                       `json:"tenant_id"`
	PluginName               string                       `json:"plugin_name"`
	HadoopVersion            string                       `json:"hadoop_version"`
	ClusterTemplateID        string                       `json:"cluster_template_id,omitempty"`
	DefaultImageID           string                       `json:"default_image_id,omitempty"`
	NeutronManagementNetwork string                       `json:"neutron_management_network,omitempty"`
	ClusterConfigs           Configs                      `json:"cluster_configs"`
	NodeGroups               []*NodeGroup                 `json:"node_groups"`
	AntiAffinity             []string                     `json:"anti_affinity"`
	Status                   ClusterStatus                `json:"status"`
	StatusDescription        string                       `json:"status_description"`
	Info                     map[string]map[string]string `json:"info"`
	RollbackInfo             map[string]interface{}       `json:"rollback_info"`
	SaharaInfo               map[string]interface{}       `json:"sahara_info"`
	ManagementPrivateKey     string                       `json:"management_private_key,omitempty"`
	ManagementPublicKey      string                       `json:"management_public_key,omitempty"`
	IsPublic                 bool                         `json:"is_public"`
	IsProtected              bool                         `json:"is_protected"`
	CreatedAt                time.Time                    `json:"created_at"`
	UpdatedAt                time.Time                    `json:"updated_at"`
}

// NodeGroup returns the node group with the given ID, or nil
func (c *Cluster) NodeGroup(id string) *NodeGroup {
	for _, ng := range c.NodeGroups {
		if ng.ID == id {
			return ng
		}
	}
	return nil
}

// Instances returns every instance of every node group in declaration order
func (c *Cluster) Instances() []*Instance {
	var instances []*Instance
	for _, ng := range c.NodeGroups {
		instances = append(instances, ng.Instances...)
	}
	return instances
}

// NodeGroup is a homogeneous set of instances inside a cluster
type NodeGroup struct {
	ID                      string      `json:"id"`
	Name                    string      `json:"name"`
	TenantID                string      `json:"tenant_id"`
	ClusterID               string      `json:"cluster_id,omitempty"`
	NodeGroupTemplateID     string      `json:"node_group_template_id,omitempty"`
	FlavorID                string      `json:"flavor_id"`
	ImageID                 string      `json:"image_id,omitempty"`
	NodeProcesses           []string    `json:"node_processes"`
	NodeConfigs             Configs     `json:"node_configs"`
	Count                   int         `json:"count"`
	VolumesPerNode          int         `json:"volumes_per_node"`
	VolumesSize             int         `json:"volumes_size"`
	VolumesAvailabilityZone *string     `json:"volumes_availability_zone"`
	VolumeMountPrefix       string      `json:"volume_mount_prefix"`
	VolumeType              *string     `json:"volume_type"`
	FloatingIPPool          *string     `json:"floating_ip_pool"`
	SecurityGroups          []string    `json:"security_groups"`
	AutoSecurityGroup       bool        `json:"auto_security_group"`
	AvailabilityZone        *string     `json:"availability_zone"`
	IsProxyGateway          bool        `json:"is_proxy_gateway"`
	VolumeLocalToInstance   bool        `json:"volume_local_to_instance"`
	Instances               []*Instance `json:"instances"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

// HasProcess reports whether the node group runs the named node process
func (ng *NodeGroup) HasProcess(process string) bool {
	for _, p := range ng.NodeProcesses {
		if p == process {
			return true
		}
	}
	return false
}

// Instance is a single virtual machine of a node group
type Instance struct {
	ID                   string    `json:"id"`
	NodeGroupID          string    `json:"node_group_id"`
	InstanceID           string    `json:"instance_id"`
	InstanceName         string    `json:"instance_name"`
	ManagementIP         string    `json:"management_ip"`
	InternalIP           string    `json:"internal_ip"`
	Volumes              []string  `json:"volumes"`
	StorageDevicesNumber int       `json:"storage_devices_number"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// FQDN returns the host name the instance is known by inside the cluster
func (i *Instance) FQDN() string {
	if i.InstanceName != "" {
		return i.InstanceName
	}
	return i.InternalIP
}

// ClusterTemplate is a reusable blueprint for clusters
type ClusterTemplate struct {
	ID                       string       `json:"id"`
	Name                     string       `json:"name"`
	Description              string       `json:"description,omitempty"`
	TenantID                 string       `json:"tenant_id"`
	PluginName               string       `json:"plugin_name"`
	HadoopVersion            string       `json:"hadoop_version"`
	DefaultImageID           string       `json:"default_image_id,omitempty"`
	NeutronManagementNetwork string       `json:"neutron_management_network,omitempty"`
	ClusterConfigs           Configs      `json:"cluster_configs"`
	NodeGroups               []*NodeGroup `json:"node_groups"`
	AntiAffinity             []string     `json:"anti_affinity"`
	IsDefault                bool         `json:"is_default"`
	IsPublic                 bool         `json:"is_public"`
	IsProtected              bool         `json:"is_protected"`
	CreatedAt                time.Time    `json:"created_at"`
	UpdatedAt                time.Time    `json:"updated_at"`
}

// NodeGroupTemplate is a reusable blueprint for node groups
type NodeGroupTemplate struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Description             string    `json:"description,omitempty"`
	TenantID                string    `json:"tenant_id"`
	PluginName              string    `json:"plugin_name"`
	HadoopVersion           string    `json:"hadoop_version"`
	FlavorID                string    `json:"flavor_id"`
	ImageID                 string    `json:"image_id,omitempty"`
	NodeProcesses           []string  `json:"node_processes"`
	NodeConfigs             Configs   `json:"node_configs"`
	VolumesPerNode          int       `json:"volumes_per_node"`
	VolumesSize             int       `json:"volumes_size"`
	VolumesAvailabilityZone *string   `json:"volumes_availability_zone"`
	VolumeMountPrefix       string    `json:"volume_mount_prefix"`
	VolumeType              *string   `json:"volume_type"`
	FloatingIPPool          *string   `json:"floating_ip_pool"`
	SecurityGroups          []string  `json:"security_groups"`
	AutoSecurityGroup       bool      `json:"auto_security_group"`
	AvailabilityZone        *string   `json:"availability_zone"`
	IsProxyGateway          bool      `json:"is_proxy_gateway"`
	VolumeLocalToInstance   bool      `json:"volume_local_to_instance"`
	IsDefault               bool      `json:"is_default"`
	IsPublic                bool      `json:"is_public"`
	IsProtected             bool      `json:"is_protected"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// DataSource describes an input or output location for EDP jobs
type DataSource struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	TenantID    string            `json:"tenant_id"`
	Type        string            `json:"type"`
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	Credentials map[string]string `json:"credentials"`
	IsPublic    bool              `json:"is_public"`
	IsProtected bool              `json:"is_protected"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Image is a registered boot image and its tags
type Image struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Username string   `json:"username" yaml:"username"`
	Tags     []string `json:"tags" yaml:"tags"`
}

// HasTag reports whether the image carries the given tag
func (i *Image) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Flavor is an instance size
type Flavor struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	VCPUs     int    `json:"vcpus" yaml:"vcpus"`
	RAM       int    `json:"ram" yaml:"ram"`
	Disk      int    `json:"disk" yaml:"disk"`
	Ephemeral int    `json:"ephemeral" yaml:"ephemeral"`
}

// ProvisionStep is the audit record of one orchestration step of a cluster
type ProvisionStep struct {
	ID             string            `json:"id"`
	ClusterID      string            `json:"cluster_id"`
	TenantID       string            `json:"tenant_id"`
	StepName       string            `json:"step_name"`
	StepType       string            `json:"step_type"`
	TotalInstances int               `json:"total"`
	Successful     *bool             `json:"successful"`
	Events         []*ProvisionEvent `json:"events"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ProvisionEvent records the outcome of a step on one instance
type ProvisionEvent struct {
	ID           string    `json:"id"`
	StepID       string    `json:"step_id"`
	InstanceID   string    `json:"instance_id"`
	InstanceName string    `json:"instance_name"`
	NodeGroupID  string    `json:"node_group_id"`
	Successful   bool      `json:"successful"`
	EventInfo    string    `json:"event_info,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
