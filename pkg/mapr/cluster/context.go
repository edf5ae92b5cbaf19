// Package cluster builds the read-only view of a MapR cluster that
// validation and the lifecycle orchestrator work against.
package cluster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/images"
	"github.com/cuemby/sahara/pkg/mapr/domain"
	"github.com/cuemby/sahara/pkg/types"
)

// SwiftService is the service every MapR cluster carries implicitly
const SwiftService = "Swift"

// DefaultRack is the rack of instances whose node group names none
const DefaultRack = "/default-rack"

// Context is an immutable snapshot of a cluster, its resolved services and
// the instances a provisioning operation adds or removes. A membership
// change produces a new Context through WithMembership.
type Context struct {
	cluster  *types.Cluster
	registry *domain.Registry
	lookup   images.Lookup
	services []*domain.Service
	added    map[string]bool
	removed  map[string]bool
}

var _ domain.Topology = (*Context)(nil)

// New resolves the services of cluster against registry. added and removed
// are the instances the current operation brings in or takes out; both may
// be nil.
func New(cluster *types.Cluster, registry *domain.Registry, lookup images.Lookup, added, removed []*types.Instance) (*Context, error) {
	services, err := resolveServices(cluster, registry)
	if err != nil {
		return nil, err
	}
	return &Context{
		cluster:  cluster,
		registry: registry,
		lookup:   lookup,
		services: services,
		added:    instanceSet(added),
		removed:  instanceSet(removed),
	}, nil
}

// WithMembership returns a context for the same registry built from a
// changed cluster
func (c *Context) WithMembership(cluster *types.Cluster, added, removed []*types.Instance) (*Context, error) {
	return New(cluster, c.registry, c.lookup, added, removed)
}

func instanceSet(instances []*types.Instance) map[string]bool {
	set := make(map[string]bool, len(instances))
	for _, i := range instances {
		set[i.ID] = true
	}
	return set
}

// resolveServices maps every process the node groups run to its owning
// service. A version pinned in the cluster configs wins over the latest
// declared one.
func resolveServices(cluster *types.Cluster, registry *domain.Registry) ([]*domain.Service, error) {
	var names []string
	seen := make(map[string]bool)
	for _, ng := range cluster.NodeGroups {
		for _, process := range ng.NodeProcesses {
			name, ok := registry.ServiceNameByProcess(process)
			if !ok {
				return nil, errors.InvalidData("Service not found in services list").
					WithDetail("process", process)
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	services := make([]*domain.Service, 0, len(names)+1)
	for _, name := range names {
		s, err := resolveVersion(cluster, registry, name)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}

	if swift, ok := registry.Latest(SwiftService); ok && !seen[SwiftService] {
		services = append(services, swift)
	}
	return services, nil
}

func resolveVersion(cluster *types.Cluster, registry *domain.Registry, name string) (*domain.Service, error) {
	pinned, ok := cluster.ClusterConfigs.GetString(name, domain.VersionConfigName(name))
	if !ok || pinned == "" {
		s, _ := registry.Latest(name)
		return s, nil
	}
	s, ok := registry.Get(name, pinned)
	if !ok {
		return nil, errors.InvalidData("Can not map service").
			WithDetail("service", name).
			WithDetail("version", pinned)
	}
	return s, nil
}

// Cluster returns the cluster the context was built from
func (c *Context) Cluster() *types.Cluster {
	return c.cluster
}

// Registry returns the service catalogue of the cluster's plugin version
func (c *Context) Registry() *domain.Registry {
	return c.registry
}

// NodeGroups returns the node groups of the cluster
func (c *Context) NodeGroups() []*types.NodeGroup {
	return c.cluster.NodeGroups
}

// NodeGroup returns the node group an instance belongs to
func (c *Context) NodeGroup(instance *types.Instance) *types.NodeGroup {
	return c.cluster.NodeGroup(instance.NodeGroupID)
}

// ClusterServices returns the resolved services in process order, Swift
// last
func (c *Context) ClusterServices() []*domain.Service {
	return append([]*domain.Service(nil), c.services...)
}

// RequiredServices returns the services every cluster of the plugin
// version must run
func (c *Context) RequiredServices() []*domain.Service {
	return c.registry.RequiredServices()
}

// HasService reports whether the cluster runs the service. A key without a
// version matches any version.
func (c *Context) HasService(key domain.ServiceKey) bool {
	for _, s := range c.services {
		if s.UIName != key.UIName {
			continue
		}
		if key.Version == "" || s.Version == key.Version {
			return true
		}
	}
	return false
}

// Service returns the resolved service with the given UI name
func (c *Context) Service(uiName string) (*domain.Service, bool) {
	for _, s := range c.services {
		if s.UIName == uiName {
			return s, true
		}
	}
	return nil, false
}

// InstancesCount sums the counts of the node groups hosting process
func (c *Context) InstancesCount(process string) int {
	count := 0
	for _, ng := range c.cluster.NodeGroups {
		if ng.HasProcess(process) {
			count += ng.Count
		}
	}
	return count
}

// ProcessInstances returns the instances of the node groups hosting
// process, skipping those being removed
func (c *Context) ProcessInstances(process string) []*types.Instance {
	var out []*types.Instance
	for _, ng := range c.cluster.NodeGroups {
		if !ng.HasProcess(process) {
			continue
		}
		for _, i := range ng.Instances {
			if !c.removed[i.ID] {
				out = append(out, i)
			}
		}
	}
	return out
}

// ProcessHosts returns the host names of ProcessInstances
func (c *Context) ProcessHosts(process string) []string {
	instances := c.ProcessInstances(process)
	hosts := make([]string, 0, len(instances))
	for _, i := range instances {
		hosts = append(hosts, i.FQDN())
	}
	return hosts
}

// FirstHost returns a host running process, or "" when there is none
func (c *Context) FirstHost(process string) string {
	hosts := c.ProcessHosts(process)
	if len(hosts) == 0 {
		return ""
	}
	return hosts[0]
}

// ConnectString joins the hosts of process with port
func (c *Context) ConnectString(process string, port int) string {
	hosts := c.ProcessHosts(process)
	parts := make([]string, 0, len(hosts))
	for _, h := range hosts {
		parts = append(parts, fmt.Sprintf("%s:%d", h, port))
	}
	return strings.Join(parts, ",")
}

// CLDBHosts returns the hosts of the container location database
func (c *Context) CLDBHosts() []string {
	return c.ProcessHosts(domain.ProcessCLDB)
}

// ZooKeeperHosts returns the hosts of the ZooKeeper quorum
func (c *Context) ZooKeeperHosts() []string {
	return c.ProcessHosts(domain.ProcessZooKeeper)
}

// ResourceManagerHosts returns the hosts of the YARN resource managers
func (c *Context) ResourceManagerHosts() []string {
	return c.ProcessHosts(domain.ProcessResourceManager)
}

// HistoryServerHost returns the host of the job history server
func (c *Context) HistoryServerHost() string {
	return c.FirstHost(domain.ProcessHistoryServer)
}

// AllInstances returns every instance of the cluster
func (c *Context) AllInstances() []*types.Instance {
	return c.cluster.Instances()
}

// AddedInstances returns the instances the operation brings in
func (c *Context) AddedInstances() []*types.Instance {
	return c.filter(func(i *types.Instance) bool { return c.added[i.ID] })
}

// RemovedInstances returns the instances the operation takes out
func (c *Context) RemovedInstances() []*types.Instance {
	return c.filter(func(i *types.Instance) bool { return c.removed[i.ID] })
}

// ExistingInstances returns the instances neither added nor removed
func (c *Context) ExistingInstances() []*types.Instance {
	return c.filter(func(i *types.Instance) bool { return !c.added[i.ID] && !c.removed[i.ID] })
}

// RemainingInstances returns every instance not being removed
func (c *Context) RemainingInstances() []*types.Instance {
	return c.filter(func(i *types.Instance) bool { return !c.removed[i.ID] })
}

func (c *Context) filter(keep func(*types.Instance) bool) []*types.Instance {
	var out []*types.Instance
	for _, i := range c.cluster.Instances() {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

// InstanceProcesses returns the processes an instance runs
func (c *Context) InstanceProcesses(instance *types.Instance) []string {
	ng := c.NodeGroup(instance)
	if ng == nil {
		return nil
	}
	return ng.NodeProcesses
}

// InstanceServices returns the cluster services hosted on an instance.
// Services without processes run everywhere.
func (c *Context) InstanceServices(instance *types.Instance) []*domain.Service {
	processes := c.InstanceProcesses(instance)
	var out []*domain.Service
	for _, s := range c.services {
		if len(s.Processes) == 0 || s.HostedBy(processes) {
			out = append(out, s)
		}
	}
	return out
}

// IsControlNode reports whether instance runs a control process
func (c *Context) IsControlNode(instance *types.Instance) bool {
	for _, p := range c.InstanceProcesses(instance) {
		if domain.IsControlProcess(p) {
			return true
		}
	}
	return false
}

// HasControlNodes reports whether any of instances is a control node
func (c *Context) HasControlNodes(instances []*types.Instance) bool {
	for _, i := range instances {
		if c.IsControlNode(i) {
			return true
		}
	}
	return false
}

// NodeGroupImage returns the image a node group boots from
func (c *Context) NodeGroupImage(ng *types.NodeGroup) (*types.Image, error) {
	return images.NodeGroupImage(c.lookup, c.cluster, ng)
}

// NodeGroupFlavor returns the flavor of a node group
func (c *Context) NodeGroupFlavor(ng *types.NodeGroup) (*types.Flavor, error) {
	return c.lookup.GetFlavor(ng.FlavorID)
}

// ConfigValue returns a cluster config value, falling back to the default
// of the registry option with the same target and name
func (c *Context) ConfigValue(target, name string) (interface{}, bool) {
	if v, ok := c.cluster.ClusterConfigs.Get(target, name); ok {
		return v, true
	}
	for _, opt := range c.registry.Configs() {
		if opt.Target == target && opt.Name == name {
			return opt.Default, opt.Default != nil
		}
	}
	return nil, false
}

// ConfigString is ConfigValue formatted as a string
func (c *Context) ConfigString(target, name string) string {
	v, ok := c.ConfigValue(target, name)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// Rack returns the rack of an instance as configured on its node group
func (c *Context) Rack(instance *types.Instance) string {
	if ng := c.NodeGroup(instance); ng != nil {
		if rack, ok := ng.NodeConfigs.GetString("general", "rack"); ok && rack != "" {
			return rack
		}
	}
	return DefaultRack
}

// TopologyData renders the internal-address to rack map read by MapR-FS,
// one "address rack" pair per line in address order
func (c *Context) TopologyData(instances []*types.Instance) string {
	lines := make([]string, 0, len(instances))
	for _, i := range instances {
		lines = append(lines, fmt.Sprintf("%s %s", i.InternalIP, c.Rack(i)))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}

// WebUIInfo returns the operator endpoints of the cluster services keyed by
// service and label, in the shape of the cluster info document
func (c *Context) WebUIInfo() map[string]map[string]string {
	info := make(map[string]map[string]string)
	for _, s := range c.services {
		for _, ui := range s.WebUIs {
			hosts := c.ProcessHosts(ui.Process)
			if len(hosts) == 0 {
				continue
			}
			urls := make([]string, 0, len(hosts))
			for _, h := range hosts {
				urls = append(urls, ui.URL(h))
			}
			if info[s.UIName] == nil {
				info[s.UIName] = make(map[string]string)
			}
			info[s.UIName][ui.Label] = strings.Join(urls, ", ")
		}
	}
	return info
}
