package domain

import (
	"fmt"

	"github.com/cuemby/sahara/pkg/types"
)

// ServiceKey is the identity of a service: two descriptors with the same
// UI name and version are the same service.
type ServiceKey struct {
	UIName  string
	Version string
}

func (k ServiceKey) String() string {
	if k.Version == "" {
		return k.UIName
	}
	return k.UIName + " " + k.Version
}

// HookKind selects the post-install behaviour of a service
type HookKind int

const (
	HookNone HookKind = iota
	HookMapRFS
	HookHive
	HookOozie
	HookSpark
	HookHue
	HookSwift
)

// Topology is the read-only view of a cluster that validation rules and
// config rendering work against.
type Topology interface {
	Cluster() *types.Cluster
	NodeGroups() []*types.NodeGroup
	// InstancesCount sums the node group counts of groups hosting process
	InstancesCount(process string) int
	// ProcessHosts returns the host names of instances running process
	ProcessHosts(process string) []string
	ClusterServices() []*Service
	RequiredServices() []*Service
	HasService(key ServiceKey) bool
	NodeGroupImage(ng *types.NodeGroup) (*types.Image, error)
	NodeGroupFlavor(ng *types.NodeGroup) (*types.Flavor, error)
}

// Rule is a single validation predicate of a service
type Rule struct {
	Description string
	Check       func(Topology) error
}

// ConfigOption is a user-visible plugin configuration
type ConfigOption struct {
	Name        string
	Target      string
	Scope       string
	Type        string
	Default     interface{}
	Choices     []string
	Description string
	// File is the remote path of the config file the option is written to.
	// Empty for options that are only read by the orchestrator.
	File string
}

// Config option scopes and types
const (
	ScopeCluster = "cluster"
	ScopeNode    = "node"

	TypeString   = "string"
	TypeInt      = "int"
	TypeBool     = "bool"
	TypeDropdown = "dropdown"
)

// ConfigFileSpec describes a config file a service owns on its instances
type ConfigFileSpec struct {
	Path     string
	Format   FileFormat
	Defaults map[string]string
	// Dynamic computes values from the cluster topology, such as the host
	// names of other services.
	Dynamic func(Topology) map[string]string
}

// WebUI is an operator-facing endpoint of a node process
type WebUI struct {
	Label   string
	Process string
	Scheme  string
	Port    int
}

// URL returns the endpoint address on host
func (w WebUI) URL(host string) string {
	return fmt.Sprintf("%s://%s:%d", w.Scheme, host, w.Port)
}

// Service is an immutable descriptor of one installable component version
type Service struct {
	Name      string
	UIName    string
	Version   string
	Processes []NodeProcess
	// ExtraPackages are installed on every instance hosting the service
	// in addition to the process packages.
	ExtraPackages []string
	// Dependencies name services (by UI name) that are installed first
	// whenever they are part of the same cluster.
	Dependencies []string
	Rules        []Rule
	Configs      []ConfigOption
	Files        []ConfigFileSpec
	WebUIs       []WebUI
	Hook         HookKind
	// Databases are created on the cluster MySQL server for this service
	Databases []string
}

// Key returns the identity of the service
func (s *Service) Key() ServiceKey {
	return ServiceKey{UIName: s.UIName, Version: s.Version}
}

func (s *Service) String() string {
	return s.Key().String()
}

// VersionConfigName is the cluster config that pins the service version
func (s *Service) VersionConfigName() string {
	return VersionConfigName(s.UIName)
}

// VersionConfigName is the cluster config that pins the version of uiName
func VersionConfigName(uiName string) string {
	return uiName + " Version"
}

// HasProcess reports whether the service owns the process
func (s *Service) HasProcess(uiName string) bool {
	_, ok := s.Process(uiName)
	return ok
}

// Process returns the owned process with the given UI name
func (s *Service) Process(uiName string) (NodeProcess, bool) {
	for _, p := range s.Processes {
		if p.UIName == uiName {
			return p, true
		}
	}
	return NodeProcess{}, false
}

// Packages returns the packages to install for the processes an instance
// hosts. Extra packages are included whenever any process is hosted.
func (s *Service) Packages(hosted []string) []string {
	var pkgs []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			pkgs = append(pkgs, p)
		}
	}
	for _, p := range s.Processes {
		for _, h := range hosted {
			if p.UIName == h {
				add(p.Package)
			}
		}
	}
	if len(pkgs) > 0 || len(s.Processes) == 0 {
		for _, p := range s.ExtraPackages {
			add(p)
		}
	}
	return pkgs
}

// HostedBy reports whether a node group with the given process list runs
// any process of the service
func (s *Service) HostedBy(processes []string) bool {
	for _, p := range processes {
		if s.HasProcess(p) {
			return true
		}
	}
	return false
}
