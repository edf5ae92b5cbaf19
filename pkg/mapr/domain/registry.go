package domain

import (
	"fmt"
	"sort"
)

// Registry is the immutable service catalogue of one plugin version. It is
// built once at plugin load and shared by reference.
type Registry struct {
	version   string
	services  []*Service
	index     map[ServiceKey]int
	byProcess map[string]string
	required  []ServiceKey
	general   []ConfigOption
}

// NewRegistry builds a registry from services in declaration order.
// required names the services every cluster of this version must run.
func NewRegistry(version string, services []*Service, required []ServiceKey, general []ConfigOption) (*Registry, error) {
	r := &Registry{
		version:   version,
		services:  append([]*Service(nil), services...),
		index:     make(map[ServiceKey]int, len(services)),
		byProcess: make(map[string]string),
		required:  append([]ServiceKey(nil), required...),
		general:   append([]ConfigOption(nil), general...),
	}

	for i, s := range services {
		if _, dup := r.index[s.Key()]; dup {
			return nil, fmt.Errorf("service %s declared twice for version %s", s.Key(), version)
		}
		r.index[s.Key()] = i
		for _, p := range s.Processes {
			if owner, ok := r.byProcess[p.UIName]; ok && owner != s.UIName {
				return nil, fmt.Errorf("process %s is owned by both %s and %s", p.UIName, owner, s.UIName)
			}
			r.byProcess[p.UIName] = s.UIName
		}
	}

	for _, key := range required {
		if _, ok := r.index[key]; !ok {
			return nil, fmt.Errorf("required service %s is not declared for version %s", key, version)
		}
	}
	return r, nil
}

// Version returns the plugin version the catalogue belongs to
func (r *Registry) Version() string {
	return r.version
}

// Services returns every service in declaration order
func (r *Registry) Services() []*Service {
	return append([]*Service(nil), r.services...)
}

// Get returns the service with the given identity
func (r *Registry) Get(uiName, version string) (*Service, bool) {
	i, ok := r.index[ServiceKey{UIName: uiName, Version: version}]
	if !ok {
		return nil, false
	}
	return r.services[i], true
}

// Latest returns the last declared version of a service
func (r *Registry) Latest(uiName string) (*Service, bool) {
	for i := len(r.services) - 1; i >= 0; i-- {
		if r.services[i].UIName == uiName {
			return r.services[i], true
		}
	}
	return nil, false
}

// Versions returns the declared versions of a service in declaration order
func (r *Registry) Versions(uiName string) []string {
	var versions []string
	for _, s := range r.services {
		if s.UIName == uiName {
			versions = append(versions, s.Version)
		}
	}
	return versions
}

// Order returns the declaration index of a service, or -1
func (r *Registry) Order(key ServiceKey) int {
	if i, ok := r.index[key]; ok {
		return i
	}
	return -1
}

// ServiceNameByProcess returns the UI name of the service owning a process
func (r *Registry) ServiceNameByProcess(process string) (string, bool) {
	name, ok := r.byProcess[process]
	return name, ok
}

// Process returns a process definition by UI name
func (r *Registry) Process(uiName string) (NodeProcess, bool) {
	for i := len(r.services) - 1; i >= 0; i-- {
		if p, ok := r.services[i].Process(uiName); ok {
			return p, true
		}
	}
	return NodeProcess{}, false
}

// ProcessesByService returns the process UI names grouped by service UI
// name, in the shape plugin listings use
func (r *Registry) ProcessesByService() map[string][]string {
	out := make(map[string][]string)
	for _, s := range r.services {
		if _, done := out[s.UIName]; done {
			continue
		}
		latest, _ := r.Latest(s.UIName)
		names := make([]string, 0, len(latest.Processes))
		for _, p := range latest.Processes {
			names = append(names, p.UIName)
		}
		out[s.UIName] = names
	}
	return out
}

// RequiredServices returns the services every cluster must run
func (r *Registry) RequiredServices() []*Service {
	out := make([]*Service, 0, len(r.required))
	for _, key := range r.required {
		out = append(out, r.services[r.index[key]])
	}
	return out
}

// Configs returns every plugin configuration option: general options,
// version selectors of multi-version services, then service options.
func (r *Registry) Configs() []ConfigOption {
	configs := append([]ConfigOption(nil), r.general...)

	seen := make(map[string]bool)
	var multi []string
	for _, s := range r.services {
		if seen[s.UIName] {
			continue
		}
		seen[s.UIName] = true
		if len(r.Versions(s.UIName)) > 1 {
			multi = append(multi, s.UIName)
		}
	}
	sort.Strings(multi)
	for _, name := range multi {
		latest, _ := r.Latest(name)
		configs = append(configs, ConfigOption{
			Name:        VersionConfigName(name),
			Target:      name,
			Scope:       ScopeCluster,
			Type:        TypeDropdown,
			Default:     latest.Version,
			Choices:     r.Versions(name),
			Description: fmt.Sprintf("Specify the version of the %s service", name),
		})
	}

	// Options of a multi-version service come from its latest version
	for _, s := range r.services {
		latest, _ := r.Latest(s.UIName)
		if latest != s {
			continue
		}
		configs = append(configs, s.Configs...)
	}
	return configs
}

// GeneralConfig returns the general option with the given name
func (r *Registry) GeneralConfig(name string) (ConfigOption, bool) {
	for _, c := range r.general {
		if c.Name == name {
			return c, true
		}
	}
	return ConfigOption{}, false
}
