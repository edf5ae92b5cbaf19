// Package services is the catalogue of MapR services per plugin version.
// Every version of a service is a data row built by its constructor;
// versions differ only in the values passed in.
package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/domain"
)

// General configuration names
const (
	GeneralTarget        = "general"
	EnableMapRDB         = "Enable MapR-DB"
	CentOSBaseRepo       = "CentOS Base Repo"
	UbuntuBaseRepo       = "Ubuntu Base Repo"
	CentOSEcosystemRepo  = "CentOS Ecosystem Repo"
	UbuntuEcosystemRepo  = "Ubuntu Ecosystem Repo"
	DatabasePassword     = "Database Password"
	DatabaseUser         = "maprdb"
	ClusterModeClassic   = "classic"
	ClusterModeYARN      = "yarn"
	defaultDatabaseToken = "mapr-sahara"
)

type pluginVersion struct {
	core      string
	ecosystem string
	mode      string
	services  func() []*domain.Service
}

var versions = map[string]pluginVersion{
	"4.0.1.mrv2": {core: "4.0.1", ecosystem: "ecosystem-4.x", mode: ClusterModeYARN, services: func() []*domain.Service {
		return []*domain.Service{
			maprFS(), management(), yarn("2.4.1"), mysql(),
			hive("1.0"), hbase("0.98.12"), oozie("4.2.0"),
			swift(),
		}
	}},
	"4.1.0.mrv2": {core: "4.1.0", ecosystem: "ecosystem-4.x", mode: ClusterModeYARN, services: func() []*domain.Service {
		return []*domain.Service{
			maprFS(), management(), yarn("2.5.1"), mysql(),
			hive("1.0"), hbase("0.98.12"), oozie("4.2.0"), spark("1.5.2"), hue("3.8.1"),
			swift(),
		}
	}},
	"5.2.0.mrv1": {core: "5.2.0", ecosystem: "ecosystem-5.x", mode: ClusterModeClassic, services: func() []*domain.Service {
		return []*domain.Service{
			maprFS(), management(), mapReduce(), mysql(),
			hive("1.2"), hbase("1.1.1"), oozie("4.2.0"), drill("1.9"), hue("3.10.0"),
			swift(),
		}
	}},
	"5.2.0.mrv2": {core: "5.2.0", ecosystem: "ecosystem-5.x", mode: ClusterModeYARN, services: func() []*domain.Service {
		return []*domain.Service{
			maprFS(), management(), yarn("2.7.0"), mysql(),
			hive("1.2"), hive("1.3"), hbase("1.1.1"), oozie("4.2.0"), oozie("4.3.0"),
			spark("2.0.1"), drill("1.9"), impala("2.5.0"), hue("3.10.0"),
			swift(),
		}
	}},
	"6.0.0.mrv2": {core: "6.0.0", ecosystem: "MEP/MEP-4.0.0", mode: ClusterModeYARN, services: func() []*domain.Service {
		return []*domain.Service{
			maprFS(), management(), yarn("2.7.0"), mysql(),
			hive("1.2"), hive("2.1"), hbase("1.1.8"), oozie("4.3.0"),
			spark("2.1.0"), drill("1.10"), impala("2.7.0"), hue("3.12.0"),
			swift(),
		}
	}},
}

// Versions returns the supported plugin versions in sorted order
func Versions() []string {
	out := make([]string, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ClusterMode returns the MapReduce mode clusters of a plugin version run
func ClusterMode(version string) (string, error) {
	pv, ok := versions[version]
	if !ok {
		return "", unsupported(version)
	}
	return pv.mode, nil
}

var (
	registriesMu sync.Mutex
	registries   = make(map[string]*domain.Registry)
)

// Registry returns the service catalogue of a plugin version. Catalogues
// are built once and shared.
func Registry(version string) (*domain.Registry, error) {
	registriesMu.Lock()
	defer registriesMu.Unlock()

	if r, ok := registries[version]; ok {
		return r, nil
	}
	pv, ok := versions[version]
	if !ok {
		return nil, unsupported(version)
	}

	all := pv.services()
	required := []domain.ServiceKey{{UIName: MapRFSService}, {UIName: ManagementService}}
	for _, s := range all {
		if s.UIName == YARNService || s.UIName == MapReduceService {
			required = append(required, s.Key())
		}
	}

	r, err := domain.NewRegistry(version, all, required, generalConfigs(pv))
	if err != nil {
		return nil, fmt.Errorf("failed to build registry for %s: %w", version, err)
	}
	registries[version] = r
	return r, nil
}

func unsupported(version string) error {
	return errors.Newf(errors.CodeInvalidData, "Plugin version '%s' is not supported", version).
		WithDetail("supported", Versions())
}

func generalConfigs(pv pluginVersion) []domain.ConfigOption {
	repo := func(name, os, release string) domain.ConfigOption {
		return domain.ConfigOption{
			Name:        name,
			Target:      GeneralTarget,
			Scope:       domain.ScopeCluster,
			Type:        domain.TypeString,
			Default:     fmt.Sprintf("http://package.mapr.com/releases/%s/%s", release, os),
			Description: fmt.Sprintf("Package repository for %s", strings.ToLower(name)),
		}
	}
	core := "v" + pv.core
	return []domain.ConfigOption{
		{Name: EnableMapRDB, Target: GeneralTarget, Scope: domain.ScopeCluster, Type: domain.TypeBool,
			Default: true, Description: "Enable MapR-DB tables on the cluster"},
		repo(CentOSBaseRepo, "redhat", core),
		repo(UbuntuBaseRepo, "ubuntu", core),
		repo(CentOSEcosystemRepo, "redhat", pv.ecosystem),
		repo(UbuntuEcosystemRepo, "ubuntu", pv.ecosystem),
		{Name: DatabasePassword, Target: GeneralTarget, Scope: domain.ScopeCluster, Type: domain.TypeString,
			Default: defaultDatabaseToken, Description: "Password of the service databases user"},
	}
}
