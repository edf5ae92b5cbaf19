package services

import (
	"fmt"

	"github.com/cuemby/sahara/pkg/mapr/domain"
	v "github.com/cuemby/sahara/pkg/mapr/validation"
)

// Service UI names
const (
	MapRFSService     = "MapRFS"
	ManagementService = "Management"
	YARNService       = "YARN"
	MapReduceService  = "MapReduce"
	HiveService       = "Hive"
	HBaseService      = "HBase"
	OozieService      = "Oozie"
	SparkService      = "Spark"
	DrillService      = "Drill"
	ImpalaService     = "Impala"
	HueService        = "Hue"
	MySQLService      = "MySQL"
	SwiftService      = "Swift"
)

func maprFS() *domain.Service {
	return &domain.Service{
		Name:      "maprfs",
		UIName:    MapRFSService,
		Processes: []domain.NodeProcess{CLDB, FileServer, NFS},
		Rules: []domain.Rule{
			v.AtLeast(1, CLDB.UIName),
			v.EachNodeHas(FileServer.UIName),
			v.OnSameNode(CLDB.UIName, FileServer.UIName),
			v.HasVolumes(),
		},
		Configs: []domain.ConfigOption{
			{Name: "cldb.numthreads", Target: MapRFSService, Scope: domain.ScopeCluster, Type: domain.TypeInt,
				Default: 10, Description: "CLDB RPC handler threads", File: cldbConf},
		},
		Files: []domain.ConfigFileSpec{{
			Path:     cldbConf,
			Format:   domain.FormatProperties,
			Defaults: map[string]string{"cldb.port": "7222", "cldb.numthreads": "10"},
			Dynamic: func(t domain.Topology) map[string]string {
				return nonEmpty(map[string]string{
					"cldb.zookeeper.servers": connect(t, ZooKeeper.UIName, 5181),
				})
			},
		}},
		WebUIs: []domain.WebUI{{Label: "CLDB", Process: CLDB.UIName, Scheme: "http", Port: 7221}},
		Hook:   domain.HookMapRFS,
	}
}

const cldbConf = "/opt/mapr/conf/cldb.conf"

func management() *domain.Service {
	return &domain.Service{
		Name:         "management",
		UIName:       ManagementService,
		Processes:    []domain.NodeProcess{ZooKeeper, Webserver, Metrics},
		Dependencies: []string{MapRFSService, YARNService, MapReduceService},
		Rules: []domain.Rule{
			v.AtLeast(1, ZooKeeper.UIName),
			v.AtLeast(1, Webserver.UIName),
			v.OddCountOf(ZooKeeper.UIName),
		},
		WebUIs: []domain.WebUI{{Label: "Web Console", Process: Webserver.UIName, Scheme: "https", Port: 8443}},
	}
}

func yarn(version string) *domain.Service {
	conf := fmt.Sprintf("/opt/mapr/hadoop/hadoop-%s/etc/hadoop", version)
	return &domain.Service{
		Name:          "hadoop",
		UIName:        YARNService,
		Version:       version,
		Processes:     []domain.NodeProcess{ResourceManager, NodeManager, HistoryServer},
		ExtraPackages: []string{"mapr-core"},
		Dependencies:  []string{MapRFSService},
		Rules: []domain.Rule{
			v.AtLeast(1, ResourceManager.UIName),
			v.AtLeast(1, NodeManager.UIName),
			v.Exactly(1, HistoryServer.UIName),
		},
		Configs: []domain.ConfigOption{
			{Name: "yarn.nodemanager.resource.memory-mb", Target: YARNService, Scope: domain.ScopeNode, Type: domain.TypeInt,
				Default: 4096, Description: "Memory available to containers on a node", File: conf + "/yarn-site.xml"},
			{Name: "yarn.scheduler.maximum-allocation-mb", Target: YARNService, Scope: domain.ScopeCluster, Type: domain.TypeInt,
				Default: 8192, Description: "Largest container memory request", File: conf + "/yarn-site.xml"},
		},
		Files: []domain.ConfigFileSpec{
			{
				Path:   conf + "/yarn-site.xml",
				Format: domain.FormatXML,
				Defaults: map[string]string{
					"yarn.log-aggregation-enable":   "true",
					"yarn.nodemanager.aux-services": "mapreduce_shuffle",
				},
				Dynamic: func(t domain.Topology) map[string]string {
					return nonEmpty(map[string]string{
						"yarn.resourcemanager.hostname": first(t, ResourceManager.UIName),
					})
				},
			},
			{
				Path:     conf + "/mapred-site.xml",
				Format:   domain.FormatXML,
				Defaults: map[string]string{"mapreduce.framework.name": "yarn"},
				Dynamic: func(t domain.Topology) map[string]string {
					hs := first(t, HistoryServer.UIName)
					if hs == "" {
						return nil
					}
					return map[string]string{
						"mapreduce.jobhistory.address":        hs + ":10020",
						"mapreduce.jobhistory.webapp.address": hs + ":19888",
					}
				},
			},
		},
		WebUIs: []domain.WebUI{
			{Label: "Resource Manager", Process: ResourceManager.UIName, Scheme: "http", Port: 8088},
			{Label: "History Server", Process: HistoryServer.UIName, Scheme: "http", Port: 19888},
		},
	}
}

func mapReduce() *domain.Service {
	return &domain.Service{
		Name:          "hadoop",
		UIName:        MapReduceService,
		Version:       "0.20.2",
		Processes:     []domain.NodeProcess{JobTracker, TaskTracker},
		ExtraPackages: []string{"mapr-core"},
		Dependencies:  []string{MapRFSService},
		Rules: []domain.Rule{
			v.Exactly(1, JobTracker.UIName),
			v.AtLeast(1, TaskTracker.UIName),
		},
		Files: []domain.ConfigFileSpec{{
			Path:   "/opt/mapr/hadoop/hadoop-0.20.2/conf/mapred-site.xml",
			Format: domain.FormatXML,
			Defaults: map[string]string{
				"mapreduce.jobtracker.staging.root.dir": "/var/mapr/cluster/mapred/jobTracker/staging",
			},
		}},
		WebUIs: []domain.WebUI{{Label: "JobTracker", Process: JobTracker.UIName, Scheme: "http", Port: 50030}},
	}
}

func mysql() *domain.Service {
	return &domain.Service{
		Name:      "mysql",
		UIName:    MySQLService,
		Processes: []domain.NodeProcess{MySQL},
		Rules:     []domain.Rule{v.AtMost(1, MySQL.UIName)},
	}
}

func swift() *domain.Service {
	return &domain.Service{
		Name:         "swift",
		UIName:       SwiftService,
		Dependencies: []string{MapRFSService},
		Hook:         domain.HookSwift,
	}
}

func first(t domain.Topology, process string) string {
	hosts := t.ProcessHosts(process)
	if len(hosts) == 0 {
		return ""
	}
	return hosts[0]
}

func connect(t domain.Topology, process string, port int) string {
	var out string
	for i, h := range t.ProcessHosts(process) {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s:%d", h, port)
	}
	return out
}

func nonEmpty(values map[string]string) map[string]string {
	for k, val := range values {
		if val == "" {
			delete(values, k)
		}
	}
	return values
}
