package services

import (
	"fmt"

	"github.com/cuemby/sahara/pkg/mapr/domain"
	v "github.com/cuemby/sahara/pkg/mapr/validation"
)

var mysqlKey = domain.ServiceKey{UIName: MySQLService}

func mysqlURL(t domain.Topology, database string) string {
	host := first(t, MySQL.UIName)
	if host == "" {
		return ""
	}
	return fmt.Sprintf("jdbc:mysql://%s:3306/%s?createDatabaseIfNotExist=true", host, database)
}

func hive(version string) *domain.Service {
	conf := fmt.Sprintf("/opt/mapr/hive/hive-%s/conf/hive-site.xml", version)
	return &domain.Service{
		Name:          "hive",
		UIName:        HiveService,
		Version:       version,
		Processes:     []domain.NodeProcess{HiveMetastore, HiveServer2},
		ExtraPackages: []string{fmt.Sprintf("mapr-hive-%s*", version)},
		Dependencies:  []string{MapRFSService, YARNService, MapReduceService, MySQLService},
		Rules: []domain.Rule{
			v.Exactly(1, HiveMetastore.UIName),
			v.AtMost(1, HiveServer2.UIName),
			v.DependsOn(mysqlKey, HiveService),
		},
		Configs: []domain.ConfigOption{
			{Name: "hive.metastore.warehouse.dir", Target: HiveService, Scope: domain.ScopeCluster, Type: domain.TypeString,
				Default: "/user/hive/warehouse", Description: "Location of the Hive warehouse", File: conf},
		},
		Files: []domain.ConfigFileSpec{{
			Path:   conf,
			Format: domain.FormatXML,
			Defaults: map[string]string{
				"javax.jdo.option.ConnectionDriverName": "com.mysql.jdbc.Driver",
				"javax.jdo.option.ConnectionUserName":   DatabaseUser,
				"hive.metastore.warehouse.dir":          "/user/hive/warehouse",
			},
			Dynamic: func(t domain.Topology) map[string]string {
				values := map[string]string{
					"javax.jdo.option.ConnectionURL": mysqlURL(t, "metastore"),
				}
				if meta := first(t, HiveMetastore.UIName); meta != "" {
					values["hive.metastore.uris"] = fmt.Sprintf("thrift://%s:9083", meta)
				}
				return nonEmpty(values)
			},
		}},
		WebUIs:    []domain.WebUI{{Label: "HiveServer2", Process: HiveServer2.UIName, Scheme: "http", Port: 10002}},
		Hook:      domain.HookHive,
		Databases: []string{"metastore"},
	}
}

func hbase(version string) *domain.Service {
	return &domain.Service{
		Name:         "hbase",
		UIName:       HBaseService,
		Version:      version,
		Processes:    []domain.NodeProcess{HBaseMaster, HBaseRegionServer, HBaseThrift},
		Dependencies: []string{MapRFSService},
		Rules: []domain.Rule{
			v.AtLeast(1, HBaseMaster.UIName),
			v.AtLeast(1, HBaseRegionServer.UIName),
		},
		Files: []domain.ConfigFileSpec{{
			Path:   fmt.Sprintf("/opt/mapr/hbase/hbase-%s/conf/hbase-site.xml", version),
			Format: domain.FormatXML,
			Defaults: map[string]string{
				"hbase.rootdir":                       "maprfs:///hbase",
				"hbase.cluster.distributed":           "true",
				"hbase.zookeeper.property.clientPort": "5181",
			},
			Dynamic: func(t domain.Topology) map[string]string {
				return nonEmpty(map[string]string{
					"hbase.zookeeper.quorum": joinHosts(t, ZooKeeper.UIName),
				})
			},
		}},
		WebUIs: []domain.WebUI{{Label: "HBase Master", Process: HBaseMaster.UIName, Scheme: "http", Port: 60010}},
	}
}

func oozie(version string) *domain.Service {
	conf := fmt.Sprintf("/opt/mapr/oozie/oozie-%s/conf/oozie-site.xml", version)
	return &domain.Service{
		Name:         "oozie",
		UIName:       OozieService,
		Version:      version,
		Processes:    []domain.NodeProcess{Oozie},
		Dependencies: []string{MapRFSService, YARNService, MapReduceService, MySQLService},
		Rules: []domain.Rule{
			v.Exactly(1, Oozie.UIName),
			v.DependsOn(mysqlKey, OozieService),
		},
		Files: []domain.ConfigFileSpec{{
			Path:   conf,
			Format: domain.FormatXML,
			Defaults: map[string]string{
				"oozie.db.schema.name":                                      "oozie",
				"oozie.service.JPAService.create.db.schema":                 "true",
				"oozie.service.JPAService.jdbc.driver":                      "com.mysql.jdbc.Driver",
				"oozie.service.JPAService.jdbc.username":                    DatabaseUser,
				"oozie.service.HadoopAccessorService.supported.filesystems": "*",
			},
			Dynamic: func(t domain.Topology) map[string]string {
				return nonEmpty(map[string]string{
					"oozie.service.JPAService.jdbc.url": mysqlURL(t, "oozie"),
				})
			},
		}},
		WebUIs:    []domain.WebUI{{Label: "Oozie", Process: Oozie.UIName, Scheme: "http", Port: 11000}},
		Hook:      domain.HookOozie,
		Databases: []string{"oozie"},
	}
}

// OozieLibextPath returns the directory Oozie loads extra jars from. The
// layout moved out of the bundled server in 4.3.0.
func OozieLibextPath(version string) string {
	switch version {
	case "4.2.0":
		return fmt.Sprintf("/opt/mapr/oozie/oozie-%s/oozie-server/lib/", version)
	default:
		return fmt.Sprintf("/opt/mapr/oozie/oozie-%s/libext/", version)
	}
}

func spark(version string) *domain.Service {
	return &domain.Service{
		Name:          "spark",
		UIName:        SparkService,
		Version:       version,
		Processes:     []domain.NodeProcess{SparkHistoryServer},
		ExtraPackages: []string{"mapr-spark"},
		Dependencies:  []string{YARNService},
		Rules: []domain.Rule{
			v.AtMost(1, SparkHistoryServer.UIName),
			v.DependsOn(domain.ServiceKey{UIName: YARNService}, SparkService),
		},
		Files: []domain.ConfigFileSpec{{
			Path:   fmt.Sprintf("/opt/mapr/spark/spark-%s/conf/spark-defaults.conf", version),
			Format: domain.FormatProperties,
			Defaults: map[string]string{
				"spark.eventLog.enabled": "true",
				"spark.eventLog.dir":     "maprfs:///apps/spark",
			},
			Dynamic: func(t domain.Topology) map[string]string {
				hs := first(t, SparkHistoryServer.UIName)
				if hs == "" {
					return nil
				}
				return map[string]string{"spark.yarn.historyServer.address": hs + ":18080"}
			},
		}},
		WebUIs: []domain.WebUI{{Label: "Spark History Server", Process: SparkHistoryServer.UIName, Scheme: "http", Port: 18080}},
		Hook:   domain.HookSpark,
	}
}

func drill(version string) *domain.Service {
	return &domain.Service{
		Name:         "drill",
		UIName:       DrillService,
		Version:      version,
		Processes:    []domain.NodeProcess{Drill},
		Dependencies: []string{MapRFSService},
		Files: []domain.ConfigFileSpec{{
			Path:   fmt.Sprintf("/opt/mapr/drill/drill-%s/conf/drill-env.sh", version),
			Format: domain.FormatEnv,
			Defaults: map[string]string{
				"DRILL_HEAP":              "4G",
				"DRILL_MAX_DIRECT_MEMORY": "8G",
			},
		}},
		WebUIs: []domain.WebUI{{Label: "Drill", Process: Drill.UIName, Scheme: "http", Port: 8047}},
	}
}

func impala(version string) *domain.Service {
	return &domain.Service{
		Name:          "impala",
		UIName:        ImpalaService,
		Version:       version,
		Processes:     []domain.NodeProcess{ImpalaStateStore, ImpalaCatalog, ImpalaServer},
		ExtraPackages: []string{"mapr-impala"},
		Dependencies:  []string{HiveService, HBaseService},
		Rules: []domain.Rule{
			v.Exactly(1, ImpalaStateStore.UIName),
			v.Exactly(1, ImpalaCatalog.UIName),
			v.AtLeast(1, ImpalaServer.UIName),
			v.DependsOn(domain.ServiceKey{UIName: HiveService}, ImpalaService),
			v.RequiredOS("centos", ImpalaService),
		},
		Files: []domain.ConfigFileSpec{{
			Path:   fmt.Sprintf("/opt/mapr/impala/impala-%s/conf/env.sh", version),
			Format: domain.FormatEnv,
			Dynamic: func(t domain.Topology) map[string]string {
				return nonEmpty(map[string]string{
					"IMPALA_STATE_STORE_HOST": first(t, ImpalaStateStore.UIName),
					"CATALOG_SERVICE_HOST":    first(t, ImpalaCatalog.UIName),
				})
			},
		}},
		WebUIs: []domain.WebUI{{Label: "Impala", Process: ImpalaServer.UIName, Scheme: "http", Port: 25000}},
	}
}

func hue(version string) *domain.Service {
	return &domain.Service{
		Name:      "hue",
		UIName:    HueService,
		Version:   version,
		Processes: []domain.NodeProcess{Hue},
		Dependencies: []string{
			MySQLService, YARNService, MapReduceService, HiveService,
			OozieService, HBaseService, SparkService, ImpalaService,
		},
		Rules: []domain.Rule{
			v.AtMost(1, Hue.UIName),
			v.DependsOn(mysqlKey, HueService),
		},
		WebUIs:    []domain.WebUI{{Label: "Hue", Process: Hue.UIName, Scheme: "https", Port: 8888}},
		Hook:      domain.HookHue,
		Databases: []string{"hue"},
	}
}

func joinHosts(t domain.Topology, process string) string {
	var out string
	for i, h := range t.ProcessHosts(process) {
		if i > 0 {
			out += ","
		}
		out += h
	}
	return out
}
