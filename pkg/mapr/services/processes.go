package services

import "github.com/cuemby/sahara/pkg/mapr/domain"

// Node processes, shared by every version of their owning service
var (
	CLDB       = domain.NodeProcess{Name: "cldb", UIName: domain.ProcessCLDB, Package: "mapr-cldb", OpenPorts: []int{7222, 7220, 7221}}
	FileServer = domain.NodeProcess{Name: "fileserver", UIName: "FileServer", Package: "mapr-fileserver", OpenPorts: []int{5660, 5692, 5724}}
	NFS        = domain.NodeProcess{Name: "nfs", UIName: "NFS", Package: "mapr-nfs", OpenPorts: []int{2049, 9997, 9998}}

	ZooKeeper = domain.NodeProcess{Name: "mapr-zookeeper", UIName: domain.ProcessZooKeeper, Package: "mapr-zookeeper", OpenPorts: []int{5181, 3888, 2888}}
	Webserver = domain.NodeProcess{Name: "webserver", UIName: "Webserver", Package: "mapr-webserver", OpenPorts: []int{8443}}
	Metrics   = domain.NodeProcess{Name: "metrics", UIName: "Metrics", Package: "mapr-metrics", OpenPorts: []int{1111}}

	ResourceManager = domain.NodeProcess{Name: "resourcemanager", UIName: domain.ProcessResourceManager, Package: "mapr-resourcemanager", OpenPorts: []int{8033, 8032, 8031, 8030, 8088}}
	NodeManager     = domain.NodeProcess{Name: "nodemanager", UIName: "NodeManager", Package: "mapr-nodemanager", OpenPorts: []int{8041, 8040, 8042, 8044}}
	HistoryServer   = domain.NodeProcess{Name: "historyserver", UIName: domain.ProcessHistoryServer, Package: "mapr-historyserver", OpenPorts: []int{10020, 19888, 19890}}

	JobTracker  = domain.NodeProcess{Name: "jobtracker", UIName: domain.ProcessJobTracker, Package: "mapr-jobtracker", OpenPorts: []int{9001, 50030}}
	TaskTracker = domain.NodeProcess{Name: "tasktracker", UIName: "TaskTracker", Package: "mapr-tasktracker", OpenPorts: []int{50060}}

	HiveMetastore = domain.NodeProcess{Name: "hivemeta", UIName: "HiveMetastore", Package: "mapr-hivemetastore", OpenPorts: []int{9083}}
	HiveServer2   = domain.NodeProcess{Name: "hs2", UIName: "HiveServer2", Package: "mapr-hiveserver2", OpenPorts: []int{10000}}

	HBaseMaster       = domain.NodeProcess{Name: "hbmaster", UIName: "HBase-Master", Package: "mapr-hbase-master", OpenPorts: []int{60000, 60010}}
	HBaseRegionServer = domain.NodeProcess{Name: "hbregionserver", UIName: "HBase-RegionServer", Package: "mapr-hbase-regionserver", OpenPorts: []int{60020}}
	HBaseThrift       = domain.NodeProcess{Name: "hbasethrift", UIName: "HBase-Thrift", Package: "mapr-hbasethrift", OpenPorts: []int{9090}}

	Oozie = domain.NodeProcess{Name: "oozie", UIName: "Oozie", Package: "mapr-oozie", OpenPorts: []int{11000}}

	SparkHistoryServer = domain.NodeProcess{Name: "spark-historyserver", UIName: "SparkHistoryServer", Package: "mapr-spark-historyserver", OpenPorts: []int{18080}}

	Drill = domain.NodeProcess{Name: "drill-bits", UIName: "Drill", Package: "mapr-drill", OpenPorts: []int{8047, 31010}}

	ImpalaServer     = domain.NodeProcess{Name: "impalaserver", UIName: "Impala-Server", Package: "mapr-impala-server", OpenPorts: []int{21000, 21050, 25000}}
	ImpalaCatalog    = domain.NodeProcess{Name: "impalacatalog", UIName: "Impala-Catalog", Package: "mapr-impala-catalog", OpenPorts: []int{25020}}
	ImpalaStateStore = domain.NodeProcess{Name: "impalastatestore", UIName: "Impala-Statestore", Package: "mapr-impala-statestore", OpenPorts: []int{25010}}

	Hue = domain.NodeProcess{Name: "hue", UIName: "Hue", Package: "mapr-hue", OpenPorts: []int{8888}}

	MySQL = domain.NodeProcess{Name: "mysql", UIName: "MySQL", Package: "mysql-server", OpenPorts: []int{3306}}
)
