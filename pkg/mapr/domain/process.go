package domain

// NodeProcess is a single daemon or role installable on an instance. UIName
// is the name node groups list in their process sets and is unique among
// the services of a plugin version.
type NodeProcess struct {
	Name      string
	UIName    string
	Package   string
	OpenPorts []int
}

func (p NodeProcess) String() string {
	return p.UIName
}

// Control processes. A topology change touching an instance that hosts one
// of these requires cluster-wide reconfiguration.
const (
	ProcessCLDB            = "CLDB"
	ProcessZooKeeper       = "ZooKeeper"
	ProcessResourceManager = "ResourceManager"
	ProcessHistoryServer   = "HistoryServer"
	ProcessJobTracker      = "JobTracker"
)

// ControlProcesses lists the UI names of all control processes
var ControlProcesses = []string{
	ProcessCLDB,
	ProcessZooKeeper,
	ProcessResourceManager,
	ProcessHistoryServer,
	ProcessJobTracker,
}

// IsControlProcess reports whether uiName names a control process
func IsControlProcess(uiName string) bool {
	for _, p := range ControlProcesses {
		if p == uiName {
			return true
		}
	}
	return false
}
