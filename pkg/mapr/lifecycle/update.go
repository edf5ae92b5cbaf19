package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/health"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/mapr/cluster"
	"github.com/cuemby/sahara/pkg/mapr/services"
	"github.com/cuemby/sahara/pkg/remote"
	"github.com/cuemby/sahara/pkg/types"
)

// Step names
const (
	StepStartZooKeeper   = "start_zookeeper"
	StepStartCLDB        = "start_cldb"
	StepStartServices    = "start_services"
	StepStopServices     = "stop_services"
	StepStopZooKeeper    = "stop_zookeeper"
	StepUpdateServices   = "update_services"
	StepRestartServices  = "restart_services"
	StepMoveNodes        = "move_nodes"
	StepAwaitNoHeartbeat = "await_no_heartbeat"
	StepRemoveNodes      = "remove_nodes"
)

const (
	zookeeperPort       = 5181
	cldbPort            = 7222
	serviceStartTimeout = 10 * time.Minute
	decommissionedTopo  = "/decommissioned"
	hostIDPath          = "/opt/mapr/hostid"
)

// Start brings up the services of instances: ZooKeeper first, then the
// CLDB nodes, then everything else. instances defaults to every instance.
func (o *Orchestrator) Start(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	if instances == nil {
		instances = cc.AllInstances()
	}
	zookeepers := intersect(cc.ProcessInstances(services.ZooKeeper.UIName), instances)
	cldbs := intersect(cc.ProcessInstances(services.CLDB.UIName), instances)

	err := o.runStep(ctx, cc, StepStartZooKeeper, zookeepers, func(ctx context.Context, instance *types.Instance) error {
		if err := o.run(ctx, cc, instance, "service mapr-zookeeper start"); err != nil {
			return err
		}
		return o.waitForPort(ctx, cc, instance, zookeeperPort, serviceStartTimeout)
	})
	if err != nil {
		return err
	}

	err = o.runStep(ctx, cc, StepStartCLDB, cldbs, func(ctx context.Context, instance *types.Instance) error {
		if err := o.run(ctx, cc, instance, "service mapr-warden start"); err != nil {
			return err
		}
		return o.waitForPort(ctx, cc, instance, cldbPort, serviceStartTimeout)
	})
	if err != nil {
		return err
	}

	others := exclude(instances, cldbs)
	return o.runStep(ctx, cc, StepStartServices, others, func(ctx context.Context, instance *types.Instance) error {
		return o.run(ctx, cc, instance, "service mapr-warden start")
	})
}

// Stop shuts down the warden on instances and then their ZooKeeper
// servers. instances defaults to every instance.
func (o *Orchestrator) Stop(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	if instances == nil {
		instances = cc.AllInstances()
	}
	err := o.runStep(ctx, cc, StepStopServices, instances, func(ctx context.Context, instance *types.Instance) error {
		return o.run(ctx, cc, instance, "service mapr-warden stop", remote.IgnoreExitCode())
	})
	if err != nil {
		return err
	}

	// removed instances are not reported as process hosts
	zookeepers := onProcess(cc, instances, services.ZooKeeper.UIName)
	return o.runStep(ctx, cc, StepStopZooKeeper, zookeepers, func(ctx context.Context, instance *types.Instance) error {
		return o.run(ctx, cc, instance, "service mapr-zookeeper stop", remote.IgnoreExitCode())
	})
}

// Update reconfigures the instances that stay in the cluster after its
// membership changed, restarting services whose configuration changed
func (o *Orchestrator) Update(ctx context.Context, cc *cluster.Context) error {
	existing := cc.ExistingInstances()
	restarts := newRestartTracker()
	logger := log.WithClusterID(cc.Cluster().ID)

	if err := o.configureTopology(ctx, cc, existing); err != nil {
		return err
	}

	changed := append(cc.AddedInstances(), cc.RemovedInstances()...)
	if cc.HasControlNodes(changed) {
		if err := o.configureShCluster(ctx, cc, existing, false); err != nil {
			return err
		}
	} else {
		logger.Debug().Msg("No control nodes changed, skipping configure.sh")
	}

	if err := o.writeConfigFiles(ctx, cc, existing, restarts); err != nil {
		return err
	}
	if err := o.updateServices(ctx, cc, existing); err != nil {
		return err
	}
	return o.restartServices(ctx, cc, restarts)
}

// updateServices refreshes the warden configuration of instances
func (o *Orchestrator) updateServices(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	cmd := configureShPath + " -R"
	return o.runStep(ctx, cc, StepUpdateServices, instances, func(ctx context.Context, instance *types.Instance) error {
		return o.run(ctx, cc, instance, cmd)
	})
}

// restartServices restarts every process of each service marked for
// restart, once per instance
func (o *Orchestrator) restartServices(ctx context.Context, cc *cluster.Context, restarts *restartTracker) error {
	pending := restarts.drain()
	if len(pending) == 0 {
		return nil
	}

	byInstance := make(map[string][]string)
	var instances []*types.Instance
	for _, r := range pending {
		if _, ok := byInstance[r.instance.ID]; !ok {
			instances = append(instances, r.instance)
			byInstance[r.instance.ID] = nil
		}
		for _, hosted := range cc.InstanceProcesses(r.instance) {
			if p, ok := r.service.Process(hosted); ok {
				byInstance[r.instance.ID] = append(byInstance[r.instance.ID], p.Name)
			}
		}
	}

	return o.runStep(ctx, cc, StepRestartServices, instances, func(ctx context.Context, instance *types.Instance) error {
		for _, name := range byInstance[instance.ID] {
			cmd := fmt.Sprintf("maprcli node services -name %s -action restart -nodes %s", name, instance.FQDN())
			if err := o.run(ctx, cc, instance, cmd); err != nil {
				return err
			}
		}
		return nil
	})
}

// Decommission takes the removed instances of cc out of the cluster and
// reconfigures the remaining ones
func (o *Orchestrator) Decommission(ctx context.Context, cc *cluster.Context) error {
	removed := cc.RemovedInstances()
	if len(removed) == 0 {
		return nil
	}

	err := o.runStep(ctx, cc, StepMoveNodes, removed, func(ctx context.Context, instance *types.Instance) error {
		cmd := fmt.Sprintf("maprcli node move -serverids $(cat %s) -topology %s", hostIDPath, decommissionedTopo)
		return o.run(ctx, cc, instance, cmd)
	})
	if err != nil {
		return err
	}

	if err := o.Stop(ctx, cc, removed); err != nil {
		return err
	}

	cldbs := cc.ProcessInstances(services.CLDB.UIName)
	if len(cldbs) == 0 {
		return errors.InvalidData("No CLDB node remains in the cluster")
	}
	control := cldbs[:1]

	err = o.runStep(ctx, cc, StepAwaitNoHeartbeat, control, func(ctx context.Context, instance *types.Instance) error {
		return o.awaitNoHeartbeat(ctx, cc, instance, removed)
	})
	if err != nil {
		return err
	}

	err = o.runStep(ctx, cc, StepRemoveNodes, control, func(ctx context.Context, instance *types.Instance) error {
		for _, r := range removed {
			if err := o.run(ctx, cc, instance, "maprcli node remove -nodes "+r.FQDN()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return o.updateServices(ctx, cc, cc.ExistingInstances())
}

// Scale provisions the added instances of cc and reconfigures the rest of
// the cluster around them
func (o *Orchestrator) Scale(ctx context.Context, cc *cluster.Context) error {
	added := cc.AddedInstances()
	if len(added) > 0 {
		if err := o.Configure(ctx, cc, added); err != nil {
			return err
		}
		if err := o.Start(ctx, cc, added); err != nil {
			return err
		}
	}
	return o.Update(ctx, cc)
}

// awaitNoHeartbeat polls the CLDB on control until none of removed
// reports as a cluster node
func (o *Orchestrator) awaitNoHeartbeat(ctx context.Context, cc *cluster.Context, control *types.Instance, removed []*types.Instance) error {
	hosts := make([]string, 0, len(removed))
	for _, r := range removed {
		hosts = append(hosts, r.FQDN())
	}
	cmd := fmt.Sprintf("maprcli node list -filter '[hostname==%s]' -columns hostname -noheader",
		strings.Join(hosts, ","))
	return o.onRemote(ctx, cc, control, func(r remote.Remote) error {
		checker := health.NewRemoteChecker(r, cmd).WhenOutputEmpty()
		_, err := health.WaitFor(ctx, checker, health.Config{
			Interval:  o.poll,
			Timeout:   o.cfg.HeartbeatTimeout,
			Successes: 1,
		})
		return err
	})
}

// onProcess filters instances by the process list of their node group
func onProcess(cc *cluster.Context, instances []*types.Instance, process string) []*types.Instance {
	var out []*types.Instance
	for _, i := range instances {
		if ng := cc.NodeGroup(i); ng != nil && ng.HasProcess(process) {
			out = append(out, i)
		}
	}
	return out
}

// exclude drops the instances of remove from instances
func exclude(instances, remove []*types.Instance) []*types.Instance {
	set := make(map[string]bool, len(remove))
	for _, r := range remove {
		set[r.ID] = true
	}
	var out []*types.Instance
	for _, i := range instances {
		if !set[i.ID] {
			out = append(out, i)
		}
	}
	return out
}
