package lifecycle

import (
	"context"
	"fmt"

	"github.com/cuemby/sahara/pkg/mapr/cluster"
	"github.com/cuemby/sahara/pkg/mapr/domain"
	"github.com/cuemby/sahara/pkg/mapr/services"
	"github.com/cuemby/sahara/pkg/remote"
	"github.com/cuemby/sahara/pkg/types"
)

const (
	mysqlConnector = "/usr/share/java/mysql-connector-java.jar"
	nfsFstab       = "/opt/mapr/conf/mapr_fstab"
	swiftJar       = "/opt/mapr/lib/hadoop-swift.jar"
)

// postInstall runs the install hook of every cluster service on the
// instances hosting it
func (o *Orchestrator) postInstall(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	ordered, err := InstallOrder(cc.Registry(), cc.ClusterServices())
	if err != nil {
		return err
	}
	for _, s := range ordered {
		hook := o.hook(cc, s)
		if hook == nil {
			continue
		}
		hosts := o.hostsOf(cc, s, instances)
		name := fmt.Sprintf("%s: %s", StepPostInstall, s.String())
		if err := o.runStep(ctx, cc, name, hosts, hook); err != nil {
			return err
		}
	}
	return nil
}

// hook returns the post-install operation of s, or nil if it has none
func (o *Orchestrator) hook(cc *cluster.Context, s *domain.Service) instanceFunc {
	cmds := hookCommands(cc, s)
	if len(cmds) == 0 {
		return nil
	}
	return func(ctx context.Context, instance *types.Instance) error {
		if s.Hook == domain.HookMapRFS {
			if ng := cc.NodeGroup(instance); ng == nil || !ng.HasProcess(services.NFS.UIName) {
				return nil
			}
		}
		return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
			for _, cmd := range cmds {
				if _, err := o.exec(ctx, r, cmd); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// hookCommands lists the shell commands of a service install hook
func hookCommands(cc *cluster.Context, s *domain.Service) []string {
	switch s.Hook {
	case domain.HookMapRFS:
		return []string{
			fmt.Sprintf("echo 'localhost:/mapr /mapr hard,intr,nolock' > %s", nfsFstab),
			"mkdir -p /mapr",
		}
	case domain.HookHive:
		return []string{
			fmt.Sprintf("cp %s /opt/mapr/hive/hive-%s/lib/", mysqlConnector, s.Version),
		}
	case domain.HookOozie:
		home := fmt.Sprintf("/opt/mapr/oozie/oozie-%s", s.Version)
		libext := services.OozieLibextPath(s.Version)
		return []string{
			fmt.Sprintf("mkdir -p %s && cp %s %s", libext, mysqlConnector, libext),
			fmt.Sprintf("%s/bin/oozie-setup.sh -hadoop 2.x /opt/mapr/hadoop/ prepare-war", home),
		}
	case domain.HookSpark:
		home := fmt.Sprintf("/opt/mapr/spark/spark-%s", s.Version)
		master := cc.ConnectString(services.SparkHistoryServer.UIName, 18080)
		return []string{
			fmt.Sprintf("mkdir -p %s/logs && chown -R mapr:mapr %s/logs", home, home),
			fmt.Sprintf("echo 'export SPARK_HISTORY_SERVER=%s' > %s/conf/spark-env.sh", master, home),
		}
	case domain.HookHue:
		home := fmt.Sprintf("/opt/mapr/hue/hue-%s", s.Version)
		return []string{
			fmt.Sprintf("%s/build/env/bin/hue syncdb --noinput", home),
		}
	case domain.HookSwift:
		return []string{
			fmt.Sprintf("ln -sf %s /opt/mapr/hadoop/hadoop-*/share/hadoop/common/lib/", swiftJar),
		}
	}
	return nil
}
