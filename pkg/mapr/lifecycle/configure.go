package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/mapr/cluster"
	"github.com/cuemby/sahara/pkg/mapr/domain"
	"github.com/cuemby/sahara/pkg/mapr/services"
	"github.com/cuemby/sahara/pkg/remote"
	"github.com/cuemby/sahara/pkg/types"
)

// Step names
const (
	StepConfigureSSH         = "configure_ssh"
	StepInstallRepo          = "install_repo"
	StepInstallServices      = "install_services"
	StepConfigureTopology    = "configure_topology"
	StepConfigureDatabase    = "configure_database"
	StepConfigureServices    = "configure_services"
	StepConfigureSHCluster   = "configure_sh_cluster"
	StepSetClusterMode       = "set_cluster_mode"
	StepWriteConfigFiles     = "write_config_files"
	StepConfigureEnvironment = "configure_environment"
	StepPostInstall          = "post_install"
	StepUpdateClusterInfo    = "update_cluster_info"
)

// Remote paths
const (
	privateKeyPath   = ".ssh/id_rsa"
	topologyDataPath = "/opt/mapr/topology.data"
	diskListPath     = "/tmp/disk.list"
	configureShPath  = "/opt/mapr/server/configure.sh"
	diskSetupPath    = "/opt/mapr/server/disksetup"
	environmentPath  = "/etc/profile.d/mapr.sh"
)

// Configure provisions fresh instances of a cluster. instances defaults
// to every instance. Services are left stopped.
func (o *Orchestrator) Configure(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	if instances == nil {
		instances = cc.AllInstances()
	}
	restarts := newRestartTracker()

	steps := []func(context.Context, *cluster.Context, []*types.Instance) error{
		o.configureSSH,
		o.installRepo,
		o.installServices,
		o.configureTopology,
		o.configureDatabase,
		o.configureServices,
		func(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
			return o.configureShCluster(ctx, cc, instances, true)
		},
		o.setClusterMode,
		func(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
			return o.writeConfigFiles(ctx, cc, instances, restarts)
		},
		o.configureEnvironment,
		o.updateClusterInfo,
	}
	for _, step := range steps {
		if err := step(ctx, cc, instances); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) configureSSH(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	key := cc.Cluster().ManagementPrivateKey
	return o.runStep(ctx, cc, StepConfigureSSH, instances, func(ctx context.Context, instance *types.Instance) error {
		return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
			if err := r.WriteFile(ctx, privateKeyPath, []byte(key)); err != nil {
				return err
			}
			_, _, err := r.ExecuteCommand(ctx, "chmod 600 "+privateKeyPath)
			return err
		})
	})
}

// distro returns "ubuntu" or "centos" from /etc/os-release
func (o *Orchestrator) distro(ctx context.Context, r remote.Remote) (string, error) {
	_, out, err := r.ExecuteCommand(ctx, "cat /etc/os-release", remote.IgnoreExitCode())
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "ID=") && strings.Contains(line, "ubuntu") {
			return "ubuntu", nil
		}
	}
	return "centos", nil
}

func (o *Orchestrator) installRepo(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	return o.runStep(ctx, cc, StepInstallRepo, instances, func(ctx context.Context, instance *types.Instance) error {
		return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
			os, err := o.distro(ctx, r)
			if err != nil {
				return err
			}
			if os == "ubuntu" {
				list := fmt.Sprintf("deb %s binary trusty\ndeb %s binary trusty\n",
					cc.ConfigString(services.GeneralTarget, services.UbuntuBaseRepo),
					cc.ConfigString(services.GeneralTarget, services.UbuntuEcosystemRepo))
				if err := r.WriteFile(ctx, "/etc/apt/sources.list.d/maprtech.list", []byte(list), remote.RunAsRoot()); err != nil {
					return err
				}
				_, err := o.exec(ctx, r, "apt-get update", remote.WithTimeout(o.cfg.InstallTimeout))
				return err
			}
			repo := fmt.Sprintf("[maprtech]\nname=MapR Technologies\nbaseurl=%s\nenabled=1\ngpgcheck=0\n\n"+
				"[maprecosystem]\nname=MapR Technologies\nbaseurl=%s\nenabled=1\ngpgcheck=0\n",
				cc.ConfigString(services.GeneralTarget, services.CentOSBaseRepo),
				cc.ConfigString(services.GeneralTarget, services.CentOSEcosystemRepo))
			if err := r.WriteFile(ctx, "/etc/yum.repos.d/maprtech.repo", []byte(repo), remote.RunAsRoot()); err != nil {
				return err
			}
			_, err = o.exec(ctx, r, "yum clean all", remote.WithTimeout(o.cfg.InstallTimeout))
			return err
		})
	})
}

// installServices installs every cluster service in dependency order, one
// step per service
func (o *Orchestrator) installServices(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	ordered, err := InstallOrder(cc.Registry(), cc.ClusterServices())
	if err != nil {
		return err
	}
	for _, s := range ordered {
		hosts := o.hostsOf(cc, s, instances)
		service := s
		name := fmt.Sprintf("%s: %s", StepInstallServices, service.String())
		err := o.runStep(ctx, cc, name, hosts, func(ctx context.Context, instance *types.Instance) error {
			pkgs := service.Packages(cc.InstanceProcesses(instance))
			if len(pkgs) == 0 {
				return nil
			}
			return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
				os, err := o.distro(ctx, r)
				if err != nil {
					return err
				}
				cmd := "yum install -y " + strings.Join(pkgs, " ")
				if os == "ubuntu" {
					cmd = "DEBIAN_FRONTEND=noninteractive apt-get install -y --force-yes " + strings.Join(pkgs, " ")
				}
				_, err = o.exec(ctx, r, cmd, remote.WithTimeout(o.cfg.InstallTimeout))
				return err
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// hostsOf returns the instances of targets that host service
func (o *Orchestrator) hostsOf(cc *cluster.Context, service *domain.Service, targets []*types.Instance) []*types.Instance {
	var out []*types.Instance
	for _, instance := range targets {
		for _, s := range cc.InstanceServices(instance) {
			if s.Key() == service.Key() {
				out = append(out, instance)
				break
			}
		}
	}
	return out
}

func (o *Orchestrator) configureTopology(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	data := []byte(cc.TopologyData(cc.RemainingInstances()))
	return o.runStep(ctx, cc, StepConfigureTopology, instances, func(ctx context.Context, instance *types.Instance) error {
		return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
			return r.WriteFile(ctx, topologyDataPath, data, remote.RunAsRoot())
		})
	})
}

// configureDatabase creates the databases of every cluster service on the
// MySQL host
func (o *Orchestrator) configureDatabase(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	var databases []string
	for _, s := range cc.ClusterServices() {
		databases = append(databases, s.Databases...)
	}
	if len(databases) == 0 {
		return nil
	}
	sort.Strings(databases)

	password := cc.ConfigString(services.GeneralTarget, services.DatabasePassword)
	var sql strings.Builder
	for _, db := range databases {
		fmt.Fprintf(&sql, "CREATE DATABASE IF NOT EXISTS %s; ", db)
		fmt.Fprintf(&sql, "GRANT ALL ON %s.* TO '%s'@'%%' IDENTIFIED BY '%s'; ", db, services.DatabaseUser, password)
	}
	sql.WriteString("FLUSH PRIVILEGES;")

	hosts := intersect(cc.ProcessInstances(services.MySQL.UIName), instances)
	return o.runStep(ctx, cc, StepConfigureDatabase, hosts, func(ctx context.Context, instance *types.Instance) error {
		return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
			if _, err := o.exec(ctx, r, "service mysqld start || service mysql start"); err != nil {
				return err
			}
			_, err := o.exec(ctx, r, "mysql -uroot -e "+remote.Quote(sql.String()))
			return err
		})
	})
}

// configureServices formats the storage devices of file server nodes
func (o *Orchestrator) configureServices(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	hosts := intersect(cc.ProcessInstances(services.FileServer.UIName), instances)
	return o.runStep(ctx, cc, StepConfigureServices, hosts, func(ctx context.Context, instance *types.Instance) error {
		disks := strings.Join(diskList(instance, cc.NodeGroup(instance)), "\n") + "\n"
		return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
			if err := r.WriteFile(ctx, diskListPath, []byte(disks), remote.RunAsRoot()); err != nil {
				return err
			}
			_, err := o.exec(ctx, r, fmt.Sprintf("%s -F %s", diskSetupPath, diskListPath),
				remote.WithTimeout(o.cfg.DiskSetupTimeout))
			return err
		})
	})
}

// diskList names the block devices of an instance after the boot disk
func diskList(instance *types.Instance, ng *types.NodeGroup) []string {
	n := instance.StorageDevicesNumber
	if n == 0 && ng != nil {
		n = ng.VolumesPerNode
	}
	if n == 0 {
		n = 1
	}
	disks := make([]string, 0, n)
	for i := 0; i < n; i++ {
		disks = append(disks, fmt.Sprintf("/dev/vd%c", 'b'+i))
	}
	return disks
}

// configureShCommand builds the configure.sh invocation for the current
// control node layout
func configureShCommand(cc *cluster.Context, noAutostart bool) string {
	name := cc.Cluster().Name
	if name == "" {
		name = cc.Cluster().ID
	}
	args := []string{configureShPath,
		"-N", name,
		"-C", strings.Join(cc.CLDBHosts(), ","),
		"-Z", strings.Join(cc.ZooKeeperHosts(), ","),
	}
	if rm := cc.ResourceManagerHosts(); len(rm) > 0 {
		args = append(args, "-RM", strings.Join(rm, ","))
	}
	if hs := cc.HistoryServerHost(); hs != "" {
		args = append(args, "-HS", hs)
	}
	if noAutostart {
		args = append(args, "-no-autostart")
	}
	return strings.Join(append(args, "-f"), " ")
}

func (o *Orchestrator) configureShCluster(ctx context.Context, cc *cluster.Context, instances []*types.Instance, noAutostart bool) error {
	cmd := configureShCommand(cc, noAutostart)
	return o.runStep(ctx, cc, StepConfigureSHCluster, instances, func(ctx context.Context, instance *types.Instance) error {
		return o.run(ctx, cc, instance, cmd)
	})
}

// setClusterMode selects classic or YARN MapReduce on one CLDB node
func (o *Orchestrator) setClusterMode(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	mode, err := services.ClusterMode(cc.Registry().Version())
	if err != nil {
		return err
	}
	hosts := intersect(cc.ProcessInstances(services.CLDB.UIName), instances)
	if len(hosts) == 0 {
		return nil
	}
	return o.runStep(ctx, cc, StepSetClusterMode, hosts[:1], func(ctx context.Context, instance *types.Instance) error {
		return o.run(ctx, cc, instance, "maprcli cluster mapreduce set -mode "+mode)
	})
}

// writeConfigFiles renders the config files of every service hosted on
// each instance. Files are merged into what the instance already holds;
// an instance whose existing file changed is marked for restart.
func (o *Orchestrator) writeConfigFiles(ctx context.Context, cc *cluster.Context, instances []*types.Instance, restarts *restartTracker) error {
	return o.runStep(ctx, cc, StepWriteConfigFiles, instances, func(ctx context.Context, instance *types.Instance) error {
		ng := cc.NodeGroup(instance)
		return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
			for _, s := range cc.InstanceServices(instance) {
				for _, spec := range s.Files {
					existing, err := r.ReadFile(ctx, spec.Path, remote.RunAsRoot())
					switch {
					case errors.CodeOf(err) == errors.CodeNotFound:
						existing = nil
					case err != nil:
						return fmt.Errorf("failed to read %s: %w", spec.Path, err)
					}
					rendered, changed, err := domain.MergeFile(spec.Format, existing, desiredConfig(cc, s, spec, ng))
					if err != nil {
						return fmt.Errorf("failed to render %s: %w", spec.Path, err)
					}
					if !changed && len(existing) > 0 {
						continue
					}
					if err := r.WriteFile(ctx, spec.Path, rendered, remote.RunAsRoot()); err != nil {
						return err
					}
					if changed && len(existing) > 0 {
						restarts.mark(s, instance)
					}
				}
			}
			return nil
		})
	})
}

// desiredConfig layers file defaults, topology derived values, cluster
// configs and node group configs, in increasing precedence
func desiredConfig(cc *cluster.Context, s *domain.Service, spec domain.ConfigFileSpec, ng *types.NodeGroup) map[string]string {
	desired := make(map[string]string, len(spec.Defaults))
	for k, v := range spec.Defaults {
		desired[k] = v
	}
	if spec.Dynamic != nil {
		for k, v := range spec.Dynamic(cc) {
			desired[k] = v
		}
	}
	for _, opt := range s.Configs {
		if opt.File != spec.Path {
			continue
		}
		var value interface{}
		var ok bool
		if opt.Scope == domain.ScopeNode && ng != nil {
			value, ok = ng.NodeConfigs.Get(opt.Target, opt.Name)
		}
		if !ok {
			value, ok = cc.Cluster().ClusterConfigs.Get(opt.Target, opt.Name)
		}
		if ok && value != nil {
			desired[opt.Name] = fmt.Sprintf("%v", value)
		}
	}
	return desired
}

// configureEnvironment writes the MapR shell environment on every instance
// and then runs the post-install hooks of the cluster services
func (o *Orchestrator) configureEnvironment(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	env, err := domain.Render(domain.FormatEnv, map[string]string{
		"MAPR_HOME":    "/opt/mapr",
		"MAPR_CLUSTER": cc.Cluster().Name,
	})
	if err != nil {
		return err
	}
	err = o.runStep(ctx, cc, StepConfigureEnvironment, instances, func(ctx context.Context, instance *types.Instance) error {
		return o.onRemote(ctx, cc, instance, func(r remote.Remote) error {
			return r.WriteFile(ctx, environmentPath, env, remote.RunAsRoot())
		})
	})
	if err != nil {
		return err
	}
	return o.postInstall(ctx, cc, instances)
}

func (o *Orchestrator) updateClusterInfo(ctx context.Context, cc *cluster.Context, _ []*types.Instance) error {
	_, err := o.recorder.ClusterSetInfo(ctx, o.rc, cc.Cluster().ID, cc.WebUIInfo())
	if err != nil {
		return fmt.Errorf("failed to update cluster info: %w", err)
	}
	return nil
}
