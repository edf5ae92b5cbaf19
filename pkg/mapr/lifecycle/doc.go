/*
Package lifecycle provisions, reconfigures and decommissions MapR clusters
over remote connections to their instances.

An Orchestrator turns a cluster.Context into remote commands and file
writes. It never reads or writes cluster documents itself: progress goes
to a Recorder (the conductor in production) and hosts are reached through
a remote.Connector (SSH in production, remote.FakeConnector in tests).

# Steps

Every sequence is a list of named steps. A step fans out to its target
instances with at most ProvisioningConfig.FanOut operations in flight and
waits for all of them:

	runStep("install_services", instances)
	       │
	       ├─ ProvisionStepAdd(cluster, name, len(instances))
	       │
	       ├─ instance 1 ─┐
	       ├─ instance 2 ─┼─ errgroup, limit FanOut
	       ├─ instance 3 ─┘
	       │      │
	       │      └─ ProvisionEventAdd(step, instance, ok, info)
	       │
	       └─ first error cancels the rest and aborts the sequence

A step with no target instances is skipped and leaves no record. Each
step observes sahara_provision_step_duration_seconds and failed steps
count in sahara_provision_steps_failed_total, both labelled by step name.

# Sequences

Configure prepares fresh instances and leaves their services stopped:

	configure_ssh          management key for passwordless SSH
	install_repo           MapR and ecosystem package repositories
	install_services       packages in dependency order (InstallOrder)
	configure_topology     rack topology data of the remaining instances
	configure_database     MySQL databases and grants for Hive, Oozie, Hue
	configure_services     disk list and disksetup for MapR-FS
	configure_sh_cluster   configure.sh with the CLDB and ZooKeeper nodes
	set_cluster_mode       YARN or classic MapReduce mode
	write_config_files     merged service configuration files
	configure_environment  /etc/profile.d/mapr.sh
	post_install           install hooks of the cluster services
	update_cluster_info    web UI addresses in the cluster info

Start brings services up in dependency order, waiting on the port of each
tier before starting the next:

	start_zookeeper  mapr-zookeeper, then port 5181
	start_cldb       warden on CLDB nodes, then port 7222
	start_services   warden everywhere else

Stop reverses it: the warden first, then ZooKeeper. Stop ignores exit
codes so it can be used on half-provisioned clusters.

Scale runs Configure and Start on the added instances and then Update on
the rest of the cluster. Decommission moves the removed nodes to the
/decommissioned topology, stops them, waits until the CLDB no longer
reports them and removes them from the cluster.

# Configuration Updates

Update reconfigures the instances that stay in a cluster after its
membership changed. configure.sh is rerun only when a control node (CLDB,
ZooKeeper, ResourceManager, HistoryServer, JobTracker) joined or left.

write_config_files reads every managed configuration file, merges the
desired values into it and writes it back only when a value changed. A
file that does not exist yet is created; any other read failure aborts
the step, so a lost session never overwrites a file with defaults. During
Update, each service whose files changed is restarted once per instance
after all files are written:

	existing, err := r.ReadFile(ctx, path, remote.RunAsRoot())
	switch {
	case errors.CodeOf(err) == errors.CodeNotFound:
		// create
	case err != nil:
		// abort
	}

# Usage

	connector := &remote.SSHConnector{
		User:    cfg.SSH.User,
		Port:    cfg.SSH.Port,
		Timeout: cfg.SSH.Timeout,
		Images:  lookup,
	}
	orch := lifecycle.New(cond, connector, cfg.Provisioning)

	if err := orch.Configure(ctx, cc, nil); err != nil {
		return err
	}
	if err := orch.Start(ctx, cc, nil); err != nil {
		return err
	}

Passing nil instances targets every instance of the cluster. Tests shorten
the interval between readiness checks with WithPollInterval.

# Timeouts

	install_timeout     package installation per instance
	disk_setup_timeout  disksetup per instance
	command_timeout     any other remote command
	heartbeat_timeout   waiting for decommissioned nodes to disappear

Service starts wait up to ten minutes for their port. A wait that runs out
fails with errors.CodeTimeout carrying the last health check message.
*/
package lifecycle
