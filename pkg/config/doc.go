/*
Package config loads the runtime configuration of the sahara and
sahara-templates commands.

Load layers its sources with viper, lowest precedence first:

	1. SetDefaults
	2. the YAML file given with --config
	3. SAHARA_* environment variables (SAHARA_SSH_USER for ssh.user)
	4. command-line flags bound through their config key

For example:

	data_dir: /var/lib/sahara
	secret_key: change-me
	log:
	  level: debug
	ssh:
	  user: ec2-user
	provisioning:
	  fan_out: 32
	  install_timeout: 45m

Validate rejects a configuration the rest of the system cannot work with:
an empty data_dir, a fan_out below 1, an ssh.port outside 1-65535, or a
replicated node without a raft_bind_addr.
*/
package config
