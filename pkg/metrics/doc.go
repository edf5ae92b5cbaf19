/*
Package metrics exposes Prometheus metrics and health endpoints for Sahara.

All metrics are registered with the default registry at init and served by
Handler:

	sahara_clusters_total{status}                 gauge
	sahara_cluster_templates_total                gauge
	sahara_node_group_templates_total             gauge
	sahara_instances_total                        gauge
	sahara_raft_is_leader                         gauge
	sahara_raft_log_index                         gauge
	sahara_raft_applied_index                     gauge
	sahara_provision_step_duration_seconds{step}  histogram
	sahara_provision_steps_failed_total{step}     counter
	sahara_remote_commands_total{result}          counter
	sahara_validation_failures_total{code}        counter
	sahara_reconciliation_duration_seconds        histogram
	sahara_reconciliation_cycles_total            counter
	sahara_default_templates_applied_total{outcome} counter

Gauges are refreshed by a Collector that periodically reads the store and,
when replicated, the Raft statistics. Counters and histograms are updated
where the work happens, usually through a Timer:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StepDuration, step)

# Health

Components register themselves and report their state as it changes:

	metrics.RegisterComponent("reconciler", false, "starting")
	metrics.UpdateComponent("reconciler", true, "running")

HealthHandler reports every component, ReadyHandler answers 503 until all
critical components are healthy, and LivenessHandler answers 200 while the
process runs.
*/
package metrics
