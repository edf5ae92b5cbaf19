package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Inventory metrics
	ClustersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sahara_clusters_total",
			Help: "Total number of clusters by status",
		},
		[]string{"status"},
	)

	ClusterTemplatesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahara_cluster_templates_total",
			Help: "Total number of cluster templates",
		},
	)

	NodeGroupTemplatesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahara_node_group_templates_total",
			Help: "Total number of node group templates",
		},
	)

	InstancesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahara_instances_total",
			Help: "Total number of cluster instances",
		},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahara_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahara_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahara_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// Provisioning metrics
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sahara_provision_step_duration_seconds",
			Help:    "Lifecycle step duration in seconds",
			Buckets: []float64{.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"step"},
	)

	StepsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahara_provision_steps_failed_total",
			Help: "Total number of failed lifecycle steps",
		},
		[]string{"step"},
	)

	RemoteCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahara_remote_commands_total",
			Help: "Total number of remote commands by result",
		},
		[]string{"result"},
	)

	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahara_validation_failures_total",
			Help: "Total number of topology validation failures by error code",
		},
		[]string{"code"},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sahara_reconciliation_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sahara_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	TemplatesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahara_default_templates_applied_total",
			Help: "Total number of default templates processed by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(ClusterTemplatesTotal)
	prometheus.MustRegister(NodeGroupTemplatesTotal)
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(StepsFailed)
	prometheus.MustRegister(RemoteCommandsTotal)
	prometheus.MustRegister(ValidationFailures)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(TemplatesApplied)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
