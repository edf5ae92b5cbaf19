package metrics

import (
	"time"

	"github.com/cuemby/sahara/pkg/storage"
)

// RaftStats is implemented by replicated stores
type RaftStats interface {
	IsLeader() bool
	Stats() map[string]uint64
}

// Collector periodically refreshes the inventory gauges from the store
type Collector struct {
	store    storage.Store
	raft     RaftStats
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector. raft may be nil.
func NewCollector(store storage.Store, raft RaftStats) *Collector {
	return &Collector{
		store:    store,
		raft:     raft,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect refreshes every gauge once
func (c *Collector) Collect() {
	c.collectClusterMetrics()
	c.collectTemplateMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectClusterMetrics() {
	clusters, err := c.store.ListClusters()
	if err != nil {
		return
	}

	ClustersTotal.Reset()
	instances := 0
	for _, cluster := range clusters {
		ClustersTotal.WithLabelValues(string(cluster.Status)).Inc()
		instances += len(cluster.Instances())
	}
	InstancesTotal.Set(float64(instances))
}

func (c *Collector) collectTemplateMetrics() {
	if cts, err := c.store.ListClusterTemplates(); err == nil {
		ClusterTemplatesTotal.Set(float64(len(cts)))
	}
	if ngts, err := c.store.ListNodeGroupTemplates(); err == nil {
		NodeGroupTemplatesTotal.Set(float64(len(ngts)))
	}
}

func (c *Collector) collectRaftMetrics() {
	if c.raft == nil {
		return
	}
	if c.raft.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	stats := c.raft.Stats()
	if lastIndex, ok := stats["last_log_index"]; ok {
		RaftLogIndex.Set(float64(lastIndex))
	}
	if appliedIndex, ok := stats["applied_index"]; ok {
		RaftAppliedIndex.Set(float64(appliedIndex))
	}
}
