package manager

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/storage"
)

// Manager is a replicated store node. Writes go through the Raft log and
// are applied to the local bolt store on every member; reads are served
// from the local store.
type Manager struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft   *raft.Raft
	fsm    *SaharaFSM
	store  *storage.BoltStore
	logger zerolog.Logger
}

// Config holds configuration for creating a Manager
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// NewManager opens the local store of a manager node. Raft is not started
// until Bootstrap or Join is called.
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	return &Manager{
		nodeID:   cfg.NodeID,
		bindAddr: cfg.BindAddr,
		dataDir:  cfg.DataDir,
		fsm:      NewSaharaFSM(store),
		store:    store,
		logger:   log.WithComponent("manager").With().Str("node_id", cfg.NodeID).Logger(),
	}, nil
}

func (m *Manager) raftConfig() *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(m.nodeID)
	config.LogOutput = log.WithComponent("raft")

	// Tuned for LAN deployments; defaults target WAN latencies
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	return config
}

// transports opens the TCP transport and the bolt-backed log, stable and
// snapshot stores under the data directory
func (m *Manager) transports() (raft.Transport, raft.LogStore, raft.StableStore, raft.SnapshotStore, error) {
	raftLog := log.WithComponent("raft")

	addr, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(m.bindAddr, addr, 3, 10*time.Second, raftLog)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(m.dataDir, 2, raftLog)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create stable store: %w", err)
	}

	return transport, logStore, stableStore, snapshots, nil
}

func (m *Manager) start(transport raft.Transport, logs raft.LogStore, stable raft.StableStore, snapshots raft.SnapshotStore, bootstrap bool) error {
	config := m.raftConfig()
	r, err := raft.NewRaft(config, m.fsm, logs, stable, snapshots, transport)
	if err != nil {
		return fmt.Errorf("failed to create raft: %w", err)
	}
	m.raft = r

	if !bootstrap {
		return nil
	}
	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	}
	if err := m.raft.BootstrapCluster(configuration).Error(); err != nil && err != raft.ErrCantBootstrap {
		return fmt.Errorf("failed to bootstrap cluster: %w", err)
	}
	return nil
}

// Bootstrap initializes a new single-node Raft cluster. Restarting a
// bootstrapped node resumes from its persisted log.
func (m *Manager) Bootstrap() error {
	transport, logs, stable, snapshots, err := m.transports()
	if err != nil {
		return err
	}
	if err := m.start(transport, logs, stable, snapshots, true); err != nil {
		return err
	}
	m.logger.Info().Str("bind_addr", m.bindAddr).Msg("Bootstrapped replicated store")
	return nil
}

// Join starts Raft without bootstrapping. The node takes part in the
// cluster once the leader adds it with AddVoter.
func (m *Manager) Join() error {
	transport, logs, stable, snapshots, err := m.transports()
	if err != nil {
		return err
	}
	if err := m.start(transport, logs, stable, snapshots, false); err != nil {
		return err
	}
	m.logger.Info().Str("bind_addr", m.bindAddr).Msg("Waiting to be added by the leader")
	return nil
}

// AddVoter adds a new manager node to the Raft cluster
func (m *Manager) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}

	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to add voter: %w", err)
	}

	m.logger.Info().Str("voter_id", nodeID).Str("address", address).Msg("Added voter")
	return nil
}

// RemoveServer removes a server from the Raft cluster
func (m *Manager) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	if !m.IsLeader() {
		return fmt.Errorf("not the leader")
	}

	future := m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to remove server: %w", err)
	}

	return nil
}

// Servers returns the members of the Raft cluster
func (m *Manager) Servers() ([]raft.Server, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}

	future := m.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	return future.Configuration().Servers, nil
}

// IsLeader returns true if this manager is the Raft leader
func (m *Manager) IsLeader() bool {
	if m.raft == nil {
		return false
	}
	return m.raft.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	addr, _ := m.raft.LeaderWithID()
	return string(addr)
}

// WaitForLeader blocks until the cluster has elected a leader
func (m *Manager) WaitForLeader(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.LeaderAddr() != "" {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("no leader elected within %s", timeout)
}

// Stats returns the Raft log positions
func (m *Manager) Stats() map[string]uint64 {
	if m.raft == nil {
		return nil
	}
	return map[string]uint64{
		"last_log_index": m.raft.LastIndex(),
		"applied_index":  m.raft.AppliedIndex(),
	}
}

// Apply submits a command to the Raft cluster and waits for it to be
// applied locally
func (m *Manager) Apply(cmd Command) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	future := m.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to apply command: %w", err)
	}

	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}

	return nil
}

// Shutdown stops Raft and closes the local store
func (m *Manager) Shutdown() error {
	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("failed to shutdown raft: %w", err)
		}
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}

	return nil
}
