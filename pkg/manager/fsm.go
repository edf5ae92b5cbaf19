package manager

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/cuemby/sahara/pkg/storage"
)

// Command operations
const (
	OpPut    = "put"
	OpDelete = "delete"
)

// SaharaFSM implements the Raft finite state machine over the local bolt
// store. Every replicated write is a single put or delete of an encoded
// object.
type SaharaFSM struct {
	mu    sync.RWMutex
	store *storage.BoltStore
}

// NewSaharaFSM creates a new FSM instance
func NewSaharaFSM(store *storage.BoltStore) *SaharaFSM {
	return &SaharaFSM{store: store}
}

// Command represents a state change operation in the Raft log
type Command struct {
	Op     string          `json:"op"`
	Bucket string          `json:"bucket"`
	Key    string          `json:"key"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Apply applies a committed Raft log entry to the store
func (f *SaharaFSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case OpPut:
		return f.store.PutRaw(cmd.Bucket, cmd.Key, cmd.Data)
	case OpDelete:
		return f.store.DeleteRaw(cmd.Bucket, cmd.Key)
	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot captures the contents of every bucket
func (f *SaharaFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dump, err := f.store.Dump()
	if err != nil {
		return nil, fmt.Errorf("failed to dump store: %w", err)
	}
	return &SaharaSnapshot{Buckets: dump}, nil
}

// Restore replaces the store contents with a snapshot
func (f *SaharaFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot SaharaSnapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.store.Load(snapshot.Buckets); err != nil {
		return fmt.Errorf("failed to restore store: %w", err)
	}
	return nil
}

// SaharaSnapshot is a point-in-time copy of the store
type SaharaSnapshot struct {
	Buckets map[string]map[string][]byte `json:"buckets"`
}

// Persist writes the snapshot to the given SnapshotSink
func (s *SaharaSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
	}

	return err
}

// Release releases the snapshot resources
func (s *SaharaSnapshot) Release() {}
