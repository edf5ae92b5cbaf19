/*
Package manager replicates Sahara's state across several nodes with Raft.

A Manager wraps a hashicorp/raft node whose finite state machine applies
writes to a local storage.BoltStore. It implements storage.Store itself:
reads are served from the local store, writes are proposed as Raft
commands and return once committed and applied.

	┌──────────────────── MANAGER NODE ─────────────────────┐
	│                                                        │
	│  conductor / reconciler                                │
	│         │ storage.Store                                │
	│  ┌──────▼──────────────────────────────┐               │
	│  │ Manager                              │               │
	│  │  reads  → local BoltStore            │               │
	│  │  writes → raft.Apply(Command)        │               │
	│  └──────┬──────────────────────────────┘               │
	│  ┌──────▼──────────────────────────────┐               │
	│  │ Raft (TCP transport)                 │               │
	│  │  raft-log.db, raft-stable.db         │               │
	│  │  file snapshots                      │               │
	│  └──────┬──────────────────────────────┘               │
	│  ┌──────▼──────────────────────────────┐               │
	│  │ SaharaFSM                            │               │
	│  │  Apply:    put / delete raw docs     │               │
	│  │  Snapshot: BoltStore.Dump            │               │
	│  │  Restore:  BoltStore.Load            │               │
	│  └──────┬──────────────────────────────┘               │
	│  ┌──────▼──────────────────────────────┐               │
	│  │ BoltStore  <dataDir>/sahara.db       │               │
	│  └─────────────────────────────────────┘               │
	└────────────────────────────────────────────────────────┘

# Forming a group

The first node bootstraps a single-voter configuration and adds the others
once it leads:

	mgr, err := manager.NewManager(&manager.Config{
		NodeID:   "sahara-1",
		BindAddr: "10.0.0.10:7946",
		DataDir:  "/var/lib/sahara",
	})
	if err != nil {
		return err
	}
	if err := mgr.Bootstrap(); err != nil {
		return err
	}
	if err := mgr.WaitForLeader(30 * time.Second); err != nil {
		return err
	}
	if err := mgr.AddVoter("sahara-2", "10.0.0.11:7946"); err != nil {
		return err
	}

Other nodes call Join and wait to be added. Membership changes and writes
are only accepted by the leader; a write on a follower fails wrapping
raft.ErrNotLeader.

A group of three tolerates one failed node and a group of five tolerates
two. Even sizes add no fault tolerance.

# Commands

Every write is a Command naming an operation (put or delete), a bucket, a
key and, for puts, the encoded document. The FSM applies commands in log
order, so all nodes converge on identical stores.
*/
package manager
