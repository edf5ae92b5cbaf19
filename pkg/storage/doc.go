/*
Package storage persists Sahara's provisioning state in BoltDB.

BoltStore keeps one JSON document per entity in a bucket per kind, all in a
single file, <dataDir>/sahara.db:

	┌──────────────────── sahara.db ─────────────────────┐
	│  clusters              (cluster ID)                 │
	│  cluster_templates     (template ID)                │
	│  node_group_templates  (template ID)                │
	│  data_sources          (data source ID)             │
	│  images                (image ID)                   │
	│  flavors               (flavor ID)                  │
	│  provision_steps       (step ID)                    │
	└─────────────────────────────────────────────────────┘

Node groups and instances are not stored on their own; they are part of the
cluster document and change together with it.

Reads run in concurrent View transactions and writes in serialized Update
transactions. Lookups of a missing key fail with a NOT_FOUND coded error
naming the entity kind:

	store, err := storage.NewBoltStore("/var/lib/sahara")
	if err != nil {
		return err
	}
	defer store.Close()

	cluster, err := store.GetCluster(id)
	if errors.CodeOf(err) == errors.CodeNotFound {
		...
	}

# Replication

PutRaw, DeleteRaw, Dump and Load operate on encoded documents. The Raft
state machine in package manager applies committed log entries through
them and uses Dump and Load for snapshots, so a replicated manager and a
local BoltStore share the same on-disk layout.

# Troubleshooting

"timeout" from NewBoltStore:
  - BoltDB holds an exclusive file lock and only one process may open a
    data directory at a time
  - Stop the running sahara serve, or point the command at another
    --data-dir

NOT_FOUND for an object that was just created:
  - Check the request context: the conductor hides objects of other
    tenants behind NOT_FOUND before the store is consulted
  - On a replicated manager, writes go through the Raft leader and are
    visible on followers once applied

Growing database file:
  - BoltDB reuses freed pages but never shrinks the file; deleted clusters
    leave free pages behind
  - Copy the database with a compaction tool while sahara is stopped
*/
package storage
