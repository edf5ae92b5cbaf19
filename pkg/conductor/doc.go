/*
Package conductor is the single gateway to Sahara's persisted provisioning
state.

Every read and write of clusters, node groups, instances, templates, data
sources and provision steps goes through a Conductor. It applies the
document defaults, resolves clusters against their templates, enforces
tenant visibility, protection and usage rules, seals secrets and publishes
change events. Nothing else in the tree talks to the store for these
kinds.

# Architecture

	   CLI / templates / reconciler / lifecycle
	                   │
	                   ▼
	┌──────────────────────────────────────────────┐
	│                  Conductor                   │
	│                                              │
	│  defaults ─► resolve ─► validate ─► protect  │
	│                                   │          │
	│               seal secrets ◄──────┘          │
	└───────────┬───────────────────────┬──────────┘
	            │                       │
	            ▼                       ▼
	     storage.Store            events.Broker
	 (BoltStore or Raft FSM)     (optional, WithBroker)

The store is an interface, so the same conductor runs over a local
BoltStore or over the replicated store of package manager.

# Defaults

Each document kind has a skeleton of default fields. ApplyDefaults returns
a deep copy of the skeleton overlaid with the top-level keys of a request,
so no two documents ever share a nested map or list:

	values := conductor.ApplyDefaults(request, conductor.NodeGroupDefaults())
	values["node_processes"] = append(values["node_processes"].([]interface{}), "NFS")

ClusterDefaults, NodeGroupDefaults, InstanceDefaults and DataSourceDefaults
hand out fresh copies of the skeletons.

# Template Resolution

ResolveCluster builds the document of a cluster create request. Precedence,
lowest first:

	1. cluster defaults
	2. the cluster template named by cluster_template_id
	3. the request itself

The template's identity, timestamps, visibility and protection flags are
never copied. When a template is used, cluster_configs are merged target by
target and key by key instead of being replaced:

	template:  {"general": {"Enable NTP service": true}, "YARN": {"a": 1}}
	request:   {"YARN": {"b": 2}}
	result:    {"general": {"Enable NTP service": true}, "YARN": {"a": 1, "b": 2}}

Every node group entry is resolved the same way against node group
defaults and the node group template named by node_group_template_id, with
node_configs merged. A missing template fails with errors.CodeNotFound;
resolving the same request twice yields the same document.

# Visibility and Protection

Objects belong to the tenant of the RequestContext that created them. A
non-admin context only sees its own objects and public templates; other
tenants' objects are reported as not found.

	Protected object   update fails unless it only clears is_protected
	                   delete fails with errors.CodeDeletionFailed
	Default template   ignoreProtOnDefault bypasses protection, which is
	                   how package templates maintains the shipped defaults

# Usage Rules

A template referenced by anything cannot be deleted, and only its is_public
and is_protected flags can be updated:

	Cluster template      held by clusters built from it
	Node group template   held by cluster templates and clusters with a
	                      node group built from it

The error lists the holders, sorted, both in the message and in the
"holders" detail:

	err := c.NodeGroupTemplateDestroy(ctx, rc, id, false)
	if errors.CodeOf(err) == errors.CodeDeletionFailed {
		holders, _ := errors.DetailOf(err, "holders")
		fmt.Println(holders) // [cluster 'analytics' cluster template 'mapr-6']
	}

# Membership Changes

Instances can be added and removed one at a time with InstanceAdd and
InstanceRemove. Operations that change a cluster's membership as a whole
use ClusterGrow and ClusterShrink instead: both apply every instance, the
node group counts, sahara_info and the new status in a single store write,
so a malformed instance or an unknown ID leaves the cluster untouched.

	ids, err := c.ClusterGrow(ctx, rc, clusterID, conductor.Growth{
		Instances: map[string][]types.Values{workerID: {{"instance_name": "worker-3"}}},
		InfoKey:   "scale_added",
		Status:    types.ClusterStatusScaling,
	})

# Secrets

With WithSecrets, management private keys and data source credentials are
sealed before they reach the store and opened again on read. Callers only
ever see plaintext; the store only ever holds sealed values.

# Provision Steps

ProvisionStepAdd opens a named step with the number of instances it
covers, and ProvisionEventAdd records the outcome on one instance. A step
is successful once every instance reported success and failed as soon as
one reported failure. Steps are removed together with their cluster.

# Events

With WithBroker every change is published: cluster created, updated,
status changed (with "from" and "to" metadata) and deleted, template
changes, and provision step progress. A slow subscriber never holds up
the write.

# Testing

New accepts options for every source of nondeterminism, so tests can pin
timestamps, identifiers and key pairs:

	c := conductor.New(store,
		conductor.WithClock(func() time.Time { return fixed }),
		conductor.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", next()) }),
		conductor.WithKeyGenerator(func() (string, string, error) { return "priv", "pub", nil }),
	)
*/
package conductor
