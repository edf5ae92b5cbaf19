/*
Package domain holds the building blocks of the MapR service catalogue:
service descriptors, node processes, the per-version Registry and the
config file codecs.

Descriptors are plain immutable values. Package services declares them
for every supported plugin version and packages validation, cluster and
lifecycle read them; nothing here talks to a store or a host.

# Services and Processes

A Service is identified by its ServiceKey, UI name plus version. It lists
the node processes it runs, the packages they need, the services it
depends on, its validation Rules, its user ConfigOptions and the config
files it owns. A NodeProcess is owned by exactly one service of a
Registry; NewRegistry fails when two services claim the same process.

CLDB, ZooKeeper, ResourceManager, HistoryServer and JobTracker are control
processes. Adding or removing a node that runs one of them changes the
cluster's control plane and requires configure.sh to be rerun everywhere.

# Topology

Rules and dynamic config values are computed against the Topology
interface rather than a concrete cluster type, which keeps this package
free of the cluster and image lookups implemented in package cluster.

# Config Files

Three on-disk formats are supported:

	FormatXML         Hadoop <configuration><property> documents
	FormatProperties  Java key=value properties
	FormatEnv         shell export statements

Render writes keys in sorted order, so the same values always give the
same bytes. Parse reads a file back into a flat map. Values are kept
verbatim, including surrounding whitespace; in properties files leading
whitespace is escaped with a backslash so it survives the round trip.

MergeFile is what the orchestrator uses to update a file in place:

	rendered, changed, err := domain.MergeFile(domain.FormatXML, existing, desired)
	if err != nil {
		return err
	}
	if changed {
		// write rendered and restart the owning service
	}

Keys the service does not manage are preserved, and merging the same
values twice reports no change.
*/
package domain
