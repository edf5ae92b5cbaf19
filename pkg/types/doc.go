/*
Package types defines the entities Sahara stores and passes between
packages: clusters with their node groups and instances, cluster and node
group templates, data sources, images, flavors and provision steps.

Field names follow the persisted document keys. Values is the loosely typed
form of those documents accepted by the conductor; Encode and Decode move
between the two. Configs holds user configuration grouped by target, where
a target is a service UI name or "general".

ClusterStatus is an open set. The constants cover the states the
reconciler drives a cluster through, but any string may be recorded.
*/
package types
