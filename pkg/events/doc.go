/*
Package events provides an in-memory broker for provisioning events.

The conductor publishes cluster and template changes, and the lifecycle
orchestrator publishes step and per-instance progress. Subscribers receive
every event on a buffered channel; a subscriber whose buffer is full misses
events rather than stalling the publisher.

# Event Types

	cluster.created            a cluster document was stored
	cluster.updated            any other change to a cluster
	cluster.status             status change, with "from" and "to" metadata
	cluster.deleted            a cluster and its provision steps are gone
	template.created           cluster or node group template changes
	template.updated
	template.deleted
	provision.step.started     a lifecycle step began, with "step_id", "total"
	provision.step.completed   every instance of the step succeeded
	provision.step.failed      the first instance of the step failed
	provision.instance.failed  one instance failed a step

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	for ev := range sub {
		fmt.Println(ev.Type, ev.ClusterID, ev.Message)
	}

Subscribe takes filters; an event is delivered when it passes all of them:

	failures := broker.Subscribe(
		events.ForCluster(id),
		events.OfType(events.EventProvisionStepFailed, events.EventProvisionInstanceFailed),
	)

Unsubscribe closes the channel, which ends a range loop over it.

# Ordering and Flush

Events are delivered in publish order through a single queue. Delivery is
asynchronous, so a subscriber that must see everything a call published
uses Flush before unsubscribing:

	err := reconciler.Reconcile(ctx)
	broker.Flush()
	broker.Unsubscribe(sub)

Flush returns once every event published before it has been handed to the
subscribers, or when the broker stops.

Events are not persisted. The durable audit trail is the provision step
record kept by the conductor.
*/
package events
