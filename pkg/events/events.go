package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventClusterCreated          EventType = "cluster.created"
	EventClusterUpdated          EventType = "cluster.updated"
	EventClusterDeleted          EventType = "cluster.deleted"
	EventClusterStatusChanged    EventType = "cluster.status"
	EventTemplateCreated         EventType = "template.created"
	EventTemplateUpdated         EventType = "template.updated"
	EventTemplateDeleted         EventType = "template.deleted"
	EventProvisionStepStarted    EventType = "provision.step.started"
	EventProvisionStepCompleted  EventType = "provision.step.completed"
	EventProvisionStepFailed     EventType = "provision.step.failed"
	EventProvisionInstanceFailed EventType = "provision.instance.failed"
)

// Event is a change to a cluster or template, or progress of a
// provisioning step
type Event struct {
	ID        string
	Type      EventType
	ClusterID string
	Timestamp time.Time
	Message   string
	Metadata  map[string]string

	// barrier is closed by the broker instead of delivering the event
	barrier chan struct{}
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Filter selects the events a subscriber receives
type Filter func(*Event) bool

// ForCluster passes the events of one cluster
func ForCluster(clusterID string) Filter {
	return func(ev *Event) bool { return ev.ClusterID == clusterID }
}

// OfType passes events of the given types
func OfType(types ...EventType) Filter {
	return func(ev *Event) bool {
		for _, t := range types {
			if ev.Type == t {
				return true
			}
		}
		return false
	}
}

// Broker fans published events out to subscribers. Publishing never waits
// on a subscriber: a full subscriber buffer drops the event for that
// subscriber only.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber][]Filter
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber][]Filter),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins distributing published events
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker. Further publishes are dropped.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe returns a channel receiving the events that pass every filter
func (b *Broker) Subscribe(filters ...Filter) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = filters
	return sub
}

// Unsubscribe removes a subscription and closes its channel
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues an event for distribution
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

// Flush waits until every event published before the call has been
// handed to subscribers. It returns early if the broker stops.
func (b *Broker) Flush() {
	barrier := make(chan struct{})
	select {
	case b.eventCh <- &Event{barrier: barrier}:
	case <-b.stopCh:
		return
	}
	select {
	case <-barrier:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			if event.barrier != nil {
				close(event.barrier)
				continue
			}
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, filters := range b.subscribers {
		if !passes(event, filters) {
			continue
		}
		select {
		case sub <- event:
		default:
		}
	}
}

func passes(event *Event, filters []Filter) bool {
	for _, f := range filters {
		if !f(event) {
			return false
		}
	}
	return true
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
