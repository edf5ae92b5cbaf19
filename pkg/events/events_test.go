package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventClusterCreated, ClusterID: "c1"})

	for _, sub := range []Subscriber{first, second} {
		select {
		case ev := <-sub:
			require.NotNil(t, ev)
			assert.Equal(t, EventClusterCreated, ev.Type)
			assert.Equal(t, "c1", ev.ClusterID)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	assert.Equal(t, 0, b.SubscriberCount())
	_, open := <-sub
	assert.False(t, open)
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Stop()
	b.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(&Event{Type: EventProvisionStepStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after stop")
	}
}

func TestBrokerFilters(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	failures := b.Subscribe(OfType(EventProvisionStepFailed, EventProvisionInstanceFailed))
	cluster := b.Subscribe(ForCluster("c2"))
	both := b.Subscribe(ForCluster("c1"), OfType(EventClusterStatusChanged))

	published := []*Event{
		{Type: EventClusterStatusChanged, ClusterID: "c1"},
		{Type: EventProvisionStepFailed, ClusterID: "c2"},
		{Type: EventProvisionStepStarted, ClusterID: "c1"},
	}
	for _, ev := range published {
		b.Publish(ev)
	}

	receive := func(sub Subscriber) *Event {
		select {
		case ev := <-sub:
			return ev
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
			return nil
		}
	}

	assert.Equal(t, published[1], receive(failures))
	assert.Equal(t, published[1], receive(cluster))
	assert.Equal(t, published[0], receive(both))

	// Nothing else passes the filters
	b.Flush()
	assert.Empty(t, failures)
	assert.Empty(t, cluster)
	assert.Empty(t, both)
}

func TestBrokerFlush(t *testing.T) {
	b := NewBroker()
	b.Start()

	sub := b.Subscribe()
	for i := 0; i < 10; i++ {
		b.Publish(&Event{Type: EventProvisionStepStarted, ClusterID: "c1"})
	}
	b.Flush()
	assert.Len(t, sub, 10)

	b.Stop()
	done := make(chan struct{})
	go func() {
		b.Flush()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Flush blocked on a stopped broker")
	}
}
