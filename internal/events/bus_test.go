package events

import "testing"

func TestPublishReachesAllTopicSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(TopicQueueStatusChanged, "a", 4)
	b := bus.Subscribe(TopicQueueStatusChanged, "b", 4)
	other := bus.Subscribe(TopicKeyStateChanged, "c", 4)

	bus.Publish(TopicQueueStatusChanged, "hello")

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Topic != TopicQueueStatusChanged || ev.Payload != "hello" {
				t.Errorf("subscriber %s got %+v", name, ev)
			}
		default:
			t.Errorf("subscriber %s got nothing", name)
		}
	}

	select {
	case ev := <-other:
		t.Errorf("unrelated topic received %+v", ev)
	default:
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicMigrationProgress, "slow", 1)

	bus.Publish(TopicMigrationProgress, 1)
	bus.Publish(TopicMigrationProgress, 2) // buffer full, dropped

	ev := <-ch
	if ev.Payload != 1 {
		t.Errorf("payload = %v, want 1", ev.Payload)
	}
	select {
	case ev := <-ch:
		t.Errorf("dropped event delivered: %+v", ev)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicDatabaseReady, "once", 1)
	if n := bus.SubscriberCount(TopicDatabaseReady); n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}

	bus.Unsubscribe(TopicDatabaseReady, "once")
	if n := bus.SubscriberCount(TopicDatabaseReady); n != 0 {
		t.Fatalf("subscriber count after unsubscribe = %d, want 0", n)
	}

	bus.Publish(TopicDatabaseReady, "late")
	select {
	case ev := <-ch:
		t.Errorf("unsubscribed channel received %+v", ev)
	default:
	}
}

func TestPublishToTopicWithoutSubscribers(t *testing.T) {
	// Must not panic or block.
	NewBus().Publish(TopicQueueStatusChanged, nil)
}
