package events

import (
	"sync"
	"testing"
	"time"
)

func TestMemBus_HandlerReceivesTopic(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	var got []Event
	off := b.On(TopicLogin, func(e Event) { got = append(got, e) })
	defer off()

	b.Publish(New(TopicLogin, map[string]any{"email": "a@x.com"}))
	b.Publish(New(TopicLogout, nil))

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Payload["email"] != "a@x.com" {
		t.Errorf("payload = %v", got[0].Payload)
	}
}

func TestMemBus_OffStopsDelivery(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	calls := 0
	off := b.On(TopicStorage, func(Event) { calls++ })
	b.Publish(New(TopicStorage, nil))
	off()
	off() // idempotent
	b.Publish(New(TopicStorage, nil))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestMemBus_HandlerMayPublish(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	done := make(chan struct{})
	b.On(TopicLogin, func(Event) { b.Publish(New(TopicStorage, nil)) })
	b.On(TopicStorage, func(Event) { close(done) })

	b.Publish(New(TopicLogin, nil))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested publish not delivered")
	}
}

func TestMemBus_SubscriptionTopicIsolation(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	profile := b.Subscribe(TopicProfileUpdated)
	defer profile.Close()
	all := b.Subscribe()
	defer all.Close()

	b.Publish(New(TopicLogin, nil))
	b.Publish(New(TopicProfileUpdated, map[string]any{"profileImg": "x.png"}))

	select {
	case e := <-profile.Events():
		if e.Topic != TopicProfileUpdated {
			t.Errorf("topic = %q", e.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("profile subscriber missed event")
	}
	select {
	case e := <-profile.Events():
		t.Fatalf("unexpected extra event %q", e.Topic)
	case <-time.After(50 * time.Millisecond):
	}

	for i := 0; i < 2; i++ {
		select {
		case <-all.Events():
		case <-time.After(time.Second):
			t.Fatalf("wildcard subscriber missed event %d", i)
		}
	}
}

func TestMemBus_DropsWhenFull(t *testing.T) {
	b := NewMemBus(MemBusConfig{SubscriberBufferSize: 1})
	defer b.Close()

	sub := b.Subscribe(TopicFeedUpdated)
	b.Publish(New(TopicFeedUpdated, nil))
	b.Publish(New(TopicFeedUpdated, nil)) // dropped, must not block

	<-sub.Events()
	select {
	case <-sub.Events():
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestMemBus_CloseClosesSubscriptions(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	sub := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Publishing after close is a no-op.
	b.Publish(New(TopicLogin, nil))
	if err := sub.Close(); err != nil {
		t.Errorf("Close after bus close: %v", err)
	}
}

func TestMemBus_ConcurrentPublish(t *testing.T) {
	b := NewMemBus(MemBusConfig{SubscriberBufferSize: 1000})
	defer b.Close()

	var mu sync.Mutex
	count := 0
	b.On(TopicFeedUpdated, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(New(TopicFeedUpdated, nil))
			}
		}()
	}
	wg.Wait()

	if count != 500 {
		t.Errorf("count = %d, want 500", count)
	}
}
