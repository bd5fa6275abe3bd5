package events

import (
	"sync"
	"testing"
	"time"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNowPlaying)

	bus.Publish(EventNowPlaying, Payload{"artist": "A", "title": "T"})

	select {
	case got := <-sub:
		if got["artist"] != "A" || got["title"] != "T" {
			t.Fatalf("unexpected payload: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
	}
}

func TestBusDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRecognitionOutcome)

	// Fill the subscriber buffer and keep publishing; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(EventRecognitionOutcome, Payload{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	_ = sub
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventInlineMetadata)
	bus.Unsubscribe(EventInlineMetadata, sub)

	if _, open := <-sub; open {
		t.Fatal("expected channel closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(EventInlineMetadata, Payload{"raw": "x"})
}

// Clients subscribe and unsubscribe while the pipeline keeps publishing;
// a publish must never land on a channel Unsubscribe has closed.
func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					bus.Publish(EventNowPlaying, Payload{"artist": "A"})
				}
			}
		}()
	}

	// Churn subscribers with full buffers so publishes hit live channels.
	for i := 0; i < 500; i++ {
		sub := bus.Subscribe(EventNowPlaying)
		for j := 0; j < cap(sub); j++ {
			select {
			case sub <- Payload{}:
			default:
			}
		}
		bus.Unsubscribe(EventNowPlaying, sub)
	}

	close(stop)
	wg.Wait()
}
