package calibration

import (
	"testing"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := newBroadcaster()
	ch1, cancel1 := b.subscribe()
	ch2, cancel2 := b.subscribe()
	defer cancel1()
	defer cancel2()

	b.publish(models.EventStatus, "payload")

	for i, ch := range []<-chan models.Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != models.EventStatus {
				t.Errorf("subscriber %d got type %q", i, e.Type)
			}
			if e.ID == "" {
				t.Errorf("subscriber %d got event without id", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	b := newBroadcaster()
	ch, cancel := b.subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	// Cancel twice is fine.
	cancel()
	// Publishing after cancel must not panic.
	b.publish(models.EventStatus, nil)
}

func TestBroadcasterNeverBlocksPublisher(t *testing.T) {
	b := newBroadcaster()
	_, cancel := b.subscribe()
	defer cancel()

	// Nobody is draining: publishes beyond the buffer must drop, not block.
	finished := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.publish(models.EventMeasurement, i)
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
