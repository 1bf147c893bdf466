package calibration

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

// subscriberBuffer bounds each consumer's queue. A slow consumer loses
// events rather than blocking the engine worker.
const subscriberBuffer = 64

// broadcaster fans engine events out to any number of subscribers without
// ever blocking the publishing goroutine.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan models.Event
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan models.Event)}
}

// subscribe returns a receive channel and a cancel func. The channel is
// closed on cancel.
func (b *broadcaster) subscribe() (<-chan models.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan models.Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers to every subscriber; full buffers drop the event.
func (b *broadcaster) publish(eventType string, payload any) {
	e := models.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
