package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/builder-web/internal/state"
)

// DefaultSubscriberBuffer is the number of snapshots queued per subscriber.
const DefaultSubscriberBuffer = 16

// Subscriber receives state snapshots until it is unsubscribed.
type Subscriber struct {
	ID        string
	Ch        chan *state.AppState
	CreatedAt time.Time
}

// Broker fans state snapshots out to websocket subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	buffer      int
	closed      bool
	logger      *slog.Logger
}

// NewBroker creates a broker. A non-positive buffer uses DefaultSubscriberBuffer.
func NewBroker(buffer int, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe registers a new subscriber. It returns nil once the broker is closed.
func (b *Broker) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	sub := &Subscriber{
		ID:        uuid.NewString(),
		Ch:        make(chan *state.AppState, b.buffer),
		CreatedAt: time.Now(),
	}
	b.subscribers[sub.ID] = sub
	b.logger.Debug("subscriber added", "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.ID]; ok {
		close(sub.Ch)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish queues s for every subscriber without blocking. A subscriber whose
// queue is full loses its oldest pending snapshot.
func (b *Broker) Publish(s *state.AppState) {
	if s == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Ch <- s:
			continue
		default:
		}

		select {
		case <-sub.Ch:
			b.logger.Warn("subscriber channel full, dropping oldest snapshot", "subscriber_id", sub.ID)
		default:
		}
		select {
		case sub.Ch <- s:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes everyone and refuses new subscribers.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.Ch)
		delete(b.subscribers, id)
	}
}
