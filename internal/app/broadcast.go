package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"consent/internal/domain"
	"consent/internal/metrics"
)

const (
	// DefaultSubscriberBuffer is how many events a subscriber may fall behind
	// before its oldest events are dropped
	DefaultSubscriberBuffer = 16

	// DefaultKeepAliveInterval is how often an idle stream gets a heartbeat
	DefaultKeepAliveInterval = 5 * time.Minute

	// deliverAttempts bounds the drop-oldest retry loop of a single delivery
	deliverAttempts = 3
)

// Broadcaster fans out the events of one election to all its subscribers.
// Publishing never blocks: a subscriber whose buffer is full loses its
// oldest event, and an event nobody listens to is simply discarded.
type Broadcaster struct {
	electionID string
	bufferSize int
	logger     *slog.Logger

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewBroadcaster creates the broadcaster of an election
func NewBroadcaster(electionID string, bufferSize int, logger *slog.Logger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		electionID: electionID,
		bufferSize: bufferSize,
		logger:     logger,
		subs:       make(map[string]*Subscription),
	}
}

// Subscribe attaches a new subscriber. It only sees events published after
// this call returns.
func (b *Broadcaster) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, domain.ErrSubscriptionClosed
	}

	sub := &Subscription{
		id:          uuid.NewString(),
		electionID:  b.electionID,
		events:      make(chan domain.Event, b.bufferSize),
		broadcaster: b,
	}
	b.subs[sub.id] = sub
	metrics.RecordSubscriberAdded()

	b.logger.Debug("subscriber attached", "electionID", b.electionID, "subscriptionID", sub.id)

	return sub, nil
}

// Publish delivers an event to every current subscriber and returns how many
// there were
func (b *Broadcaster) Publish(event domain.Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	metrics.RecordEventPublished(string(event.Type))

	if len(b.subs) == 0 {
		b.logger.Debug("no subscribers, event discarded", "electionID", b.electionID, "type", event.Type)
		return 0
	}

	for _, sub := range b.subs {
		sub.deliver(event)
	}

	return len(b.subs)
}

// SubscriberCount returns the number of attached subscribers
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches every subscriber and refuses new ones
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		close(sub.events)
		delete(b.subs, id)
		metrics.RecordSubscriberRemoved()
	}
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.events)
	metrics.RecordSubscriberRemoved()

	b.logger.Debug("subscriber detached",
		"electionID", b.electionID,
		"subscriptionID", sub.id,
		"dropped", sub.Dropped(),
	)
}

// Subscription is one receiver of an election's events
type Subscription struct {
	id          string
	electionID  string
	events      chan domain.Event
	broadcaster *Broadcaster
	dropped     atomic.Uint64
	closeOnce   sync.Once
}

// ID returns the subscription id
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the event channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan domain.Event {
	return s.events
}

// Dropped returns how many events were evicted from a full buffer
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.broadcaster.unsubscribe(s)
	})
}

// Stream calls fn for every event, plus a keep-alive event whenever
// keepAlive elapses (zero disables heartbeats). It returns when ctx is done,
// the subscription is closed, or fn fails, and always detaches the
// subscription.
func (s *Subscription) Stream(ctx context.Context, keepAlive time.Duration, fn func(domain.Event) error) error {
	defer s.Close()

	var heartbeat <-chan time.Time
	if keepAlive > 0 {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-s.events:
			if !ok {
				return domain.ErrSubscriptionClosed
			}
			if err := fn(event); err != nil {
				return err
			}
		case <-heartbeat:
			if err := fn(domain.NewEvent(domain.EventKeepAlive, s.electionID)); err != nil {
				return err
			}
		}
	}
}

// deliver enqueues an event, evicting the oldest queued events if the buffer
// is full. Caller must hold the broadcaster read lock.
func (s *Subscription) deliver(event domain.Event) {
	for attempt := 0; attempt < deliverAttempts; attempt++ {
		select {
		case s.events <- event:
			return
		default:
		}

		select {
		case <-s.events:
			s.dropped.Add(1)
			metrics.RecordEventDropped()
		default:
		}
	}

	// Still full after evicting: other publishers refilled it first
	s.dropped.Add(1)
	metrics.RecordEventDropped()
	s.broadcaster.logger.Warn("subscriber buffer full, event dropped",
		"electionID", s.electionID,
		"subscriptionID", s.id,
		"type", event.Type,
	)
}
