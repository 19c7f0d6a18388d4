package app

import (
	"log/slog"
	"sync"
	"time"

	"consent/internal/domain"
)

// ElectionSession pairs an election with its broadcaster. Both are created
// together and live as long as the session.
type ElectionSession struct {
	mu           sync.Mutex
	election     *domain.Election
	lastActivity time.Time

	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewElectionSession creates a new election session
func NewElectionSession(election *domain.Election, subscriberBuffer int, logger *slog.Logger) *ElectionSession {
	logger = logger.With("electionID", election.ID())
	return &ElectionSession{
		election:     election,
		lastActivity: time.Now(),
		broadcaster:  NewBroadcaster(election.ID(), subscriberBuffer, logger),
		logger:       logger,
	}
}

// ID returns the election id
func (s *ElectionSession) ID() string {
	return s.election.ID()
}

// apply runs op with exclusive access to the election. The lock covers op
// only; callers publish events after apply returns.
func (s *ElectionSession) apply(op func(e *domain.Election) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()
	return op(s.election)
}

// idleSince returns when the election was last touched
func (s *ElectionSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// publish notifies subscribers of a change
func (s *ElectionSession) publish(eventType domain.EventType) {
	delivered := s.broadcaster.Publish(domain.NewEvent(eventType, s.election.ID()))
	s.logger.Debug("event published", "type", eventType, "subscribers", delivered)
}

// Close shuts down the session, releasing all subscribers
func (s *ElectionSession) Close() {
	s.broadcaster.Close()
}
