package app

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"consent/internal/domain"
	"consent/internal/metrics"
)

const (
	// DefaultIDLength is the default length of election ids (80 bits)
	DefaultIDLength = 16

	// idAttempts bounds the retries on an id collision
	idAttempts = 10

	// sweepInterval is how often idle elections are looked for
	sweepInterval = 10 * time.Minute
)

// IDChars are characters used for election ids (no ambiguous chars).
// 32 symbols, so a random byte maps onto them without bias.
const IDChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HubOptions tunes an ElectionHub
type HubOptions struct {
	IDLength         int
	MaxElections     int           // 0 means unlimited
	SubscriberBuffer int           // Per-subscriber event buffer
	IdleTimeout      time.Duration // 0 keeps elections for the process lifetime
}

// ElectionHub owns every election of the process. All access to an election
// goes through it, under that election's lock.
type ElectionHub struct {
	sessions map[string]*ElectionSession
	mu       sync.RWMutex
	opts     HubOptions
	logger   *slog.Logger
	done     chan struct{}
	doneOnce sync.Once
}

// NewElectionHub creates a new election hub
func NewElectionHub(opts HubOptions, logger *slog.Logger) *ElectionHub {
	if opts.IDLength <= 0 {
		opts.IDLength = DefaultIDLength
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = DefaultSubscriberBuffer
	}

	hub := &ElectionHub{
		sessions: make(map[string]*ElectionSession),
		opts:     opts,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if opts.IdleTimeout > 0 {
		go hub.cleanupLoop()
	}

	return hub
}

// CreateElection creates a new election and returns its id
func (h *ElectionHub) CreateElection(electedRole string, rawNominees []string) (string, error) {
	if domain.NewNominees(rawNominees).Len() == 0 {
		return "", domain.ErrNoNominees
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.MaxElections > 0 && len(h.sessions) >= h.opts.MaxElections {
		return "", fmt.Errorf("%w: limit of %d reached", domain.ErrRegistryFull, h.opts.MaxElections)
	}

	// Generate unique id
	var id string
	for attempts := 0; attempts < idAttempts; attempts++ {
		candidate, err := h.generateID()
		if err != nil {
			return "", err
		}
		if _, exists := h.sessions[candidate]; !exists {
			id = candidate
			break
		}
	}
	if id == "" {
		return "", fmt.Errorf("%w: failed to generate unique election id", domain.ErrRegistryFull)
	}

	election := domain.NewElection(id, electedRole, rawNominees)
	h.sessions[id] = NewElectionSession(election, h.opts.SubscriberBuffer, h.logger)
	metrics.RecordElectionCreated()

	h.logger.Info("election created",
		"electionID", id,
		"electedRole", electedRole,
		"nominees", election.Nominees().Len(),
	)

	return id, nil
}

// WithElection runs op under the election's exclusive lock and returns its
// error. No reference to the election may escape op.
func (h *ElectionHub) WithElection(id string, op func(e *domain.Election) error) error {
	session, err := h.session(id)
	if err != nil {
		return err
	}
	return session.apply(op)
}

// Snapshot returns a consistent copy of the election's visible state
func (h *ElectionHub) Snapshot(id string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := h.WithElection(id, func(e *domain.Election) error {
		var err error
		snap, err = e.Snapshot()
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// CastVote records a ballot and notifies subscribers. Ballots cast outside a
// vote phase are dropped without error. Votes are not checked against a
// phase the voter expects: the last write wins.
func (h *ElectionHub) CastVote(id, voterName string, nomineeID uint64) error {
	voterName = strings.TrimSpace(voterName)
	if voterName == "" {
		return domain.ErrEmptyVoterName
	}

	session, err := h.session(id)
	if err != nil {
		return err
	}

	var applied bool
	err = session.apply(func(e *domain.Election) error {
		if !e.Nominees().Has(nomineeID) {
			return fmt.Errorf("%w: %d", domain.ErrUnknownNominee, nomineeID)
		}
		applied = e.CastVote(voterName, nomineeID)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordVote(applied)
	if !applied {
		session.logger.Debug("vote outside vote phase dropped", "voter", voterName)
	}

	session.publish(domain.EventVotesChanged)
	return nil
}

// RequestTransition steps the election in the given direction, provided it
// is still in the phase the caller expects. A stale expectation yields
// ErrPhaseConflict and changes nothing.
func (h *ElectionHub) RequestTransition(id, expectedPhase, direction string) error {
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return err
	}
	expected, err := domain.ParsePhase(expectedPhase)
	if err != nil {
		return err
	}

	session, err := h.session(id)
	if err != nil {
		metrics.RecordTransition(dir.String(), "not_found")
		return err
	}

	var from, to domain.Phase
	err = session.apply(func(e *domain.Election) error {
		from = e.Phase()
		if from != expected {
			return fmt.Errorf("%w: expected %s, election is in %s", domain.ErrPhaseConflict, expected, from)
		}
		if err := e.Step(dir); err != nil {
			return err
		}
		to = e.Phase()
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrPhaseConflict) {
			metrics.RecordTransition(dir.String(), "conflict")
		}
		return err
	}

	metrics.RecordTransition(dir.String(), "applied")
	session.logger.Info("election stepped", "direction", dir, "from", from, "to", to)

	session.publish(domain.EventPhaseChanged)
	return nil
}

// Subscribe attaches a new subscriber to the election's events
func (h *ElectionHub) Subscribe(id string) (*Subscription, error) {
	session, err := h.session(id)
	if err != nil {
		return nil, err
	}
	return session.broadcaster.Subscribe()
}

// ElectionCount returns the number of elections
func (h *ElectionHub) ElectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SubscriberCount returns the number of subscribers across all elections
func (h *ElectionHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, session := range h.sessions {
		total += session.broadcaster.SubscriberCount()
	}
	return total
}

// Close shuts down the hub and all sessions
func (h *ElectionHub) Close() {
	h.doneOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, session := range h.sessions {
		session.Close()
	}
	metrics.RecordElectionsRemoved(len(h.sessions))
	h.sessions = make(map[string]*ElectionSession)
}

func (h *ElectionHub) session(id string) (*ElectionSession, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	session, ok := h.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrElectionNotFound, id)
	}

	return session, nil
}

// generateID generates a random election id
func (h *ElectionHub) generateID() (string, error) {
	b := make([]byte, h.opts.IDLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate election id: %w", err)
	}

	id := make([]byte, h.opts.IDLength)
	for i := range id {
		id[i] = IDChars[int(b[i])%len(IDChars)]
	}

	return string(id), nil
}

// cleanupLoop periodically removes idle elections
func (h *ElectionHub) cleanupLoop() {
	ticker := time.NewTicker(min(sweepInterval, h.opts.IdleTimeout))
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case now := <-ticker.C:
			h.removeIdle(now)
		}
	}
}

// removeIdle removes elections nobody touched or watched for IdleTimeout
func (h *ElectionHub) removeIdle(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	idle := make([]string, 0)
	for id, session := range h.sessions {
		if session.broadcaster.SubscriberCount() == 0 && now.Sub(session.idleSince()) > h.opts.IdleTimeout {
			idle = append(idle, id)
		}
	}

	for _, id := range idle {
		h.sessions[id].Close()
		delete(h.sessions, id)
		h.logger.Info("idle election removed", "electionID", id)
	}
	metrics.RecordElectionsRemoved(len(idle))

	return len(idle)
}
