package domain

import "time"

// EventType represents the type of election event
type EventType string

const (
	EventPhaseChanged EventType = "phase_changed"
	EventVotesChanged EventType = "votes_changed"
	EventKeepAlive    EventType = "keep_alive" // Heartbeat for idle connections, no domain meaning
)

// Event tells subscribers that an election changed. It carries no state:
// subscribers fetch a fresh snapshot when they need one.
type Event struct {
	Type       EventType `json:"type"`
	ElectionID string    `json:"electionId"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent creates a new election event
func NewEvent(eventType EventType, electionID string) Event {
	return Event{
		Type:       eventType,
		ElectionID: electionID,
		Timestamp:  time.Now(),
	}
}

// IsKeepAlive reports whether the event is a heartbeat
func (e Event) IsKeepAlive() bool {
	return e.Type == EventKeepAlive
}
