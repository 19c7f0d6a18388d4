package ws

import (
	"encoding/json"
	"time"

	"consent/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgCastVote    MessageType = "cast_vote"
	MsgStep        MessageType = "step"
	MsgGetSnapshot MessageType = "get_snapshot"
	MsgPing        MessageType = "ping"
)

// Server → Client message types
const (
	MsgConnected    MessageType = "connected"
	MsgSnapshot     MessageType = "snapshot"
	MsgError        MessageType = "error"
	MsgPhaseChanged MessageType = MessageType(domain.EventPhaseChanged)
	MsgVotesChanged MessageType = MessageType(domain.EventVotesChanged)
	MsgKeepAlive    MessageType = MessageType(domain.EventKeepAlive)
	MsgPong         MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// eventMessage converts an election event into its server message
func eventMessage(ev domain.Event) *ServerMessage {
	return &ServerMessage{
		Type:      MessageType(ev.Type),
		Payload:   &EventPayload{ElectionID: ev.ElectionID},
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// CastVotePayload is the payload for cast_vote message
type CastVotePayload struct {
	VoterName string `json:"voterName"`
	NomineeID uint64 `json:"nomineeId"`
}

// StepPayload is the payload for step message
type StepPayload struct {
	ExpectedPhase string `json:"expectedPhase"`
	Direction     string `json:"direction"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	ClientID string           `json:"clientId"`
	Election *domain.Snapshot `json:"election"`
}

// EventPayload is the payload of phase_changed, votes_changed and keep_alive
type EventPayload struct {
	ElectionID string `json:"electionId"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeElectionNotFound = "ELECTION_NOT_FOUND"
	ErrCodePhaseConflict    = "PHASE_CONFLICT"
	ErrCodeInvalidAction    = "INVALID_ACTION"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)
