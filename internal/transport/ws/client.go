package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"consent/internal/app"
	"consent/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents a WebSocket client watching one election
type Client struct {
	conn       *websocket.Conn
	hub        *app.ElectionHub
	sub        *app.Subscription
	electionID string
	clientID   string
	keepAlive  time.Duration
	send       chan []byte
	done       chan struct{}
	logger     *slog.Logger
	mu         sync.Mutex
	closed     bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, hub *app.ElectionHub, sub *app.Subscription, electionID, clientID string, keepAlive time.Duration, logger *slog.Logger) *Client {
	return &Client{
		conn:       conn,
		hub:        hub,
		sub:        sub,
		electionID: electionID,
		clientID:   clientID,
		keepAlive:  keepAlive,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		logger:     logger.With("electionID", electionID, "clientID", clientID),
	}
}

// Send queues a message for the peer. A full buffer drops the message.
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped")
		return nil
	}
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's pumps and blocks until the connection ends
func (c *Client) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.writePump()
	go c.eventPump(ctx)
	c.readPump()
}

// eventPump forwards election events to the peer
func (c *Client) eventPump(ctx context.Context) {
	err := c.sub.Stream(ctx, c.keepAlive, func(ev domain.Event) error {
		return c.Send(eventMessage(ev))
	})
	if errors.Is(err, domain.ErrSubscriptionClosed) {
		// Election gone or server shutting down
		c.logger.Debug("subscription ended, closing connection")
		c.Close()
	}
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket
// connection, one message per frame
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgCastVote:
		c.handleCastVote(msg.Payload)
	case MsgStep:
		c.handleStep(msg.Payload)
	case MsgGetSnapshot:
		c.sendSnapshot()
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleCastVote handles a cast_vote message
func (c *Client) handleCastVote(payload json.RawMessage) {
	var p CastVotePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	if err := c.hub.CastVote(c.electionID, p.VoterName, p.NomineeID); err != nil {
		c.sendDomainError(err)
	}
}

// handleStep handles a step message
func (c *Client) handleStep(payload json.RawMessage) {
	var p StepPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	if err := c.hub.RequestTransition(c.electionID, p.ExpectedPhase, p.Direction); err != nil {
		c.sendDomainError(err)
	}
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected() {
	snap, err := c.hub.Snapshot(c.electionID)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	c.Send(NewServerMessage(MsgConnected, &ConnectedPayload{
		ClientID: c.clientID,
		Election: snap,
	}))
}

// sendSnapshot sends the current election state
func (c *Client) sendSnapshot() {
	snap, err := c.hub.Snapshot(c.electionID)
	if err != nil {
		c.sendDomainError(err)
		return
	}
	c.Send(NewServerMessage(MsgSnapshot, snap))
}

// sendDomainError maps a domain error onto an error message
func (c *Client) sendDomainError(err error) {
	switch {
	case errors.Is(err, domain.ErrElectionNotFound):
		c.sendError(ErrCodeElectionNotFound, "Election not found")
	case errors.Is(err, domain.ErrPhaseConflict):
		c.sendError(ErrCodePhaseConflict, err.Error())
	case errors.Is(err, domain.ErrUnknownPhase),
		errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, domain.ErrUnknownNominee),
		errors.Is(err, domain.ErrEmptyVoterName):
		c.sendError(ErrCodeInvalidAction, err.Error())
	default:
		c.logger.Error("command failed", "error", err)
		c.sendError(ErrCodeInternalError, "Internal server error")
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	payload := &ErrorPayload{
		Code:    code,
		Message: message,
	}

	msg := NewServerMessage(MsgError, payload)
	c.Send(msg)
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	msg := NewServerMessage(MsgPong, nil)
	c.Send(msg)
}
