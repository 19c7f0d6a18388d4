package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"consent/internal/app"
)

// Handler handles WebSocket connections
type Handler struct {
	hub       *app.ElectionHub
	keepAlive time.Duration
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *app.ElectionHub, keepAlive time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		hub:       hub,
		keepAlive: keepAlive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Elections are open to anyone holding the id
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	electionID := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("electionId")))
	if electionID == "" {
		http.Error(w, "electionId is required", http.StatusBadRequest)
		return
	}

	// Subscribe before upgrading so a missing election is a plain 404 and no
	// event published after the snapshot below is missed
	sub, err := h.hub.Subscribe(electionID)
	if err != nil {
		http.Error(w, "Election not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(conn, h.hub, sub, electionID, clientID, h.keepAlive, h.logger)

	h.logger.Info("websocket connected",
		"electionID", electionID,
		"clientID", clientID,
	)

	client.sendConnected()
	client.Run()

	h.logger.Info("websocket disconnected",
		"electionID", electionID,
		"clientID", clientID,
	)
}
