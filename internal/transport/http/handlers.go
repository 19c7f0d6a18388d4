package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"consent/internal/domain"
)

// maxBodySize caps request bodies
const maxBodySize = 64 << 10

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateElectionRequest is the body of POST /api/elections. Nominees may be
// given as a list, as newline separated text, or both.
type CreateElectionRequest struct {
	ElectedRole  string   `json:"electedRole"`
	Nominees     []string `json:"nominees"`
	NomineesText string   `json:"nomineesText"`
}

// CreateElectionResponse is the response for election creation
type CreateElectionResponse struct {
	ElectionID string `json:"electionId"`
}

// CastVoteRequest is the body of POST /api/elections/{id}/votes
type CastVoteRequest struct {
	VoterName string `json:"voterName"`
	NomineeID uint64 `json:"nomineeId"`
}

// StepRequest is the body of POST /api/elections/{id}/step
type StepRequest struct {
	ExpectedPhase string `json:"expectedPhase"`
	Direction     string `json:"direction"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveElections int `json:"activeElections"`
	Subscribers     int `json:"subscribers"`
}

// handleCreateElection handles POST /api/elections
func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req CreateElectionRequest
	if !s.decode(w, r, &req) {
		return
	}

	nominees := req.Nominees
	if req.NomineesText != "" {
		nominees = append(nominees, strings.Split(req.NomineesText, "\n")...)
	}

	id, err := s.hub.CreateElection(strings.TrimSpace(req.ElectedRole), nominees)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/elections/"+id)
	s.sendSuccess(w, &CreateElectionResponse{ElectionID: id})
}

// handleGetElection handles GET /api/elections/{id}
func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	snap, err := s.hub.Snapshot(electionID(r))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, snap)
}

// handleCastVote handles POST /api/elections/{id}/votes
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if !s.decode(w, r, &req) {
		return
	}

	id := electionID(r)
	if err := s.hub.CastVote(id, req.VoterName, req.NomineeID); err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.handleGetElection(w, r)
}

// handleStep handles POST /api/elections/{id}/step
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.hub.RequestTransition(electionID(r), req.ExpectedPhase, req.Direction); err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.handleGetElection(w, r)
}

// handleEvents handles GET /api/elections/{id}/events as a Server-Sent
// Events stream. Events are change notifications only; clients refetch the
// snapshot on each one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming not supported")
		return
	}

	id := electionID(r)
	sub, err := s.hub.Subscribe(id)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	// A stream outlives the server write timeout
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("failed to clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := s.logger.With("electionID", id, "subscriptionID", sub.ID())
	logger.Debug("event stream opened")

	err = sub.Stream(r.Context(), s.config.Election.KeepAlive, func(ev domain.Event) error {
		if err := writeEvent(w, ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	logger.Debug("event stream closed", "reason", err)
}

// writeEvent writes one event in text/event-stream framing
func writeEvent(w http.ResponseWriter, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveElections: s.hub.ElectionCount(),
		Subscribers:     s.hub.SubscriberCount(),
	})
}

// electionID reads the election id from the path. Ids are case-insensitive.
func electionID(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.PathValue("id")))
}

// decode reads a JSON body into v, answering 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return false
	}
	return true
}

// sendDomainError maps a domain error onto a status and error code
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrElectionNotFound):
		s.sendError(w, http.StatusNotFound, "ELECTION_NOT_FOUND", "Election not found")
	case errors.Is(err, domain.ErrPhaseConflict):
		s.sendError(w, http.StatusConflict, "PHASE_CONFLICT", err.Error())
	case errors.Is(err, domain.ErrUnknownPhase):
		s.sendError(w, http.StatusBadRequest, "UNKNOWN_PHASE", err.Error())
	case errors.Is(err, domain.ErrInvalidDirection):
		s.sendError(w, http.StatusBadRequest, "INVALID_DIRECTION", err.Error())
	case errors.Is(err, domain.ErrUnknownNominee):
		s.sendError(w, http.StatusBadRequest, "UNKNOWN_NOMINEE", err.Error())
	case errors.Is(err, domain.ErrNoNominees):
		s.sendError(w, http.StatusBadRequest, "NO_NOMINEES", "At least one nominee is required")
	case errors.Is(err, domain.ErrEmptyVoterName):
		s.sendError(w, http.StatusBadRequest, "MISSING_VOTER_NAME", "Voter name is required")
	case errors.Is(err, domain.ErrRegistryFull):
		s.sendError(w, http.StatusServiceUnavailable, "CREATION_FAILED", "No room for another election")
	default:
		s.logger.Error("request failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
