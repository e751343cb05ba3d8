package api

import "net/http"

// SessionHandler manages conversation sessions.
type SessionHandler struct {
	svc Service
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.create)
}

// CreateSessionResponse carries the minted conversation handle.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// create starts a new empty conversation.
func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: h.svc.NewSession()})
}
