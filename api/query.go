package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coursemate/coursemate/internal/generator"
	"github.com/coursemate/coursemate/internal/index"
	"github.com/coursemate/coursemate/internal/rag"
	"github.com/coursemate/coursemate/internal/tool"

	"github.com/coursemate/coursemate/internal/log"
)

// MaxQueryLength bounds the accepted question size.
const MaxQueryLength = 10000

// Service is the slice of the RAG system the handlers need.
type Service interface {
	Query(ctx context.Context, query, sessionID string) (answer string, sources []tool.Source, sid string, err error)
	CourseAnalytics(ctx context.Context) (rag.Analytics, error)
	NewSession() string
}

// QueryHandler answers questions over HTTP.
type QueryHandler struct {
	svc    Service
	logger log.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(svc Service, logger log.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.query)
}

// QueryRequest is the request body for answering a question.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the answer with its sources and conversation handle.
type QueryResponse struct {
	Answer    string        `json:"answer"`
	Sources   []tool.Source `json:"sources"`
	SessionID string        `json:"session_id"`
}

func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}
	if len(req.Query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query too long (max 10000 characters)")
		return
	}

	answer, sources, sid, err := h.svc.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, index.ErrCourseNotFound):
			writeError(w, http.StatusNotFound, "course_not_found", err.Error())
		case errors.Is(err, generator.ErrBackendUnavailable):
			h.logger.Error("generation backend unavailable", "error", err)
			writeError(w, http.StatusBadGateway, "backend_unavailable", "generation backend unavailable")
		default:
			h.logger.Error("query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "query failed")
		}
		return
	}

	if sources == nil {
		sources = []tool.Source{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{Answer: answer, Sources: sources, SessionID: sid})
}
