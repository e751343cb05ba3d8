package api

import (
	"net/http"

	"github.com/coursemate/coursemate/internal/log"
)

// CoursesHandler serves catalog analytics.
type CoursesHandler struct {
	svc    Service
	logger log.Logger
}

// NewCoursesHandler creates a new courses handler.
func NewCoursesHandler(svc Service, logger log.Logger) *CoursesHandler {
	return &CoursesHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers course routes on the given mux.
func (h *CoursesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses", h.analytics)
}

func (h *CoursesHandler) analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.CourseAnalytics(r.Context())
	if err != nil {
		h.logger.Error("failed to load course analytics", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load analytics")
		return
	}
	if stats.CourseTitles == nil {
		stats.CourseTitles = []string{}
	}
	writeJSON(w, http.StatusOK, stats)
}
