package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/service"
)

// FixtureHandler serves the read-only fixture schedule.
type FixtureHandler struct {
	fixtures *service.FixtureService
	logger   *slog.Logger
}

func NewFixtureHandler(fixtures *service.FixtureService, logger *slog.Logger) *FixtureHandler {
	return &FixtureHandler{fixtures: fixtures, logger: logger}
}

// HTTP: GET /api/fixtures/next
func (h *FixtureHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	fixtures, err := h.fixtures.NextFixtures(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fixtures)
}

// HTTP: GET /api/fixtures/upcoming?days=7
func (h *FixtureHandler) HandleUpcoming(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", service.DefaultUpcomingDays)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	fixtures, err := h.fixtures.UpcomingFixtures(r.Context(), days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fixtures)
}

// HTTP: GET /api/fixtures/past?until=2026-05-01T00:00:00Z
func (h *FixtureHandler) HandlePast(w http.ResponseWriter, r *http.Request) {
	var until time.Time
	if raw := r.URL.Query().Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("until", "until must be an RFC 3339 timestamp"))
			return
		}
		until = t
	}

	fixtures, err := h.fixtures.PastFixtures(r.Context(), until)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fixtures)
}

// HTTP: GET /api/fixtures/{id}
func (h *FixtureHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	f, err := h.fixtures.GetFixture(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
