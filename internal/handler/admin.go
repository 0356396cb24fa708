package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/service"
)

// AdminHandler records fixture results and triggers leaderboard repairs.
// Routes run behind auth.RequireAuth and auth.RequireAdmin.
type AdminHandler struct {
	fixtures *service.FixtureService
	board    *service.LeaderboardService
	logger   *slog.Logger
}

func NewAdminHandler(fixtures *service.FixtureService, board *service.LeaderboardService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{fixtures: fixtures, board: board, logger: logger}
}

type scoresRequest struct {
	HomeScore *int `json:"homeScore"`
	AwayScore *int `json:"awayScore"`
}

type recalculateRequest struct {
	GroupIDs []string `json:"groupIds"` // empty means every group
}

type resultFunc func(ctx context.Context, fixtureID int64, home, away int) (*service.CompletionResult, error)

// HTTP: PUT /api/admin/fixtures/{id}/scores
func (h *AdminHandler) HandleRecordResult(w http.ResponseWriter, r *http.Request) {
	h.handleResult(w, r, h.fixtures.RecordResult)
}

// HTTP: POST /api/admin/fixtures/{id}/complete
func (h *AdminHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.handleResult(w, r, h.fixtures.CompleteFixture)
}

// HTTP: POST /api/admin/fixtures/{id}/correct
func (h *AdminHandler) HandleCorrect(w http.ResponseWriter, r *http.Request) {
	h.handleResult(w, r, h.fixtures.CorrectFixtureScores)
}

func (h *AdminHandler) handleResult(w http.ResponseWriter, r *http.Request, apply resultFunc) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req scoresRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.HomeScore == nil || req.AwayScore == nil {
		writeError(w, h.logger, apperror.ValidationFailed("score", "homeScore and awayScore are required"))
		return
	}

	res, err := apply(r.Context(), id, *req.HomeScore, *req.AwayScore)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HTTP: POST /api/admin/recalculate  {"groupIds": ["..."]}
func (h *AdminHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	var (
		stats *service.RecalcStats
		err   error
	)
	if len(req.GroupIDs) == 0 {
		stats, err = h.board.RecalculateAll(r.Context())
	} else {
		stats, err = h.board.Recalculate(r.Context(), req.GroupIDs...)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
