package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/prediction-league/internal/auth"
	"github.com/sakif/prediction-league/internal/service"
)

// LeaderboardHandler serves group standings to members.
type LeaderboardHandler struct {
	board  *service.LeaderboardService
	logger *slog.Logger
}

func NewLeaderboardHandler(board *service.LeaderboardService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logger}
}

// HTTP: GET /api/leaderboard/{groupID}
func (h *LeaderboardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	rows, err := h.board.GetLeaderboard(r.Context(), chi.URLParam(r, "groupID"), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HTTP: GET /api/leaderboard/{groupID}/me
func (h *LeaderboardHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	rank, err := h.board.GetUserRank(r.Context(), userID, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

// HTTP: GET /api/me/stats
func (h *LeaderboardHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	stats, err := h.board.GetUserStats(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
