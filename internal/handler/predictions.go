package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/auth"
	"github.com/sakif/prediction-league/internal/service"
)

// PredictionHandler exposes the caller's predictions. A prediction is
// addressed by (group, fixture); the caller is always the owner.
type PredictionHandler struct {
	preds  *service.PredictionService
	logger *slog.Logger
}

func NewPredictionHandler(preds *service.PredictionService, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{preds: preds, logger: logger}
}

type predictionRequest struct {
	GroupID   string `json:"groupId"`
	FixtureID int64  `json:"fixtureId"`
	HomeScore *int   `json:"predHomeScore"`
	AwayScore *int   `json:"predAwayScore"`
}

// scores checks that both scores were sent; 0 is a valid score, so absence
// must be told apart from zero.
func (req predictionRequest) scores() (int, int, error) {
	if req.GroupID == "" {
		return 0, 0, apperror.ValidationFailed("groupId", "groupId is required")
	}
	if req.HomeScore == nil || req.AwayScore == nil {
		return 0, 0, apperror.ValidationFailed("score", "predHomeScore and predAwayScore are required")
	}
	return *req.HomeScore, *req.AwayScore, nil
}

type predictionKey struct {
	GroupID   string `json:"groupId"`
	FixtureID int64  `json:"fixtureId"`
}

// HTTP: POST /api/predictions
func (h *PredictionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req predictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	home, away, err := req.scores()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.preds.CreatePrediction(r.Context(), userID, req.GroupID, req.FixtureID, home, away)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HTTP: PUT /api/predictions
func (h *PredictionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req predictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	home, away, err := req.scores()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.preds.UpdatePrediction(r.Context(), userID, req.GroupID, req.FixtureID, home, away)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HTTP: DELETE /api/predictions  {"groupId": "...", "fixtureId": 12}
func (h *PredictionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req predictionKey
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.preds.DeletePrediction(r.Context(), userID, req.GroupID, req.FixtureID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/predictions/me?group_id=
func (h *PredictionHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	preds, err := h.preds.ListUserPredictions(r.Context(), userID, r.URL.Query().Get("group_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

// HTTP: GET /api/predictions/fixture/{fixtureID}?group_id=
func (h *PredictionHandler) HandleListFixture(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	fixtureID, err := pathInt64(r, "fixtureID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	groupID := r.URL.Query().Get("group_id")
	if groupID == "" {
		writeError(w, h.logger, apperror.ValidationFailed("group_id", "group_id is required"))
		return
	}

	preds, err := h.preds.ListFixturePredictions(r.Context(), fixtureID, groupID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

// HTTP: GET /api/predictions/{id}
func (h *PredictionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	p, err := h.preds.GetPrediction(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
