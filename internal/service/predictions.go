package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/repository"
	"github.com/sakif/prediction-league/internal/telemetry"
)

// PredictionService manages the OPEN → LOCKED lifecycle of predictions.
//
// LOCKING RULES:
// A prediction locks when its fixture starts (start time at or before now) or
// completes. Locking is one-way. Every user edit re-checks the fixture inside
// its transaction; when the clock has crossed kickoff, the edit is refused and
// the lock is committed in the same unit, so the race between an edit and
// kickoff always resolves in favour of locking.
//
// Only FixtureService writes points_earned.
type PredictionService struct {
	store  repository.Store
	obs    *telemetry.Observer
	logger *slog.Logger
	now    clock
}

func NewPredictionService(store repository.Store, obs *telemetry.Observer, logger *slog.Logger) *PredictionService {
	return &PredictionService{
		store:  store,
		obs:    obs,
		logger: logger,
		now:    time.Now,
	}
}

func validateScores(home, away int) error {
	if home < 0 {
		return apperror.ValidationFailed("homeScore", "scores must be zero or greater")
	}
	if away < 0 {
		return apperror.ValidationFailed("awayScore", "scores must be zero or greater")
	}
	return nil
}

// CreatePrediction records userID's prediction for a fixture within a group.
func (s *PredictionService) CreatePrediction(ctx context.Context, userID, groupID string, fixtureID int64, home, away int) (*model.Prediction, error) {
	if err := validateScores(home, away); err != nil {
		return nil, err
	}

	var pred *model.Prediction
	err := s.obs.Observe(ctx, "predictions.create", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			if _, err := tx.GetGroup(ctx, groupID); err != nil {
				return err
			}
			if _, err := tx.GetMembership(ctx, groupID, userID); err != nil {
				return err
			}

			fixture, err := tx.GetFixture(ctx, fixtureID)
			if err != nil {
				return err
			}
			now := s.now()
			if fixture.Started(now) {
				return apperror.FixtureAlreadyStarted(fixtureID)
			}

			_, err = tx.FindPrediction(ctx, userID, groupID, fixtureID)
			switch {
			case err == nil:
				return apperror.DuplicatePrediction(fixtureID)
			case !errors.Is(err, apperror.ErrNotFound):
				return err
			}

			p := &model.Prediction{
				UserID:      userID,
				GroupID:     groupID,
				FixtureID:   fixtureID,
				PredHome:    home,
				PredAway:    away,
				PredictedAt: now,
			}
			if err := tx.InsertPrediction(ctx, p); err != nil {
				return err
			}
			pred = p
			return nil
		})
	}, userAttr(userID), groupAttr(groupID), fixtureAttr(fixtureID))
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// UpdatePrediction changes the score line of an OPEN prediction.
func (s *PredictionService) UpdatePrediction(ctx context.Context, userID, groupID string, fixtureID int64, home, away int) (*model.Prediction, error) {
	if err := validateScores(home, away); err != nil {
		return nil, err
	}

	var pred *model.Prediction
	err := s.obs.Observe(ctx, "predictions.update", func(ctx context.Context) error {
		return s.withOpenPrediction(ctx, userID, groupID, fixtureID, func(ctx context.Context, tx repository.Tx, p *model.Prediction) error {
			now := s.now()
			if err := tx.UpdatePredictionScores(ctx, p.ID, home, away, now); err != nil {
				return err
			}
			p.PredHome, p.PredAway, p.UpdatedAt = home, away, now
			pred = p
			return nil
		})
	}, userAttr(userID), groupAttr(groupID), fixtureAttr(fixtureID))
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// DeletePrediction removes an OPEN prediction.
func (s *PredictionService) DeletePrediction(ctx context.Context, userID, groupID string, fixtureID int64) error {
	return s.obs.Observe(ctx, "predictions.delete", func(ctx context.Context) error {
		return s.withOpenPrediction(ctx, userID, groupID, fixtureID, func(ctx context.Context, tx repository.Tx, p *model.Prediction) error {
			return tx.DeletePrediction(ctx, p.ID)
		})
	}, userAttr(userID), groupAttr(groupID), fixtureAttr(fixtureID))
}

// withOpenPrediction loads the caller's prediction and runs fn only while the
// prediction is still OPEN.
//
// If the fixture has started by now but the prediction is not yet locked, the
// lock is written and committed and the caller gets ErrPredictionLocked. The
// transaction must commit for that, so the lock error is carried out of the
// callback instead of being returned from it.
func (s *PredictionService) withOpenPrediction(
	ctx context.Context,
	userID, groupID string,
	fixtureID int64,
	fn func(ctx context.Context, tx repository.Tx, p *model.Prediction) error,
) error {
	var lockedErr error
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetMembership(ctx, groupID, userID); err != nil {
			return err
		}
		p, err := tx.FindPrediction(ctx, userID, groupID, fixtureID)
		if err != nil {
			return err
		}
		if p.Locked {
			return apperror.PredictionLocked(fixtureID)
		}

		fixture, err := tx.GetFixture(ctx, fixtureID)
		if err != nil {
			return err
		}
		if fixture.Started(s.now()) {
			if err := tx.LockPrediction(ctx, p.ID); err != nil {
				return err
			}
			lockedErr = apperror.PredictionLocked(fixtureID)
			return nil
		}

		return fn(ctx, tx, p)
	})
	if err != nil {
		return err
	}
	if lockedErr != nil {
		s.obs.Metrics().PredictionsLocked.Inc()
		s.logger.Info("prediction locked at edit time",
			slog.String("userID", userID),
			slog.String("groupID", groupID),
			slog.Int64("fixtureID", fixtureID),
		)
	}
	return lockedErr
}

// LockStarted locks every OPEN prediction whose fixture has started. The
// background locker calls it periodically; user edits do not depend on it.
func (s *PredictionService) LockStarted(ctx context.Context) (int64, error) {
	var locked int64
	err := s.obs.Observe(ctx, "predictions.lock_started", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			n, err := tx.LockStartedPredictions(ctx, s.now())
			locked = n
			return err
		})
	})
	if err != nil {
		return 0, err
	}

	if locked > 0 {
		s.obs.Metrics().PredictionsLocked.Add(float64(locked))
		s.logger.Info("locked started predictions", slog.Int64("count", locked))
	}
	return locked, nil
}

// GetPrediction returns a prediction owned by requesterID.
func (s *PredictionService) GetPrediction(ctx context.Context, id, requesterID string) (*model.Prediction, error) {
	p, err := s.store.GetPrediction(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != requesterID {
		return nil, apperror.Forbidden("you can only view your own predictions")
	}
	return p, nil
}

// ListUserPredictions returns the user's own predictions with their fixtures.
// An empty groupID spans all groups.
func (s *PredictionService) ListUserPredictions(ctx context.Context, userID, groupID string) ([]model.FixturePrediction, error) {
	if groupID != "" {
		if _, err := s.store.GetMembership(ctx, groupID, userID); err != nil {
			return nil, err
		}
	}
	return s.store.ListUserPredictions(ctx, userID, groupID)
}

// ListFixturePredictions returns the group's predictions on a fixture. Until
// the fixture starts a member sees only their own prediction, so nobody can
// copy a rival's pick.
func (s *PredictionService) ListFixturePredictions(ctx context.Context, fixtureID int64, groupID, requesterID string) ([]model.GroupPrediction, error) {
	fixture, err := s.store.GetFixture(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetMembership(ctx, groupID, requesterID); err != nil {
		return nil, err
	}

	preds, err := s.store.ListGroupFixturePredictions(ctx, fixtureID, groupID)
	if err != nil {
		return nil, err
	}
	if fixture.Started(s.now()) {
		return preds, nil
	}

	own := []model.GroupPrediction{}
	for _, p := range preds {
		if p.UserID == requesterID {
			own = append(own, p)
		}
	}
	return own, nil
}
