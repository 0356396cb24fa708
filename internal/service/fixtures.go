package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/repository"
	"github.com/sakif/prediction-league/internal/scoring"
	"github.com/sakif/prediction-league/internal/telemetry"
)

const (
	DefaultUpcomingDays = 7
	MaxUpcomingDays     = 60
)

// CompletionResult reports what a completion or correction touched.
type CompletionResult struct {
	Fixture           *model.Fixture `json:"fixture"`
	TotalPredictions  int            `json:"totalPredictions"`
	PredictionsScored int            `json:"predictionsScored"`
	PredictionsLocked int64          `json:"predictionsLocked"`
	GroupsUpdated     int            `json:"groupsUpdated"`
	Corrected         bool           `json:"corrected"`
}

// FixtureService owns fixture results and the scoring that follows them.
//
// COMPLETION PIPELINE (one transaction):
//  1. write the final score and mark the fixture completed
//  2. lock every OPEN prediction on the fixture
//  3. score every prediction on the fixture
//  4. recalculate every group that had a prediction on it
//
// Two results for the same fixture serialize on the store's write lock, and
// the later one sees the earlier one's committed state.
type FixtureService struct {
	store  repository.Store
	board  *LeaderboardService
	obs    *telemetry.Observer
	logger *slog.Logger
	now    clock
}

func NewFixtureService(store repository.Store, board *LeaderboardService, obs *telemetry.Observer, logger *slog.Logger) *FixtureService {
	return &FixtureService{
		store:  store,
		board:  board,
		obs:    obs,
		logger: logger,
		now:    time.Now,
	}
}

// CompleteFixture records the first final score of a fixture.
func (s *FixtureService) CompleteFixture(ctx context.Context, fixtureID int64, home, away int) (*CompletionResult, error) {
	return s.settle(ctx, "fixtures.complete", fixtureID, home, away, func(f *model.Fixture) (bool, error) {
		if f.Completed {
			return false, apperror.AlreadyCompleted(fixtureID)
		}
		return false, nil
	})
}

// CorrectFixtureScores replaces the score of a completed fixture and rescores
// its predictions. Lock state is not touched.
func (s *FixtureService) CorrectFixtureScores(ctx context.Context, fixtureID int64, home, away int) (*CompletionResult, error) {
	return s.settle(ctx, "fixtures.correct", fixtureID, home, away, func(f *model.Fixture) (bool, error) {
		if !f.Completed {
			return false, apperror.NotCompleted(fixtureID)
		}
		if f.HasScores(home, away) {
			return false, apperror.NoChange(fixtureID)
		}
		return true, nil
	})
}

// RecordResult completes the fixture if it is still open and corrects it
// otherwise. Admin tooling uses it when it does not track fixture state.
func (s *FixtureService) RecordResult(ctx context.Context, fixtureID int64, home, away int) (*CompletionResult, error) {
	return s.settle(ctx, "fixtures.record_result", fixtureID, home, away, func(f *model.Fixture) (bool, error) {
		if f.Completed && f.HasScores(home, away) {
			return false, apperror.NoChange(fixtureID)
		}
		return f.Completed, nil
	})
}

// settle runs the completion pipeline. decide inspects the fixture as read
// inside the transaction and either rejects it or says whether this is a
// correction.
func (s *FixtureService) settle(
	ctx context.Context,
	op string,
	fixtureID int64,
	home, away int,
	decide func(f *model.Fixture) (correcting bool, err error),
) (*CompletionResult, error) {
	if err := validateScores(home, away); err != nil {
		return nil, err
	}

	var result *CompletionResult
	err := s.obs.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			f, err := tx.GetFixture(ctx, fixtureID)
			if err != nil {
				return err
			}
			correcting, err := decide(f)
			if err != nil {
				return err
			}

			res := &CompletionResult{Corrected: correcting}
			if correcting {
				if err := tx.ClearFixturePoints(ctx, fixtureID); err != nil {
					return err
				}
			}
			if err := tx.SetFixtureResult(ctx, fixtureID, home, away, s.now()); err != nil {
				return err
			}
			if !correcting {
				if res.PredictionsLocked, err = tx.LockFixturePredictions(ctx, fixtureID); err != nil {
					return err
				}
			}

			groups, err := s.scoreFixture(ctx, tx, fixtureID, home, away, res)
			if err != nil {
				return err
			}
			for _, groupID := range groups {
				if _, err := s.board.recalculateGroup(ctx, tx, groupID); err != nil {
					return err
				}
			}
			res.GroupsUpdated = len(groups)

			if res.Fixture, err = tx.GetFixture(ctx, fixtureID); err != nil {
				return err
			}
			result = res
			return nil
		})
	}, fixtureAttr(fixtureID))
	if err != nil {
		return nil, err
	}

	m := s.obs.Metrics()
	m.PredictionsScored.Add(float64(result.PredictionsScored))
	m.PredictionsLocked.Add(float64(result.PredictionsLocked))
	m.Recalculations.Add(float64(result.GroupsUpdated))

	s.logger.Info("fixture result recorded",
		slog.Int64("fixtureID", fixtureID),
		slog.String("score", fmt.Sprintf("%d-%d", home, away)),
		slog.Bool("corrected", result.Corrected),
		slog.Int("predictionsScored", result.PredictionsScored),
		slog.Int("groupsUpdated", result.GroupsUpdated),
	)
	return result, nil
}

// scoreFixture writes points for every prediction on the fixture and returns
// the IDs of the groups involved, sorted.
func (s *FixtureService) scoreFixture(ctx context.Context, tx repository.Tx, fixtureID int64, home, away int, res *CompletionResult) ([]string, error) {
	preds, err := tx.ListFixturePredictions(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	res.TotalPredictions = len(preds)

	var groups []string
	for _, p := range preds {
		points := scoring.Score(p.PredHome, p.PredAway, home, away)
		if err := tx.SetPredictionPoints(ctx, p.ID, points); err != nil {
			return nil, err
		}
		res.PredictionsScored++
		groups = append(groups, p.GroupID)
	}

	slices.Sort(groups)
	return slices.Compact(groups), nil
}

func (s *FixtureService) GetFixture(ctx context.Context, id int64) (*model.Fixture, error) {
	return s.store.GetFixture(ctx, id)
}

// NextFixtures returns every fixture on the next date (UTC) that has a fixture
// still to start. The result is empty when the schedule is exhausted.
func (s *FixtureService) NextFixtures(ctx context.Context) ([]model.Fixture, error) {
	next, ok, err := s.store.NextFixtureStart(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.Fixture{}, nil
	}

	day := next.UTC().Truncate(24 * time.Hour)
	return s.store.ListFixtures(ctx, day, day.Add(24*time.Hour))
}

// UpcomingFixtures returns fixtures starting within the next days days.
func (s *FixtureService) UpcomingFixtures(ctx context.Context, days int) ([]model.Fixture, error) {
	if days == 0 {
		days = DefaultUpcomingDays
	}
	if days < 0 || days > MaxUpcomingDays {
		return nil, apperror.ValidationFailed("days", fmt.Sprintf("days must be between 1 and %d", MaxUpcomingDays))
	}
	now := s.now()
	return s.store.ListFixtures(ctx, now, now.Add(time.Duration(days)*24*time.Hour))
}

// PastFixtures returns fixtures that started before until (now when zero),
// most recent first.
func (s *FixtureService) PastFixtures(ctx context.Context, until time.Time) ([]model.Fixture, error) {
	if until.IsZero() {
		until = s.now()
	}
	fixtures, err := s.store.ListFixtures(ctx, time.Time{}, until)
	if err != nil {
		return nil, err
	}
	slices.Reverse(fixtures)
	return fixtures, nil
}

// ImportFixtures upserts already-parsed schedule records by fixture ID in one
// transaction. Existing results are never overwritten by an import.
func (s *FixtureService) ImportFixtures(ctx context.Context, fixtures []model.Fixture) (int, error) {
	for i := range fixtures {
		if err := validateFixture(&fixtures[i]); err != nil {
			return 0, err
		}
	}

	now := s.now()
	err := s.obs.Observe(ctx, "fixtures.import", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			for i := range fixtures {
				if err := tx.UpsertFixture(ctx, &fixtures[i], now); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("fixtures imported", slog.Int("count", len(fixtures)))
	return len(fixtures), nil
}

func validateFixture(f *model.Fixture) error {
	f.HomeTeam = strings.TrimSpace(f.HomeTeam)
	f.AwayTeam = strings.TrimSpace(f.AwayTeam)

	switch {
	case f.ID <= 0:
		return apperror.ValidationFailed("id", "fixture id must be positive")
	case f.HomeTeam == "" || f.AwayTeam == "":
		return apperror.ValidationFailed("team", fmt.Sprintf("fixture %d needs both teams", f.ID))
	case f.StartTime.IsZero():
		return apperror.ValidationFailed("startTime", fmt.Sprintf("fixture %d needs a start time", f.ID))
	case f.Completed && (f.HomeScore == nil || f.AwayScore == nil):
		return apperror.ValidationFailed("completed", fmt.Sprintf("completed fixture %d needs both scores", f.ID))
	}
	return nil
}
