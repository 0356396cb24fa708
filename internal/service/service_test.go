package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sakif/prediction-league/internal/groupcode"
	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/repository/sqlite"
	"github.com/sakif/prediction-league/internal/telemetry"
)

// =========================================================================
// TEST ENVIRONMENT
// =========================================================================
//
// Services are tested against a real in-memory SQLite store instead of a
// hand-written fake: the atomicity and constraint backstops live in the
// store, and a fake would not exercise them.

type testEnv struct {
	t        *testing.T
	store    *sqlite.DB
	metrics  *telemetry.Metrics
	board    *LeaderboardService
	groups   *GroupService
	preds    *PredictionService
	fixtures *FixtureService
	faker    *gofakeit.Faker
	now      time.Time
	seq      int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvAt(t, ":memory:")
}

// newTestEnvAt opens the store at dbPath. Concurrency tests need a file: an
// in-memory store has a single connection, so nothing overlaps.
func newTestEnvAt(t *testing.T, dbPath string) *testEnv {
	t.Helper()

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	obs := telemetry.NewObserver(noop.NewTracerProvider().Tracer("test"), metrics, logger)

	env := &testEnv{
		t:       t,
		store:   store,
		metrics: metrics,
		faker:   gofakeit.New(42),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.board = NewLeaderboardService(store, obs, logger)
	env.board.now = clock
	env.groups = NewGroupService(store, groupcode.New(0, 0), env.board, obs, logger)
	env.groups.now = clock
	env.preds = NewPredictionService(store, obs, logger)
	env.preds.now = clock
	env.fixtures = NewFixtureService(store, env.board, obs, logger)
	env.fixtures.now = clock
	return env
}

func (e *testEnv) user() *model.User {
	e.t.Helper()
	e.seq++
	u := &model.User{
		Username: fmt.Sprintf("%s%d", e.faker.Username(), e.seq),
		Email:    e.faker.Email(),
	}
	require.NoError(e.t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) group(creator *model.User, members ...*model.User) *model.Group {
	e.t.Helper()
	ctx := context.Background()
	g, err := e.groups.CreateGroup(ctx, e.faker.Company()+" League", creator.ID)
	require.NoError(e.t, err)
	for _, m := range members {
		_, err := e.groups.JoinGroup(ctx, m.ID, g.Code)
		require.NoError(e.t, err)
	}
	return g
}

// fixture creates a fixture starting in after relative to the env clock.
func (e *testEnv) fixture(id int64, after time.Duration) *model.Fixture {
	e.t.Helper()
	f := &model.Fixture{
		ID:        id,
		HomeTeam:  e.faker.City(),
		AwayTeam:  e.faker.City(),
		StartTime: e.now.Add(after),
		Season:    "2026",
	}
	_, err := e.fixtures.ImportFixtures(context.Background(), []model.Fixture{*f})
	require.NoError(e.t, err)
	return f
}

func (e *testEnv) predict(u *model.User, g *model.Group, fixtureID int64, home, away int) *model.Prediction {
	e.t.Helper()
	p, err := e.preds.CreatePrediction(context.Background(), u.ID, g.ID, fixtureID, home, away)
	require.NoError(e.t, err)
	return p
}

// standings maps user ID to (total, rank) as stored.
func (e *testEnv) standings(groupID string) map[string][2]int {
	e.t.Helper()
	board, err := e.store.ListLeaderboard(context.Background(), groupID)
	require.NoError(e.t, err)
	out := make(map[string][2]int, len(board))
	for _, row := range board {
		out[row.UserID] = [2]int{row.TotalPoints, row.RankPosition}
	}
	return out
}
