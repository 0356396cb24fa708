// Package repository declares the persistence boundary used by the services.
//
// Every method is available both on the Store itself and on the Tx handed to
// RunInTx, so a service builds one atomic unit out of the same calls it uses
// for plain reads.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/prediction-league/internal/model"
)

// ErrCodeTaken is returned by InsertGroup when the group code collides with an
// existing one. The allocator retries on it; it never reaches a caller.
var ErrCodeTaken = errors.New("repository: group code already taken")

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	SetAdmin(ctx context.Context, userID string, admin bool) error
}

type GroupRepository interface {
	InsertGroup(ctx context.Context, group *model.Group) error
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	GetGroupByCode(ctx context.Context, code string) (*model.Group, error)
	DeleteGroup(ctx context.Context, id string) error
	ListGroupIDs(ctx context.Context) ([]string, error)
	ListUserGroups(ctx context.Context, userID string) ([]model.UserGroup, error)

	InsertMembership(ctx context.Context, m *model.Membership) error
	GetMembership(ctx context.Context, groupID, userID string) (*model.Membership, error)
	DeleteMembership(ctx context.Context, groupID, userID string) error
	DeleteGroupMemberships(ctx context.Context, groupID string) error
	ListMembers(ctx context.Context, groupID string) ([]model.GroupMember, error)
}

type FixtureRepository interface {
	GetFixture(ctx context.Context, id int64) (*model.Fixture, error)
	UpsertFixture(ctx context.Context, f *model.Fixture, at time.Time) error
	SetFixtureResult(ctx context.Context, id int64, home, away int, at time.Time) error
	ListFixtures(ctx context.Context, from, to time.Time) ([]model.Fixture, error)
	NextFixtureStart(ctx context.Context, after time.Time) (time.Time, bool, error)
}

type PredictionRepository interface {
	InsertPrediction(ctx context.Context, p *model.Prediction) error
	GetPrediction(ctx context.Context, id string) (*model.Prediction, error)
	FindPrediction(ctx context.Context, userID, groupID string, fixtureID int64) (*model.Prediction, error)
	UpdatePredictionScores(ctx context.Context, id string, home, away int, at time.Time) error
	DeletePrediction(ctx context.Context, id string) error
	DeleteGroupPredictions(ctx context.Context, groupID string) error

	LockPrediction(ctx context.Context, id string) error
	LockFixturePredictions(ctx context.Context, fixtureID int64) (int64, error)
	LockStartedPredictions(ctx context.Context, now time.Time) (int64, error)

	ListFixturePredictions(ctx context.Context, fixtureID int64) ([]model.Prediction, error)
	ListGroupFixturePredictions(ctx context.Context, fixtureID int64, groupID string) ([]model.GroupPrediction, error)
	ListUserPredictions(ctx context.Context, userID, groupID string) ([]model.FixturePrediction, error)

	SetPredictionPoints(ctx context.Context, id string, points int) error
	ClearFixturePoints(ctx context.Context, fixtureID int64) error
	GetUserStats(ctx context.Context, userID string) (*model.UserStats, error)
}

type LeaderboardRepository interface {
	InsertLeaderboardEntry(ctx context.Context, e *model.LeaderboardEntry) error
	DeleteLeaderboardEntry(ctx context.Context, groupID, userID string) error
	DeleteGroupLeaderboard(ctx context.Context, groupID string) error

	// RefreshGroupTotals sets every member's total_points in the group to the
	// sum of their non-null points_earned and returns the resulting entries
	// ordered by total_points descending.
	RefreshGroupTotals(ctx context.Context, groupID string, at time.Time) ([]model.LeaderboardEntry, error)
	SetRankPosition(ctx context.Context, groupID, userID string, rank int) error
	ListLeaderboard(ctx context.Context, groupID string) ([]model.LeaderboardRow, error)
}

// Tx is the set of operations available inside one atomic unit.
type Tx interface {
	UserRepository
	GroupRepository
	FixtureRepository
	PredictionRepository
	LeaderboardRepository
}

// Store is the whole persistence layer. RunInTx commits when fn returns nil
// and rolls back otherwise; none of fn's writes are visible until commit.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
