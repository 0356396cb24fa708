package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/repository"
	"github.com/sakif/prediction-league/internal/telemetry"
)

// RecalcStats summarises one recalculation pass.
type RecalcStats struct {
	GroupsUpdated      int `json:"groupsUpdated"`
	UsersUpdated       int `json:"usersUpdated"`
	TotalPointsAwarded int `json:"totalPointsAwarded"`
}

func (s *RecalcStats) add(o RecalcStats) {
	s.GroupsUpdated += o.GroupsUpdated
	s.UsersUpdated += o.UsersUpdated
	s.TotalPointsAwarded += o.TotalPointsAwarded
}

// LeaderboardService derives group standings from scored predictions.
//
// A member's total is always re-derived from scratch (sum of their non-null
// points in the group), never incremented, so a recalculation also repairs
// any drift.
type LeaderboardService struct {
	store  repository.Store
	obs    *telemetry.Observer
	logger *slog.Logger
	now    clock
}

func NewLeaderboardService(store repository.Store, obs *telemetry.Observer, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		store:  store,
		obs:    obs,
		logger: logger,
		now:    time.Now,
	}
}

// Recalculate rebuilds totals and ranks for the given groups in one
// transaction. Duplicate IDs are recalculated once; an unknown ID fails the
// whole call with apperror.ErrNotFound.
func (s *LeaderboardService) Recalculate(ctx context.Context, groupIDs ...string) (*RecalcStats, error) {
	ids := slices.Clone(groupIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	stats := &RecalcStats{}
	err := s.obs.Observe(ctx, "leaderboard.recalculate", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			for _, id := range ids {
				if _, err := tx.GetGroup(ctx, id); err != nil {
					return err
				}
				groupStats, err := s.recalculateGroup(ctx, tx, id)
				if err != nil {
					return err
				}
				stats.add(groupStats)
			}
			return nil
		})
	}, attribute.Int("groups", len(ids)))
	if err != nil {
		return nil, err
	}

	s.obs.Metrics().Recalculations.Add(float64(stats.GroupsUpdated))
	return stats, nil
}

// RecalculateAll rebuilds every group's leaderboard. It is the repair path
// when stored totals are suspected to be out of sync with predictions.
func (s *LeaderboardService) RecalculateAll(ctx context.Context) (*RecalcStats, error) {
	stats := &RecalcStats{}
	err := s.obs.Observe(ctx, "leaderboard.recalculate_all", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			ids, err := tx.ListGroupIDs(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				groupStats, err := s.recalculateGroup(ctx, tx, id)
				if err != nil {
					return err
				}
				stats.add(groupStats)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.obs.Metrics().Recalculations.Add(float64(stats.GroupsUpdated))
	s.logger.Info("all leaderboards recalculated",
		slog.Int("groups", stats.GroupsUpdated),
		slog.Int("users", stats.UsersUpdated),
		slog.Int("points", stats.TotalPointsAwarded),
	)
	return stats, nil
}

// recalculateGroup refreshes totals and dense ranks of one group inside an
// existing transaction. The caller's immediate transaction holds the write
// lock, so no other pass can interleave with this read-modify-write.
func (s *LeaderboardService) recalculateGroup(ctx context.Context, tx repository.Tx, groupID string) (RecalcStats, error) {
	entries, err := tx.RefreshGroupTotals(ctx, groupID, s.now())
	if err != nil {
		return RecalcStats{}, err
	}

	previous := make(map[string]int, len(entries))
	for _, e := range entries {
		previous[e.UserID] = e.RankPosition
	}

	stats := RecalcStats{GroupsUpdated: 1, UsersUpdated: len(entries)}
	for _, e := range DenseRank(entries) {
		stats.TotalPointsAwarded += e.TotalPoints
		if previous[e.UserID] == e.RankPosition {
			continue
		}
		if err := tx.SetRankPosition(ctx, groupID, e.UserID, e.RankPosition); err != nil {
			return RecalcStats{}, fmt.Errorf("service/leaderboard: ranking group %s: %w", groupID, err)
		}
	}
	return stats, nil
}

// DenseRank orders entries by total points descending (user ID breaks ties
// for a stable order) and assigns dense ranks: equal totals share a rank and
// the next distinct total gets the previous rank plus one. It sorts entries
// in place and returns them.
func DenseRank(entries []model.LeaderboardEntry) []model.LeaderboardEntry {
	slices.SortFunc(entries, func(a, b model.LeaderboardEntry) int {
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})

	rank := 0
	for i := range entries {
		if i == 0 || entries[i].TotalPoints != entries[i-1].TotalPoints {
			rank++
		}
		entries[i].RankPosition = rank
	}
	return entries
}

// GetLeaderboard returns the group's standings. When viewerID is set the
// viewer must be a member; system callers such as the export command pass "".
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, groupID, viewerID string) ([]model.LeaderboardRow, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if viewerID != "" {
		if _, err := s.store.GetMembership(ctx, groupID, viewerID); err != nil {
			return nil, err
		}
	}
	return s.store.ListLeaderboard(ctx, groupID)
}

// GetUserRank returns one member's row and the number of players in the group.
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID, groupID string) (*model.UserRank, error) {
	board, err := s.GetLeaderboard(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	for _, row := range board {
		if row.UserID == userID {
			return &model.UserRank{LeaderboardRow: row, TotalPlayers: len(board)}, nil
		}
	}
	// Membership was checked above; a missing row means the entry was never
	// provisioned, which a recalculation cannot fix.
	return nil, fmt.Errorf("service/leaderboard: member %s of group %s has no leaderboard entry", userID, groupID)
}

// GetUserStats summarises a user's predictions across all of their groups.
func (s *LeaderboardService) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.GetUserStats(ctx, userID)
}
