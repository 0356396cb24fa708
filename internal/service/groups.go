package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/groupcode"
	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/repository"
	"github.com/sakif/prediction-league/internal/telemetry"
)

const (
	MinGroupNameLength = 3
	MaxGroupNameLength = 100
)

// GroupService coordinates group lifecycle and membership.
//
// Every write keeps two invariants together in one transaction:
//   - a group always has its creator as a member
//   - a leaderboard entry exists exactly when the membership exists
type GroupService struct {
	store  repository.Store
	codes  *groupcode.Allocator
	board  *LeaderboardService
	obs    *telemetry.Observer
	logger *slog.Logger
	now    clock
}

func NewGroupService(
	store repository.Store,
	codes *groupcode.Allocator,
	board *LeaderboardService,
	obs *telemetry.Observer,
	logger *slog.Logger,
) *GroupService {
	return &GroupService{
		store:  store,
		codes:  codes,
		board:  board,
		obs:    obs,
		logger: logger,
		now:    time.Now,
	}
}

// CreateGroup allocates a join code and creates the group, the creator's
// membership and the creator's zero-point leaderboard entry as one unit.
func (s *GroupService) CreateGroup(ctx context.Context, name, creatorID string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < MinGroupNameLength || n > MaxGroupNameLength {
		return nil, apperror.ValidationFailed("name",
			"group name must be between 3 and 100 characters")
	}

	var group *model.Group
	err := s.obs.Observe(ctx, "groups.create", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			if _, err := tx.GetUserByID(ctx, creatorID); err != nil {
				return err
			}

			now := s.now()
			g := &model.Group{Name: name, CreatorID: creatorID, CreatedAt: now}
			_, err := s.codes.Allocate(ctx, func(ctx context.Context, code string) error {
				g.Code = code
				return tx.InsertGroup(ctx, g)
			})
			if err != nil {
				return err
			}

			if err := tx.InsertMembership(ctx, &model.Membership{
				GroupID:  g.ID,
				UserID:   creatorID,
				JoinedAt: now,
			}); err != nil {
				return err
			}
			if err := tx.InsertLeaderboardEntry(ctx, &model.LeaderboardEntry{
				GroupID:      g.ID,
				UserID:       creatorID,
				RankPosition: 1,
				UpdatedAt:    now,
			}); err != nil {
				return err
			}

			group = g
			return nil
		})
	}, userAttr(creatorID))
	if err != nil {
		return nil, err
	}

	s.logger.Info("group created",
		slog.String("groupID", group.ID),
		slog.String("code", group.Code),
		slog.String("creatorID", creatorID),
	)
	return group, nil
}

// JoinGroup adds userID to the group with the given code and re-ranks the
// group. The code is matched case-insensitively.
func (s *GroupService) JoinGroup(ctx context.Context, userID, code string) (*model.Group, error) {
	code, err := s.normalizeCode(code)
	if err != nil {
		return nil, err
	}

	var group *model.Group
	err = s.obs.Observe(ctx, "groups.join", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			g, err := tx.GetGroupByCode(ctx, code)
			if err != nil {
				return err
			}

			_, err = tx.GetMembership(ctx, g.ID, userID)
			switch {
			case err == nil:
				return apperror.AlreadyMember(userID, g.ID)
			case !errors.Is(err, apperror.ErrNotMember):
				return err
			}

			now := s.now()
			// The membership primary key rejects a concurrent duplicate join
			// even if it slipped past the check above.
			if err := tx.InsertMembership(ctx, &model.Membership{GroupID: g.ID, UserID: userID, JoinedAt: now}); err != nil {
				return err
			}
			if err := tx.InsertLeaderboardEntry(ctx, &model.LeaderboardEntry{GroupID: g.ID, UserID: userID, UpdatedAt: now}); err != nil {
				return err
			}

			// Re-ranking on join also folds back predictions kept from an
			// earlier membership.
			if _, err := s.board.recalculateGroup(ctx, tx, g.ID); err != nil {
				return err
			}

			group = g
			return nil
		})
	}, userAttr(userID))
	if err != nil {
		return nil, err
	}

	s.logger.Info("user joined group", slog.String("groupID", group.ID), slog.String("userID", userID))
	return group, nil
}

// LeaveGroup removes a non-creator member together with their leaderboard
// entry. Their predictions stay in place.
func (s *GroupService) LeaveGroup(ctx context.Context, userID, groupID string) error {
	err := s.obs.Observe(ctx, "groups.leave", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			g, err := tx.GetGroup(ctx, groupID)
			if err != nil {
				return err
			}
			if g.CreatorID == userID {
				return apperror.CreatorCannotLeave(groupID)
			}
			if _, err := tx.GetMembership(ctx, groupID, userID); err != nil {
				return err
			}

			if err := tx.DeleteLeaderboardEntry(ctx, groupID, userID); err != nil {
				return err
			}
			if err := tx.DeleteMembership(ctx, groupID, userID); err != nil {
				return err
			}

			_, err = s.board.recalculateGroup(ctx, tx, groupID)
			return err
		})
	}, userAttr(userID), groupAttr(groupID))
	if err != nil {
		return err
	}

	s.logger.Info("user left group", slog.String("groupID", groupID), slog.String("userID", userID))
	return nil
}

// DeleteGroup removes the group and everything hanging off it. Only the
// creator may delete a group.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, requesterID string) error {
	err := s.obs.Observe(ctx, "groups.delete", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			g, err := tx.GetGroup(ctx, groupID)
			if err != nil {
				return err
			}
			if g.CreatorID != requesterID {
				return apperror.Forbidden("only the group creator can delete the group")
			}

			// Explicit child deletes; ON DELETE CASCADE is only the backstop.
			if err := tx.DeleteGroupPredictions(ctx, groupID); err != nil {
				return err
			}
			if err := tx.DeleteGroupLeaderboard(ctx, groupID); err != nil {
				return err
			}
			if err := tx.DeleteGroupMemberships(ctx, groupID); err != nil {
				return err
			}
			return tx.DeleteGroup(ctx, groupID)
		})
	}, groupAttr(groupID))
	if err != nil {
		return err
	}

	s.logger.Info("group deleted", slog.String("groupID", groupID), slog.String("requesterID", requesterID))
	return nil
}

func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// GetGroupByCode lets a player preview a group before joining it.
func (s *GroupService) GetGroupByCode(ctx context.Context, code string) (*model.Group, error) {
	code, err := s.normalizeCode(code)
	if err != nil {
		return nil, err
	}
	return s.store.GetGroupByCode(ctx, code)
}

// normalizeCode rejects user input that cannot be a group code before any
// store lookup.
func (s *GroupService) normalizeCode(code string) (string, error) {
	code = groupcode.Normalize(code)
	if code == "" {
		return "", apperror.ValidationFailed("code", "group code is required")
	}
	if !s.codes.Valid(code) {
		return "", apperror.ValidationFailed("code", "group code must be letters A-Z and digits 0-9 of the issued length")
	}
	return code, nil
}

func (s *GroupService) ListUserGroups(ctx context.Context, userID string) ([]model.UserGroup, error) {
	return s.store.ListUserGroups(ctx, userID)
}

// ListMembers returns the member list; only members may see it.
func (s *GroupService) ListMembers(ctx context.Context, groupID, requesterID string) ([]model.GroupMember, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetMembership(ctx, groupID, requesterID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}
