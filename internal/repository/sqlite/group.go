package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/repository"
)

// InsertGroup stores a new group. group.ID is generated when empty.
// A code collision returns repository.ErrCodeTaken so the allocator can retry;
// SQLite rolls back only the failed statement, so the surrounding transaction
// stays usable.
func (r *queries) InsertGroup(ctx context.Context, group *model.Group) error {
	if group.ID == "" {
		group.ID = xid.New().String()
	}
	group.CreatedAt = ts(group.CreatedAt)

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO prediction_groups (id, code, name, creator_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		group.ID, group.Code, group.Name, group.CreatorID, group.CreatedAt,
	)
	if err != nil {
		if isConstraint(err, "prediction_groups.code") {
			return repository.ErrCodeTaken
		}
		if isConstraint(err, "FOREIGN KEY") {
			return apperror.NotFound("user", group.CreatorID)
		}
		return fmt.Errorf("sqlite: inserting group %q: %w", group.Name, err)
	}
	return nil
}

func (r *queries) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	return r.getGroupWhere(ctx, "id = ?", id, id)
}

// GetGroupByCode expects an already normalised (upper-case) code.
func (r *queries) GetGroupByCode(ctx context.Context, code string) (*model.Group, error) {
	return r.getGroupWhere(ctx, "code = ?", code, code)
}

func (r *queries) getGroupWhere(ctx context.Context, where string, arg any, label string) (*model.Group, error) {
	var g model.Group
	err := r.q.QueryRowContext(ctx,
		`SELECT id, code, name, creator_id, created_at FROM prediction_groups WHERE `+where, arg,
	).Scan(&g.ID, &g.Code, &g.Name, &g.CreatorID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("group", label)
		}
		return nil, fmt.Errorf("sqlite: getting group %s: %w", label, err)
	}
	return &g, nil
}

func (r *queries) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM prediction_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting group %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("group", id))
}

func (r *queries) ListGroupIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM prediction_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing group ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUserGroups returns the groups userID belongs to, newest membership first.
func (r *queries) ListUserGroups(ctx context.Context, userID string) ([]model.UserGroup, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT g.id, g.code, g.name, g.creator_id, g.created_at, m.joined_at,
		       (SELECT COUNT(*) FROM memberships c WHERE c.group_id = g.id)
		FROM memberships m
		JOIN prediction_groups g ON g.id = m.group_id
		WHERE m.user_id = ?
		ORDER BY m.joined_at DESC, g.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups for user %s: %w", userID, err)
	}
	defer rows.Close()

	groups := []model.UserGroup{}
	for rows.Next() {
		var ug model.UserGroup
		if err := rows.Scan(
			&ug.ID, &ug.Code, &ug.Name, &ug.CreatorID, &ug.CreatedAt, &ug.JoinedAt, &ug.MemberCount,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user group: %w", err)
		}
		ug.IsCreator = ug.CreatorID == userID
		groups = append(groups, ug)
	}
	return groups, rows.Err()
}

// InsertMembership adds userID to the group. The primary key on
// (group_id, user_id) turns a concurrent duplicate into apperror.ErrAlreadyMember.
func (r *queries) InsertMembership(ctx context.Context, m *model.Membership) error {
	m.JoinedAt = ts(m.JoinedAt)
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO memberships (group_id, user_id, joined_at) VALUES (?, ?, ?)`,
		m.GroupID, m.UserID, m.JoinedAt,
	)
	if err != nil {
		if isConstraint(err, "memberships.") {
			return apperror.AlreadyMember(m.UserID, m.GroupID)
		}
		if isConstraint(err, "FOREIGN KEY") {
			return apperror.NotFound("user", m.UserID)
		}
		return fmt.Errorf("sqlite: inserting membership %s/%s: %w", m.GroupID, m.UserID, err)
	}
	return nil
}

// GetMembership returns apperror.ErrNotMember when the membership is absent.
func (r *queries) GetMembership(ctx context.Context, groupID, userID string) (*model.Membership, error) {
	m := model.Membership{GroupID: groupID, UserID: userID}
	err := r.q.QueryRowContext(ctx,
		`SELECT joined_at FROM memberships WHERE group_id = ? AND user_id = ?`, groupID, userID,
	).Scan(&m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotMember(userID, groupID)
		}
		return nil, fmt.Errorf("sqlite: getting membership %s/%s: %w", groupID, userID, err)
	}
	return &m, nil
}

func (r *queries) DeleteMembership(ctx context.Context, groupID, userID string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM memberships WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting membership %s/%s: %w", groupID, userID, err)
	}
	return checkAffected(res, apperror.NotMember(userID, groupID))
}

func (r *queries) DeleteGroupMemberships(ctx context.Context, groupID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM memberships WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("sqlite: deleting memberships of group %s: %w", groupID, err)
	}
	return nil
}

// ListMembers returns the group's members ordered by rank, then join date.
func (r *queries) ListMembers(ctx context.Context, groupID string) ([]model.GroupMember, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT m.user_id, u.username, m.joined_at, m.user_id = g.creator_id,
		       COALESCE(l.total_points, 0), COALESCE(l.rank_position, 0)
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		JOIN prediction_groups g ON g.id = m.group_id
		LEFT JOIN leaderboard_entries l ON l.group_id = m.group_id AND l.user_id = m.user_id
		WHERE m.group_id = ?
		ORDER BY COALESCE(l.rank_position, 0), m.joined_at, m.user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of group %s: %w", groupID, err)
	}
	defer rows.Close()

	members := []model.GroupMember{}
	for rows.Next() {
		var gm model.GroupMember
		if err := rows.Scan(
			&gm.UserID, &gm.Username, &gm.JoinedAt, &gm.IsCreator, &gm.TotalPoints, &gm.RankPosition,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member: %w", err)
		}
		members = append(members, gm)
	}
	return members, rows.Err()
}
