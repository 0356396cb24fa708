package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/scoring"
)

// InsertLeaderboardEntry creates the member's zero-point entry. The composite
// foreign key to memberships rejects entries for non-members.
func (r *queries) InsertLeaderboardEntry(ctx context.Context, e *model.LeaderboardEntry) error {
	e.UpdatedAt = ts(e.UpdatedAt)
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO leaderboard_entries (group_id, user_id, total_points, rank_position, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.GroupID, e.UserID, e.TotalPoints, e.RankPosition, e.UpdatedAt,
	)
	if err != nil {
		switch {
		case isConstraint(err, "leaderboard_entries."):
			return apperror.AlreadyMember(e.UserID, e.GroupID)
		case isConstraint(err, "FOREIGN KEY"):
			return apperror.NotMember(e.UserID, e.GroupID)
		}
		return fmt.Errorf("sqlite: inserting leaderboard entry %s/%s: %w", e.GroupID, e.UserID, err)
	}
	return nil
}

func (r *queries) DeleteLeaderboardEntry(ctx context.Context, groupID, userID string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM leaderboard_entries WHERE group_id = ? AND user_id = ?`, groupID, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting leaderboard entry %s/%s: %w", groupID, userID, err)
	}
	return nil
}

func (r *queries) DeleteGroupLeaderboard(ctx context.Context, groupID string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM leaderboard_entries WHERE group_id = ?`, groupID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting leaderboard of group %s: %w", groupID, err)
	}
	return nil
}

func (r *queries) RefreshGroupTotals(ctx context.Context, groupID string, at time.Time) ([]model.LeaderboardEntry, error) {
	_, err := r.q.ExecContext(ctx, `
		UPDATE leaderboard_entries
		SET total_points = (
				SELECT COALESCE(SUM(p.points_earned), 0)
				FROM predictions p
				WHERE p.group_id = leaderboard_entries.group_id
				  AND p.user_id = leaderboard_entries.user_id
			),
			updated_at = ?
		WHERE group_id = ?`,
		ts(at), groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: refreshing totals of group %s: %w", groupID, err)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT group_id, user_id, total_points, rank_position, updated_at
		FROM leaderboard_entries
		WHERE group_id = ?
		ORDER BY total_points DESC, user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading totals of group %s: %w", groupID, err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.GroupID, &e.UserID, &e.TotalPoints, &e.RankPosition, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *queries) SetRankPosition(ctx context.Context, groupID, userID string, rank int) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE leaderboard_entries SET rank_position = ? WHERE group_id = ? AND user_id = ?`,
		rank, groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting rank of %s/%s: %w", groupID, userID, err)
	}
	return checkAffected(res, apperror.NotMember(userID, groupID))
}

// ListLeaderboard returns the group's standings with per-member prediction
// statistics, ordered by rank then username.
func (r *queries) ListLeaderboard(ctx context.Context, groupID string) ([]model.LeaderboardRow, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT l.group_id, l.user_id, l.total_points, l.rank_position, l.updated_at,
		       u.username,
		       COUNT(p.id),
		       COUNT(p.points_earned),
		       COALESCE(SUM(p.points_earned = ?), 0),
		       AVG(p.points_earned)
		FROM leaderboard_entries l
		JOIN users u ON u.id = l.user_id
		LEFT JOIN predictions p ON p.group_id = l.group_id AND p.user_id = l.user_id
		WHERE l.group_id = ?
		GROUP BY l.group_id, l.user_id
		ORDER BY l.rank_position, u.username`,
		scoring.ExactPoints, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing leaderboard of group %s: %w", groupID, err)
	}
	defer rows.Close()

	board := []model.LeaderboardRow{}
	for rows.Next() {
		var (
			row model.LeaderboardRow
			avg sql.NullFloat64
		)
		if err := rows.Scan(
			&row.GroupID, &row.UserID, &row.TotalPoints, &row.RankPosition, &row.UpdatedAt,
			&row.Username,
			&row.TotalPredictions,
			&row.ScoredPredictions,
			&row.ExactPredictions,
			&avg,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		if avg.Valid {
			v := avg.Float64
			row.AvgPoints = &v
		}
		board = append(board, row)
	}
	return board, rows.Err()
}
