package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/scoring"
)

const predictionColumns = `p.id, p.user_id, p.group_id, p.fixture_id, p.pred_home, p.pred_away,
	p.predicted_at, p.updated_at, p.locked, p.points_earned`

// InsertPrediction stores a new prediction. The unique key on
// (user_id, group_id, fixture_id) turns a second prediction for the same
// fixture into apperror.ErrDuplicatePrediction.
func (r *queries) InsertPrediction(ctx context.Context, p *model.Prediction) error {
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	p.PredictedAt = ts(p.PredictedAt)
	p.UpdatedAt = p.PredictedAt

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO predictions (id, user_id, group_id, fixture_id, pred_home, pred_away,
			predicted_at, updated_at, locked, points_earned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.GroupID, p.FixtureID, p.PredHome, p.PredAway,
		p.PredictedAt, p.UpdatedAt, p.Locked, nullInt(p.PointsEarned),
	)
	if err != nil {
		switch {
		case isConstraint(err, "predictions.user_id"):
			return apperror.DuplicatePrediction(p.FixtureID)
		case isConstraint(err, "CHECK"):
			return apperror.ValidationFailed("score", "predicted scores must be non-negative")
		case isConstraint(err, "FOREIGN KEY"):
			return apperror.NotFound("fixture", fmt.Sprint(p.FixtureID))
		}
		return fmt.Errorf("sqlite: inserting prediction: %w", err)
	}
	return nil
}

func (r *queries) GetPrediction(ctx context.Context, id string) (*model.Prediction, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+predictionColumns+` FROM predictions p WHERE p.id = ?`, id)
	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("prediction", id)
		}
		return nil, fmt.Errorf("sqlite: getting prediction %s: %w", id, err)
	}
	return p, nil
}

func (r *queries) FindPrediction(ctx context.Context, userID, groupID string, fixtureID int64) (*model.Prediction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions p WHERE p.user_id = ? AND p.group_id = ? AND p.fixture_id = ?`,
		userID, groupID, fixtureID,
	)
	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("prediction", fmt.Sprintf("%s/%s/%d", userID, groupID, fixtureID))
		}
		return nil, fmt.Errorf("sqlite: finding prediction: %w", err)
	}
	return p, nil
}

// UpdatePredictionScores changes the predicted score line. The locked-scores
// trigger rejects the write once the prediction is locked.
func (r *queries) UpdatePredictionScores(ctx context.Context, id string, home, away int, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE predictions SET pred_home = ?, pred_away = ?, updated_at = ? WHERE id = ?`,
		home, away, ts(at), id,
	)
	if err != nil {
		switch {
		case isConstraint(err, "prediction locked"):
			return apperror.New(apperror.ErrPredictionLocked, "prediction %s is locked", id)
		case isConstraint(err, "CHECK"):
			return apperror.ValidationFailed("score", "predicted scores must be non-negative")
		}
		return fmt.Errorf("sqlite: updating prediction %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("prediction", id))
}

func (r *queries) DeletePrediction(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM predictions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting prediction %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("prediction", id))
}

func (r *queries) DeleteGroupPredictions(ctx context.Context, groupID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM predictions WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("sqlite: deleting predictions of group %s: %w", groupID, err)
	}
	return nil
}

func (r *queries) LockPrediction(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE predictions SET locked = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: locking prediction %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("prediction", id))
}

// LockFixturePredictions locks every unlocked prediction on the fixture and
// returns how many changed.
func (r *queries) LockFixturePredictions(ctx context.Context, fixtureID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE predictions SET locked = 1 WHERE fixture_id = ? AND locked = 0`, fixtureID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: locking predictions of fixture %d: %w", fixtureID, err)
	}
	return res.RowsAffected()
}

// LockStartedPredictions locks every unlocked prediction whose fixture has
// started by now or is already completed.
func (r *queries) LockStartedPredictions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE predictions SET locked = 1
		WHERE locked = 0
		  AND fixture_id IN (SELECT id FROM fixtures WHERE completed = 1 OR start_time <= ?)`,
		ts(now),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: locking started predictions: %w", err)
	}
	return res.RowsAffected()
}

// ListFixturePredictions returns every prediction on the fixture across all
// groups.
func (r *queries) ListFixturePredictions(ctx context.Context, fixtureID int64) ([]model.Prediction, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions p WHERE p.fixture_id = ? ORDER BY p.group_id, p.user_id`,
		fixtureID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing predictions of fixture %d: %w", fixtureID, err)
	}
	defer rows.Close()

	preds := []model.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning prediction: %w", err)
		}
		preds = append(preds, *p)
	}
	return preds, rows.Err()
}

func (r *queries) ListGroupFixturePredictions(ctx context.Context, fixtureID int64, groupID string) ([]model.GroupPrediction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+predictionColumns+`, u.username
		FROM predictions p
		JOIN users u ON u.id = p.user_id
		WHERE p.fixture_id = ? AND p.group_id = ?
		ORDER BY p.points_earned IS NULL, p.points_earned DESC, u.username`,
		fixtureID, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing group predictions of fixture %d: %w", fixtureID, err)
	}
	defer rows.Close()

	preds := []model.GroupPrediction{}
	for rows.Next() {
		var (
			gp     model.GroupPrediction
			points sql.NullInt64
		)
		p := &gp.Prediction
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.GroupID, &p.FixtureID, &p.PredHome, &p.PredAway,
			&p.PredictedAt, &p.UpdatedAt, &p.Locked, &points, &gp.Username,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning group prediction: %w", err)
		}
		p.PointsEarned = intPtr(points)
		preds = append(preds, gp)
	}
	return preds, rows.Err()
}

// ListUserPredictions returns the user's predictions joined with their
// fixtures, ordered by kickoff. An empty groupID spans every group.
func (r *queries) ListUserPredictions(ctx context.Context, userID, groupID string) ([]model.FixturePrediction, error) {
	query := `
		SELECT ` + predictionColumns + `,
		       f.id, f.home_team, f.away_team, f.start_time, f.home_score, f.away_score,
		       f.completed, f.season, f.updated_at
		FROM predictions p
		JOIN fixtures f ON f.id = p.fixture_id
		WHERE p.user_id = ?`
	args := []any{userID}
	if groupID != "" {
		query += ` AND p.group_id = ?`
		args = append(args, groupID)
	}
	query += ` ORDER BY f.start_time, f.id, p.group_id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing predictions of user %s: %w", userID, err)
	}
	defer rows.Close()

	preds := []model.FixturePrediction{}
	for rows.Next() {
		var (
			fp                 model.FixturePrediction
			points, home, away sql.NullInt64
		)
		p, f := &fp.Prediction, &fp.Fixture
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.GroupID, &p.FixtureID, &p.PredHome, &p.PredAway,
			&p.PredictedAt, &p.UpdatedAt, &p.Locked, &points,
			&f.ID, &f.HomeTeam, &f.AwayTeam, &f.StartTime, &home, &away,
			&f.Completed, &f.Season, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user prediction: %w", err)
		}
		p.PointsEarned = intPtr(points)
		f.HomeScore = intPtr(home)
		f.AwayScore = intPtr(away)
		preds = append(preds, fp)
	}
	return preds, rows.Err()
}

func (r *queries) SetPredictionPoints(ctx context.Context, id string, points int) error {
	res, err := r.q.ExecContext(ctx, `UPDATE predictions SET points_earned = ? WHERE id = ?`, points, id)
	if err != nil {
		return fmt.Errorf("sqlite: setting points of prediction %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("prediction", id))
}

// ClearFixturePoints resets points_earned to NULL for every prediction on the
// fixture.
func (r *queries) ClearFixturePoints(ctx context.Context, fixtureID int64) error {
	if _, err := r.q.ExecContext(ctx,
		`UPDATE predictions SET points_earned = NULL WHERE fixture_id = ?`, fixtureID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing points of fixture %d: %w", fixtureID, err)
	}
	return nil
}

// GetUserStats aggregates the user's predictions across every group. A scored
// prediction worth at least the winner bonus had the winner right.
func (r *queries) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	s := model.UserStats{UserID: userID}
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(points_earned),
		       COALESCE(SUM(points_earned = ?), 0),
		       COALESCE(SUM(points_earned >= ?), 0),
		       COALESCE(SUM(points_earned), 0),
		       (SELECT COUNT(*) FROM memberships WHERE user_id = ?)
		FROM predictions
		WHERE user_id = ?`,
		scoring.ExactPoints, scoring.WinnerPoints, userID, userID,
	).Scan(
		&s.TotalPredictions,
		&s.ScoredPredictions,
		&s.ExactPredictions,
		&s.CorrectWinners,
		&s.TotalPoints,
		&s.GroupsCount,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting stats of user %s: %w", userID, err)
	}
	return &s, nil
}

func scanPrediction(row rowScanner) (*model.Prediction, error) {
	var (
		p      model.Prediction
		points sql.NullInt64
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.GroupID,
		&p.FixtureID,
		&p.PredHome,
		&p.PredAway,
		&p.PredictedAt,
		&p.UpdatedAt,
		&p.Locked,
		&points,
	)
	if err != nil {
		return nil, err
	}
	p.PointsEarned = intPtr(points)
	return &p, nil
}
