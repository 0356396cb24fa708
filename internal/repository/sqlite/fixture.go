package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/model"
)

const fixtureColumns = `id, home_team, away_team, start_time, home_score, away_score, completed, season, updated_at`

func (r *queries) GetFixture(ctx context.Context, id int64) (*model.Fixture, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+fixtureColumns+` FROM fixtures WHERE id = ?`, id)
	f, err := scanFixture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("fixture", fmt.Sprint(id))
		}
		return nil, fmt.Errorf("sqlite: getting fixture %d: %w", id, err)
	}
	return f, nil
}

// UpsertFixture inserts the fixture or refreshes its schedule data. The result
// columns of an existing row are left alone; results only change through
// SetFixtureResult. at stamps updated_at.
func (r *queries) UpsertFixture(ctx context.Context, f *model.Fixture, at time.Time) error {
	f.StartTime = ts(f.StartTime)
	f.UpdatedAt = ts(at)

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO fixtures (`+fixtureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			home_team  = excluded.home_team,
			away_team  = excluded.away_team,
			start_time = excluded.start_time,
			season     = excluded.season,
			updated_at = excluded.updated_at`,
		f.ID, f.HomeTeam, f.AwayTeam, f.StartTime, nullInt(f.HomeScore), nullInt(f.AwayScore),
		f.Completed, f.Season, f.UpdatedAt,
	)
	if err != nil {
		if isConstraint(err, "CHECK") {
			return apperror.ValidationFailed("completed", "a completed fixture needs both scores")
		}
		return fmt.Errorf("sqlite: upserting fixture %d: %w", f.ID, err)
	}
	return nil
}

// SetFixtureResult records the final score and marks the fixture completed.
func (r *queries) SetFixtureResult(ctx context.Context, id int64, home, away int, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE fixtures SET home_score = ?, away_score = ?, completed = 1, updated_at = ? WHERE id = ?`,
		home, away, ts(at), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting result of fixture %d: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("fixture", fmt.Sprint(id)))
}

// ListFixtures returns fixtures starting in [from, to), ordered by start time.
// A zero from or to leaves that side open.
func (r *queries) ListFixtures(ctx context.Context, from, to time.Time) ([]model.Fixture, error) {
	query := `SELECT ` + fixtureColumns + ` FROM fixtures WHERE 1 = 1`
	var args []any
	if !from.IsZero() {
		query += ` AND start_time >= ?`
		args = append(args, ts(from))
	}
	if !to.IsZero() {
		query += ` AND start_time < ?`
		args = append(args, ts(to))
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing fixtures: %w", err)
	}
	defer rows.Close()

	fixtures := []model.Fixture{}
	for rows.Next() {
		f, err := scanFixture(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning fixture: %w", err)
		}
		fixtures = append(fixtures, *f)
	}
	return fixtures, rows.Err()
}

// NextFixtureStart returns the earliest start time strictly after the given
// instant among fixtures not yet completed.
func (r *queries) NextFixtureStart(ctx context.Context, after time.Time) (time.Time, bool, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+fixtureColumns+` FROM fixtures WHERE completed = 0 AND start_time > ? ORDER BY start_time, id LIMIT 1`,
		ts(after),
	)
	f, err := scanFixture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("sqlite: finding next fixture: %w", err)
	}
	return f.StartTime, true, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFixture(row rowScanner) (*model.Fixture, error) {
	var (
		f          model.Fixture
		home, away sql.NullInt64
	)
	err := row.Scan(
		&f.ID,
		&f.HomeTeam,
		&f.AwayTeam,
		&f.StartTime,
		&home,
		&away,
		&f.Completed,
		&f.Season,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.HomeScore = intPtr(home)
	f.AwayScore = intPtr(away)
	return &f, nil
}
