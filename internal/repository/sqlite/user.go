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
)

const userColumns = `id, username, email, password_hash, github_id, is_admin, created_at, updated_at`

// CreateUser inserts a new user, generating its ID and timestamps.
// Returns apperror.ErrConflict if the username is taken.
func (r *queries) CreateUser(ctx context.Context, user *model.User) error {
	now := ts(time.Now())
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	var githubID sql.NullInt64
	if user.GitHubID != 0 {
		githubID = sql.NullInt64{Int64: user.GitHubID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, githubID, user.IsAdmin,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isConstraint(err, "users.username") {
			return apperror.New(apperror.ErrConflict, "username %q is already taken", user.Username)
		}
		if isConstraint(err, "users.github_id") {
			return apperror.Conflict("github account", fmt.Sprint(user.GitHubID))
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// UpsertGitHubUser creates or refreshes the account linked to user.GitHubID.
// An existing account keeps its internal ID and username.
func (r *queries) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	var existingID string
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID == "" {
		return r.CreateUser(ctx, user)
	}

	_, err = r.q.ExecContext(ctx,
		`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
		user.Email, ts(time.Now()), existingID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", existingID, err)
	}

	stored, err := r.GetUserByID(ctx, existingID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (r *queries) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername matches usernames case-insensitively.
func (r *queries) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return u, nil
}

func (r *queries) SetAdmin(ctx context.Context, userID string, admin bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`,
		admin, ts(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting admin flag for %s: %w", userID, err)
	}
	return checkAffected(res, apperror.NotFound("user", userID))
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&githubID,
		&u.IsAdmin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	return &u, nil
}
