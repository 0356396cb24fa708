package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/auth"
	"github.com/sakif/prediction-league/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. The auth flows
// need no transactions, so a fake keeps these tests independent of SQLite.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	nextID int
	// set to a non-nil error to simulate a database failure
	upsertErr  error
	getByIDErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) byUsername(username string) *model.User {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			return u
		}
	}
	return nil
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.byUsername(user.Username) != nil {
		return apperror.New(apperror.ErrConflict, "username %q is already taken", user.Username)
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, existing := range f.users {
		if existing.GitHubID == user.GitHubID {
			existing.Email = user.Email
			existing.UpdatedAt = time.Now()
			*user = *existing
			return nil
		}
	}
	return f.CreateUser(ctx, user)
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	u := f.byUsername(username)
	if u == nil {
		return nil, apperror.NotFound("user", username)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) SetAdmin(_ context.Context, userID string, admin bool) error {
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.IsAdmin = admin
	return nil
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) (*AuthService, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars", time.Hour)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(repo, tokens, auth.NewPasswordService(bcrypt.MinCost), logger), tokens
}

// =========================================================================
// Register / Login
// =========================================================================

func TestRegister(t *testing.T) {
	repo := newFakeUserRepo()
	svc, tokens := newTestAuthService(t, repo)

	res, err := svc.Register(context.Background(), " alice ", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, "alice", res.User.Username)
	assert.NotEmpty(t, res.User.PasswordHash)
	assert.NotEqual(t, "correct-horse", res.User.PasswordHash)

	userID, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, userID)
}

func TestRegister_Rejections(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()
	_, err := svc.Register(ctx, "taken", "", "long-enough-pw")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"short username", "ab", "long-enough-pw", apperror.ErrValidation},
		{"username with spaces", "a b c", "long-enough-pw", apperror.ErrValidation},
		{"short password", "bob", "short", apperror.ErrValidation},
		{"username taken", "TAKEN", "long-enough-pw", apperror.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, "", tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "carol", "", "s3cret-pass")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "carol", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, "carol", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_GitHubOnlyAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()
	_, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "octo"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "octo", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// =========================================================================
// LoginOrRegisterGitHub
// =========================================================================

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc, tokens := newTestAuthService(t, repo)

	res, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 42, Login: "octocat", Email: "octo@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "octocat", res.User.Username)
	assert.Equal(t, int64(42), res.User.GitHubID)

	userID, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, userID)
}

func TestLoginOrRegisterGitHub_ExistingUserKeepsID(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat", Email: "old@example.com"})
	require.NoError(t, err)
	second, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat", Email: "new@example.com"})
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "new@example.com", second.User.Email)
	assert.Len(t, repo.users, 1)
}

func TestLoginOrRegisterGitHub_UsernameTakenGetsSuffix(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()
	_, err := svc.Register(ctx, "octocat", "", "password-123")
	require.NoError(t, err)

	res, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, "octocat-gh", res.User.Username)
}

func TestLoginOrRegisterGitHub_NilGitHubUser(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.LoginOrRegisterGitHub(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoginOrRegisterGitHub_RepositoryError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.upsertErr = errors.New("database is locked")
	svc, _ := newTestAuthService(t, repo)

	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "x"})
	assert.ErrorIs(t, err, repo.upsertErr)
}

// =========================================================================
// Admin
// =========================================================================

func TestGrantAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "dave", "", "password-123")
	require.NoError(t, err)

	admin, err := svc.IsAdmin(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.False(t, admin)

	u, err := svc.GrantAdmin(ctx, "dave", true)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)

	admin, err = svc.IsAdmin(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.True(t, admin)

	_, err = svc.GrantAdmin(ctx, "nobody", true)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestIsAdmin_UnknownUserAndFailures(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	admin, err := svc.IsAdmin(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, admin)

	repo.getByIDErr = errors.New("disk I/O error")
	_, err = svc.IsAdmin(context.Background(), "missing")
	assert.ErrorIs(t, err, repo.getByIDErr)
}

func TestGetUserByID(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	reg, err := svc.Register(context.Background(), "erin", "", "password-123")
	require.NoError(t, err)

	got, err := svc.GetUserByID(context.Background(), reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "erin", got.Username)

	_, err = svc.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
