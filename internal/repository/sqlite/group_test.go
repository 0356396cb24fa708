package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/model"
	"github.com/sakif/prediction-league/internal/repository"
)

func TestInsertGroup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")

	group := &model.Group{Code: "ABC123", Name: "Office", CreatorID: alice.ID, CreatedAt: time.Now()}
	if err := db.InsertGroup(ctx, group); err != nil {
		t.Fatalf("InsertGroup() error = %v", err)
	}
	if group.ID == "" {
		t.Fatal("InsertGroup() did not set group.ID")
	}

	got, err := db.GetGroupByCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("GetGroupByCode() error = %v", err)
	}
	if got.ID != group.ID || got.Name != "Office" || got.CreatorID != alice.ID {
		t.Errorf("GetGroupByCode() = %+v", got)
	}
}

func TestInsertGroup_CodeTaken(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	createTestGroup(t, db, alice, "SAME00")

	err := db.InsertGroup(context.Background(), &model.Group{Code: "SAME00", Name: "Other", CreatorID: alice.ID})
	if !errors.Is(err, repository.ErrCodeTaken) {
		t.Errorf("InsertGroup() error = %v, want ErrCodeTaken", err)
	}
}

func TestGetGroup_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.GetGroup(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetGroup() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetGroupByCode(ctx, "NOPE00"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetGroupByCode() error = %v, want ErrNotFound", err)
	}
}

func TestInsertMembership_Duplicate(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	group := createTestGroup(t, db, alice, "ABC123")

	err := db.InsertMembership(context.Background(), &model.Membership{GroupID: group.ID, UserID: alice.ID})
	if !errors.Is(err, apperror.ErrAlreadyMember) {
		t.Errorf("InsertMembership() error = %v, want ErrAlreadyMember", err)
	}
}

func TestGetMembership(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, alice, "ABC123")

	if _, err := db.GetMembership(ctx, group.ID, alice.ID); err != nil {
		t.Errorf("GetMembership(creator) error = %v", err)
	}
	if _, err := db.GetMembership(ctx, group.ID, bob.ID); !errors.Is(err, apperror.ErrNotMember) {
		t.Errorf("GetMembership(outsider) error = %v, want ErrNotMember", err)
	}
}

func TestDeleteMembership_CascadesLeaderboardEntry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, alice, "ABC123")
	addTestMember(t, db, group, bob)

	if err := db.DeleteMembership(ctx, group.ID, bob.ID); err != nil {
		t.Fatalf("DeleteMembership() error = %v", err)
	}

	board, err := db.ListLeaderboard(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListLeaderboard() error = %v", err)
	}
	if len(board) != 1 || board[0].UserID != alice.ID {
		t.Errorf("leaderboard after leave = %+v, want only alice", board)
	}

	if err := db.DeleteMembership(ctx, group.ID, bob.ID); !errors.Is(err, apperror.ErrNotMember) {
		t.Errorf("second DeleteMembership() error = %v, want ErrNotMember", err)
	}
}

func TestListUserGroups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	mine := createTestGroup(t, db, alice, "AAA111")
	theirs := createTestGroup(t, db, bob, "BBB222")
	addTestMember(t, db, theirs, alice)

	groups, err := db.ListUserGroups(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListUserGroups() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("ListUserGroups() returned %d groups, want 2", len(groups))
	}

	byID := map[string]model.UserGroup{}
	for _, g := range groups {
		byID[g.ID] = g
	}
	if !byID[mine.ID].IsCreator || byID[mine.ID].MemberCount != 1 {
		t.Errorf("own group = %+v", byID[mine.ID])
	}
	if byID[theirs.ID].IsCreator || byID[theirs.ID].MemberCount != 2 {
		t.Errorf("joined group = %+v", byID[theirs.ID])
	}

	none, err := db.ListUserGroups(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListUserGroups() error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ListUserGroups(nobody) = %v, want empty slice", none)
	}
}

func TestListMembers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, alice, "ABC123")
	addTestMember(t, db, group, bob)

	members, err := db.ListMembers(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("ListMembers() returned %d members, want 2", len(members))
	}
	for _, m := range members {
		if m.IsCreator != (m.UserID == alice.ID) {
			t.Errorf("member %s IsCreator = %v", m.Username, m.IsCreator)
		}
	}
}

func TestDeleteGroup_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	group := createTestGroup(t, db, alice, "ABC123")
	createTestFixture(t, db, 1, time.Now().Add(time.Hour))
	createTestPrediction(t, db, alice, group, 1, 2, 1)

	if err := db.DeleteGroup(ctx, group.ID); err != nil {
		t.Fatalf("DeleteGroup() error = %v", err)
	}

	if _, err := db.GetMembership(ctx, group.ID, alice.ID); !errors.Is(err, apperror.ErrNotMember) {
		t.Errorf("membership survived group deletion: %v", err)
	}
	preds, err := db.ListFixturePredictions(ctx, 1)
	if err != nil {
		t.Fatalf("ListFixturePredictions() error = %v", err)
	}
	if len(preds) != 0 {
		t.Errorf("%d predictions survived group deletion", len(preds))
	}

	if err := db.DeleteGroup(ctx, group.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteGroup() error = %v, want ErrNotFound", err)
	}
}
