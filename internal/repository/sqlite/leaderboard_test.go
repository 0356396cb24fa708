package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/model"
)

func TestInsertLeaderboardEntry_RequiresMembership(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, alice, "ABC123")

	err := db.InsertLeaderboardEntry(context.Background(), &model.LeaderboardEntry{GroupID: group.ID, UserID: bob.ID})
	if !errors.Is(err, apperror.ErrNotMember) {
		t.Errorf("InsertLeaderboardEntry() error = %v, want ErrNotMember", err)
	}
}

func TestRefreshGroupTotals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, alice, "ABC123")
	addTestMember(t, db, group, bob)
	createTestFixture(t, db, 1, time.Now().Add(-time.Hour))
	createTestFixture(t, db, 2, time.Now().Add(-time.Hour))

	a1 := createTestPrediction(t, db, alice, group, 1, 1, 0)
	a2 := createTestPrediction(t, db, alice, group, 2, 1, 0)
	b1 := createTestPrediction(t, db, bob, group, 1, 3, 3)
	createTestPrediction(t, db, bob, group, 2, 0, 0) // unscored

	for id, pts := range map[string]int{a1.ID: 3, a2.ID: 5, b1.ID: 10} {
		if err := db.SetPredictionPoints(ctx, id, pts); err != nil {
			t.Fatalf("SetPredictionPoints() error = %v", err)
		}
	}

	entries, err := db.RefreshGroupTotals(ctx, group.ID, time.Now())
	if err != nil {
		t.Fatalf("RefreshGroupTotals() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("RefreshGroupTotals() returned %d entries, want 2", len(entries))
	}
	if entries[0].UserID != bob.ID || entries[0].TotalPoints != 10 {
		t.Errorf("first entry = %+v, want bob with 10", entries[0])
	}
	if entries[1].UserID != alice.ID || entries[1].TotalPoints != 8 {
		t.Errorf("second entry = %+v, want alice with 8", entries[1])
	}
}

func TestListLeaderboard_Stats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, alice, "ABC123")
	addTestMember(t, db, group, bob)
	createTestFixture(t, db, 1, time.Now().Add(-time.Hour))
	createTestFixture(t, db, 2, time.Now().Add(time.Hour))

	p := createTestPrediction(t, db, alice, group, 1, 1, 0)
	createTestPrediction(t, db, alice, group, 2, 1, 0)
	if err := db.SetPredictionPoints(ctx, p.ID, 10); err != nil {
		t.Fatalf("SetPredictionPoints() error = %v", err)
	}
	if _, err := db.RefreshGroupTotals(ctx, group.ID, time.Now()); err != nil {
		t.Fatalf("RefreshGroupTotals() error = %v", err)
	}
	if err := db.SetRankPosition(ctx, group.ID, alice.ID, 1); err != nil {
		t.Fatalf("SetRankPosition() error = %v", err)
	}
	if err := db.SetRankPosition(ctx, group.ID, bob.ID, 2); err != nil {
		t.Fatalf("SetRankPosition() error = %v", err)
	}

	board, err := db.ListLeaderboard(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListLeaderboard() error = %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("ListLeaderboard() returned %d rows, want 2", len(board))
	}

	top := board[0]
	if top.Username != "alice" || top.RankPosition != 1 || top.TotalPoints != 10 {
		t.Errorf("top row = %+v", top)
	}
	if top.TotalPredictions != 2 || top.ScoredPredictions != 1 || top.ExactPredictions != 1 {
		t.Errorf("top row stats = %d/%d/%d, want 2/1/1", top.TotalPredictions, top.ScoredPredictions, top.ExactPredictions)
	}
	if top.AvgPoints == nil || *top.AvgPoints != 10 {
		t.Errorf("top row AvgPoints = %v, want 10", top.AvgPoints)
	}

	if board[1].AvgPoints != nil {
		t.Errorf("bob has no scored predictions but AvgPoints = %v", *board[1].AvgPoints)
	}
}

func TestSetRankPosition_NotMember(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	group := createTestGroup(t, db, alice, "ABC123")

	err := db.SetRankPosition(context.Background(), group.ID, "ghost", 1)
	if !errors.Is(err, apperror.ErrNotMember) {
		t.Errorf("SetRankPosition() error = %v, want ErrNotMember", err)
	}
}
