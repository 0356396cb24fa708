package model

import "time"

// LeaderboardEntry holds a member's standing in a group. It exists exactly
// when the membership exists, and TotalPoints always equals the sum of the
// member's scored predictions in the group.
type LeaderboardEntry struct {
	GroupID      string    `json:"groupId"`
	UserID       string    `json:"userId"`
	TotalPoints  int       `json:"totalPoints"`
	RankPosition int       `json:"rankPosition"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LeaderboardRow is a leaderboard entry enriched for display.
type LeaderboardRow struct {
	LeaderboardEntry
	Username          string   `json:"username"`
	TotalPredictions  int      `json:"totalPredictions"`
	ScoredPredictions int      `json:"scoredPredictions"`
	ExactPredictions  int      `json:"exactPredictions"`
	AvgPoints         *float64 `json:"avgPointsPerPrediction,omitempty"`
}

// UserRank is a single member's leaderboard row plus the group size.
type UserRank struct {
	LeaderboardRow
	TotalPlayers int `json:"totalPlayers"`
}
