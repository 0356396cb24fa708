// Package model defines the data structures shared by the store, the services
// and the HTTP layer.
package model

import "time"

// User is a registered player.
//
// Users sign up either with a username and password or through GitHub. A
// GitHub-linked account has GitHubID set; a password account has PasswordHash
// set. Profile edits live outside this module, so apart from IsAdmin a user is
// effectively immutable here.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"githubId,omitempty"` // 0 when the account is not linked
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserStats summarises a user's predictions across every group.
type UserStats struct {
	UserID            string `json:"userId"`
	TotalPredictions  int    `json:"totalPredictions"`
	ScoredPredictions int    `json:"scoredPredictions"`
	ExactPredictions  int    `json:"exactPredictions"`
	CorrectWinners    int    `json:"correctWinners"`
	TotalPoints       int    `json:"totalPoints"`
	GroupsCount       int    `json:"groupsCount"`
}
