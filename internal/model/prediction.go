package model

import "time"

// Prediction is one user's predicted score line for a fixture within a group.
// (UserID, GroupID, FixtureID) is unique.
//
// Locked predictions never change their predicted scores again. PointsEarned
// stays nil until the fixture is completed and is written only by scoring.
type Prediction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	GroupID      string    `json:"groupId"`
	FixtureID    int64     `json:"fixtureId"`
	PredHome     int       `json:"predHomeScore"`
	PredAway     int       `json:"predAwayScore"`
	PredictedAt  time.Time `json:"predictedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Locked       bool      `json:"locked"`
	PointsEarned *int      `json:"pointsEarned,omitempty"`
}

// FixturePrediction is a prediction joined with its fixture, for a user's own
// prediction list.
type FixturePrediction struct {
	Prediction
	Fixture Fixture `json:"fixture"`
}

// GroupPrediction is a prediction on one fixture as shown to the group.
type GroupPrediction struct {
	Prediction
	Username string `json:"username"`
}
