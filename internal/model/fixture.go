package model

import "time"

// Fixture is a scheduled two-sided match. ID is the match number assigned by
// the schedule feed.
//
// Completed implies both scores are set. Before completion the scores are
// nil or provisional and take no part in scoring.
type Fixture struct {
	ID        int64     `json:"id"`
	HomeTeam  string    `json:"homeTeam"`
	AwayTeam  string    `json:"awayTeam"`
	StartTime time.Time `json:"startTime"`
	HomeScore *int      `json:"homeScore,omitempty"`
	AwayScore *int      `json:"awayScore,omitempty"`
	Completed bool      `json:"completed"`
	Season    string    `json:"season"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Started reports whether predictions on the fixture must be locked at now.
func (f *Fixture) Started(now time.Time) bool {
	return f.Completed || !f.StartTime.After(now)
}

// HasScores reports whether the fixture carries exactly home/away.
func (f *Fixture) HasScores(home, away int) bool {
	return f.HomeScore != nil && f.AwayScore != nil && *f.HomeScore == home && *f.AwayScore == away
}
