package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sakif/prediction-league/internal/model"
)

func TestReadFixturesJSON(t *testing.T) {
	in := `[
		{"id": 1, "homeTeam": "Arsenal", "awayTeam": "Chelsea", "startTime": "2026-08-15T14:00:00Z", "season": "2026"},
		{"id": 2, "homeTeam": "Leeds", "awayTeam": "Everton", "startTime": "2026-08-15T16:30:00Z", "season": "2026"}
	]`

	fixtures, err := readFixturesJSON(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, fixtures, 2)
	assert.Equal(t, int64(1), fixtures[0].ID)
	assert.Equal(t, "Chelsea", fixtures[0].AwayTeam)
	assert.True(t, fixtures[1].StartTime.Equal(time.Date(2026, 8, 15, 16, 30, 0, 0, time.UTC)))

	_, err = readFixturesJSON(strings.NewReader(`[{"id": 1, "venue": "Emirates"}]`))
	assert.Error(t, err)
}

// workbook builds an .xlsx file from rows the way a spreadsheet export would.
func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		cells := row
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &cells))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestReadFixturesXLSX(t *testing.T) {
	buf := workbook(t, [][]any{
		{"id", "home_team", "away_team", "start_time", "season"},
		{"10", "Arsenal", "Chelsea", "2026-08-15T14:00:00Z", "2026"},
		{},
		{"11", "Leeds", "Everton", "2026-08-16T16:30:00+01:00", "2026"},
	})

	fixtures, err := readFixturesXLSX(buf)
	require.NoError(t, err)
	require.Len(t, fixtures, 2)
	assert.Equal(t, model.Fixture{
		ID:        10,
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		StartTime: time.Date(2026, 8, 15, 14, 0, 0, 0, time.UTC),
		Season:    "2026",
	}, fixtures[0])
	assert.True(t, fixtures[1].StartTime.Equal(time.Date(2026, 8, 16, 15, 30, 0, 0, time.UTC)))
}

func TestReadFixturesXLSX_Rejects(t *testing.T) {
	tests := []struct {
		name string
		rows [][]any
		want string
	}{
		{
			name: "wrong header",
			rows: [][]any{{"id", "home", "away", "start_time", "season"}},
			want: "header column 2",
		},
		{
			name: "bad id",
			rows: [][]any{
				{"id", "home_team", "away_team", "start_time", "season"},
				{"ten", "Arsenal", "Chelsea", "2026-08-15T14:00:00Z", "2026"},
			},
			want: "row 2: invalid id",
		},
		{
			name: "bad start time",
			rows: [][]any{
				{"id", "home_team", "away_team", "start_time", "season"},
				{"10", "Arsenal", "Chelsea", "15/08/2026", "2026"},
			},
			want: "row 2: invalid start_time",
		},
		{
			name: "short row",
			rows: [][]any{
				{"id", "home_team", "away_team", "start_time", "season"},
				{"10", "Arsenal"},
			},
			want: "row 2: want 5 columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readFixturesXLSX(workbook(t, tt.rows))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteLeaderboard(t *testing.T) {
	avg := 6.5
	group := &model.Group{ID: "g1", Name: "Office League", Code: "AB12CD"}
	rows := []model.LeaderboardRow{
		{
			LeaderboardEntry:  model.LeaderboardEntry{UserID: "u1", TotalPoints: 13, RankPosition: 1},
			Username:          "alice",
			TotalPredictions:  2,
			ScoredPredictions: 2,
			ExactPredictions:  1,
			AvgPoints:         &avg,
		},
		{
			LeaderboardEntry: model.LeaderboardEntry{UserID: "u2", TotalPoints: 0, RankPosition: 2},
			Username:         "bob",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeLeaderboard(&buf, group, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{leaderboardSheet}, f.GetSheetList())
	got, err := f.GetRows(leaderboardSheet)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"Office League", "AB12CD"}, got[0])
	assert.Equal(t, "Rank", got[1][0])
	assert.Equal(t, []string{"1", "alice", "13", "2", "2", "1", "6.5"}, got[2])
	require.GreaterOrEqual(t, len(got[3]), 6)
	assert.Equal(t, []string{"2", "bob", "0", "0", "0", "0"}, got[3][:6])
}
