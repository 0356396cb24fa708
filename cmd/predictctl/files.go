package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sakif/prediction-league/internal/model"
)

const leaderboardSheet = "Leaderboard"

// fixtureColumns is the header row expected in an .xlsx schedule.
var fixtureColumns = []string{"id", "home_team", "away_team", "start_time", "season"}

func loadFixtures(path string) ([]model.Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return readFixturesJSON(f)
	case ".xlsx":
		return readFixturesXLSX(f)
	}
	return nil, fmt.Errorf("unsupported fixture file %q: want .json or .xlsx", path)
}

// readFixturesJSON reads an array of fixtures in the API's JSON shape.
func readFixturesJSON(r io.Reader) ([]model.Fixture, error) {
	var fixtures []model.Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fixtures); err != nil {
		return nil, fmt.Errorf("decoding fixtures: %w", err)
	}
	return fixtures, nil
}

// readFixturesXLSX reads the first sheet of a workbook. Row 1 must hold
// fixtureColumns; start_time is RFC 3339.
func readFixturesXLSX(r io.Reader) ([]model.Fixture, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("XLSX file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	header := rows[0]
	if len(header) < len(fixtureColumns) {
		return nil, fmt.Errorf("header row must be %s", strings.Join(fixtureColumns, ","))
	}
	for i, want := range fixtureColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != want {
			return nil, fmt.Errorf("header column %d is %q, want %q", i+1, header[i], want)
		}
	}

	fixtures := make([]model.Fixture, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) == 0 || strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		if len(row) < len(fixtureColumns) {
			return nil, fmt.Errorf("row %d: want %d columns, got %d", line, len(fixtureColumns), len(row))
		}

		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid id %q", line, row[0])
		}
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid start_time %q", line, row[3])
		}
		fixtures = append(fixtures, model.Fixture{
			ID:        id,
			HomeTeam:  row[1],
			AwayTeam:  row[2],
			StartTime: start,
			Season:    strings.TrimSpace(row[4]),
		})
	}
	return fixtures, nil
}

// writeLeaderboard writes the group's standings as a one-sheet workbook.
func writeLeaderboard(w io.Writer, group *model.Group, rows []model.LeaderboardRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", leaderboardSheet); err != nil {
		return err
	}

	title := []any{group.Name, group.Code}
	if err := f.SetSheetRow(leaderboardSheet, "A1", &title); err != nil {
		return err
	}
	header := []any{"Rank", "Player", "Points", "Predictions", "Scored", "Exact", "Avg points"}
	if err := f.SetSheetRow(leaderboardSheet, "A2", &header); err != nil {
		return err
	}

	for i, row := range rows {
		var avg any = ""
		if row.AvgPoints != nil {
			avg = *row.AvgPoints
		}
		cells := []any{
			row.RankPosition,
			row.Username,
			row.TotalPoints,
			row.TotalPredictions,
			row.ScoredPredictions,
			row.ExactPredictions,
			avg,
		}
		axis, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(leaderboardSheet, axis, &cells); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}
