package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name                   string
		predHome, predAway     int
		actualHome, actualAway int
		want                   int
	}{
		{name: "exact match", predHome: 10, predAway: 5, actualHome: 10, actualAway: 5, want: 10},
		{name: "exact tie", predHome: 98, predAway: 98, actualHome: 98, actualAway: 98, want: 10},
		{name: "wrong winner, home within margin", predHome: 8, predAway: 9, actualHome: 10, actualAway: 5, want: 1},
		{name: "right winner, both within margin", predHome: 11, predAway: 4, actualHome: 10, actualAway: 5, want: 5},
		{name: "right winner, one side within margin", predHome: 110, predAway: 100, actualHome: 112, actualAway: 95, want: 4},
		{name: "right winner, no margins", predHome: 120, predAway: 90, actualHome: 101, actualAway: 99, want: 3},
		{name: "predicted tie, actual tie, inexact", predHome: 100, predAway: 100, actualHome: 99, actualAway: 99, want: 5},
		{name: "predicted tie, actual home win", predHome: 100, predAway: 100, actualHome: 110, actualAway: 100, want: 1},
		{name: "everything wrong", predHome: 80, predAway: 120, actualHome: 120, actualAway: 80, want: 0},
		{name: "margin boundary is inclusive", predHome: 102, predAway: 92, actualHome: 100, actualAway: 94, want: 5},
		{name: "margin just outside", predHome: 103, predAway: 91, actualHome: 100, actualAway: 94, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.predHome, tt.predAway, tt.actualHome, tt.actualAway)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScore_Properties(t *testing.T) {
	allowed := map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 10: true}

	for ph := 0; ph <= 8; ph++ {
		for pa := 0; pa <= 8; pa++ {
			for ah := 0; ah <= 8; ah++ {
				for aa := 0; aa <= 8; aa++ {
					got := Score(ph, pa, ah, aa)
					if !allowed[got] {
						t.Fatalf("Score(%d,%d,%d,%d) = %d, outside the allowed set", ph, pa, ah, aa, got)
					}

					exact := ph == ah && pa == aa
					if exact && got != ExactPoints {
						t.Fatalf("Score(%d,%d,%d,%d) = %d, want %d for an exact line", ph, pa, ah, aa, got, ExactPoints)
					}
					if !exact && Outcome(ph, pa) == Outcome(ah, aa) && (got < 3 || got > 5) {
						t.Fatalf("Score(%d,%d,%d,%d) = %d, winner-correct inexact must be in [3,5]", ph, pa, ah, aa, got)
					}
					if !exact && got > 5 {
						t.Fatalf("Score(%d,%d,%d,%d) = %d, inexact lines score at most 5", ph, pa, ah, aa, got)
					}
				}
			}
		}
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, HomeWin, Outcome(3, 1))
	assert.Equal(t, AwayWin, Outcome(1, 3))
	assert.Equal(t, Tie, Outcome(2, 2))
	assert.Equal(t, "home", HomeWin.String())
	assert.Equal(t, "away", AwayWin.String())
	assert.Equal(t, "tie", Tie.String())
}
