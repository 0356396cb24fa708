// Package scoring turns a predicted score line and the actual result into
// points. Everything here is pure: no clock, no store, no logging.
package scoring

const (
	ExactPoints  = 10
	WinnerPoints = 3
	MarginPoints = 1

	// MarginTolerance is the largest per-side miss that still earns MarginPoints.
	MarginTolerance = 2
)

// Result is the winner of a two-sided score line.
type Result int

const (
	Tie Result = iota
	HomeWin
	AwayWin
)

func (r Result) String() string {
	switch r {
	case HomeWin:
		return "home"
	case AwayWin:
		return "away"
	default:
		return "tie"
	}
}

// Outcome reports which side a score line favours.
func Outcome(home, away int) Result {
	switch {
	case home > away:
		return HomeWin
	case away > home:
		return AwayWin
	default:
		return Tie
	}
}

// IsExact reports whether both predicted scores match the result.
func IsExact(predHome, predAway, actualHome, actualAway int) bool {
	return predHome == actualHome && predAway == actualAway
}

// Score returns the points earned by a prediction.
//
// An exact score line is worth ExactPoints and nothing else is added. Otherwise
// a correct winner adds WinnerPoints and each side predicted within
// MarginTolerance adds MarginPoints, so the result is always one of
// 0, 1, 2, 3, 4, 5 or 10.
func Score(predHome, predAway, actualHome, actualAway int) int {
	if IsExact(predHome, predAway, actualHome, actualAway) {
		return ExactPoints
	}

	points := 0
	if Outcome(predHome, predAway) == Outcome(actualHome, actualAway) {
		points += WinnerPoints
	}
	if abs(predHome-actualHome) <= MarginTolerance {
		points += MarginPoints
	}
	if abs(predAway-actualAway) <= MarginTolerance {
		points += MarginPoints
	}
	return points
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
