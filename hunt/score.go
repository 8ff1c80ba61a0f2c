/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

const (
	bonusInterval = 10
	LatePenalty   = -50
)

// ScoreBreakdown splits a score into the parts shown on the results screen.
type ScoreBreakdown struct {
	ItemPoints  int `json:"item_points"`
	TimeBonus   int `json:"time_bonus"`
	LatePenalty int `json:"late_penalty"`
	Total       int `json:"total"`
}

// Breakdown scores a checklist. Bonus and penalty only apply once the game is
// finished; while playing the score is item points alone.
func Breakdown(items []Item, phase Phase, remaining int) ScoreBreakdown {
	var b ScoreBreakdown

	for _, it := range items {
		if it.Captured() {
			b.ItemPoints += it.Points
		}
	}

	if phase == PhaseFinished {
		if remaining > 0 {
			b.TimeBonus = remaining / bonusInterval
		} else {
			b.LatePenalty = LatePenalty
		}
	}

	b.Total = b.ItemPoints + b.TimeBonus + b.LatePenalty

	return b
}

func Score(items []Item, phase Phase, remaining int) int {
	return Breakdown(items, phase, remaining).Total
}
