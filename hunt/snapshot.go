/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import "time"

type RuleState struct {
	Rule
	Accepted bool `json:"accepted"`
}

type ItemView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	ReferenceImage string     `json:"reference_image"`
	Points         int        `json:"points"`
	Status         Status     `json:"status"`
	HasPhoto       bool       `json:"has_photo"`
	CapturedAt     *time.Time `json:"captured_at,omitempty"`
}

// Snapshot is everything a view needs to render a session.
type Snapshot struct {
	Phase         Phase          `json:"phase"`
	Roster        Roster         `json:"roster"`
	RosterReady   bool           `json:"roster_ready"`
	Rules         []RuleState    `json:"rules"`
	RulesAccepted bool           `json:"rules_accepted"`
	Items         []ItemView     `json:"items"`
	Found         int            `json:"found"`
	Remaining     int            `json:"remaining"`
	Clock         string         `json:"clock"`
	Score         ScoreBreakdown `json:"score"`
	ActiveTarget  string         `json:"active_target,omitempty"`
	CaptureReady  bool           `json:"capture_ready"`
	CaptureMode   Mode           `json:"capture_mode,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:         s.phase,
		Roster:        s.roster.clone(),
		RosterReady:   s.roster.Ready(),
		RulesAccepted: s.acks.All(),
		Found:         s.checklist.CapturedCount(),
		Remaining:     s.countdown.Remaining,
		Clock:         s.countdown.String(),
		Score:         Breakdown(s.checklist.items, s.phase, s.countdown.Remaining),
		ActiveTarget:  s.slot.target,
		CaptureReady:  s.CaptureReady(),
	}

	if s.slot.capture != nil {
		snap.CaptureMode = s.slot.capture.Mode()
	}

	for _, r := range rules {
		snap.Rules = append(snap.Rules, RuleState{Rule: r, Accepted: s.acks[r.ID]})
	}

	snap.Items = make([]ItemView, 0, s.checklist.Len())
	for _, it := range s.checklist.items {
		v := ItemView{
			ID:             it.ID,
			Name:           it.Name,
			ReferenceImage: it.ReferenceImage,
			Points:         it.Points,
			Status:         it.Status,
			HasPhoto:       it.Photo != nil,
		}
		if it.Captured() {
			at := it.CapturedAt
			v.CapturedAt = &at
		}
		snap.Items = append(snap.Items, v)
	}

	return snap
}
