/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

// Rule is one entry of the safety agreement shown before play.
type Rule struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var rules = []Rule{
	{
		ID:          "boundaries",
		Title:       "Stay Within Boundaries",
		Description: "We will stay within the designated game boundaries at all times. Going outside will result in disqualification.",
	},
	{
		ID:          "together",
		Title:       "Team Stays Together",
		Description: "Our entire team will remain together at all times. No team member will separate, even briefly.",
	},
	{
		ID:          "phone",
		Title:       "One Phone Only",
		Description: "We will use only one designated phone per team for the app and photo capture.",
	},
	{
		ID:          "photos",
		Title:       "Original Photos Only",
		Description: "We will take original photos of items using the app camera. We will not photograph pictures or share photos with other teams.",
	},
	{
		ID:          "respect",
		Title:       "Respect Park Property",
		Description: "We will not tamper with, move, or damage any scavenger hunt items or park property. We will leave no trace.",
	},
	{
		ID:          "safety",
		Title:       "Safety First",
		Description: "We will be aware of our surroundings, avoid running or reckless behavior, and report any unsafe conditions immediately.",
	},
	{
		ID:          "dress",
		Title:       "Proper Attire",
		Description: "All team members are dressed appropriately in athletic wear and proper running shoes.",
	},
	{
		ID:          "return",
		Title:       "Return on Time",
		Description: "We will return to the starting point and end the game before the timer expires to avoid penalties.",
	},
	{
		ID:          "fair",
		Title:       "Fair Play",
		Description: "We will play fairly, follow all rules, and maintain good sportsmanship throughout the game.",
	},
}

// Rules returns a copy of the fixed rule definitions, in display order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Acknowledgements maps rule id to whether the team accepted it.
type Acknowledgements map[string]bool

func NewAcknowledgements() Acknowledgements {
	acks := make(Acknowledgements, len(rules))
	for _, r := range rules {
		acks[r.ID] = false
	}
	return acks
}

func (a Acknowledgements) Set(id string, accepted bool) error {
	if _, ok := a[id]; !ok {
		return ErrUnknownRule
	}
	a[id] = accepted
	return nil
}

func (a Acknowledgements) All() bool {
	for _, r := range rules {
		if !a[r.ID] {
			return false
		}
	}
	return true
}
