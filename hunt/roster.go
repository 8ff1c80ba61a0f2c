/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import "strings"

const (
	MaxMembers      = 5
	MinReadyMembers = 3
)

// Roster is the team playing a session. A fresh roster has a single blank
// member slot, matching the form a team fills in on the setup screen.
type Roster struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func NewRoster() Roster {
	return Roster{Members: []string{""}}
}

func (r *Roster) SetName(name string) {
	r.Name = name
}

// SetMember overwrites slot i. Out of range indexes are ignored.
func (r *Roster) SetMember(i int, name string) bool {
	if i < 0 || i >= len(r.Members) {
		return false
	}
	r.Members[i] = name
	return true
}

func (r *Roster) AddMember() bool {
	if len(r.Members) >= MaxMembers {
		return false
	}
	r.Members = append(r.Members, "")
	return true
}

// RemoveMember drops slot i, never leaving the roster without a slot.
func (r *Roster) RemoveMember(i int) bool {
	if len(r.Members) <= 1 || i < 0 || i >= len(r.Members) {
		return false
	}
	r.Members = append(r.Members[:i:i], r.Members[i+1:]...)
	return true
}

// Named returns the members whose names are not blank, in roster order.
func (r Roster) Named() []string {
	named := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		if strings.TrimSpace(m) != "" {
			named = append(named, m)
		}
	}
	return named
}

func (r Roster) Ready() bool {
	return r.Name != "" && len(r.Named()) >= MinReadyMembers
}

func (r Roster) clone() Roster {
	return Roster{
		Name:    r.Name,
		Members: append([]string(nil), r.Members...),
	}
}
