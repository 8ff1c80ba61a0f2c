/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package hunt is the game core of a timed photo scavenger hunt: a team fills
// in its roster, accepts the safety rules, then has a fixed window to
// photograph every item on the checklist.
//
// Session is the state machine. Game wraps a Session in a goroutine that
// serializes user intents, the one-second countdown, and capture work.
package hunt
