/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import "errors"

// Rejections returned by Session. None of them are fatal: the session is left
// exactly as it was before the call.
var (
	ErrWrongPhase       = errors.New("action not allowed in current phase")
	ErrRosterIncomplete = errors.New("team needs a name and at least three members")
	ErrRulesPending     = errors.New("every rule must be acknowledged")
	ErrUnknownRule      = errors.New("unknown rule")
	ErrUnknownItem      = errors.New("unknown item")
	ErrAlreadyCaptured  = errors.New("item already captured")
	ErrNotActiveTarget  = errors.New("item is not the active capture target")
	ErrNoActiveCapture  = errors.New("no capture in progress")
	ErrCaptureNotReady  = errors.New("capture device not ready")
	ErrNotImage         = errors.New("selected file is not an image")
	ErrGameClosed       = errors.New("game closed")
)
