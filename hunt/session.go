/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Hooks observe a session. Both run on the goroutine mutating the session.
type Hooks struct {
	OnTransition func(from, to Phase)
	OnFinish     func(expired bool, score int)
	OnCapture    func(item Item, mode Mode)
}

type Options struct {
	Catalog  Catalog
	Duration time.Duration
	Shuffle  bool
	// Intn feeds the shuffle; nil uses math/rand/v2.
	Intn   func(n int) int
	Clock  clockwork.Clock
	Logger zerolog.Logger
	Hooks  Hooks
}

func (o *Options) setDefaults() {
	if len(o.Catalog.Items) == 0 {
		o.Catalog = DefaultCatalog()
	}
	if o.Duration <= 0 {
		o.Duration = DefaultDuration
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// Attempt identifies one capture request. Completions carrying an older
// token belong to a superseded or cancelled request and are discarded.
type Attempt struct {
	Token  uint64
	ItemID string
	Ctx    context.Context
}

// StillRequest is handed out when a held capture is asked for a still.
type StillRequest struct {
	Attempt
	Capture Capture
}

// captureSlot is the single capture resource a session may hold.
type captureSlot struct {
	target   string
	token    uint64
	capture  Capture
	shooting bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// Session is the game state machine. It is not safe for concurrent use;
// Game serializes every call onto one goroutine.
type Session struct {
	opts Options
	log  zerolog.Logger

	phase     Phase
	roster    Roster
	acks      Acknowledgements
	checklist *Checklist
	countdown Countdown

	slot captureSlot
	seq  uint64
}

func NewSession(opts Options) *Session {
	opts.setDefaults()

	s := &Session{
		opts: opts,
		log:  opts.Logger,
	}
	s.reset()

	return s
}

func (s *Session) reset() {
	s.phase = PhaseSetup
	s.roster = NewRoster()
	s.acks = NewAcknowledgements()
	s.checklist = NewChecklist(s.entries())
	s.countdown = NewCountdown(int(s.opts.Duration / time.Second))
}

// entries returns a fresh copy of the catalog, shuffled when enabled.
func (s *Session) entries() []Entry {
	entries := append([]Entry(nil), s.opts.Catalog.Items...)
	if s.opts.Shuffle {
		Shuffle(entries, s.opts.Intn)
	}
	return entries
}

func (s *Session) Phase() Phase {
	return s.phase
}

func (s *Session) Roster() Roster {
	return s.roster.clone()
}

func (s *Session) Checklist() *Checklist {
	return s.checklist
}

func (s *Session) Countdown() Countdown {
	return s.countdown
}

func (s *Session) ActiveTarget() string {
	return s.slot.target
}

func (s *Session) CaptureReady() bool {
	return s.slot.capture != nil && !s.slot.shooting
}

func (s *Session) Score() int {
	return Score(s.checklist.items, s.phase, s.countdown.Remaining)
}

func (s *Session) transition(to Phase) {
	from := s.phase
	if !from.CanTransitionTo(to) {
		s.log.Error().Str("from", from.String()).Str("to", to.String()).Msg("illegal phase transition")
		return
	}

	if from == PhasePlaying {
		s.countdown.Disarm()
		s.releaseSlot()
	}

	s.phase = to

	s.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("phase changed")

	if s.opts.Hooks.OnTransition != nil {
		s.opts.Hooks.OnTransition(from, to)
	}
}

func (s *Session) require(p Phase) error {
	if s.phase != p {
		return ErrWrongPhase
	}
	return nil
}

func (s *Session) SetTeamName(name string) error {
	if err := s.require(PhaseSetup); err != nil {
		return err
	}
	s.roster.SetName(name)
	return nil
}

func (s *Session) SetMember(i int, name string) error {
	if err := s.require(PhaseSetup); err != nil {
		return err
	}
	s.roster.SetMember(i, name)
	return nil
}

func (s *Session) AddMember() error {
	if err := s.require(PhaseSetup); err != nil {
		return err
	}
	s.roster.AddMember()
	return nil
}

func (s *Session) RemoveMember(i int) error {
	if err := s.require(PhaseSetup); err != nil {
		return err
	}
	s.roster.RemoveMember(i)
	return nil
}

func (s *Session) AdvanceToRules() error {
	if err := s.require(PhaseSetup); err != nil {
		return err
	}
	if !s.roster.Ready() {
		return ErrRosterIncomplete
	}
	s.transition(PhaseRules)
	return nil
}

// BackToSetup returns to roster editing, keeping roster and acknowledgements.
func (s *Session) BackToSetup() error {
	if err := s.require(PhaseRules); err != nil {
		return err
	}
	s.transition(PhaseSetup)
	return nil
}

func (s *Session) AcknowledgeRule(id string, accepted bool) error {
	if err := s.require(PhaseRules); err != nil {
		return err
	}
	return s.acks.Set(id, accepted)
}

func (s *Session) RulesAccepted() bool {
	return s.acks.All()
}

// StartGame resets the checklist and arms the countdown.
func (s *Session) StartGame() error {
	if err := s.require(PhaseRules); err != nil {
		return err
	}
	if !s.acks.All() {
		return ErrRulesPending
	}

	s.checklist = NewChecklist(s.entries())
	s.countdown.Arm()
	s.transition(PhasePlaying)

	s.log.Info().
		Str("team", s.roster.Name).
		Strs("members", s.roster.Named()).
		Int("items", s.checklist.Len()).
		Msg("game started")

	return nil
}

// Tick advances the countdown by one second, finishing the game when it
// runs out. It reports whether this tick ended the game.
func (s *Session) Tick() bool {
	if s.phase != PhasePlaying {
		return false
	}
	if !s.countdown.Tick() {
		return false
	}

	s.transition(PhaseFinished)
	s.log.Info().Str("team", s.roster.Name).Int("score", s.Score()).Msg("time expired")
	s.finished(true)

	return true
}

func (s *Session) EndGame() error {
	if err := s.require(PhasePlaying); err != nil {
		return err
	}

	s.transition(PhaseFinished)
	s.log.Info().
		Str("team", s.roster.Name).
		Int("remaining", s.countdown.Remaining).
		Int("score", s.Score()).
		Msg("game ended")
	s.finished(false)

	return nil
}

func (s *Session) finished(expired bool) {
	if s.opts.Hooks.OnFinish != nil {
		s.opts.Hooks.OnFinish(expired, s.Score())
	}
}

// NewGame discards everything and starts over at setup.
func (s *Session) NewGame() error {
	if err := s.require(PhaseFinished); err != nil {
		return err
	}
	s.releaseSlot()
	s.transition(PhaseSetup)
	s.reset()
	return nil
}

// BeginCapture makes itemID the active target, superseding any capture
// already in progress. The returned attempt's context is cancelled as soon
// as the attempt stops being current.
func (s *Session) BeginCapture(itemID string) (Attempt, error) {
	if err := s.require(PhasePlaying); err != nil {
		return Attempt{}, err
	}

	item, ok := s.checklist.Get(itemID)
	if !ok {
		return Attempt{}, ErrUnknownItem
	}
	if item.Captured() {
		return Attempt{}, ErrAlreadyCaptured
	}

	if s.slot.target != "" {
		s.log.Debug().Str("item", s.slot.target).Str("next", itemID).Msg("superseding capture")
	}
	s.releaseSlot()

	s.seq++
	ctx, cancel := context.WithCancel(context.Background())
	s.slot = captureSlot{
		target: itemID,
		token:  s.seq,
		ctx:    ctx,
		cancel: cancel,
	}

	return Attempt{Token: s.seq, ItemID: itemID, Ctx: ctx}, nil
}

// CaptureAcquired applies the outcome of an acquisition. A capture arriving
// for a stale attempt is released on the spot.
func (s *Session) CaptureAcquired(token uint64, c Capture, err error) error {
	if c == nil && err == nil {
		err = ErrCaptureNotReady
	}

	if token != s.slot.token || s.slot.target == "" || s.slot.capture != nil {
		if c != nil {
			if rerr := c.Release(); rerr != nil {
				s.log.Warn().Err(rerr).Msg("failed to release stale capture")
			}
		}
		return ErrNoActiveCapture
	}

	if err != nil {
		s.log.Warn().Err(err).Str("item", s.slot.target).Msg("capture unavailable")
		s.releaseSlot()
		return err
	}

	s.slot.capture = c

	return nil
}

// StillRequest hands out the held capture so a still can be taken off the
// session goroutine.
func (s *Session) StillRequest(itemID string) (StillRequest, error) {
	if err := s.require(PhasePlaying); err != nil {
		return StillRequest{}, err
	}
	if s.slot.target == "" {
		return StillRequest{}, ErrNoActiveCapture
	}
	if itemID != s.slot.target {
		return StillRequest{}, ErrNotActiveTarget
	}
	if s.slot.capture == nil || s.slot.shooting {
		return StillRequest{}, ErrCaptureNotReady
	}

	s.slot.shooting = true

	return StillRequest{Attempt: s.attempt(), Capture: s.slot.capture}, nil
}

func (s *Session) attempt() Attempt {
	return Attempt{Token: s.slot.token, ItemID: s.slot.target, Ctx: s.slot.ctx}
}

// StillTaken applies the outcome of a StillRequest.
func (s *Session) StillTaken(req StillRequest, img Image, err error) error {
	if req.Token != s.slot.token || s.slot.target == "" {
		return ErrNoActiveCapture
	}

	s.slot.shooting = false

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Str("item", req.ItemID).Msg("capture failed")
		}
		s.releaseSlot()
		return err
	}

	return s.CompleteCapture(req.ItemID, img)
}

// CompleteCapture records img against the active target and releases the
// capture resource.
func (s *Session) CompleteCapture(itemID string, img Image) error {
	if err := s.require(PhasePlaying); err != nil {
		return err
	}

	item, ok := s.checklist.Get(itemID)
	if !ok {
		return ErrUnknownItem
	}
	if item.Captured() {
		return ErrAlreadyCaptured
	}
	if s.slot.target == "" || itemID != s.slot.target {
		return ErrNotActiveTarget
	}

	mode := ModeDirect
	if s.slot.capture != nil {
		mode = s.slot.capture.Mode()
	}

	if err := s.checklist.markCaptured(itemID, img, s.opts.Clock.Now()); err != nil {
		return err
	}

	s.releaseSlot()

	item, _ = s.checklist.Get(itemID)

	s.log.Info().
		Str("item", item.Name).
		Str("mode", string(mode)).
		Int("found", s.checklist.CapturedCount()).
		Msg("item captured")

	if s.opts.Hooks.OnCapture != nil {
		s.opts.Hooks.OnCapture(item, mode)
	}

	return nil
}

// CancelCapture drops the active target without touching any item.
func (s *Session) CancelCapture() {
	s.releaseSlot()
}

// Close releases anything the session still holds.
func (s *Session) Close() {
	s.releaseSlot()
	s.countdown.Disarm()
}

func (s *Session) releaseSlot() {
	slot := s.slot
	s.slot = captureSlot{}

	if slot.cancel != nil {
		slot.cancel()
	}
	if slot.capture != nil {
		if err := slot.capture.Release(); err != nil {
			s.log.Warn().Err(err).Str("item", slot.target).Msg("failed to release capture")
		}
	}
}

// Photo returns the still recorded for itemID.
func (s *Session) Photo(itemID string) (Image, bool) {
	item, ok := s.checklist.Get(itemID)
	if !ok || item.Photo == nil {
		return Image{}, false
	}
	return *item.Photo, true
}
