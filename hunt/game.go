/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Game runs one Session on its own goroutine. User intents, clock ticks and
// the results of capture work all pass through that goroutine, so nothing
// touches the session concurrently and a tick can never race a transition.
type Game struct {
	id       string
	session  *Session
	source   Source
	clock    clockwork.Clock
	log      zerolog.Logger
	onChange func(Snapshot)

	actions chan action
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	ticker clockwork.Ticker
}

// action is one unit of work for the game goroutine. errc, when set,
// receives fn's result once the resulting state has been published.
type action struct {
	fn    func() error
	errc  chan error
	quiet bool
}

// NewGame starts the game loop. onChange, if set, receives a snapshot after
// every event and must not call back into the Game.
func NewGame(id string, source Source, opts Options, onChange func(Snapshot)) *Game {
	opts.setDefaults()
	opts.Logger = opts.Logger.With().Str("game_id", id).Logger()

	g := &Game{
		id:       id,
		session:  NewSession(opts),
		source:   source,
		clock:    opts.Clock,
		log:      opts.Logger,
		onChange: onChange,
		actions:  make(chan action),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go g.run()

	return g
}

func (g *Game) ID() string {
	return g.id
}

func (g *Game) run() {
	defer close(g.done)
	defer g.teardown()

	for {
		var tick <-chan time.Time
		if g.ticker != nil {
			tick = g.ticker.Chan()
		}

		select {
		case <-g.quit:
			return
		case a := <-g.actions:
			err := a.fn()
			if !a.quiet {
				g.settle()
			}
			if a.errc != nil {
				a.errc <- err
			}
		case <-tick:
			g.session.Tick()
			g.settle()
		}
	}
}

// settle keeps the ticker in step with the phase and publishes the new state.
func (g *Game) settle() {
	playing := g.session.Phase() == PhasePlaying && g.session.countdown.Armed

	switch {
	case playing && g.ticker == nil:
		g.ticker = g.clock.NewTicker(TickInterval)
	case !playing && g.ticker != nil:
		g.ticker.Stop()
		g.ticker = nil
	}

	if g.onChange != nil {
		g.onChange(g.session.Snapshot())
	}
}

func (g *Game) teardown() {
	if g.ticker != nil {
		g.ticker.Stop()
		g.ticker = nil
	}
	g.session.Close()
	g.log.Debug().Msg("game loop stopped")
}

// Close stops the loop and releases any held capture. Safe to call twice.
func (g *Game) Close() {
	g.once.Do(func() {
		close(g.quit)
	})
	<-g.done
}

// do runs fn on the game goroutine and waits for its result.
func (g *Game) do(fn func() error) error {
	return g.send(action{fn: fn, errc: make(chan error, 1)})
}

// query is do for reads: nothing changes, so nothing is published.
func (g *Game) query(fn func()) error {
	return g.send(action{
		fn: func() error {
			fn()
			return nil
		},
		errc:  make(chan error, 1),
		quiet: true,
	})
}

func (g *Game) send(a action) error {
	select {
	case g.actions <- a:
	case <-g.done:
		return ErrGameClosed
	case <-g.quit:
		return ErrGameClosed
	}

	return <-a.errc
}

// post queues fn without waiting. It reports false once the game is closed.
func (g *Game) post(fn func()) bool {
	a := action{fn: func() error {
		fn()
		return nil
	}}

	select {
	case g.actions <- a:
		return true
	case <-g.quit:
		return false
	case <-g.done:
		return false
	}
}

func (g *Game) SetTeamName(name string) error {
	return g.do(func() error { return g.session.SetTeamName(name) })
}

func (g *Game) SetMember(i int, name string) error {
	return g.do(func() error { return g.session.SetMember(i, name) })
}

func (g *Game) AddMember() error {
	return g.do(g.session.AddMember)
}

func (g *Game) RemoveMember(i int) error {
	return g.do(func() error { return g.session.RemoveMember(i) })
}

func (g *Game) AdvanceToRules() error {
	return g.do(g.session.AdvanceToRules)
}

func (g *Game) BackToSetup() error {
	return g.do(g.session.BackToSetup)
}

func (g *Game) AcknowledgeRule(id string, accepted bool) error {
	return g.do(func() error { return g.session.AcknowledgeRule(id, accepted) })
}

func (g *Game) StartGame() error {
	return g.do(g.session.StartGame)
}

func (g *Game) EndGame() error {
	return g.do(g.session.EndGame)
}

func (g *Game) NewGame() error {
	return g.do(g.session.NewGame)
}

// BeginCapture designates itemID and acquires a capture in the background.
// A manual capture is shot straight away, since the file chooser is itself
// the shutter.
func (g *Game) BeginCapture(itemID string) error {
	return g.do(func() error {
		att, err := g.session.BeginCapture(itemID)
		if err != nil {
			return err
		}
		go g.acquire(att)
		return nil
	})
}

func (g *Game) acquire(att Attempt) {
	c, err := g.source.Acquire(att.Ctx)

	posted := g.post(func() {
		if err := g.session.CaptureAcquired(att.Token, c, err); err != nil {
			g.log.Debug().Err(err).Str("item", att.ItemID).Msg("capture acquisition discarded")
			return
		}
		if c.Mode() == ModeManual {
			if err := g.shoot(att.ItemID); err != nil {
				g.log.Debug().Err(err).Str("item", att.ItemID).Msg("manual capture not started")
			}
		}
	})

	if !posted && c != nil {
		_ = c.Release()
	}
}

// Shoot takes a still from the held capture for itemID.
func (g *Game) Shoot(itemID string) error {
	return g.do(func() error { return g.shoot(itemID) })
}

func (g *Game) shoot(itemID string) error {
	req, err := g.session.StillRequest(itemID)
	if err != nil {
		return err
	}

	go func() {
		img, err := req.Capture.Still(req.Ctx)
		g.post(func() {
			if err := g.session.StillTaken(req, img, err); err != nil && !errors.Is(err, ErrNoActiveCapture) {
				g.log.Debug().Err(err).Str("item", req.ItemID).Msg("still discarded")
			}
		})
	}()

	return nil
}

// CompleteCapture records a still supplied by the caller.
func (g *Game) CompleteCapture(itemID string, img Image) error {
	return g.do(func() error { return g.session.CompleteCapture(itemID, img) })
}

func (g *Game) CancelCapture() error {
	return g.do(func() error {
		g.session.CancelCapture()
		return nil
	})
}

func (g *Game) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := g.query(func() {
		snap = g.session.Snapshot()
	})
	return snap, err
}

func (g *Game) Photo(itemID string) (Image, bool) {
	var (
		img Image
		ok  bool
	)
	_ = g.query(func() {
		img, ok = g.session.Photo(itemID)
	})
	return img, ok
}
