/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	mode Mode
	img  Image
	err  error

	mu       sync.Mutex
	releases int
}

func (c *fakeCapture) Mode() Mode {
	return c.mode
}

func (c *fakeCapture) Still(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	return c.img, c.err
}

func (c *fakeCapture) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
	return nil
}

func (c *fakeCapture) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

// fakeSource hands out captures in order. When gate is set, each Acquire
// waits for a value on it before returning.
type fakeSource struct {
	mu       sync.Mutex
	captures []*fakeCapture
	err      error
	calls    int
	gate     chan struct{}
}

func (s *fakeSource) Acquire(ctx context.Context) (Capture, error) {
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++

	if s.err != nil {
		return nil, s.err
	}
	if i >= len(s.captures) {
		return nil, errors.New("no capture left")
	}
	return s.captures[i], nil
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeStream struct {
	frame image.Image
	stops int
}

func (s *fakeStream) Frame(context.Context) (image.Image, error) {
	return s.frame, nil
}

func (s *fakeStream) Stop() error {
	s.stops++
	return nil
}

type fakeDevices struct {
	stream *fakeStream
	err    error
	got    Constraints
}

func (d *fakeDevices) Open(_ context.Context, c Constraints) (Stream, error) {
	d.got = c
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type fakePicker struct {
	file   File
	err    error
	accept string
}

func (p *fakePicker) Pick(_ context.Context, accept string) (File, error) {
	p.accept = accept
	return p.file, p.err
}

func solidFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 40, G: 160, B: 80, A: 255})
		}
	}
	return img
}

func testCatalog(n int) Catalog {
	c := Catalog{}
	for i := 1; i <= n; i++ {
		id := string(rune('a' + i - 1))
		c.Items = append(c.Items, Entry{ID: id, Name: "Item " + id, ReferenceImage: "/images/" + id + ".jpg", Points: 25})
	}
	return c
}

var testEpoch = time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T) (*Session, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)
	s := NewSession(Options{
		Catalog:  testCatalog(6),
		Duration: 30 * time.Minute,
		Clock:    clock,
		Logger:   zerolog.Nop(),
	})
	return s, clock
}

// playingSession returns a session already in the playing phase.
func playingSession(t *testing.T) (*Session, *clockwork.FakeClock) {
	t.Helper()
	s, clock := newTestSession(t)

	require.NoError(t, s.SetTeamName("Otters"))
	require.NoError(t, s.SetMember(0, "Ada"))
	require.NoError(t, s.AddMember())
	require.NoError(t, s.SetMember(1, "Grace"))
	require.NoError(t, s.AddMember())
	require.NoError(t, s.SetMember(2, "Linus"))
	require.NoError(t, s.AdvanceToRules())
	for _, r := range Rules() {
		require.NoError(t, s.AcknowledgeRule(r.ID, true))
	}
	require.NoError(t, s.StartGame())

	return s, clock
}
