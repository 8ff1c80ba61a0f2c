/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/scavenger/hunt"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := range 4 {
		for y := range 3 {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

// newBridgeHub returns a hub whose controlling device is a bare send queue.
func newBridgeHub(t *testing.T) (*Hub, *Client) {
	t.Helper()

	h := newHub(validConfig(), "AbCd1234", newMetrics())
	t.Cleanup(h.game.Close)

	c := &Client{send: make(chan any, 8), deviceID: "phone"}
	h.client = c

	return h, c
}

func request(t *testing.T, c *Client) BridgeRequest {
	t.Helper()

	for {
		select {
		case msg := <-c.send:
			if req, ok := msg.(BridgeRequest); ok {
				return req
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no bridge request")
		}
	}
}

func TestBridge_Pick(t *testing.T) {
	h, c := newBridgeHub(t)

	type result struct {
		f   hunt.File
		err error
	}
	done := make(chan result, 1)

	go func() {
		f, err := h.bridge.Pick(context.Background(), hunt.ImageAccept)
		done <- result{f, err}
	}()

	req := request(t, c)
	assert.Equal(t, "file_prompt", req.Type)
	assert.Equal(t, hunt.ImageAccept, req.Accept)

	assert.True(t, h.bridge.resolve(ClientMessage{
		Type:      "file_picked",
		RequestID: req.RequestID,
		Name:      "x.png",
		MIME:      "image/png",
		Data:      []byte{1, 2, 3},
	}))

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "x.png", res.f.Name)
	assert.Equal(t, []byte{1, 2, 3}, res.f.Data)

	// A second reply for the same request has nobody to go to.
	assert.False(t, h.bridge.resolve(ClientMessage{Type: "file_picked", RequestID: req.RequestID}))
}

func TestBridge_PickCancelled(t *testing.T) {
	h, c := newBridgeHub(t)

	errc := make(chan error, 1)
	go func() {
		_, err := h.bridge.Pick(context.Background(), hunt.ImageAccept)
		errc <- err
	}()

	req := request(t, c)
	h.bridge.resolve(ClientMessage{Type: "file_cancelled", RequestID: req.RequestID})

	assert.ErrorIs(t, <-errc, errPickCancelled)
}

func TestBridge_CameraFrame(t *testing.T) {
	h, c := newBridgeHub(t)

	streams := make(chan hunt.Stream, 1)
	go func() {
		s, err := h.bridge.Open(context.Background(), hunt.DefaultConstraints)
		assert.NoError(t, err)
		streams <- s
	}()

	req := request(t, c)
	assert.Equal(t, "camera_open", req.Type)
	require.NotNil(t, req.Constraints)
	assert.Equal(t, "environment", req.Constraints.FacingMode)
	h.bridge.resolve(ClientMessage{Type: "camera_opened", RequestID: req.RequestID, Width: 4, Height: 3})

	stream := <-streams
	require.NotNil(t, stream)

	frames := make(chan image.Image, 1)
	go func() {
		img, err := stream.Frame(context.Background())
		assert.NoError(t, err)
		frames <- img
	}()

	req = request(t, c)
	assert.Equal(t, "camera_frame", req.Type)
	h.bridge.resolve(ClientMessage{Type: "frame", RequestID: req.RequestID, MIME: "image/png", Data: tinyPNG(t)})

	img := <-frames
	require.NotNil(t, img)
	assert.Equal(t, 4, img.Bounds().Dx())

	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Stop())

	req = request(t, c)
	assert.Equal(t, "camera_close", req.Type)

	select {
	case msg := <-c.send:
		t.Fatalf("unexpected second message %#v", msg)
	default:
	}
}

func TestBridge_CameraRefused(t *testing.T) {
	h, c := newBridgeHub(t)

	errc := make(chan error, 1)
	go func() {
		_, err := h.bridge.Open(context.Background(), hunt.DefaultConstraints)
		errc <- err
	}()

	req := request(t, c)
	h.bridge.resolve(ClientMessage{Type: "camera_failed", RequestID: req.RequestID, Message: "NotAllowedError"})

	err := <-errc
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotAllowedError")
}

func TestBridge_FailAll(t *testing.T) {
	h, c := newBridgeHub(t)

	errc := make(chan error, 1)
	go func() {
		_, err := h.bridge.Pick(context.Background(), hunt.ImageAccept)
		errc <- err
	}()

	request(t, c)
	h.bridge.failAll()

	assert.ErrorIs(t, <-errc, errDeviceGone)
}

func TestBridge_NoDevice(t *testing.T) {
	h, _ := newBridgeHub(t)
	h.client = nil

	_, err := h.bridge.Pick(context.Background(), hunt.ImageAccept)
	assert.ErrorIs(t, err, errDeviceGone)
}

func TestBridge_ContextCancelled(t *testing.T) {
	h, c := newBridgeHub(t)

	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := h.bridge.Open(ctx, hunt.DefaultConstraints)
		errc <- err
	}()

	req := request(t, c)
	assert.Equal(t, "camera_open", req.Type)
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)

	closing := request(t, c)
	assert.Equal(t, "camera_close", closing.Type)
	assert.Equal(t, req.StreamID, closing.StreamID)
}

func TestBridge_LateCameraGrantIsClosed(t *testing.T) {
	h, c := newBridgeHub(t)

	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := h.bridge.Open(ctx, hunt.DefaultConstraints)
		errc <- err
	}()

	open := request(t, c)
	require.Equal(t, "camera_open", open.Type)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	closing := request(t, c)
	require.Equal(t, "camera_close", closing.Type)

	// The device finishes opening after the close was already sent.
	assert.False(t, h.bridge.resolve(ClientMessage{
		Type:      "camera_opened",
		RequestID: open.RequestID,
		StreamID:  open.StreamID,
	}))

	again := request(t, c)
	assert.Equal(t, "camera_close", again.Type)
	assert.Equal(t, open.StreamID, again.StreamID)
}

func TestBridge_UnclaimedRepliesSendNothing(t *testing.T) {
	h, c := newBridgeHub(t)

	assert.False(t, h.bridge.resolve(ClientMessage{Type: "frame", RequestID: "gone"}))
	assert.False(t, h.bridge.resolve(ClientMessage{Type: "camera_opened", RequestID: "gone"}))

	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %#v", msg)
	default:
	}
}

func TestBridge_CameraStillIsEncodedOnce(t *testing.T) {
	h, c := newBridgeHub(t)

	type result struct {
		img hunt.Image
		err error
	}
	done := make(chan result, 1)

	go func() {
		capture, err := hunt.CameraSource{Devices: h.bridge}.Acquire(context.Background())
		if err != nil {
			done <- result{err: err}
			return
		}
		defer capture.Release()

		img, err := capture.Still(context.Background())
		done <- result{img, err}
	}()

	req := request(t, c)
	require.Equal(t, "camera_open", req.Type)
	h.bridge.resolve(ClientMessage{Type: "camera_opened", RequestID: req.RequestID, StreamID: req.StreamID})

	req = request(t, c)
	require.Equal(t, "camera_frame", req.Type)
	h.bridge.resolve(ClientMessage{Type: "frame", RequestID: req.RequestID, MIME: "image/png", Data: tinyPNG(t)})

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "image/jpeg", res.img.MIME)
	assert.Equal(t, 4, res.img.Width)
	assert.Equal(t, 3, res.img.Height)
	assert.True(t, bytes.HasPrefix(res.img.Data, []byte{0xFF, 0xD8}))

	req = request(t, c)
	assert.Equal(t, "camera_close", req.Type)
}

func TestHub_SlowDeviceFailsPendingRequests(t *testing.T) {
	h, _ := newBridgeHub(t)

	c := &Client{send: make(chan any, 1), deviceID: "phone"}
	h.mu.Lock()
	h.client = c
	h.mu.Unlock()

	errc := make(chan error, 1)
	go func() {
		_, err := h.bridge.Pick(context.Background(), hunt.ImageAccept)
		errc <- err
	}()

	require.Eventually(t, func() bool { return len(c.send) == 1 }, 5*time.Second, 10*time.Millisecond)

	// The prompt is still unread, so the next message overflows the queue.
	h.publish(hunt.Snapshot{Phase: hunt.PhaseSetup})

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, errDeviceGone)
	case <-time.After(5 * time.Second):
		t.Fatal("pending request was not failed")
	}
	assert.False(t, h.connected())
}
