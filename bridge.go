/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/google/uuid"

	"github.com/Seednode/scavenger/hunt"
)

var (
	errDeviceGone    = errors.New("device disconnected")
	errPickCancelled = errors.New("file selection cancelled")
)

// BridgeRequest asks the connected device to do something with its camera
// or file chooser. The device answers with a ClientMessage carrying the
// same request_id.
type BridgeRequest struct {
	Type        string            `json:"type"` // camera_open, camera_frame, camera_close, file_prompt
	RequestID   string            `json:"request_id,omitempty"`
	StreamID    string            `json:"stream_id,omitempty"`
	Accept      string            `json:"accept,omitempty"`
	Constraints *hunt.Constraints `json:"constraints,omitempty"`
}

// deviceBridge exposes the browser's camera and file chooser to the game
// as hunt.MediaDevices and hunt.FilePicker.
type deviceBridge struct {
	hub *Hub

	mu      sync.Mutex
	pending map[string]chan ClientMessage
}

func newDeviceBridge(h *Hub) *deviceBridge {
	return &deviceBridge{
		hub:     h,
		pending: make(map[string]chan ClientMessage),
	}
}

// request sends req to the device and waits for the matching reply.
func (b *deviceBridge) request(ctx context.Context, req BridgeRequest) (ClientMessage, error) {
	req.RequestID = uuid.NewString()

	reply := make(chan ClientMessage, 1)

	b.mu.Lock()
	b.pending[req.RequestID] = reply
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.RequestID)
		b.mu.Unlock()
	}()

	if !b.hub.sendToDevice(req) {
		return ClientMessage{}, errDeviceGone
	}

	select {
	case msg := <-reply:
		if msg.Type == "device_gone" {
			return ClientMessage{}, errDeviceGone
		}
		return msg, nil
	case <-ctx.Done():
		return ClientMessage{}, ctx.Err()
	}
}

// resolve hands a device reply to whoever is waiting on it. Replies nobody
// is waiting for are dropped, and a camera granted after we stopped waiting
// is closed again.
func (b *deviceBridge) resolve(msg ClientMessage) bool {
	b.mu.Lock()
	reply, ok := b.pending[msg.RequestID]
	if ok {
		delete(b.pending, msg.RequestID)
	}
	b.mu.Unlock()

	if !ok {
		if msg.Type == "camera_opened" && msg.StreamID != "" {
			b.hub.sendToDevice(BridgeRequest{Type: "camera_close", StreamID: msg.StreamID})
		}
		return false
	}

	reply <- msg

	return true
}

// failAll wakes every waiting request with errDeviceGone.
func (b *deviceBridge) failAll() {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]chan ClientMessage)
	b.mu.Unlock()

	for _, reply := range pending {
		reply <- ClientMessage{Type: "device_gone"}
	}
}

func (b *deviceBridge) Open(ctx context.Context, c hunt.Constraints) (hunt.Stream, error) {
	streamID := uuid.NewString()

	msg, err := b.request(ctx, BridgeRequest{
		Type:        "camera_open",
		StreamID:    streamID,
		Constraints: &c,
	})
	if err != nil {
		if ctx.Err() != nil {
			// The device may still open the camera after we stopped waiting.
			b.hub.sendToDevice(BridgeRequest{Type: "camera_close", StreamID: streamID})
		}
		return nil, err
	}

	switch msg.Type {
	case "camera_opened":
		return &remoteStream{bridge: b, id: streamID}, nil
	case "camera_failed":
		return nil, fmt.Errorf("camera refused: %s", msg.Message)
	default:
		return nil, fmt.Errorf("unexpected reply %q to camera_open", msg.Type)
	}
}

func (b *deviceBridge) Pick(ctx context.Context, accept string) (hunt.File, error) {
	msg, err := b.request(ctx, BridgeRequest{
		Type:   "file_prompt",
		Accept: accept,
	})
	if err != nil {
		return hunt.File{}, err
	}

	switch msg.Type {
	case "file_picked":
		return hunt.File{Name: msg.Name, MIME: msg.MIME, Data: msg.Data}, nil
	case "file_cancelled":
		return hunt.File{}, errPickCancelled
	default:
		return hunt.File{}, fmt.Errorf("unexpected reply %q to file_prompt", msg.Type)
	}
}

// remoteStream is a camera stream held open on the device.
type remoteStream struct {
	bridge *deviceBridge
	id     string
	once   sync.Once
}

func (s *remoteStream) Frame(ctx context.Context) (image.Image, error) {
	msg, err := s.bridge.request(ctx, BridgeRequest{
		Type:     "camera_frame",
		StreamID: s.id,
	})
	if err != nil {
		return nil, err
	}

	if msg.Type != "frame" {
		return nil, fmt.Errorf("unexpected reply %q to camera_frame", msg.Type)
	}

	frame, _, err := image.Decode(bytes.NewReader(msg.Data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	return frame, nil
}

func (s *remoteStream) Stop() error {
	s.once.Do(func() {
		s.bridge.hub.sendToDevice(BridgeRequest{Type: "camera_close", StreamID: s.id})
	})
	return nil
}
