/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Mode names the capture variant that produced a still.
type Mode string

const (
	ModeCamera Mode = "camera"
	ModeManual Mode = "manual"
	// ModeDirect marks payloads handed straight to CompleteCapture by the
	// client without going through a held Capture.
	ModeDirect Mode = "direct"
)

const (
	ImageAccept = "image/*"
	JPEGQuality = 80
)

// Image is a captured still.
type Image struct {
	MIME   string
	Width  int
	Height int
	Data   []byte
}

// Capture is a held capture resource. Release must be idempotent.
type Capture interface {
	Mode() Mode
	Still(ctx context.Context) (Image, error)
	Release() error
}

// Source acquires a Capture. Acquire may block until the environment grants
// or refuses access.
type Source interface {
	Acquire(ctx context.Context) (Capture, error)
}

// Constraints are the preferred stream parameters sent to the device.
type Constraints struct {
	FacingMode string `json:"facing_mode"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

var DefaultConstraints = Constraints{FacingMode: "environment", Width: 1280, Height: 720}

// MediaDevices is the environment's camera capability.
type MediaDevices interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an exclusive live video handle.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Stop() error
}

// File is what a file chooser hands back.
type File struct {
	Name string
	MIME string
	Data []byte
}

// FilePicker is the environment's single-file chooser.
type FilePicker interface {
	Pick(ctx context.Context, accept string) (File, error)
}

// CameraSource captures stills from a live stream.
type CameraSource struct {
	Devices     MediaDevices
	Constraints Constraints
}

func (s CameraSource) Acquire(ctx context.Context) (Capture, error) {
	c := s.Constraints
	if c == (Constraints{}) {
		c = DefaultConstraints
	}

	stream, err := s.Devices.Open(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}

	// The caller may have given up while the device was opening.
	if err := ctx.Err(); err != nil {
		_ = stream.Stop()
		return nil, err
	}

	return &cameraCapture{stream: stream}, nil
}

type cameraCapture struct {
	mu       sync.Mutex
	stream   Stream
	released bool
}

func (c *cameraCapture) Mode() Mode {
	return ModeCamera
}

func (c *cameraCapture) Still(ctx context.Context) (Image, error) {
	c.mu.Lock()
	stream, released := c.stream, c.released
	c.mu.Unlock()

	if released {
		return Image{}, ErrCaptureNotReady
	}

	frame, err := stream.Frame(ctx)
	if err != nil {
		return Image{}, fmt.Errorf("grab frame: %w", err)
	}

	return encodeFrame(frame)
}

func (c *cameraCapture) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil
	}
	c.released = true

	return c.stream.Stop()
}

// encodeFrame renders a frame at its own resolution as JPEG.
func encodeFrame(frame image.Image) (Image, error) {
	var buf bytes.Buffer

	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Image{}, fmt.Errorf("encode frame: %w", err)
	}

	b := frame.Bounds()

	return Image{
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
		Data:   buf.Bytes(),
	}, nil
}

// ManualSource captures by asking the user to choose an image file.
type ManualSource struct {
	Picker FilePicker
}

func (s ManualSource) Acquire(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return manualCapture{picker: s.Picker}, nil
}

// manualCapture holds nothing, so Release has nothing to free.
type manualCapture struct {
	picker FilePicker
}

func (manualCapture) Mode() Mode {
	return ModeManual
}

func (c manualCapture) Still(ctx context.Context) (Image, error) {
	f, err := c.picker.Pick(ctx, ImageAccept)
	if err != nil {
		return Image{}, err
	}
	return ImageFromFile(f)
}

func (manualCapture) Release() error {
	return nil
}

// ImageFromFile checks that f holds an image and wraps it as a still.
func ImageFromFile(f File) (Image, error) {
	mime := f.MIME
	if mime == "" {
		mime = http.DetectContentType(f.Data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return Image{}, fmt.Errorf("%w: %s", ErrNotImage, mime)
	}

	img := Image{MIME: mime, Data: f.Data}

	// Dimensions are informational; formats we cannot decode keep zero.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
	}

	return img, nil
}

// FallbackSource tries Primary and, on any failure other than the caller
// giving up, acquires from Fallback instead.
type FallbackSource struct {
	Primary    Source
	Fallback   Source
	Logger     zerolog.Logger
	OnFallback func(err error)
}

func (s FallbackSource) Acquire(ctx context.Context) (Capture, error) {
	c, err := s.Primary.Acquire(ctx)
	if err == nil {
		return c, nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil, err
	}

	s.Logger.Warn().Err(err).Msg("camera unavailable, falling back to file selection")
	if s.OnFallback != nil {
		s.OnFallback(err)
	}

	return s.Fallback.Acquire(ctx)
}
