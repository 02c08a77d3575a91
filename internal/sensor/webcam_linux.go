//go:build linux

package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blackjack/webcam"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// formatMJPG is the V4L2 fourcc for Motion-JPEG
const formatMJPG = webcam.PixelFormat(uint32('M') | uint32('J')<<8 | uint32('P')<<16 | uint32('G')<<24)

// v4l2Controls maps settings onto lowercased V4L2 control names. The first
// name the device exposes wins.
var v4l2Controls = map[Setting][]string{
	Brightness: {"brightness"},
	Contrast:   {"contrast"},
	Saturation: {"saturation"},
	Sharpness:  {"sharpness"},
	AWB:        {"white balance, automatic", "white balance temperature, auto"},
	WBMode:     {"white balance temperature"},
	AGCGain:    {"gain"},
	AECValue:   {"exposure time, absolute", "exposure (absolute)", "exposure_absolute"},
	AEC:        {"auto exposure", "exposure, auto"},
	HMirror:    {"horizontal flip"},
	VFlip:      {"vertical flip"},
}

// Webcam captures MJPEG frames from a V4L2 device
type Webcam struct {
	mu       sync.Mutex
	path     string
	dev      *webcam.Webcam
	controls map[string]webcam.ControlID
}

// OpenWebcam opens path, negotiates MJPEG at the requested size and starts streaming
func OpenWebcam(path string, width, height int) (*Webcam, error) {
	dev, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if _, ok := dev.GetSupportedFormats()[formatMJPG]; !ok {
		dev.Close()
		return nil, fmt.Errorf("%s does not support MJPEG capture", path)
	}

	_, w, h, err := dev.SetImageFormat(formatMJPG, uint32(width), uint32(height))
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to set image format: %w", err)
	}

	if err := dev.SetBufferCount(2); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to set buffer count: %w", err)
	}
	if err := dev.StartStreaming(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to start streaming: %w", err)
	}

	c := &Webcam{
		path:     path,
		dev:      dev,
		controls: make(map[string]webcam.ControlID),
	}
	for id, ctrl := range dev.GetControls() {
		c.controls[strings.ToLower(ctrl.Name)] = id
	}

	logger.WithComponent("sensor").Info().
		Str("device", path).
		Uint32("width", w).
		Uint32("height", h).
		Int("controls", len(c.controls)).
		Msg("Webcam streaming")
	return c, nil
}

// Name returns the driver name
func (c *Webcam) Name() string {
	return "webcam:" + c.path
}

// Capture waits for the next dequeued buffer and lends it to fn. The buffer
// is requeued to the driver once fn returns.
func (c *Webcam) Capture(ctx context.Context, fn func(jpeg []byte) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.dev.WaitForFrame(1)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed waiting for frame: %w", err)
		}

		buf, index, err := c.dev.GetFrame()
		if err != nil {
			return fmt.Errorf("failed to dequeue frame: %w", err)
		}
		if len(buf) == 0 {
			c.dev.ReleaseFrame(index)
			continue
		}

		err = fn(buf)
		if rerr := c.dev.ReleaseFrame(index); rerr != nil && err == nil {
			err = fmt.Errorf("failed to requeue frame: %w", rerr)
		}
		return err
	}
}

// Set writes the V4L2 control backing setting
func (c *Webcam) Set(setting Setting, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range v4l2Controls[setting] {
		if id, ok := c.controls[name]; ok {
			return c.dev.SetControl(id, int32(value))
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, setting)
}

// Close stops streaming and releases the device
func (c *Webcam) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.dev.StopStreaming(); err != nil {
		logger.WithComponent("sensor").Warn().Err(err).Msg("Failed to stop webcam streaming")
	}
	return c.dev.Close()
}
