// Package sensor defines the camera driver contract consumed by the streaming
// pipeline and the HTTP handlers, along with the concrete drivers.
//
// A driver hands out frames as borrowed JPEG buffers: the bytes passed to a
// Capture callback are only valid until the callback returns, so consumers
// that keep a frame must copy it.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

var (
	// ErrUnsupported is returned by Set when the driver has no control for the setting
	ErrUnsupported = errors.New("sensor: setting not supported by driver")

	// ErrUnknownDriver is returned by Open for an unrecognized driver name
	ErrUnknownDriver = errors.New("sensor: unknown driver")
)

// Camera is an opened sensor driver
type Camera interface {
	// Name returns a human-readable name for this driver
	Name() string

	// Capture grabs one JPEG frame and passes it to fn. The slice is owned
	// by the driver and must not be retained after fn returns.
	Capture(ctx context.Context, fn func(jpeg []byte) error) error

	// Set applies a single sensor setting. Range checking is up to the driver.
	Set(setting Setting, value int) error

	// Close releases the device
	Close() error
}

// Setting names a tunable sensor parameter. The string value is the query
// parameter name accepted by the control endpoint.
type Setting string

const (
	FrameSize     Setting = "framesize"
	Quality       Setting = "quality"
	Brightness    Setting = "brightness"
	Contrast      Setting = "contrast"
	Saturation    Setting = "saturation"
	Sharpness     Setting = "sharpness"
	SpecialEffect Setting = "special_effect"
	WBMode        Setting = "wb_mode"
	AWB           Setting = "awb"
	AWBGain       Setting = "awb_gain"
	AEC           Setting = "aec"
	AEC2          Setting = "aec2"
	AELevel       Setting = "ae_level"
	AECValue      Setting = "aec_value"
	AGC           Setting = "agc"
	AGCGain       Setting = "agc_gain"
	GainCeiling   Setting = "gainceiling"
	BPC           Setting = "bpc"
	WPC           Setting = "wpc"
	RawGMA        Setting = "raw_gma"
	Lenc          Setting = "lenc"
	HMirror       Setting = "hmirror"
	VFlip         Setting = "vflip"
	DCW           Setting = "dcw"
	Colorbar      Setting = "colorbar"
)

var allSettings = []Setting{
	FrameSize, Quality, Brightness, Contrast, Saturation, Sharpness,
	SpecialEffect, WBMode, AWB, AWBGain, AEC, AEC2, AELevel, AECValue,
	AGC, AGCGain, GainCeiling, BPC, WPC, RawGMA, Lenc, HMirror, VFlip,
	DCW, Colorbar,
}

// Settings returns every setting recognized by the control endpoint, in a
// stable order.
func Settings() []Setting {
	out := make([]Setting, len(allSettings))
	copy(out, allSettings)
	return out
}

// Open creates the driver selected by cfg.Driver
func Open(cfg config.SensorConfig) (Camera, error) {
	log := logger.WithComponent("sensor")

	var (
		cam Camera
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "testpattern":
		cam = NewTestPattern(cfg.Width, cfg.Height, cfg.Quality)
	case "webcam":
		cam, err = OpenWebcam(cfg.Device, cfg.Width, cfg.Height)
	case "x11":
		cam, err = OpenX11(cfg.Width, cfg.Height, cfg.Quality)
	default:
		return nil, fmt.Errorf("%w: %q (use testpattern, webcam or x11)", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s driver: %w", cfg.Driver, err)
	}

	log.Info().
		Str("driver", cam.Name()).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Msg("Sensor opened")
	return cam, nil
}
