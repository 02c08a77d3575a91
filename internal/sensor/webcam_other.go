//go:build !linux

package sensor

import "errors"

// OpenWebcam is only available on Linux (V4L2)
func OpenWebcam(path string, width, height int) (Camera, error) {
	return nil, errors.New("webcam driver requires linux (V4L2)")
}
