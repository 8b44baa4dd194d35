// Package camera provides camera access and frame capture.
package camera

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"
)

// Frame represents a single camera frame.
type Frame struct {
	Image     image.Image
	Width     int
	Height    int
	Timestamp time.Time
}

// DeviceInfo contains information about a camera device.
type DeviceInfo struct {
	Path   string
	Index  int
	Width  int
	Height int
	FPS    float64
}

// Camera defines the interface for camera operations.
type Camera interface {
	Capture() (Frame, error)
	Info() DeviceInfo
	Close() error
}

// Options configures a capture device.
type Options struct {
	Device string
	Width  int
	Height int
	FPS    int
}

// ErrCameraNotFound is returned when the camera device is not found.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrCameraNotOpen is returned when trying to capture from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")

// ParseDevice interprets a device setting. Numbers and /dev/videoN paths
// resolve to a capture index; anything else (a file or stream URL) is
// returned as a path with index -1.
func ParseDevice(device string) (index int, path string, err error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return -1, "", fmt.Errorf("%w: empty device", ErrCameraNotFound)
	}
	if n, err := strconv.Atoi(device); err == nil {
		if n < 0 {
			return -1, "", fmt.Errorf("%w: negative index %d", ErrCameraNotFound, n)
		}
		return n, device, nil
	}
	if rest, ok := strings.CutPrefix(device, "/dev/video"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 0 {
			return n, device, nil
		}
	}
	return -1, device, nil
}
