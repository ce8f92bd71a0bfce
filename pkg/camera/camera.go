// Package camera provides frame acquisition for capture sessions.
package camera

import (
	"errors"
	"image"
	"time"
)

// Frame represents a single camera frame.
type Frame struct {
	Img       image.Image
	Timestamp time.Time
}

// Camera defines the interface for frame sources. A capture session
// owns the camera exclusively from Open until Close.
type Camera interface {
	Open(device string) error
	Capture() (Frame, error)
	Close() error
}

// ErrCameraNotFound is returned when the camera device is not found.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrCameraNotOpen is returned when capturing from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")
