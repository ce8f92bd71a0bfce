package camera

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ekaya/facegate/pkg/imaging"
	"github.com/ekaya/facegate/pkg/logging"
)

// DirCamera replays image files from a directory in lexical order, one
// per Capture call. It is the deterministic frame source used by the
// CLI demo mode and by tests; the last frame repeats once the
// directory is exhausted, matching a camera that keeps returning the
// current scene.
type DirCamera struct {
	frames []string
	next   int
	open   bool

	// Loop restarts at the first frame instead of repeating the last.
	Loop bool
}

// NewDirCamera creates a DirCamera. Open expects the directory path as
// the device argument.
func NewDirCamera() *DirCamera {
	return &DirCamera{}
}

// Open scans the directory for image files.
func (c *DirCamera) Open(device string) error {
	entries, err := os.ReadDir(device)
	if err != nil {
		return ErrCameraNotFound
	}

	c.frames = c.frames[:0]
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isImageFile(entry.Name()) {
			c.frames = append(c.frames, filepath.Join(device, entry.Name()))
		}
	}
	sort.Strings(c.frames)

	if len(c.frames) == 0 {
		return ErrCameraNotFound
	}

	c.next = 0
	c.open = true
	logging.Component("camera").Debugf("opened frame directory %s (%d frames)", device, len(c.frames))
	return nil
}

// Capture returns the next frame in sequence.
func (c *DirCamera) Capture() (Frame, error) {
	if !c.open {
		return Frame{}, ErrCameraNotOpen
	}

	if c.next >= len(c.frames) {
		if c.Loop {
			c.next = 0
		} else {
			c.next = len(c.frames) - 1
		}
	}

	img, err := imaging.Load(c.frames[c.next])
	if err != nil {
		return Frame{}, ErrNoFrame
	}
	c.next++

	return Frame{Img: img, Timestamp: time.Now()}, nil
}

// Close releases the frame source.
func (c *DirCamera) Close() error {
	c.open = false
	c.frames = nil
	return nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}
