package camera

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ekaya/facegate/pkg/imaging"
)

func writeTestFrame(t *testing.T, dir, name string, shade uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: shade})
		}
	}
	if err := imaging.SavePNG(filepath.Join(dir, name), img); err != nil {
		t.Fatalf("failed to write frame %s: %v", name, err)
	}
}

func TestDirCamera_Open_MissingDir(t *testing.T) {
	cam := NewDirCamera()
	if err := cam.Open("/nonexistent/frames"); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound, got %v", err)
	}
}

func TestDirCamera_Open_EmptyDir(t *testing.T) {
	cam := NewDirCamera()
	if err := cam.Open(t.TempDir()); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound for empty directory, got %v", err)
	}
}

func TestDirCamera_CaptureBeforeOpen(t *testing.T) {
	cam := NewDirCamera()
	if _, err := cam.Capture(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen, got %v", err)
	}
}

func TestDirCamera_CaptureSequence(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "frame_001.png", 10)
	writeTestFrame(t, dir, "frame_002.png", 20)
	writeTestFrame(t, dir, "frame_003.png", 30)
	// Non-image files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cam := NewDirCamera()
	if err := cam.Open(dir); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer cam.Close()

	for i, want := range []uint8{10, 20, 30} {
		frame, err := cam.Capture()
		if err != nil {
			t.Fatalf("Capture %d failed: %v", i, err)
		}
		got := imaging.Grayscale(frame.Img).GrayAt(0, 0).Y
		if got != want {
			t.Errorf("frame %d: expected shade %d, got %d", i, want, got)
		}
		if frame.Timestamp.IsZero() {
			t.Errorf("frame %d: missing timestamp", i)
		}
	}

	// Exhausted source repeats the final frame.
	frame, err := cam.Capture()
	if err != nil {
		t.Fatalf("Capture after exhaustion failed: %v", err)
	}
	if got := imaging.Grayscale(frame.Img).GrayAt(0, 0).Y; got != 30 {
		t.Errorf("expected last frame repeated (30), got %d", got)
	}
}

func TestDirCamera_Loop(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "a.png", 10)
	writeTestFrame(t, dir, "b.png", 20)

	cam := NewDirCamera()
	cam.Loop = true
	if err := cam.Open(dir); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer cam.Close()

	shades := make([]uint8, 0, 4)
	for i := 0; i < 4; i++ {
		frame, err := cam.Capture()
		if err != nil {
			t.Fatalf("Capture %d failed: %v", i, err)
		}
		shades = append(shades, imaging.Grayscale(frame.Img).GrayAt(0, 0).Y)
	}

	want := []uint8{10, 20, 10, 20}
	for i := range want {
		if shades[i] != want[i] {
			t.Errorf("frame %d: expected %d, got %d", i, want[i], shades[i])
		}
	}
}

func TestDirCamera_Close(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "a.png", 10)

	cam := NewDirCamera()
	if err := cam.Open(dir); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := cam.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := cam.Capture(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen after Close, got %v", err)
	}
}

func TestDirCamera_CorruptFrame(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	cam := NewDirCamera()
	if err := cam.Open(dir); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer cam.Close()

	if _, err := cam.Capture(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame for corrupt frame, got %v", err)
	}
}
