package session

import (
	"image"
	"time"

	"github.com/ekaya/facegate/pkg/camera"
)

// MockCamera implements Camera interface for testing
type MockCamera struct {
	OpenFunc    func(device string) error
	CaptureFunc func() (camera.Frame, error)
	CloseFunc   func() error

	OpenCalls  int
	CloseCalls int
}

func (m *MockCamera) Open(device string) error {
	m.OpenCalls++
	if m.OpenFunc != nil {
		return m.OpenFunc(device)
	}
	return nil
}

func (m *MockCamera) Capture() (camera.Frame, error) {
	if m.CaptureFunc != nil {
		return m.CaptureFunc()
	}
	return camera.Frame{Img: testFrame(), Timestamp: time.Now()}, nil
}

func (m *MockCamera) Close() error {
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockDetector implements Detector interface for testing
type MockDetector struct {
	DetectFunc func(gray *image.Gray) []image.Rectangle
}

func (m *MockDetector) Detect(gray *image.Gray) []image.Rectangle {
	if m.DetectFunc != nil {
		return m.DetectFunc(gray)
	}
	return oneFace()
}

// MockRecognizer implements Recognizer interface for testing
type MockRecognizer struct {
	ReadyFunc   func() bool
	PredictFunc func(face *image.Gray) (int, float64, error)
	NameForFunc func(id int) (string, bool)

	PredictCalls int
}

func (m *MockRecognizer) Ready() bool {
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return true
}

func (m *MockRecognizer) Predict(face *image.Gray) (int, float64, error) {
	m.PredictCalls++
	if m.PredictFunc != nil {
		return m.PredictFunc(face)
	}
	return 1, 30, nil
}

func (m *MockRecognizer) NameFor(id int) (string, bool) {
	if m.NameForFunc != nil {
		return m.NameForFunc(id)
	}
	return "Test_User", true
}

// MockStore implements SampleStore interface for testing
type MockStore struct {
	StoreSampleFunc func(name string, img *image.Gray) (string, error)

	StoreCalls int
}

func (m *MockStore) StoreSample(name string, img *image.Gray) (string, error) {
	m.StoreCalls++
	if m.StoreSampleFunc != nil {
		return m.StoreSampleFunc(name, img)
	}
	return "/tmp/sample.png", nil
}

// RecordingSink records every callback a session delivers. Read it
// only after the session's Done channel has closed.
type RecordingSink struct {
	Progress     []int
	Enrolled     int
	VerifiedName string
	VerifiedAt   float64
	Verified     int
	Failed       int
	Cancelled    int
	Errors       []string
}

func (r *RecordingSink) OnSampleProgress(count, required int) {
	r.Progress = append(r.Progress, count)
}

func (r *RecordingSink) OnEnrollmentSucceeded() { r.Enrolled++ }

func (r *RecordingSink) OnVerificationSucceeded(name string, score float64) {
	r.Verified++
	r.VerifiedName = name
	r.VerifiedAt = score
}

func (r *RecordingSink) OnVerificationFailed() { r.Failed++ }

func (r *RecordingSink) OnCancelled() { r.Cancelled++ }

func (r *RecordingSink) OnError(reason string) {
	r.Errors = append(r.Errors, reason)
}

// Terminals counts how many terminal callbacks fired; every session
// must deliver exactly one.
func (r *RecordingSink) Terminals() int {
	return r.Enrolled + r.Verified + r.Failed + r.Cancelled + len(r.Errors)
}

func testFrame() image.Image {
	return image.NewGray(image.Rect(0, 0, 120, 120))
}

func oneFace() []image.Rectangle {
	return []image.Rectangle{image.Rect(20, 20, 100, 100)}
}

// testOptions returns tiny durations so sessions finish in
// microseconds of real time.
func testOptions() Options {
	return Options{
		Device:              "/dev/video9",
		PollInterval:        time.Millisecond,
		WarmupDelay:         0,
		SettleDelay:         0,
		RequiredSamples:     5,
		ConfidenceThreshold: 65,
	}
}
