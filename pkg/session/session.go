// Package session drives one enrollment or verification run from
// camera acquisition to a single terminal outcome. The session owns
// the camera exclusively while it runs, polls frames on a fixed
// cadence, applies the zero/one/many face policy per frame, and
// reports exactly one terminal event to its sink.
package session

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ekaya/facegate/pkg/camera"
	"github.com/ekaya/facegate/pkg/imaging"
	"github.com/ekaya/facegate/pkg/logging"
)

// Mode selects what a capture session does with an accepted face.
type Mode int

const (
	// ModeEnroll stores cropped samples for a target identity.
	ModeEnroll Mode = iota
	// ModeVerify scores the first accepted face against the model.
	ModeVerify
)

func (m Mode) String() string {
	switch m {
	case ModeEnroll:
		return "enroll"
	case ModeVerify:
		return "verify"
	}
	return "unknown"
}

// State is the capture session lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateSampling
	StateDeciding
	StateSucceeded
	StateFailed
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateSampling:
		return "sampling"
	case StateDeciding:
		return "deciding"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Terminal reports whether the state is an end state.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateErrored:
		return true
	}
	return false
}

// Camera is the frame source a session acquires and releases.
type Camera interface {
	Open(device string) error
	Capture() (camera.Frame, error)
	Close() error
}

// Detector finds face bounding boxes in a grayscale frame.
type Detector interface {
	Detect(gray *image.Gray) []image.Rectangle
}

// Recognizer scores a cropped face against the trained model.
type Recognizer interface {
	Ready() bool
	Predict(face *image.Gray) (id int, score float64, err error)
	NameFor(id int) (string, bool)
}

// SampleStore persists enrollment samples.
type SampleStore interface {
	StoreSample(name string, img *image.Gray) (string, error)
}

// Options are the injected session tunables.
type Options struct {
	Device              string
	PollInterval        time.Duration
	WarmupDelay         time.Duration
	SettleDelay         time.Duration
	RequiredSamples     int
	ConfidenceThreshold float64
}

// DefaultOptions returns the standard cadence and thresholds.
func DefaultOptions() Options {
	return Options{
		Device:              "/dev/video0",
		PollInterval:        50 * time.Millisecond,
		WarmupDelay:         time.Second,
		SettleDelay:         2 * time.Second,
		RequiredSamples:     5,
		ConfidenceThreshold: 65,
	}
}

// Session is one capture run. Create it with NewEnrollment or
// NewVerification and drive it with Run; it is not reusable.
type Session struct {
	mode       Mode
	identity   string
	opts       Options
	camera     Camera
	detector   Detector
	recognizer Recognizer
	store      SampleStore
	sink       EventSink
	log        *logrus.Entry

	state     atomic.Int32
	cancelled atomic.Bool
	samples   int
	decided   bool
	signaled  bool
	done      chan struct{}
}

// NewEnrollment creates a session that captures opts.RequiredSamples
// samples for the target identity.
func NewEnrollment(identity string, cam Camera, det Detector, store SampleStore, sink EventSink, opts Options) *Session {
	s := newSession(ModeEnroll, cam, det, sink, opts)
	s.identity = identity
	s.store = store
	return s
}

// NewVerification creates a session that scores the first accepted
// face; the identity is discovered, not supplied.
func NewVerification(cam Camera, det Detector, rec Recognizer, sink EventSink, opts Options) *Session {
	s := newSession(ModeVerify, cam, det, sink, opts)
	s.recognizer = rec
	return s
}

func newSession(mode Mode, cam Camera, det Detector, sink EventSink, opts Options) *Session {
	return &Session{
		mode:     mode,
		camera:   cam,
		detector: det,
		sink:     sink,
		opts:     opts,
		log:      logging.Component("session").WithField("mode", mode.String()),
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Samples returns the number of accepted enrollment samples so far.
// The count is preserved even when the session errors mid-run.
func (s *Session) Samples() int {
	return s.samples
}

// Done is closed once the terminal outcome has been delivered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RequestCancel asks the session to stop. Cancellation is cooperative:
// the flag is observed at the start of the next poll tick. A cancel
// arriving after the success condition is met is a no-op.
func (s *Session) RequestCancel() {
	s.cancelled.Store(true)
}

// Run executes the session to its terminal state. It blocks until the
// outcome has been delivered and the camera released.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	s.state.Store(int32(StateStarting))
	s.log.Info("capture session starting")

	if err := s.camera.Open(s.opts.Device); err != nil {
		s.log.WithError(err).Error("camera acquisition failed")
		s.terminate(StateErrored, func() {
			s.sink.OnError(fmt.Sprintf("%s: %v", ErrorMessage(CodeCameraUnavailable), err))
		})
		return
	}

	// Camera warm-up: give the sensor time to settle before the first
	// frame is trusted.
	if !s.wait(ctx, s.opts.WarmupDelay) {
		s.releaseCamera()
		s.terminate(StateCancelled, s.sink.OnCancelled)
		return
	}

	s.state.Store(int32(StateSampling))
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cancelled.Store(true)
		case <-ticker.C:
		}

		if s.cancelled.Load() {
			s.releaseCamera()
			s.terminate(StateCancelled, s.sink.OnCancelled)
			return
		}

		if finished := s.tick(ctx); finished {
			return
		}
	}
}

// tick processes one polled frame. It returns true when the session
// reached a terminal state.
func (s *Session) tick(ctx context.Context) bool {
	frame, err := s.camera.Capture()
	if err != nil || frame.Img == nil {
		s.log.WithError(err).Error("frame read failed")
		s.releaseCamera()
		s.terminate(StateErrored, func() {
			s.sink.OnError(fmt.Sprintf("%s: %v", ErrorMessage(CodeFrameRead), err))
		})
		return true
	}

	gray := imaging.Grayscale(frame.Img)
	faces := s.detector.Detect(gray)

	switch {
	case len(faces) == 0:
		// No actionable face yet; keep sampling.
		return false
	case len(faces) > 1:
		s.log.Debugf("ambiguity: %d faces in frame", len(faces))
		return false
	}

	roi := imaging.Crop(gray, faces[0])

	switch s.mode {
	case ModeEnroll:
		return s.enrollTick(ctx, roi)
	case ModeVerify:
		return s.verifyTick(ctx, roi)
	}
	return false
}

// enrollTick stores one accepted sample and finishes the session once
// the required count is reached.
func (s *Session) enrollTick(ctx context.Context, roi *image.Gray) bool {
	if s.samples < s.opts.RequiredSamples {
		path, err := s.store.StoreSample(s.identity, roi)
		if err != nil {
			s.log.WithError(err).Error("sample write failed")
			s.releaseCamera()
			s.terminate(StateErrored, func() {
				s.sink.OnError(fmt.Sprintf("%s: %v", ErrorMessage(CodeStorage), err))
			})
			return true
		}
		s.samples++
		s.log.Debugf("stored sample %d/%d: %s", s.samples, s.opts.RequiredSamples, path)
		s.sink.OnSampleProgress(s.samples, s.opts.RequiredSamples)
	}

	if s.samples >= s.opts.RequiredSamples {
		s.log.Infof("enrollment complete for %s", s.identity)
		s.settle(ctx)
		s.releaseCamera()
		s.terminate(StateSucceeded, s.sink.OnEnrollmentSucceeded)
		return true
	}
	return false
}

// verifyTick scores the first accepted face. Verification decides at
// most once per session.
func (s *Session) verifyTick(ctx context.Context, roi *image.Gray) bool {
	if s.decided {
		return false
	}
	s.decided = true
	s.state.Store(int32(StateDeciding))

	name, score, ok := s.score(roi)
	if ok {
		s.log.WithFields(logging.Fields{"identity": name, "score": score}).Info("verification accepted")
		s.settle(ctx)
		s.releaseCamera()
		s.terminate(StateSucceeded, func() { s.sink.OnVerificationSucceeded(name, score) })
		return true
	}

	s.log.Infof("verification rejected (score %.2f, threshold %.2f)", score, s.opts.ConfidenceThreshold)
	s.settle(ctx)
	s.releaseCamera()
	s.terminate(StateFailed, s.sink.OnVerificationFailed)
	return true
}

// score applies the accept policy: the recognizer must be ready, the
// prediction must succeed, the dissimilarity score must be at or below
// the confidence threshold, and the predicted id must resolve in the
// identity table. Every failure inside prediction counts as a reject.
func (s *Session) score(roi *image.Gray) (string, float64, bool) {
	if !s.recognizer.Ready() {
		s.log.Warn("recognizer not ready, rejecting")
		return "", 0, false
	}

	id, score, err := s.recognizer.Predict(roi)
	if err != nil {
		s.log.WithError(err).Warn("prediction failed, rejecting")
		return "", 0, false
	}

	name, known := s.recognizer.NameFor(id)
	if !known || score > s.opts.ConfidenceThreshold {
		return "", score, false
	}
	return name, score, true
}

// settle holds a terminal result visible before the camera is
// released. The outcome is already determined, so cancellation no
// longer applies; only context teardown shortens the hold.
func (s *Session) settle(ctx context.Context) {
	if s.opts.SettleDelay <= 0 {
		return
	}
	select {
	case <-time.After(s.opts.SettleDelay):
	case <-ctx.Done():
	}
}

// wait sleeps for d, returning false if the session was cancelled in
// the meantime.
func (s *Session) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !s.cancelled.Load() && ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !s.cancelled.Load()
	case <-ctx.Done():
		return false
	}
}

func (s *Session) releaseCamera() {
	if err := s.camera.Close(); err != nil {
		s.log.WithError(err).Warn("camera release failed")
	}
}

// terminate moves to a terminal state and delivers its callback. The
// signaled flag makes outcome delivery exactly-once no matter which
// path reaches a terminal state first.
func (s *Session) terminate(state State, notify func()) {
	s.state.Store(int32(state))
	if s.signaled {
		return
	}
	s.signaled = true
	s.log.Infof("session terminal: %s", state)
	notify()
}
