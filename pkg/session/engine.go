package session

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionActive is returned when a capture session is requested
// while another one still holds the camera.
var ErrSessionActive = errors.New("a capture session is already active")

// Engine serializes capture sessions over the single shared camera:
// at most one session is active at a time, and a second start attempt
// is rejected rather than contending for the camera handle.
type Engine struct {
	camera     Camera
	detector   Detector
	recognizer Recognizer
	store      SampleStore
	opts       Options

	mu     sync.Mutex
	active *Session
}

// NewEngine creates an Engine over the shared collaborators.
func NewEngine(cam Camera, det Detector, rec Recognizer, store SampleStore, opts Options) *Engine {
	return &Engine{
		camera:     cam,
		detector:   det,
		recognizer: rec,
		store:      store,
		opts:       opts,
	}
}

// Active reports whether a session currently holds the camera.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// StartEnrollment begins an enrollment session for the identity. The
// session runs on its own goroutine; its outcome arrives through the
// sink and its Done channel.
func (e *Engine) StartEnrollment(ctx context.Context, identity string, sink EventSink) (*Session, error) {
	s := NewEnrollment(identity, e.camera, e.detector, e.store, sink, e.opts)
	return e.launch(ctx, s)
}

// StartVerification begins a verification session.
func (e *Engine) StartVerification(ctx context.Context, sink EventSink) (*Session, error) {
	s := NewVerification(e.camera, e.detector, e.recognizer, sink, e.opts)
	return e.launch(ctx, s)
}

func (e *Engine) launch(ctx context.Context, s *Session) (*Session, error) {
	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return nil, ErrSessionActive
	}
	e.active = s
	e.mu.Unlock()

	go func() {
		s.Run(ctx)
		e.mu.Lock()
		e.active = nil
		e.mu.Unlock()
	}()

	return s, nil
}
