package session

// EventSink receives capture session notifications. Exactly one of
// the terminal callbacks (everything except OnSampleProgress) fires
// per session.
type EventSink interface {
	// OnSampleProgress reports enrollment progress after each accepted
	// sample.
	OnSampleProgress(count, required int)

	// OnEnrollmentSucceeded fires when the required sample count has
	// been captured. The host is expected to retrain afterwards.
	OnEnrollmentSucceeded()

	// OnVerificationSucceeded fires when a probe face matched an
	// enrolled identity within the confidence threshold.
	OnVerificationSucceeded(name string, score float64)

	// OnVerificationFailed fires when the probe face was scored and
	// rejected.
	OnVerificationFailed()

	// OnCancelled fires when the host cancelled the session before its
	// success condition was met.
	OnCancelled()

	// OnError fires when the session aborted on a camera, frame or
	// storage failure.
	OnError(reason string)
}

// ErrorCode identifies why a session errored.
type ErrorCode string

const (
	CodeCameraUnavailable ErrorCode = "CAMERA_UNAVAILABLE"
	CodeFrameRead         ErrorCode = "FRAME_READ"
	CodeStorage           ErrorCode = "STORAGE"
)

var errorMessages = map[ErrorCode]string{
	CodeCameraUnavailable: "Camera could not be opened. Check your camera connection",
	CodeFrameRead:         "Camera stopped delivering frames",
	CodeStorage:           "Face sample could not be saved",
}

// ErrorMessage returns the user-facing message for an error code.
func ErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Capture session failed"
}
