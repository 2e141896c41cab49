package spotstore

import "errors"

// Failure kinds surfaced to the UI. None of them is fatal and none is retried.
var (
	ErrAuthRequired      = errors.New("sign-in required to publish a spot")
	ErrRemoteWriteFailed = errors.New("remote write failed")
	ErrRemoteReadFailed  = errors.New("remote read failed")
	ErrLocalWriteFailed  = errors.New("local write failed")
	ErrIndexOutOfRange   = errors.New("spot index out of range")
	ErrInvalidVisibility = errors.New("invalid visibility")
)
