package pipeline

import "errors"

var (
	// ErrSessionNotFound reports a processing request for an unknown session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyRunning reports that a non-terminal run already exists for the session.
	ErrAlreadyRunning = errors.New("processing already running for session")
	// ErrRunNotFound reports a lookup for an unknown processing run.
	ErrRunNotFound = errors.New("processing run not found")
	// ErrClosed reports an operation on a service that has been shut down.
	ErrClosed = errors.New("pipeline service is closed")
)
