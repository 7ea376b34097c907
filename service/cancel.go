package service

import (
	"errors"
	"sync/atomic"
)

// Error classes surfaced by the engine. Wrap with fmt.Errorf("...: %w", ...)
// so callers can classify with errors.Is.
var (
	// ErrTransport marks unrecoverable stream/network faults.
	ErrTransport = errors.New("transport fault")
	// ErrContinuation marks a failed follow-up request after tool execution.
	ErrContinuation = errors.New("continuation fault")
	// ErrCancelled is returned once the session's cancel token is set.
	ErrCancelled = errors.New("session cancelled")
)

// CancelToken is the single cooperative cancellation flag for a session.
// It is threaded through every suspension point: the read loop checks it
// before and after each physical read, the delivery task before each push.
type CancelToken struct {
	flag atomic.Bool
}

func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the token. Safe to call from any goroutine, idempotent.
func (t *CancelToken) Cancel() {
	t.flag.Store(true)
}

func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.flag.Load()
}

// Err returns ErrCancelled if the token is set, nil otherwise.
func (t *CancelToken) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}
