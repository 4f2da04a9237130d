package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies sync failures so that callers can branch on the
// class of a failure instead of matching message text.
type ErrorKind int

const (
	// ErrKindNotFound is a 404-class absent resource. Non-fatal.
	ErrKindNotFound ErrorKind = iota
	// ErrKindHTTP is any other non-success provider response. Non-fatal.
	ErrKindHTTP
	// ErrKindConfig is a malformed URL or missing credential, detected
	// before the request where possible. Non-fatal.
	ErrKindConfig
	// ErrKindTransport is a network-level failure (DNS, timeout, refused
	// connection). Propagated so the integration is marked ERROR.
	ErrKindTransport
	// ErrKindIdentityConflict means the provider numeric id of an already
	// known repository changed. Hard, non-retriable.
	ErrKindIdentityConflict
)

// ErrSyncInFlight is returned when a sync is requested for an integration
// that already has one running.
var ErrSyncInFlight = errors.New("sync already in flight for this integration")

// SyncError wraps a failure with its kind.
type SyncError struct {
	Kind ErrorKind
	Err  error
}

func (e *SyncError) Error() string {
	return e.Err.Error()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func NewSyncError(kind ErrorKind, format string, args ...any) *SyncError {
	return &SyncError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err and true when err is a SyncError.
func KindOf(err error) (ErrorKind, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsIdentityConflict reports whether err is the hard repository identity
// mismatch error.
func IsIdentityConflict(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrKindIdentityConflict
}
