package session

import (
	"errors"
	"fmt"
)

// ErrorCode classifies session failures for the HTTP boundary.
type ErrorCode string

const (
	// ErrorConfig: credentials absent or placeholder; fatal to the chat
	// surface, which must stay blocked with a remediation message.
	ErrorConfig ErrorCode = "CONFIG_ERROR"
	// ErrorAuth: identity issuance or verification failed; recoverable
	// by re-requesting an identity.
	ErrorAuth ErrorCode = "AUTH_ERROR"
	// ErrorSync: subscription or publish failed; the session degrades
	// to an unsynced indicator but local state stays usable.
	ErrorSync ErrorCode = "SYNC_ERROR"
	// ErrorAIRequest: model round trip failed; surfaced per-message as
	// an inline error bubble, never aborts the session.
	ErrorAIRequest ErrorCode = "AI_REQUEST_ERROR"
)

// Error carries a code, a stable machine reason and the cause.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("session: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("session: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the session error code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var (
	// ErrSubmissionInFlight rejects a submission while a prior one is
	// still outstanding; submissions are strictly ordered per session.
	ErrSubmissionInFlight = errors.New("a submission is already in flight for this session")
	// ErrSessionClosed marks operations (and late AI results) arriving
	// after teardown.
	ErrSessionClosed = errors.New("session is closed")
	// ErrEmptyInput rejects blank submissions.
	ErrEmptyInput = errors.New("input must not be empty")
	// ErrFamilyIDRequired rejects sessions without a family identifier.
	ErrFamilyIDRequired = errors.New("family id is required")
)
