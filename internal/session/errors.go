package session

import (
	"errors"
	"fmt"
)

var (
	// ErrMediaUnavailable means no usable capture device exists at all;
	// the session cannot start.
	ErrMediaUnavailable = errors.New("no usable camera or microphone")

	// ErrChannelUnavailable means the signaling transport could not
	// (re)connect within the bounded retry budget.
	ErrChannelUnavailable = errors.New("signaling channel unavailable")

	// ErrNegotiationFailed marks a single peer link that could not be
	// established. The room stays usable without it.
	ErrNegotiationFailed = errors.New("peer negotiation failed")

	// ErrTrackSubstitutionFailed means a link does not support swapping
	// the outgoing video track in place.
	ErrTrackSubstitutionFailed = errors.New("track substitution unsupported")

	// ErrScreenCaptureDenied means the user declined the screen-share
	// prompt. Camera sharing continues unaffected.
	ErrScreenCaptureDenied = errors.New("screen capture denied")

	ErrMeetingEnded  = errors.New("meeting ended")
	ErrChannelClosed = errors.New("channel closed")
	ErrNotHost       = errors.New("only the host may end the meeting")
)

// SessionError wraps a failure with the operation and, for per-link
// failures, the remote participant it concerns.
type SessionError struct {
	Op          string
	Participant string
	Err         error
	Details     string
}

func (e *SessionError) Error() string {
	if e.Participant != "" {
		return fmt.Sprintf("%s (participant %s): %v", e.Op, e.Participant, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

func NewLinkError(op, participant string, err error) *SessionError {
	return &SessionError{Op: op, Participant: participant, Err: err}
}

func WrapError(op string, err error, details string) *SessionError {
	return &SessionError{Op: op, Err: err, Details: details}
}
