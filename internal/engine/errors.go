package engine

import (
	"errors"
	"fmt"

	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/ordering"
)

// Sentinel kinds for engine errors.
var (
	ErrOrderingViolation  = ordering.ErrOrderingViolation
	ErrCrossActivityBatch = ordering.ErrCrossActivity
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrUnknownActivity    = errors.New("unknown activity")
	ErrMalformedMatch     = errors.New("malformed match outcome")
	ErrNotValidated       = errors.New("session is not validated")
	ErrAlreadyResolved    = errors.New("can't validate sessions again")
	ErrInvalidSubmission  = errors.New("invalid submission")
)

// MatchError identifies the match a rating run stopped at.
type MatchError struct {
	Session model.SessionID
	Match   model.MatchID
	Reason  string
	Err     error // optional cause from the rater
}

func (e *MatchError) Error() string {
	msg := fmt.Sprintf("session %d match %d: %s: %s", e.Session, e.Match, ErrMalformedMatch, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrMalformedMatch and the cause to errors.Is.
func (e *MatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedMatch}
	}
	return []error{ErrMalformedMatch, e.Err}
}
