// Package ordering is the match ordering and validation gate: it decides which
// sessions may be rated and in which order.
//
// Ordering key: session SubmittedAt ascending, then session ID. Inside a
// session matches are ordered by Position, then SubmittedAt, then ID, and
// teams by Slot, then ID.
package ordering

import (
	"errors"
	"fmt"
	"sort"

	"github.com/okian/skillboard/internal/domain/model"
)

// Sentinel kinds for gate errors.
var (
	ErrEmpty             = errors.New("no sessions")
	ErrCrossActivity     = errors.New("sessions belong to more than one activity")
	ErrOrderingViolation = errors.New("sessions must be validated in chronological order")
)

// PrefixError reports a validation batch that would skip a pending session
// or that would be rated out of chronological order.
type PrefixError struct {
	Activity  model.ActivityID
	Expected  model.SessionID // first pending session the batch must include
	Got       model.SessionID // first session of the batch that is out of place
	Validated model.SessionID // latest validated session that Got predates
}

func (e *PrefixError) Error() string {
	if e.Validated != 0 {
		return fmt.Sprintf("%s: activity %q: session %d predates validated session %d",
			ErrOrderingViolation, e.Activity, e.Got, e.Validated)
	}
	if e.Expected == 0 {
		return fmt.Sprintf("%s: activity %q: session %d is not pending", ErrOrderingViolation, e.Activity, e.Got)
	}
	return fmt.Sprintf("%s: activity %q: session %d is pending before session %d",
		ErrOrderingViolation, e.Activity, e.Expected, e.Got)
}

// Unwrap exposes ErrOrderingViolation to errors.Is.
func (e *PrefixError) Unwrap() error { return ErrOrderingViolation }

// Before reports whether session a is processed before session b.
func Before(a, b *model.Session) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ID < b.ID
}

// Sort returns the sessions in processing order, with their matches and teams
// ordered too. The input is not modified.
func Sort(sessions []model.Session) []model.Session {
	out := make([]model.Session, len(sessions))
	for i := range sessions {
		out[i] = normalize(sessions[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return Before(&out[i], &out[j]) })
	return out
}

// normalize copies a session and orders its matches and teams.
func normalize(s model.Session) model.Session {
	matches := make([]model.Match, len(s.Matches))
	copy(matches, s.Matches)
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})

	teams := make([]model.Team, len(s.Teams))
	copy(teams, s.Teams)
	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Slot != teams[j].Slot {
			return teams[i].Slot < teams[j].Slot
		}
		return teams[i].ID < teams[j].ID
	})

	s.Matches = matches
	s.Teams = teams
	return s
}

// CommonActivity returns the single activity shared by all sessions.
func CommonActivity(sessions []model.Session) (model.ActivityID, error) {
	if len(sessions) == 0 {
		return "", ErrEmpty
	}
	activity := sessions[0].Activity
	for _, s := range sessions[1:] {
		if s.Activity != activity {
			return "", fmt.Errorf("%w: %q and %q", ErrCrossActivity, activity, s.Activity)
		}
	}
	return activity, nil
}

// Eligible keeps only validated sessions, preserving order.
func Eligible(sessions []model.Session) []model.Session {
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Status == model.Validated {
			out = append(out, s)
		}
	}
	return out
}

// CheckPrefix verifies that batch is exactly the chronologically first
// len(batch) sessions of pending, the activity's pending sessions.
// Both slices may be in any order.
func CheckPrefix(batch, pending []model.Session) error {
	if len(batch) == 0 {
		return nil
	}
	activity, err := CommonActivity(batch)
	if err != nil {
		return err
	}

	b := Sort(batch)
	p := Sort(pending)
	for i := range b {
		if i >= len(p) {
			return &PrefixError{Activity: activity, Expected: 0, Got: b[i].ID}
		}
		if b[i].ID != p[i].ID {
			return &PrefixError{Activity: activity, Expected: p[i].ID, Got: b[i].ID}
		}
	}
	return nil
}

// CheckFollows verifies that every session of batch comes after the latest of
// validated, so rating the batch continues exactly where the validated
// history ended. Both slices may be in any order.
func CheckFollows(batch, validated []model.Session) error {
	if len(batch) == 0 || len(validated) == 0 {
		return nil
	}
	activity, err := CommonActivity(batch)
	if err != nil {
		return err
	}

	last := &validated[0]
	for i := range validated[1:] {
		if Before(last, &validated[i+1]) {
			last = &validated[i+1]
		}
	}
	for _, s := range Sort(batch) {
		if Before(&s, last) {
			return &PrefixError{Activity: activity, Got: s.ID, Validated: last.ID}
		}
	}
	return nil
}
