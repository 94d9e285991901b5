package model

import "time"

// Identifiers of the submission entities.
type (
	SessionID int64
	MatchID   int64
	TeamID    int64
	ResultID  int64
)

// ValidationStatus is the tri-state review outcome of a session.
// SQL stores persist it as a nullable boolean: NULL, true, false.
type ValidationStatus int8

// Validation states. Pending is the zero value.
const (
	Pending ValidationStatus = iota
	Validated
	Invalidated
)

func (s ValidationStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Validated:
		return "validated"
	case Invalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Session is a group of matches submitted together by the same participants.
type Session struct {
	ID          SessionID
	Activity    ActivityID
	SubmittedAt time.Time
	Submitter   string
	Status      ValidationStatus
	Teams       []Team
	Matches     []Match
}

// Team is an ad-hoc grouping of players for one session.
// Slot is its creation order inside the session and fixes the team order
// handed to the rating function.
type Team struct {
	ID      TeamID
	Slot    int
	Members []PlayerID
}

// Match is one scored contest of a session.
type Match struct {
	ID          MatchID
	Position    int
	SubmittedAt time.Time
	Results     []Result
}

// Result is the placement of one team in one match: 1 is best, ties share a rank.
type Result struct {
	ID   ResultID
	Team TeamID
	Rank int
}

// Participants returns every member of every team, in team then member order.
func (s *Session) Participants() []PlayerID {
	var out []PlayerID
	for _, t := range s.Teams {
		out = append(out, t.Members...)
	}
	return out
}

// MatchCount returns the number of matches in the session.
func (s *Session) MatchCount() int { return len(s.Matches) }

// Clone returns a deep copy that shares no slices with s.
func (s Session) Clone() Session {
	out := s
	out.Teams = make([]Team, len(s.Teams))
	for i, t := range s.Teams {
		t.Members = append(make([]PlayerID, 0, len(t.Members)), t.Members...)
		out.Teams[i] = t
	}
	out.Matches = make([]Match, len(s.Matches))
	for i, m := range s.Matches {
		m.Results = append(make([]Result, 0, len(m.Results)), m.Results...)
		out.Matches[i] = m
	}
	return out
}
