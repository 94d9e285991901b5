package engine

import (
	"fmt"

	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/ordering"
)

// outcome is the in-memory result of replaying sessions.
type outcome struct {
	ratings  model.Ratings
	history  []model.SkillHistory
	sessions []model.SessionID // processing order
	matches  int
	touched  map[model.PlayerID]struct{}
}

// replay rates every match of sessions, in processing order, starting from
// start. Every participant must already be in start. start is not modified.
func replay(act model.Activity, rater Rater, sessions []model.Session, start model.Ratings) (*outcome, error) {
	out := &outcome{
		ratings: start.Clone(),
		touched: make(map[model.PlayerID]struct{}),
	}
	if out.ratings == nil {
		out.ratings = make(model.Ratings)
	}

	for _, s := range ordering.Sort(sessions) {
		out.sessions = append(out.sessions, s.ID)
		for _, m := range s.Matches {
			if err := out.rate(act, rater, &s, m); err != nil {
				return nil, err
			}
			out.matches++
		}
	}
	return out, nil
}

// rate applies one match. Teams are taken in session slot order.
func (o *outcome) rate(act model.Activity, rater Rater, s *model.Session, m model.Match) error {
	malformed := func(format string, args ...any) error {
		return &MatchError{Session: s.ID, Match: m.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if len(s.Teams) < 2 {
		return malformed("%d teams", len(s.Teams))
	}

	results := make(map[model.TeamID]model.Result, len(m.Results))
	for _, r := range m.Results {
		if _, dup := results[r.Team]; dup {
			return malformed("team %d has more than one result", r.Team)
		}
		if r.Rank < 1 {
			return malformed("team %d has rank %d", r.Team, r.Rank)
		}
		results[r.Team] = r
	}

	seen := make(map[model.PlayerID]model.TeamID)
	teams := make([][]model.Belief, len(s.Teams))
	ranks := make([]int, len(s.Teams))
	picked := make([]model.Result, len(s.Teams))
	for i, t := range s.Teams {
		if len(t.Members) == 0 {
			return malformed("team %d is empty", t.ID)
		}
		r, ok := results[t.ID]
		if !ok {
			return malformed("team %d has no result", t.ID)
		}
		delete(results, t.ID)
		picked[i] = r
		ranks[i] = r.Rank

		teams[i] = make([]model.Belief, len(t.Members))
		for j, p := range t.Members {
			if other, dup := seen[p]; dup {
				return malformed("player %d plays for teams %d and %d", p, other, t.ID)
			}
			seen[p] = t.ID
			b, ok := o.ratings[p]
			if !ok {
				return fmt.Errorf("%w: player %d in session %d", ErrUnknownPlayer, p, s.ID)
			}
			teams[i][j] = b
		}
	}
	for _, r := range m.Results {
		if _, foreign := results[r.Team]; foreign {
			return malformed("result for team %d outside the session", r.Team)
		}
	}

	updated, err := rater.Rate(teams, ranks)
	if err != nil {
		return &MatchError{Session: s.ID, Match: m.ID, Reason: "rating update failed", Err: err}
	}

	at := m.SubmittedAt
	if at.IsZero() {
		at = s.SubmittedAt
	}
	for i, t := range s.Teams {
		res := picked[i]
		for j, p := range t.Members {
			b := updated[i][j]
			o.ratings[p] = b
			o.touched[p] = struct{}{}
			o.history = append(o.history, model.SkillHistory{
				Activity:    act.ID,
				Player:      p,
				Session:     s.ID,
				Match:       m.ID,
				Result:      res.ID,
				Belief:      b,
				SubmittedAt: at,
			})
		}
	}
	return nil
}

// changed returns the ratings of players touched by the replay.
func (o *outcome) changed() model.Ratings {
	out := make(model.Ratings, len(o.touched))
	for p := range o.touched {
		out[p] = o.ratings[p]
	}
	return out
}

// participants lists every player of sessions, each once.
func participants(sessions []model.Session) []model.PlayerID {
	seen := make(map[model.PlayerID]struct{})
	var out []model.PlayerID
	for i := range sessions {
		for _, p := range sessions[i].Participants() {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	return out
}
