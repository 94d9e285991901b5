package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/skillboard/internal/adapters/repository"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/pkg/logger"
	"github.com/okian/skillboard/pkg/metrics"
)

// Submission is a raw session as reported by players.
type Submission struct {
	Activity    model.ActivityID
	SubmittedAt time.Time // zero means now
	Submitter   string
	Teams       [][]model.PlayerID
	Matches     []MatchOutcome
}

// MatchOutcome holds one rank per team, in the order of Submission.Teams.
type MatchOutcome struct {
	Ranks       []int
	SubmittedAt time.Time // zero means the session time
}

// Submit checks a submission against its activity and stores it as a
// pending session.
func (e *Engine) Submit(ctx context.Context, sub Submission) (model.Session, error) {
	act, err := e.activity(ctx, sub.Activity)
	if err != nil {
		return model.Session{}, err
	}
	if err := e.checkSubmission(ctx, act, sub); err != nil {
		metrics.RecordRejection("invalid_submission")
		return model.Session{}, err
	}

	at := sub.SubmittedAt
	if at.IsZero() {
		at = e.now()
	}
	s := model.Session{
		Activity:    act.ID,
		SubmittedAt: at,
		Submitter:   sub.Submitter,
		Status:      model.Pending,
		Teams:       make([]model.Team, len(sub.Teams)),
		Matches:     make([]model.Match, len(sub.Matches)),
	}
	for i, members := range sub.Teams {
		s.Teams[i] = model.Team{Slot: i, Members: append([]model.PlayerID(nil), members...)}
	}
	for i, m := range sub.Matches {
		mat := model.Match{Position: i, SubmittedAt: m.SubmittedAt, Results: make([]model.Result, len(m.Ranks))}
		if mat.SubmittedAt.IsZero() {
			mat.SubmittedAt = at
		}
		for team, rank := range m.Ranks {
			mat.Results[team] = model.Result{Team: model.TeamID(team), Rank: rank}
		}
		s.Matches[i] = mat
	}

	created, err := e.store.CreateSession(ctx, s)
	if err != nil {
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}
	metrics.RecordSessionSubmitted()
	e.logger.Debug(ctx, "session submitted",
		logger.String("activity", string(act.ID)),
		logger.Int64("session", int64(created.ID)),
		logger.Int("matches", len(created.Matches)),
	)
	return created, nil
}

func (e *Engine) checkSubmission(ctx context.Context, act model.Activity, sub Submission) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSubmission, fmt.Sprintf(format, args...))
	}

	teams := len(sub.Teams)
	if teams < 2 || teams < act.MinTeamsPerMatch {
		return invalid("%d teams, at least %d required", teams, max(2, act.MinTeamsPerMatch))
	}
	if act.MaxTeamsPerMatch > 0 && teams > act.MaxTeamsPerMatch {
		return invalid("%d teams, at most %d allowed", teams, act.MaxTeamsPerMatch)
	}
	if len(sub.Matches) == 0 {
		return invalid("no matches")
	}

	seen := make(map[model.PlayerID]int)
	for i, members := range sub.Teams {
		if len(members) == 0 {
			return invalid("team %d is empty", i)
		}
		if len(members) < act.MinPlayersPerTeam {
			return invalid("team %d has %d players, at least %d required", i, len(members), act.MinPlayersPerTeam)
		}
		if act.MaxPlayersPerTeam > 0 && len(members) > act.MaxPlayersPerTeam {
			return invalid("team %d has %d players, at most %d allowed", i, len(members), act.MaxPlayersPerTeam)
		}
		for _, p := range members {
			if p <= 0 {
				return invalid("player id %d in team %d", p, i)
			}
			if other, dup := seen[p]; dup {
				return invalid("player %d is in teams %d and %d", p, other, i)
			}
			seen[p] = i
		}
	}

	for i, m := range sub.Matches {
		if len(m.Ranks) != teams {
			return invalid("match %d has %d ranks for %d teams", i, len(m.Ranks), teams)
		}
		for team, rank := range m.Ranks {
			if rank < 1 {
				return invalid("match %d gives team %d rank %d", i, team, rank)
			}
		}
	}

	for p := range seen {
		if _, err := e.store.Player(ctx, p); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %w: %d", ErrInvalidSubmission, ErrUnknownPlayer, p)
			}
			return fmt.Errorf("read player %d: %w", p, err)
		}
	}
	return nil
}
