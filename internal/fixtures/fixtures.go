// Package fixtures loads seed data (activities, players and submitted
// sessions) from JSON and replays it through the rating pipeline.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/skillboard/internal/domain/dedupe"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/engine"
)

// ErrInvalidFixture reports seed data that cannot be replayed.
var ErrInvalidFixture = errors.New("invalid fixture")

// Fixture is the seed file layout.
type Fixture struct {
	Activities  []Activity   `json:"activities"`
	Players     []Player     `json:"players"`
	Submissions []Submission `json:"submissions"`
}

// Activity is one activity definition. Skill parameters default to the classic set.
type Activity struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	About      string  `json:"about"`
	MinTeams   int     `json:"min_teams"`
	MaxTeams   int     `json:"max_teams"`
	MinPlayers int     `json:"min_players"`
	MaxPlayers int     `json:"max_players"`
	MinSkill   float64 `json:"min_skill"`
	MaxSkill   float64 `json:"max_skill"`
}

// Player keeps its id so submissions can reference it.
type Player struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Inactive bool   `json:"inactive"`
}

// Submission is one session. Outcomes are given either as Wins, the 1-based
// winning team per match of a two-team session, or as Ranks, one rank per
// team per match. Submissions sharing a non-empty Key are recorded once.
type Submission struct {
	Key         string    `json:"key"`
	Activity    string    `json:"activity"`
	SubmittedAt time.Time `json:"submitted_at"`
	Submitter   string    `json:"submitter"`
	Teams       [][]int64 `json:"teams"`
	Wins        []int     `json:"wins"`
	Ranks       [][]int   `json:"ranks"`
	// Status is pending (default), validated or invalidated.
	Status string `json:"status"`
}

// Load decodes and checks a fixture.
func Load(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidFixture, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (*Fixture, error) {
	fh, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer func() { _ = fh.Close() }()
	return Load(fh)
}

func parseStatus(s string) (model.ValidationStatus, error) {
	switch s {
	case "", "pending":
		return model.Pending, nil
	case "validated":
		return model.Validated, nil
	case "invalidated":
		return model.Invalidated, nil
	default:
		return model.Pending, fmt.Errorf("%w: unknown status %q", ErrInvalidFixture, s)
	}
}

// Validate checks references, outcomes and that validated sessions form a
// chronological prefix of every activity.
func (f *Fixture) Validate() error {
	acts := make(map[string]struct{}, len(f.Activities))
	for _, a := range f.Activities {
		if a.ID == "" {
			return fmt.Errorf("%w: activity without id", ErrInvalidFixture)
		}
		acts[a.ID] = struct{}{}
	}
	for _, p := range f.Players {
		if p.ID <= 0 {
			return fmt.Errorf("%w: player %q needs a positive id", ErrInvalidFixture, p.Name)
		}
	}

	pendingSeen := make(map[string]time.Time)
	for i, s := range f.sorted() {
		if _, ok := acts[s.Activity]; !ok {
			return fmt.Errorf("%w: submission %d: unknown activity %q", ErrInvalidFixture, i, s.Activity)
		}
		if len(s.Wins) > 0 && len(s.Ranks) > 0 {
			return fmt.Errorf("%w: submission %d: both wins and ranks given", ErrInvalidFixture, i)
		}
		status, err := parseStatus(s.Status)
		if err != nil {
			return err
		}
		switch status {
		case model.Pending:
			if _, ok := pendingSeen[s.Activity]; !ok {
				pendingSeen[s.Activity] = s.SubmittedAt
			}
		case model.Validated:
			if at, ok := pendingSeen[s.Activity]; ok {
				return fmt.Errorf("%w: %q: validated session at %s follows a pending one from %s",
					ErrInvalidFixture, s.Activity, s.SubmittedAt.Format(time.RFC3339), at.Format(time.RFC3339))
			}
		}
	}
	return nil
}

// sorted returns the submissions ordered by time, keeping file order for ties.
func (f *Fixture) sorted() []Submission {
	out := append([]Submission(nil), f.Submissions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

// Target receives seed data. app.Service implements it.
type Target interface {
	SaveActivity(ctx context.Context, a model.Activity) error
	SavePlayer(ctx context.Context, p model.Player) (model.Player, error)
	SubmitOnce(ctx context.Context, key string, sub engine.Submission) (model.Session, error)
	Validate(ctx context.Context, ids []model.SessionID) (engine.ValidationReport, error)
	Invalidate(ctx context.Context, ids []model.SessionID) error
}

// Report counts what Apply wrote.
type Report struct {
	Activities  int
	Players     int
	Sessions    int
	Validated   int
	Invalidated int
	Duplicates  int
}

// Apply writes the fixture to t: activities and players first, then every
// submission in time order, then reviews. Rejections go first so they never
// block the chronological prefix; validated sessions are then validated per
// activity in one batch.
func (f *Fixture) Apply(ctx context.Context, t Target, base model.SkillType) (Report, error) {
	var rep Report
	for _, a := range f.Activities {
		if err := t.SaveActivity(ctx, a.model(base)); err != nil {
			return rep, fmt.Errorf("seed activity %q: %w", a.ID, err)
		}
		rep.Activities++
	}
	for _, p := range f.Players {
		_, err := t.SavePlayer(ctx, model.Player{ID: model.PlayerID(p.ID), Name: p.Name, Email: p.Email, Active: !p.Inactive})
		if err != nil {
			return rep, fmt.Errorf("seed player %d: %w", p.ID, err)
		}
		rep.Players++
	}

	validate := make(map[string][]model.SessionID)
	var order []string
	var invalidate [][]model.SessionID
	for i, s := range f.sorted() {
		sub, err := s.submission()
		if err != nil {
			return rep, fmt.Errorf("submission %d: %w", i, err)
		}
		created, err := t.SubmitOnce(ctx, s.Key, sub)
		if errors.Is(err, dedupe.ErrDuplicate) {
			rep.Duplicates++
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("submission %d: %w", i, err)
		}
		rep.Sessions++

		status, _ := parseStatus(s.Status)
		switch status {
		case model.Validated:
			if _, ok := validate[s.Activity]; !ok {
				order = append(order, s.Activity)
			}
			validate[s.Activity] = append(validate[s.Activity], created.ID)
		case model.Invalidated:
			invalidate = append(invalidate, []model.SessionID{created.ID})
		}
	}

	for _, ids := range invalidate {
		if err := t.Invalidate(ctx, ids); err != nil {
			return rep, fmt.Errorf("invalidate session %d: %w", ids[0], err)
		}
		rep.Invalidated++
	}
	for _, act := range order {
		ids := validate[act]
		if _, err := t.Validate(ctx, ids); err != nil {
			return rep, fmt.Errorf("validate %q: %w", act, err)
		}
		rep.Validated += len(ids)
	}
	return rep, nil
}

func (a Activity) model(base model.SkillType) model.Activity {
	out := model.NewActivity(model.ActivityID(a.ID))
	out.Skill = base
	if a.Name != "" {
		out.Name = a.Name
	}
	out.About = a.About
	if a.MinTeams > 0 {
		out.MinTeamsPerMatch = a.MinTeams
	}
	out.MaxTeamsPerMatch = a.MaxTeams
	if a.MinPlayers > 0 {
		out.MinPlayersPerTeam = a.MinPlayers
	}
	out.MaxPlayersPerTeam = a.MaxPlayers
	if a.MinSkill != 0 || a.MaxSkill != 0 {
		out.Skill.MinSkill = a.MinSkill
		out.Skill.MaxSkill = a.MaxSkill
	}
	return out
}

func (s Submission) submission() (engine.Submission, error) {
	sub := engine.Submission{
		Activity:    model.ActivityID(s.Activity),
		SubmittedAt: s.SubmittedAt,
		Submitter:   s.Submitter,
		Teams:       make([][]model.PlayerID, len(s.Teams)),
	}
	for i, team := range s.Teams {
		sub.Teams[i] = make([]model.PlayerID, len(team))
		for j, p := range team {
			sub.Teams[i][j] = model.PlayerID(p)
		}
	}

	switch {
	case len(s.Wins) > 0:
		if len(s.Teams) != 2 {
			return sub, fmt.Errorf("%w: wins need exactly two teams", ErrInvalidFixture)
		}
		for _, w := range s.Wins {
			switch w {
			case 1:
				sub.Matches = append(sub.Matches, engine.MatchOutcome{Ranks: []int{1, 2}})
			case 2:
				sub.Matches = append(sub.Matches, engine.MatchOutcome{Ranks: []int{2, 1}})
			default:
				return sub, fmt.Errorf("%w: winner incorrectly identified: %d", ErrInvalidFixture, w)
			}
		}
	default:
		for _, ranks := range s.Ranks {
			sub.Matches = append(sub.Matches, engine.MatchOutcome{Ranks: append([]int(nil), ranks...)})
		}
	}
	return sub, nil
}
