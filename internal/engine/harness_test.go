package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/skillboard/internal/adapters/repository"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/engine"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T) repository.Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(*testing.T) repository.Store {
			return repository.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) repository.Store {
			s, err := repository.Open(context.Background(), repository.DriverSQLite, ":memory:")
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

type harness struct {
	ctx     context.Context
	store   repository.Store
	eng     *engine.Engine
	players []model.PlayerID
}

// newHarness seeds tennis and chess (1v1) and football (any size) plus n players.
func newHarness(s repository.Store, n int, opts ...engine.Option) *harness {
	h := &harness{ctx: context.Background(), store: s, eng: engine.New(s, opts...)}

	football := model.NewActivity("football")
	football.MaxPlayersPerTeam = 0
	football.MaxTeamsPerMatch = 0
	for _, a := range []model.Activity{model.NewActivity("tennis"), model.NewActivity("chess"), football} {
		convey.So(s.SaveActivity(h.ctx, a), convey.ShouldBeNil)
	}
	for i := 0; i < n; i++ {
		p, err := s.SavePlayer(h.ctx, model.Player{Name: "player", Active: true})
		convey.So(err, convey.ShouldBeNil)
		h.players = append(h.players, p.ID)
	}
	return h
}

func (h *harness) submit(sub engine.Submission) model.Session {
	s, err := h.eng.Submit(h.ctx, sub)
	convey.So(err, convey.ShouldBeNil)
	return s
}

// duel submits a single 1v1 match won by winner.
func (h *harness) duel(act model.ActivityID, winner, loser model.PlayerID, at time.Time) model.Session {
	return h.submit(engine.Submission{
		Activity:    act,
		SubmittedAt: at,
		Teams:       [][]model.PlayerID{{winner}, {loser}},
		Matches:     []engine.MatchOutcome{{Ranks: []int{1, 2}}},
	})
}

func (h *harness) validate(ids ...model.SessionID) engine.ValidationReport {
	r, err := h.eng.Validate(h.ctx, ids)
	convey.So(err, convey.ShouldBeNil)
	return r
}

func (h *harness) ratings(act model.ActivityID) model.Ratings {
	r, err := h.store.Ratings(h.ctx, act)
	convey.So(err, convey.ShouldBeNil)
	return r
}

func (h *harness) history(act model.ActivityID, p model.PlayerID) []model.SkillHistory {
	hist, err := h.store.History(h.ctx, act, p)
	convey.So(err, convey.ShouldBeNil)
	return hist
}

func (h *harness) historyCount(act model.ActivityID) int {
	n, err := h.store.HistoryCount(h.ctx, act)
	convey.So(err, convey.ShouldBeNil)
	return n
}

// beliefs strips the store-assigned sequence numbers from a ledger.
func beliefs(hist []model.SkillHistory) []model.SkillHistory {
	out := make([]model.SkillHistory, len(hist))
	for i, h := range hist {
		h.Seq = 0
		out[i] = h
	}
	return out
}

func ids(sessions []model.Session) []model.SessionID {
	out := make([]model.SessionID, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
