package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/ordering"
	"github.com/okian/skillboard/internal/engine"
)

func TestValidateOrdering(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			convey.Convey("Given two pending sessions S1 before S2", t, func() {
				h := newHarness(open(t), 2)
				a, b := h.players[0], h.players[1]
				s1 := h.duel("tennis", a, b, t0)
				s2 := h.duel("tennis", b, a, t0.Add(time.Hour))

				convey.Convey("When only S2 is validated", func() {
					_, err := h.eng.Validate(h.ctx, []model.SessionID{s2.ID})

					convey.Convey("Then the batch is rejected and nothing changes", func() {
						var pe *ordering.PrefixError
						convey.So(errors.Is(err, engine.ErrOrderingViolation), convey.ShouldBeTrue)
						convey.So(errors.As(err, &pe), convey.ShouldBeTrue)
						convey.So(pe.Expected, convey.ShouldEqual, s1.ID)
						convey.So(pe.Got, convey.ShouldEqual, s2.ID)

						convey.So(len(h.ratings("tennis")), convey.ShouldEqual, 0)
						convey.So(h.historyCount("tennis"), convey.ShouldEqual, 0)
						pending, err := h.store.SessionsByStatus(h.ctx, "tennis", model.Pending)
						convey.So(err, convey.ShouldBeNil)
						convey.So(len(pending), convey.ShouldEqual, 2)
					})
				})

				convey.Convey("When S1 is invalidated first", func() {
					convey.So(h.eng.Invalidate(h.ctx, []model.SessionID{s1.ID}), convey.ShouldBeNil)
					report := h.validate(s2.ID)

					convey.Convey("Then S2 no longer waits for it", func() {
						convey.So(report.Sessions, convey.ShouldResemble, []model.SessionID{s2.ID})
						convey.So(h.historyCount("tennis"), convey.ShouldEqual, 2)
						convey.So(h.ratings("tennis")[b].Mean, convey.ShouldBeGreaterThan, 25.0)
					})

					convey.Convey("Then S1 cannot be validated afterwards", func() {
						_, err := h.eng.Validate(h.ctx, []model.SessionID{s1.ID})
						convey.So(errors.Is(err, engine.ErrAlreadyResolved), convey.ShouldBeTrue)
					})
				})

				convey.Convey("When both are validated in one batch listed backwards", func() {
					report := h.validate(s2.ID, s1.ID, s2.ID)

					convey.Convey("Then they are processed in submission order", func() {
						convey.So(report.Sessions, convey.ShouldResemble, []model.SessionID{s1.ID, s2.ID})
						convey.So(report.Matches, convey.ShouldEqual, 2)

						got, err := h.store.Sessions(h.ctx, []model.SessionID{s1.ID, s2.ID})
						convey.So(err, convey.ShouldBeNil)
						convey.So(got[0].Status, convey.ShouldEqual, model.Validated)
						convey.So(got[1].Status, convey.ShouldEqual, model.Validated)
					})

					convey.Convey("Then validating again is refused", func() {
						_, err := h.eng.Validate(h.ctx, []model.SessionID{s1.ID})
						convey.So(errors.Is(err, engine.ErrAlreadyResolved), convey.ShouldBeTrue)
						convey.So(h.eng.Invalidate(h.ctx, []model.SessionID{s2.ID}), convey.ShouldNotBeNil)
					})
				})

				convey.Convey("When the prefix is validated one session at a time", func() {
					h.validate(s1.ID)
					h.validate(s2.ID)

					convey.Convey("Then both sessions are in the ledger", func() {
						convey.So(len(h.history("tennis", a)), convey.ShouldEqual, 2)
					})
				})

				convey.Convey("When the batch is empty", func() {
					report, err := h.eng.Validate(h.ctx, nil)

					convey.Convey("Then it is a no-op", func() {
						convey.So(err, convey.ShouldBeNil)
						convey.So(report.Sessions, convey.ShouldBeEmpty)
					})
				})
			})
		})
	}
}

func TestValidateBackdated(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			convey.Convey("Given a validated duel and a later submission dated before it", t, func() {
				h := newHarness(open(t), 2)
				a, b := h.players[0], h.players[1]
				s1 := h.duel("tennis", a, b, t0.Add(2*time.Hour))
				h.validate(s1.ID)
				before := h.ratings("tennis")
				s0 := h.duel("tennis", b, a, t0)

				convey.Convey("When the backdated session is validated", func() {
					_, err := h.eng.Validate(h.ctx, []model.SessionID{s0.ID})

					convey.Convey("Then it is rejected and nothing changes", func() {
						var pe *ordering.PrefixError
						convey.So(errors.Is(err, engine.ErrOrderingViolation), convey.ShouldBeTrue)
						convey.So(errors.As(err, &pe), convey.ShouldBeTrue)
						convey.So(pe.Got, convey.ShouldEqual, s0.ID)
						convey.So(pe.Validated, convey.ShouldEqual, s1.ID)

						convey.So(h.ratings("tennis"), convey.ShouldResemble, before)
						convey.So(h.historyCount("tennis"), convey.ShouldEqual, 2)
						pending, err := h.store.SessionsByStatus(h.ctx, "tennis", model.Pending)
						convey.So(err, convey.ShouldBeNil)
						convey.So(ids(pending), convey.ShouldResemble, []model.SessionID{s0.ID})
					})
				})

				convey.Convey("When it is invalidated and a later duel is validated", func() {
					convey.So(h.eng.Invalidate(h.ctx, []model.SessionID{s0.ID}), convey.ShouldBeNil)
					h.validate(h.duel("tennis", b, a, t0.Add(3*time.Hour)).ID)
					incremental := h.ratings("tennis")
					ledger := h.ledger("tennis")

					_, err := h.eng.Rebuild(h.ctx, "tennis", time.Time{})

					convey.Convey("Then a rebuild reproduces the incremental state", func() {
						convey.So(err, convey.ShouldBeNil)
						convey.So(h.ratings("tennis"), convey.ShouldResemble, incremental)
						convey.So(h.ledger("tennis"), convey.ShouldResemble, ledger)
					})
				})
			})
		})
	}
}

func TestCrossActivityBatch(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			convey.Convey("Given sessions from tennis and chess", t, func() {
				h := newHarness(open(t), 2)
				a, b := h.players[0], h.players[1]
				tennis := h.duel("tennis", a, b, t0)
				chess := h.duel("chess", a, b, t0)

				convey.Convey("When they are validated together", func() {
					_, err := h.eng.Validate(h.ctx, []model.SessionID{tennis.ID, chess.ID})

					convey.Convey("Then the batch is rejected before any processing", func() {
						convey.So(errors.Is(err, engine.ErrCrossActivityBatch), convey.ShouldBeTrue)
						convey.So(h.historyCount("tennis"), convey.ShouldEqual, 0)
						convey.So(h.historyCount("chess"), convey.ShouldEqual, 0)
					})
				})

				convey.Convey("When they are invalidated together", func() {
					err := h.eng.Invalidate(h.ctx, []model.SessionID{tennis.ID, chess.ID})

					convey.Convey("Then the batch is rejected too", func() {
						convey.So(errors.Is(err, engine.ErrCrossActivityBatch), convey.ShouldBeTrue)
					})
				})
			})
		})
	}
}

func TestReplacePlayer(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			convey.Convey("Given a pending session with a wrong player", t, func() {
				h := newHarness(open(t), 3)
				a, b, c := h.players[0], h.players[1], h.players[2]
				s := h.duel("tennis", a, b, t0)

				convey.Convey("When the player is replaced", func() {
					n, err := h.eng.ReplacePlayer(h.ctx, []model.SessionID{s.ID}, b, c)

					convey.Convey("Then the roster is fixed before rating", func() {
						convey.So(err, convey.ShouldBeNil)
						convey.So(n, convey.ShouldEqual, 1)
						report := h.validate(s.ID)
						_, hasC := report.Ratings[c]
						_, hasB := report.Ratings[b]
						convey.So(hasC, convey.ShouldBeTrue)
						convey.So(hasB, convey.ShouldBeFalse)
					})
				})

				convey.Convey("When the replacement does not exist", func() {
					_, err := h.eng.ReplacePlayer(h.ctx, []model.SessionID{s.ID}, b, 404)

					convey.Convey("Then ErrUnknownPlayer is returned", func() {
						convey.So(errors.Is(err, engine.ErrUnknownPlayer), convey.ShouldBeTrue)
					})
				})

				convey.Convey("When the session was already validated", func() {
					h.validate(s.ID)
					_, err := h.eng.ReplacePlayer(h.ctx, []model.SessionID{s.ID}, b, c)

					convey.Convey("Then the fix is refused", func() {
						convey.So(errors.Is(err, engine.ErrAlreadyResolved), convey.ShouldBeTrue)
					})
				})
			})
		})
	}
}

func TestSubmit(t *testing.T) {
	convey.Convey("Given an engine with a fixed clock", t, func() {
		now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		h := newHarness(stores()["memory"](t), 4, engine.WithClock(func() time.Time { return now }))
		p := h.players

		convey.Convey("When a valid two-match session is submitted", func() {
			s := h.submit(engine.Submission{
				Activity:  "tennis",
				Submitter: "referee",
				Teams:     [][]model.PlayerID{{p[0]}, {p[1]}},
				Matches:   []engine.MatchOutcome{{Ranks: []int{1, 2}}, {Ranks: []int{2, 1}}},
			})

			convey.Convey("Then it is stored as pending with resolved team ids", func() {
				convey.So(s.ID, convey.ShouldBeGreaterThan, 0)
				convey.So(s.Status, convey.ShouldEqual, model.Pending)
				convey.So(s.SubmittedAt.Equal(now), convey.ShouldBeTrue)
				convey.So(len(s.Matches), convey.ShouldEqual, 2)
				convey.So(s.Matches[1].Position, convey.ShouldEqual, 1)
				convey.So(s.Matches[0].Results[0].Team, convey.ShouldEqual, s.Teams[0].ID)
				convey.So(s.Matches[1].Results[1].Rank, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When submissions break the activity rules", func() {
			bad := map[string]engine.Submission{
				"one team":       {Teams: [][]model.PlayerID{{p[0]}}, Matches: []engine.MatchOutcome{{Ranks: []int{1}}}},
				"empty team":     {Teams: [][]model.PlayerID{{p[0]}, {}}, Matches: []engine.MatchOutcome{{Ranks: []int{1, 2}}}},
				"team too big":   {Teams: [][]model.PlayerID{{p[0], p[2]}, {p[1]}}, Matches: []engine.MatchOutcome{{Ranks: []int{1, 2}}}},
				"negative id":    {Teams: [][]model.PlayerID{{p[0]}, {-3}}, Matches: []engine.MatchOutcome{{Ranks: []int{1, 2}}}},
				"unknown player": {Teams: [][]model.PlayerID{{p[0]}, {999}}, Matches: []engine.MatchOutcome{{Ranks: []int{1, 2}}}},
				"both teams":     {Teams: [][]model.PlayerID{{p[0]}, {p[0]}}, Matches: []engine.MatchOutcome{{Ranks: []int{1, 2}}}},
				"rank count":     {Teams: [][]model.PlayerID{{p[0]}, {p[1]}}, Matches: []engine.MatchOutcome{{Ranks: []int{1}}}},
				"zero rank":      {Teams: [][]model.PlayerID{{p[0]}, {p[1]}}, Matches: []engine.MatchOutcome{{Ranks: []int{0, 1}}}},
				"no matches":     {Teams: [][]model.PlayerID{{p[0]}, {p[1]}}},
			}

			convey.Convey("Then each is rejected without creating a session", func() {
				for reason, sub := range bad {
					sub.Activity = "tennis"
					_, err := h.eng.Submit(h.ctx, sub)
					convey.So(reason, convey.ShouldNotBeEmpty)
					convey.So(errors.Is(err, engine.ErrInvalidSubmission), convey.ShouldBeTrue)
				}
				pending, err := h.store.SessionsByStatus(h.ctx, "tennis", model.Pending)
				convey.So(err, convey.ShouldBeNil)
				convey.So(pending, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the activity is unknown", func() {
			_, err := h.eng.Submit(h.ctx, engine.Submission{Activity: "curling"})

			convey.Convey("Then ErrUnknownActivity is returned", func() {
				convey.So(errors.Is(err, engine.ErrUnknownActivity), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a multi-player activity takes a 2v2", func() {
			s := h.submit(engine.Submission{
				Activity: "football",
				Teams:    [][]model.PlayerID{{p[0], p[1]}, {p[2], p[3]}},
				Matches:  []engine.MatchOutcome{{Ranks: []int{1, 1}}},
			})
			report := h.validate(s.ID)

			convey.Convey("Then every member gets one ledger entry", func() {
				convey.So(report.History, convey.ShouldEqual, 4)
				convey.So(report.Ratings[p[0]], convey.ShouldResemble, report.Ratings[p[3]])
			})
		})
	})
}
