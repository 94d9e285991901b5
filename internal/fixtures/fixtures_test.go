package fixtures_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/skillboard/internal/adapters/repository"
	service "github.com/okian/skillboard/internal/app"
	"github.com/okian/skillboard/internal/domain/dedupe"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/engine"
	"github.com/okian/skillboard/internal/fixtures"
	"github.com/okian/skillboard/pkg/logger"
)

const seed = `{
  "activities": [
    {"id": "tennis", "name": "Tennis", "min_teams": 2, "max_teams": 2, "min_players": 1, "max_players": 2},
    {"id": "chess", "min_skill": -10, "max_skill": 100}
  ],
  "players": [
    {"id": 1, "name": "Zeus"},
    {"id": 2, "name": "Hades"},
    {"id": 3, "name": "Hermes", "inactive": true}
  ],
  "submissions": [
    {"activity": "tennis", "submitted_at": "2024-01-01T10:00:00Z", "teams": [[1], [2]], "wins": [1, 1, 2], "status": "validated"},
    {"activity": "tennis", "submitted_at": "2024-01-01T09:00:00Z", "teams": [[2], [3]], "ranks": [[1, 1]], "status": "invalidated"},
    {"activity": "tennis", "submitted_at": "2024-01-01T11:00:00Z", "teams": [[1], [3]], "wins": [2]},
    {"activity": "chess", "submitted_at": "2024-01-02T09:00:00Z", "teams": [[3], [1]], "wins": [1], "status": "validated"}
  ]
}`

// target wires an engine and its store into a fixtures.Target.
type target struct {
	*engine.Engine
	store repository.Store
	keys  dedupe.Tracker
}

func newTarget(store repository.Store) target {
	return target{Engine: engine.New(store), store: store, keys: dedupe.NewMemoryTracker()}
}

func (t target) SubmitOnce(ctx context.Context, key string, sub engine.Submission) (model.Session, error) {
	if key != "" && t.keys.Claim(ctx, key) {
		return model.Session{}, dedupe.ErrDuplicate
	}
	return t.Submit(ctx, sub)
}

func (t target) SaveActivity(ctx context.Context, a model.Activity) error {
	return t.store.SaveActivity(ctx, a)
}

func (t target) SavePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	return t.store.SavePlayer(ctx, p)
}

func TestLoadAndApply(t *testing.T) {
	convey.Convey("Given a seed file", t, func() {
		f, err := fixtures.Load(strings.NewReader(seed))
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(f.Submissions), convey.ShouldEqual, 4)

		convey.Convey("When it is applied to an empty store", func() {
			ctx := context.Background()
			store := repository.NewMemoryStore()
			rep, err := f.Apply(ctx, newTarget(store), model.DefaultSkillType())

			convey.Convey("Then every part is written", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rep, convey.ShouldResemble, fixtures.Report{
					Activities: 2, Players: 3, Sessions: 4, Validated: 2, Invalidated: 1,
				})

				tennis, err := store.Activity(ctx, "tennis")
				convey.So(err, convey.ShouldBeNil)
				convey.So(tennis.Name, convey.ShouldEqual, "Tennis")
				convey.So(tennis.MaxPlayersPerTeam, convey.ShouldEqual, 2)

				chess, err := store.Activity(ctx, "chess")
				convey.So(err, convey.ShouldBeNil)
				convey.So(chess.Skill.MinSkill, convey.ShouldEqual, -10.0)
				convey.So(chess.Skill.MaxSkill, convey.ShouldEqual, 100.0)

				hermes, err := store.Player(ctx, 3)
				convey.So(err, convey.ShouldBeNil)
				convey.So(hermes.Active, convey.ShouldBeFalse)
			})

			convey.Convey("Then only validated sessions are rated", func() {
				hist, err := store.History(ctx, "tennis", 1)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(hist), convey.ShouldEqual, 3)

				n, err := store.HistoryCount(ctx, "chess")
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 2)

				pending, err := store.SessionsByStatus(ctx, "tennis", model.Pending)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(pending), convey.ShouldEqual, 1)

				rejected, err := store.SessionsByStatus(ctx, "tennis", model.Invalidated)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(rejected), convey.ShouldEqual, 1)
			})
		})
	})
}

const retried = `{
  "activities": [{"id": "chess"}],
  "players": [{"id": 1, "name": "Zeus"}, {"id": 2, "name": "Hades"}],
  "submissions": [
    {"key": "board-7", "activity": "chess", "submitted_at": "2024-01-01T10:00:00Z", "teams": [[1], [2]], "wins": [1], "status": "validated"},
    {"key": "board-7", "activity": "chess", "submitted_at": "2024-01-01T10:00:05Z", "teams": [[1], [2]], "wins": [1], "status": "validated"},
    {"activity": "chess", "submitted_at": "2024-01-01T11:00:00Z", "teams": [[2], [1]], "wins": [1]},
    {"activity": "chess", "submitted_at": "2024-01-01T12:00:00Z", "teams": [[2], [1]], "wins": [1]}
  ]
}`

func TestApplyRetriedSubmissions(t *testing.T) {
	convey.Convey("Given a seed file where one board was submitted twice", t, func() {
		f, err := fixtures.Load(strings.NewReader(retried))
		convey.So(err, convey.ShouldBeNil)

		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := service.New(
			service.WithStore(store),
			service.WithWorkerCount(1),
			service.WithLogger(logger.Discard()),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("When it is applied through the service", func() {
			rep, err := f.Apply(ctx, svc, model.DefaultSkillType())

			convey.Convey("Then the keyed copy is recorded once and unkeyed sessions all count", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rep.Sessions, convey.ShouldEqual, 3)
				convey.So(rep.Duplicates, convey.ShouldEqual, 1)
				convey.So(rep.Validated, convey.ShouldEqual, 1)

				n, err := store.HistoryCount(ctx, "chess")
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 2)
				convey.So(svc.GetStats()["dedupeKeys"], convey.ShouldEqual, 1)
			})
		})
	})
}

func TestLoadRejects(t *testing.T) {
	convey.Convey("Given broken seed files", t, func() {
		cases := map[string]string{
			"unknown field":    `{"bogus": 1}`,
			"unknown activity": `{"submissions": [{"activity": "golf"}]}`,
			"bad player id":    `{"players": [{"id": 0, "name": "nobody"}]}`,
			"bad status": `{"activities": [{"id": "tennis"}],
				"submissions": [{"activity": "tennis", "status": "maybe"}]}`,
			"wins and ranks": `{"activities": [{"id": "tennis"}],
				"submissions": [{"activity": "tennis", "wins": [1], "ranks": [[1, 2]]}]}`,
			"validated after pending": `{"activities": [{"id": "tennis"}], "submissions": [
				{"activity": "tennis", "submitted_at": "2024-01-01T09:00:00Z"},
				{"activity": "tennis", "submitted_at": "2024-01-01T10:00:00Z", "status": "validated"}]}`,
		}

		convey.Convey("Then Load reports ErrInvalidFixture for each", func() {
			for name, body := range cases {
				_, err := fixtures.Load(strings.NewReader(body))
				convey.So(errors.Is(err, fixtures.ErrInvalidFixture), convey.ShouldBeTrue)
				if !errors.Is(err, fixtures.ErrInvalidFixture) {
					t.Logf("case %q: %v", name, err)
				}
			}
		})
	})

	convey.Convey("Given a missing seed file", t, func() {
		_, err := fixtures.LoadFile("testdata/does-not-exist.json")

		convey.Convey("Then the open error surfaces", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRandom(t *testing.T) {
	convey.Convey("Given a free-for-all activity and six players", t, func() {
		act := model.NewActivity("football")
		act.MaxPlayersPerTeam = 3
		players := []model.PlayerID{1, 2, 3, 4, 5, 6}
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		a := fixtures.Random(7, act, players, 50, start)
		b := fixtures.Random(7, act, players, 50, start)

		convey.Convey("Then the same seed gives the same history", func() {
			convey.So(a, convey.ShouldResemble, b)
			convey.So(fixtures.Random(8, act, players, 50, start), convey.ShouldNotResemble, a)
		})

		convey.Convey("Then every submission fits the roster", func() {
			convey.So(len(a), convey.ShouldEqual, 50)
			for i, sub := range a {
				convey.So(sub.SubmittedAt, convey.ShouldEqual, start.Add(time.Duration(i)*time.Minute))
				convey.So(len(sub.Teams), convey.ShouldBeGreaterThanOrEqualTo, 2)

				seen := make(map[model.PlayerID]bool)
				for _, team := range sub.Teams {
					convey.So(len(team), convey.ShouldBeBetweenOrEqual, 1, 3)
					for _, p := range team {
						convey.So(seen[p], convey.ShouldBeFalse)
						seen[p] = true
					}
				}
				for _, m := range sub.Matches {
					convey.So(len(m.Ranks), convey.ShouldEqual, len(sub.Teams))
				}
			}
		})
	})
}
