package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/skillboard/internal/config"
	"github.com/okian/skillboard/internal/domain/types"
	"github.com/okian/skillboard/internal/fixtures"
)

const fixture = `{
  "activities": [{"id": "tennis", "name": "Tennis"}],
  "players": [{"id": 1, "name": "Zeus"}, {"id": 2, "name": "Hades"}],
  "submissions": [
    {"activity": "tennis", "submitted_at": "2024-01-01T10:00:00Z", "teams": [[1], [2]], "wins": [1, 1], "status": "validated"},
    {"activity": "tennis", "submitted_at": "2024-01-02T10:00:00Z", "teams": [[1], [2]], "wins": [1]}
  ]
}`

// run executes the root command with args and returns what it printed.
func run(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigFromEnvironment(t *testing.T) {
	convey.Convey("Given SKILLBOARD_ variables", t, func() {
		t.Setenv("SKILLBOARD_WORKER_COUNT", "3")
		t.Setenv("SKILLBOARD_QUEUE_SIZE", "64")
		t.Setenv("SKILLBOARD_LOG_LEVEL", "debug")

		convey.Convey("When the configuration is loaded", func() {
			cfg, err := config.Load(context.Background())

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(len(engineOptions(cfg)), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then every operation has a subcommand", func() {
			var names []string
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			for _, want := range []string{
				"serve", "validate", "invalidate", "replace-player", "rebuild",
				"rebuild-all", "leaderboard", "history", "seed",
			} {
				convey.So(names, convey.ShouldContain, want)
			}
		})

		convey.Convey("When a required flag is missing", func() {
			_, err := run("leaderboard")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestSeedThenQuery(t *testing.T) {
	convey.Convey("Given a sqlite store and a fixture file", t, func() {
		dir := t.TempDir()
		file := filepath.Join(dir, "seed.json")
		convey.So(os.WriteFile(file, []byte(fixture), 0o600), convey.ShouldBeNil)

		t.Setenv("SKILLBOARD_STORE_DRIVER", config.DriverSQLite)
		t.Setenv("SKILLBOARD_STORE_DSN", filepath.Join(dir, "skillboard.db"))
		t.Setenv("SKILLBOARD_WORKER_COUNT", "2")
		t.Setenv("SKILLBOARD_LOG_LEVEL", "error")

		out, err := run("seed", "--file", file)
		convey.So(err, convey.ShouldBeNil)

		var rep fixtures.Report
		convey.So(json.Unmarshal([]byte(out), &rep), convey.ShouldBeNil)
		convey.So(rep, convey.ShouldResemble, fixtures.Report{Activities: 1, Players: 2, Sessions: 2, Validated: 1})

		convey.Convey("When the leaderboard is printed by a later run", func() {
			out, err := run("leaderboard", "--activity", "tennis", "--limit", "5")

			convey.Convey("Then Zeus leads Hades", func() {
				convey.So(err, convey.ShouldBeNil)
				var entries []types.Entry
				convey.So(json.Unmarshal([]byte(out), &entries), convey.ShouldBeNil)
				convey.So(len(entries), convey.ShouldEqual, 2)
				convey.So(entries[0].Name, convey.ShouldEqual, "Zeus")
				convey.So(entries[0].Rank, convey.ShouldEqual, 1)
				convey.So(entries[0].Skill, convey.ShouldBeGreaterThan, entries[1].Skill)
			})
		})

		convey.Convey("When the pending session is validated", func() {
			_, err := run("validate", "--sessions", "2")
			convey.So(err, convey.ShouldBeNil)
			out, err := run("history", "--activity", "tennis", "--player", "1")

			convey.Convey("Then Zeus has three rated matches", func() {
				convey.So(err, convey.ShouldBeNil)
				var got struct {
					Player      types.PlayerSummary   `json:"player"`
					Progression []types.ProgressPoint `json:"progression"`
				}
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got.Player.MatchesPlayed, convey.ShouldEqual, 3)
				convey.So(len(got.Progression), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When tennis is rebuilt for the second day only", func() {
			_, err := run("validate", "--sessions", "2")
			convey.So(err, convey.ShouldBeNil)
			out, err := run("rebuild", "--activity", "tennis", "--since", "2024-01-02")

			convey.Convey("Then only that session is replayed", func() {
				convey.So(err, convey.ShouldBeNil)
				var rep struct {
					Sessions int `json:"Sessions"`
					Matches  int `json:"Matches"`
				}
				convey.So(json.Unmarshal([]byte(out), &rep), convey.ShouldBeNil)
				convey.So(rep.Sessions, convey.ShouldEqual, 1)
				convey.So(rep.Matches, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestCutoff(t *testing.T) {
	convey.Convey("Given rebuild cutoffs", t, func() {
		convey.Convey("Then a date, a year and nothing are understood", func() {
			d, err := cutoff("2024-03-05", 0)
			convey.So(err, convey.ShouldBeNil)
			convey.So(d, convey.ShouldEqual, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

			y, err := cutoff("", 2023)
			convey.So(err, convey.ShouldBeNil)
			convey.So(y, convey.ShouldEqual, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

			z, err := cutoff("", 0)
			convey.So(err, convey.ShouldBeNil)
			convey.So(z.IsZero(), convey.ShouldBeTrue)

			_, err = cutoff("yesterday", 0)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then session lists are parsed and checked", func() {
			ids, err := parseSessionIDs("3, 1,2")
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(ids), convey.ShouldEqual, 3)

			_, err = parseSessionIDs("1,x")
			convey.So(err, convey.ShouldNotBeNil)
			_, err = parseSessionIDs("")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
