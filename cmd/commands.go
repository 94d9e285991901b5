package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/skillboard/internal/config"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/engine"
	"github.com/okian/skillboard/internal/fixtures"
)

const dateLayout = "2006-01-02"

// cli holds the persistent flags shared by every command.
type cli struct {
	envFile string
	cfgFile string
}

// action is a command body that runs against a started environment.
type action func(cmd *cobra.Command, env *runtimeEnv) error

// with builds the environment, runs fn and always tears the environment down,
// including when fn fails.
func (c *cli) with(fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		env, err := setup(cmd.Context(), c.envFile, c.cfgFile)
		if err != nil {
			return err
		}
		defer env.close()
		return fn(cmd, env)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "skillboard",
		Short: "Skill ratings for players across activities",
		Long: `skillboard rates players from validated match results.

Sessions are submitted as pending, validated in chronological order per
activity and rated with TrueSkill. Ratings and the skill history ledger
can be rebuilt from the validated sessions at any time.

Example:
  skillboard seed --file fixture.json
  skillboard validate --sessions 12,13
  skillboard rebuild --activity tennis --year 2024
  skillboard leaderboard --activity tennis --limit 10`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		c.serveCmd(),
		c.validateCmd(),
		c.invalidateCmd(),
		c.replacePlayerCmd(),
		c.rebuildCmd(),
		c.rebuildAllCmd(),
		c.leaderboardCmd(),
		c.historyCmd(),
		c.seedCmd(),
	)
	return root
}

func engineOptions(cfg *config.Config) []engine.Option {
	return []engine.Option{engine.WithRebuildParallelism(cfg.RebuildParallelism)}
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the rating workers and the metrics listener until interrupted",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			return serve(cmd.Context(), env)
		}),
	}
}

func (c *cli) validateCmd() *cobra.Command {
	var sessions string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate pending sessions and rate them",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			ids, err := parseSessionIDs(sessions)
			if err != nil {
				return err
			}
			report, err := env.svc.Validate(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		}),
	}
	cmd.Flags().StringVar(&sessions, "sessions", "", "comma separated session ids")
	_ = cmd.MarkFlagRequired("sessions")
	return cmd
}

func (c *cli) invalidateCmd() *cobra.Command {
	var sessions string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Reject pending sessions; they are never rated",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			ids, err := parseSessionIDs(sessions)
			if err != nil {
				return err
			}
			if err := env.svc.Invalidate(cmd.Context(), ids); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "invalidated %d sessions\n", len(ids))
			return err
		}),
	}
	cmd.Flags().StringVar(&sessions, "sessions", "", "comma separated session ids")
	_ = cmd.MarkFlagRequired("sessions")
	return cmd
}

func (c *cli) replacePlayerCmd() *cobra.Command {
	var (
		sessions string
		from, to int64
	)
	cmd := &cobra.Command{
		Use:   "replace-player",
		Short: "Correct a mistaken submission by replacing a player in pending sessions",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			ids, err := parseSessionIDs(sessions)
			if err != nil {
				return err
			}
			n, err := env.svc.ReplacePlayer(cmd.Context(), ids, model.PlayerID(from), model.PlayerID(to))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "successfully changed %d submissions\n", n)
			return err
		}),
	}
	cmd.Flags().StringVar(&sessions, "sessions", "", "comma separated session ids")
	cmd.Flags().Int64Var(&from, "from", 0, "player id to replace")
	cmd.Flags().Int64Var(&to, "to", 0, "replacement player id")
	for _, f := range []string{"sessions", "from", "to"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (c *cli) rebuildCmd() *cobra.Command {
	var (
		activity string
		since    string
		year     int
	)
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Discard and recompute an activity's ratings and skill history",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			from, err := cutoff(since, year)
			if err != nil {
				return err
			}
			report, err := env.svc.Rebuild(cmd.Context(), model.ActivityID(activity), from)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		}),
	}
	cmd.Flags().StringVar(&activity, "activity", "", "activity id")
	cmd.Flags().StringVar(&since, "since", "", "only replay sessions submitted on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&year, "year", 0, "only replay sessions of this year onwards")
	cmd.MarkFlagsMutuallyExclusive("since", "year")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func (c *cli) rebuildAllCmd() *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "rebuild-all",
		Short: "Recompute every activity, several in parallel",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			from, err := cutoff(since, 0)
			if err != nil {
				return err
			}
			reports, err := env.svc.RebuildAll(cmd.Context(), from)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reports)
		}),
	}
	cmd.Flags().StringVar(&since, "since", "", "only replay sessions submitted on or after this date (YYYY-MM-DD)")
	return cmd
}

func (c *cli) leaderboardCmd() *cobra.Command {
	var (
		activity string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the best active players of an activity",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			entries, err := env.svc.Leaderboard(cmd.Context(), model.ActivityID(activity), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		}),
	}
	cmd.Flags().StringVar(&activity, "activity", "", "activity id")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of entries")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var (
		activity string
		player   int64
		maxLen   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a player's summary and skill progression",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			ctx := cmd.Context()
			summary, err := env.svc.PlayerSummary(ctx, model.ActivityID(activity), model.PlayerID(player))
			if err != nil {
				return err
			}
			points, err := env.svc.Progression(ctx, model.ActivityID(activity), model.PlayerID(player), maxLen)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"player":      summary,
				"progression": points,
			})
		}),
	}
	cmd.Flags().StringVar(&activity, "activity", "", "activity id")
	cmd.Flags().Int64Var(&player, "player", 0, "player id")
	cmd.Flags().IntVar(&maxLen, "max", 0, "keep only the last N points (default history_max_len)")
	_ = cmd.MarkFlagRequired("activity")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

func (c *cli) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load activities, players and sessions from a JSON fixture",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, env *runtimeEnv) error {
			f, err := fixtures.LoadFile(file)
			if err != nil {
				return err
			}
			report, err := f.Apply(cmd.Context(), env.svc, env.cfg.DefaultSkill.SkillType())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func parseSessionIDs(s string) ([]model.SessionID, error) {
	var out []model.SessionID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid session id %q", part)
		}
		out = append(out, model.SessionID(id))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no session ids given")
	}
	return out, nil
}

// cutoff turns --since or --year into the rebuild start; zero means everything.
func cutoff(since string, year int) (time.Time, error) {
	switch {
	case since != "":
		t, err := time.Parse(dateLayout, since)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --since %q: %w", since, err)
		}
		return t.UTC(), nil
	case year != 0:
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, nil
	}
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
