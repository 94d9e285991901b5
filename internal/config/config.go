// Package config defines the engine configuration and its loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and the environment.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/okian/skillboard/internal/domain/model"
)

// Store drivers understood by the application.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text, json or tint.
	LogFormat string `koanf:"log_format"`

	// LogFile, when set, also writes logs to a rotating file.
	LogFile string `koanf:"log_file"`

	// MetricsAddr exposes /metrics on this address when non-empty, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// StoreDriver picks the persistence backend: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the sqlite path or postgres connection string.
	StoreDSN string `koanf:"store_dsn"`

	// WorkerCount sets the number of activity shards in the job pool.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds each shard's job queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets the size of the submission idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RebuildParallelism bounds concurrent activities in rebuild-all.
	RebuildParallelism int `koanf:"rebuild_parallelism"`

	// MaxLeaderboardLimit caps leaderboard queries.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// HistoryMaxLen is the default length of a progression chart.
	HistoryMaxLen int `koanf:"history_max_len"`

	// DefaultSkill holds the rating parameters activities inherit.
	DefaultSkill SkillConfig `koanf:"default_skill"`

	// Activities registered at startup, keyed by activity id.
	Activities map[string]ActivityConfig `koanf:"activities"`
}

// SkillConfig mirrors model.SkillType.
type SkillConfig struct {
	InitialMean        float64 `koanf:"initial_mean"`
	InitialUncertainty float64 `koanf:"initial_uncertainty"`
	Beta               float64 `koanf:"beta"`
	Tau                float64 `koanf:"tau"`
	DrawProbability    float64 `koanf:"draw_probability"`
	MinSkill           float64 `koanf:"min_skill"`
	MaxSkill           float64 `koanf:"max_skill"`
}

// SkillOverride replaces only the parameters that are set.
type SkillOverride struct {
	InitialMean        *float64 `koanf:"initial_mean"`
	InitialUncertainty *float64 `koanf:"initial_uncertainty"`
	Beta               *float64 `koanf:"beta"`
	Tau                *float64 `koanf:"tau"`
	DrawProbability    *float64 `koanf:"draw_probability"`
	MinSkill           *float64 `koanf:"min_skill"`
	MaxSkill           *float64 `koanf:"max_skill"`
}

// ActivityConfig describes one activity. Zero maxima mean unbounded.
type ActivityConfig struct {
	Name              string         `koanf:"name"`
	About             string         `koanf:"about"`
	MinTeamsPerMatch  int            `koanf:"min_teams"`
	MaxTeamsPerMatch  int            `koanf:"max_teams"`
	MinPlayersPerTeam int            `koanf:"min_players"`
	MaxPlayersPerTeam int            `koanf:"max_players"`
	Skill             *SkillOverride `koanf:"skill"`
}

// New creates a Config populated with defaults.
func New() *Config {
	st := model.DefaultSkillType()
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		StoreDriver:         DriverMemory,
		WorkerCount:         runtime.NumCPU(),
		QueueSize:           1024,
		DedupeSize:          50_000,
		RebuildParallelism:  4,
		MaxLeaderboardLimit: 100,
		HistoryMaxLen:       500,
		DefaultSkill: SkillConfig{
			InitialMean:        st.InitialMean,
			InitialUncertainty: st.InitialUncertainty,
			Beta:               st.Beta,
			Tau:                st.Tau,
			DrawProbability:    st.DrawProbability,
			MinSkill:           st.MinSkill,
			MaxSkill:           st.MaxSkill,
		},
		Activities: map[string]ActivityConfig{},
	}
}

// SkillType converts the configured defaults into a model.SkillType.
func (c SkillConfig) SkillType() model.SkillType {
	return model.SkillType{
		InitialMean:        c.InitialMean,
		InitialUncertainty: c.InitialUncertainty,
		Beta:               c.Beta,
		Tau:                c.Tau,
		DrawProbability:    c.DrawProbability,
		MinSkill:           c.MinSkill,
		MaxSkill:           c.MaxSkill,
	}
}

func (o *SkillOverride) apply(st model.SkillType) model.SkillType {
	if o == nil {
		return st
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&st.InitialMean, o.InitialMean)
	set(&st.InitialUncertainty, o.InitialUncertainty)
	set(&st.Beta, o.Beta)
	set(&st.Tau, o.Tau)
	set(&st.DrawProbability, o.DrawProbability)
	set(&st.MinSkill, o.MinSkill)
	set(&st.MaxSkill, o.MaxSkill)
	return st
}

// ActivityModels returns the configured activities sorted by id.
func (c *Config) ActivityModels() ([]model.Activity, error) {
	ids := make([]string, 0, len(c.Activities))
	for id := range c.Activities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	base := c.DefaultSkill.SkillType()
	out := make([]model.Activity, 0, len(ids))
	for _, id := range ids {
		ac := c.Activities[id]
		a := model.NewActivity(model.ActivityID(id))
		a.Skill = ac.Skill.apply(base)
		if ac.Name != "" {
			a.Name = ac.Name
		}
		a.About = ac.About
		if ac.MinTeamsPerMatch > 0 {
			a.MinTeamsPerMatch = ac.MinTeamsPerMatch
		}
		a.MaxTeamsPerMatch = ac.MaxTeamsPerMatch
		if ac.MinPlayersPerTeam > 0 {
			a.MinPlayersPerTeam = ac.MinPlayersPerTeam
		}
		a.MaxPlayersPerTeam = ac.MaxPlayersPerTeam
		if err := a.Skill.Validate(); err != nil {
			return nil, fmt.Errorf("%w: activity %q: %w", ErrInvalidConfig, id, err)
		}
		if a.MaxTeamsPerMatch > 0 && a.MaxTeamsPerMatch < a.MinTeamsPerMatch {
			return nil, fmt.Errorf("%w: activity %q: max_teams below min_teams", ErrInvalidConfig, id)
		}
		if a.MaxPlayersPerTeam > 0 && a.MaxPlayersPerTeam < a.MinPlayersPerTeam {
			return nil, fmt.Errorf("%w: activity %q: max_players below min_players", ErrInvalidConfig, id)
		}
		out = append(out, a)
	}
	return out, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn must not be empty for %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if err := c.DefaultSkill.SkillType().Validate(); err != nil {
		return fmt.Errorf("%w: default_skill: %w", ErrInvalidConfig, err)
	}
	_, err := c.ActivityModels()
	return err
}
