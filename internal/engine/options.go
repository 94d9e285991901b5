package engine

import (
	"time"

	"github.com/okian/skillboard/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRaterFactory replaces the TrueSkill rater.
func WithRaterFactory(f RaterFactory) Option {
	return func(e *Engine) {
		if f != nil {
			e.newRater = f
		}
	}
}

// WithRebuildParallelism bounds how many activities RebuildAll recomputes at once.
func WithRebuildParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithClock sets the time source used for submissions without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
