// Package engine turns validated sessions into ratings and skill history.
//
// Apply (incremental update) and Rebuild (full recompute) share one replay
// function; they differ only in their input sessions and starting ratings.
// Every run is computed in memory and persisted with a single atomic commit,
// so a failed run leaves the store as it was.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/skillboard/internal/adapters/repository"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/trueskill"
	"github.com/okian/skillboard/pkg/logger"
)

const defaultRebuildParallelism = 4

// Rater is the multi-team rating update function.
type Rater interface {
	// Rate returns the post-match beliefs, same shape as teams.
	// ranks[i] is the placement of teams[i]; lower is better, ties draw.
	Rate(teams [][]model.Belief, ranks []int) ([][]model.Belief, error)
}

// RaterFactory builds the rater for an activity's skill parameters.
type RaterFactory func(st model.SkillType) Rater

// TrueSkill is the default rater factory.
func TrueSkill(st model.SkillType) Rater {
	return trueskill.New(trueskill.WithSkillType(st))
}

// Engine serializes rating work per activity on top of a store.
type Engine struct {
	store       repository.Store
	newRater    RaterFactory
	locks       activityLocks
	parallelism int
	now         func() time.Time
	logger      logger.Logger
}

// New creates an engine over store.
func New(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		newRater:    TrueSkill,
		parallelism: defaultRebuildParallelism,
		now:         time.Now,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying store.
func (e *Engine) Store() repository.Store {
	return e.store
}

// Rating returns the player's current belief, or the activity prior when the
// player has never been rated.
func (e *Engine) Rating(ctx context.Context, activityID model.ActivityID, player model.PlayerID) (model.Belief, error) {
	act, err := e.activity(ctx, activityID)
	if err != nil {
		return model.Belief{}, err
	}
	b, ok, err := e.store.Rating(ctx, activityID, player)
	if err != nil {
		return model.Belief{}, fmt.Errorf("read rating: %w", err)
	}
	if !ok {
		return act.Skill.Prior(), nil
	}
	return b, nil
}

func (e *Engine) activity(ctx context.Context, id model.ActivityID) (model.Activity, error) {
	act, err := e.store.Activity(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Activity{}, fmt.Errorf("%w: %q", ErrUnknownActivity, id)
	}
	if err != nil {
		return model.Activity{}, fmt.Errorf("read activity %q: %w", id, err)
	}
	return act, nil
}

// activityLocks hands out one mutex per activity.
type activityLocks struct {
	mu    sync.Mutex
	locks map[model.ActivityID]*sync.Mutex
}

func (l *activityLocks) lock(id model.ActivityID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[model.ActivityID]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
