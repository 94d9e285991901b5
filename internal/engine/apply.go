package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/skillboard/internal/adapters/repository"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/ordering"
	"github.com/okian/skillboard/pkg/logger"
	"github.com/okian/skillboard/pkg/metrics"
)

// Apply rates validated sessions that are not yet reflected in the store and
// persists the result.
//
// When current is nil the starting ratings are read from the store, with the
// activity prior for players that have none. Otherwise current must hold every
// participant. The returned map is current (or the derived start) advanced by
// the sessions; current itself is not modified. An empty batch returns a copy
// of current without touching the store.
func (e *Engine) Apply(ctx context.Context, activityID model.ActivityID, sessions []model.Session, current model.Ratings) (model.Ratings, error) {
	if len(sessions) == 0 {
		return current.Clone(), nil
	}
	if err := sameActivity(activityID, sessions); err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Status != model.Validated {
			metrics.RecordRejection("not_validated")
			return nil, fmt.Errorf("%w: session %d is %s", ErrNotValidated, sessions[i].ID, sessions[i].Status)
		}
	}

	unlock := e.locks.lock(activityID)
	defer unlock()

	out, err := e.apply(ctx, activityID, sessions, current, nil)
	if err != nil {
		return nil, err
	}
	return out.ratings, nil
}

// apply runs one incremental update under the activity lock and commits it,
// flipping validate to Validated in the same commit.
func (e *Engine) apply(ctx context.Context, activityID model.ActivityID, sessions []model.Session, current model.Ratings, validate []model.SessionID) (*outcome, error) {
	start := time.Now()
	defer func() { metrics.RecordUpdateDuration("apply", time.Since(start)) }()

	act, err := e.activity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	from := current
	if from == nil {
		if from, err = e.startingRatings(ctx, act, sessions); err != nil {
			return nil, err
		}
	}

	out, err := replay(act, e.newRater(act.Skill), sessions, from)
	if err != nil {
		metrics.RecordRejection("malformed_match")
		return nil, err
	}

	err = e.store.Commit(ctx, repository.Changeset{
		Activity: activityID,
		Ratings:  out.changed(),
		History:  out.history,
		Validate: validate,
	})
	if err != nil {
		return nil, fmt.Errorf("commit ratings for %q: %w", activityID, err)
	}

	metrics.RecordMatchesRated(string(activityID), out.matches)
	metrics.RecordHistoryWritten(string(activityID), len(out.history))
	e.logger.Info(ctx, "ratings updated",
		logger.String("activity", string(activityID)),
		logger.Int("sessions", len(out.sessions)),
		logger.Int("matches", out.matches),
		logger.Int("players", len(out.touched)),
	)
	return out, nil
}

// startingRatings reads the stored belief of every participant, defaulting to
// the activity prior.
func (e *Engine) startingRatings(ctx context.Context, act model.Activity, sessions []model.Session) (model.Ratings, error) {
	stored, err := e.store.Ratings(ctx, act.ID)
	if err != nil {
		return nil, fmt.Errorf("read ratings for %q: %w", act.ID, err)
	}
	prior := act.Skill.Prior()
	out := make(model.Ratings)
	for _, p := range participants(sessions) {
		if b, ok := stored[p]; ok {
			out[p] = b
		} else {
			out[p] = prior
		}
	}
	return out, nil
}

func sameActivity(activityID model.ActivityID, sessions []model.Session) error {
	got, err := ordering.CommonActivity(sessions)
	if err != nil {
		metrics.RecordRejection("cross_activity")
		return err
	}
	if got != activityID {
		metrics.RecordRejection("cross_activity")
		return fmt.Errorf("%w: sessions of %q submitted for %q", ErrCrossActivityBatch, got, activityID)
	}
	return nil
}
