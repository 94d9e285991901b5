package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/skillboard/internal/adapters/repository"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/ordering"
	"github.com/okian/skillboard/pkg/logger"
	"github.com/okian/skillboard/pkg/metrics"
)

// ValidationReport describes a validated batch.
type ValidationReport struct {
	Activity model.ActivityID
	Sessions []model.SessionID // processing order
	Matches  int
	History  int
	Ratings  model.Ratings // post-batch beliefs of the batch's participants
}

// Validate marks pending sessions as validated and rates them.
//
// The batch must be the chronologically first pending sessions of a single
// activity. Status change, ratings and history are committed together; on
// any error nothing changes.
func (e *Engine) Validate(ctx context.Context, ids []model.SessionID) (ValidationReport, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ValidationReport{}, nil
	}

	activityID, err := e.batchActivity(ctx, ids)
	if err != nil {
		return ValidationReport{}, err
	}

	unlock := e.locks.lock(activityID)
	defer unlock()

	// Reload under the lock: another reviewer may have resolved them meanwhile.
	sessions, err := e.pendingBatch(ctx, activityID, ids)
	if err != nil {
		return ValidationReport{}, err
	}

	pending, err := e.store.SessionsByStatus(ctx, activityID, model.Pending)
	if err != nil {
		return ValidationReport{}, fmt.Errorf("read pending sessions of %q: %w", activityID, err)
	}
	if err := ordering.CheckPrefix(sessions, pending); err != nil {
		metrics.RecordRejection("ordering_violation")
		e.logger.Warn(ctx, "validation rejected", logger.String("activity", string(activityID)), logger.Error(err))
		return ValidationReport{}, err
	}
	validated, err := e.store.SessionsByStatus(ctx, activityID, model.Validated)
	if err != nil {
		return ValidationReport{}, fmt.Errorf("read validated sessions of %q: %w", activityID, err)
	}
	if err := ordering.CheckFollows(sessions, validated); err != nil {
		metrics.RecordRejection("backdated_session")
		e.logger.Warn(ctx, "validation rejected", logger.String("activity", string(activityID)), logger.Error(err))
		return ValidationReport{}, err
	}

	for i := range sessions {
		sessions[i].Status = model.Validated
	}
	out, err := e.apply(ctx, activityID, sessions, nil, ids)
	if err != nil {
		return ValidationReport{}, err
	}

	metrics.RecordSessionsValidated(string(activityID), len(ids))
	return ValidationReport{
		Activity: activityID,
		Sessions: out.sessions,
		Matches:  out.matches,
		History:  len(out.history),
		Ratings:  out.changed(),
	}, nil
}

// Invalidate rejects pending sessions. Invalidated sessions are never rated
// and never block validation of later sessions.
func (e *Engine) Invalidate(ctx context.Context, ids []model.SessionID) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	activityID, err := e.batchActivity(ctx, ids)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(activityID)
	defer unlock()

	if _, err := e.pendingBatch(ctx, activityID, ids); err != nil {
		return err
	}
	if err := e.store.SetStatus(ctx, ids, model.Invalidated); err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}

	metrics.RecordSessionsInvalidated(string(activityID), len(ids))
	e.logger.Info(ctx, "sessions invalidated",
		logger.String("activity", string(activityID)),
		logger.Int("sessions", len(ids)),
	)
	return nil
}

// ReplacePlayer fixes a roster mistake in pending sessions by swapping from
// for to. It returns the number of memberships changed.
func (e *Engine) ReplacePlayer(ctx context.Context, ids []model.SessionID, from, to model.PlayerID) (int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 || from == to {
		return 0, nil
	}

	if _, err := e.store.Player(ctx, to); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("%w: %d", ErrUnknownPlayer, to)
		}
		return 0, fmt.Errorf("read player %d: %w", to, err)
	}

	activityID, err := e.batchActivity(ctx, ids)
	if err != nil {
		return 0, err
	}

	unlock := e.locks.lock(activityID)
	defer unlock()

	if _, err := e.pendingBatch(ctx, activityID, ids); err != nil {
		return 0, err
	}
	n, err := e.store.ReplacePlayer(ctx, ids, from, to)
	if err != nil {
		return 0, fmt.Errorf("replace player %d: %w", from, err)
	}
	return n, nil
}

// batchActivity loads ids and returns their single activity.
func (e *Engine) batchActivity(ctx context.Context, ids []model.SessionID) (model.ActivityID, error) {
	sessions, err := e.store.Sessions(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("read sessions: %w", err)
	}
	activityID, err := ordering.CommonActivity(sessions)
	if err != nil {
		metrics.RecordRejection("cross_activity")
		return "", err
	}
	return activityID, nil
}

// pendingBatch reloads ids and requires every one to still be pending in activityID.
func (e *Engine) pendingBatch(ctx context.Context, activityID model.ActivityID, ids []model.SessionID) ([]model.Session, error) {
	sessions, err := e.store.Sessions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	if err := sameActivity(activityID, sessions); err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Status != model.Pending {
			metrics.RecordRejection("already_resolved")
			return nil, fmt.Errorf("%w: session %d is %s", ErrAlreadyResolved, sessions[i].ID, sessions[i].Status)
		}
	}
	return sessions, nil
}

func uniqueIDs(ids []model.SessionID) []model.SessionID {
	seen := make(map[model.SessionID]struct{}, len(ids))
	out := make([]model.SessionID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
