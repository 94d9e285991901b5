package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/skillboard/internal/adapters/repository"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/pkg/logger"
	"github.com/okian/skillboard/pkg/metrics"
)

// RebuildReport summarizes a full recompute of one activity.
type RebuildReport struct {
	RunID    uuid.UUID
	Activity model.ActivityID
	Since    time.Time
	Sessions int
	Matches  int
	History  int
	Players  int
	Duration time.Duration
}

// Rebuild discards the activity's ratings and history and replays every
// validated session from the prior. A non-zero since keeps only sessions
// submitted at or after it; the replay still starts from the prior, so a
// dated rebuild acts as a season reset.
func (e *Engine) Rebuild(ctx context.Context, activityID model.ActivityID, since time.Time) (RebuildReport, error) {
	unlock := e.locks.lock(activityID)
	defer unlock()

	report, err := e.rebuild(ctx, activityID, since)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordRebuild(string(activityID), status)
	return report, err
}

func (e *Engine) rebuild(ctx context.Context, activityID model.ActivityID, since time.Time) (RebuildReport, error) {
	report := RebuildReport{RunID: uuid.New(), Activity: activityID, Since: since}
	started := time.Now()
	defer func() { metrics.RecordUpdateDuration("rebuild", time.Since(started)) }()

	act, err := e.activity(ctx, activityID)
	if err != nil {
		return report, err
	}

	validated, err := e.store.SessionsByStatus(ctx, activityID, model.Validated)
	if err != nil {
		return report, fmt.Errorf("read validated sessions of %q: %w", activityID, err)
	}
	eligible := validated[:0]
	for _, s := range validated {
		if since.IsZero() || !s.SubmittedAt.Before(since) {
			eligible = append(eligible, s)
		}
	}

	prior := act.Skill.Prior()
	start := make(model.Ratings)
	for _, p := range participants(eligible) {
		start[p] = prior
	}

	out, err := replay(act, e.newRater(act.Skill), eligible, start)
	if err != nil {
		metrics.RecordRejection("malformed_match")
		return report, err
	}

	err = e.store.Commit(ctx, repository.Changeset{
		Activity: activityID,
		Reset:    true,
		Ratings:  out.ratings,
		History:  out.history,
	})
	if err != nil {
		return report, fmt.Errorf("commit rebuild of %q: %w", activityID, err)
	}

	report.Sessions = len(out.sessions)
	report.Matches = out.matches
	report.History = len(out.history)
	report.Players = len(out.ratings)
	report.Duration = time.Since(started)

	metrics.RecordMatchesRated(string(activityID), out.matches)
	metrics.RecordHistoryWritten(string(activityID), len(out.history))
	e.logger.Info(ctx, "activity rebuilt",
		logger.String("run_id", report.RunID.String()),
		logger.String("activity", string(activityID)),
		logger.Int("sessions", report.Sessions),
		logger.Int("matches", report.Matches),
		logger.Duration("took", report.Duration),
	)
	return report, nil
}

// RebuildAll rebuilds every activity, several at a time. The first failure
// cancels the remaining rebuilds; reports are ordered like Activities.
func (e *Engine) RebuildAll(ctx context.Context, since time.Time) ([]RebuildReport, error) {
	acts, err := e.store.Activities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	reports := make([]RebuildReport, len(acts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, a := range acts {
		i, a := i, a
		g.Go(func() error {
			r, err := e.Rebuild(gctx, a.ID, since)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
