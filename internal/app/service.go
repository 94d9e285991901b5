// Package service wires the store, the rating engine, the leaderboard index
// and the activity-sharded job pool into the operations exposed by the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/okian/skillboard/internal/adapters/leaderboard"
	"github.com/okian/skillboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/skillboard/internal/adapters/mq/worker"
	"github.com/okian/skillboard/internal/adapters/repository"
	"github.com/okian/skillboard/internal/domain/dedupe"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/ordering"
	"github.com/okian/skillboard/internal/domain/scoring"
	"github.com/okian/skillboard/internal/domain/types"
	"github.com/okian/skillboard/internal/engine"
	"github.com/okian/skillboard/pkg/logger"
	"github.com/okian/skillboard/pkg/metrics"
)

const (
	defaultQueueSize       = 1024
	defaultDedupeSize      = 50_000
	defaultLeaderboardCap  = 100
	defaultHistoryMaxLen   = 500
	defaultShutdownTimeout = 30 * time.Second
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted          = errors.New("service not started")
	ErrDuplicateSubmission = dedupe.ErrDuplicate
	ErrInvalidLimit        = leaderboard.ErrInvalidLimit
)

// Service runs rating work for every activity.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  repository.Store
	engine *engine.Engine
	board  *leaderboard.Index
	dedupe dedupe.Tracker
	pool   *workerpool.Pool

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	maxLimit      int
	historyMaxLen int
	activities    []model.Activity
	engineOpts    []engine.Option
	ownsStore     bool

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Without it Start uses a MemoryStore.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of activity shards.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the job queue capacity of every shard.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxLeaderboardLimit caps the size of leaderboard queries.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithHistoryMaxLen sets the default length of progression charts.
func WithHistoryMaxLen(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyMaxLen = n
		}
	}
}

// WithActivities registers activities when the service starts.
func WithActivities(acts ...model.Activity) Option {
	return func(s *Service) {
		s.activities = append(s.activities, acts...)
	}
}

// WithEngineOptions passes options through to the rating engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		maxLimit:      defaultLeaderboardCap,
		historyMaxLen: defaultHistoryMaxLen,
		logger:        nil, // replaced on Start
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the configured activities, loads the leaderboard from the
// stored ratings and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting rating service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.ownsStore = true
		s.logger.Info(ctx, "using in-memory store")
	}
	for _, a := range s.activities {
		if err := s.store.SaveActivity(ctx, a); err != nil {
			return fmt.Errorf("register activity %q: %w", a.ID, err)
		}
	}

	opts := append([]engine.Option{engine.WithLogger(s.logger.Named("engine"))}, s.engineOpts...)
	s.engine = engine.New(s.store, opts...)
	s.board = leaderboard.New()
	s.dedupe = dedupe.NewMemoryTracker(dedupe.WithMaxKeys(s.dedupeSize))

	acts, err := s.store.Activities(ctx)
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	for _, a := range acts {
		if err := s.reloadBoard(ctx, a); err != nil {
			return err
		}
	}

	// Workers outlive the Start context; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = workerpool.NewPool(s.workerCount, workerpool.HandlerFunc(s.handle),
		workerpool.WithQueueSize(s.queueSize),
		workerpool.WithPoolLogger(s.logger.Named("pool")),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("activities", len(acts)),
	)
	return nil
}

// Stop drains the job queues and closes a store the service created itself.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping rating service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "rating service stopped")
}

// Engine returns the rating engine; nil before Start.
func (s *Service) Engine() *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SaveActivity registers or updates an activity.
func (s *Service) SaveActivity(ctx context.Context, a model.Activity) error {
	if err := s.running(); err != nil {
		return err
	}
	if err := a.Skill.Validate(); err != nil {
		return fmt.Errorf("activity %q: %w", a.ID, err)
	}
	if err := s.store.SaveActivity(ctx, a); err != nil {
		return err
	}
	return s.reloadBoard(ctx, a)
}

// SavePlayer creates or updates a player.
func (s *Service) SavePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if err := s.running(); err != nil {
		return model.Player{}, err
	}
	return s.store.SavePlayer(ctx, p)
}

// Submit records a pending session.
func (s *Service) Submit(ctx context.Context, sub engine.Submission) (model.Session, error) {
	if err := s.running(); err != nil {
		return model.Session{}, err
	}
	return s.engine.Submit(ctx, sub)
}

// SubmitOnce records a pending session unless key was already used. A failed
// submission releases the key so the client can retry.
func (s *Service) SubmitOnce(ctx context.Context, key string, sub engine.Submission) (model.Session, error) {
	if err := s.running(); err != nil {
		return model.Session{}, err
	}
	if key != "" && s.dedupe.Claim(ctx, key) {
		metrics.RecordSessionDuplicate()
		s.logger.Debug(ctx, "duplicate submission skipped", logger.String("key", key))
		return model.Session{}, fmt.Errorf("%w: %s", ErrDuplicateSubmission, key)
	}
	created, err := s.engine.Submit(ctx, sub)
	if err != nil && key != "" {
		s.dedupe.Release(ctx, key)
	}
	return created, err
}

// Validate rates the given pending sessions on their activity's worker.
func (s *Service) Validate(ctx context.Context, ids []model.SessionID) (engine.ValidationReport, error) {
	v, err := s.dispatch(ctx, queue.KindValidate, ids, time.Time{})
	if err != nil {
		return engine.ValidationReport{}, err
	}
	return v.(engine.ValidationReport), nil
}

// Invalidate rejects the given pending sessions on their activity's worker.
func (s *Service) Invalidate(ctx context.Context, ids []model.SessionID) error {
	_, err := s.dispatch(ctx, queue.KindInvalidate, ids, time.Time{})
	return err
}

// ReplacePlayer fixes a roster mistake in pending sessions.
func (s *Service) ReplacePlayer(ctx context.Context, ids []model.SessionID, from, to model.PlayerID) (int, error) {
	if err := s.running(); err != nil {
		return 0, err
	}
	return s.engine.ReplacePlayer(ctx, ids, from, to)
}

// Rebuild recomputes one activity on its worker.
func (s *Service) Rebuild(ctx context.Context, activity model.ActivityID, since time.Time) (engine.RebuildReport, error) {
	if err := s.running(); err != nil {
		return engine.RebuildReport{}, err
	}
	job := queue.NewJob(queue.KindRebuild, activity)
	job.Since = since
	v, err := s.pool.Do(ctx, job)
	if err != nil {
		return engine.RebuildReport{}, err
	}
	return v.(engine.RebuildReport), nil
}

// RebuildAll recomputes every activity; activities run in parallel.
func (s *Service) RebuildAll(ctx context.Context, since time.Time) ([]engine.RebuildReport, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	reports, err := s.engine.RebuildAll(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, r := range reports {
		act, err := s.store.Activity(ctx, r.Activity)
		if err != nil {
			return nil, err
		}
		if err := s.reloadBoard(ctx, act); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// dispatch routes a review job to the shard owning the sessions' activity.
func (s *Service) dispatch(ctx context.Context, kind queue.Kind, ids []model.SessionID, since time.Time) (any, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return engine.ValidationReport{}, nil
	}
	sessions, err := s.store.Sessions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	activity, err := ordering.CommonActivity(sessions)
	if err != nil {
		metrics.RecordRejection("cross_activity")
		return nil, err
	}

	job := queue.NewJob(kind, activity)
	job.Sessions = ids
	job.Since = since
	return s.pool.Do(ctx, job)
}

// handle runs one job on its shard's worker.
func (s *Service) handle(ctx context.Context, job queue.Job) (any, error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	switch job.Kind {
	case queue.KindValidate:
		report, err := s.engine.Validate(ctx, job.Sessions)
		if err != nil {
			return nil, err
		}
		act, err := s.store.Activity(ctx, report.Activity)
		if err != nil {
			return nil, err
		}
		s.board.Update(ctx, act.ID, report.Ratings, scoring.BoundsOf(act.Skill))
		return report, nil

	case queue.KindInvalidate:
		return nil, s.engine.Invalidate(ctx, job.Sessions)

	case queue.KindRebuild:
		report, err := s.engine.Rebuild(ctx, job.Activity, job.Since)
		if err != nil {
			return nil, err
		}
		act, err := s.store.Activity(ctx, job.Activity)
		if err != nil {
			return nil, err
		}
		if err := s.reloadBoard(ctx, act); err != nil {
			return nil, err
		}
		return report, nil

	default:
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (s *Service) reloadBoard(ctx context.Context, a model.Activity) error {
	ratings, err := s.store.Ratings(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("load ratings of %q: %w", a.ID, err)
	}
	s.board.Replace(ctx, a.ID, ratings, scoring.BoundsOf(a.Skill))
	return nil
}

// Leaderboard returns the best n active players of an activity, ranked by
// skill score. Equal scores share a rank.
func (s *Service) Leaderboard(ctx context.Context, activity model.ActivityID, n int) ([]types.Entry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if n < 1 || n > s.maxLimit {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLimit, n, s.maxLimit)
	}
	if _, err := s.store.Activity(ctx, activity); err != nil {
		return nil, err
	}
	return s.ranking(ctx, activity, n)
}

// ranking ranks the active players of an activity by skill score with
// competition ranks, stopping after limit entries; limit < 1 ranks everyone.
func (s *Service) ranking(ctx context.Context, activity model.ActivityID, limit int) ([]types.Entry, error) {
	total := s.board.Count(ctx, activity)
	if total == 0 {
		return []types.Entry{}, nil
	}
	ranked, err := s.board.TopN(ctx, activity, total)
	if err != nil {
		return nil, err
	}
	players, err := s.playerIndex(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = total
	}

	out := make([]types.Entry, 0, min(limit, len(ranked)))
	for _, e := range ranked {
		p, ok := players[e.Player]
		if !ok || !p.Active {
			continue
		}
		if len(out) == limit {
			break
		}
		rank := len(out) + 1
		if len(out) > 0 && out[len(out)-1].Skill == e.Skill {
			rank = out[len(out)-1].Rank
		}
		out = append(out, types.Entry{
			Rank:        rank,
			PlayerID:    int64(e.Player),
			Name:        p.Name,
			Skill:       e.Skill,
			Mean:        e.Belief.Mean,
			Uncertainty: e.Belief.Uncertainty,
		})
	}
	return out, nil
}

func (s *Service) playerIndex(ctx context.Context) (map[model.PlayerID]model.Player, error) {
	list, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make(map[model.PlayerID]model.Player, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

// Progression returns the player's post-match skill scores in chronological
// order, keeping only the last maxLen points. maxLen < 1 uses the configured
// default.
func (s *Service) Progression(ctx context.Context, activity model.ActivityID, player model.PlayerID, maxLen int) ([]types.ProgressPoint, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if maxLen < 1 {
		maxLen = s.historyMaxLen
	}
	act, err := s.store.Activity(ctx, activity)
	if err != nil {
		return nil, err
	}
	hist, err := s.store.History(ctx, activity, player)
	if err != nil {
		return nil, err
	}
	if len(hist) > maxLen {
		hist = hist[len(hist)-maxLen:]
	}

	bounds := scoring.BoundsOf(act.Skill)
	out := make([]types.ProgressPoint, len(hist))
	for i, h := range hist {
		out[i] = types.ProgressPoint{MatchID: int64(h.Match), Skill: scoring.Score(h.Belief, bounds)}
	}
	return out, nil
}

// PlayerSummary returns a player's belief, skill, rank and match count. The
// rank is the player's leaderboard rank; a player who never played or is
// inactive has none.
func (s *Service) PlayerSummary(ctx context.Context, activity model.ActivityID, player model.PlayerID) (types.PlayerSummary, error) {
	if err := s.running(); err != nil {
		return types.PlayerSummary{}, err
	}
	p, err := s.store.Player(ctx, player)
	if err != nil {
		return types.PlayerSummary{}, err
	}
	act, err := s.store.Activity(ctx, activity)
	if err != nil {
		return types.PlayerSummary{}, err
	}
	belief, err := s.engine.Rating(ctx, activity, player)
	if err != nil {
		return types.PlayerSummary{}, err
	}
	hist, err := s.store.History(ctx, activity, player)
	if err != nil {
		return types.PlayerSummary{}, err
	}

	out := types.PlayerSummary{
		PlayerID:      int64(p.ID),
		Name:          p.Name,
		Skill:         scoring.ForActivity(belief, act),
		Mean:          belief.Mean,
		Uncertainty:   belief.Uncertainty,
		MatchesPlayed: len(hist),
	}
	if !p.Active {
		return out, nil
	}
	if _, err := s.board.Rank(ctx, activity, player); err != nil {
		// Not on the board yet.
		return out, nil
	}
	ranked, err := s.ranking(ctx, activity, 0)
	if err != nil {
		return types.PlayerSummary{}, err
	}
	for _, e := range ranked {
		if e.PlayerID == int64(player) {
			out.Rank = e.Rank
			break
		}
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	acts, err := s.store.Activities(ctx)
	if err != nil {
		s.logger.Warn(ctx, "stats: list activities", logger.Error(err))
		return stats
	}
	ranked := make(map[string]int, len(acts))
	names := make([]string, 0, len(acts))
	for _, a := range acts {
		n := s.board.Count(ctx, a.ID)
		ranked[string(a.ID)] = n
		names = append(names, string(a.ID))
		metrics.UpdateRatedPlayers(string(a.ID), n)
	}
	sort.Strings(names)
	stats["activities"] = names
	stats["ratedPlayers"] = ranked
	stats["dedupeKeys"] = s.dedupe.Size()
	metrics.UpdateWorkerCount(s.workerCount)
	return stats
}
