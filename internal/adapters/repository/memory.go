package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/skillboard/internal/domain/model"
)

type historyKey struct {
	player model.PlayerID
	result model.ResultID
}

// MemoryStore is an in-process Store. Every Commit is applied under the write
// lock, so readers see either the state before it or the state after it.
type MemoryStore struct {
	mu     sync.RWMutex
	closed bool

	activities map[model.ActivityID]model.Activity
	players    map[model.PlayerID]model.Player
	sessions   map[model.SessionID]model.Session
	ratings    map[model.ActivityID]model.Ratings
	history    map[model.ActivityID][]model.SkillHistory
	recorded   map[historyKey]struct{}

	nextPlayer  int64
	nextSession int64
	nextTeam    int64
	nextMatch   int64
	nextResult  int64
	seq         int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		activities: make(map[model.ActivityID]model.Activity),
		players:    make(map[model.PlayerID]model.Player),
		sessions:   make(map[model.SessionID]model.Session),
		ratings:    make(map[model.ActivityID]model.Ratings),
		history:    make(map[model.ActivityID][]model.SkillHistory),
		recorded:   make(map[historyKey]struct{}),
	}
}

// Close marks the store closed; later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// SaveActivity implements ActivityStore.
func (s *MemoryStore) SaveActivity(ctx context.Context, a model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.activities[a.ID] = a
	return nil
}

// Activity implements ActivityStore.
func (s *MemoryStore) Activity(ctx context.Context, id model.ActivityID) (model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Activity{}, err
	}
	a, ok := s.activities[id]
	if !ok {
		return model.Activity{}, fmt.Errorf("%w: activity %q", ErrNotFound, id)
	}
	return a, nil
}

// Activities implements ActivityStore.
func (s *MemoryStore) Activities(ctx context.Context) ([]model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Activity, 0, len(s.activities))
	for _, a := range s.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SavePlayer implements PlayerStore.
func (s *MemoryStore) SavePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return model.Player{}, err
	}
	if p.ID == 0 {
		s.nextPlayer++
		p.ID = model.PlayerID(s.nextPlayer)
	} else if int64(p.ID) > s.nextPlayer {
		s.nextPlayer = int64(p.ID)
	}
	s.players[p.ID] = p
	return p, nil
}

// Player implements PlayerStore.
func (s *MemoryStore) Player(ctx context.Context, id model.PlayerID) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Player{}, err
	}
	p, ok := s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("%w: player %d", ErrNotFound, id)
	}
	return p, nil
}

// Players implements PlayerStore.
func (s *MemoryStore) Players(ctx context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSession implements SessionStore.
func (s *MemoryStore) CreateSession(ctx context.Context, in model.Session) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return model.Session{}, err
	}
	if _, ok := s.activities[in.Activity]; !ok {
		return model.Session{}, fmt.Errorf("%w: activity %q", ErrNotFound, in.Activity)
	}
	if err := checkSlots(in); err != nil {
		return model.Session{}, err
	}

	out := in.Clone()
	out.Status = model.Pending
	out.SubmittedAt = normalizeTime(out.SubmittedAt)
	s.nextSession++
	out.ID = model.SessionID(s.nextSession)
	for i := range out.Teams {
		s.nextTeam++
		out.Teams[i].ID = model.TeamID(s.nextTeam)
		out.Teams[i].Slot = i
	}
	for i := range out.Matches {
		m := &out.Matches[i]
		s.nextMatch++
		m.ID = model.MatchID(s.nextMatch)
		m.SubmittedAt = normalizeTime(m.SubmittedAt)
		if m.SubmittedAt.IsZero() {
			m.SubmittedAt = out.SubmittedAt
		}
		for j := range m.Results {
			s.nextResult++
			m.Results[j].ID = model.ResultID(s.nextResult)
			m.Results[j].Team = out.Teams[int(m.Results[j].Team)].ID
		}
	}
	s.sessions[out.ID] = out
	return out.Clone(), nil
}

func checkSlots(in model.Session) error {
	if in.Activity == "" {
		return fmt.Errorf("%w: missing activity", ErrInvalidSession)
	}
	for _, m := range in.Matches {
		for _, r := range m.Results {
			if r.Team < 0 || int(r.Team) >= len(in.Teams) {
				return fmt.Errorf("%w: result references team index %d of %d", ErrInvalidSession, r.Team, len(in.Teams))
			}
		}
	}
	return nil
}

// Sessions implements SessionStore.
func (s *MemoryStore) Sessions(ctx context.Context, ids []model.SessionID) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Session, 0, len(ids))
	for _, id := range ids {
		sess, ok := s.sessions[id]
		if !ok {
			return nil, fmt.Errorf("%w: session %d", ErrNotFound, id)
		}
		out = append(out, sess.Clone())
	}
	return out, nil
}

// SessionsByStatus implements SessionStore.
func (s *MemoryStore) SessionsByStatus(ctx context.Context, activity model.ActivityID, status model.ValidationStatus) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.Activity == activity && sess.Status == status {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetStatus implements SessionStore.
func (s *MemoryStore) SetStatus(ctx context.Context, ids []model.SessionID, status model.ValidationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := s.sessions[id]; !ok {
			return fmt.Errorf("%w: session %d", ErrNotFound, id)
		}
	}
	for _, id := range ids {
		sess := s.sessions[id]
		sess.Status = status
		s.sessions[id] = sess
	}
	return nil
}

// ReplacePlayer implements SessionStore.
func (s *MemoryStore) ReplacePlayer(ctx context.Context, ids []model.SessionID, from, to model.PlayerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	for _, id := range ids {
		sess, ok := s.sessions[id]
		if !ok {
			return 0, fmt.Errorf("%w: session %d", ErrNotFound, id)
		}
		for _, p := range sess.Participants() {
			if p == to {
				return 0, fmt.Errorf("%w: player %d already plays in session %d", ErrInvalidSession, to, id)
			}
		}
	}
	replaced := 0
	for _, id := range ids {
		sess := s.sessions[id]
		for i := range sess.Teams {
			for j, p := range sess.Teams[i].Members {
				if p == from {
					sess.Teams[i].Members[j] = to
					replaced++
				}
			}
		}
		s.sessions[id] = sess
	}
	return replaced, nil
}

// Rating implements RatingStore.
func (s *MemoryStore) Rating(ctx context.Context, activity model.ActivityID, player model.PlayerID) (model.Belief, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Belief{}, false, err
	}
	b, ok := s.ratings[activity][player]
	return b, ok, nil
}

// Ratings implements RatingStore.
func (s *MemoryStore) Ratings(ctx context.Context, activity model.ActivityID) (model.Ratings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := s.ratings[activity].Clone()
	if out == nil {
		out = model.Ratings{}
	}
	return out, nil
}

// History implements HistoryStore.
func (s *MemoryStore) History(ctx context.Context, activity model.ActivityID, player model.PlayerID) ([]model.SkillHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []model.SkillHistory
	for _, h := range s.history[activity] {
		if h.Player == player {
			out = append(out, h)
		}
	}
	return out, nil
}

// ActivityHistory implements HistoryStore.
func (s *MemoryStore) ActivityHistory(ctx context.Context, activity model.ActivityID) ([]model.SkillHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return append([]model.SkillHistory(nil), s.history[activity]...), nil
}

// HistoryCount implements HistoryStore.
func (s *MemoryStore) HistoryCount(ctx context.Context, activity model.ActivityID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return len(s.history[activity]), nil
}

// Commit implements Store. All checks run before the first mutation.
func (s *MemoryStore) Commit(ctx context.Context, c Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	for _, id := range c.Validate {
		sess, ok := s.sessions[id]
		if !ok {
			return fmt.Errorf("%w: session %d", ErrNotFound, id)
		}
		if sess.Activity != c.Activity {
			return fmt.Errorf("%w: session %d belongs to %q", ErrInvalidSession, id, sess.Activity)
		}
		if sess.Status != model.Pending {
			return fmt.Errorf("%w: session %d is %s", ErrStatusConflict, id, sess.Status)
		}
	}

	existing := s.recorded
	if c.Reset {
		existing = make(map[historyKey]struct{}, len(s.recorded))
		for k := range s.recorded {
			existing[k] = struct{}{}
		}
		for _, h := range s.history[c.Activity] {
			delete(existing, historyKey{h.Player, h.Result})
		}
	}
	fresh := make(map[historyKey]struct{}, len(c.History))
	for _, h := range c.History {
		if h.Activity != c.Activity {
			return fmt.Errorf("%w: history for %q in a changeset of %q", ErrInvalidSession, h.Activity, c.Activity)
		}
		k := historyKey{h.Player, h.Result}
		_, seen := existing[k]
		_, dup := fresh[k]
		if seen || dup {
			return fmt.Errorf("%w: player %d result %d", ErrDuplicateHistory, h.Player, h.Result)
		}
		fresh[k] = struct{}{}
	}

	if c.Reset {
		s.recorded = existing
		delete(s.ratings, c.Activity)
		delete(s.history, c.Activity)
	}
	if len(c.Ratings) > 0 {
		current := s.ratings[c.Activity]
		if current == nil {
			current = make(model.Ratings, len(c.Ratings))
			s.ratings[c.Activity] = current
		}
		for p, b := range c.Ratings {
			current[p] = b
		}
	}
	for _, h := range c.History {
		s.seq++
		h.Seq = s.seq
		h.SubmittedAt = normalizeTime(h.SubmittedAt)
		s.history[c.Activity] = append(s.history[c.Activity], h)
		s.recorded[historyKey{h.Player, h.Result}] = struct{}{}
	}
	for _, id := range c.Validate {
		sess := s.sessions[id]
		sess.Status = model.Validated
		s.sessions[id] = sess
	}
	return nil
}
