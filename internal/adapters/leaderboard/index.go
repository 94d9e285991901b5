// Package leaderboard keeps an in-memory ranking of skill scores per activity.
package leaderboard

import (
	"context"
	"sync"

	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/scoring"
	"github.com/okian/skillboard/pkg/metrics"
)

// Entry is one leaderboard row. Players with equal skill share a rank and
// the next rank skips accordingly (1, 1, 3).
type Entry struct {
	Rank   int
	Player model.PlayerID
	Skill  float64
	Belief model.Belief
}

type board struct {
	root   *node
	byID   map[model.PlayerID]scoreFP
	belief map[model.PlayerID]model.Belief
}

func newBoard() *board {
	return &board{
		byID:   make(map[model.PlayerID]scoreFP),
		belief: make(map[model.PlayerID]model.Belief),
	}
}

func (b *board) upsert(id model.PlayerID, belief model.Belief, skill float64) {
	fp := toFixedPoint(skill)
	if old, ok := b.byID[id]; ok {
		b.root = deleteNode(b.root, id, old)
	}
	b.byID[id] = fp
	b.belief[id] = belief
	b.root = insert(b.root, id, fp)
}

func (b *board) entry(n *node, rank int) Entry {
	return Entry{Rank: rank, Player: n.id, Skill: toFloat(n.score), Belief: b.belief[n.id]}
}

// Index holds one treap per activity.
type Index struct {
	mu     sync.RWMutex
	boards map[model.ActivityID]*board
}

// New returns an empty index.
func New() *Index {
	return &Index{boards: make(map[model.ActivityID]*board)}
}

// Replace discards the activity's board and ranks ratings from scratch.
func (ix *Index) Replace(_ context.Context, activity model.ActivityID, ratings model.Ratings, bounds scoring.Bounds) {
	b := newBoard()
	for _, id := range ratings.Players() {
		belief := ratings[id]
		b.upsert(id, belief, scoring.Score(belief, bounds))
	}

	ix.mu.Lock()
	ix.boards[activity] = b
	ix.mu.Unlock()
	metrics.UpdateRatedPlayers(string(activity), len(ratings))
}

// Update re-ranks the given players, leaving everyone else in place.
func (ix *Index) Update(_ context.Context, activity model.ActivityID, ratings model.Ratings, bounds scoring.Bounds) {
	ix.mu.Lock()
	b, ok := ix.boards[activity]
	if !ok {
		b = newBoard()
		ix.boards[activity] = b
	}
	for _, id := range ratings.Players() {
		belief := ratings[id]
		b.upsert(id, belief, scoring.Score(belief, bounds))
	}
	count := len(b.byID)
	ix.mu.Unlock()
	metrics.UpdateRatedPlayers(string(activity), count)
}

// TopN returns the best n entries of an activity.
func (ix *Index) TopN(_ context.Context, activity model.ActivityID, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	b, ok := ix.boards[activity]
	if !ok {
		return []Entry{}, nil
	}
	nodes := make([]*node, 0, min(n, len(b.byID)))
	collect(b.root, n, &nodes)

	out := make([]Entry, len(nodes))
	for i, nd := range nodes {
		rank := i + 1
		if i > 0 && nd.score == nodes[i-1].score {
			rank = out[i-1].Rank
		}
		out[i] = b.entry(nd, rank)
	}
	return out, nil
}

// Rank returns the entry of one player.
func (ix *Index) Rank(_ context.Context, activity model.ActivityID, player model.PlayerID) (Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	b, ok := ix.boards[activity]
	if !ok {
		return Entry{}, ErrNotFound
	}
	fp, ok := b.byID[player]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:   countAbove(b.root, fp) + 1,
		Player: player,
		Skill:  toFloat(fp),
		Belief: b.belief[player],
	}, nil
}

// Count returns the number of ranked players in an activity.
func (ix *Index) Count(_ context.Context, activity model.ActivityID) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if b, ok := ix.boards[activity]; ok {
		return len(b.byID)
	}
	return 0
}
