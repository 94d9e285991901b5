package model

import (
	"sort"
	"time"
)

// PlayerID identifies a player across all activities.
type PlayerID int64

// Player is a participant; ratings are always scoped to (activity, player).
type Player struct {
	ID     PlayerID
	Name   string
	Email  string
	Active bool
}

// Belief is a player's skill estimate: mean (mu) and uncertainty (sigma).
type Belief struct {
	Mean        float64
	Uncertainty float64
}

// Rating is the current belief of one player in one activity.
type Rating struct {
	Activity ActivityID
	Player   PlayerID
	Belief   Belief
}

// Ratings maps players to their current belief within a single activity.
type Ratings map[PlayerID]Belief

// Clone returns an independent copy. A nil map clones to nil.
func (r Ratings) Clone() Ratings {
	if r == nil {
		return nil
	}
	out := make(Ratings, len(r))
	for id, b := range r {
		out[id] = b
	}
	return out
}

// Players returns the rated player ids in ascending order.
func (r Ratings) Players() []PlayerID {
	ids := make([]PlayerID, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SkillHistory is the immutable belief of a player right after one match.
// Seq is the ledger position assigned when the record is appended.
type SkillHistory struct {
	Seq         int64
	Activity    ActivityID
	Player      PlayerID
	Session     SessionID
	Match       MatchID
	Result      ResultID
	Belief      Belief
	SubmittedAt time.Time
}
