// Package repository persists activities, players, sessions, ratings and the
// skill history log.
package repository

import (
	"context"

	"github.com/okian/skillboard/internal/domain/model"
)

// Changeset is the single atomic write produced by a rating run.
type Changeset struct {
	Activity model.ActivityID
	// Reset deletes every rating and history record of Activity before writing.
	Reset bool
	// Ratings are upserted by (Activity, player).
	Ratings model.Ratings
	// History is appended in slice order; Seq is assigned by the store.
	History []model.SkillHistory
	// Validate flips these pending sessions of Activity to Validated.
	Validate []model.SessionID
}

// ActivityStore holds activity definitions.
type ActivityStore interface {
	// SaveActivity inserts or replaces an activity.
	SaveActivity(ctx context.Context, a model.Activity) error
	// Activity returns ErrNotFound for an unknown id.
	Activity(ctx context.Context, id model.ActivityID) (model.Activity, error)
	// Activities returns all activities ordered by id.
	Activities(ctx context.Context) ([]model.Activity, error)
}

// PlayerStore holds players.
type PlayerStore interface {
	// SavePlayer inserts a player when ID is zero and updates it otherwise.
	SavePlayer(ctx context.Context, p model.Player) (model.Player, error)
	// Player returns ErrNotFound for an unknown id.
	Player(ctx context.Context, id model.PlayerID) (model.Player, error)
	// Players returns all players ordered by id.
	Players(ctx context.Context) ([]model.Player, error)
}

// SessionStore holds submitted sessions and their review status.
type SessionStore interface {
	// CreateSession stores a pending session and assigns ids to it, its teams,
	// matches and results. On input Result.Team holds the index of its team in
	// Teams; the stored team gets that index as Slot and the returned session
	// references real team ids.
	CreateSession(ctx context.Context, s model.Session) (model.Session, error)
	// Sessions returns the sessions in the order of ids; unknown ids yield ErrNotFound.
	Sessions(ctx context.Context, ids []model.SessionID) ([]model.Session, error)
	// SessionsByStatus returns the sessions of an activity in one status, ordered by id.
	SessionsByStatus(ctx context.Context, activity model.ActivityID, status model.ValidationStatus) ([]model.Session, error)
	// SetStatus overwrites the status of existing sessions.
	SetStatus(ctx context.Context, ids []model.SessionID, status model.ValidationStatus) error
	// ReplacePlayer swaps from for to in every team of the given sessions and
	// returns the number of replaced memberships.
	ReplacePlayer(ctx context.Context, ids []model.SessionID, from, to model.PlayerID) (int, error)
}

// RatingStore holds the current belief per (activity, player).
type RatingStore interface {
	// Rating reports false when the player has no stored rating.
	Rating(ctx context.Context, activity model.ActivityID, player model.PlayerID) (model.Belief, bool, error)
	// Ratings returns every stored rating of an activity.
	Ratings(ctx context.Context, activity model.ActivityID) (model.Ratings, error)
}

// HistoryStore reads the append-only skill history log.
type HistoryStore interface {
	// History returns a player's records in ledger order.
	History(ctx context.Context, activity model.ActivityID, player model.PlayerID) ([]model.SkillHistory, error)
	// ActivityHistory returns every record of an activity in ledger order.
	ActivityHistory(ctx context.Context, activity model.ActivityID) ([]model.SkillHistory, error)
	// HistoryCount returns the number of records of an activity.
	HistoryCount(ctx context.Context, activity model.ActivityID) (int, error)
}

// Store is the full persistence surface used by the engine.
type Store interface {
	ActivityStore
	PlayerStore
	SessionStore
	RatingStore
	HistoryStore

	// Commit applies a changeset atomically: either every part is written or none.
	Commit(ctx context.Context, c Changeset) error
	// Close releases the underlying resources.
	Close() error
}
