// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Rank        int     `json:"rank"`
	PlayerID    int64   `json:"player_id"`
	Name        string  `json:"name"`
	Skill       float64 `json:"skill"`
	Mean        float64 `json:"mu"`
	Uncertainty float64 `json:"sigma"`
}

// ProgressPoint is one post-match skill score in a player's progression chart.
type ProgressPoint struct {
	MatchID int64   `json:"id"`
	Skill   float64 `json:"y"`
}

// PlayerSummary describes a player's standing in one activity.
type PlayerSummary struct {
	PlayerID      int64   `json:"player_id"`
	Name          string  `json:"name"`
	Skill         float64 `json:"skill"`
	Mean          float64 `json:"mu"`
	Uncertainty   float64 `json:"sigma"`
	MatchesPlayed int     `json:"matches_played"`
	Rank          int     `json:"rank,omitempty"`
}
