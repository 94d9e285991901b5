// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
)

// ActivityID is the stable slug of a competition domain, e.g. "tennis".
type ActivityID string

// Rating model defaults, shared by every activity without its own skill type.
const (
	DefaultInitialMean     = 25.0
	DefaultMinSkill        = 0.0
	DefaultMaxSkill        = 50.0
	DefaultDrawProbability = 0.1
)

// ErrInvalidSkillType reports an unusable set of rating parameters.
var ErrInvalidSkillType = errors.New("invalid skill type")

// SkillType holds the rating model parameters of an activity.
type SkillType struct {
	InitialMean        float64 // prior mean of an unrated player
	InitialUncertainty float64 // prior sigma of an unrated player
	Beta               float64 // performance variance, a.k.a. skill chain
	Tau                float64 // dynamics factor added to sigma before each match
	DrawProbability    float64 // chance of a draw between equal teams
	MinSkill           float64 // lower clamp of the displayed skill score
	MaxSkill           float64 // upper clamp of the displayed skill score
}

// DefaultSkillType returns the classic TrueSkill parameters (mu=25, sigma=25/3).
func DefaultSkillType() SkillType {
	sigma := DefaultInitialMean / 3
	return SkillType{
		InitialMean:        DefaultInitialMean,
		InitialUncertainty: sigma,
		Beta:               sigma / 2,
		Tau:                sigma / 100,
		DrawProbability:    DefaultDrawProbability,
		MinSkill:           DefaultMinSkill,
		MaxSkill:           DefaultMaxSkill,
	}
}

// Prior returns the belief assigned to a player never rated in the activity.
func (s SkillType) Prior() Belief {
	return Belief{Mean: s.InitialMean, Uncertainty: s.InitialUncertainty}
}

// Validate checks the parameters can drive a rating update.
func (s SkillType) Validate() error {
	switch {
	case s.InitialUncertainty <= 0:
		return fmt.Errorf("%w: initial uncertainty must be positive", ErrInvalidSkillType)
	case s.Beta <= 0:
		return fmt.Errorf("%w: beta must be positive", ErrInvalidSkillType)
	case s.Tau < 0:
		return fmt.Errorf("%w: tau must not be negative", ErrInvalidSkillType)
	case s.DrawProbability < 0 || s.DrawProbability >= 1:
		return fmt.Errorf("%w: draw probability must be in [0,1)", ErrInvalidSkillType)
	case s.MinSkill > s.MaxSkill:
		return fmt.Errorf("%w: min skill above max skill", ErrInvalidSkillType)
	}
	return nil
}

// Activity is an independent competition domain with its own rating namespace.
// Zero maximums mean unbounded.
type Activity struct {
	ID                ActivityID
	Name              string
	MinTeamsPerMatch  int
	MaxTeamsPerMatch  int
	MinPlayersPerTeam int
	MaxPlayersPerTeam int
	Skill             SkillType
	About             string
}

// NewActivity returns a two-team, one-player-per-team activity with default skill parameters.
func NewActivity(id ActivityID) Activity {
	return Activity{
		ID:                id,
		Name:              string(id),
		MinTeamsPerMatch:  2,
		MinPlayersPerTeam: 1,
		MaxPlayersPerTeam: 1,
		Skill:             DefaultSkillType(),
	}
}
