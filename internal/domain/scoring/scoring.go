// Package scoring derives the displayed skill score from a rating belief.
package scoring

import (
	"math"

	"github.com/okian/skillboard/internal/domain/model"
)

// confidenceWidth is how many standard deviations are subtracted from the
// mean: the score is a conservative estimate of true skill.
const confidenceWidth = 3

// Bounds is the closed interval the skill score is clamped to.
type Bounds struct {
	Min float64
	Max float64
}

// BoundsOf returns the clamp interval configured on a skill type.
func BoundsOf(st model.SkillType) Bounds {
	return Bounds{Min: st.MinSkill, Max: st.MaxSkill}
}

// Score returns clamp(mean - 3*uncertainty, min, max).
// NaN inputs collapse to the lower bound.
func Score(b model.Belief, bounds Bounds) float64 {
	raw := b.Mean - confidenceWidth*b.Uncertainty
	if math.IsNaN(raw) {
		return bounds.Min
	}
	return math.Max(bounds.Min, math.Min(bounds.Max, raw))
}

// ForActivity scores a belief with the activity's configured bounds.
func ForActivity(b model.Belief, a model.Activity) float64 {
	return Score(b, BoundsOf(a.Skill))
}
