package trueskill

import "github.com/okian/skillboard/internal/domain/model"

// Option applies a configuration option to the Rater.
type Option func(*Rater)

// WithBeta sets the performance variance (skill chain length).
func WithBeta(beta float64) Option {
	return func(r *Rater) {
		if beta > 0 {
			r.beta = beta
		}
	}
}

// WithTau sets the dynamics factor added to every uncertainty before a match.
func WithTau(tau float64) Option {
	return func(r *Rater) {
		if tau >= 0 {
			r.tau = tau
		}
	}
}

// WithDrawProbability sets the chance of a draw between two equal teams.
func WithDrawProbability(p float64) Option {
	return func(r *Rater) {
		if p >= 0 && p < 1 {
			r.drawProbability = p
		}
	}
}

// WithSkillType copies the model parameters of an activity.
func WithSkillType(st model.SkillType) Option {
	return func(r *Rater) {
		WithBeta(st.Beta)(r)
		WithTau(st.Tau)(r)
		WithDrawProbability(st.DrawProbability)(r)
	}
}
