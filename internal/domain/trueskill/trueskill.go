// Package trueskill implements the multi-team TrueSkill rating update.
//
// Two teams are updated with the exact truncated-Gaussian factors of the
// TrueSkill paper (Herbrich, Minka, Graepel). For more teams, teams are
// ordered by rank and every adjacent pair contributes a mean shift (summed)
// and a variance factor (multiplied), all computed from the pre-match state.
// The update is pure and deterministic: the same input yields bit-identical
// output.
package trueskill

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/skillboard/internal/domain/model"
)

// Sentinel kinds for rating errors.
var (
	ErrTooFewTeams   = errors.New("at least two teams are required")
	ErrEmptyTeam     = errors.New("team has no members")
	ErrRankMismatch  = errors.New("one rank per team is required")
	ErrInvalidRank   = errors.New("ranks must be positive")
	ErrInvalidBelief = errors.New("belief must have a finite mean and positive uncertainty")
)

// Rater updates beliefs from match outcomes.
type Rater struct {
	beta            float64
	tau             float64
	drawProbability float64
}

// New creates a rater with the default TrueSkill parameters unless overridden.
func New(opts ...Option) *Rater {
	st := model.DefaultSkillType()
	r := &Rater{
		beta:            st.Beta,
		tau:             st.Tau,
		drawProbability: st.DrawProbability,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rate returns updated beliefs for every member of every team.
// ranks[i] is the placement of teams[i]; lower is better and equal ranks draw.
// The output has the same shape as teams.
func (r *Rater) Rate(teams [][]model.Belief, ranks []int) ([][]model.Belief, error) {
	if len(teams) < 2 {
		return nil, ErrTooFewTeams
	}
	if len(ranks) != len(teams) {
		return nil, fmt.Errorf("%w: %d teams, %d ranks", ErrRankMismatch, len(teams), len(ranks))
	}

	// Variances after the dynamics step.
	tau2 := r.tau * r.tau
	variance := make([][]float64, len(teams))
	shift := make([][]float64, len(teams))
	factor := make([][]float64, len(teams))
	for i, team := range teams {
		if len(team) == 0 {
			return nil, fmt.Errorf("%w: team %d", ErrEmptyTeam, i)
		}
		if ranks[i] < 1 {
			return nil, fmt.Errorf("%w: team %d has rank %d", ErrInvalidRank, i, ranks[i])
		}
		variance[i] = make([]float64, len(team))
		shift[i] = make([]float64, len(team))
		factor[i] = make([]float64, len(team))
		for j, b := range team {
			if math.IsNaN(b.Mean) || math.IsInf(b.Mean, 0) || !(b.Uncertainty > 0) || math.IsInf(b.Uncertainty, 0) {
				return nil, fmt.Errorf("%w: team %d member %d", ErrInvalidBelief, i, j)
			}
			variance[i][j] = b.Uncertainty*b.Uncertainty + tau2
			factor[i][j] = 1
		}
	}

	order := make([]int, len(teams))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return ranks[order[a]] < ranks[order[b]] })

	for k := 0; k+1 < len(order); k++ {
		hi, lo := order[k], order[k+1]
		r.comparePair(teams, variance, shift, factor, hi, lo, ranks[hi] == ranks[lo])
	}

	out := make([][]model.Belief, len(teams))
	for i, team := range teams {
		out[i] = make([]model.Belief, len(team))
		for j, b := range team {
			// Dynamics can outweigh a near-certain result; uncertainty never grows.
			out[i][j] = model.Belief{
				Mean:        b.Mean + shift[i][j],
				Uncertainty: math.Min(math.Sqrt(variance[i][j]*factor[i][j]), b.Uncertainty),
			}
		}
	}
	return out, nil
}

// comparePair accumulates the update of team hi (placed better or equal)
// against team lo.
func (r *Rater) comparePair(teams [][]model.Belief, variance, shift, factor [][]float64, hi, lo int, draw bool) {
	var muHi, muLo, varHi, varLo float64
	for j, b := range teams[hi] {
		muHi += b.Mean
		varHi += variance[hi][j]
	}
	for j, b := range teams[lo] {
		muLo += b.Mean
		varLo += variance[lo][j]
	}

	players := float64(len(teams[hi]) + len(teams[lo]))
	c2 := varHi + varLo + players*r.beta*r.beta
	c := math.Sqrt(c2)
	margin := ppf((r.drawProbability+1)/2) * math.Sqrt(players) * r.beta

	t, e := (muHi-muLo)/c, margin/c
	var v, w float64
	if draw {
		v, w = drawFactors(t, e)
	} else {
		v, w = winFactors(t, e)
	}

	for j := range teams[hi] {
		shift[hi][j] += variance[hi][j] / c * v
		factor[hi][j] *= 1 - variance[hi][j]/c2*w
	}
	for j := range teams[lo] {
		shift[lo][j] -= variance[lo][j] / c * v
		factor[lo][j] *= 1 - variance[lo][j]/c2*w
	}
}
