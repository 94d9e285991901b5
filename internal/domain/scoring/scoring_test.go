package scoring_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/okian/skillboard/internal/domain/model"
	scoring "github.com/okian/skillboard/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScore(t *testing.T) {
	Convey("Given the default 0..50 bounds", t, func() {
		bounds := scoring.BoundsOf(model.DefaultSkillType())

		Convey("When scoring the default prior", func() {
			score := scoring.Score(model.DefaultSkillType().Prior(), bounds)

			Convey("Then mean - 3 sigma is exactly zero", func() {
				So(score, ShouldAlmostEqual, 0.0, 1e-12)
			})
		})

		Convey("When scoring a confident strong player", func() {
			score := scoring.Score(model.Belief{Mean: 35, Uncertainty: 2}, bounds)

			Convey("Then it is mean - 3 sigma", func() {
				So(score, ShouldEqual, 29.0)
			})
		})

		Convey("When the raw value leaves the interval", func() {
			Convey("Then it is clamped below", func() {
				So(scoring.Score(model.Belief{Mean: 10, Uncertainty: 8}, bounds), ShouldEqual, 0.0)
			})
			Convey("Then it is clamped above", func() {
				So(scoring.Score(model.Belief{Mean: 90, Uncertainty: 1}, bounds), ShouldEqual, 50.0)
			})
			Convey("Then NaN collapses to the minimum", func() {
				So(scoring.Score(model.Belief{Mean: math.NaN(), Uncertainty: 1}, bounds), ShouldEqual, 0.0)
			})
		})
	})

	Convey("Given arbitrary beliefs and an activity with custom bounds", t, func() {
		activity := model.NewActivity("chess")
		activity.Skill.MinSkill = -10
		activity.Skill.MaxSkill = 10
		rng := rand.New(rand.NewSource(7))

		Convey("Then the score always stays within the bounds", func() {
			for i := 0; i < 1000; i++ {
				b := model.Belief{Mean: rng.NormFloat64() * 100, Uncertainty: rng.Float64() * 50}
				s := scoring.ForActivity(b, activity)
				So(s, ShouldBeBetweenOrEqual, -10.0, 10.0)
			}
		})
	})
}
