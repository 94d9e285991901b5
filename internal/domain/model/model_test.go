package model_test

import (
	"errors"
	"testing"

	model "github.com/okian/skillboard/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestSkillType(t *testing.T) {
	convey.Convey("Given the default skill type", t, func() {
		st := model.DefaultSkillType()

		convey.Convey("Then the prior is mu=25, sigma=25/3", func() {
			prior := st.Prior()
			convey.So(prior.Mean, convey.ShouldEqual, 25.0)
			convey.So(prior.Uncertainty, convey.ShouldEqual, 25.0/3)
			convey.So(st.Beta, convey.ShouldEqual, 25.0/6)
			convey.So(st.Tau, convey.ShouldEqual, 25.0/300)
			convey.So(st.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the parameters are unusable", func() {
			cases := []func(*model.SkillType){
				func(s *model.SkillType) { s.InitialUncertainty = 0 },
				func(s *model.SkillType) { s.Beta = -1 },
				func(s *model.SkillType) { s.Tau = -0.1 },
				func(s *model.SkillType) { s.DrawProbability = 1 },
				func(s *model.SkillType) { s.MinSkill = 60 },
			}

			convey.Convey("Then Validate rejects each of them", func() {
				for _, mutate := range cases {
					bad := model.DefaultSkillType()
					mutate(&bad)
					err := bad.Validate()
					convey.So(errors.Is(err, model.ErrInvalidSkillType), convey.ShouldBeTrue)
				}
			})
		})
	})
}

func TestRatings(t *testing.T) {
	convey.Convey("Given a ratings map", t, func() {
		r := model.Ratings{
			3: {Mean: 30, Uncertainty: 5},
			1: {Mean: 20, Uncertainty: 6},
			2: {Mean: 25, Uncertainty: 7},
		}

		convey.Convey("Then Players is sorted ascending", func() {
			convey.So(r.Players(), convey.ShouldResemble, []model.PlayerID{1, 2, 3})
		})

		convey.Convey("Then Clone is independent of the original", func() {
			c := r.Clone()
			c[1] = model.Belief{Mean: 99, Uncertainty: 1}
			convey.So(r[1].Mean, convey.ShouldEqual, 20.0)
			convey.So(len(c), convey.ShouldEqual, 3)
		})

		convey.Convey("Then a nil map clones to nil", func() {
			var empty model.Ratings
			convey.So(empty.Clone(), convey.ShouldBeNil)
		})
	})
}

func TestSession(t *testing.T) {
	convey.Convey("Given a session with two teams", t, func() {
		s := model.Session{
			Teams: []model.Team{
				{ID: 1, Slot: 0, Members: []model.PlayerID{4, 5}},
				{ID: 2, Slot: 1, Members: []model.PlayerID{6}},
			},
			Matches: []model.Match{{ID: 1}, {ID: 2}},
		}

		convey.Convey("Then participants are listed in team order", func() {
			convey.So(s.Participants(), convey.ShouldResemble, []model.PlayerID{4, 5, 6})
			convey.So(s.MatchCount(), convey.ShouldEqual, 2)
		})

		convey.Convey("Then a new session is pending", func() {
			convey.So(s.Status, convey.ShouldEqual, model.Pending)
			convey.So(s.Status.String(), convey.ShouldEqual, "pending")
			convey.So(model.Validated.String(), convey.ShouldEqual, "validated")
			convey.So(model.Invalidated.String(), convey.ShouldEqual, "invalidated")
		})

		convey.Convey("Then Clone shares no slices", func() {
			s.Matches[0].Results = []model.Result{{ID: 9, Team: 1, Rank: 1}}
			c := s.Clone()
			c.Teams[0].Members[0] = 99
			c.Matches[0].Results[0].Rank = 2
			convey.So(s.Teams[0].Members[0], convey.ShouldEqual, model.PlayerID(4))
			convey.So(s.Matches[0].Results[0].Rank, convey.ShouldEqual, 1)
			convey.So(len(c.Matches), convey.ShouldEqual, 2)
		})
	})
}
