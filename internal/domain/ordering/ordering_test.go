package ordering_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/domain/ordering"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func session(id model.SessionID, offset time.Duration) model.Session {
	return model.Session{ID: id, Activity: "tennis", SubmittedAt: epoch.Add(offset)}
}

func ids(sessions []model.Session) []model.SessionID {
	out := make([]model.SessionID, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestSort(t *testing.T) {
	Convey("Given sessions submitted out of order", t, func() {
		in := []model.Session{
			session(3, 2*time.Minute),
			session(1, time.Minute),
			session(4, time.Minute), // same instant as 1, later id
			session(2, 0),
		}

		out := ordering.Sort(in)

		Convey("Then they are ordered by time then id", func() {
			So(ids(out), ShouldResemble, []model.SessionID{2, 1, 4, 3})
		})

		Convey("Then the input slice is untouched", func() {
			So(ids(in), ShouldResemble, []model.SessionID{3, 1, 4, 2})
		})
	})

	Convey("Given a session with shuffled matches and teams", t, func() {
		s := model.Session{
			ID: 1,
			Teams: []model.Team{
				{ID: 12, Slot: 1},
				{ID: 11, Slot: 0},
			},
			Matches: []model.Match{
				{ID: 7, Position: 1, SubmittedAt: epoch},
				{ID: 9, Position: 0, SubmittedAt: epoch.Add(time.Second)},
				{ID: 8, Position: 0, SubmittedAt: epoch},
			},
		}

		out := ordering.Sort([]model.Session{s})[0]

		Convey("Then matches follow position, time, id", func() {
			So([]model.MatchID{out.Matches[0].ID, out.Matches[1].ID, out.Matches[2].ID},
				ShouldResemble, []model.MatchID{8, 9, 7})
		})

		Convey("Then teams follow their slot", func() {
			So(out.Teams[0].ID, ShouldEqual, model.TeamID(11))
			So(out.Teams[1].ID, ShouldEqual, model.TeamID(12))
			So(s.Teams[0].ID, ShouldEqual, model.TeamID(12))
		})
	})
}

func TestCommonActivity(t *testing.T) {
	Convey("Given sessions of one activity", t, func() {
		a, err := ordering.CommonActivity([]model.Session{session(1, 0), session(2, 0)})

		Convey("Then that activity is returned", func() {
			So(err, ShouldBeNil)
			So(a, ShouldEqual, model.ActivityID("tennis"))
		})
	})

	Convey("Given sessions of two activities", t, func() {
		chess := session(2, 0)
		chess.Activity = "chess"
		_, err := ordering.CommonActivity([]model.Session{session(1, 0), chess})

		Convey("Then the batch is rejected", func() {
			So(errors.Is(err, ordering.ErrCrossActivity), ShouldBeTrue)
		})
	})

	Convey("Given no sessions", t, func() {
		_, err := ordering.CommonActivity(nil)

		Convey("Then ErrEmpty is returned", func() {
			So(errors.Is(err, ordering.ErrEmpty), ShouldBeTrue)
		})
	})
}

func TestEligible(t *testing.T) {
	Convey("Given sessions in every state", t, func() {
		pending := session(1, 0)
		validated := session(2, 0)
		validated.Status = model.Validated
		invalidated := session(3, 0)
		invalidated.Status = model.Invalidated

		Convey("Then only validated sessions are eligible", func() {
			out := ordering.Eligible([]model.Session{pending, validated, invalidated})
			So(ids(out), ShouldResemble, []model.SessionID{2})
		})
	})
}

func TestCheckPrefix(t *testing.T) {
	Convey("Given three pending sessions S1 < S2 < S3", t, func() {
		s1, s2, s3 := session(1, 0), session(2, time.Minute), session(3, 2*time.Minute)
		pending := []model.Session{s3, s1, s2}

		Convey("Then the leading prefix may be validated in any input order", func() {
			So(ordering.CheckPrefix([]model.Session{s1}, pending), ShouldBeNil)
			So(ordering.CheckPrefix([]model.Session{s2, s1}, pending), ShouldBeNil)
			So(ordering.CheckPrefix([]model.Session{s3, s1, s2}, pending), ShouldBeNil)
		})

		Convey("When S2 is validated while S1 is pending", func() {
			err := ordering.CheckPrefix([]model.Session{s2}, pending)

			Convey("Then an ordering violation names S1", func() {
				So(errors.Is(err, ordering.ErrOrderingViolation), ShouldBeTrue)
				var pe *ordering.PrefixError
				So(errors.As(err, &pe), ShouldBeTrue)
				So(pe.Expected, ShouldEqual, model.SessionID(1))
				So(pe.Got, ShouldEqual, model.SessionID(2))
			})
		})

		Convey("When the batch has a gap", func() {
			err := ordering.CheckPrefix([]model.Session{s1, s3}, pending)

			Convey("Then it is rejected at the gap", func() {
				var pe *ordering.PrefixError
				So(errors.As(err, &pe), ShouldBeTrue)
				So(pe.Expected, ShouldEqual, model.SessionID(2))
			})
		})

		Convey("When the batch holds a session that is not pending", func() {
			err := ordering.CheckPrefix([]model.Session{s1, s2, s3, session(4, 3*time.Minute)}, pending)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ordering.ErrOrderingViolation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "not pending")
			})
		})

		Convey("Then an empty batch is always acceptable", func() {
			So(ordering.CheckPrefix(nil, pending), ShouldBeNil)
		})
	})
}

func TestCheckFollows(t *testing.T) {
	Convey("Given validated sessions S1 and S3", t, func() {
		validated := []model.Session{session(3, 2*time.Hour), session(1, 0)}

		Convey("Then later sessions may follow them", func() {
			So(ordering.CheckFollows([]model.Session{session(5, 3*time.Hour), session(4, 2*time.Hour)}, validated), ShouldBeNil)
		})

		Convey("When a session submitted after S3 is dated before it", func() {
			err := ordering.CheckFollows([]model.Session{session(4, time.Hour)}, validated)

			Convey("Then an ordering violation names S3", func() {
				So(errors.Is(err, ordering.ErrOrderingViolation), ShouldBeTrue)
				var pe *ordering.PrefixError
				So(errors.As(err, &pe), ShouldBeTrue)
				So(pe.Got, ShouldEqual, model.SessionID(4))
				So(pe.Validated, ShouldEqual, model.SessionID(3))
				So(err.Error(), ShouldContainSubstring, "predates validated session 3")
			})
		})

		Convey("When a session shares S3's time but has a lower id", func() {
			err := ordering.CheckFollows([]model.Session{session(2, 2*time.Hour)}, validated)

			Convey("Then the id tie break rejects it too", func() {
				So(errors.Is(err, ordering.ErrOrderingViolation), ShouldBeTrue)
			})
		})

		Convey("Then nothing validated or an empty batch is always acceptable", func() {
			So(ordering.CheckFollows([]model.Session{session(2, 0)}, nil), ShouldBeNil)
			So(ordering.CheckFollows(nil, validated), ShouldBeNil)
		})
	})
}
