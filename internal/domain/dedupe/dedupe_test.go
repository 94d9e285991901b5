package dedupe_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/skillboard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new tracker", t, func() {
		tracker := dedupe.NewMemoryTracker(dedupe.WithMaxKeys(3))

		Convey("When a key is claimed twice", func() {
			first := tracker.Claim(ctx, "sub-1")
			second := tracker.Claim(ctx, "sub-1")

			Convey("Then only the second claim reports a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(tracker.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claimed key is released", func() {
			tracker.Claim(ctx, "sub-1")
			tracker.Release(ctx, "sub-1")

			Convey("Then it can be claimed again", func() {
				So(tracker.Claim(ctx, "sub-1"), ShouldBeFalse)
			})
		})

		Convey("When releasing an unknown key", func() {
			tracker.Claim(ctx, "sub-1")
			tracker.Release(ctx, "nope")

			Convey("Then nothing changes", func() {
				So(tracker.Size(), ShouldEqual, 1)
			})
		})

		Convey("When more keys than the bound are claimed", func() {
			for i := 1; i <= 4; i++ {
				tracker.Claim(ctx, "sub-"+strconv.Itoa(i))
			}

			Convey("Then the oldest key is forgotten", func() {
				So(tracker.Size(), ShouldEqual, 3)
				So(tracker.Claim(ctx, "sub-4"), ShouldBeTrue)
				So(tracker.Claim(ctx, "sub-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded tracker", t, func() {
		tracker := dedupe.NewMemoryTracker(dedupe.WithMaxKeys(0))
		for i := 0; i < 1000; i++ {
			tracker.Claim(ctx, strconv.Itoa(i))
		}

		Convey("Then nothing is evicted", func() {
			So(tracker.Size(), ShouldEqual, 1000)
			So(tracker.Claim(ctx, "0"), ShouldBeTrue)
		})
	})
}

func TestMemoryTrackerConcurrency(t *testing.T) {
	Convey("Given many goroutines claiming the same keys", t, func() {
		ctx := context.Background()
		tracker := dedupe.NewMemoryTracker()
		var fresh atomic.Int64
		var wg sync.WaitGroup

		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !tracker.Claim(ctx, strconv.Itoa(i)) {
						fresh.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then every key is claimed exactly once", func() {
			So(int(fresh.Load()), ShouldEqual, 100)
			So(tracker.Size(), ShouldEqual, 100)
		})
	})
}
