package litter_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"seattlehumus/internal/litter"

	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 8, 21, 9, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

func TestParseWeight(t *testing.T) {
	Convey("Given activity texts", t, func() {
		Convey("When the text carries a pounds reading", func() {
			cases := map[string]float64{
				"Pet Weight Recorded: 12.5 lbs":        12.5,
				"pet weight recorded - 7lb":            7,
				"Pet Weight Recorded: 10lbs":           10,
				"cat #2 weighed in at 14.25 LBS today": 14.25,
				"delta +3.5 lb":                        3.5,
				"first 3 kg then 11.2 lbs":             11.2,
			}
			Convey("Then the first pounds value is returned exactly", func() {
				for text, want := range cases {
					got, err := litter.ParseWeight(text)
					So(err, ShouldBeNil)
					So(got, ShouldEqual, want)
				}
			})
		})

		Convey("When the text has no pounds reading", func() {
			for _, text := range []string{"Litter Cycle", "Pet Weight Recorded", "12 lbf", "6 kg", "3 pounds"} {
				_, err := litter.ParseWeight(text)
				So(errors.Is(err, litter.ErrNoWeight), ShouldBeTrue)
			}
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given the 13 lb threshold", t, func() {
		So(litter.Classify(12.99), ShouldEqual, litter.Margarita)
		So(litter.Classify(13.0), ShouldEqual, litter.Paloma)
		So(litter.Classify(13.01), ShouldEqual, litter.Paloma)
		So(litter.Classify(8.2), ShouldEqual, litter.Margarita)

		Convey("Then only readings above 10 lbs are announced", func() {
			So(litter.ShouldNotify(10.0), ShouldBeFalse)
			So(litter.ShouldNotify(9.5), ShouldBeFalse)
			So(litter.ShouldNotify(10.01), ShouldBeTrue)
		})

		Convey("Then the report order is fixed", func() {
			So(litter.Cats(), ShouldResemble, []litter.Cat{litter.Margarita, litter.Paloma})
		})
	})
}

func TestExtractWeightEvents(t *testing.T) {
	Convey("Given a mixed device history out of order", t, func() {
		history := []litter.RawHistoryEvent{
			{Action: "pet weight recorded - 14 lbs", Timestamp: at(3)},
			{Action: "Litter Cycle", Timestamp: at(2)},
			{Action: "Pet Weight Recorded: 10lbs", Timestamp: at(1)},
			{Action: "Pet Weight Recorded: 11lbs"},
		}

		Convey("When extracting weight events", func() {
			got := litter.ExtractWeightEvents(history)

			Convey("Then only timestamped weight readings remain, oldest first", func() {
				So(got, ShouldResemble, []litter.WeightEvent{
					{Timestamp: at(1), Text: "Pet Weight Recorded: 10lbs"},
					{Timestamp: at(3), Text: "pet weight recorded - 14 lbs"},
				})
			})
		})

		Convey("When the history is empty", func() {
			got := litter.ExtractWeightEvents(nil)
			_, ok := litter.LatestTimestamp(got)
			So(got, ShouldBeEmpty)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSelectNew(t *testing.T) {
	Convey("Given three ascending events", t, func() {
		events := []litter.WeightEvent{
			{Timestamp: at(1), Text: "a"},
			{Timestamp: at(2), Text: "b"},
			{Timestamp: at(3), Text: "c"},
		}

		Convey("When the watermark sits on the first event", func() {
			got := litter.SelectNew(events, at(1), true)
			Convey("Then the first event is excluded", func() {
				So(got, ShouldResemble, events[1:])
			})
		})

		Convey("When there is no watermark yet", func() {
			So(litter.SelectNew(events, time.Time{}, false), ShouldBeEmpty)
		})

		Convey("When the watermark is past every event", func() {
			So(litter.SelectNew(events, at(3), true), ShouldBeEmpty)
		})
	})
}

func TestWatermarks(t *testing.T) {
	Convey("Given an empty watermark set", t, func() {
		w := litter.NewWatermarks()

		Convey("When a device with history is seeded", func() {
			w.Seed("lr4-1", []litter.WeightEvent{{Timestamp: at(1)}, {Timestamp: at(5)}})
			ts, ok := w.Get("lr4-1")
			So(ok, ShouldBeTrue)
			So(ts, ShouldEqual, at(5))

			Convey("Then seeding again does not move it", func() {
				w.Seed("lr4-1", []litter.WeightEvent{{Timestamp: at(9)}})
				ts, _ := w.Get("lr4-1")
				So(ts, ShouldEqual, at(5))
			})

			Convey("Then it never moves backwards", func() {
				So(w.Advance("lr4-1", at(2)), ShouldBeFalse)
				So(w.Advance("lr4-1", at(7)), ShouldBeTrue)
				ts, _ := w.Get("lr4-1")
				So(ts, ShouldEqual, at(7))
			})
		})

		Convey("When a device without weight events is seeded", func() {
			w.Seed("lr4-2", nil)
			ts, ok := w.Get("lr4-2")
			So(ok, ShouldBeTrue)
			So(ts.IsZero(), ShouldBeTrue)

			Convey("Then its first reading counts as new", func() {
				got := litter.SelectNew([]litter.WeightEvent{{Timestamp: at(1)}}, ts, ok)
				So(got, ShouldHaveLength, 1)
			})
		})

		So(w.Seeded("unknown"), ShouldBeFalse)
	})
}

func TestStickerChoose(t *testing.T) {
	Convey("Given the default sticker table", t, func() {
		table := litter.DefaultStickers()
		So(table[litter.Margarita], ShouldHaveLength, 6)
		So(table[litter.Paloma], ShouldHaveLength, 10)

		Convey("When drawing with a seeded source", func() {
			a, okA := table.Choose(litter.Paloma, rand.New(rand.NewSource(42)))
			b, okB := table.Choose(litter.Paloma, rand.New(rand.NewSource(42)))

			Convey("Then the draw is deterministic and from the cat's pool", func() {
				So(okA && okB, ShouldBeTrue)
				So(a, ShouldEqual, b)
				So(table[litter.Paloma], ShouldContain, a)
			})
		})

		Convey("When the cat has no pool", func() {
			_, ok := litter.StickerTable{}.Choose(litter.Margarita, rand.New(rand.NewSource(1)))
			So(ok, ShouldBeFalse)
		})
	})
}
