package leave

import (
	"testing"

	"attendro/internal/timetable"
)

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{FullDay, HalfMorning, HalfAfternoon} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if Kind("HALF_EVENING").Valid() {
		t.Error("unknown kind accepted")
	}
	if Kind("").Valid() {
		t.Error("empty kind accepted")
	}
}

func TestKindCovers(t *testing.T) {
	midday := timetable.MustClock("12:30")
	cases := []struct {
		kind  Kind
		start string
		want  bool
	}{
		{FullDay, "09:00", true},
		{FullDay, "15:00", true},
		{HalfMorning, "09:00", true},
		{HalfMorning, "12:29", true},
		{HalfMorning, "12:30", false},
		{HalfMorning, "15:00", false},
		{HalfAfternoon, "09:00", false},
		{HalfAfternoon, "12:30", true},
		{HalfAfternoon, "15:00", true},
	}
	for _, tc := range cases {
		got := tc.kind.Covers(timetable.MustClock(tc.start), midday)
		if got != tc.want {
			t.Errorf("%s.Covers(%s) = %v, want %v", tc.kind, tc.start, got, tc.want)
		}
	}
}
