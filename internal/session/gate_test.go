package session

import (
	"testing"
	"time"

	"attendro/internal/timetable"
)

var testWindow = Window{OpenBefore: 5 * time.Minute, Grace: 15 * time.Minute}

func at(hhmm string) time.Time {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return timetable.MustClock(hhmm).At(date)
}

func TestGateState(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := timetable.MustClock("10:00")

	cases := []struct {
		name     string
		now      time.Time
		captured bool
		want     GateState
	}{
		{"well before open", at("09:00"), false, Upcoming},
		{"one minute before open", at("09:54"), false, Upcoming},
		{"exactly at open", at("09:55"), false, Open},
		{"at scheduled start", at("10:00"), false, Open},
		{"inside grace", at("10:10"), false, Open},
		{"exactly at close", at("10:15"), false, Open},
		{"past grace", at("10:20"), false, Expired},
		{"hours later", at("14:00"), false, Expired},
		{"captured before start", at("09:00"), true, Captured},
		{"captured during window", at("10:05"), true, Captured},
		{"captured after grace", at("11:00"), true, Captured},
	}
	for _, tc := range cases {
		if got := State(tc.now, date, start, tc.captured, testWindow); got != tc.want {
			t.Errorf("%s: State = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestOpensIn(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := timetable.MustClock("10:00")

	if d := OpensIn(at("09:45"), date, start, testWindow); d != 10*time.Minute {
		t.Errorf("OpensIn before window = %v, want 10m", d)
	}
	if d := OpensIn(at("09:55"), date, start, testWindow); d != 0 {
		t.Errorf("OpensIn at open = %v, want 0", d)
	}
	if d := OpensIn(at("11:00"), date, start, testWindow); d != 0 {
		t.Errorf("OpensIn after close = %v, want 0", d)
	}
}
