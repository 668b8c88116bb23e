// Package session owns attendance capture: the time-window gate deciding
// whether capture is permitted, and the once-only creation of sessions.
package session

import (
	"time"

	"attendro/internal/timetable"
)

// GateState is the derived state of one slot-occurrence. It is never stored;
// it is recomputed from the clock and whether a session row exists.
type GateState string

const (
	// Upcoming means the capture window has not opened yet.
	Upcoming GateState = "UPCOMING"
	// Open means attendance may be captured right now.
	Open GateState = "OPEN"
	// Captured means a session exists; terminal.
	Captured GateState = "CAPTURED"
	// Expired means the grace period passed with no session; terminal.
	Expired GateState = "EXPIRED"
)

// Window bounds the capture window around a slot's start time.
type Window struct {
	// OpenBefore is how early capture opens before the scheduled start.
	OpenBefore time.Duration
	// Grace is how long after the scheduled start capture stays open.
	Grace time.Duration
}

// State derives the gate state for a slot-occurrence. A recorded session wins
// over the clock; otherwise the window [start-OpenBefore, start+Grace]
// decides.
func State(now time.Time, date time.Time, start timetable.ClockTime, captured bool, win Window) GateState {
	if captured {
		return Captured
	}
	at := start.At(date)
	opens := at.Add(-win.OpenBefore)
	closes := at.Add(win.Grace)
	switch {
	case now.Before(opens):
		return Upcoming
	case now.After(closes):
		return Expired
	default:
		return Open
	}
}

// OpensIn reports how long until the window opens; zero once open or past.
func OpensIn(now time.Time, date time.Time, start timetable.ClockTime, win Window) time.Duration {
	opens := start.At(date).Add(-win.OpenBefore)
	if d := opens.Sub(now); d > 0 {
		return d
	}
	return 0
}
