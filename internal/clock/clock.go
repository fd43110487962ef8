package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Timer is a scheduled callback handle.
type Timer interface {
	// Stop cancels the callback; it reports false when the callback already fired or was stopped.
	Stop() bool
}

// AfterFuncFunc schedules f after d. Override in tests to drive timers manually.
var AfterFuncFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// AfterFunc is a thin wrapper around AfterFuncFunc.
func AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	return AfterFuncFunc(d, f)
}

// Stop stops a possibly nil timer.
func Stop(t Timer) {
	if t != nil {
		t.Stop()
	}
}
