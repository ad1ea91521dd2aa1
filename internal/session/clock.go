package session

import "time"

// monitorTick is how often each deadline monitor wakes to broadcast sync and
// check expiry. It bounds auto-resolution granularity, not wall-clock
// precision.
const monitorTick = time.Second

// completedGrace is how long a resolved session stays in the registry so late
// viewers and pollers can still read its outcome.
const completedGrace = 10 * time.Minute

// reaperTick is how often the registry sweeps for sessions past their grace.
const reaperTick = 10 * time.Second

// deadlineFrom computes an absolute deadline from a monotonic reading.
// Timeouts below one second are clamped up so a session always has a window.
func deadlineFrom(now time.Time, seconds int) time.Time {
	if seconds < 1 {
		seconds = 1
	}
	return now.Add(time.Duration(seconds) * time.Second)
}

// remainingAt returns the time left before deadline, floored at zero.
func remainingAt(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
