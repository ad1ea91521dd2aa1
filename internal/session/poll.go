package session

import (
	"context"
	"time"

	"github.com/askgate-dev/askgate/internal/choice"
)

// DefaultPollWait caps a single bounded-poll call when the caller does not
// supply its own wait.
const DefaultPollWait = 30 * time.Second

// PollStatus is the tagged result of a bounded poll.
type PollStatus int

const (
	// PollOutcome means the session resolved and the outcome is returned.
	PollOutcome PollStatus = iota
	// PollPending means the wait elapsed first; the caller polls again.
	PollPending
	// PollNotFound means no session with that id exists (unknown or evicted).
	PollNotFound
)

// Poll is the bounded retrieval primitive for the calling agent. It returns
// the outcome immediately when the session is already resolved, otherwise it
// waits up to min(wait, remaining deadline plus one monitor tick) for a
// resolution before reporting pending. This converts unbounded suspension
// into a capped call/response cycle, so the caller never holds a socket open
// across its own invocation boundary.
func (r *Registry) Poll(ctx context.Context, id string, wait time.Duration) (choice.Outcome, PollStatus) {
	s, ok := r.Get(id)
	if !ok {
		return choice.Outcome{}, PollNotFound
	}
	if out, resolved := s.Outcome(); resolved {
		return out, PollOutcome
	}

	if wait <= 0 {
		wait = DefaultPollWait
	}
	// The extra tick covers a deadline that expires mid-wait: the monitor
	// commits the timeout outcome within one tick of expiry.
	if bound := s.Remaining() + monitorTick; bound < wait {
		wait = bound
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-s.Done():
	case <-ctx.Done():
	case <-timer.C:
	}

	if out, resolved := s.Outcome(); resolved {
		return out, PollOutcome
	}
	return choice.Outcome{}, PollPending
}
