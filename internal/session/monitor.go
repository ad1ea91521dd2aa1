package session

import (
	"context"
	"time"

	"github.com/askgate-dev/askgate/internal/choice"
)

// runMonitor is the per-session deadline monitor. Exactly one runs for each
// session, started at creation and cancelled when the session is removed.
//
// While the session is unresolved it wakes every tick, broadcasts a sync
// event, and on expiry computes the timeout outcome from the policy in
// effect and resolves through the same exclusive path submissions use. If
// the session resolves or closes externally the monitor stops without
// resolving.
func (s *Session) runMonitor(ctx context.Context) {
	defer close(s.monitorDone)

	ticker := time.NewTicker(monitorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			// Resolved externally; push one last sync so viewers see the
			// final remaining time.
			s.BroadcastSync()
			return
		case <-ticker.C:
			s.BroadcastSync()
			if s.Remaining() > 0 {
				continue
			}
			pol := s.Policy()
			out := choice.TimeoutOutcome(s.Request(), pol.TimeoutAction, pol.UseDefaultOption, s.SurfaceURL())
			// Resolve broadcasts the terminal status event if we win; a
			// submission landing in the same instant wins instead and the
			// outcome stands untouched.
			s.Resolve(out)
			return
		}
	}
}
