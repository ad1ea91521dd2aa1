// Package session implements the interaction-session engine: session
// lifetime, deadline-driven timeout resolution, at-most-once outcome
// commitment, live state fan-out to passive viewers, and the bounded poll
// primitive used by the calling agent.
package session

import (
	"sync"
	"time"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/config"
)

// Session is the mutable unit holding a request, the policy in effect, the
// deadline, attached viewers and the (at most one) outcome. Sessions are
// owned by the Registry for their whole lifetime.
type Session struct {
	id        string
	request   choice.Request
	createdAt time.Time

	mu          sync.Mutex
	policy      config.Policy
	deadline    time.Time
	transport   string
	surfaceURL  string
	outcome     *choice.Outcome
	completedAt time.Time
	viewers     map[*Viewer]struct{}

	// done is closed exactly once, when the outcome is committed.
	done chan struct{}

	// onResolve is installed by the registry and runs after the winning
	// resolution, outside the session lock.
	onResolve func(*Session)

	monitorCancel func()
	monitorDone   chan struct{}
}

func newSession(id string, req choice.Request, pol config.Policy, transport, surfaceURL string) *Session {
	now := time.Now()
	return &Session{
		id:          id,
		request:     req,
		createdAt:   now,
		policy:      pol,
		deadline:    deadlineFrom(now, pol.TimeoutSeconds),
		transport:   transport,
		surfaceURL:  surfaceURL,
		viewers:     make(map[*Viewer]struct{}),
		done:        make(chan struct{}),
		monitorDone: make(chan struct{}),
	}
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// Request returns the immutable request this session was created from.
func (s *Session) Request() choice.Request { return s.request }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Policy returns the policy currently in effect.
func (s *Session) Policy() config.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// Transport returns the surface currently displaying this session.
func (s *Session) Transport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// SetTransport re-tags the display surface, e.g. on terminal-to-web hand-off.
func (s *Session) SetTransport(transport string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = transport
}

// SurfaceURL returns the URL where the session can currently be answered.
func (s *Session) SurfaceURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surfaceURL
}

// SetSurfaceURL updates the surface URL.
func (s *Session) SetSurfaceURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surfaceURL = url
}

// Deadline returns the current absolute deadline.
func (s *Session) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// Remaining returns the time left before expiry, floored at zero.
func (s *Session) Remaining() time.Duration {
	return remainingAt(s.Deadline(), time.Now())
}

// Done returns a channel closed when an outcome has been committed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outcome returns the committed outcome, if any.
func (s *Session) Outcome() (choice.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return choice.Outcome{}, false
	}
	return *s.outcome, true
}

// CompletedAt returns when the outcome was committed; zero while pending.
func (s *Session) CompletedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedAt
}

// Phase returns the coarse display phase derived from the outcome.
func (s *Session) Phase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return choice.PhasePending
	}
	return choice.PhaseForKind(s.outcome.Kind)
}

// Resolve is the single authoritative mutation. The first caller while no
// outcome is set wins and the session becomes terminal; every later call
// reports false and leaves the recorded outcome untouched. The winning call
// broadcasts the terminal status event to all viewers.
func (s *Session) Resolve(out choice.Outcome) bool {
	s.mu.Lock()
	if s.outcome != nil {
		s.mu.Unlock()
		return false
	}
	s.outcome = &out
	s.completedAt = time.Now()
	close(s.done)
	s.broadcastLocked(Event{
		Type:                 EventStatus,
		Phase:                choice.PhaseForKind(out.Kind),
		OutcomeKind:          out.Kind,
		SelectedIDs:          out.SelectedIDs,
		OptionAnnotations:    out.OptionAnnotations,
		AdditionalAnnotation: out.AdditionalAnnotation,
		TimeoutSeconds:       s.policy.TimeoutSeconds,
	})
	hook := s.onResolve
	s.mu.Unlock()

	if hook != nil {
		hook(s)
	}
	return true
}

// UpdatePolicy merges a partial patch into the current policy. When the patch
// carries a valid timeout the deadline is recomputed from now, which can both
// extend and shorten the remaining window. The merged policy is returned and
// a sync event is broadcast.
func (s *Session) UpdatePolicy(patch config.Patch) config.Policy {
	s.mu.Lock()
	merged := config.Merge(s.policy, patch)
	if patch.TimeoutSeconds != nil && *patch.TimeoutSeconds > 0 {
		s.deadline = deadlineFrom(time.Now(), merged.TimeoutSeconds)
	}
	s.policy = merged
	s.broadcastLocked(s.syncEventLocked())
	s.mu.Unlock()
	return merged
}

// Attach registers a new passive viewer and immediately queues a full
// current-state snapshot for it, followed by a sync event.
func (s *Session) Attach() *Viewer {
	v := &Viewer{ch: make(chan Event, viewerBuffer)}
	s.mu.Lock()
	s.viewers[v] = struct{}{}
	snapshot := s.snapshotEventLocked()
	v.ch <- snapshot
	v.ch <- s.syncEventLocked()
	s.mu.Unlock()
	return v
}

// Detach removes a viewer and closes its event channel. Safe to call twice.
func (s *Session) Detach(v *Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked(v)
}

func (s *Session) detachLocked(v *Viewer) {
	if _, ok := s.viewers[v]; !ok {
		return
	}
	delete(s.viewers, v)
	close(v.ch)
}

// ViewerCount reports how many viewers are currently attached.
func (s *Session) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// BroadcastSync fans the periodic sync event out to all attached viewers.
func (s *Session) BroadcastSync() {
	s.mu.Lock()
	s.broadcastLocked(s.syncEventLocked())
	s.mu.Unlock()
}

// broadcastLocked delivers ev to every viewer. A viewer whose queue is full
// is detached without retry; there is no cross-viewer ordering guarantee.
func (s *Session) broadcastLocked(ev Event) {
	for v := range s.viewers {
		select {
		case v.ch <- ev:
		default:
			s.detachLocked(v)
		}
	}
}

func (s *Session) syncEventLocked() Event {
	return Event{
		Type:             EventSync,
		RemainingSeconds: remainingAt(s.deadline, time.Now()).Seconds(),
		TimeoutSeconds:   s.policy.TimeoutSeconds,
	}
}

// snapshotEventLocked builds the full-state status event sent to a viewer on
// attach.
func (s *Session) snapshotEventLocked() Event {
	ev := Event{
		Type:             EventStatus,
		Phase:            choice.PhasePending,
		RemainingSeconds: remainingAt(s.deadline, time.Now()).Seconds(),
		TimeoutSeconds:   s.policy.TimeoutSeconds,
	}
	if s.outcome != nil {
		ev.Phase = choice.PhaseForKind(s.outcome.Kind)
		ev.OutcomeKind = s.outcome.Kind
		ev.SelectedIDs = s.outcome.SelectedIDs
		ev.OptionAnnotations = s.outcome.OptionAnnotations
		ev.AdditionalAnnotation = s.outcome.AdditionalAnnotation
	}
	return ev
}

// Close cancels the deadline monitor, waits for it to acknowledge, then
// detaches all viewers. After Close no background task for this session is
// left running.
func (s *Session) Close() {
	if s.monitorCancel != nil {
		s.monitorCancel()
		<-s.monitorDone
	}
	s.mu.Lock()
	for v := range s.viewers {
		s.detachLocked(v)
	}
	s.mu.Unlock()
}

// monitorRunning reports whether the deadline monitor is still alive.
func (s *Session) monitorRunning() bool {
	select {
	case <-s.monitorDone:
		return false
	default:
		return true
	}
}

// Snapshot is the flattened projection of a finalized session handed to the
// persistence sink.
type Snapshot struct {
	SessionID      string
	Request        choice.Request
	Outcome        *choice.Outcome
	StartedAt      time.Time
	CompletedAt    *time.Time
	TimeoutSeconds int
	SurfaceURL     string
	Transport      string
}

// Snapshot flattens the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID:      s.id,
		Request:        s.request,
		StartedAt:      s.createdAt,
		TimeoutSeconds: s.policy.TimeoutSeconds,
		SurfaceURL:     s.surfaceURL,
		Transport:      s.transport,
	}
	if s.outcome != nil {
		out := *s.outcome
		snap.Outcome = &out
		completed := s.completedAt
		snap.CompletedAt = &completed
	}
	return snap
}
