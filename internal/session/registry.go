package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/config"
	"github.com/askgate-dev/askgate/internal/log"
)

// Sink receives the flattened snapshot of a finalized session for history.
// Save failures only affect history durability and must never abort the
// interaction flow.
type Sink interface {
	Save(Snapshot) error
}

// Registry is the keyed store of live sessions. It owns creation, lookup and
// removal; each session's deadline monitor is 1:1 with the session and is
// cancelled when the session is removed. Construct one registry at process
// start and pass it by reference to every handler.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	sink   Sink
	logger *log.Logger

	// onChange fires after create, resolve and remove so the server can push
	// interaction-list updates. Best-effort, may be nil.
	onChange func()

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates an empty registry. sink and logger may be nil.
func NewRegistry(sink Sink, logger *log.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		sink:     sink,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// SetOnChange installs the lifecycle-change hook. Call before serving.
func (r *Registry) SetOnChange(fn func()) {
	r.onChange = fn
}

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}

// newSessionID returns a fresh high-entropy opaque id.
func newSessionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Create builds a session from a validated request and policy, spawns its
// deadline monitor, and inserts it into the registry. It returns immediately
// and never blocks on resolution. surfaceURL, when non-nil, is called with
// the new session's id before the monitor starts, so even an immediate
// timeout outcome carries the surface URL.
func (r *Registry) Create(req choice.Request, pol config.Policy, transport string, surfaceURL func(id string) string) *Session {
	id := newSessionID()
	url := ""
	if surfaceURL != nil {
		url = surfaceURL(id)
	}
	s := newSession(id, req, pol, transport, url)
	s.onResolve = r.finalize

	ctx, cancel := context.WithCancel(context.Background())
	s.monitorCancel = cancel
	go s.runMonitor(ctx)

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.logEvent(log.LogEvent{
		Event:          log.EventSessionCreated,
		SessionID:      s.id,
		Title:          req.Title,
		Transport:      transport,
		TimeoutSeconds: pol.TimeoutSeconds,
	})
	r.notify()
	return s
}

// Get looks a session up by id. A session found unresolved past its deadline
// with a dead monitor is treated as expired: it is resolved with its timeout
// outcome, persisted, and evicted, and Get reports not found.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if _, resolved := s.Outcome(); !resolved && s.Remaining() <= 0 && !s.monitorRunning() {
		pol := s.Policy()
		s.Resolve(choice.TimeoutOutcome(s.Request(), pol.TimeoutAction, pol.UseDefaultOption, s.SurfaceURL()))
		r.Remove(id)
		return nil, false
	}
	return s, true
}

// Remove cancels the session's monitor, detaches all viewers and deletes the
// entry. No background task for the session outlives Remove.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	s.Close()
	r.logEvent(log.LogEvent{Event: log.EventSessionRemoved, SessionID: id})
	r.notify()
}

// List returns a snapshot of the current entries. It never mutates.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// finalize runs once per session, after the winning resolution.
func (r *Registry) finalize(s *Session) {
	out, _ := s.Outcome()
	event := log.EventSessionResolved
	if choice.PhaseForKind(out.Kind) == choice.PhaseTimeout {
		event = log.EventSessionTimeout
	}
	r.logEvent(log.LogEvent{
		Event:       event,
		SessionID:   s.ID(),
		Title:       s.Request().Title,
		Transport:   s.Transport(),
		OutcomeKind: out.Kind,
	})

	if r.sink != nil && s.Policy().PersistenceEnabled {
		if err := r.sink.Save(s.Snapshot()); err != nil {
			// History durability only; the interaction flow continues.
			r.logEvent(log.LogEvent{Event: log.EventHistorySaved, SessionID: s.ID(), Error: err.Error()})
		} else {
			r.logEvent(log.LogEvent{Event: log.EventHistorySaved, SessionID: s.ID()})
		}
	}
	r.notify()
}

// StartReaper starts a goroutine that periodically evicts resolved sessions
// once their post-completion grace has elapsed.
func (r *Registry) StartReaper() {
	go func() {
		ticker := time.NewTicker(reaperTick)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.reapCompleted()
			}
		}
	}()
}

func (r *Registry) reapCompleted() {
	now := time.Now()

	r.mu.RLock()
	var expired []string
	for id, s := range r.sessions {
		if completed := s.CompletedAt(); !completed.IsZero() && now.Sub(completed) >= completedGrace {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		r.Remove(id)
	}
}

// CloseAll stops the reaper, resolves every still-pending session as
// interrupted, and tears all sessions down. Used on engine shutdown.
func (r *Registry) CloseAll() {
	r.stopOnce.Do(func() { close(r.stopCh) })

	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		if _, resolved := s.Outcome(); !resolved {
			s.Resolve(choice.Interrupted(s.SurfaceURL()))
		}
		s.Close()
	}
}

func (r *Registry) logEvent(ev log.LogEvent) {
	if r.logger == nil {
		return
	}
	_ = r.logger.Append(ev)
}
