package session

// Event is a live-sync message fanned out to every viewer attached to a
// session. Two kinds exist: periodic "sync" carrying remaining time, and
// "status" emitted on state transitions. A viewer attaching mid-session
// receives a full-state status snapshot first, so a refresh or reconnect
// recovers correct UI state without replaying history.
type Event struct {
	Type                 string            `json:"type"`
	Phase                string            `json:"status,omitempty"`
	OutcomeKind          string            `json:"outcome_kind,omitempty"`
	RemainingSeconds     float64           `json:"remaining_seconds"`
	TimeoutSeconds       int               `json:"timeout_seconds,omitempty"`
	SelectedIDs          []string          `json:"selected_ids,omitempty"`
	OptionAnnotations    map[string]string `json:"option_annotations,omitempty"`
	AdditionalAnnotation string            `json:"additional_annotation,omitempty"`
}

// Event type values.
const (
	EventSync   = "sync"
	EventStatus = "status"
)

// viewerBuffer is the per-connection outbound queue depth. A viewer that
// falls this far behind is detached rather than blocking the broadcaster.
const viewerBuffer = 16

// Viewer is one passive connection attached to a session. Delivery is
// best-effort and per-connection FIFO; a viewer never mutates session state.
type Viewer struct {
	ch chan Event
}

// Events returns the channel of outbound messages for this viewer. The
// channel is closed when the viewer is detached or the session closes.
func (v *Viewer) Events() <-chan Event {
	return v.ch
}
