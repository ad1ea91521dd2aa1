// Package choice defines the value objects shared by every surface of an
// interaction: the request being asked, the options offered to the human,
// and the single outcome recorded when the interaction resolves.
package choice

// DefaultTimeoutSeconds is applied when a request does not carry its own
// timeout and no configured value overrides it.
const DefaultTimeoutSeconds = 300

// Selection modes.
const (
	SelectionSingle = "single"
	SelectionMulti  = "multi"
)

// Transports describe which surface is displaying a session.
const (
	TransportTerminal = "terminal"
	TransportWeb      = "web"
	// TransportTerminalWeb marks a session that was launched for a terminal
	// and later switched to the browser. Identity is preserved across the switch.
	TransportTerminalWeb = "terminal-web"
)

// Timeout actions.
const (
	TimeoutSubmit   = "submit"
	TimeoutCancel   = "cancel"
	TimeoutReinvoke = "reinvoke"
)

// Outcome kinds.
const (
	KindSelected             = "selected"
	KindCancelled            = "cancelled"
	KindTimeoutAutoSubmitted = "timeout_auto_submitted"
	KindTimeoutCancelled     = "timeout_cancelled"
	KindTimeoutReinvoke      = "timeout_reinvoke_requested"
	KindInterrupted          = "interrupted"
)

// Option is a single selectable entry. The id doubles as the visible label
// and must be unique within a request.
type Option struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Recommended bool   `json:"recommended,omitempty" yaml:"recommended,omitempty"`
}

// Request describes what is being asked. It is immutable once a session has
// been created from it.
type Request struct {
	Title          string   `json:"title"`
	Prompt         string   `json:"prompt"`
	SelectionMode  string   `json:"selection_mode"`
	Options        []Option `json:"options"`
	TimeoutSeconds int      `json:"timeout_seconds"`

	SingleSubmitMode bool   `json:"single_submit_mode"`
	UseDefaultOption bool   `json:"use_default_option"`
	TimeoutAction    string `json:"timeout_action"`
}

// DefaultOption returns the first recommended option, used for timeout
// auto-submission.
func (r Request) DefaultOption() (Option, bool) {
	for _, opt := range r.Options {
		if opt.Recommended {
			return opt, true
		}
	}
	return Option{}, false
}

// HasOption reports whether id names one of the request's options.
func (r Request) HasOption(id string) bool {
	for _, opt := range r.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Outcome is the final, single recorded result of a session. It is created
// exactly once per session.
type Outcome struct {
	Kind                 string            `json:"kind"`
	SelectedIDs          []string          `json:"selected_ids"`
	OptionAnnotations    map[string]string `json:"option_annotations,omitempty"`
	AdditionalAnnotation string            `json:"additional_annotation,omitempty"`
	SurfaceURL           string            `json:"surface_url,omitempty"`
}

// Terminal phases derived from an outcome kind, broadcast to viewers and
// shown in the interaction list.
const (
	PhasePending     = "pending"
	PhaseSubmitted   = "submitted"
	PhaseCancelled   = "cancelled"
	PhaseTimeout     = "timeout"
	PhaseInterrupted = "interrupted"
)

// PhaseForKind maps an outcome kind to the coarse display phase.
func PhaseForKind(kind string) string {
	switch kind {
	case KindSelected:
		return PhaseSubmitted
	case KindCancelled:
		return PhaseCancelled
	case KindTimeoutAutoSubmitted, KindTimeoutCancelled, KindTimeoutReinvoke:
		return PhaseTimeout
	case KindInterrupted:
		return PhaseInterrupted
	default:
		return PhasePending
	}
}
