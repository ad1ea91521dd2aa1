package server

import (
	"time"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/config"
)

// Submit actions accepted by the submit endpoints. An empty action means
// selection; "submit" and "cancel" are accepted as aliases.
const (
	ActionSubmit         = "selected"
	ActionCancel         = "cancelled"
	ActionUpdateSettings = "update_settings"
	ActionSwitchToWeb    = "switch_to_web"
)

// CreateSessionRequest is the body for POST /session.
type CreateSessionRequest struct {
	Request   choice.Request `json:"request"`
	Policy    *config.Patch  `json:"policy,omitempty"`
	Transport string         `json:"transport,omitempty"`
}

// SessionDescriptor is returned to the caller right after creation. It never
// carries an outcome; the caller retrieves that by polling.
type SessionDescriptor struct {
	SessionID      string `json:"session_id"`
	Transport      string `json:"transport"`
	SurfaceURL     string `json:"surface_url"`
	LaunchCommand  string `json:"launch_command,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SessionState is the full live view of one session, served to both the
// terminal client and the web page.
type SessionState struct {
	SessionID        string          `json:"session_id"`
	Status           string          `json:"status"` // pending | completed
	Phase            string          `json:"phase"`
	Request          choice.Request  `json:"request"`
	Policy           config.Policy   `json:"policy"`
	Transport        string          `json:"transport"`
	SurfaceURL       string          `json:"surface_url,omitempty"`
	RemainingSeconds float64         `json:"remaining_seconds"`
	CreatedAt        time.Time       `json:"created_at"`
	Outcome          *choice.Outcome `json:"outcome,omitempty"`
}

// SubmitRequest is the body for the submit endpoints. Policy, when present,
// is applied before the action is interpreted.
type SubmitRequest struct {
	Action               string            `json:"action,omitempty"`
	SelectedIDs          []string          `json:"selected_ids,omitempty"`
	OptionAnnotations    map[string]string `json:"option_annotations,omitempty"`
	AdditionalAnnotation string            `json:"additional_annotation,omitempty"`
	Policy               *config.Patch     `json:"policy,omitempty"`
}

// SubmitResponse reports what the submission did. Status "already-set" means
// another surface won the race; Outcome then carries the recorded result, not
// the rejected one.
type SubmitResponse struct {
	Status  string          `json:"status"` // ok | already-set
	Phase   string          `json:"phase,omitempty"`
	Outcome *choice.Outcome `json:"outcome,omitempty"`
	Policy  *config.Policy  `json:"policy,omitempty"`
	WebURL  string          `json:"web_url,omitempty"`
}

// PollResponse is the body for the bounded poll endpoint.
type PollResponse struct {
	Status  string          `json:"status"` // completed | pending
	Outcome *choice.Outcome `json:"outcome,omitempty"`
}

// InteractionSummary is one row of the live interaction list.
type InteractionSummary struct {
	SessionID        string    `json:"session_id"`
	Title            string    `json:"title"`
	Prompt           string    `json:"prompt"`
	Transport        string    `json:"transport"`
	Phase            string    `json:"phase"`
	RemainingSeconds float64   `json:"remaining_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// InteractionListResponse wraps the list endpoint and the list stream frames.
type InteractionListResponse struct {
	Type         string               `json:"type,omitempty"` // set on stream frames
	Interactions []InteractionSummary `json:"interactions"`
}

// InteractionDetail is the merged live-or-history view of one interaction.
type InteractionDetail struct {
	Source           string          `json:"source"` // live | history
	SessionID        string          `json:"session_id"`
	Title            string          `json:"title"`
	Prompt           string          `json:"prompt"`
	SelectionMode    string          `json:"selection_mode"`
	Transport        string          `json:"transport"`
	Options          []choice.Option `json:"options"`
	Phase            string          `json:"phase"`
	RemainingSeconds float64         `json:"remaining_seconds,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	TimeoutSeconds   int             `json:"timeout_seconds"`
	SurfaceURL       string          `json:"surface_url,omitempty"`
	Outcome          *choice.Outcome `json:"outcome,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// wsClientMessage is the small set of messages a stream client may send.
type wsClientMessage struct {
	Type    string `json:"type"`
	Seconds int    `json:"seconds,omitempty"`
}
