package choice

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed request or submission. Handlers map it
// to a 400 response; the session involved is left unresolved.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ParseRequest validates and normalizes raw request fields into a Request.
// Zero timeout falls back to DefaultTimeoutSeconds; an empty timeout action
// falls back to submit.
func ParseRequest(raw Request) (Request, error) {
	req := raw
	req.Title = strings.TrimSpace(raw.Title)
	req.Prompt = strings.TrimSpace(raw.Prompt)
	if req.Title == "" {
		return Request{}, invalid("title", "must be a non-empty string")
	}
	if req.Prompt == "" {
		return Request{}, invalid("prompt", "must be a non-empty string")
	}

	req.SelectionMode = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw.SelectionMode)), "-", "_")
	if req.SelectionMode != SelectionSingle && req.SelectionMode != SelectionMulti {
		return Request{}, invalid("selection_mode", "must be %q or %q", SelectionSingle, SelectionMulti)
	}

	if err := validateOptions(req.Options, req.SelectionMode); err != nil {
		return Request{}, err
	}

	if req.TimeoutSeconds == 0 {
		req.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if req.TimeoutSeconds < 0 {
		return Request{}, invalid("timeout_seconds", "must be positive")
	}

	if req.TimeoutAction == "" {
		req.TimeoutAction = TimeoutSubmit
	}
	switch req.TimeoutAction {
	case TimeoutSubmit, TimeoutCancel, TimeoutReinvoke:
	default:
		return Request{}, invalid("timeout_action", "must be submit, cancel or reinvoke")
	}

	return req, nil
}

func validateOptions(options []Option, selectionMode string) error {
	if len(options) == 0 {
		return invalid("options", "must contain at least one entry")
	}
	seen := make(map[string]bool, len(options))
	recommended := 0
	for _, opt := range options {
		if strings.TrimSpace(opt.ID) == "" {
			return invalid("options", "entries must include a non-empty id")
		}
		if seen[opt.ID] {
			return invalid("options", "duplicate option id: %s", opt.ID)
		}
		seen[opt.ID] = true
		if opt.Recommended {
			recommended++
		}
	}
	if recommended == 0 {
		return invalid("options", "at least one option must be marked recommended")
	}
	if selectionMode == SelectionSingle && recommended > 1 {
		return invalid("options", "single-select requests may only mark one recommended option")
	}
	return nil
}

// ValidateSelection checks that every submitted id names an option of req.
func ValidateSelection(req Request, selectedIDs []string) error {
	for _, id := range selectedIDs {
		if !req.HasOption(id) {
			return invalid("selected_ids", "unknown option id: %s", id)
		}
	}
	return nil
}
