package choice

// Outcome constructors. All resolution paths (submission, timeout, explicit
// cancellation, shutdown) build their outcome here so the shape stays uniform.

// Selected builds a selection outcome after validating the submitted ids.
func Selected(req Request, selectedIDs []string, annotations map[string]string, additional, surfaceURL string) (Outcome, error) {
	if err := ValidateSelection(req, selectedIDs); err != nil {
		return Outcome{}, err
	}
	ids := selectedIDs
	if ids == nil {
		ids = []string{}
	}
	return Outcome{
		Kind:                 KindSelected,
		SelectedIDs:          ids,
		OptionAnnotations:    annotations,
		AdditionalAnnotation: additional,
		SurfaceURL:           surfaceURL,
	}, nil
}

// Cancelled builds an explicit-cancellation outcome with an empty selection.
func Cancelled(annotations map[string]string, additional, surfaceURL string) Outcome {
	return Outcome{
		Kind:                 KindCancelled,
		SelectedIDs:          []string{},
		OptionAnnotations:    annotations,
		AdditionalAnnotation: additional,
		SurfaceURL:           surfaceURL,
	}
}

// Interrupted marks a session that was torn down before anyone resolved it,
// e.g. the engine shutting down with the prompt still pending.
func Interrupted(surfaceURL string) Outcome {
	return Outcome{
		Kind:        KindInterrupted,
		SelectedIDs: []string{},
		SurfaceURL:  surfaceURL,
	}
}

// TimeoutOutcome computes the outcome for an expired session from the
// effective timeout policy. With action submit the recommended option is
// auto-selected when enabled and present; otherwise the expiry degrades to
// timeout_cancelled.
func TimeoutOutcome(req Request, action string, useDefault bool, surfaceURL string) Outcome {
	out := Outcome{
		Kind:        KindTimeoutCancelled,
		SelectedIDs: []string{},
		SurfaceURL:  surfaceURL,
	}
	switch action {
	case TimeoutReinvoke:
		out.Kind = KindTimeoutReinvoke
	case TimeoutCancel:
		out.Kind = KindTimeoutCancelled
	default:
		if useDefault {
			if opt, ok := req.DefaultOption(); ok {
				out.Kind = KindTimeoutAutoSubmitted
				out.SelectedIDs = []string{opt.ID}
			}
		}
	}
	return out
}
