package choice

import "testing"

func TestSelectedValidatesIDs(t *testing.T) {
	req, err := ParseRequest(validRequest())
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}

	out, err := Selected(req, []string{"deploy"}, nil, "looks good", "http://x/choice/1")
	if err != nil {
		t.Fatalf("Selected failed: %v", err)
	}
	if out.Kind != KindSelected {
		t.Errorf("kind = %q, want %q", out.Kind, KindSelected)
	}
	if len(out.SelectedIDs) != 1 || out.SelectedIDs[0] != "deploy" {
		t.Errorf("selected ids = %v, want [deploy]", out.SelectedIDs)
	}
	if out.AdditionalAnnotation != "looks good" {
		t.Errorf("annotation = %q, want %q", out.AdditionalAnnotation, "looks good")
	}

	if _, err := Selected(req, []string{"abort"}, nil, "", ""); err == nil {
		t.Error("expected error for unknown option id")
	}
}

func TestSelectedNilIDsBecomeEmptySlice(t *testing.T) {
	req, err := ParseRequest(validRequest())
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	out, err := Selected(req, nil, nil, "", "")
	if err != nil {
		t.Fatalf("Selected failed: %v", err)
	}
	if out.SelectedIDs == nil {
		t.Error("selected ids should be an empty slice, not nil")
	}
}

func TestCancelledOutcome(t *testing.T) {
	out := Cancelled(map[string]string{"deploy": "not today"}, "busy", "")
	if out.Kind != KindCancelled {
		t.Errorf("kind = %q, want %q", out.Kind, KindCancelled)
	}
	if len(out.SelectedIDs) != 0 {
		t.Errorf("selected ids = %v, want empty", out.SelectedIDs)
	}
	if out.OptionAnnotations["deploy"] != "not today" {
		t.Errorf("option annotation missing: %v", out.OptionAnnotations)
	}
}

func TestTimeoutOutcomeAutoSubmitsDefault(t *testing.T) {
	req, err := ParseRequest(validRequest())
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}

	out := TimeoutOutcome(req, TimeoutSubmit, true, "")
	if out.Kind != KindTimeoutAutoSubmitted {
		t.Errorf("kind = %q, want %q", out.Kind, KindTimeoutAutoSubmitted)
	}
	if len(out.SelectedIDs) != 1 || out.SelectedIDs[0] != "deploy" {
		t.Errorf("selected ids = %v, want [deploy]", out.SelectedIDs)
	}
}

func TestTimeoutOutcomeWithoutDefaultFallsBackToCancel(t *testing.T) {
	req := Request{
		SelectionMode: SelectionMulti,
		Options:       []Option{{ID: "a"}, {ID: "b"}},
	}

	out := TimeoutOutcome(req, TimeoutSubmit, true, "")
	if out.Kind != KindTimeoutCancelled {
		t.Errorf("kind = %q, want %q", out.Kind, KindTimeoutCancelled)
	}

	// Auto-submit disabled degrades the same way even with a default present.
	req.Options[0].Recommended = true
	out = TimeoutOutcome(req, TimeoutSubmit, false, "")
	if out.Kind != KindTimeoutCancelled {
		t.Errorf("kind with auto-submit off = %q, want %q", out.Kind, KindTimeoutCancelled)
	}
}

func TestTimeoutOutcomeCancelAndReinvoke(t *testing.T) {
	req, err := ParseRequest(validRequest())
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}

	if out := TimeoutOutcome(req, TimeoutCancel, true, ""); out.Kind != KindTimeoutCancelled {
		t.Errorf("cancel kind = %q, want %q", out.Kind, KindTimeoutCancelled)
	}
	out := TimeoutOutcome(req, TimeoutReinvoke, true, "")
	if out.Kind != KindTimeoutReinvoke {
		t.Errorf("reinvoke kind = %q, want %q", out.Kind, KindTimeoutReinvoke)
	}
	if len(out.SelectedIDs) != 0 {
		t.Errorf("reinvoke selected ids = %v, want empty", out.SelectedIDs)
	}
}

func TestInterruptedOutcome(t *testing.T) {
	out := Interrupted("http://x/choice/1")
	if out.Kind != KindInterrupted {
		t.Errorf("kind = %q, want %q", out.Kind, KindInterrupted)
	}
	if out.SurfaceURL != "http://x/choice/1" {
		t.Errorf("surface url = %q, want %q", out.SurfaceURL, "http://x/choice/1")
	}
}
