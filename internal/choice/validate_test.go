package choice

import (
	"errors"
	"testing"
)

func validRequest() Request {
	return Request{
		Title:         "Deploy?",
		Prompt:        "Ship release 1.4 to production?",
		SelectionMode: SelectionSingle,
		Options: []Option{
			{ID: "deploy", Description: "Roll out now", Recommended: true},
			{ID: "hold", Description: "Wait for QA"},
		},
	}
}

func TestParseRequestDefaults(t *testing.T) {
	req, err := ParseRequest(validRequest())
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if req.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Errorf("timeout = %d, want %d", req.TimeoutSeconds, DefaultTimeoutSeconds)
	}
	if req.TimeoutAction != TimeoutSubmit {
		t.Errorf("timeout action = %q, want %q", req.TimeoutAction, TimeoutSubmit)
	}
}

func TestParseRequestTrimsAndNormalizes(t *testing.T) {
	raw := validRequest()
	raw.Title = "  Deploy?  "
	raw.SelectionMode = " Single "
	req, err := ParseRequest(raw)
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if req.Title != "Deploy?" {
		t.Errorf("title = %q, want %q", req.Title, "Deploy?")
	}
	if req.SelectionMode != SelectionSingle {
		t.Errorf("selection mode = %q, want %q", req.SelectionMode, SelectionSingle)
	}
}

func TestParseRequestRejectsEmptyTitle(t *testing.T) {
	raw := validRequest()
	raw.Title = "   "
	if _, err := ParseRequest(raw); err == nil {
		t.Error("expected error for blank title")
	}
}

func TestParseRequestRejectsBadMode(t *testing.T) {
	raw := validRequest()
	raw.SelectionMode = "pick-one"
	_, err := ParseRequest(raw)
	if err == nil {
		t.Fatal("expected error for unknown selection mode")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("error type = %T, want *ValidationError", err)
	}
}

func TestParseRequestRejectsNegativeTimeout(t *testing.T) {
	raw := validRequest()
	raw.TimeoutSeconds = -5
	if _, err := ParseRequest(raw); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestParseRequestRejectsNoOptions(t *testing.T) {
	raw := validRequest()
	raw.Options = nil
	if _, err := ParseRequest(raw); err == nil {
		t.Error("expected error for empty options")
	}
}

func TestParseRequestRejectsDuplicateOptionIDs(t *testing.T) {
	raw := validRequest()
	raw.Options = []Option{
		{ID: "deploy", Recommended: true},
		{ID: "deploy"},
	}
	if _, err := ParseRequest(raw); err == nil {
		t.Error("expected error for duplicate option ids")
	}
}

func TestParseRequestRequiresRecommended(t *testing.T) {
	raw := validRequest()
	raw.Options = []Option{{ID: "a"}, {ID: "b"}}
	if _, err := ParseRequest(raw); err == nil {
		t.Error("expected error when no option is recommended")
	}
}

func TestParseRequestSingleModeRejectsTwoRecommended(t *testing.T) {
	raw := validRequest()
	raw.Options = []Option{
		{ID: "a", Recommended: true},
		{ID: "b", Recommended: true},
	}
	if _, err := ParseRequest(raw); err == nil {
		t.Error("expected error for two recommended options in single mode")
	}
}

func TestParseRequestMultiModeAllowsTwoRecommended(t *testing.T) {
	raw := validRequest()
	raw.SelectionMode = SelectionMulti
	raw.Options = []Option{
		{ID: "a", Recommended: true},
		{ID: "b", Recommended: true},
	}
	if _, err := ParseRequest(raw); err != nil {
		t.Errorf("ParseRequest failed: %v", err)
	}
}

func TestValidateSelectionUnknownID(t *testing.T) {
	req, err := ParseRequest(validRequest())
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if err := ValidateSelection(req, []string{"deploy", "abort"}); err == nil {
		t.Error("expected error for unknown option id")
	}
	if err := ValidateSelection(req, []string{"deploy"}); err != nil {
		t.Errorf("ValidateSelection failed for known id: %v", err)
	}
}

func TestDefaultOptionIsFirstRecommended(t *testing.T) {
	req := Request{
		SelectionMode: SelectionMulti,
		Options: []Option{
			{ID: "a"},
			{ID: "b", Recommended: true},
			{ID: "c", Recommended: true},
		},
	}
	opt, ok := req.DefaultOption()
	if !ok {
		t.Fatal("expected a default option")
	}
	if opt.ID != "b" {
		t.Errorf("default option = %q, want %q", opt.ID, "b")
	}
}

func TestPhaseForKind(t *testing.T) {
	cases := map[string]string{
		KindSelected:             PhaseSubmitted,
		KindCancelled:            PhaseCancelled,
		KindTimeoutAutoSubmitted: PhaseTimeout,
		KindTimeoutCancelled:     PhaseTimeout,
		KindTimeoutReinvoke:      PhaseTimeout,
		KindInterrupted:          PhaseInterrupted,
		"":                       PhasePending,
	}
	for kind, want := range cases {
		if got := PhaseForKind(kind); got != want {
			t.Errorf("PhaseForKind(%q) = %q, want %q", kind, got, want)
		}
	}
}
