package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/config"
	"github.com/askgate-dev/askgate/internal/history"
	"github.com/askgate-dev/askgate/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	store := config.NewStore(dir)

	hist, err := history.NewStore(filepath.Join(dir, "history.db"), 3, 100)
	if err != nil {
		t.Fatalf("opening history store: %v", err)
	}

	registry := session.NewRegistry(hist, nil)

	srv, err := NewServer("127.0.0.1", 0, registry, store, hist, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	go func() { _ = srv.Start() }()

	t.Cleanup(func() {
		registry.CloseAll()
		_ = srv.Stop()
		_ = hist.Close()
	})
	return srv
}

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func createRequest() CreateSessionRequest {
	return CreateSessionRequest{
		Request: choice.Request{
			Title:         "Deploy?",
			Prompt:        "Ship release 1.4 to production?",
			SelectionMode: choice.SelectionSingle,
			Options: []choice.Option{
				{ID: "deploy", Description: "Roll out now", Recommended: true},
				{ID: "hold", Description: "Wait for QA"},
			},
		},
		Transport: choice.TransportTerminal,
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	if code := getJSON(t, srv.BaseURL()+"/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestCreateSessionDescriptor(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	if code := postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if desc.SessionID == "" {
		t.Fatal("descriptor missing session id")
	}
	if desc.Transport != choice.TransportTerminal {
		t.Errorf("transport = %q, want terminal", desc.Transport)
	}
	if !strings.Contains(desc.LaunchCommand, desc.SessionID) {
		t.Errorf("launch command %q does not name the session", desc.LaunchCommand)
	}
	if !strings.Contains(desc.LaunchCommand, srv.BaseURL()) {
		t.Errorf("launch command %q does not name the server", desc.LaunchCommand)
	}
	if desc.TimeoutSeconds != choice.DefaultTimeoutSeconds {
		t.Errorf("timeout = %d, want %d", desc.TimeoutSeconds, choice.DefaultTimeoutSeconds)
	}

	var state SessionState
	if code := getJSON(t, srv.BaseURL()+"/session/"+desc.SessionID, &state); code != http.StatusOK {
		t.Fatalf("GET session status = %d, want 200", code)
	}
	if state.Status != "pending" {
		t.Errorf("status = %q, want pending", state.Status)
	}
	if state.Request.Title != "Deploy?" {
		t.Errorf("title = %q, want Deploy?", state.Request.Title)
	}
	if state.RemainingSeconds <= 0 {
		t.Errorf("remaining = %f, want positive", state.RemainingSeconds)
	}
}

func TestCreateSessionWebTransport(t *testing.T) {
	srv := newTestServer(t)

	req := createRequest()
	req.Transport = choice.TransportWeb

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", req, &desc)
	if !strings.Contains(desc.SurfaceURL, "/choice/"+desc.SessionID) {
		t.Errorf("surface url = %q, want the choice page", desc.SurfaceURL)
	}
	if desc.LaunchCommand != "" {
		t.Errorf("web session should carry no launch command, got %q", desc.LaunchCommand)
	}
}

func TestCreateSessionRejectsInvalidRequest(t *testing.T) {
	srv := newTestServer(t)

	req := createRequest()
	req.Request.Options = nil

	var apiErr errorResponse
	if code := postJSON(t, srv.BaseURL()+"/session", req, &apiErr); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if apiErr.Error == "" {
		t.Error("expected an error message")
	}
}

func TestSubmitPollRoundtrip(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)

	submit := SubmitRequest{
		SelectedIDs:          []string{"deploy"},
		AdditionalAnnotation: "lgtm",
	}
	var resp SubmitResponse
	if code := postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", submit, &resp); code != http.StatusOK {
		t.Fatalf("submit status = %d, want 200", code)
	}
	if resp.Status != "ok" {
		t.Fatalf("submit result = %q, want ok", resp.Status)
	}
	if resp.Outcome.Kind != choice.KindSelected {
		t.Errorf("kind = %q, want selected", resp.Outcome.Kind)
	}

	var poll PollResponse
	if code := getJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/poll?wait_seconds=1", &poll); code != http.StatusOK {
		t.Fatalf("poll status = %d, want 200", code)
	}
	if poll.Status != "completed" {
		t.Fatalf("poll result = %q, want completed", poll.Status)
	}
	if poll.Outcome.Kind != resp.Outcome.Kind || poll.Outcome.AdditionalAnnotation != "lgtm" {
		t.Errorf("polled outcome %+v differs from submitted %+v", poll.Outcome, resp.Outcome)
	}

	// A second surface racing in after resolution sees the recorded outcome.
	var second SubmitResponse
	postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{Action: ActionCancel}, &second)
	if second.Status != "already-set" {
		t.Errorf("second submit result = %q, want already-set", second.Status)
	}
	if second.Outcome.Kind != choice.KindSelected {
		t.Errorf("second submit outcome = %q, want the recorded selected", second.Outcome.Kind)
	}
}

func TestSubmitUnknownOptionRejected(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)

	var apiErr errorResponse
	code := postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{SelectedIDs: []string{"abort"}}, &apiErr)
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}

	// The session must still be pending afterwards.
	var state SessionState
	getJSON(t, srv.BaseURL()+"/session/"+desc.SessionID, &state)
	if state.Status != "pending" {
		t.Errorf("status after rejected submit = %q, want pending", state.Status)
	}
}

func TestSubmitTimeoutMirror(t *testing.T) {
	srv := newTestServer(t)

	req := createRequest()
	req.Request.TimeoutAction = choice.TimeoutCancel

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", req, &desc)

	// A surface whose countdown hit zero mirrors the expiry; the outcome is
	// computed server-side from the session's timeout action.
	var resp SubmitResponse
	if code := postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{Action: "timeout_cancelled"}, &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Status != "ok" {
		t.Fatalf("submit result = %q, want ok", resp.Status)
	}
	if resp.Outcome.Kind != choice.KindTimeoutCancelled {
		t.Errorf("kind = %q, want %q", resp.Outcome.Kind, choice.KindTimeoutCancelled)
	}
}

func TestSubmitTimeoutMirrorAutoSubmitsDefault(t *testing.T) {
	srv := newTestServer(t)

	req := createRequest()
	req.Request.UseDefaultOption = true

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", req, &desc)

	var resp SubmitResponse
	postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{Action: "timeout_auto_submitted"}, &resp)
	if resp.Outcome.Kind != choice.KindTimeoutAutoSubmitted {
		t.Fatalf("kind = %q, want %q", resp.Outcome.Kind, choice.KindTimeoutAutoSubmitted)
	}
	if len(resp.Outcome.SelectedIDs) != 1 || resp.Outcome.SelectedIDs[0] != "deploy" {
		t.Errorf("selected ids = %v, want the recommended [deploy]", resp.Outcome.SelectedIDs)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t)

	if code := getJSON(t, srv.BaseURL()+"/session/nope", nil); code != http.StatusNotFound {
		t.Errorf("GET status = %d, want 404", code)
	}
	if code := postJSON(t, srv.BaseURL()+"/session/nope/submit", SubmitRequest{}, nil); code != http.StatusNotFound {
		t.Errorf("submit status = %d, want 404", code)
	}
	if code := getJSON(t, srv.BaseURL()+"/session/nope/poll?wait_seconds=1", nil); code != http.StatusNotFound {
		t.Errorf("poll status = %d, want 404", code)
	}
}

func TestSwitchToWebKeepsIdentity(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)

	var resp SubmitResponse
	postJSON(t, srv.BaseURL()+"/terminal/"+desc.SessionID+"/submit", SubmitRequest{Action: ActionSwitchToWeb}, &resp)
	if !strings.Contains(resp.WebURL, "/choice/"+desc.SessionID) {
		t.Fatalf("web url = %q, want the same session's choice page", resp.WebURL)
	}

	var state SessionState
	getJSON(t, srv.BaseURL()+"/session/"+desc.SessionID, &state)
	if state.Transport != choice.TransportTerminalWeb {
		t.Errorf("transport = %q, want %q", state.Transport, choice.TransportTerminalWeb)
	}
	if state.Status != "pending" {
		t.Errorf("status = %q, switch must not resolve the session", state.Status)
	}

	// The web surface resolves it; the caller sees exactly that outcome.
	var submit SubmitResponse
	postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{SelectedIDs: []string{"hold"}}, &submit)
	if submit.Status != "ok" {
		t.Fatalf("submit after switch = %q, want ok", submit.Status)
	}

	var poll PollResponse
	getJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/poll", &poll)
	if poll.Status != "completed" || poll.Outcome.SelectedIDs[0] != "hold" {
		t.Errorf("poll = %+v, want the hold selection", poll)
	}
}

func TestUpdateSettingsExtendsTimeout(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)

	seconds := 900
	var resp SubmitResponse
	postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit",
		SubmitRequest{Action: ActionUpdateSettings, Policy: &config.Patch{TimeoutSeconds: &seconds}}, &resp)
	if resp.Status != "ok" {
		t.Fatalf("update result = %q, want ok", resp.Status)
	}
	if resp.Policy.TimeoutSeconds != 900 {
		t.Errorf("policy timeout = %d, want 900", resp.Policy.TimeoutSeconds)
	}

	var state SessionState
	getJSON(t, srv.BaseURL()+"/session/"+desc.SessionID, &state)
	if state.RemainingSeconds < 800 {
		t.Errorf("remaining = %f, want close to 900 after the update", state.RemainingSeconds)
	}
}

func TestConfigEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var pol config.Policy
	getJSON(t, srv.BaseURL()+"/api/config", &pol)
	if pol.TimeoutSeconds != choice.DefaultTimeoutSeconds {
		t.Errorf("default timeout = %d, want %d", pol.TimeoutSeconds, choice.DefaultTimeoutSeconds)
	}

	transport := choice.TransportWeb
	var updated config.Policy
	postJSON(t, srv.BaseURL()+"/api/config", config.Patch{Transport: &transport}, &updated)
	if updated.Transport != choice.TransportWeb {
		t.Errorf("updated transport = %q, want web", updated.Transport)
	}

	var reread config.Policy
	getJSON(t, srv.BaseURL()+"/api/config", &reread)
	if reread.Transport != choice.TransportWeb {
		t.Errorf("persisted transport = %q, want web", reread.Transport)
	}
}

func TestInteractionList(t *testing.T) {
	srv := newTestServer(t)

	var first, second SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &first)
	time.Sleep(10 * time.Millisecond)
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &second)

	var list InteractionListResponse
	getJSON(t, srv.BaseURL()+"/api/interactions", &list)
	if len(list.Interactions) != 2 {
		t.Fatalf("got %d interactions, want 2", len(list.Interactions))
	}
	if list.Interactions[0].SessionID != second.SessionID {
		t.Errorf("first entry = %s, want the newest %s", list.Interactions[0].SessionID, second.SessionID)
	}
	if list.Interactions[0].Phase != choice.PhasePending {
		t.Errorf("phase = %q, want pending", list.Interactions[0].Phase)
	}
}

func TestInteractionListIncludesRecentCompleted(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)
	postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{SelectedIDs: []string{"deploy"}}, nil)
	srv.registry.Remove(desc.SessionID)

	var list InteractionListResponse
	getJSON(t, srv.BaseURL()+"/api/interactions", &list)
	if len(list.Interactions) != 1 {
		t.Fatalf("got %d interactions, want the finalized one from history", len(list.Interactions))
	}
	if list.Interactions[0].Phase != choice.PhaseSubmitted {
		t.Errorf("phase = %q, want submitted", list.Interactions[0].Phase)
	}
}

func TestInteractionDetailFallsBackToHistory(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)

	var resp SubmitResponse
	postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{SelectedIDs: []string{"deploy"}}, &resp)

	var live InteractionDetail
	getJSON(t, srv.BaseURL()+"/api/interaction/"+desc.SessionID, &live)
	if live.Source != "live" {
		t.Errorf("source = %q, want live while the session is registered", live.Source)
	}

	srv.registry.Remove(desc.SessionID)

	var detail InteractionDetail
	if code := getJSON(t, srv.BaseURL()+"/api/interaction/"+desc.SessionID, &detail); code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from history", code)
	}
	if detail.Source != "history" {
		t.Errorf("source = %q, want history after eviction", detail.Source)
	}
	if detail.Outcome == nil || detail.Outcome.Kind != choice.KindSelected {
		t.Errorf("outcome = %+v, want the recorded selection", detail.Outcome)
	}
}

func TestDeleteInteraction(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)
	postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{SelectedIDs: []string{"deploy"}}, nil)
	srv.registry.Remove(desc.SessionID)

	url := srv.BaseURL() + "/api/interaction/" + desc.SessionID
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	if code := getJSON(t, url, nil); code != http.StatusNotFound {
		t.Errorf("detail status after delete = %d, want 404", code)
	}

	// Deleting again reports not found.
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionStream(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)

	wsURL := "ws" + strings.TrimPrefix(srv.BaseURL(), "http") + "/session/" + desc.SessionID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing stream: %v", err)
	}
	defer conn.Close()

	// First frame is the full-state snapshot, second the initial sync.
	var snapshot session.Event
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if snapshot.Type != session.EventStatus || snapshot.Phase != choice.PhasePending {
		t.Fatalf("snapshot = %+v, want pending status", snapshot)
	}

	var sync session.Event
	if err := conn.ReadJSON(&sync); err != nil {
		t.Fatalf("reading sync: %v", err)
	}
	if sync.Type != session.EventSync {
		t.Fatalf("second frame type = %q, want sync", sync.Type)
	}

	postJSON(t, srv.BaseURL()+"/session/"+desc.SessionID+"/submit", SubmitRequest{SelectedIDs: []string{"deploy"}}, nil)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("no terminal status event on the stream")
		}
		var ev session.Event
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("reading event: %v", err)
		}
		if ev.Type == session.EventStatus && ev.Phase == choice.PhaseSubmitted {
			if len(ev.SelectedIDs) != 1 || ev.SelectedIDs[0] != "deploy" {
				t.Errorf("selected ids = %v, want [deploy]", ev.SelectedIDs)
			}
			return
		}
	}
}

func TestStreamUpdateTimeout(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)

	wsURL := "ws" + strings.TrimPrefix(srv.BaseURL(), "http") + "/session/" + desc.SessionID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing stream: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "update_timeout", "seconds": 1200}); err != nil {
		t.Fatalf("writing update: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("remaining time never reflected the update")
		}
		var state SessionState
		getJSON(t, srv.BaseURL()+"/session/"+desc.SessionID, &state)
		if state.RemainingSeconds > 1000 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestChoicePageServed(t *testing.T) {
	srv := newTestServer(t)

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", createRequest(), &desc)

	resp, err := http.Get(srv.BaseURL() + "/choice/" + desc.SessionID)
	if err != nil {
		t.Fatalf("GET choice page: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
}

func TestTimeoutResolutionVisibleToCaller(t *testing.T) {
	srv := newTestServer(t)

	req := createRequest()
	req.Request.TimeoutSeconds = 1
	req.Request.TimeoutAction = choice.TimeoutCancel

	var desc SessionDescriptor
	postJSON(t, srv.BaseURL()+"/session", req, &desc)

	var poll PollResponse
	code := getJSON(t, fmt.Sprintf("%s/session/%s/poll?wait_seconds=5", srv.BaseURL(), desc.SessionID), &poll)
	if code != http.StatusOK {
		t.Fatalf("poll status = %d, want 200", code)
	}
	if poll.Status != "completed" {
		t.Fatalf("poll result = %q, want completed after expiry", poll.Status)
	}
	if poll.Outcome.Kind != choice.KindTimeoutCancelled {
		t.Errorf("kind = %q, want %q", poll.Outcome.Kind, choice.KindTimeoutCancelled)
	}
}
