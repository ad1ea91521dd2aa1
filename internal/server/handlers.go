package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/config"
	"github.com/askgate-dev/askgate/internal/history"
	"github.com/askgate-dev/askgate/internal/log"
	"github.com/askgate-dev/askgate/internal/session"
	"github.com/askgate-dev/askgate/web"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !readJSON(w, r, &req) {
		return
	}

	desc, err := s.CreateSession(req)
	if err != nil {
		var verr *choice.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, desc)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, sessionState(sess))
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	var wait time.Duration
	if raw := r.URL.Query().Get("wait_seconds"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			writeError(w, http.StatusBadRequest, "wait_seconds must be a non-negative integer")
			return
		}
		wait = time.Duration(secs) * time.Second
	}

	out, status := s.registry.Poll(r.Context(), mux.Vars(r)["id"], wait)
	switch status {
	case session.PollOutcome:
		writeJSON(w, PollResponse{Status: "completed", Outcome: &out})
	case session.PollPending:
		writeJSON(w, PollResponse{Status: "pending"})
	default:
		writeError(w, http.StatusNotFound, "session not found")
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req SubmitRequest
	if !readJSON(w, r, &req) {
		return
	}

	switch req.Action {
	case ActionUpdateSettings:
		patch := config.Patch{}
		if req.Policy != nil {
			patch = *req.Policy
		}
		merged := sess.UpdatePolicy(patch)
		writeJSON(w, SubmitResponse{Status: "ok", Phase: sess.Phase(), Policy: &merged})
		return

	case ActionSwitchToWeb:
		url := s.SwitchToWeb(sess, req.Policy)
		writeJSON(w, SubmitResponse{Status: "ok", Phase: sess.Phase(), WebURL: url})
		return

	case ActionCancel, "cancel":
		out := choice.Cancelled(req.OptionAnnotations, req.AdditionalAnnotation, sess.SurfaceURL())
		s.resolveAndRespond(w, sess, out)
		return

	case "", ActionSubmit, "submit":
		if req.Policy != nil {
			sess.UpdatePolicy(*req.Policy)
		}
		out, err := choice.Selected(sess.Request(), req.SelectedIDs, req.OptionAnnotations, req.AdditionalAnnotation, sess.SurfaceURL())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.resolveAndRespond(w, sess, out)
		return

	default:
		// Surfaces mirror a countdown that hit zero on their side with a
		// timeout_* action; the outcome is still computed server-side from
		// the session's timeout policy.
		if strings.HasPrefix(req.Action, "timeout") {
			pol := sess.Policy()
			out := choice.TimeoutOutcome(sess.Request(), pol.TimeoutAction, pol.UseDefaultOption, sess.SurfaceURL())
			s.resolveAndRespond(w, sess, out)
			return
		}
		writeError(w, http.StatusBadRequest, "unknown action: "+req.Action)
	}
}

// resolveAndRespond attempts the resolution and reports either the winning
// outcome or, when another surface already resolved the session, the recorded
// one.
func (s *Server) resolveAndRespond(w http.ResponseWriter, sess *session.Session, out choice.Outcome) {
	switch err := s.registry.ResolveByID(sess.ID(), out); {
	case err == nil:
		writeJSON(w, SubmitResponse{Status: "ok", Phase: sess.Phase(), Outcome: &out})
	case errors.Is(err, session.ErrAlreadyResolved):
		recorded, _ := sess.Outcome()
		writeJSON(w, SubmitResponse{Status: "already-set", Phase: sess.Phase(), Outcome: &recorded})
	default:
		writeError(w, http.StatusNotFound, "session not found")
	}
}

func (s *Server) handleListInteractions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, InteractionListResponse{Interactions: s.interactionSummaries()})
}

func (s *Server) handleInteractionDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if sess, ok := s.registry.Get(id); ok {
		writeJSON(w, liveDetail(sess))
		return
	}

	if s.history != nil {
		rec, err := s.history.GetByID(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec != nil {
			writeJSON(w, historyDetail(rec))
			return
		}
	}
	writeError(w, http.StatusNotFound, "interaction not found")
}

// handleDeleteInteraction removes a finalized interaction from history. Live
// sessions are not deletable; they resolve or time out first and are evicted
// by the reaper.
func (s *Server) handleDeleteInteraction(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history persistence is disabled")
		return
	}

	removed, err := s.history.Remove(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "interaction not found")
		return
	}
	s.broadcastInteractions()
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history persistence is disabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.history.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	details := make([]InteractionDetail, 0, len(records))
	for i := range records {
		details = append(details, historyDetail(&records[i]))
	}
	writeJSON(w, map[string][]InteractionDetail{"interactions": details})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.config.LoadOrDefault())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch config.Patch
	if !readJSON(w, r, &patch) {
		return
	}

	merged := config.Merge(s.config.LoadOrDefault(), patch)
	if err := s.config.Save(merged); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, merged)
}

func (s *Server) handleChoicePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(web.IndexHTML)
}

// --- Projections ---

func sessionState(sess *session.Session) SessionState {
	state := SessionState{
		SessionID:        sess.ID(),
		Status:           "pending",
		Phase:            sess.Phase(),
		Request:          sess.Request(),
		Policy:           sess.Policy(),
		Transport:        sess.Transport(),
		SurfaceURL:       sess.SurfaceURL(),
		RemainingSeconds: sess.Remaining().Seconds(),
		CreatedAt:        sess.CreatedAt(),
	}
	if out, resolved := sess.Outcome(); resolved {
		state.Status = "completed"
		state.Outcome = &out
	}
	return state
}

// recentCompletedCap bounds how many history rows the list merges in after
// the live sessions.
const recentCompletedCap = 10

func (s *Server) interactionSummaries() []InteractionSummary {
	sessions := s.registry.List()
	summaries := make([]InteractionSummary, 0, len(sessions))
	live := make(map[string]bool, len(sessions))
	for _, sess := range sessions {
		req := sess.Request()
		live[sess.ID()] = true
		summaries = append(summaries, InteractionSummary{
			SessionID:        sess.ID(),
			Title:            req.Title,
			Prompt:           req.Prompt,
			Transport:        sess.Transport(),
			Phase:            sess.Phase(),
			RemainingSeconds: sess.Remaining().Seconds(),
			CreatedAt:        sess.CreatedAt(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	// Live sessions first, then recently finalized ones from history.
	if s.history != nil {
		records, err := s.history.Recent(recentCompletedCap)
		if err != nil {
			return summaries
		}
		for i := range records {
			rec := &records[i]
			if live[rec.SessionID] {
				continue
			}
			phase := choice.PhasePending
			if rec.Outcome != nil {
				phase = choice.PhaseForKind(rec.Outcome.Kind)
			}
			summaries = append(summaries, InteractionSummary{
				SessionID: rec.SessionID,
				Title:     rec.Title,
				Prompt:    rec.Prompt,
				Transport: rec.Transport,
				Phase:     phase,
				CreatedAt: rec.StartedAt,
			})
		}
	}
	return summaries
}

func liveDetail(sess *session.Session) InteractionDetail {
	req := sess.Request()
	detail := InteractionDetail{
		Source:           "live",
		SessionID:        sess.ID(),
		Title:            req.Title,
		Prompt:           req.Prompt,
		SelectionMode:    req.SelectionMode,
		Transport:        sess.Transport(),
		Options:          req.Options,
		Phase:            sess.Phase(),
		RemainingSeconds: sess.Remaining().Seconds(),
		StartedAt:        sess.CreatedAt(),
		TimeoutSeconds:   sess.Policy().TimeoutSeconds,
		SurfaceURL:       sess.SurfaceURL(),
	}
	if out, resolved := sess.Outcome(); resolved {
		detail.Outcome = &out
		completed := sess.CompletedAt()
		detail.CompletedAt = &completed
	}
	return detail
}

func historyDetail(rec *history.Record) InteractionDetail {
	detail := InteractionDetail{
		Source:         "history",
		SessionID:      rec.SessionID,
		Title:          rec.Title,
		Prompt:         rec.Prompt,
		SelectionMode:  rec.SelectionMode,
		Transport:      rec.Transport,
		Options:        rec.Options,
		Phase:          choice.PhasePending,
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
		TimeoutSeconds: rec.TimeoutSeconds,
		SurfaceURL:     rec.SurfaceURL,
		Outcome:        rec.Outcome,
	}
	if rec.Outcome != nil {
		detail.Phase = choice.PhaseForKind(rec.Outcome.Kind)
	}
	return detail
}

func (s *Server) logEvent(ev log.LogEvent) {
	if s.logger == nil {
		return
	}
	_ = s.logger.Append(ev)
}
