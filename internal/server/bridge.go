package server

import (
	"fmt"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/config"
	"github.com/askgate-dev/askgate/internal/log"
	"github.com/askgate-dev/askgate/internal/session"
)

// CreateSession validates the request, resolves the effective policy and
// transport, and registers a new session. It returns a descriptor immediately
// and never waits for the human: for a terminal session the descriptor
// carries the launch command the caller spawns as a detached process, for a
// web session it carries the page URL.
func (s *Server) CreateSession(body CreateSessionRequest) (SessionDescriptor, error) {
	pol := s.config.LoadOrDefault()
	if body.Policy != nil {
		pol = config.Merge(pol, *body.Policy)
	}

	// Per-request fields override the configured policy. Timeout falls back
	// request -> config -> built-in default.
	raw := body.Request
	if raw.TimeoutSeconds == 0 {
		raw.TimeoutSeconds = pol.TimeoutSeconds
	}
	rawAction := raw.TimeoutAction

	req, err := choice.ParseRequest(raw)
	if err != nil {
		return SessionDescriptor{}, err
	}

	pol.TimeoutSeconds = req.TimeoutSeconds
	if rawAction != "" {
		pol.TimeoutAction = req.TimeoutAction
	}
	if req.UseDefaultOption {
		pol.UseDefaultOption = true
	}

	transport := pol.Transport
	switch body.Transport {
	case choice.TransportTerminal, choice.TransportWeb:
		transport = body.Transport
	case "":
	default:
		return SessionDescriptor{}, &choice.ValidationError{Field: "transport", Msg: "must be terminal or web"}
	}

	sess := s.registry.Create(req, pol, transport, func(id string) string {
		if transport == choice.TransportWeb {
			return s.choiceURL(id)
		}
		return s.BaseURL() + "/terminal/" + id
	})

	desc := SessionDescriptor{
		SessionID:      sess.ID(),
		Transport:      transport,
		SurfaceURL:     sess.SurfaceURL(),
		TimeoutSeconds: pol.TimeoutSeconds,
	}
	if transport != choice.TransportWeb {
		desc.LaunchCommand = s.launchCommand(sess.ID())
	}

	return desc, nil
}

// SwitchToWeb re-tags a terminal session so it can be answered in the
// browser instead. The session id, deadline and pending state carry over
// unchanged; only the surface changes. The returned URL opens the page.
func (s *Server) SwitchToWeb(sess *session.Session, patch *config.Patch) string {
	if patch != nil {
		sess.UpdatePolicy(*patch)
	}

	url := s.choiceURL(sess.ID())
	sess.SetTransport(choice.TransportTerminalWeb)
	sess.SetSurfaceURL(url)
	sess.BroadcastSync()

	s.logEvent(log.LogEvent{
		Event:     log.EventTransportSwitched,
		SessionID: sess.ID(),
		Transport: choice.TransportTerminalWeb,
	})
	s.broadcastInteractions()
	return url
}

func (s *Server) choiceURL(id string) string {
	return s.BaseURL() + "/choice/" + id
}

// launchCommand is what the calling agent runs, detached, to show the prompt
// in a terminal window.
func (s *Server) launchCommand(id string) string {
	return fmt.Sprintf("askgate client --session %s --server %s", id, s.BaseURL())
}
