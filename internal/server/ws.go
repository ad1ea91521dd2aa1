package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/askgate-dev/askgate/internal/config"
	"github.com/askgate-dev/askgate/internal/session"
)

// handleSessionStream attaches the connection as a passive viewer of one
// session. The client receives a full-state snapshot on attach, then sync
// events every tick and a status event on every transition. The client may
// send {"type":"ping"} keepalives and {"type":"update_timeout","seconds":N}
// live timeout updates.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	viewer := sess.Attach()
	defer sess.Detach(viewer)

	// All writes to conn happen in this goroutine; the reader only feeds
	// outbound and mutates the session through its own locked methods.
	outbound := make(chan any, 4)
	readerDone := make(chan struct{})
	go s.readSessionStream(conn, sess, outbound, readerDone)

	for {
		select {
		case ev, open := <-viewer.Events():
			if !open {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case msg := <-outbound:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}

func (s *Server) readSessionStream(conn *websocket.Conn, sess *session.Session, outbound chan<- any, done chan<- struct{}) {
	defer close(done)
	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "ping":
			select {
			case outbound <- map[string]string{"type": "pong"}:
			default:
			}
		case "update_timeout":
			if msg.Seconds > 0 {
				secs := msg.Seconds
				sess.UpdatePolicy(config.Patch{TimeoutSeconds: &secs})
			}
		}
	}
}

// handleInteractionsStream pushes the live interaction list to the
// connection: one frame on attach and one after every lifecycle change.
func (s *Server) handleInteractionsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	frame := InteractionListResponse{Type: "interactions", Interactions: s.interactionSummaries()}

	s.listMu.Lock()
	s.listConns[conn] = struct{}{}
	err = conn.WriteJSON(frame)
	s.listMu.Unlock()
	if err != nil {
		s.dropListConn(conn)
		return
	}

	// Drain the connection; clients only send keepalives. Exit detaches.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.dropListConn(conn)
			return
		}
	}
}

func (s *Server) dropListConn(conn *websocket.Conn) {
	s.listMu.Lock()
	delete(s.listConns, conn)
	s.listMu.Unlock()
	_ = conn.Close()
}

// broadcastInteractions pushes the current list to every attached list
// stream. Registered as the registry's change hook.
func (s *Server) broadcastInteractions() {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	if len(s.listConns) == 0 {
		return
	}

	frame := InteractionListResponse{Type: "interactions", Interactions: s.interactionSummaries()}
	for conn := range s.listConns {
		if err := conn.WriteJSON(frame); err != nil {
			delete(s.listConns, conn)
			_ = conn.Close()
		}
	}
}
