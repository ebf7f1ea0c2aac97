// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ManuGH/livecap/internal/hub"
	"github.com/ManuGH/livecap/internal/log"
)

const (
	wsReadLimit    = 4096
	wsReadDeadline = 90 * time.Second
)

// The API serves LAN clients; origin enforcement would only break the
// local web UI.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// resumeFrame is the only client frame the server interprets.
type resumeFrame struct {
	Type    string `json:"type"`
	LastSeq uint64 `json:"last_seq"`
}

// handleEvents upgrades to a websocket and attaches the connection to
// the channel. The hub owns all writes; this handler only reads.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	sub := s.opts.Hub.Subscribe(sid, conn)
	go s.readLoop(sid, conn, sub)
	<-sub.Done()
}

// readLoop consumes client frames. The first frame may be a resume
// request; everything else is ignored. A read error tears the
// subscriber down.
func (s *Server) readLoop(sid string, conn *websocket.Conn, sub *hub.Subscriber) {
	defer s.opts.Hub.Unsubscribe(sub)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	first := true
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		if first {
			first = false
			var frame resumeFrame
			if json.Unmarshal(data, &frame) == nil && frame.Type == "resume" {
				s.replay(sid, sub, frame.LastSeq)
			}
		}
	}
}

// replay pushes the retained history after lastSeq. Only sessions have
// replay buffers; a resume on the download channel is a no-op.
func (s *Server) replay(sid string, sub *hub.Subscriber, lastSeq uint64) {
	sess, ok := s.opts.Supervisor.Get(sid)
	if !ok {
		return
	}
	for _, env := range sess.Replay().GetAfter(lastSeq) {
		data, err := json.Marshal(env)
		if err != nil {
			continue
		}
		if !sub.SendJSON(data) {
			logger := log.WithComponent("api")
			logger.Debug().
				Str(log.FieldSessionID, sid).
				Uint64("seq", env.Seq).
				Msg("replay dropped, subscriber buffer full")
			return
		}
	}
}
