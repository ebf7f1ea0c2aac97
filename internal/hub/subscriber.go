// SPDX-License-Identifier: MIT

package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 256
	writeTimeout   = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// Conn is the subset of *websocket.Conn the hub needs. Tests substitute
// an in-memory implementation.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber is one push connection. Outbound frames pass through a
// bounded channel drained by a dedicated writer goroutine, so broadcast
// enqueues never block.
type Subscriber struct {
	hub     *Hub
	channel string
	conn    Conn

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newSubscriber(h *Hub, channel string, conn Conn) *Subscriber {
	return &Subscriber{
		hub:     h,
		channel: channel,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// Channel returns the channel id the subscriber is attached to.
func (s *Subscriber) Channel() string { return s.channel }

// Done is closed when the subscriber has been torn down.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// SendJSON enqueues a pre-marshaled frame, e.g. a replay slice. Returns
// false if the buffer is full or the subscriber is closed.
func (s *Subscriber) SendJSON(data []byte) bool {
	return s.enqueue(data)
}

// enqueue attempts a non-blocking send into the outbound buffer.
func (s *Subscriber) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *Subscriber) start() {
	go s.writeLoop()
}

func (s *Subscriber) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.hub.remove(s, "write_error")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.remove(s, "write_error")
				return
			}
		}
	}
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
