package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizbox/quizbox/internal/auth"
	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/metrics"
	"github.com/quizbox/quizbox/internal/store"
	"go.uber.org/zap"
)

const (
	// Sockets that stay silent past this deadline are terminated. The
	// heartbeat keeps healthy clients well inside it.
	readWait  = 2500 * time.Millisecond
	pingEvery = 1 * time.Second
	writeWait = 10 * time.Second

	sendBuffer = 64
)

// wsConnection defines the interface for duplex connection operations.
// Satisfied by *websocket.Conn; replaced with a mock in tests.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Socket is one client connection attached to an endpoint. Outbound frames
// go through a buffered channel drained by writePump; a full buffer drops
// the frame rather than blocking the room.
type Socket struct {
	ID       string
	Session  *auth.Session
	conn     wsConnection
	endpoint *Endpoint

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	send chan []byte
}

func newSocket(conn wsConnection, ep *Endpoint, session *auth.Session) *Socket {
	return &Socket{
		ID:       uuid.NewString(),
		Session:  session,
		conn:     conn,
		endpoint: ep,
		send:     make(chan []byte, sendBuffer),
	}
}

// Endpoint returns the endpoint this socket is attached to.
func (s *Socket) Endpoint() *Endpoint {
	return s.endpoint
}

// User returns the logged-in user for this socket, or nil.
func (s *Socket) User() *store.User {
	if s.Session == nil {
		return nil
	}
	return s.Session.User
}

// Send marshals a frame and queues it for delivery. Frames to closed or
// backed-up sockets are dropped.
func (s *Socket) Send(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		logging.Error("failed to marshal frame", zap.String("socket_id", s.ID), zap.Error(err))
		return
	}
	s.SendRaw(data)
}

// SendRaw queues pre-serialised bytes for delivery.
func (s *Socket) SendRaw(data []byte) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logging.Warn("recovered from send on closing socket", zap.String("socket_id", s.ID))
		}
	}()

	select {
	case s.send <- data:
	default:
		logging.Warn("socket send buffer full, dropping frame", zap.String("socket_id", s.ID))
	}
}

// SendError sends an error frame. The socket stays open.
func (s *Socket) SendError(message string) {
	s.Send(map[string]any{"cmd": "error", "message": message})
}

// Close stops the write pump, which drains the buffer, sends a websocket
// close message and closes the connection. Idempotent.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.send)
	})
}

// readPump processes inbound frames in receive order until the connection
// fails or the inactivity deadline passes.
func (s *Socket) readPump() {
	defer func() {
		s.endpoint.handleDisconnect(s)
		s.Close()
		s.conn.Close()
		metrics.DecConnection()
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
		if messageType != websocket.TextMessage {
			continue
		}
		s.endpoint.dispatch(s, data)
	}
}

func (s *Socket) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Error("error writing frame", zap.String("socket_id", s.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
