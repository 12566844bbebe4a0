package room

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/quizbox/quizbox/internal/auth"
	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/metrics"
	"go.uber.org/zap"
)

// Handler processes one inbound command. It runs with the room lock held,
// so it may mutate room state freely. A non-nil return value is sent back
// to the originating socket.
type Handler func(s *Socket, args map[string]any) any

type command struct {
	fn    Handler
	noLog bool
}

// Endpoint is one named view onto a room: it owns a socket set, a command
// table and an optional view used by fanout. Each endpoint gets its own
// short code when the room is registered.
type Endpoint struct {
	Name string
	Code string

	room     *Room
	commands map[string]command

	// OnJoin returns the synchronous initial payload for a new socket.
	// Runs with the room lock held.
	OnJoin func(s *Socket) any

	// View returns this endpoint's frame for a fanout, or nil to skip.
	// Runs with the room lock held.
	View func() any

	// OnLeave is called with the room lock held after a socket is removed.
	OnLeave func(s *Socket)

	sockets map[*Socket]struct{}
}

// NewEndpoint creates an endpoint. Commands are registered afterwards with
// Command and NoLogCommand.
func NewEndpoint(name string) *Endpoint {
	return &Endpoint{
		Name:     name,
		commands: make(map[string]command),
		sockets:  make(map[*Socket]struct{}),
	}
}

// Command registers a handler for a command name.
func (e *Endpoint) Command(name string, fn Handler) {
	e.commands[name] = command{fn: fn}
}

// NoLogCommand registers a handler whose routine traffic is not logged.
func (e *Endpoint) NoLogCommand(name string, fn Handler) {
	e.commands[name] = command{fn: fn, noLog: true}
}

// Room returns the room this endpoint belongs to.
func (e *Endpoint) Room() *Room {
	return e.room
}

// Attach accepts an upgraded connection, adds it to the socket set, sends
// the on_join payload and starts the message pumps.
func (e *Endpoint) Attach(conn wsConnection, session *auth.Session) *Socket {
	s := newSocket(conn, e, session)

	e.room.mu.Lock()
	e.sockets[s] = struct{}{}
	e.room.pingLocked()
	if e.OnJoin != nil {
		if payload := e.OnJoin(s); payload != nil {
			s.Send(payload)
		}
	}
	e.room.mu.Unlock()

	metrics.IncConnection()
	go s.writePump()
	go s.readPump()
	return s
}

// attachForTest adds a socket without starting pumps. Used by tests that
// drive dispatch directly.
func (e *Endpoint) attachForTest(conn wsConnection, session *auth.Session) *Socket {
	s := newSocket(conn, e, session)
	e.room.mu.Lock()
	e.sockets[s] = struct{}{}
	e.room.mu.Unlock()
	go s.writePump()
	return s
}

// SocketCount returns the number of live sockets on this endpoint.
func (e *Endpoint) SocketCount() int {
	e.room.mu.Lock()
	defer e.room.mu.Unlock()
	return len(e.sockets)
}

// dispatch decodes one inbound frame and routes it to the registered
// handler. Decode and dispatch errors produce an error frame; the socket
// stays connected.
func (e *Endpoint) dispatch(s *Socket, data []byte) {
	e.room.Ping()

	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		logging.Warn("malformed frame",
			zap.String("room_code", e.room.Code), zap.String("endpoint", e.Name), zap.Error(err))
		s.SendError("malformed frame")
		metrics.CommandEvents.WithLabelValues("_decode", "error").Inc()
		return
	}

	name, _ := frame["cmd"].(string)
	cmd, ok := e.commands[name]
	if !ok {
		logging.Warn("unknown command",
			zap.String("room_code", e.room.Code), zap.String("endpoint", e.Name), zap.String("cmd", name))
		s.SendError(fmt.Sprintf("unknown command %q", name))
		metrics.CommandEvents.WithLabelValues(name, "unknown").Inc()
		return
	}

	if !cmd.noLog {
		logging.Info("command",
			zap.String("room_code", e.room.Code), zap.String("endpoint", e.Name), zap.String("cmd", name))
	}

	timer := prometheus.NewTimer(metrics.CommandDuration.WithLabelValues(name))
	e.room.mu.Lock()
	result := cmd.fn(s, frame)
	e.room.mu.Unlock()
	timer.ObserveDuration()
	metrics.CommandEvents.WithLabelValues(name, "ok").Inc()

	if result != nil {
		s.Send(result)
	}
}

// handleDisconnect removes a socket from the set. The disconnect path and
// the message path converge on OnLeave so presence state cannot go stale.
func (e *Endpoint) handleDisconnect(s *Socket) {
	e.room.mu.Lock()
	_, present := e.sockets[s]
	delete(e.sockets, s)
	if present && e.OnLeave != nil {
		e.OnLeave(s)
	}
	e.room.mu.Unlock()
}

// broadcastLocked sends pre-serialised bytes to every socket on the
// endpoint. Caller must hold the room lock.
func (e *Endpoint) broadcastLocked(data []byte) {
	for s := range e.sockets {
		s.SendRaw(data)
	}
}

// Broadcast marshals a frame once and sends it to every socket on the
// endpoint.
func (e *Endpoint) Broadcast(frame any) {
	e.room.mu.Lock()
	defer e.room.mu.Unlock()
	e.BroadcastLocked(frame)
}

// BroadcastLocked is Broadcast for callers already holding the room lock,
// such as command handlers.
func (e *Endpoint) BroadcastLocked(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		logging.Error("failed to marshal broadcast",
			zap.String("room_code", e.room.Code), zap.String("endpoint", e.Name), zap.Error(err))
		return
	}
	e.broadcastLocked(data)
}
