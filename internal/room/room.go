package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/quizbox/quizbox/internal/logging"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// IdleTimeout is how long a room survives with no traffic and no pings.
const IdleTimeout = 15 * time.Minute

// Room holds an ordered, named set of endpoints sharing one piece of game
// or edit state. All state mutation is serialised by the room mutex: a
// command handler runs to completion, then its fanout, before the next
// command for the room begins.
type Room struct {
	// Code is the short code of the default endpoint, assigned at
	// registration.
	Code string

	mu        sync.Mutex
	names     []string
	endpoints map[string]*Endpoint

	defaultName  string
	startingName string

	clock    clock.PassiveClock
	deadline time.Time
	stopped  bool

	// onStop hooks run once during stop, before sockets close. Edit rooms
	// use this to flush pending saves.
	onStop []func()
}

// New creates an empty room on the real clock.
func New() *Room {
	return NewWithClock(clock.RealClock{})
}

// NewWithClock creates an empty room on the given clock. Tests use a fake.
func NewWithClock(c clock.PassiveClock) *Room {
	r := &Room{
		endpoints: make(map[string]*Endpoint),
		clock:     c,
	}
	r.deadline = c.Now().Add(IdleTimeout)
	return r
}

// AddEndpoint attaches an endpoint to the room under its name. Order of
// addition is preserved.
func (r *Room) AddEndpoint(e *Endpoint) *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.room = r
	r.names = append(r.names, e.Name)
	r.endpoints[e.Name] = e
	return e
}

// SetDefaultEndpoint names the endpoint whose code becomes the room code.
func (r *Room) SetDefaultEndpoint(name string) { r.defaultName = name }

// SetStartingEndpoint names the endpoint the creating user is redirected to.
func (r *Room) SetStartingEndpoint(name string) { r.startingName = name }

// DefaultEndpoint returns the endpoint that carries the room's code.
func (r *Room) DefaultEndpoint() *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[r.defaultName]
}

// StartingEndpoint returns the endpoint the creating user lands on.
func (r *Room) StartingEndpoint() *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[r.startingName]
}

// Endpoint returns a named endpoint, or nil.
func (r *Room) Endpoint(name string) *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[name]
}

// Endpoints returns the endpoints in addition order.
func (r *Room) Endpoints() []*Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Endpoint, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.endpoints[name])
	}
	return out
}

// OnStop registers a hook to run when the room stops, before sockets are
// closed.
func (r *Room) OnStop(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStop = append(r.onStop, fn)
}

// Ping pushes the idle deadline out by the timeout. Called on every
// inbound frame.
func (r *Room) Ping() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pingLocked()
}

func (r *Room) pingLocked() {
	r.deadline = r.clock.Now().Add(IdleTimeout)
}

// Reap stops the room and reports true iff the idle deadline has passed.
func (r *Room) Reap() bool {
	r.mu.Lock()
	expired := r.clock.Now().After(r.deadline)
	r.mu.Unlock()
	if !expired {
		return false
	}
	r.Stop()
	return true
}

// Stopped reports whether the room has been stopped.
func (r *Room) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Stop shuts the room down: runs stop hooks, sends a close frame to every
// socket on every endpoint and closes them. Idempotent.
func (r *Room) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	hooks := r.onStop
	r.onStop = nil

	var targets []*Socket
	for _, name := range r.names {
		ep := r.endpoints[name]
		for s := range ep.sockets {
			targets = append(targets, s)
		}
		ep.sockets = make(map[*Socket]struct{})
	}
	r.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	logging.Info("stopping room", zap.String("room_code", r.Code), zap.Int("sockets", len(targets)))
	closeFrame, _ := json.Marshal(map[string]any{"cmd": "close"})
	for _, s := range targets {
		s.SendRaw(closeFrame)
		s.Close()
	}
}

// Fanout serialises each endpoint's view and writes it to each of its
// sockets. One bad socket cannot starve others: sends are non-blocking.
func (r *Room) Fanout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FanoutLocked()
}

// FanoutLocked is Fanout for command handlers, which already hold the lock.
func (r *Room) FanoutLocked() {
	for _, name := range r.names {
		ep := r.endpoints[name]
		if ep.View == nil {
			continue
		}
		frame := ep.View()
		if frame == nil {
			continue
		}
		data, err := json.Marshal(frame)
		if err != nil {
			logging.Error("failed to marshal fanout frame",
				zap.String("room_code", r.Code), zap.String("endpoint", name), zap.Error(err))
			continue
		}
		ep.broadcastLocked(data)
	}
}
