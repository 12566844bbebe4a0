package room

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/metrics"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

const (
	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength  = 4

	reapInterval = 2 * time.Second
)

// Registry maps short codes to endpoints (for socket dispatch) and to
// rooms (for the reaper). Codes are 4 uppercase letters, unique across
// every live endpoint.
type Registry struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
	rooms     map[string]*Room

	clock clock.WithTicker

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// NewRegistry creates a registry on the real clock.
func NewRegistry() *Registry {
	return NewRegistryWithClock(clock.RealClock{})
}

// NewRegistryWithClock creates a registry on the given clock.
func NewRegistryWithClock(c clock.WithTicker) *Registry {
	return &Registry{
		endpoints: make(map[string]*Endpoint),
		rooms:     make(map[string]*Room),
		clock:     c,
	}
}

// newCodeLocked draws uniform random codes until one misses the live set.
func (reg *Registry) newCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeLetters[rand.IntN(len(codeLetters))]
		}
		code := string(b)
		if _, taken := reg.endpoints[code]; !taken {
			return code
		}
	}
}

// Register assigns codes to every endpoint of the room and makes them
// routable. The default endpoint takes the room's code. Returns the room
// code.
func (reg *Registry) Register(r *Room) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	roomCode := ""
	for _, ep := range r.Endpoints() {
		code := reg.newCodeLocked()
		ep.Code = code
		reg.endpoints[code] = ep
		if ep == r.DefaultEndpoint() {
			roomCode = code
		}
	}
	if roomCode == "" && len(r.Endpoints()) > 0 {
		roomCode = r.Endpoints()[0].Code
	}

	r.Code = roomCode
	reg.rooms[roomCode] = r
	metrics.ActiveRooms.Inc()

	logging.Info("registered room", zap.String("room_code", roomCode), zap.Int("endpoints", len(r.Endpoints())))
	return roomCode
}

// Lookup resolves a short code to its endpoint. Lookup is case-insensitive.
func (reg *Registry) Lookup(code string) *Endpoint {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.endpoints[strings.ToUpper(code)]
}

// Room resolves a room code to its room.
func (reg *Registry) Room(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[strings.ToUpper(code)]
}

// Remove stops a room and drops it plus every endpoint code it owns.
func (reg *Registry) Remove(code string) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	if !ok {
		reg.mu.Unlock()
		return
	}
	delete(reg.rooms, code)
	for _, ep := range r.Endpoints() {
		delete(reg.endpoints, ep.Code)
	}
	reg.mu.Unlock()

	r.Stop()
	metrics.ActiveRooms.Dec()
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// StartReaper launches the background sweep that removes idle rooms.
func (reg *Registry) StartReaper() {
	reg.reaperStop = make(chan struct{})
	reg.reaperDone = make(chan struct{})
	go reg.reapLoop()
}

func (reg *Registry) reapLoop() {
	defer close(reg.reaperDone)
	ticker := reg.clock.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-reg.reaperStop:
			return
		case <-ticker.C():
			reg.Sweep()
		}
	}
}

// Sweep runs one reaper pass over a snapshot of live rooms.
func (reg *Registry) Sweep() {
	reg.mu.Lock()
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	reg.mu.Unlock()

	for _, code := range codes {
		reg.mu.Lock()
		r, ok := reg.rooms[code]
		reg.mu.Unlock()
		if !ok {
			continue
		}
		if r.Reap() {
			logging.Info("reaping idle room", zap.String("room_code", code))
			reg.Remove(code)
			metrics.ReapedRooms.Inc()
		}
	}
}

// Shutdown stops the reaper and every live room, waiting for the reaper
// to exit or the context to expire.
func (reg *Registry) Shutdown(ctx context.Context) error {
	if reg.reaperStop != nil {
		close(reg.reaperStop)
		select {
		case <-reg.reaperDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.rooms = make(map[string]*Room)
	reg.endpoints = make(map[string]*Endpoint)
	reg.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
	logging.Info("registry shut down", zap.Int("rooms_closed", len(rooms)))
	return nil
}
