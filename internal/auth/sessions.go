package auth

import (
	"sync"

	"github.com/google/uuid"
	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/store"
	"go.uber.org/zap"
)

// CookieName is the session cookie handed to browsers.
const CookieName = "session"

// Session is one browser session. A session exists before login; User is
// nil until the OAuth flow completes. The same session object is handed to
// every socket the browser opens, so endpoints can check identity.
type Session struct {
	Cookie string
	User   *store.User

	// RedirectTo is where to send the browser after a login round-trip.
	RedirectTo string
	// LoginState is the CSRF token for the in-flight OAuth authorize
	// request, empty otherwise.
	LoginState string
}

// LoggedIn reports whether the session has an authenticated user.
func (s *Session) LoggedIn() bool {
	return s != nil && s.User != nil
}

// IsMod reports whether the session user is a moderator.
func (s *Session) IsMod() bool {
	return s.LoggedIn() && s.User.IsMod
}

// Sessions is the in-memory cookie to session map.
type Sessions struct {
	mu       sync.RWMutex
	byCookie map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byCookie: make(map[string]*Session)}
}

// Get returns the session for a cookie, or nil.
func (m *Sessions) Get(cookie string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byCookie[cookie]
}

// Create makes a fresh anonymous session with a random cookie.
func (m *Sessions) Create() *Session {
	s := &Session{Cookie: uuid.NewString()}
	m.mu.Lock()
	m.byCookie[s.Cookie] = s
	m.mu.Unlock()
	return s
}

// GetOrCreate resolves a cookie to its session, creating a fresh one if
// the cookie is unknown or empty.
func (m *Sessions) GetOrCreate(cookie string) *Session {
	if cookie != "" {
		if s := m.Get(cookie); s != nil {
			return s
		}
	}
	return m.Create()
}

// SeedAdmin installs a pre-authenticated session under a fixed cookie.
// Operator backdoor for local development and recovery.
func (m *Sessions) SeedAdmin(cookie string, user *store.User) {
	m.mu.Lock()
	m.byCookie[cookie] = &Session{Cookie: cookie, User: user}
	m.mu.Unlock()
	logging.Warn("seeded admin session", zap.String("user_name", user.Name))
}
