// Package server is the HTTP surface: dashboards, the OAuth login flow,
// blob upload and retrieval, room pages and the socket upgrade that feeds
// the room runtime.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/quizbox/quizbox/internal/auth"
	"github.com/quizbox/quizbox/internal/blob"
	"github.com/quizbox/quizbox/internal/config"
	"github.com/quizbox/quizbox/internal/engine"
	"github.com/quizbox/quizbox/internal/ratelimit"
	"github.com/quizbox/quizbox/internal/room"
	"github.com/quizbox/quizbox/internal/store"
)

// sessionCookieMaxAge keeps browsers logged in for a month.
const sessionCookieMaxAge = 30 * 24 * 3600

// Server wires the HTTP routes to the registry, engines and stores.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	blobs     *blob.Store
	sessions  *auth.Sessions
	twitch    *auth.TwitchClient
	validator *auth.IDTokenValidator
	registry  *room.Registry
	limiter   *ratelimit.RateLimiter

	// engines in registration order, for stable dashboard listings.
	engines []engine.GameEngine
}

// New assembles the server. twitch and validator may be nil when
// authentication is disabled for local development.
func New(cfg *config.Config, st *store.Store, blobs *blob.Store, sessions *auth.Sessions,
	twitch *auth.TwitchClient, validator *auth.IDTokenValidator,
	registry *room.Registry, limiter *ratelimit.RateLimiter,
	engines ...engine.GameEngine) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		blobs:     blobs,
		sessions:  sessions,
		twitch:    twitch,
		validator: validator,
		registry:  registry,
		limiter:   limiter,
		engines:   engines,
	}
}

func (s *Server) engineByIdent(ident string) engine.GameEngine {
	for _, e := range s.engines {
		if e.Ident() == ident {
			return e
		}
	}
	return nil
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	if !s.cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("quizbox"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Origins([]string{"http://localhost:3000", "http://localhost:8080"}),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health/live", s.handleLive)
	r.GET("/health/ready", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", s.handleLanding)
	r.GET("/login", s.handleLogin)
	r.GET("/logout", s.handleLogout)

	r.GET("/cms", s.handleCMS)
	r.POST("/cms", s.handleCMSAction)
	r.GET("/review", s.handleReviewList)
	r.POST("/review", s.handleReviewAction)
	r.POST("/play", s.handlePlay)

	r.GET("/blob/:id", s.handleBlobGet)
	r.POST("/blob", s.limiter.BlobUploadMiddleware(), s.handleBlobPost)

	r.GET("/room/:code", s.handleRoomPage)
	r.GET("/ws/:code", s.handleSocket)

	return r
}

// session resolves the request's session cookie without creating one.
func (s *Server) session(c *gin.Context) *auth.Session {
	cookie, err := c.Cookie(auth.CookieName)
	if err != nil || cookie == "" {
		return nil
	}
	return s.sessions.Get(cookie)
}

// ensureSession resolves or creates the session and refreshes the cookie.
func (s *Server) ensureSession(c *gin.Context) *auth.Session {
	cookie, _ := c.Cookie(auth.CookieName)
	sess := s.sessions.GetOrCreate(cookie)
	if sess.Cookie != cookie {
		c.SetCookie(auth.CookieName, sess.Cookie, sessionCookieMaxAge, "/", "", s.cfg.TLS(), true)
	}
	return sess
}

// requireLogin returns the logged-in session or writes a human-readable
// 401 and returns nil.
func (s *Server) requireLogin(c *gin.Context) *auth.Session {
	sess := s.session(c)
	if !sess.LoggedIn() {
		c.String(http.StatusUnauthorized, "You need to log in to do that. Visit /login first.")
		return nil
	}
	return sess
}

// requireMod returns the moderator session or writes a 403 and returns nil.
func (s *Server) requireMod(c *gin.Context) *auth.Session {
	sess := s.requireLogin(c)
	if sess == nil {
		return nil
	}
	if !sess.IsMod() {
		c.String(http.StatusForbidden, "This area is for moderators.")
		return nil
	}
	return sess
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	// Readiness covers the database: a failed metadata read means we
	// cannot serve anything useful.
	if _, err := s.store.GetUser(1); err != nil && err != store.ErrNotFound {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": s.registry.RoomCount()})
}

// handleLanding lists the hosted game engines and the caller's identity.
func (s *Server) handleLanding(c *gin.Context) {
	sess := s.ensureSession(c)

	engines := make([]gin.H, 0, len(s.engines))
	for _, e := range s.engines {
		engines = append(engines, gin.H{
			"ident":       e.Ident(),
			"name":        e.Name(),
			"description": e.Description(),
			"cms":         e.CMSEnabled(),
			"max_teams":   e.MaxTeams(),
		})
	}

	var user any
	if sess.LoggedIn() {
		user = sess.User
	}
	c.JSON(http.StatusOK, gin.H{"engines": engines, "user": user})
}

// roomJSON describes a freshly registered room: the primary code plus
// every endpoint's code and socket URL.
func (s *Server) roomJSON(r *room.Room) gin.H {
	endpoints := make([]gin.H, 0)
	for _, ep := range r.Endpoints() {
		endpoints = append(endpoints, gin.H{
			"name": ep.Name,
			"code": ep.Code,
			"url":  s.cfg.SocketURL(ep.Code),
		})
	}
	return gin.H{
		"room_code": r.Code,
		"url":       s.cfg.ExternalURL("/room/" + r.Code),
		"endpoints": endpoints,
	}
}
