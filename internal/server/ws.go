package server

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quizbox/quizbox/internal/logging"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
)

// checkOrigin accepts requests with no Origin header (non-browser clients)
// and browser requests from an allowed origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		logging.Warn("invalid origin URL", zap.String("origin", origin), zap.Error(err))
		return false
	}

	allowed := s.cfg.Origins([]string{"http://localhost:3000", "http://localhost:8080"})
	for _, a := range allowed {
		au, err := url.Parse(a)
		if err != nil {
			continue
		}
		if u.Scheme == au.Scheme && u.Host == au.Host {
			return true
		}
	}
	// The server's own pages always count as same-origin.
	if u.Host == r.Host {
		return true
	}

	logging.Warn("origin not in allowed list", zap.String("origin", origin))
	return false
}

// handleSocket upgrades /ws/:code to the duplex channel and attaches the
// connection to the endpoint behind the code.
func (s *Server) handleSocket(c *gin.Context) {
	if !s.limiter.CheckWebSocket(c) {
		return
	}

	code := c.Param("code")
	ep := s.registry.Lookup(code)
	if ep == nil {
		c.String(http.StatusNotFound, "No room with code %q.", code)
		return
	}

	// Resolve the session before the upgrade; cookies cannot be set after.
	sess := s.ensureSession(c)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	socket := ep.Attach(conn, sess)
	logging.Info("socket attached",
		zap.String("room_code", ep.Room().Code),
		zap.String("endpoint", ep.Name),
		zap.String("socket_id", socket.ID))
}

// handleRoomPage serves the minimal HTML shell for an endpoint: enough to
// open the socket and render frames. Real clients usually live elsewhere
// and connect straight to /ws/:code.
func (s *Server) handleRoomPage(c *gin.Context) {
	code := c.Param("code")
	ep := s.registry.Lookup(code)
	if ep == nil {
		c.String(http.StatusNotFound, "No room with code %q.", code)
		return
	}

	s.ensureSession(c)

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>quizbox - %s</title></head>
<body>
<pre id="log"></pre>
<script>
const ws = new WebSocket(%q);
const log = document.getElementById("log");
ws.onmessage = (e) => { log.textContent = e.data + "\n" + log.textContent; };
ws.onclose = () => { log.textContent = "connection closed\n" + log.textContent; };
</script>
</body>
</html>`, ep.Name, s.cfg.SocketURL(ep.Code))

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
