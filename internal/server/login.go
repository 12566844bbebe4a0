package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quizbox/quizbox/internal/auth"
	"github.com/quizbox/quizbox/internal/logging"
)

// handleLogin runs both legs of the OAuth authorization-code flow on one
// path: without a code it redirects to the identity provider, with one it
// finishes the exchange and attaches the user to the session.
func (s *Server) handleLogin(c *gin.Context) {
	sess := s.ensureSession(c)

	if s.cfg.SkipAuth {
		s.loginWithoutAuth(c, sess)
		return
	}

	if s.twitch == nil {
		c.String(http.StatusServiceUnavailable, "Login is not configured on this server.")
		return
	}

	if code := c.Query("code"); code != "" {
		s.finishLogin(c, sess, code)
		return
	}

	if errName := c.Query("error"); errName != "" {
		// The provider bounced the user back with a denial.
		logging.Warn("login denied by provider",
			zap.String("error", errName), zap.String("description", c.Query("error_description")))
		c.Redirect(http.StatusFound, "/")
		return
	}

	redirectTo := c.Query("redirect_to")
	if redirectTo == "" || redirectTo[0] != '/' {
		redirectTo = "/"
	}
	sess.RedirectTo = redirectTo
	sess.LoginState = uuid.NewString()

	c.Redirect(http.StatusFound, s.twitch.AuthorizeURL(sess.LoginState))
}

// finishLogin is the callback leg: CSRF check, code exchange, id_token
// verification and user upsert.
func (s *Server) finishLogin(c *gin.Context, sess *auth.Session, code string) {
	state := c.Query("state")
	if sess.LoginState == "" || state != sess.LoginState {
		c.String(http.StatusBadRequest, "Login state mismatch. Start again at /login.")
		return
	}
	sess.LoginState = ""

	ctx := c.Request.Context()
	tok, err := s.twitch.Exchange(ctx, code)
	if err != nil {
		logging.Error("token exchange failed", zap.Error(err))
		c.String(http.StatusBadGateway, "Login failed talking to the identity provider. Try again.")
		return
	}

	if s.validator != nil && tok.IDToken != "" {
		if _, err := s.validator.ValidateToken(tok.IDToken); err != nil {
			logging.Warn("id_token validation failed", zap.Error(err))
			c.String(http.StatusUnauthorized, "Login failed: identity token did not verify.")
			return
		}
	}

	tu, err := s.twitch.FetchUser(ctx, tok.AccessToken)
	if err != nil {
		logging.Error("user fetch failed", zap.Error(err))
		c.String(http.StatusBadGateway, "Login failed fetching your account. Try again.")
		return
	}

	user, err := s.store.ForTwitch(tu.ID, tu.DisplayName)
	if err != nil {
		logging.Error("user upsert failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Login failed saving your account.")
		return
	}
	sess.User = user

	logging.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("user_name", user.Name))

	redirectTo := sess.RedirectTo
	sess.RedirectTo = ""
	if redirectTo == "" {
		redirectTo = "/"
	}
	c.Redirect(http.StatusFound, redirectTo)
}

// loginWithoutAuth short-circuits the flow in development: everyone is the
// same local account.
func (s *Server) loginWithoutAuth(c *gin.Context, sess *auth.Session) {
	user, err := s.store.ForTwitch(1, "local-dev")
	if err != nil {
		c.String(http.StatusInternalServerError, "Dev login failed: %v", err)
		return
	}
	sess.User = user
	logging.Warn("auth skipped, logged in as local dev user", zap.Int64("user_id", user.ID))
	c.Redirect(http.StatusFound, "/")
}

// handleLogout detaches the user from the session.
func (s *Server) handleLogout(c *gin.Context) {
	if sess := s.session(c); sess != nil {
		sess.User = nil
	}
	c.Redirect(http.StatusFound, "/")
}
