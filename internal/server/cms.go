package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quizbox/quizbox/internal/engine"
	"github.com/quizbox/quizbox/internal/logging"
)

type cmsRequest struct {
	Action    string `json:"action" binding:"required"`
	Engine    string `json:"engine"`
	EpisodeID int64  `json:"episode_id"`
	Version   int    `json:"version"`
	Title     string `json:"title"`
}

type reviewRequest struct {
	Engine    string `json:"engine" binding:"required"`
	EpisodeID int64  `json:"episode_id" binding:"required"`
	Version   int    `json:"version" binding:"required"`
	Approve   bool   `json:"approve"`
	Note      string `json:"note"`
}

type playRequest struct {
	Engine    string   `json:"engine" binding:"required"`
	EpisodeID int64    `json:"episode_id" binding:"required"`
	Version   int      `json:"version"`
	Teams     []string `json:"teams"`
	Scoring   bool     `json:"scoring"`
	Audience  bool     `json:"audience"`
}

// handleCMS is the author dashboard: the caller's episodes per engine plus
// their notifications. Listing the dashboard marks notifications read.
func (s *Server) handleCMS(c *gin.Context) {
	sess := s.requireLogin(c)
	if sess == nil {
		return
	}

	byEngine := make([]gin.H, 0, len(s.engines))
	for _, eng := range s.engines {
		if !eng.CMSEnabled() {
			continue
		}
		episodes, err := eng.UserEpisodes(sess.User.ID)
		if err != nil {
			c.String(http.StatusInternalServerError, "Failed to list episodes: %v", err)
			return
		}
		byEngine = append(byEngine, gin.H{
			"engine":   eng.Ident(),
			"name":     eng.Name(),
			"episodes": episodes,
		})
	}

	notifications, err := s.store.Notifications(sess.User.ID)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to list notifications: %v", err)
		return
	}
	if err := s.store.MarkNotificationsRead(sess.User.ID); err != nil {
		logging.Error("failed to mark notifications read", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          sess.User,
		"engines":       byEngine,
		"notifications": notifications,
	})
}

// handleCMSAction creates episodes and opens edit or view rooms.
func (s *Server) handleCMSAction(c *gin.Context) {
	sess := s.requireLogin(c)
	if sess == nil {
		return
	}

	var req cmsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Bad request: %v", err)
		return
	}

	eng := s.engineByIdent(req.Engine)
	if eng == nil || !eng.CMSEnabled() {
		c.String(http.StatusBadRequest, "Unknown engine %q.", req.Engine)
		return
	}

	switch req.Action {
	case "create":
		if req.Title == "" {
			c.String(http.StatusBadRequest, "A title is required.")
			return
		}
		id, err := eng.CreateEpisode(sess.User.ID, req.Title)
		if err != nil {
			c.String(http.StatusInternalServerError, "Failed to create episode: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"episode_id": id})

	case "edit":
		ep, ok := s.loadOwnedEpisode(c, sess.User.ID, sess.User.IsMod, eng, req.EpisodeID, 0)
		if !ok {
			return
		}
		r, err := eng.EditRoom(ep)
		if err != nil {
			c.String(http.StatusConflict, "Cannot edit: %v", err)
			return
		}
		s.registry.Register(r)
		c.JSON(http.StatusOK, s.roomJSON(r))

	case "view":
		ep, ok := s.loadOwnedEpisode(c, sess.User.ID, sess.User.IsMod, eng, req.EpisodeID, req.Version)
		if !ok {
			return
		}
		r, err := eng.ViewRoom(ep)
		if err != nil {
			c.String(http.StatusConflict, "Cannot view: %v", err)
			return
		}
		s.registry.Register(r)
		c.JSON(http.StatusOK, s.roomJSON(r))

	case "versions":
		if _, ok := s.loadOwnedEpisode(c, sess.User.ID, sess.User.IsMod, eng, req.EpisodeID, 0); !ok {
			return
		}
		versions, err := s.store.EpisodeVersions(req.EpisodeID)
		if err != nil {
			c.String(http.StatusInternalServerError, "Failed to list versions: %v", err)
			return
		}
		out := make([]gin.H, 0, len(versions))
		for _, v := range versions {
			out = append(out, gin.H{"version": v.Version, "state": v.State, "updated": v.Updated})
		}
		c.JSON(http.StatusOK, gin.H{"episode_id": req.EpisodeID, "versions": out})

	case "discard":
		ep, ok := s.loadOwnedEpisode(c, sess.User.ID, sess.User.IsMod, eng, req.EpisodeID, req.Version)
		if !ok {
			return
		}
		if err := eng.SaveState(ep, engine.StateDiscarded); err != nil {
			c.String(http.StatusConflict, "Cannot discard: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"episode_id": ep.ID, "version": ep.Version, "state": ep.State})

	default:
		c.String(http.StatusBadRequest, "Unknown action %q.", req.Action)
	}
}

// loadOwnedEpisode loads an episode version and checks the caller owns it
// (moderators can load anything). Writes the error response itself.
func (s *Server) loadOwnedEpisode(c *gin.Context, userID int64, isMod bool,
	eng engine.GameEngine, episodeID int64, version int) (*engine.Episode, bool) {
	ep, err := eng.LoadEpisode(episodeID, version)
	if errors.Is(err, engine.ErrNoEpisode) {
		c.String(http.StatusNotFound, "No such episode.")
		return nil, false
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to load episode: %v", err)
		return nil, false
	}
	if ep.AuthorID != userID && !isMod {
		c.String(http.StatusForbidden, "That episode belongs to someone else.")
		return nil, false
	}
	return ep, true
}

// handleReviewList shows moderators every episode waiting for review.
func (s *Server) handleReviewList(c *gin.Context) {
	if s.requireMod(c) == nil {
		return
	}

	queues := make([]gin.H, 0, len(s.engines))
	for _, eng := range s.engines {
		if !eng.CMSEnabled() {
			continue
		}
		pending, err := eng.ListEpisodes(engine.StatePendingReview)
		if err != nil {
			c.String(http.StatusInternalServerError, "Failed to list review queue: %v", err)
			return
		}
		queues = append(queues, gin.H{
			"engine":   eng.Ident(),
			"name":     eng.Name(),
			"episodes": pending,
		})
	}
	c.JSON(http.StatusOK, gin.H{"queues": queues})
}

// handleReviewAction approves or rejects a submitted episode version and
// notifies the author either way.
func (s *Server) handleReviewAction(c *gin.Context) {
	sess := s.requireMod(c)
	if sess == nil {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Bad request: %v", err)
		return
	}

	eng := s.engineByIdent(req.Engine)
	if eng == nil {
		c.String(http.StatusBadRequest, "Unknown engine %q.", req.Engine)
		return
	}

	ep, err := eng.LoadEpisode(req.EpisodeID, req.Version)
	if errors.Is(err, engine.ErrNoEpisode) {
		c.String(http.StatusNotFound, "No such episode version.")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to load episode: %v", err)
		return
	}
	if ep.State != engine.StatePendingReview {
		c.String(http.StatusConflict, "Version %d is %s, not awaiting review.", ep.Version, ep.State)
		return
	}

	var message string
	if req.Approve {
		if err := eng.SaveState(ep, engine.StatePublished); err != nil {
			c.String(http.StatusInternalServerError, "Failed to publish: %v", err)
			return
		}
		message = fmt.Sprintf("Your episode %q was approved and published.", ep.Title)
	} else {
		if err := eng.SaveState(ep, engine.StateDraft); err != nil {
			c.String(http.StatusInternalServerError, "Failed to reject: %v", err)
			return
		}
		message = fmt.Sprintf("Your episode %q was returned to drafts.", ep.Title)
		if req.Note != "" {
			message += " Reviewer note: " + req.Note
		}
	}

	if err := s.store.SendNotification(ep.AuthorID, message); err != nil {
		logging.Error("failed to notify author", zap.Int64("user_id", ep.AuthorID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"episode_id": ep.ID, "version": ep.Version, "state": ep.State})
}

// handlePlay opens a live game room for an episode. Hosts play the latest
// published version unless they own the episode and ask for a specific one.
func (s *Server) handlePlay(c *gin.Context) {
	sess := s.requireLogin(c)
	if sess == nil {
		return
	}

	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Bad request: %v", err)
		return
	}

	eng := s.engineByIdent(req.Engine)
	if eng == nil {
		c.String(http.StatusBadRequest, "Unknown engine %q.", req.Engine)
		return
	}

	version := req.Version
	if version == 0 {
		v, err := s.latestPublishedVersion(req.EpisodeID)
		if err != nil {
			c.String(http.StatusNotFound, "That episode has no published version.")
			return
		}
		version = v
	}

	ep, err := eng.LoadEpisode(req.EpisodeID, version)
	if errors.Is(err, engine.ErrNoEpisode) {
		c.String(http.StatusNotFound, "No such episode version.")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to load episode: %v", err)
		return
	}
	// Unpublished content is only playable by its author or a moderator.
	if ep.State != engine.StatePublished && ep.AuthorID != sess.User.ID && !sess.User.IsMod {
		c.String(http.StatusForbidden, "That version is not published.")
		return
	}

	teams := req.Teams
	if len(teams) > eng.MaxTeams() {
		teams = teams[:eng.MaxTeams()]
	}
	opts := engine.RoomOptions{
		Scoring:  req.Scoring || eng.ScoringMode() == engine.Required,
		Teams:    teams,
		Audience: req.Audience && eng.SupportsAudience() != engine.NotSupported,
	}

	r, err := eng.PlayRoom(ep, opts)
	if err != nil {
		c.String(http.StatusConflict, "Cannot start a game: %v", err)
		return
	}
	s.registry.Register(r)

	logging.Info("opened play room",
		zap.String("room_code", r.Code),
		zap.String("engine", eng.Ident()),
		zap.Int64("episode_id", ep.ID),
		zap.Int("version", ep.Version))
	c.JSON(http.StatusOK, s.roomJSON(r))
}

// latestPublishedVersion finds the highest PUBLISHED version of an episode.
func (s *Server) latestPublishedVersion(episodeID int64) (int, error) {
	versions, err := s.store.EpisodeVersions(episodeID)
	if err != nil {
		return 0, err
	}
	best := 0
	for _, v := range versions {
		if engine.EpisodeState(v.State) == engine.StatePublished && v.Version > best {
			best = v.Version
		}
	}
	if best == 0 {
		return 0, errors.New("no published version")
	}
	return best, nil
}
