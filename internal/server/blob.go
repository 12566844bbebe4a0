package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbox/quizbox/internal/blob"
	"github.com/quizbox/quizbox/internal/store"
)

// handleBlobGet serves a blob's bytes. Blobs are content-addressed and
// therefore immutable: the id doubles as a strong ETag and caches may hold
// the response forever.
func (s *Server) handleBlobGet(c *gin.Context) {
	id := c.Param("id")

	if match := c.GetHeader("If-None-Match"); match == `"`+id+`"` {
		c.Status(http.StatusNotModified)
		return
	}

	info, f, err := s.blobs.Open(id)
	if errors.Is(err, store.ErrNotFound) {
		c.String(http.StatusNotFound, "No such blob.")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to open blob: %v", err)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to stat blob: %v", err)
		return
	}

	c.Header("ETag", `"`+id+`"`)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.DataFromReader(http.StatusOK, stat.Size(), info.Mime, f, nil)
}

// handleBlobPost accepts an image upload and returns its content id.
// Uploading the same bytes twice returns the same id.
func (s *Server) handleBlobPost(c *gin.Context) {
	sess := s.requireLogin(c)
	if sess == nil {
		return
	}

	var src io.Reader
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.String(http.StatusBadRequest, "Failed to read upload: %v", err)
			return
		}
		defer f.Close()
		src = f
	} else {
		src = c.Request.Body
	}

	info, err := s.blobs.Put(src)
	switch {
	case errors.Is(err, blob.ErrTooLarge):
		c.String(http.StatusRequestEntityTooLarge, "That file is too large.")
		return
	case errors.Is(err, blob.ErrUnsupportedType):
		c.String(http.StatusUnsupportedMediaType, "Only PNG, JPEG and GIF images are supported.")
		return
	case err != nil:
		c.String(http.StatusInternalServerError, "Upload failed: %v", err)
		return
	}

	c.JSON(http.StatusOK, info)
}
