package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbox/quizbox/internal/auth"
	"github.com/quizbox/quizbox/internal/blob"
	"github.com/quizbox/quizbox/internal/config"
	"github.com/quizbox/quizbox/internal/oc"
	"github.com/quizbox/quizbox/internal/ratelimit"
	"github.com/quizbox/quizbox/internal/room"
	"github.com/quizbox/quizbox/internal/store"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Host:                "localhost",
		Port:                "8080",
		SkipAuth:            true,
		RateLimitWsIP:       "100-M",
		RateLimitBlobUpload: "30-M",
	}
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	blobs, err := blob.New(t.TempDir(), st)
	require.NoError(t, err)

	registry := room.NewRegistry()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		registry.Shutdown(ctx)
	})

	limiter, err := ratelimit.New(cfg)
	require.NoError(t, err)

	srv := New(cfg, st, blobs, auth.NewSessions(), nil, nil,
		registry, limiter, oc.NewEngine(st))
	return srv, srv.Router()
}

// loginAs creates a session with an attached user and returns the cookie
// header value to send with requests.
func loginAs(t *testing.T, srv *Server, name string, mod bool) string {
	t.Helper()
	user, err := srv.store.ForTwitch(int64(len(name))+100, name)
	require.NoError(t, err)
	user.IsMod = mod

	sess := srv.sessions.Create()
	sess.User = user
	return auth.CookieName + "=" + sess.Cookie
}

func doRequest(router *gin.Engine, method, path, cookie string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rooms":0`)
}

func TestLandingListsEnginesAndSetsCookie(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "only_connect")
	assert.Contains(t, w.Header().Get("Set-Cookie"), auth.CookieName+"=")
}

func TestSocketUnknownCode(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodGet, "/ws/XXXX", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginSkipAuth(t *testing.T) {
	srv, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodGet, "/login", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	// The session behind the issued cookie is now logged in.
	setCookie := w.Header().Get("Set-Cookie")
	require.NotEmpty(t, setCookie)
	cookie := strings.Split(setCookie, ";")[0]
	sess := srv.sessions.Get(strings.TrimPrefix(cookie, auth.CookieName+"="))
	require.NotNil(t, sess)
	assert.True(t, sess.LoggedIn())
	assert.Equal(t, "local-dev", sess.User.Name)
}

func TestLoginUnconfigured(t *testing.T) {
	_, router := newTestServer(t, func(cfg *config.Config) { cfg.SkipAuth = false })

	w := doRequest(router, http.MethodGet, "/login", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCMSRequiresLogin(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodGet, "/cms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "log in")
}

func TestReviewRequiresModerator(t *testing.T) {
	srv, router := newTestServer(t, nil)
	cookie := loginAs(t, srv, "regular", false)

	w := doRequest(router, http.MethodGet, "/review", cookie, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	modCookie := loginAs(t, srv, "moderator", true)
	w = doRequest(router, http.MethodGet, "/review", modCookie, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateEditAndPlayFlow(t *testing.T) {
	srv, router := newTestServer(t, nil)
	cookie := loginAs(t, srv, "author", false)

	w := doRequest(router, http.MethodPost, "/cms", cookie, gin.H{
		"action": "create", "engine": oc.Ident, "title": "Smoke Test",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		EpisodeID int64 `json:"episode_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.EpisodeID)

	// Give the draft playable content directly through the engine.
	eng := srv.engines[0]
	ep, err := eng.LoadEpisode(created.EpisodeID, 0)
	require.NoError(t, err)
	content := &oc.Episode{
		Title: "Smoke Test",
		MissingVowels: []*oc.MissingVowelsGroup{
			{Connection: "Shows", Words: []oc.VowelPair{
				{Answer: "Only Connect", Prompt: "NLY CNNCT"},
			}},
		},
	}
	ep.Data = content.Serialise()
	require.NoError(t, eng.Save(ep))

	// Opening an edit room registers it and returns endpoint codes.
	w = doRequest(router, http.MethodPost, "/cms", cookie, gin.H{
		"action": "edit", "engine": oc.Ident, "episode_id": created.EpisodeID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "room_code")
	assert.Equal(t, 1, srv.registry.RoomCount())

	// A draft has no published version, so playing without a version fails.
	w = doRequest(router, http.MethodPost, "/play", cookie, gin.H{
		"engine": oc.Ident, "episode_id": created.EpisodeID, "teams": []string{"A"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The author may play their own draft by naming the version.
	w = doRequest(router, http.MethodPost, "/play", cookie, gin.H{
		"engine": oc.Ident, "episode_id": created.EpisodeID, "version": ep.Version,
		"teams": []string{"A"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var opened struct {
		RoomCode  string `json:"room_code"`
		Endpoints []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opened))
	assert.Len(t, opened.RoomCode, 4)
	require.NotEmpty(t, opened.Endpoints)
	assert.Contains(t, opened.Endpoints[0].URL, "ws://localhost:8080/ws/")
	assert.Equal(t, 2, srv.registry.RoomCount())
}

func TestPlayUnknownEngine(t *testing.T) {
	srv, router := newTestServer(t, nil)
	cookie := loginAs(t, srv, "author", false)

	w := doRequest(router, http.MethodPost, "/play", cookie, gin.H{
		"engine": "tetris", "episode_id": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBlobUploadAndFetch(t *testing.T) {
	srv, router := newTestServer(t, nil)
	cookie := loginAs(t, srv, "uploader", false)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	req := httptest.NewRequest(http.MethodPost, "/blob", bytes.NewReader(buf.Bytes()))
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Content-Type", "image/png")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var info store.BlobInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "image/png", info.Mime)

	w = doRequest(router, http.MethodGet, "/blob/"+info.ID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fmt.Sprintf("%q", info.ID), w.Header().Get("ETag"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
	assert.Equal(t, buf.Bytes(), w.Body.Bytes())

	// Conditional fetch with the ETag short-circuits.
	req = httptest.NewRequest(http.MethodGet, "/blob/"+info.ID, nil)
	req.Header.Set("If-None-Match", `"`+info.ID+`"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestBlobUploadRejectsText(t *testing.T) {
	srv, router := newTestServer(t, nil)
	cookie := loginAs(t, srv, "uploader", false)

	req := httptest.NewRequest(http.MethodPost, "/blob", strings.NewReader("hello"))
	req.Header.Set("Cookie", cookie)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}
