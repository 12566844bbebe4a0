package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quizbox/quizbox/internal/logging"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	twitchAuthorizeURL = "https://id.twitch.tv/oauth2/authorize"
	twitchTokenURL     = "https://id.twitch.tv/oauth2/token"
	twitchUsersURL     = "https://api.twitch.tv/helix/users"
)

// TwitchClient drives the OAuth authorization-code flow against Twitch and
// fetches the logged-in user's identity. All outbound calls share one HTTP
// client behind a circuit breaker, so a Twitch outage fails fast instead
// of piling up blocked logins.
type TwitchClient struct {
	clientID     string
	clientSecret string
	redirectURL  string

	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// TokenResponse is the token-endpoint reply.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// TwitchUser is the identity record from the helix users endpoint.
type TwitchUser struct {
	ID          int64
	DisplayName string
}

// NewTwitchClient builds a client for the given application credentials.
// redirectURL must match the URL registered with Twitch.
func NewTwitchClient(clientID, clientSecret, redirectURL string) *TwitchClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "twitch",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("twitch circuit breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &TwitchClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		http:         &http.Client{Timeout: 10 * time.Second},
		breaker:      breaker,
	}
}

// Close releases idle connections held by the shared HTTP client.
func (c *TwitchClient) Close() {
	c.http.CloseIdleConnections()
}

// AuthorizeURL builds the authorize redirect carrying the CSRF state token.
func (c *TwitchClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid")
	q.Set("state", state)
	return twitchAuthorizeURL + "?" + q.Encode()
}

func (c *TwitchClient) do(req *http.Request) ([]byte, error) {
	body, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("twitch returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// Exchange trades an authorization code for tokens.
func (c *TwitchClient) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.redirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, twitchTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	var tok TokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token response missing access token")
	}
	return &tok, nil
}

// FetchUser resolves the access token to the Twitch account behind it.
func (c *TwitchClient) FetchUser(ctx context.Context, accessToken string) (*TwitchUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, twitchUsersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build users request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Client-Id", c.clientID)

	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("user fetch failed: %w", err)
	}

	var reply struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode users response: %w", err)
	}
	if len(reply.Data) == 0 {
		return nil, errors.New("users response is empty")
	}

	id, err := strconv.ParseInt(reply.Data[0].ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad twitch user id %q: %w", reply.Data[0].ID, err)
	}
	return &TwitchUser{ID: id, DisplayName: reply.Data[0].DisplayName}, nil
}
