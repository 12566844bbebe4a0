package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	twitchIssuer  = "https://id.twitch.tv/oauth2"
	twitchJWKSURL = "https://id.twitch.tv/oauth2/keys"
)

// IDClaims are the OIDC claims carried by a Twitch id_token.
type IDClaims struct {
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// IDTokenValidator verifies id_tokens from the identity provider against
// its published JWKS. Keys are cached and refreshed in the background.
type IDTokenValidator struct {
	keyFunc  jwt.Keyfunc
	issuer   string
	audience string
}

// NewIDTokenValidator registers the provider's JWKS endpoint in a refresh
// cache and fetches the keys once to confirm connectivity.
func NewIDTokenValidator(ctx context.Context, clientID string, regOpts ...jwk.RegisterOption) (*IDTokenValidator, error) {
	cache := jwk.NewCache(ctx)

	opts := []jwk.RegisterOption{jwk.WithRefreshInterval(1 * time.Hour)}
	opts = append(opts, regOpts...)

	if err := cache.Register(twitchJWKSURL, opts...); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL in cache: %w", err)
	}
	if _, err := cache.Refresh(ctx, twitchJWKSURL); err != nil {
		return nil, fmt.Errorf("failed to fetch initial JWKS: %w", err)
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}

		keys, err := cache.Get(ctx, twitchJWKSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get keys from cache: %w", err)
		}

		key, found := keys.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("key with kid %s not found", kid)
		}

		var pubKey interface{}
		if err := key.Raw(&pubKey); err != nil {
			return nil, fmt.Errorf("failed to get raw public key: %w", err)
		}
		return pubKey, nil
	}

	return &IDTokenValidator{
		keyFunc:  keyFunc,
		issuer:   twitchIssuer,
		audience: clientID,
	}, nil
}

// ValidateToken parses and verifies an id_token, returning its claims.
func (v *IDTokenValidator) ValidateToken(tokenString string) (*IDClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IDClaims{}, v.keyFunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}

	claims, ok := token.Claims.(*IDClaims)
	if !ok {
		return nil, errors.New("failed to cast claims to IDClaims")
	}
	return claims, nil
}
