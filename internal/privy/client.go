// Package privy is a small client for the Privy server API, the identity provider
// that runs the X (Twitter) OAuth handshake for us.
//
// WHAT THE PROVIDER DOES VS. WHAT WE DO:
// The whole OAuth dance (redirect to X, consent screen, code exchange) happens in the
// browser through the provider's hosted flow. Our server only ever sees the result:
// a provider access token. From there we need three server-side capabilities:
//
//  1. VerifyAuthToken: check the token's signature and claims, learn the user's ID
//  2. GetUser: fetch the user's profile, including the linked X account
//  3. GetTwitterOAuthTokens: fetch the X access token so we can post for the user
//
// AUTHENTICATING TO THE PROVIDER:
// Every server API call carries HTTP Basic auth (app id : app secret) and a
// "privy-app-id" header. The app secret never leaves this package.
package privy

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/x-oauth/internal/auth"
)

// DefaultBaseURL is the provider's production API.
const DefaultBaseURL = "https://auth.privy.io"

const (
	appSettingsPath = "/api/v1/apps/%s"
	userPath        = "/api/v1/users/%s"
	twitterTokens   = "/api/v1/users/%s/linked_accounts/twitter_oauth/tokens"

	verificationKeyCacheKey = "verification_key"

	// defaultKeyFetchTimeout bounds a shared verification-key fetch.
	defaultKeyFetchTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a provider response we read. Provider
	// objects are a few KB; anything larger is not something we want in memory.
	maxResponseBytes = 1 << 20
)

var tracer = otel.Tracer("github.com/sakif/x-oauth/internal/privy")

// ErrTwitterNotLinked is returned by GetTwitterOAuthTokens when the provider has
// no X credentials for the user.
var ErrTwitterNotLinked = errors.New("privy: user has no linked X account tokens")

// Config holds the provider credentials and tuning knobs.
type Config struct {
	AppID     string
	AppSecret string

	// BaseURL defaults to DefaultBaseURL. Tests point it at an httptest.Server.
	BaseURL string

	// VerificationKey is an optional PEM-encoded ES256 public key. When empty, the
	// key is fetched from the app settings endpoint and cached for KeyTTL.
	VerificationKey string
	KeyTTL          time.Duration

	// HTTPClient is used for every provider call. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Client talks to the provider's server API.
type Client struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client
	verifier   *auth.TokenVerifier

	// Verification-key caching: keys caches the parsed key, group collapses
	// concurrent misses into a single fetch.
	keys            *gocache.Cache
	group           singleflight.Group
	keyFetchTimeout time.Duration

	now func() time.Time
}

// compile-time check that *Client can serve as the verifier's key source
var _ auth.KeySource = (*Client)(nil)

// New creates a Client. It does not contact the provider.
func New(cfg Config) (*Client, error) {
	if cfg.AppID == "" {
		return nil, errors.New("privy: app id is required")
	}
	if cfg.AppSecret == "" {
		return nil, errors.New("privy: app secret is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.KeyTTL <= 0 {
		cfg.KeyTTL = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		keys:       gocache.New(cfg.KeyTTL, 10*time.Minute),
		now:        time.Now,

		keyFetchTimeout: defaultKeyFetchTimeout,
	}

	// A key supplied through configuration never expires from the cache.
	if cfg.VerificationKey != "" {
		key, err := auth.ParseVerificationKey(cfg.VerificationKey)
		if err != nil {
			return nil, fmt.Errorf("privy: %w", err)
		}
		c.keys.Set(verificationKeyCacheKey, key, gocache.NoExpiration)
	}

	verifier, err := auth.NewTokenVerifier(cfg.AppID, c)
	if err != nil {
		return nil, fmt.Errorf("privy: %w", err)
	}
	c.verifier = verifier

	return c, nil
}

// VerifyAuthToken verifies a provider access token and returns its claims.
// The subject identifier is Claims.UserID.
func (c *Client) VerifyAuthToken(ctx context.Context, token string) (*auth.Claims, error) {
	ctx, span := tracer.Start(ctx, "privy.VerifyAuthToken")
	defer span.End()

	claims, err := c.verifier.Verify(ctx, token)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("privy.user_id", claims.UserID))
	return claims, nil
}

// VerificationKey returns the provider's ES256 public key, fetching it on a cache miss.
func (c *Client) VerificationKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	if cached, ok := c.keys.Get(verificationKeyCacheKey); ok {
		return cached.(*ecdsa.PublicKey), nil
	}

	// The flight outlives the caller that started it: other callers may be
	// waiting on the same fetch, so it runs detached from that caller's
	// cancellation and under its own timeout.
	ch := c.group.DoChan(verificationKeyCacheKey, func() (any, error) {
		// A flight that finished between our cache miss and this call already stored the key.
		if cached, ok := c.keys.Get(verificationKeyCacheKey); ok {
			return cached, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.keyFetchTimeout)
		defer cancel()

		var settings appSettings
		if err := c.getJSON(fetchCtx, fmt.Sprintf(appSettingsPath, url.PathEscape(c.appID)), &settings); err != nil {
			return nil, fmt.Errorf("privy: fetching verification key: %w", err)
		}
		key, err := auth.ParseVerificationKey(settings.VerificationKey)
		if err != nil {
			return nil, fmt.Errorf("privy: %w", err)
		}
		c.keys.SetDefault(verificationKeyCacheKey, key)
		return key, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ecdsa.PublicKey), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("privy: waiting for verification key: %w", ctx.Err())
	}
}

// GetUser fetches a user by subject identifier.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	ctx, span := tracer.Start(ctx, "privy.GetUser",
		trace.WithAttributes(attribute.String("privy.user_id", userID)))
	defer span.End()

	var u User
	if err := c.getJSON(ctx, fmt.Sprintf(userPath, url.PathEscape(userID)), &u); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("privy: fetching user %s: %w", userID, err)
	}
	if u.ID == "" {
		err := fmt.Errorf("privy: provider returned a user without an id")
		recordError(span, err)
		return nil, err
	}
	return &u, nil
}

// GetTwitterOAuthTokens fetches the X OAuth 2.0 tokens the provider obtained when the
// user logged in with X. The result is an *oauth2.Token so callers can hand it
// straight to an oauth2 token source.
func (c *Client) GetTwitterOAuthTokens(ctx context.Context, userID string) (*oauth2.Token, []string, error) {
	ctx, span := tracer.Start(ctx, "privy.GetTwitterOAuthTokens",
		trace.WithAttributes(attribute.String("privy.user_id", userID)))
	defer span.End()

	var raw oauthTokens
	if err := c.getJSON(ctx, fmt.Sprintf(twitterTokens, url.PathEscape(userID)), &raw); err != nil {
		recordError(span, err)
		return nil, nil, fmt.Errorf("privy: fetching X tokens for %s: %w", userID, err)
	}
	if raw.AccessToken == "" {
		recordError(span, ErrTwitterNotLinked)
		return nil, nil, ErrTwitterNotLinked
	}

	tok := &oauth2.Token{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       raw.expiry(c.now()),
	}
	return tok, raw.Scopes, nil
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// getJSON performs an authenticated GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.appID, c.appSecret)
	req.Header.Set("privy-app-id", c.appID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding provider response: %w", err)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
