// Package twitter posts content to the X (formerly Twitter) v2 API on a user's behalf.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/x-oauth/internal/apperror"
)

// DefaultBaseURL is the production X API.
const DefaultBaseURL = "https://api.twitter.com"

const (
	createTweetPath  = "/2/tweets"
	maxResponseBytes = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout bounds a single post, including reading the response.
	Timeout time.Duration
}

// Client calls the X API with user-scoped OAuth 2.0 bearer tokens.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		timeout:    cfg.Timeout,
	}
}

type createTweetRequest struct {
	Text string `json:"text"`
}

// PostTweet publishes text as the owner of tok and returns the API's JSON response.
//
// Exactly one request is made. There is no retry and no idempotency key, so a caller
// that resubmits after a timeout may create a duplicate post.
//
// Errors:
//   - *apperror.AppError wrapping ErrUpstream when X answers with a non-2xx status;
//     Status and Body carry the response unchanged
//   - *apperror.AppError wrapping ErrTransport when the request never completed
func (c *Client) PostTweet(ctx context.Context, tok *oauth2.Token, text string) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(createTweetRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("twitter: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createTweetPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("twitter: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// oauth2.NewClient wraps our base client's transport with one that sets
	// "Authorization: Bearer <access token>". The static source never refreshes:
	// the stored token is used exactly as the provider handed it to us.
	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, c.httpClient),
		oauth2.StaticTokenSource(tok),
	)

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperror.Transport("posting tweet", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperror.Transport("reading tweet response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.Upstream(resp.StatusCode, body)
	}

	return AsJSON(body), nil
}

// AsJSON returns body unchanged when it is valid JSON, and as a JSON string otherwise.
// An empty body becomes JSON null.
func AsJSON(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
