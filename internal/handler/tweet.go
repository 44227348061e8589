package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/x-oauth/internal/apperror"
)

// maxTweetBodyBytes caps the request body. A tweet is at most a few KB of JSON.
const maxTweetBodyBytes = 64 << 10

// TweetRelay is implemented by *service.TweetService.
type TweetRelay interface {
	Post(ctx context.Context, subjectID, text string) (json.RawMessage, error)
}

// TweetHandler serves the tweet relay.
type TweetHandler struct {
	tweets TweetRelay
	logger *slog.Logger
}

func NewTweetHandler(tweets TweetRelay, logger *slog.Logger) *TweetHandler {
	return &TweetHandler{tweets: tweets, logger: logger}
}

// tweetRequest is the POST body. privyId is the older name for subjectId and
// is still accepted.
type tweetRequest struct {
	SubjectID string `json:"subjectId"`
	PrivyID   string `json:"privyId"`
	Text      string `json:"text"`
}

func (r tweetRequest) subject() string {
	if r.SubjectID != "" {
		return r.SubjectID
	}
	return r.PrivyID
}

// tweetResponse wraps X's response on success.
type tweetResponse struct {
	Success bool            `json:"success"`
	Tweet   json.RawMessage `json:"tweet"`
}

// HandlePost posts a tweet for a stored user.
//
// HTTP: POST /api/tweet  {"subjectId": "...", "text": "..."}
//
// RESPONSES:
//   - 200 {"success": true, "tweet": <X response>}
//   - 400 malformed body or missing field
//   - 404 unknown user, or a user without X tokens
//   - X's status with {"error": <X body>} when X rejects the post
//   - 500 {"error": "transport_error", ...} when X could not be reached
func (h *TweetHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req tweetRequest
	body := io.LimitReader(r.Body, maxTweetBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.logger.Warn("invalid tweet request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "request body must be a JSON object"))
		return
	}

	tweet, err := h.tweets.Post(r.Context(), req.subject(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tweetResponse{Success: true, Tweet: tweet})
}
