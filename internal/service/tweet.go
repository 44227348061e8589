package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/metrics"
	"github.com/sakif/x-oauth/internal/repository"
	"github.com/sakif/x-oauth/internal/twitter"
)

// TweetPoster publishes a tweet with a user's token. *twitter.Client satisfies it.
type TweetPoster interface {
	PostTweet(ctx context.Context, tok *oauth2.Token, text string) (json.RawMessage, error)
}

var _ TweetPoster = (*twitter.Client)(nil)

// TweetService relays a tweet on behalf of a stored user.
type TweetService struct {
	users   repository.UserRepository
	poster  TweetPoster
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewTweetService creates a TweetService. A nil recorder disables metrics.
func NewTweetService(
	users repository.UserRepository,
	poster TweetPoster,
	rec metrics.Recorder,
	logger *slog.Logger,
) *TweetService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &TweetService{users: users, poster: poster, metrics: rec, logger: logger}
}

// Post publishes text as subjectID and returns X's JSON response unchanged.
//
// Validation and lookups happen before any network call: a missing field, an
// unknown subject or a subject without tokens never reaches X. Both lookup
// failures are ErrNotFound; the messages differ so logs can tell them apart.
func (s *TweetService) Post(ctx context.Context, subjectID, text string) (json.RawMessage, error) {
	if subjectID == "" {
		return nil, apperror.ValidationFailed("subjectId", "subjectId is required")
	}
	if text == "" {
		return nil, apperror.ValidationFailed("text", "text is required")
	}

	user, err := s.users.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.RecordTweet(metrics.TweetUnknownUser)
		}
		return nil, fmt.Errorf("service/tweet: %w", err)
	}
	if !user.HasTokens() {
		s.metrics.RecordTweet(metrics.TweetNoTokens)
		return nil, apperror.NotFoundMessage(fmt.Sprintf("user %s has no X tokens", subjectID))
	}

	tweet, err := s.poster.PostTweet(ctx, oauth2FromTokens(user.Tokens), text)
	if err != nil {
		outcome := metrics.TweetTransportError
		if errors.Is(err, apperror.ErrUpstream) {
			outcome = metrics.TweetRejected
		}
		s.metrics.RecordTweet(outcome)
		s.logger.Warn("tweet not posted",
			slog.String("subjectId", subjectID),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/tweet: %w", err)
	}

	s.metrics.RecordTweet(metrics.TweetPosted)
	s.logger.Info("tweet posted",
		slog.String("subjectId", subjectID),
		slog.String("username", user.Handle()),
	)
	return tweet, nil
}
