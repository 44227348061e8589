// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the user store
//
// Services know nothing about HTTP status codes or HTML. They return
// *apperror.AppError values and the handler package decides how to render them.
//
// DEPENDENCY INJECTION:
// Every service takes interfaces (IdentityProvider, TweetPoster,
// repository.UserRepository), never concrete clients. Tests pass in fakes; main.go
// passes in the real Privy client, X client and the configured store driver.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/auth"
	"github.com/sakif/x-oauth/internal/metrics"
	"github.com/sakif/x-oauth/internal/model"
	"github.com/sakif/x-oauth/internal/privy"
	"github.com/sakif/x-oauth/internal/repository"
)

// IdentityProvider is the subset of the provider client the login flow needs.
// *privy.Client satisfies it.
type IdentityProvider interface {
	VerifyAuthToken(ctx context.Context, token string) (*auth.Claims, error)
	GetUser(ctx context.Context, userID string) (*privy.User, error)
	GetTwitterOAuthTokens(ctx context.Context, userID string) (*oauth2.Token, []string, error)
}

var _ IdentityProvider = (*privy.Client)(nil)

// LoginService completes the login callback: verify, fetch profile, fetch tokens, store.
type LoginService struct {
	provider IdentityProvider
	users    repository.UserRepository
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoginService creates a LoginService. A nil recorder disables metrics.
func NewLoginService(
	provider IdentityProvider,
	users repository.UserRepository,
	rec metrics.Recorder,
	logger *slog.Logger,
) *LoginService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &LoginService{
		provider: provider,
		users:    users,
		metrics:  rec,
		logger:   logger,
		now:      time.Now,
	}
}

// LoginResult is what the callback page renders.
type LoginResult struct {
	User           *model.User
	TokensReceived bool
}

// CompleteLogin turns a provider access token into a stored user record.
//
// STEPS:
//  1. Verify the token → subject id. Any failure is an AuthenticationError.
//  2. Fetch the provider profile. Failure aborts the login; nothing is stored.
//  3. If an X account is linked, fetch its OAuth tokens. This is best effort:
//     failure is logged and the user is stored without tokens.
//  4. Upsert the record. The new record replaces any previous one completely.
func (s *LoginService) CompleteLogin(ctx context.Context, token string) (*LoginResult, error) {
	if token == "" {
		return nil, apperror.ValidationFailed("token", "Missing token")
	}

	claims, err := s.provider.VerifyAuthToken(ctx, token)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginAuthFailed)
		return nil, apperror.AuthenticationFailed(err.Error(), err)
	}
	subjectID := claims.UserID

	profile, err := s.provider.GetUser(ctx, subjectID)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginProfileFailed)
		return nil, fmt.Errorf("service/login: fetching profile for %s: %w", subjectID, err)
	}

	user := &model.User{
		SubjectID: subjectID,
		CreatedAt: s.now().UTC(),
	}
	if tw := profile.Twitter(); tw != nil {
		user.Twitter = &model.SocialProfile{
			Username:          tw.Username,
			Name:              tw.Name,
			ProfilePictureURL: tw.ProfilePictureURL,
			Subject:           tw.Subject,
		}
		user.Tokens = s.fetchTokens(ctx, subjectID)
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		s.metrics.RecordLogin(metrics.LoginStoreFailed)
		return nil, fmt.Errorf("service/login: storing user %s: %w", subjectID, err)
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	s.logger.Info("user logged in",
		slog.String("subjectId", subjectID),
		slog.String("username", user.Handle()),
		slog.Bool("tokens", user.HasTokens()),
	)

	return &LoginResult{User: user, TokensReceived: user.HasTokens()}, nil
}

// fetchTokens returns the user's X tokens, or nil when the provider cannot supply them.
func (s *LoginService) fetchTokens(ctx context.Context, subjectID string) *model.PlatformTokens {
	tok, scopes, err := s.provider.GetTwitterOAuthTokens(ctx, subjectID)
	if err != nil {
		s.metrics.RecordTokenFetch(false)
		s.logger.Warn("could not get X tokens",
			slog.String("subjectId", subjectID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	s.metrics.RecordTokenFetch(true)
	return tokensFromOAuth2(tok, scopes)
}

func tokensFromOAuth2(tok *oauth2.Token, scopes []string) *model.PlatformTokens {
	if tok == nil || tok.AccessToken == "" {
		return nil
	}
	t := &model.PlatformTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scopes:       scopes,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		t.ExpiresAt = &exp
	}
	return t
}

// oauth2FromTokens is the inverse of tokensFromOAuth2, used when posting.
func oauth2FromTokens(t *model.PlatformTokens) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
	}
	if t.ExpiresAt != nil {
		tok.Expiry = *t.ExpiresAt
	}
	return tok
}
