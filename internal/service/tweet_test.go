package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/model"
	"github.com/sakif/x-oauth/internal/repository/memory"
)

// fakePoster records every call and returns a canned response.
type fakePoster struct {
	calls    int
	lastTok  *oauth2.Token
	lastText string

	resp json.RawMessage
	err  error
}

func (f *fakePoster) PostTweet(_ context.Context, tok *oauth2.Token, text string) (json.RawMessage, error) {
	f.calls++
	f.lastTok = tok
	f.lastText = text
	return f.resp, f.err
}

func newTestTweetService(t *testing.T, poster *fakePoster, users ...*model.User) *TweetService {
	t.Helper()
	store := memory.New()
	for _, u := range users {
		require.NoError(t, store.Upsert(context.Background(), u))
	}
	return NewTweetService(store, poster, nil, discardLogger())
}

func userWithTokens(id, access string) *model.User {
	return &model.User{
		SubjectID: id,
		Twitter:   &model.SocialProfile{Username: "alice"},
		Tokens:    &model.PlatformTokens{AccessToken: access},
	}
}

func TestPost_Validation(t *testing.T) {
	tests := []struct {
		name, subject, text, field string
	}{
		{"missing subject", "", "hello", "subjectId"},
		{"missing text", "u1", "", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poster := &fakePoster{}
			svc := newTestTweetService(t, poster, userWithTokens("u1", "x-access"))

			_, err := svc.Post(context.Background(), tt.subject, tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
			assert.Equal(t, 0, poster.calls, "no upstream call on validation failure")
		})
	}
}

// Only a missing text is rejected; whitespace is X's call to make.
func TestPost_WhitespaceTextIsForwarded(t *testing.T) {
	poster := &fakePoster{resp: json.RawMessage(`{"data":{"id":"1"}}`)}
	svc := newTestTweetService(t, poster, userWithTokens("u1", "x-access"))

	_, err := svc.Post(context.Background(), "u1", "   ")
	require.NoError(t, err)
	assert.Equal(t, 1, poster.calls)
	assert.Equal(t, "   ", poster.lastText)
}

func TestPost_UnknownUser(t *testing.T) {
	poster := &fakePoster{}
	svc := newTestTweetService(t, poster)

	_, err := svc.Post(context.Background(), "ghost", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Equal(t, 0, poster.calls)
}

func TestPost_UserWithoutTokens(t *testing.T) {
	poster := &fakePoster{}
	svc := newTestTweetService(t, poster, &model.User{
		SubjectID: "u1",
		Twitter:   &model.SocialProfile{Username: "alice"},
	})

	_, err := svc.Post(context.Background(), "u1", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Contains(t, err.Error(), "no X tokens")
	assert.Equal(t, 0, poster.calls, "no outbound call without tokens")
}

func TestPost_Success(t *testing.T) {
	poster := &fakePoster{resp: json.RawMessage(`{"data":{"id":"1","text":"hello"}}`)}
	svc := newTestTweetService(t, poster, userWithTokens("u1", "x-access"))

	got, err := svc.Post(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"id":"1","text":"hello"}}`, string(got))

	assert.Equal(t, 1, poster.calls)
	assert.Equal(t, "hello", poster.lastText)
	assert.Equal(t, "x-access", poster.lastTok.AccessToken)
}

func TestPost_UpstreamRejection(t *testing.T) {
	poster := &fakePoster{err: apperror.Upstream(403, []byte(`{"title":"Forbidden"}`))}
	svc := newTestTweetService(t, poster, userWithTokens("u1", "x-access"))

	_, err := svc.Post(context.Background(), "u1", "hello")
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
	assert.Equal(t, 403, appErr.Status)
	assert.Equal(t, 1, poster.calls, "exactly one attempt, no retry")
}

func TestPost_TransportFailure(t *testing.T) {
	poster := &fakePoster{err: apperror.Transport("posting tweet", errors.New("connection reset"))}
	svc := newTestTweetService(t, poster, userWithTokens("u1", "x-access"))

	_, err := svc.Post(context.Background(), "u1", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrTransport))
	assert.Equal(t, 1, poster.calls)
}

// The scenario from the login flow: alice logs in but the token fetch fails,
// so a later tweet for her is refused without contacting X.
func TestLoginThenTweet_WithoutTokens(t *testing.T) {
	p := newFakeProvider()
	p.addTwitterUser("tok_abc", "u1", "alice")
	p.tokenErr = errors.New("provider 500")

	store := memory.New()
	login := NewLoginService(p, store, nil, discardLogger())
	poster := &fakePoster{}
	tweets := NewTweetService(store, poster, nil, discardLogger())
	ctx := context.Background()

	res, err := login.CompleteLogin(ctx, "tok_abc")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Handle())
	assert.False(t, res.TokensReceived)

	_, err = tweets.Post(ctx, "u1", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Equal(t, 0, poster.calls)
}
