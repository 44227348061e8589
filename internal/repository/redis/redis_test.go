package redis

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/auth"
	"github.com/sakif/x-oauth/internal/model"
)

// These tests cover key layout and the record codec. They never dial Redis:
// go-redis clients connect lazily, so constructing one is free.
func newTestStore(t *testing.T, prefix string) *Store {
	t.Helper()
	sealer, err := auth.NewSealer("redis-test-secret-0123456789")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	c := rdb.NewClient(&rdb.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { c.Close() })
	return NewWithClient(c, prefix, sealer)
}

func TestKeys(t *testing.T) {
	s := newTestStore(t, "")
	if got := s.userKey("did:privy:u1"); got != "xoauth:user:did:privy:u1" {
		t.Errorf("userKey = %q", got)
	}
	if got := s.indexKey(); got != "xoauth:users" {
		t.Errorf("indexKey = %q", got)
	}

	custom := newTestStore(t, "staging:")
	if got := custom.userKey("u1"); got != "staging:user:u1" {
		t.Errorf("userKey with custom prefix = %q", got)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	s := newTestStore(t, "")
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &model.User{
		SubjectID: "u1",
		Twitter:   &model.SocialProfile{Username: "alice", Name: "Alice", Subject: "42"},
		Tokens: &model.PlatformTokens{
			AccessToken:  "access-abc",
			RefreshToken: "refresh-abc",
			Scopes:       []string{"tweet.write"},
			ExpiresAt:    &expires,
		},
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	b, err := s.encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Contains(b, []byte("access-abc")) || bytes.Contains(b, []byte("refresh-abc")) {
		t.Errorf("encoded record leaks a token: %s", b)
	}

	out, err := s.decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Handle() != "alice" || out.Twitter.Subject != "42" {
		t.Errorf("Twitter = %+v", out.Twitter)
	}
	if out.Tokens == nil || out.Tokens.AccessToken != "access-abc" || out.Tokens.RefreshToken != "refresh-abc" {
		t.Errorf("Tokens = %+v", out.Tokens)
	}
	if !out.Tokens.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", out.Tokens.ExpiresAt, expires)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", out.CreatedAt, in.CreatedAt)
	}
}

func TestCodec_NoProfileNoTokens(t *testing.T) {
	s := newTestStore(t, "")

	b, err := s.encode(&model.User{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := s.decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Twitter != nil || out.Tokens != nil {
		t.Errorf("got %+v, want nil profile and tokens", out)
	}
}

func TestDecode_WrongSealer(t *testing.T) {
	s := newTestStore(t, "")
	b, err := s.encode(&model.User{SubjectID: "u1", Tokens: &model.PlatformTokens{AccessToken: "x"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	other, err := auth.NewSealer("a-completely-different-secret")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	s.sealer = other
	if _, err := s.decode(b); err == nil {
		t.Fatal("decode with a different sealer should fail")
	}
}

func TestDecode_Garbage(t *testing.T) {
	s := newTestStore(t, "")
	if _, err := s.decode([]byte("not json")); err == nil {
		t.Fatal("decode of garbage should fail")
	}
}

// TestStore_Live runs against a real server when XOAUTH_TEST_REDIS_ADDR is set,
// e.g. XOAUTH_TEST_REDIS_ADDR=localhost:6379 go test ./internal/repository/redis/.
func TestStore_Live(t *testing.T) {
	addr := os.Getenv("XOAUTH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("XOAUTH_TEST_REDIS_ADDR not set")
	}
	sealer, err := auth.NewSealer("redis-test-secret-0123456789")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	prefix := "xoauth-test-" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":"

	ctx := context.Background()
	s, err := New(ctx, addr, 0, prefix, sealer)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		keys, _ := s.c.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			s.c.Del(ctx, keys...)
		}
		s.Close()
	})

	if _, err := s.Get(ctx, "u1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Get on empty store: got %v, want ErrNotFound", err)
	}

	for _, id := range []string{"u2", "u1"} {
		u := &model.User{
			SubjectID: id,
			Twitter:   &model.SocialProfile{Username: "handle-" + id},
			Tokens:    &model.PlatformTokens{AccessToken: "access-" + id},
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		if err := s.Upsert(ctx, u); err != nil {
			t.Fatalf("Upsert %s: %v", id, err)
		}
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tokens == nil || got.Tokens.AccessToken != "access-u1" {
		t.Errorf("tokens not restored: %+v", got.Tokens)
	}

	raw, err := s.c.Get(ctx, s.userKey("u1")).Bytes()
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if bytes.Contains(raw, []byte("access-u1")) {
		t.Error("access token stored in plaintext")
	}

	users, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[0].SubjectID != "u1" || users[1].SubjectID != "u2" {
		t.Errorf("List = %+v, want u1, u2", users)
	}
}
