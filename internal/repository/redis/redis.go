// Package redis stores users in Redis so several relay instances can share one
// user table.
//
// Layout, with the configured prefix (default "xoauth:"):
//
//	xoauth:user:<subjectId>  → JSON record, tokens sealed
//	xoauth:users             → set of every subject id, for List
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/auth"
	"github.com/sakif/x-oauth/internal/model"
	"github.com/sakif/x-oauth/internal/repository"
)

var _ repository.UserRepository = (*Store)(nil)

// DefaultPrefix namespaces every key this package writes.
const DefaultPrefix = "xoauth:"

type Store struct {
	c      *rdb.Client
	prefix string
	sealer *auth.Sealer
}

// New connects to addr/db and checks the connection with PING.
func New(ctx context.Context, addr string, db int, prefix string, sealer *auth.Sealer) (*Store, error) {
	if sealer == nil {
		return nil, errors.New("redis: a token sealer is required")
	}
	s := NewWithClient(rdb.NewClient(&rdb.Options{Addr: addr, DB: db}), prefix, sealer)
	if err := s.Ping(ctx); err != nil {
		s.c.Close()
		return nil, fmt.Errorf("redis: connecting to %s: %w", addr, err)
	}
	return s, nil
}

// NewWithClient wraps an existing client. It does not ping.
func NewWithClient(c *rdb.Client, prefix string, sealer *auth.Sealer) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{c: c, prefix: prefix, sealer: sealer}
}

func (s *Store) Ping(ctx context.Context) error { return s.c.Ping(ctx).Err() }

func (s *Store) Close() error { return s.c.Close() }

func (s *Store) userKey(subjectID string) string { return s.prefix + "user:" + subjectID }

func (s *Store) indexKey() string { return s.prefix + "users" }

// Get loads one record. A missing key is apperror.ErrNotFound.
func (s *Store) Get(ctx context.Context, subjectID string) (*model.User, error) {
	b, err := s.c.Get(ctx, s.userKey(subjectID)).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, apperror.NotFound("user", subjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: getting user %s: %w", subjectID, err)
	}
	return s.decode(b)
}

// Upsert overwrites the record and adds the subject to the index in one MULTI/EXEC.
func (s *Store) Upsert(ctx context.Context, user *model.User) error {
	b, err := s.encode(user)
	if err != nil {
		return fmt.Errorf("redis: encoding user %s: %w", user.SubjectID, err)
	}

	pipe := s.c.TxPipeline()
	pipe.Set(ctx, s.userKey(user.SubjectID), b, 0)
	pipe.SAdd(ctx, s.indexKey(), user.SubjectID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: saving user %s: %w", user.SubjectID, err)
	}
	return nil
}

// List returns every indexed record sorted by subject id. Index entries whose
// record has vanished are skipped.
func (s *Store) List(ctx context.Context) ([]model.User, error) {
	ids, err := s.c.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: listing user ids: %w", err)
	}
	users := []model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.userKey(id)
	}
	vals, err := s.c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: loading users: %w", err)
	}

	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		u, err := s.decode([]byte(str))
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	slices.SortFunc(users, func(a, b model.User) int {
		return strings.Compare(a.SubjectID, b.SubjectID)
	})
	return users, nil
}

// record is the stored JSON form. Tokens holds the sealed blob (base64 in JSON).
type record struct {
	SubjectID string               `json:"subjectId"`
	Twitter   *model.SocialProfile `json:"twitter,omitempty"`
	Tokens    []byte               `json:"tokens,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

func (s *Store) encode(u *model.User) ([]byte, error) {
	sealed, err := repository.SealTokens(s.sealer, u.Tokens)
	if err != nil {
		return nil, err
	}
	return json.Marshal(record{
		SubjectID: u.SubjectID,
		Twitter:   u.Twitter,
		Tokens:    sealed,
		CreatedAt: u.CreatedAt.UTC(),
	})
}

func (s *Store) decode(b []byte) (*model.User, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("redis: decoding user: %w", err)
	}
	tokens, err := repository.OpenTokens(s.sealer, r.Tokens)
	if err != nil {
		return nil, fmt.Errorf("redis: user %s: %w", r.SubjectID, err)
	}
	return &model.User{
		SubjectID: r.SubjectID,
		Twitter:   r.Twitter,
		Tokens:    tokens,
		CreatedAt: r.CreatedAt,
	}, nil
}
