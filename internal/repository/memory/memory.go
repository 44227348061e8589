// Package memory is a process-lifetime UserRepository backed by a map.
//
// Records are lost on restart. This is the default driver: the service keeps no state
// worth persisting beyond "who logged in since we started".
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/model"
	"github.com/sakif/x-oauth/internal/repository"
)

// compile-time check that *Store implements repository.UserRepository
var _ repository.UserRepository = (*Store)(nil)

// Store holds users keyed by subject id.
//
// Each request runs on its own goroutine, so the map is guarded by an RWMutex.
// An upsert is a single map assignment under the write lock: readers see either the
// old record or the new one, never a mix.
type Store struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// New creates an empty Store.
func New() *Store {
	return &Store{users: make(map[string]model.User)}
}

// Get returns a copy of the record for subjectID.
func (s *Store) Get(_ context.Context, subjectID string) (*model.User, error) {
	s.mu.RLock()
	u, ok := s.users[subjectID]
	s.mu.RUnlock()

	if !ok {
		return nil, apperror.NotFound("user", subjectID)
	}
	return clone(&u), nil
}

// Upsert stores a copy of user, replacing any previous record.
func (s *Store) Upsert(_ context.Context, user *model.User) error {
	stored := clone(user)

	s.mu.Lock()
	s.users[user.SubjectID] = *stored
	s.mu.Unlock()
	return nil
}

// List returns copies of all records sorted by subject id.
func (s *Store) List(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *clone(&u))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.User) int {
		return strings.Compare(a.SubjectID, b.SubjectID)
	})
	return out, nil
}

// clone deep-copies the pointer fields so callers can't mutate stored records.
func clone(u *model.User) *model.User {
	c := *u
	if u.Twitter != nil {
		tw := *u.Twitter
		c.Twitter = &tw
	}
	if u.Tokens != nil {
		tok := *u.Tokens
		tok.Scopes = slices.Clone(u.Tokens.Scopes)
		if u.Tokens.ExpiresAt != nil {
			exp := *u.Tokens.ExpiresAt
			tok.ExpiresAt = &exp
		}
		c.Tokens = &tok
	}
	return &c
}
