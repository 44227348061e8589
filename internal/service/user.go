package service

import (
	"context"
	"fmt"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/model"
	"github.com/sakif/x-oauth/internal/repository"
)

// UserService serves read-only lookups over the user store.
type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Get returns the record for subjectID, or an apperror.ErrNotFound error.
func (s *UserService) Get(ctx context.Context, subjectID string) (*model.User, error) {
	if subjectID == "" {
		return nil, apperror.NotFound("user", subjectID)
	}
	u, err := s.users.Get(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("service/user: %w", err)
	}
	return u, nil
}

// List returns every record. The slice is never nil.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}
