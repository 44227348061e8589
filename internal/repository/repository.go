package repository

import (
	"context"

	"github.com/sakif/x-oauth/internal/model"
)

// UserRepository stores one record per identity-provider subject.
//
// Get returns apperror.ErrNotFound for unknown subjects. Upsert replaces any
// existing record for user.SubjectID wholesale; fields are never merged. List
// returns every record, sorted by subject id, and an empty (non-nil) slice when
// there are none.
type UserRepository interface {
	Get(ctx context.Context, subjectID string) (*model.User, error)
	Upsert(ctx context.Context, user *model.User) error
	List(ctx context.Context) ([]model.User, error)
}
