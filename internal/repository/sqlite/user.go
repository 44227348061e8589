package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/model"
	"github.com/sakif/x-oauth/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts or fully replaces the user row for user.SubjectID.
//
// The internal row id (an xid) is generated on first insert and kept on later
// updates; every other column is overwritten, so a login without tokens clears
// tokens saved by an earlier login.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	twitter, err := encodeProfile(user.Twitter)
	if err != nil {
		return fmt.Errorf("sqlite: encoding profile for %s: %w", user.SubjectID, err)
	}
	tokens, err := repository.SealTokens(db.sealer, user.Tokens)
	if err != nil {
		return fmt.Errorf("sqlite: sealing tokens for %s: %w", user.SubjectID, err)
	}
	createdAt := user.CreatedAt.UTC()

	// One statement, so the insert-or-replace is atomic: concurrent callbacks
	// for the same subject never race between a lookup and a write. The row id
	// only comes from the first insert; ON CONFLICT keeps it.
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, subject_id, twitter, tokens, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id) DO UPDATE SET
			twitter    = excluded.twitter,
			tokens     = excluded.tokens,
			created_at = excluded.created_at`,
		xid.New().String(), user.SubjectID, twitter, tokens, createdAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s: %w", user.SubjectID, err)
	}
	return nil
}

// Get retrieves a user by subject id.
// Returns apperror.ErrNotFound if no user exists with that id.
func (db *DB) Get(ctx context.Context, subjectID string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT subject_id, twitter, tokens, created_at FROM users WHERE subject_id = ?`,
		subjectID,
	)

	u, err := db.scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", subjectID)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", subjectID, err)
	}
	return u, nil
}

// List returns all users ordered by subject id.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT subject_id, twitter, tokens, created_at FROM users ORDER BY subject_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := db.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanUser(s scanner) (*model.User, error) {
	var (
		u       model.User
		twitter sql.NullString
		tokens  []byte
	)
	if err := s.Scan(&u.SubjectID, &twitter, &tokens, &u.CreatedAt); err != nil {
		return nil, err
	}

	if twitter.Valid && twitter.String != "" {
		var p model.SocialProfile
		if err := json.Unmarshal([]byte(twitter.String), &p); err != nil {
			return nil, fmt.Errorf("decoding profile: %w", err)
		}
		u.Twitter = &p
	}

	t, err := repository.OpenTokens(db.sealer, tokens)
	if err != nil {
		return nil, err
	}
	u.Tokens = t

	return &u, nil
}

// encodeProfile returns the JSON column value for a profile, or NULL for none.
func encodeProfile(p *model.SocialProfile) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
