// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"encoding/json"
	"time"
)

// User is the record we keep for everyone who completed the X login callback.
//
// The primary key is the identity provider's subject identifier (a Privy DID such as
// "did:privy:cm3np..."). We never generate our own public ID: the provider already
// guarantees the subject is stable and unique.
//
// WHY POINTERS FOR Twitter AND Tokens?
// Both parts are optional. A nil pointer serialises as JSON null, which lets API
// callers tell "no linked X account" and "no tokens" apart from empty values.
type User struct {
	SubjectID string          `json:"subjectId"`
	Twitter   *SocialProfile  `json:"twitter"`
	Tokens    *PlatformTokens `json:"tokens"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SocialProfile is the linked X account as reported by the identity provider.
type SocialProfile struct {
	Username          string `json:"username"`          // X handle without the "@"
	Name              string `json:"name"`              // display name
	ProfilePictureURL string `json:"profilePictureUrl"` // may be empty
	Subject           string `json:"subject"`           // X's own user ID
}

// Handle returns the X username, or "" when the user has no linked account.
func (u *User) Handle() string {
	if u == nil || u.Twitter == nil {
		return ""
	}
	return u.Twitter.Username
}

// HasTokens reports whether the record carries a usable access token.
func (u *User) HasTokens() bool {
	return u != nil && u.Tokens != nil && u.Tokens.AccessToken != ""
}

// PlatformTokens are the X OAuth 2.0 credentials that let us act on the user's behalf.
//
// SECRETS NEVER LEAVE THE SERVER:
// AccessToken and RefreshToken are tagged `json:"-"` and MarshalJSON below only
// emits metadata. Storage drivers that need the raw values (sqlite, redis) seal
// them explicitly with auth.Sealer instead of relying on this JSON form.
type PlatformTokens struct {
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	Scopes       []string   `json:"scopes,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// MarshalJSON renders the public view of the tokens: whether an access token is
// present, plus its scopes and expiry.
func (t PlatformTokens) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Present   bool       `json:"present"`
		Scopes    []string   `json:"scopes,omitempty"`
		ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	}{
		Present:   t.AccessToken != "",
		Scopes:    t.Scopes,
		ExpiresAt: t.ExpiresAt,
	})
}
