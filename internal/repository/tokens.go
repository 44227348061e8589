package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/x-oauth/internal/auth"
	"github.com/sakif/x-oauth/internal/model"
)

// sealedTokens is the plaintext inside a sealed token blob. It exists because
// model.PlatformTokens deliberately hides the secrets from encoding/json.
type sealedTokens struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// SealTokens encrypts tokens for a persistent driver. nil tokens seal to nil.
func SealTokens(s *auth.Sealer, tokens *model.PlatformTokens) ([]byte, error) {
	if tokens == nil {
		return nil, nil
	}
	if s == nil {
		return nil, errors.New("repository: a sealer is required to persist tokens")
	}

	plain, err := json.Marshal(sealedTokens{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Scopes:       tokens.Scopes,
		ExpiresAt:    tokens.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: encoding tokens: %w", err)
	}
	return s.Seal(plain)
}

// OpenTokens reverses SealTokens. An empty blob opens to nil tokens.
func OpenTokens(s *auth.Sealer, sealed []byte) (*model.PlatformTokens, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	if s == nil {
		return nil, errors.New("repository: a sealer is required to read tokens")
	}

	plain, err := s.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("repository: opening tokens: %w", err)
	}

	var st sealedTokens
	if err := json.Unmarshal(plain, &st); err != nil {
		return nil, fmt.Errorf("repository: decoding tokens: %w", err)
	}
	return &model.PlatformTokens{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		Scopes:       st.Scopes,
		ExpiresAt:    st.ExpiresAt,
	}, nil
}
