// Package auth verifies identity-provider access tokens and protects the X OAuth
// tokens we keep on behalf of users.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Browser visits /auth/twitter, which runs the provider's hosted X login
//  2. The provider hands the browser a short-lived access token (a JWT)
//  3. Browser navigates to /callback?token=<jwt>
//  4. We verify the JWT locally with the provider's public verification key
//  5. The "sub" claim tells us which provider user logged in
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"ES256","typ":"JWT","kid":"..."}
//	- Payload: {"iss":"privy.io","aud":"<app id>","sub":"did:privy:...","sid":"...","exp":...}
//	- Signature: ECDSA P-256 over header+"."+payload, made with the provider's private key
//
// Unlike the HS256 tokens a server issues for itself, we never hold the signing key.
// We only need the provider's PUBLIC key to check the signature.
package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ProviderIssuer is the "iss" claim every provider access token carries.
const ProviderIssuer = "privy.io"

// KeySource supplies the provider's ES256 verification key.
//
// The privy client implements this by fetching (and caching) the key from the
// provider API; tests implement it with a freshly generated key pair.
type KeySource interface {
	VerificationKey(ctx context.Context) (*ecdsa.PublicKey, error)
}

// StaticKey is a KeySource for a key that is known up front, e.g. from the
// PRIVY_VERIFICATION_KEY environment variable.
type StaticKey struct {
	Key *ecdsa.PublicKey
}

// VerificationKey implements KeySource.
func (s StaticKey) VerificationKey(context.Context) (*ecdsa.PublicKey, error) {
	if s.Key == nil {
		return nil, errors.New("auth: no verification key configured")
	}
	return s.Key, nil
}

// ParseVerificationKey decodes a PEM-encoded ECDSA public key.
func ParseVerificationKey(pemKey string) (*ecdsa.PublicKey, error) {
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("auth: parsing verification key: %w", err)
	}
	return key, nil
}

// Claims is the verified content of a provider access token.
type Claims struct {
	UserID     string    // "sub": the provider subject identifier
	SessionID  string    // "sid": the provider session
	AppID      string    // "aud": our app id
	Issuer     string    // "iss": always ProviderIssuer
	IssuedAt   time.Time // "iat"
	Expiration time.Time // "exp"
}

// providerClaims is the JWT payload. It embeds jwt.RegisteredClaims for the
// standard fields and adds the provider's session id.
type providerClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenVerifier checks provider access tokens.
type TokenVerifier struct {
	appID string
	keys  KeySource
}

// NewTokenVerifier creates a TokenVerifier for the given app id.
// Tokens minted for any other app are rejected via the "aud" claim.
func NewTokenVerifier(appID string, keys KeySource) (*TokenVerifier, error) {
	if appID == "" {
		return nil, errors.New("auth: app id is required")
	}
	if keys == nil {
		return nil, errors.New("auth: key source is required")
	}
	return &TokenVerifier{appID: appID, keys: keys}, nil
}

// Verify parses and verifies a provider access token.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid for the provider's public key
//   - Algorithm is ES256 (prevents algorithm confusion attacks, e.g. "none" or HS256
//     signed with the public key as an HMAC secret)
//   - Issuer is "privy.io" and audience is our app id
//   - Token has an expiry and it is in the future
func (v *TokenVerifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, errors.New("auth: token is empty")
	}

	// The key lookup may hit the network, so resolve it before parsing rather than
	// inside the keyfunc, which has no context parameter.
	key, err := v.keys.VerificationKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: loading verification key: %w", err)
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&providerClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{"ES256"}),
		jwt.WithIssuer(ProviderIssuer),
		jwt.WithAudience(v.appID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*providerClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	claims := &Claims{
		UserID:    c.Subject,
		SessionID: c.SessionID,
		AppID:     v.appID,
		Issuer:    c.Issuer,
	}
	if c.IssuedAt != nil {
		claims.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		claims.Expiration = c.ExpiresAt.Time
	}
	return claims, nil
}
