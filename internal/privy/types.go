package privy

import "time"

// LinkedAccountTwitter is the linked-account type for X (formerly Twitter) OAuth logins.
const LinkedAccountTwitter = "twitter_oauth"

// User is the portion of the provider's user object we care about.
// The provider returns a much larger object; we only unmarshal the fields we need.
type User struct {
	ID             string          `json:"id"` // "did:privy:..."
	CreatedAt      int64           `json:"created_at"`
	LinkedAccounts []LinkedAccount `json:"linked_accounts"`
}

// LinkedAccount is one login method attached to a provider user. Only the fields
// used by the X account type are decoded.
type LinkedAccount struct {
	Type              string `json:"type"`
	Subject           string `json:"subject"`             // X's numeric user ID
	Username          string `json:"username"`            // X handle
	Name              string `json:"name"`                // display name
	ProfilePictureURL string `json:"profile_picture_url"` // avatar, may be empty
}

// Twitter returns the user's linked X account, or nil if there is none.
func (u *User) Twitter() *LinkedAccount {
	if u == nil {
		return nil
	}
	for i := range u.LinkedAccounts {
		if u.LinkedAccounts[i].Type == LinkedAccountTwitter {
			return &u.LinkedAccounts[i]
		}
	}
	return nil
}

// appSettings is the subset of the app settings response holding the verification key.
type appSettings struct {
	VerificationKey string `json:"verification_key"`
}

// oauthTokens is the provider's response for a user's X OAuth tokens.
type oauthTokens struct {
	AccessToken              string   `json:"access_token"`
	RefreshToken             string   `json:"refresh_token"`
	AccessTokenExpiresInSecs int64    `json:"access_token_expires_in_seconds"`
	Scopes                   []string `json:"scopes"`
}

func (t oauthTokens) expiry(now time.Time) time.Time {
	if t.AccessTokenExpiresInSecs <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(t.AccessTokenExpiresInSecs) * time.Second)
}
