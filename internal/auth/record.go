package auth

import (
	"time"
)

// TokenRecord is the persisted OAuth2 credential set for one user.
//
// ExpiresAt is an absolute Unix timestamp in milliseconds, derived from
// ExpiresIn at save time when the identity provider did not supply one.
type TokenRecord struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IDToken      string `json:"idToken,omitempty"`
	Scope        string `json:"scope"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}

// ExpiryTime returns the absolute expiry of the access token.
// The zero time is returned when no expiry has been recorded yet.
func (r *TokenRecord) ExpiryTime() time.Time {
	if r.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.ExpiresAt)
}

// ExpiresWithin reports whether the token expires before now+window.
// Records without a recorded expiry are treated as already expiring so that
// resolution attempts a refresh rather than handing out a token of unknown
// validity.
func (r *TokenRecord) ExpiresWithin(now time.Time, window time.Duration) bool {
	if r.ExpiresAt == 0 {
		return true
	}
	return r.ExpiryTime().Before(now.Add(window))
}
