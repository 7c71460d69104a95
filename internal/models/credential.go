package models

import "time"

// Credential stores the OAuth tuple for one (user, provider) pair.
// AccessToken is always present when the record exists; a missing record
// means "never connected" or "disconnected".
type Credential struct {
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	ExpiresAt      int64     `json:"expires_at,omitempty"` // epoch seconds, 0 = never expires
	Scope          string    `json:"scope,omitempty"`
	ProviderUserID string    `json:"provider_user_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ExpiresWithin reports whether the access token is expired or expires inside
// the given safety margin. Credentials without an expiry never expire.
func (c *Credential) ExpiresWithin(margin time.Duration) bool {
	if c.ExpiresAt == 0 {
		return false
	}
	return time.Now().Add(margin).Unix() >= c.ExpiresAt
}
