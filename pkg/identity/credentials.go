package identity

import "time"

// Credentials holds the token set issued by the identity provider.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	IDToken      string    `json:"id_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (c *Credentials) IsExpired() bool {
	return c.ExpiresWithin(0)
}

// ExpiresWithin reports whether the access token expires within d from now. Credentials
// without an access token are always expired.
func (c *Credentials) ExpiresWithin(d time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(c.ExpiresAt) < d
}

// Lifespan is the validity window of the access token as issued.
func (c *Credentials) Lifespan() time.Duration {
	if c == nil || c.IssuedAt.IsZero() || c.ExpiresAt.IsZero() {
		return 0
	}
	return c.ExpiresAt.Sub(c.IssuedAt)
}
