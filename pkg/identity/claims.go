package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// Claims is the subset of access token claims the session reads.
type Claims struct {
	Subject           string               `mapstructure:"sub"`
	PreferredUsername string               `mapstructure:"preferred_username"`
	Name              string               `mapstructure:"name"`
	Email             string               `mapstructure:"email"`
	Type              string               `mapstructure:"typ"`
	RealmAccess       roleClaim            `mapstructure:"realm_access"`
	ResourceAccess    map[string]roleClaim `mapstructure:"resource_access"`
	IssuedAt          time.Time            `mapstructure:"-"`
	ExpiresAt         time.Time            `mapstructure:"-"`
}

type roleClaim struct {
	Roles []string `mapstructure:"roles"`
}

// TokenTypeOffline is the "typ" claim of refresh tokens issued with offline_access.
const TokenTypeOffline = "Offline"

// ParseClaims decodes a JWT without verifying its signature. The token was received directly
// from the provider over TLS, the session only reads it.
func ParseClaims(token string) (*Claims, error) {
	raw := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, raw); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	var claims Claims
	if err := mapstructure.Decode(map[string]interface{}(raw), &claims); err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %w", err)
	}

	if iat, err := raw.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := raw.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return &claims, nil
}

// RoleMap mirrors the resource_access claim: client id to granted roles.
func (c *Claims) RoleMap() RoleMap {
	roles := RoleMap{}
	for client, access := range c.ResourceAccess {
		roles[client] = append([]string(nil), access.Roles...)
	}
	return roles
}

// RealmRoles returns the realm_access roles.
func (c *Claims) RealmRoles() []string {
	return append([]string(nil), c.RealmAccess.Roles...)
}
