package identity

import (
	"fmt"
	"strings"
)

// AuthMode selects how a session authenticates.
type AuthMode string

const (
	ModeNone     AuthMode = "NONE"
	ModeBasic    AuthMode = "BASIC"
	ModeKeycloak AuthMode = "KEYCLOAK"
)

// ParseAuthMode parses a mode name case-insensitively. "OIDC" is accepted as an alias for
// KEYCLOAK. The empty string parses to the empty mode so callers can apply their own default.
func ParseAuthMode(s string) (AuthMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "NONE":
		return ModeNone, nil
	case "BASIC":
		return ModeBasic, nil
	case "KEYCLOAK", "OIDC":
		return ModeKeycloak, nil
	default:
		return AuthMode(s), fmt.Errorf("unsupported auth mode %q", s)
	}
}

// Valid reports whether m is one of the known modes.
func (m AuthMode) Valid() bool {
	switch m {
	case ModeNone, ModeBasic, ModeKeycloak:
		return true
	}
	return false
}

func (m AuthMode) String() string {
	return string(m)
}
