package identity

import "slices"

// RoleMap maps a client id to the roles granted for it.
type RoleMap map[string][]string

// Has reports whether role is granted for client. A client without an entry holds no roles.
func (m RoleMap) Has(role, client string) bool {
	roles, ok := m[client]
	if !ok {
		return false
	}
	return slices.Contains(roles, role)
}

// Clone returns a deep copy.
func (m RoleMap) Clone() RoleMap {
	if m == nil {
		return nil
	}
	out := make(RoleMap, len(m))
	for client, roles := range m {
		out[client] = append([]string(nil), roles...)
	}
	return out
}
