package rest

import "encoding/json"

// User is the manager's representation of the authenticated principal.
type User struct {
	ID             string `json:"id"`
	Realm          string `json:"realm"`
	RealmID        string `json:"realmId"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Enabled        bool   `json:"enabled"`
	ServiceAccount bool   `json:"serviceAccount"`
	CreatedOn      int64  `json:"createdOn"`
}

// Role is a role granted to the authenticated principal.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Composite   bool   `json:"composite"`
	Assigned    *bool  `json:"assigned,omitempty"`
}

// RoleNames returns the names of roles in order.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if r.Name != "" {
			names = append(names, r.Name)
		}
	}
	return names
}

// ConsoleAppConfig is the per-realm UI configuration document. Fields the session core does
// not interpret are kept in Raw.
type ConsoleAppConfig struct {
	Realm             string          `json:"realm"`
	InitialRoute      string          `json:"initialRoute"`
	MenuEnabled       bool            `json:"menuEnabled"`
	MenuPosition      string          `json:"menuPosition"`
	MenuImage         string          `json:"menuImage"`
	PrimaryColor      string          `json:"primaryColor"`
	SecondaryColor    string          `json:"secondaryColor"`
	ShowAppTextInMenu bool            `json:"showAppTextInMenu"`
	Links             json.RawMessage `json:"links,omitempty"`
	Raw               json.RawMessage `json:"-"`
}
