package rest

import "context"

// CurrentUser calls GET {apiBase}user/user. A non-empty authorization is sent as-is and
// takes precedence over the interceptor.
func (c *Client) CurrentUser(ctx context.Context, authorization string) (*User, error) {
	var user User
	if err := c.getJSON(ctx, c.APIBaseURL()+"user/user", authorization, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUserRoles calls GET {apiBase}user/userRoles (client roles).
func (c *Client) CurrentUserRoles(ctx context.Context, authorization string) ([]Role, error) {
	var roles []Role
	if err := c.getJSON(ctx, c.APIBaseURL()+"user/userRoles", authorization, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// CurrentUserRealmRoles calls GET {apiBase}user/userRealmRoles.
func (c *Client) CurrentUserRealmRoles(ctx context.Context, authorization string) ([]Role, error) {
	var roles []Role
	if err := c.getJSON(ctx, c.APIBaseURL()+"user/userRealmRoles", authorization, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}
