package identity

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/logger"
	"github.com/EmOne/openremote/pkg/rest"
)

// BasicLoginResult is the answer of a BasicLoginProvider.
type BasicLoginResult struct {
	Username string
	Password string
	Cancel   bool
}

// BasicLoginProvider prompts for credentials. username and password carry the previous
// attempt (or the preset credentials) so the prompt can be pre-filled.
type BasicLoginProvider func(ctx context.Context, username, password string) (BasicLoginResult, error)

// UserResource verifies credentials and loads the principal's roles.
type UserResource interface {
	CurrentUser(ctx context.Context, authorization string) (*rest.User, error)
	CurrentUserRoles(ctx context.Context, authorization string) ([]rest.Role, error)
	CurrentUserRealmRoles(ctx context.Context, authorization string) ([]rest.Role, error)
}

// BasicConfig configures the Basic strategy.
type BasicConfig struct {
	ClientID      string
	LoginProvider BasicLoginProvider
	Credentials   *UsernamePassword
	Users         UserResource
	Navigator     Navigator
	Logger        *zap.Logger
}

// Basic authenticates with a username and password checked against the manager.
type Basic struct {
	*Base
	cfg BasicConfig
}

var _ Strategy = (*Basic)(nil)

func NewBasic(cfg BasicConfig) *Basic {
	return &Basic{Base: NewBase(ModeBasic, cfg.Navigator, cfg.Logger), cfg: cfg}
}

func (b *Basic) Initialize(context.Context) error {
	if b.cfg.LoginProvider == nil {
		return ErrNoLoginProvider
	}
	return nil
}

// Authenticate runs the login loop seeded with the configured credentials.
func (b *Basic) Authenticate(ctx context.Context) (bool, error) {
	return b.run(ctx, b.cfg.Credentials)
}

// Login runs the login loop seeded with opts.Credentials, or the configured ones.
func (b *Basic) Login(ctx context.Context, opts LoginOptions) (bool, error) {
	preset := opts.Credentials
	if preset == nil {
		preset = b.cfg.Credentials
	}
	return b.run(ctx, preset)
}

func (b *Basic) run(ctx context.Context, preset *UsernamePassword) (bool, error) {
	if b.cfg.LoginProvider == nil {
		return false, ErrNoLoginProvider
	}
	done, err := b.begin()
	if err != nil {
		return false, err
	}
	defer done()

	var username, password string
	if preset != nil {
		username, password = preset.Username, preset.Password
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		result, err := b.cfg.LoginProvider(ctx, username, password)
		if err != nil {
			b.log.Warn("basic login prompt failed", zap.Error(err))
			b.clear()
			return false, nil
		}
		if result.Cancel {
			b.log.Info("basic login cancelled")
			b.clear()
			return false, nil
		}
		username, password = result.Username, result.Password
		if username == "" || password == "" {
			continue
		}

		header := "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
		user, err := b.cfg.Users.CurrentUser(ctx, header)
		if err != nil {
			if rest.IsUnauthorized(err) {
				b.log.Info("basic login rejected, retrying", zap.String("username", logger.Mask(username)))
				password = ""
				continue
			}
			b.log.Warn("basic login aborted", zap.Error(err))
			b.clear()
			return false, nil
		}

		b.set(b.loadPrincipal(ctx, user, username, header))
		b.log.Info("basic login succeeded", zap.String("username", logger.Mask(username)))
		return true, nil
	}
}

func (b *Basic) loadPrincipal(ctx context.Context, user *rest.User, username, header string) principal {
	p := principal{
		authenticated: true,
		username:      username,
		displayName:   displayName(user),
		header:        header,
		roles:         RoleMap{},
	}

	if roles, err := b.cfg.Users.CurrentUserRoles(ctx, header); err != nil {
		b.log.Warn("failed to load user roles", zap.Error(err))
	} else {
		p.roles[b.cfg.ClientID] = rest.RoleNames(roles)
	}

	if realmRoles, err := b.cfg.Users.CurrentUserRealmRoles(ctx, header); err != nil {
		b.log.Debug("failed to load realm roles", zap.Error(err))
	} else {
		p.realmRoles = rest.RoleNames(realmRoles)
	}
	return p
}

func displayName(user *rest.User) string {
	if user == nil {
		return ""
	}
	switch {
	case user.FirstName != "" && user.LastName != "":
		return fmt.Sprintf("%s %s", user.FirstName, user.LastName)
	case user.FirstName != "":
		return user.FirstName
	}
	return user.Username
}
