// Package identity provides the interchangeable authentication strategies of a console
// session: None, Basic (username/password verified against the manager) and Keycloak
// (delegated OpenID Connect provider).
package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/logger"
)

var (
	// ErrProviderUnavailable is returned when the identity provider cannot be reached or
	// its configuration cannot be discovered.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrNoLoginProvider is returned by Basic when no credential prompt is configured.
	ErrNoLoginProvider = errors.New("no basic login provider configured")
	// ErrLoginInProgress is returned when a second authentication is started while one runs.
	ErrLoginInProgress = errors.New("login already in progress")
)

// Strategy is a pluggable authentication strategy.
type Strategy interface {
	Mode() AuthMode
	Initialize(ctx context.Context) error
	Authenticate(ctx context.Context) (bool, error)
	Login(ctx context.Context, opts LoginOptions) (bool, error)
	Logout(ctx context.Context, redirectURL string) error

	Authenticated() bool
	AccessToken() string
	AuthorizationHeader() string
	Roles() RoleMap
	RealmRoles() []string
	Username() string
	DisplayName() string

	IsExpired(threshold time.Duration) bool
	Refresh(ctx context.Context, threshold time.Duration) (bool, error)
	TokenLifespan() time.Duration
}

// LoginOptions parameterises an explicit login.
type LoginOptions struct {
	RedirectURL string
	Credentials *UsernamePassword
}

// UsernamePassword is a preset credential pair.
type UsernamePassword struct {
	Username string `mapstructure:"username" json:"username" yaml:"username"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
}

// Navigator performs the host application's navigation side effects.
type Navigator interface {
	Navigate(url string) error
	Reload() error
}

// NopNavigator ignores navigation requests.
type NopNavigator struct{}

func (NopNavigator) Navigate(string) error { return nil }
func (NopNavigator) Reload() error         { return nil }

type principal struct {
	authenticated bool
	username      string
	displayName   string
	header        string
	roles         RoleMap
	realmRoles    []string
}

// Base supplies the unauthenticated defaults shared by every strategy and tracks the
// authenticated principal.
type Base struct {
	mode      AuthMode
	navigator Navigator
	log       *zap.Logger

	mu       sync.RWMutex
	current  principal
	inflight atomic.Bool
}

// NewBase creates a Base for mode. A nil navigator or logger is replaced by a no-op.
func NewBase(mode AuthMode, nav Navigator, l *zap.Logger) *Base {
	if nav == nil {
		nav = NopNavigator{}
	}
	return &Base{mode: mode, navigator: nav, log: logger.OrNop(l).With(zap.String("auth", string(mode)))}
}

func (b *Base) Mode() AuthMode {
	return b.mode
}

func (b *Base) Initialize(context.Context) error {
	return nil
}

func (b *Base) Authenticate(context.Context) (bool, error) {
	return false, nil
}

func (b *Base) Login(context.Context, LoginOptions) (bool, error) {
	return false, nil
}

// Logout forgets the principal and asks the navigator to leave the page.
func (b *Base) Logout(_ context.Context, redirectURL string) error {
	b.clear()
	if redirectURL != "" {
		return b.navigator.Navigate(redirectURL)
	}
	return b.navigator.Reload()
}

func (b *Base) Authenticated() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current.authenticated
}

func (b *Base) AccessToken() string {
	return ""
}

func (b *Base) AuthorizationHeader() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current.header
}

func (b *Base) Roles() RoleMap {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current.roles.Clone()
}

func (b *Base) RealmRoles() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.current.realmRoles...)
}

func (b *Base) Username() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current.username
}

func (b *Base) DisplayName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current.displayName != "" {
		return b.current.displayName
	}
	return b.current.username
}

func (b *Base) IsExpired(time.Duration) bool {
	return false
}

func (b *Base) Refresh(context.Context, time.Duration) (bool, error) {
	return false, nil
}

func (b *Base) TokenLifespan() time.Duration {
	return 0
}

func (b *Base) set(p principal) {
	b.mu.Lock()
	b.current = p
	b.mu.Unlock()
}

func (b *Base) clear() {
	b.set(principal{})
}

// begin marks an authentication as in flight. The returned func must be called when done.
func (b *Base) begin() (func(), error) {
	if !b.inflight.CompareAndSwap(false, true) {
		return nil, ErrLoginInProgress
	}
	return func() { b.inflight.Store(false) }, nil
}
