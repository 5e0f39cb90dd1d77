package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/EmOne/openremote/pkg/logger"
)

// RefreshTokenKey is the console storage key of a persisted offline refresh token.
const RefreshTokenKey = "REFRESH_TOKEN"

// TokenStore persists the offline refresh token of mobile consoles.
type TokenStore interface {
	RetrieveData(ctx context.Context, key string) (string, error)
	StoreData(ctx context.Context, key, value string) error
}

// DeviceCode is what the user needs to approve a device login.
type DeviceCode struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               time.Duration
}

// DeviceLoginPrompt shows a device code to the user. Returning an error aborts the login.
type DeviceLoginPrompt func(ctx context.Context, code DeviceCode) error

// KeycloakConfig configures the Keycloak strategy.
type KeycloakConfig struct {
	ProviderURL string
	Realm       string
	ClientID    string
	AutoLogin   bool
	// Offline requests offline_access and persists offline refresh tokens in Store.
	Offline    bool
	Store      TokenStore
	Prompt     DeviceLoginPrompt
	Navigator  Navigator
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Keycloak delegates authentication to an OpenID Connect provider.
type Keycloak struct {
	*Base
	cfg KeycloakConfig

	tokMu   sync.RWMutex
	party   rp.RelyingParty
	creds   *Credentials
	refresh singleflight.Group
}

var _ Strategy = (*Keycloak)(nil)

func NewKeycloak(cfg KeycloakConfig) *Keycloak {
	cfg.ProviderURL = strings.TrimRight(cfg.ProviderURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Keycloak{Base: NewBase(ModeKeycloak, cfg.Navigator, cfg.Logger), cfg: cfg}
}

// Issuer is the realm issuer URL: {providerURL}/realms/{realm}.
func (k *Keycloak) Issuer() string {
	return k.cfg.ProviderURL + "/realms/" + k.cfg.Realm
}

// ProviderURL returns the resolved provider base URL.
func (k *Keycloak) ProviderURL() string {
	return k.cfg.ProviderURL
}

func (k *Keycloak) scopes() []string {
	scopes := []string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail}
	if k.cfg.Offline {
		scopes = append(scopes, oidc.ScopeOfflineAccess)
	}
	return scopes
}

// Initialize discovers the realm's provider configuration.
func (k *Keycloak) Initialize(ctx context.Context) error {
	// Discover Provider Configuration
	issuer := k.Issuer()
	party, err := rp.NewRelyingPartyOIDC(
		ctx,
		issuer,
		k.cfg.ClientID,
		"", // public client
		"", // device flow has no redirect
		k.scopes(),
		rp.WithHTTPClient(k.cfg.HTTPClient),
	)
	if err != nil {
		return fmt.Errorf("%w: discovery at %s: %w", ErrProviderUnavailable, issuer, err)
	}

	k.tokMu.Lock()
	k.party = party
	k.tokMu.Unlock()
	k.log.Debug("identity provider discovered", zap.String("issuer", issuer))
	return nil
}

// Authenticate first tries the stored offline token, then, with AutoLogin, a device login.
func (k *Keycloak) Authenticate(ctx context.Context) (bool, error) {
	done, err := k.begin()
	if err != nil {
		return false, err
	}
	defer done()

	party := k.relyingParty()
	if party == nil {
		return false, ErrProviderUnavailable
	}

	if ok := k.silentCheck(ctx, party); ok {
		return true, nil
	}
	if !k.cfg.AutoLogin {
		return false, nil
	}
	return k.deviceLogin(ctx, party)
}

// Login starts a device login. The redirect URL does not apply to the device grant.
func (k *Keycloak) Login(ctx context.Context, opts LoginOptions) (bool, error) {
	done, err := k.begin()
	if err != nil {
		return false, err
	}
	defer done()

	party := k.relyingParty()
	if party == nil {
		return false, ErrProviderUnavailable
	}
	if opts.RedirectURL != "" {
		k.log.Debug("ignoring redirect for device login", zap.String("redirect", opts.RedirectURL))
	}
	return k.deviceLogin(ctx, party)
}

func (k *Keycloak) silentCheck(ctx context.Context, party rp.RelyingParty) bool {
	if !k.cfg.Offline || k.cfg.Store == nil {
		return false
	}
	stored, err := k.cfg.Store.RetrieveData(ctx, RefreshTokenKey)
	if err != nil || stored == "" {
		return false
	}

	// A stored offline token stands in for a login; a rejected one is dropped.
	creds, err := exchangeRefreshToken(ctx, party, k.cfg.HTTPClient, stored)
	if err != nil {
		k.log.Info("stored offline token rejected", zap.Error(err))
		k.forgetOfflineToken(ctx)
		return false
	}
	if err := k.apply(ctx, creds); err != nil {
		k.log.Warn("failed to apply refreshed credentials", zap.Error(err))
		return false
	}
	return true
}

func (k *Keycloak) deviceLogin(ctx context.Context, party rp.RelyingParty) (bool, error) {
	creds, err := loginWithDeviceCode(ctx, party, k.scopes(), k.cfg.Prompt, k.log)
	if err != nil {
		return false, err
	}
	if err := k.apply(ctx, creds); err != nil {
		return false, err
	}
	k.log.Info("device login succeeded", zap.String("username", logger.Mask(k.Username())))
	return true, nil
}

// apply installs new credentials and derives the principal from the access token.
func (k *Keycloak) apply(ctx context.Context, creds *Credentials) error {
	claims, err := ParseClaims(creds.AccessToken)
	if err != nil {
		return err
	}
	if !claims.IssuedAt.IsZero() {
		creds.IssuedAt = claims.IssuedAt
	}
	if !claims.ExpiresAt.IsZero() {
		creds.ExpiresAt = claims.ExpiresAt
	}

	k.tokMu.Lock()
	k.creds = creds
	k.tokMu.Unlock()

	k.set(principal{
		authenticated: true,
		username:      claims.PreferredUsername,
		displayName:   claims.Name,
		header:        "Bearer " + creds.AccessToken,
		roles:         claims.RoleMap(),
		realmRoles:    claims.RealmRoles(),
	})

	k.persistOfflineToken(ctx, creds.RefreshToken)
	return nil
}

func (k *Keycloak) persistOfflineToken(ctx context.Context, refreshToken string) {
	if !k.cfg.Offline || k.cfg.Store == nil || refreshToken == "" {
		return
	}
	claims, err := ParseClaims(refreshToken)
	if err != nil || claims.Type != TokenTypeOffline {
		return
	}
	if err := k.cfg.Store.StoreData(ctx, RefreshTokenKey, refreshToken); err != nil {
		k.log.Warn("failed to persist offline token", zap.Error(err))
	}
}

func (k *Keycloak) forgetOfflineToken(ctx context.Context) {
	if !k.cfg.Offline || k.cfg.Store == nil {
		return
	}
	if err := k.cfg.Store.StoreData(ctx, RefreshTokenKey, ""); err != nil {
		k.log.Warn("failed to clear offline token", zap.Error(err))
	}
}

func (k *Keycloak) relyingParty() rp.RelyingParty {
	k.tokMu.RLock()
	defer k.tokMu.RUnlock()
	return k.party
}

func (k *Keycloak) credentials() *Credentials {
	k.tokMu.RLock()
	defer k.tokMu.RUnlock()
	if k.creds == nil {
		return nil
	}
	c := *k.creds
	return &c
}

func (k *Keycloak) AccessToken() string {
	if c := k.credentials(); c != nil {
		return c.AccessToken
	}
	return ""
}

func (k *Keycloak) IsExpired(threshold time.Duration) bool {
	return k.credentials().ExpiresWithin(threshold)
}

func (k *Keycloak) TokenLifespan() time.Duration {
	return k.credentials().Lifespan()
}

// Refresh exchanges the refresh token when the access token expires within threshold.
// Concurrent callers share one exchange.
func (k *Keycloak) Refresh(ctx context.Context, threshold time.Duration) (bool, error) {
	if !k.IsExpired(threshold) {
		return false, nil
	}

	v, err, _ := k.refresh.Do("refresh", func() (interface{}, error) {
		// 1. Re-check under single-flight: a concurrent caller may have refreshed already
		current := k.credentials()
		if current == nil || current.RefreshToken == "" {
			return false, errors.New("no refresh token available")
		}
		if !current.ExpiresWithin(threshold) {
			return false, nil
		}
		party := k.relyingParty()
		if party == nil {
			return false, ErrProviderUnavailable
		}

		// 2. Exchange the Refresh Token
		creds, err := exchangeRefreshToken(ctx, party, k.cfg.HTTPClient, current.RefreshToken)
		if err != nil {
			return false, err
		}
		if creds.IDToken == "" {
			creds.IDToken = current.IDToken
		}

		// 3. Apply the new token set and persist the offline token
		return true, k.apply(ctx, creds)
	})
	if err != nil {
		return false, err
	}
	refreshed, _ := v.(bool)
	return refreshed, nil
}

// Logout clears local state, revokes the refresh token best-effort and navigates to the
// provider's end-session endpoint.
func (k *Keycloak) Logout(ctx context.Context, redirectURL string) error {
	creds := k.credentials()
	party := k.relyingParty()

	k.forgetOfflineToken(ctx)

	if party != nil && creds != nil && creds.RefreshToken != "" {
		if err := rp.RevokeToken(ctx, party, creds.RefreshToken, "refresh_token"); err != nil {
			k.log.Debug("token revocation failed", zap.Error(err))
		}
	}

	k.tokMu.Lock()
	k.creds = nil
	k.tokMu.Unlock()

	endSession := ""
	if party != nil {
		idToken := ""
		if creds != nil {
			idToken = creds.IDToken
		}
		endSession = endSessionURL(party.GetEndSessionEndpoint(), k.cfg.ClientID, idToken, redirectURL)
	}
	if endSession == "" {
		return k.Base.Logout(ctx, redirectURL)
	}

	k.clear()
	return k.navigator.Navigate(endSession)
}

func endSessionURL(endpoint, clientID, idToken, redirectURL string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("client_id", clientID)
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	if redirectURL != "" {
		q.Set("post_logout_redirect_uri", redirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
