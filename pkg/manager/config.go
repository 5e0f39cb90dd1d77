package manager

import (
	"net/url"
	"strings"

	"github.com/EmOne/openremote/pkg/i18n"
	"github.com/EmOne/openremote/pkg/identity"
)

// EventProviderType selects the push-event transport.
type EventProviderType string

const (
	EventProviderWebSocket EventProviderType = "WEBSOCKET"
	EventProviderPolling   EventProviderType = "POLLING"
)

// Defaults applied by Normalize.
const (
	DefaultOrigin                = "http://localhost:8080"
	DefaultRealm                 = "master"
	DefaultClientID              = "openremote"
	DefaultMapType               = "VECTOR"
	DefaultPollingIntervalMillis = 10000
	MinPollingIntervalMillis     = 5000
)

// Config is the session configuration. It is frozen by Init; Manager.Config returns copies.
type Config struct {
	ManagerURL              string                     `mapstructure:"manager_url" yaml:"managerUrl,omitempty"`
	Origin                  string                     `mapstructure:"origin" yaml:"origin,omitempty"`
	Realm                   string                     `mapstructure:"realm" yaml:"realm,omitempty"`
	AuthServerURL           string                     `mapstructure:"auth_server_url" yaml:"authServerUrl,omitempty"`
	Auth                    identity.AuthMode          `mapstructure:"auth" yaml:"auth,omitempty"`
	ClientID                string                     `mapstructure:"client_id" yaml:"clientId,omitempty"`
	AutoLogin               bool                       `mapstructure:"auto_login" yaml:"autoLogin"`
	SkipFallbackToBasicAuth bool                       `mapstructure:"skip_fallback_to_basic_auth" yaml:"skipFallbackToBasicAuth"`
	ConsoleAutoEnable       *bool                      `mapstructure:"console_auto_enable" yaml:"consoleAutoEnable,omitempty"`
	EventProviderType       EventProviderType          `mapstructure:"event_provider_type" yaml:"eventProviderType,omitempty"`
	PollingIntervalMillis   int                        `mapstructure:"polling_interval_millis" yaml:"pollingIntervalMillis,omitempty"`
	LoadIcons               *bool                      `mapstructure:"load_icons" yaml:"loadIcons,omitempty"`
	LoadTranslations        []string                   `mapstructure:"load_translations" yaml:"loadTranslations,omitempty"`
	TranslationsLoadPath    string                     `mapstructure:"translations_load_path" yaml:"translationsLoadPath,omitempty"`
	LoadDescriptors         *bool                      `mapstructure:"load_descriptors" yaml:"loadDescriptors,omitempty"`
	MapType                 string                     `mapstructure:"map_type" yaml:"mapType,omitempty"`
	Credentials             *identity.UsernamePassword `mapstructure:"credentials" yaml:"-"`

	BasicLoginProvider    identity.BasicLoginProvider `mapstructure:"-" yaml:"-"`
	DeviceLoginPrompt     identity.DeviceLoginPrompt  `mapstructure:"-" yaml:"-"`
	ConfigureTranslations func(*i18n.Options)         `mapstructure:"-" yaml:"-"`
}

// Normalize fills in defaults. It never fails and Normalize(Normalize(c)) == Normalize(c).
func Normalize(c Config) Config {
	out := c

	out.Origin = strings.TrimRight(out.Origin, "/")
	if out.Origin == "" {
		out.Origin = DefaultOrigin
	}
	out.ManagerURL = strings.TrimRight(out.ManagerURL, "/")
	if out.ManagerURL == "" {
		out.ManagerURL = out.Origin
	}
	out.AuthServerURL = strings.TrimRight(out.AuthServerURL, "/")

	if out.Realm == "" {
		out.Realm = DefaultRealm
	}
	if mode, err := identity.ParseAuthMode(string(out.Auth)); err == nil {
		out.Auth = mode
	}
	if out.Auth == "" {
		out.Auth = identity.ModeKeycloak
	}
	if out.ClientID == "" {
		out.ClientID = DefaultClientID
	}
	if out.EventProviderType == "" {
		out.EventProviderType = EventProviderWebSocket
	}
	if out.PollingIntervalMillis < MinPollingIntervalMillis {
		out.PollingIntervalMillis = DefaultPollingIntervalMillis
	}

	out.ConsoleAutoEnable = boolOr(out.ConsoleAutoEnable, true)
	out.LoadIcons = boolOr(out.LoadIcons, true)
	out.LoadDescriptors = boolOr(out.LoadDescriptors, true)

	if out.LoadTranslations == nil {
		out.LoadTranslations = []string{i18n.FallbackNamespace}
	} else {
		out.LoadTranslations = append([]string{}, out.LoadTranslations...)
	}
	if out.TranslationsLoadPath == "" {
		out.TranslationsLoadPath = i18n.DefaultLoadPath
	}
	if out.MapType == "" {
		out.MapType = DefaultMapType
	}
	if out.Credentials != nil {
		creds := *out.Credentials
		out.Credentials = &creds
	}
	return out
}

func boolOr(v *bool, def bool) *bool {
	if v != nil {
		b := *v
		return &b
	}
	return &def
}

// clone deep-copies the pointer and slice fields.
func (c Config) clone() Config {
	out := c
	if c.ConsoleAutoEnable != nil {
		out.ConsoleAutoEnable = boolOr(c.ConsoleAutoEnable, false)
	}
	if c.LoadIcons != nil {
		out.LoadIcons = boolOr(c.LoadIcons, false)
	}
	if c.LoadDescriptors != nil {
		out.LoadDescriptors = boolOr(c.LoadDescriptors, false)
	}
	if c.LoadTranslations != nil {
		out.LoadTranslations = append([]string{}, c.LoadTranslations...)
	}
	if c.Credentials != nil {
		creds := *c.Credentials
		out.Credentials = &creds
	}
	return out
}

// ResolveProviderURL decides the identity provider base URL. An explicitly configured URL
// wins. Otherwise the hint from the info endpoint is used, which may be absolute,
// scheme-relative ("//host/auth") or a path on the manager ("/auth"). Without either the
// provider is assumed at {managerURL}/auth. Trailing slashes are stripped.
func ResolveProviderURL(managerURL, configured, hint string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}

	resolved := ""
	if hint != "" {
		resolved = resolveHint(managerURL, hint)
	}
	if resolved == "" {
		resolved = strings.TrimRight(managerURL, "/") + "/auth"
	}
	return strings.TrimRight(resolved, "/")
}

func resolveHint(managerURL, hint string) string {
	manager, err := url.Parse(managerURL)
	if err != nil {
		return ""
	}
	if strings.HasPrefix(hint, "//") {
		hint = manager.Scheme + ":" + hint
	}

	if u, err := url.Parse(hint); err == nil && u.IsAbs() && u.Host != "" {
		return u.String()
	}

	rel := url.URL{
		Scheme: manager.Scheme,
		Host:   manager.Host,
		Path:   "/" + strings.TrimLeft(hint, "/"),
	}
	return rel.String()
}
