// Package manager orchestrates a console session against an OpenRemote manager: boot,
// authentication with fallback, the push-event channel, token refresh and reconnection.
package manager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/console"
	"github.com/EmOne/openremote/pkg/descriptors"
	"github.com/EmOne/openremote/pkg/events"
	"github.com/EmOne/openremote/pkg/i18n"
	"github.com/EmOne/openremote/pkg/identity"
	"github.com/EmOne/openremote/pkg/logger"
	"github.com/EmOne/openremote/pkg/rest"
)

const (
	RealmMaster        = "master"
	RoleSuperUser      = "admin"
	RoleRestrictedUser = "restricted_user"
)

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("manager closed")

// State is a point-in-time view of the session.
type State struct {
	Error            ErrorKind         `json:"error,omitempty" yaml:"error,omitempty"`
	Ready            bool              `json:"ready" yaml:"ready"`
	Authenticated    bool              `json:"authenticated" yaml:"authenticated"`
	Disconnected     bool              `json:"disconnected" yaml:"disconnected"`
	Username         string            `json:"username,omitempty" yaml:"username,omitempty"`
	DisplayRealm     string            `json:"displayRealm,omitempty" yaml:"displayRealm,omitempty"`
	ManagerVersion   string            `json:"managerVersion,omitempty" yaml:"managerVersion,omitempty"`
	AuthMode         identity.AuthMode `json:"authMode,omitempty" yaml:"authMode,omitempty"`
	ConnectionStatus events.Status     `json:"connectionStatus" yaml:"connectionStatus"`
}

// Manager is one console session. The zero value is not usable; call New.
type Manager struct {
	opts options
	log  *zap.Logger

	listeners  registry
	queue      chan Event
	overflowMu sync.Mutex
	overflow   []Event
	delivering atomic.Bool
	dispatched chan struct{}
	closed     chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup

	bg       context.Context
	bgCancel context.CancelFunc

	initializing atomic.Bool

	mu             sync.RWMutex
	config         *Config
	ready          bool
	authenticated  bool
	disconnected   bool
	errKind        ErrorKind
	managerVersion string
	providerURL    string
	displayRealm   string
	appConfig      *rest.ConsoleAppConfig
	fallbackUsed   bool
	readyCallback  func(context.Context) error

	rest        *rest.Client
	console     *console.Console
	strategy    identity.Strategy
	translator  *i18n.Translator
	descriptors *descriptors.Cache

	channelMu sync.Mutex
	channel   events.Channel
	unwatch   func()

	reconnect task
	refresh   task

	// newStrategy builds the strategy for a mode; replaced in tests.
	newStrategy func(mode identity.AuthMode, cfg Config) identity.Strategy
}

func New(optFns ...Option) *Manager {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.eventQueueSize <= 0 {
		opts.eventQueueSize = defaultEventQueueSize
	}

	bg, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:     opts,
		log:      logger.OrNop(opts.logger).With(zap.String("component", "manager")),
		queue:      make(chan Event, opts.eventQueueSize),
		dispatched: make(chan struct{}),
		closed:     make(chan struct{}),
		bg:         bg,
		bgCancel:   cancel,
	}
	m.newStrategy = m.buildStrategy

	go m.dispatch()
	return m
}

// Close stops background tasks, disconnects the event channel and stops event delivery.
// Listeners may call Close; a listener that is running when Close is called from elsewhere
// is not waited for.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.bgCancel()
		m.reconnect.stop()
		m.refresh.stop()
		m.closeChannel()
		close(m.closed)
		m.wg.Wait()
		if !m.delivering.Load() {
			<-m.dispatched
		}

		m.mu.RLock()
		c := m.console
		m.mu.RUnlock()
		if c != nil {
			err = c.Close()
		}
	})
	return err
}

// Config returns a copy of the frozen configuration, or the zero Config before Init.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return Config{}
	}
	return m.config.clone()
}

func (m *Manager) State() State {
	m.mu.RLock()
	s := State{
		Error:          m.errKind,
		Ready:          m.ready,
		Authenticated:  m.authenticated,
		Disconnected:   m.disconnected,
		DisplayRealm:   m.displayRealm,
		ManagerVersion: m.managerVersion,
	}
	strategy := m.strategy
	m.mu.RUnlock()

	if strategy != nil {
		s.Username = strategy.Username()
		s.AuthMode = strategy.Mode()
	}
	s.ConnectionStatus = m.ConnectionStatus()
	return s
}

func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated
}

func (m *Manager) Disconnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disconnected
}

// Error returns the last error kind, or "" when none occurred.
func (m *Manager) Error() ErrorKind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errKind
}

func (m *Manager) IsError() bool {
	return m.Error() != ""
}

func (m *Manager) ManagerVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.managerVersion
}

func (m *Manager) IsManagerAvailable() bool {
	return m.ManagerVersion() != ""
}

func (m *Manager) ManagerURL() string {
	return m.Config().ManagerURL
}

// ProviderURL is the resolved identity provider URL, empty unless the session uses Keycloak.
func (m *Manager) ProviderURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providerURL
}

// APIBaseURL is {managerURL}/api/{realm}/.
func (m *Manager) APIBaseURL() string {
	if c := m.REST(); c != nil {
		return c.APIBaseURL()
	}
	return ""
}

// IsManagerSameOrigin reports whether the manager is served from the host origin.
func (m *Manager) IsManagerSameOrigin() bool {
	if !m.Ready() {
		return false
	}
	cfg := m.Config()
	manager, err := url.Parse(cfg.ManagerURL)
	if err != nil {
		return false
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return false
	}
	return manager.Scheme == origin.Scheme && manager.Host == origin.Host
}

func (m *Manager) MapType() string {
	return m.Config().MapType
}

func (m *Manager) REST() *rest.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rest
}

func (m *Manager) Console() *console.Console {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.console
}

func (m *Manager) Translator() *i18n.Translator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.translator
}

func (m *Manager) Descriptors() *descriptors.Cache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.descriptors
}

// ConsoleAppConfig is the realm's console app config, nil when none could be loaded.
func (m *Manager) ConsoleAppConfig() *rest.ConsoleAppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.appConfig
}

// Events returns the push-event channel, nil until authentication opens it.
func (m *Manager) Events() events.Channel {
	m.channelMu.Lock()
	defer m.channelMu.Unlock()
	return m.channel
}

func (m *Manager) ConnectionStatus() events.Status {
	if ch := m.Events(); ch != nil {
		return ch.Status()
	}
	return events.StatusDisconnected
}

func (m *Manager) currentStrategy() identity.Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategy
}

func (m *Manager) AuthMode() identity.AuthMode {
	if s := m.currentStrategy(); s != nil {
		return s.Mode()
	}
	return m.Config().Auth
}

func (m *Manager) IsKeycloak() bool {
	return m.AuthMode() == identity.ModeKeycloak
}

func (m *Manager) Username() string {
	if s := m.currentStrategy(); s != nil {
		return s.Username()
	}
	return ""
}

func (m *Manager) DisplayName() string {
	if s := m.currentStrategy(); s != nil {
		return s.DisplayName()
	}
	return ""
}

// AuthorizationHeader is the value for the Authorization header, "" when unauthenticated.
func (m *Manager) AuthorizationHeader() string {
	if s := m.currentStrategy(); s != nil {
		return s.AuthorizationHeader()
	}
	return ""
}

func (m *Manager) Roles() identity.RoleMap {
	if s := m.currentStrategy(); s != nil {
		return s.Roles()
	}
	return nil
}

// HasRole checks a client role. An empty client means the configured client id.
func (m *Manager) HasRole(role, client string) bool {
	if client == "" {
		client = m.Config().ClientID
	}
	return m.Roles().Has(role, client)
}

func (m *Manager) HasRealmRole(role string) bool {
	s := m.currentStrategy()
	if s == nil {
		return false
	}
	for _, r := range s.RealmRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// IsSuperUser holds for the master realm admin.
func (m *Manager) IsSuperUser() bool {
	return m.Config().Realm == RealmMaster && m.HasRealmRole(RoleSuperUser)
}

func (m *Manager) IsRestrictedUser() bool {
	return m.HasRealmRole(RoleRestrictedUser)
}

func (m *Manager) DisplayRealm() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.displayRealm
}

// SetDisplayRealm switches the realm shown to a super user. Other users stay on their own
// realm and the call is ignored.
func (m *Manager) SetDisplayRealm(realm string) bool {
	if !m.IsSuperUser() {
		return false
	}
	m.mu.Lock()
	changed := m.displayRealm != realm
	m.displayRealm = realm
	m.mu.Unlock()
	if changed {
		m.emit(EventDisplayRealmChanged)
	}
	return true
}

// Language is the current UI language.
func (m *Manager) Language() string {
	if t := m.Translator(); t != nil {
		return t.Language()
	}
	return i18n.DefaultLanguage
}

// SetLanguage switches the language, persists it and emits TranslateLanguageChanged.
func (m *Manager) SetLanguage(ctx context.Context, lang string) error {
	t := m.Translator()
	if t == nil {
		return fmt.Errorf("set language %q: translations not loaded", lang)
	}
	changed, err := t.SetLanguage(ctx, lang)
	if err != nil {
		return fmt.Errorf("set language %q: %w", lang, err)
	}
	if c := m.Console(); c != nil {
		if err := c.StoreData(ctx, console.KeyLanguage, t.Language()); err != nil {
			m.log.Warn("failed to persist language", zap.Error(err))
		}
	}
	if changed {
		m.emit(EventTranslateLanguageChanged)
	}
	return nil
}

// Login runs an explicit login through the active strategy.
func (m *Manager) Login(ctx context.Context, opts identity.LoginOptions) (bool, error) {
	s := m.currentStrategy()
	if s == nil {
		return false, errors.New("login: session not initialised")
	}
	ok, err := s.Login(ctx, opts)
	if err != nil {
		return false, fmt.Errorf("login: %w", err)
	}
	m.setAuthenticated(s.Authenticated())
	return ok, nil
}

// Logout ends the session with the active strategy and closes the event channel.
func (m *Manager) Logout(ctx context.Context, redirectURL string) error {
	s := m.currentStrategy()
	if s == nil {
		return nil
	}
	err := s.Logout(ctx, redirectURL)
	m.setAuthenticated(false)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (m *Manager) setError(kind ErrorKind) {
	m.mu.Lock()
	m.errKind = kind
	m.mu.Unlock()
	m.log.Warn("session error", zap.String("kind", string(kind)))
	m.opts.metrics.ObserveError(string(kind))
	m.emit(EventError)
}

// setDisconnected records the connectivity flag and emits Online/Offline on change.
func (m *Manager) setDisconnected(v bool) {
	m.mu.Lock()
	changed := m.disconnected != v
	m.disconnected = v
	m.mu.Unlock()
	if !changed {
		return
	}
	m.opts.metrics.SetConnected(!v)
	if v {
		m.emit(EventOffline)
	} else {
		m.emit(EventOnline)
	}
}

// setAuthenticated records the authentication flag and drives the event channel and the
// refresh loop from it.
func (m *Manager) setAuthenticated(v bool) {
	m.mu.Lock()
	changed := m.authenticated != v
	m.authenticated = v
	m.mu.Unlock()
	m.opts.metrics.SetAuthenticated(v)

	if v && m.IsKeycloak() {
		m.startRefresh()
	}
	if !changed {
		return
	}
	m.closeChannel()
	if v {
		m.openChannel()
	}
}
