package manager

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/console"
	"github.com/EmOne/openremote/pkg/events"
	"github.com/EmOne/openremote/pkg/identity"
)

const (
	defaultRefreshInterval = 10 * time.Second
	defaultEventQueueSize  = 256
)

// Metrics receives session instrumentation. *telemetry.SessionMetrics implements it.
type Metrics interface {
	ObserveEvent(event string)
	ObserveError(kind string)
	ObserveReconnect(success bool)
	ObserveRefresh(outcome string)
	SetAuthenticated(bool)
	SetConnected(bool)
	SetReady(bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveEvent(string)   {}
func (nopMetrics) ObserveError(string)   {}
func (nopMetrics) ObserveReconnect(bool) {}
func (nopMetrics) ObserveRefresh(string) {}
func (nopMetrics) SetAuthenticated(bool) {}
func (nopMetrics) SetConnected(bool)     {}
func (nopMetrics) SetReady(bool)         {}

// ChannelFactory builds the push-event channel for a session.
type ChannelFactory func(managerURL, realm string, authorization func() string, l *zap.Logger) (events.Channel, error)

// WebSocketChannelFactory connects to the manager's websocket event endpoint.
func WebSocketChannelFactory(managerURL, realm string, authorization func() string, l *zap.Logger) (events.Channel, error) {
	u, err := events.EventsURL(managerURL, realm)
	if err != nil {
		return nil, err
	}
	return events.NewWebSocketChannel(u, events.WebSocketOptions{Authorization: authorization, Logger: l}), nil
}

type options struct {
	logger            *zap.Logger
	transport         http.RoundTripper
	platform          string
	consoleVersion    string
	storage           console.Storage
	navigator         identity.Navigator
	channelFactory    ChannelFactory
	metrics           Metrics
	refreshInterval   time.Duration
	reconnectInterval time.Duration // overrides the configured polling interval when set
	eventQueueSize    int
}

// Option configures a Manager.
type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransport sets the HTTP transport shared by the REST client, the identity provider
// client and the translation loader.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithPlatform names the console platform, e.g. console.PlatformAndroid.
func WithPlatform(platform, version string) Option {
	return func(o *options) {
		o.platform = platform
		o.consoleVersion = version
	}
}

// WithStorage sets the console key/value storage. Defaults to in-memory.
func WithStorage(s console.Storage) Option {
	return func(o *options) { o.storage = s }
}

func WithNavigator(n identity.Navigator) Option {
	return func(o *options) { o.navigator = n }
}

func WithChannelFactory(f ChannelFactory) Option {
	return func(o *options) { o.channelFactory = f }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRefreshInterval sets how often the token refresh loop runs.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) { o.refreshInterval = d }
}

func WithEventQueueSize(n int) Option {
	return func(o *options) { o.eventQueueSize = n }
}

func defaultOptions() options {
	return options{
		platform:        console.PlatformCLI,
		navigator:       identity.NopNavigator{},
		channelFactory:  WebSocketChannelFactory,
		metrics:         nopMetrics{},
		refreshInterval: defaultRefreshInterval,
		eventQueueSize:  defaultEventQueueSize,
	}
}
