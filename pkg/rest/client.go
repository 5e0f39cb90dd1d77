// Package rest is the thin REST layer the session core needs from the manager API:
// the info probe, the current user resources, model descriptors and the realm app config.
// Every request flows through an interceptor that injects the session's Authorization header.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/logger"
)

// DefaultTimeout is the fixed request timeout installed when the REST layer is initialised.
const DefaultTimeout = 10 * time.Second

// Client talks to a single manager instance for a single realm.
type Client struct {
	managerURL string
	realm      string
	http       *http.Client
	bare       *http.Client
	auth       *authTransport
	timeout    atomic.Int64
	log        *zap.Logger
}

// ClientOptions configures Client construction.
type ClientOptions struct {
	HTTPClient *http.Client
	Transport  http.RoundTripper
	Logger     *zap.Logger
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient overrides the HTTP client. Its transport is wrapped by the auth interceptor.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithTransport overrides the base round tripper (defaults to an otelhttp-instrumented
// http.DefaultTransport).
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(opts *ClientOptions) {
		opts.Transport = rt
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// NewClient creates a client for the manager at managerURL (no trailing slash) and realm.
func NewClient(managerURL, realm string, optFns ...ClientOption) *Client {
	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	base := opts.Transport
	if base == nil && opts.HTTPClient != nil {
		base = opts.HTTPClient.Transport
	}
	if base == nil {
		base = otelhttp.NewTransport(http.DefaultTransport)
	}

	auth := &authTransport{base: base}
	hc := &http.Client{Transport: auth}
	if opts.HTTPClient != nil {
		hc.CheckRedirect = opts.HTTPClient.CheckRedirect
		hc.Jar = opts.HTTPClient.Jar
	}

	return &Client{
		managerURL: strings.TrimRight(managerURL, "/"),
		realm:      realm,
		http:       hc,
		bare:       &http.Client{Transport: base},
		auth:       auth,
		log:        logger.OrNop(opts.Logger),
	}
}

// ManagerURL returns the manager base URL.
func (c *Client) ManagerURL() string {
	return c.managerURL
}

// APIBaseURL returns {managerURL}/api/{realm}/.
func (c *Client) APIBaseURL() string {
	return c.managerURL + "/api/" + c.realm + "/"
}

// HTTPClient exposes the intercepted client so collaborators (localization, descriptors)
// share the same credentials and timeout behaviour.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// SetAuthorizer installs the request interceptor's header source. Requests that already
// carry an Authorization header are left untouched.
func (c *Client) SetAuthorizer(fn func() string) {
	c.auth.setSource(fn)
}

// SetTimeout sets the per-request timeout. Zero disables it.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout.Store(int64(d))
}

// Timeout returns the configured per-request timeout.
func (c *Client) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

func (c *Client) getJSON(ctx context.Context, url, authorization string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, url, authorization)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: url}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url, authorization string) (*http.Response, error) {
	return c.send(ctx, c.http, method, url, authorization)
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, url, authorization string) (*http.Response, error) {
	ctx, cancel := c.withTimeout(ctx)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := hc.Do(req)
	if err != nil {
		cancel()
		c.log.Debug("request failed", zap.String("method", method), zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	d := c.Timeout()
	if d <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
