package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/logger"
)

const (
	defaultReconnectDelay = 5 * time.Second
	writeWait             = 10 * time.Second
	pingInterval          = 20 * time.Second
	pongWait              = 45 * time.Second
	handshakeTimeout      = 15 * time.Second
	maxMessageSize        = 1 << 20
	sendQueueSize         = 256
	eventQueueSize        = 256
)

// WebSocketOptions configures a WebSocketChannel.
type WebSocketOptions struct {
	// Authorization returns the header value presented on every dial.
	Authorization  func() string
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Logger         *zap.Logger
}

// WebSocketChannel is a Channel over the manager's websocket event endpoint.
type WebSocketChannel struct {
	url  string
	opts WebSocketOptions
	log  *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	listeners map[uint64]func(Status)
	nextID    uint64
	subs      map[string]subscription

	status    atomic.Int32
	connected atomic.Bool
	send      chan []byte
	events    chan Event
}

var _ Channel = (*WebSocketChannel)(nil)

// EventsURL derives ws(s)://{manager}/websocket/events?Realm={realm} from the manager URL.
func EventsURL(managerURL, realm string) (string, error) {
	u, err := url.Parse(strings.TrimRight(managerURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid manager url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported manager url scheme %q", u.Scheme)
	}
	u.Path += "/websocket/events"
	u.RawQuery = url.Values{"Realm": []string{realm}}.Encode()
	return u.String(), nil
}

func NewWebSocketChannel(eventsURL string, opts WebSocketOptions) *WebSocketChannel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	return &WebSocketChannel{
		url:       eventsURL,
		opts:      opts,
		log:       logger.OrNop(opts.Logger).With(zap.String("component", "events")),
		listeners: map[uint64]func(Status){},
		subs:      map[string]subscription{},
		send:      make(chan []byte, sendQueueSize),
		events:    make(chan Event, eventQueueSize),
	}
}

func (c *WebSocketChannel) Status() Status {
	return Status(c.status.Load())
}

func (c *WebSocketChannel) Events() <-chan Event {
	return c.events
}

func (c *WebSocketChannel) SubscribeStatusChange(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Connect starts the connection loop if it is not running and waits for the outcome of
// the first attempt. A running channel reports whether it is currently connected.
func (c *WebSocketChannel) Connect(ctx context.Context) bool {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return c.Status() == StatusConnected
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	first := make(chan bool, 1)
	go c.run(loopCtx, c.done, first)
	c.mu.Unlock()

	select {
	case ok := <-first:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Disconnect stops the loop and closes the live connection.
func (c *WebSocketChannel) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.setStatus(StatusDisconnected)
}

func (c *WebSocketChannel) Send(ctx context.Context, event any) error {
	frame, err := encodeFrame(prefixEvent, event)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, frame)
}

// Subscribe registers interest in eventType. Subscriptions are replayed after reconnects.
func (c *WebSocketChannel) Subscribe(ctx context.Context, eventType string, filter any) (string, error) {
	sub := subscription{SubscriptionID: uuid.NewString(), EventType: eventType, Filter: filter}
	frame, err := encodeFrame(prefixSubscribe, sub)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.subs[sub.SubscriptionID] = sub
	c.mu.Unlock()

	if err := c.enqueue(ctx, frame); err != nil && !errors.Is(err, ErrNotConnected) {
		return "", err
	}
	return sub.SubscriptionID, nil
}

func (c *WebSocketChannel) Unsubscribe(ctx context.Context, subscriptionID string) error {
	c.mu.Lock()
	delete(c.subs, subscriptionID)
	c.mu.Unlock()

	frame, err := encodeFrame(prefixUnsubscribe, subscription{SubscriptionID: subscriptionID})
	if err != nil {
		return err
	}
	if err := c.enqueue(ctx, frame); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

func (c *WebSocketChannel) enqueue(ctx context.Context, frame []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	select {
	case c.send <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *WebSocketChannel) setStatus(s Status) {
	if Status(c.status.Swap(int32(s))) == s {
		return
	}
	c.mu.Lock()
	fns := make([]func(Status), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (c *WebSocketChannel) run(ctx context.Context, done chan struct{}, first chan<- bool) {
	defer close(done)

	reported := false
	report := func(ok bool) {
		if !reported {
			reported = true
			first <- ok
		}
	}
	defer report(false)

	for {
		if ctx.Err() != nil {
			return
		}

		c.setStatus(StatusConnecting)
		ws, err := c.dial(ctx)
		if err != nil {
			c.log.Warn("event channel connect failed", zap.Error(err), zap.Duration("retry_in", c.opts.ReconnectDelay))
			c.setStatus(StatusDisconnected)
			report(false)
		} else {
			c.log.Info("event channel connected")
			c.connected.Store(true)
			c.setStatus(StatusConnected)
			report(true)

			c.serve(ctx, ws)

			c.connected.Store(false)
			c.clearSendQueue()
			c.setStatus(StatusDisconnected)
			c.log.Info("event channel disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

func (c *WebSocketChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.Authorization != nil {
		if auth := c.opts.Authorization(); auth != "" {
			header.Set("Authorization", auth)
		}
	}
	ws, resp, err := c.opts.Dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return ws, nil
}

// serve runs the pumps for one connection and returns when it ends.
func (c *WebSocketChannel) serve(ctx context.Context, ws *websocket.Conn) {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		c.readPump(ws)
	}()

	c.writePump(ctx, ws, readDone)
	_ = ws.Close()
	<-readDone
}

func (c *WebSocketChannel) readPump(ws *websocket.Conn) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected close from manager", zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		c.handleMessage(message)
	}
}

func (c *WebSocketChannel) handleMessage(message []byte) {
	prefix, payload := splitFrame(message)
	switch prefix {
	case prefixEvent:
		event, err := decodeEvent(payload)
		if err != nil {
			c.log.Warn("dropping malformed event", zap.Error(err))
			return
		}
		select {
		case c.events <- event:
		default:
			c.log.Warn("event queue full, dropping event", zap.String("event_type", event.EventType))
		}
	case prefixSubscribed:
		c.log.Debug("subscription confirmed", zap.ByteString("payload", payload))
	case prefixUnauthorized:
		c.log.Warn("subscription unauthorized", zap.ByteString("payload", payload))
	default:
		c.log.Debug("ignoring frame", zap.String("prefix", prefix))
	}
}

func (c *WebSocketChannel) writePump(ctx context.Context, ws *websocket.Conn, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for _, frame := range c.subscriptionFrames() {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.log.Warn("failed to replay subscription", zap.Error(err))
			return
		}
	}

	for {
		select {
		case frame := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn("failed to write frame", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Warn("failed to write ping", zap.Error(err))
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *WebSocketChannel) subscriptionFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([][]byte, 0, len(c.subs))
	for _, sub := range c.subs {
		frame, err := encodeFrame(prefixSubscribe, sub)
		if err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	return frames
}

func (c *WebSocketChannel) clearSendQueue() {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
