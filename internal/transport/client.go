package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/sensorlink/internal/dns"
	"github.com/BioHazard786/sensorlink/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Disconnect reasons reported by the client itself.
const (
	ReasonClientDisconnect = "client disconnect"
	ReasonConnectionClosed = "connection closed"
)

// Compile-time interface check.
var _ Transport = (*Client)(nil)

// Client manages the websocket connection to the broker.
type Client struct {
	serverURL string
	token     string
	codec     protocol.Codec
	logger    *slog.Logger

	outgoing  chan *protocol.Frame
	done      chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	conn         *websocket.Conn
	dialed       bool
	connected    bool
	clientID     string
	reason       string
	connectSent  time.Time
	subs         map[string]*subscription
	onConnect    func(ConnectEvent)
	onDisconnect func(DisconnectEvent)
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the opaque credential sent in the connect frame.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithCodec selects the frame encoding.
func WithCodec(codec protocol.Codec) Option {
	return func(c *Client) { c.codec = codec }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new broker client. A client connects at most once.
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: serverURL,
		codec:     protocol.JSON,
		logger:    slog.Default(),
		outgoing:  make(chan *protocol.Frame, 64),
		done:      make(chan struct{}),
		subs:      make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "transport")
	return c
}

func (c *Client) OnConnect(fn func(ConnectEvent)) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

func (c *Client) OnDisconnect(fn func(DisconnectEvent)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// Connect establishes the websocket connection and sends the connect frame.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.done:
		return NewError("connect", ErrClosed)
	default:
	}

	c.mu.Lock()
	if c.dialed {
		c.mu.Unlock()
		return NewError("connect", ErrAlreadyConnected)
	}
	c.mu.Unlock()

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return WrapError("connect", err, "invalid server URL")
	}
	if c.codec.Name() != protocol.FormatJSON {
		q := u.Query()
		q.Set("format", c.codec.Name())
		u.RawQuery = q.Encode()
	}

	// Dial through our DNS lookup with public resolver fallback
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ip, err := dns.Lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}

		var d net.Dialer
		return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return NewError("connect", err)
	}
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.dialed = true
	c.connectSent = time.Now()
	c.mu.Unlock()

	c.outgoing <- &protocol.Frame{Type: protocol.TypeConnect, Token: c.token}

	go c.readPump(conn)
	go c.writePump(conn)

	return nil
}

// Disconnect closes the connection. The disconnect event follows once the
// read side has shut down.
func (c *Client) Disconnect() {
	c.close(ReasonClientDisconnect)
}

func (c *Client) close(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.reason == "" {
			c.reason = reason
		}
		c.mu.Unlock()
		close(c.done)
	})
}

// Subscribe joins channel. The broker's answer arrives through h.
func (c *Client) Subscribe(channel string, h SubscriptionHandlers) (Subscription, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, NewChannelError("subscribe", channel, ErrNotConnected)
	}
	if _, ok := c.subs[channel]; ok {
		c.mu.Unlock()
		return nil, NewChannelError("subscribe", channel, ErrAlreadySubscribed)
	}
	sub := &subscription{client: c, channel: channel, handlers: h}
	c.subs[channel] = sub
	c.mu.Unlock()

	if err := c.send(&protocol.Frame{Type: protocol.TypeSubscribe, Channel: channel}); err != nil {
		c.mu.Lock()
		delete(c.subs, channel)
		c.mu.Unlock()
		return nil, NewChannelError("subscribe", channel, err)
	}
	return sub, nil
}

// ClientID returns the broker-assigned id, empty until connected.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

func (c *Client) send(frame *protocol.Frame) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// readPump reads frames and dispatches events. Every callback runs here.
func (c *Client) readPump(conn *websocket.Conn) {
	defer c.finish()

	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		frame, err := protocol.ReadFrame(conn, c.codec)
		if errors.Is(err, protocol.ErrMalformedFrame) {
			c.logger.Debug("dropping malformed frame", "err", err)
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", "err", err)
			}
			c.close(ReasonConnectionClosed)
			return
		}

		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame *protocol.Frame) {
	switch frame.Type {

	case protocol.TypeConnected:
		c.mu.Lock()
		c.connected = true
		c.clientID = frame.ClientID
		latency := time.Since(c.connectSent)
		fn := c.onConnect
		c.mu.Unlock()

		if fn != nil {
			fn(ConnectEvent{ClientID: frame.ClientID, Latency: latency, Transport: frame.Transport})
		}

	case protocol.TypeSubscribed:
		if sub := c.lookup(frame.Channel); sub != nil && sub.handlers.OnSubscribe != nil {
			sub.handlers.OnSubscribe(SubscribeEvent{Channel: frame.Channel})
		}

	case protocol.TypeUnsubscribed:
		if sub := c.detach(frame.Channel); sub != nil && sub.handlers.OnUnsubscribe != nil {
			sub.handlers.OnUnsubscribe(UnsubscribeEvent{Channel: frame.Channel, Reason: "unsubscribed"})
		}

	case protocol.TypePublication:
		sub := c.lookup(frame.Channel)
		if sub == nil || sub.handlers.OnPublish == nil {
			return
		}
		pub := Publication{Channel: frame.Channel, Data: frame.Data}
		if frame.Info != nil {
			pub.Info.ClientID = frame.Info.ClientID
		}
		sub.handlers.OnPublish(pub)

	case protocol.TypeError:
		err := WrapError("broker", ErrBrokerError, frame.Error)
		if frame.Channel == "" {
			c.logger.Warn("broker error", "err", err)
			return
		}
		if sub := c.detach(frame.Channel); sub != nil && sub.handlers.OnError != nil {
			sub.handlers.OnError(ErrorEvent{Channel: frame.Channel, Err: err})
		}

	case protocol.TypeDisconnect:
		c.logger.Info("broker closed connection", "reason", frame.Reason)
		c.close(frame.Reason)

	default:
		c.logger.Debug("unknown frame type", "type", frame.Type)
	}
}

// finish emits the disconnect event, then unsubscribe events for every
// subscription that was still active.
func (c *Client) finish() {
	c.mu.Lock()
	c.connected = false
	reason := c.reason
	subs := c.subs
	c.subs = make(map[string]*subscription)
	fn := c.onDisconnect
	c.mu.Unlock()

	if fn != nil {
		fn(DisconnectEvent{Reason: reason})
	}
	for _, sub := range subs {
		if sub.handlers.OnUnsubscribe != nil {
			sub.handlers.OnUnsubscribe(UnsubscribeEvent{Channel: sub.channel, Reason: reason})
		}
	}
}

// writePump writes frames to the websocket connection and sends periodic pings.
func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := protocol.WriteFrame(conn, c.codec, frame); err != nil {
				c.close(ReasonConnectionClosed)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(ReasonConnectionClosed)
				return
			}

		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) lookup(channel string) *subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[channel]
}

func (c *Client) detach(channel string) *subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.subs[channel]
	delete(c.subs, channel)
	return sub
}

type subscription struct {
	client   *Client
	channel  string
	handlers SubscriptionHandlers
}

func (s *subscription) Channel() string {
	return s.channel
}

func (s *subscription) Publish(v any) error {
	if s.client.lookup(s.channel) != s {
		return NewChannelError("publish", s.channel, ErrUnsubscribed)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return NewChannelError("publish", s.channel, err)
	}

	if err := s.client.send(&protocol.Frame{Type: protocol.TypePublish, Channel: s.channel, Data: data}); err != nil {
		return NewChannelError("publish", s.channel, err)
	}
	return nil
}

func (s *subscription) Unsubscribe() error {
	if s.client.lookup(s.channel) != s {
		return NewChannelError("unsubscribe", s.channel, ErrUnsubscribed)
	}
	if err := s.client.send(&protocol.Frame{Type: protocol.TypeUnsubscribe, Channel: s.channel}); err != nil {
		return NewChannelError("unsubscribe", s.channel, err)
	}
	return nil
}
