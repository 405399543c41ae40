package broker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/sensorlink/internal/protocol"
)

// Default publish limits per client. Orientation samples are not throttled
// by senders, so the burst leaves room for fast device sampling rates.
const (
	DefaultPublishRate  = 100
	DefaultPublishBurst = 200
)

// Hub is the central brain of the broker.
// It manages all clients and channels from a single goroutine.
type Hub struct {
	// Channels maps channel names to their members.
	Channels map[string]*Channel

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Broadcast carries every frame read from a client.
	Broadcast chan *Message

	clients map[*Client]struct{}
	stats   chan chan Stats
	done    chan struct{}

	token        string
	publishRate  rate.Limit
	publishBurst int
	logger       *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithToken requires clients to present token in their connect frame.
func WithToken(token string) Option {
	return func(h *Hub) { h.token = token }
}

// WithPublishLimit sets the per-client publish rate (frames per second) and burst.
func WithPublishLimit(perSecond float64, burst int) Option {
	return func(h *Hub) {
		h.publishRate = rate.Limit(perSecond)
		h.publishBurst = burst
	}
}

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// NewHub creates a new Hub instance.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		Channels:     make(map[string]*Channel),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		Broadcast:    make(chan *Message),
		clients:      make(map[*Client]struct{}),
		stats:        make(chan chan Stats),
		done:         make(chan struct{}),
		publishRate:  DefaultPublishRate,
		publishBurst: DefaultPublishBurst,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "broker")
	return h
}

// NewClient wraps conn in a Client owned by this hub. The caller registers
// it and starts its pumps.
func (h *Hub) NewClient(conn *websocket.Conn, codec protocol.Codec) *Client {
	return &Client{
		Hub:      h,
		Conn:     conn,
		Codec:    codec,
		ID:       uuid.NewString(),
		Send:     make(chan *protocol.Frame, sendBufferSize),
		channels: make(map[string]struct{}),
		limiter:  rate.NewLimiter(h.publishRate, h.publishBurst),
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Stats asks the hub goroutine for its current counts.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-h.done:
		return Stats{}, context.Canceled
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	return <-reply, nil
}

// Run starts the hub's main processing loop.
// This is the single goroutine that safely manages all state (channels, clients).
// It returns when ctx is cancelled, after telling every client the broker is
// shutting down.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.disconnect(client, protocol.ReasonShutdown)
			}
			return

		case client := <-h.Register:
			h.clients[client] = struct{}{}
			h.logger.Debug("client registered", "client", client.ID)

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.logger.Debug("client unregistered", "client", client.ID)
				h.remove(client)
			}

		case reply := <-h.stats:
			reply <- Stats{Clients: len(h.clients), Channels: len(h.Channels)}

		case message := <-h.Broadcast:
			if _, ok := h.clients[message.client]; !ok {
				continue
			}
			h.handle(message)
		}
	}
}

func (h *Hub) handle(message *Message) {
	client := message.client

	if message.Type != protocol.TypeConnect && !client.connected {
		h.send(client, protocol.ErrorFrame(message.Channel, "not connected"))
		return
	}

	switch message.Type {

	case protocol.TypeConnect:
		if client.connected {
			h.send(client, protocol.ErrorFrame("", "already connected"))
			return
		}
		if h.token != "" && message.Token != h.token {
			h.logger.Info("rejected client", "client", client.ID, "reason", protocol.ReasonUnauthorized)
			h.disconnect(client, protocol.ReasonUnauthorized)
			return
		}
		client.connected = true
		h.logger.Info("client connected", "client", client.ID)
		h.send(client, &protocol.Frame{
			Type:      protocol.TypeConnected,
			ClientID:  client.ID,
			Transport: protocol.TransportWebsocket,
		})

	case protocol.TypeSubscribe:
		name := message.Channel
		if name == "" || len(name) > protocol.MaxChannelLength {
			h.send(client, protocol.ErrorFrame(name, "invalid channel"))
			return
		}
		if _, ok := client.channels[name]; ok {
			h.send(client, protocol.ErrorFrame(name, "already subscribed"))
			return
		}

		channel, ok := h.Channels[name]
		if !ok {
			channel = &Channel{Name: name, Members: make(map[*Client]struct{})}
			h.Channels[name] = channel
			h.logger.Debug("channel created", "channel", name)
		}
		channel.Members[client] = struct{}{}
		client.channels[name] = struct{}{}

		h.logger.Info("client subscribed", "client", client.ID, "channel", name, "members", len(channel.Members))
		h.send(client, &protocol.Frame{Type: protocol.TypeSubscribed, Channel: name})

	case protocol.TypeUnsubscribe:
		h.leave(client, message.Channel)
		h.send(client, &protocol.Frame{Type: protocol.TypeUnsubscribed, Channel: message.Channel})

	case protocol.TypePublish:
		channel, ok := h.Channels[message.Channel]
		if _, subscribed := client.channels[message.Channel]; !ok || !subscribed {
			h.send(client, protocol.ErrorFrame(message.Channel, "not subscribed"))
			return
		}

		if !client.limiter.Allow() {
			h.logger.Warn("publish rate exceeded, dropping", "client", client.ID, "channel", channel.Name)
			return
		}

		publication := &protocol.Frame{
			Type:    protocol.TypePublication,
			Channel: channel.Name,
			Data:    message.Data,
			Info:    &protocol.ClientInfo{ClientID: client.ID},
		}
		for member := range channel.Members {
			h.send(member, publication)
		}

	default:
		h.logger.Debug("unknown frame type", "client", client.ID, "type", message.Type)
	}
}

// send queues frame for client, dropping the client if its buffer is full.
func (h *Hub) send(client *Client, frame *protocol.Frame) {
	select {
	case client.Send <- frame:
	default:
		h.logger.Warn("client too slow, dropping", "client", client.ID)
		h.remove(client)
	}
}

// disconnect tells client why it is being dropped, then drops it.
func (h *Hub) disconnect(client *Client, reason string) {
	select {
	case client.Send <- &protocol.Frame{Type: protocol.TypeDisconnect, Reason: reason}:
	default:
	}
	h.remove(client)
}

// remove forgets client and closes its send channel to stop its WritePump.
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	for name := range client.channels {
		h.leave(client, name)
	}
	delete(h.clients, client)
	close(client.Send)
}

func (h *Hub) leave(client *Client, name string) {
	delete(client.channels, name)

	channel, ok := h.Channels[name]
	if !ok {
		return
	}
	delete(channel.Members, client)
	if len(channel.Members) == 0 {
		delete(h.Channels, name)
		h.logger.Debug("channel deleted", "channel", name)
	}
}
