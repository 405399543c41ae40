package transport

import (
	"context"
	"encoding/json"
	"time"
)

// Transport is the pub/sub connection a session runs on. Implementations
// deliver every event callback from a single goroutine, so handlers never
// run concurrently with each other.
type Transport interface {
	// OnConnect registers the handler for the connect event.
	OnConnect(func(ConnectEvent))

	// OnDisconnect registers the handler for the disconnect event. It fires
	// once per connection, including locally initiated disconnects.
	OnDisconnect(func(DisconnectEvent))

	// Connect dials the broker. The connect event follows asynchronously.
	Connect(ctx context.Context) error

	// Disconnect closes the connection. It is safe to call repeatedly.
	Disconnect()

	// Subscribe joins channel. Outcomes arrive through h.
	Subscribe(channel string, h SubscriptionHandlers) (Subscription, error)
}

// Subscription is a live channel membership.
type Subscription interface {
	Channel() string

	// Publish encodes v as JSON and publishes it to the channel.
	Publish(v any) error

	Unsubscribe() error
}

// ConnectEvent is delivered when the broker accepts the connection.
type ConnectEvent struct {
	ClientID  string
	Latency   time.Duration
	Transport string
}

// DisconnectEvent is delivered when the connection ends for any reason.
type DisconnectEvent struct {
	Reason    string
	Reconnect bool
}

// ClientInfo identifies the publisher of a publication.
type ClientInfo struct {
	ClientID string
}

// Publication is a payload delivered on a subscribed channel.
type Publication struct {
	Channel string
	Data    json.RawMessage
	Info    ClientInfo
}

type SubscribeEvent struct {
	Channel string
}

type UnsubscribeEvent struct {
	Channel string
	Reason  string
}

type ErrorEvent struct {
	Channel string
	Err     error
}

// SubscriptionHandlers are the callbacks for one subscription. Nil handlers
// are skipped.
type SubscriptionHandlers struct {
	OnPublish     func(Publication)
	OnSubscribe   func(SubscribeEvent)
	OnUnsubscribe func(UnsubscribeEvent)
	OnError       func(ErrorEvent)
}
