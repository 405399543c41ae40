package protocol

import "encoding/json"

// Frame represents all websocket frames between peers and the broker.
type Frame struct {
	Type      string          `json:"type" msgpack:"type"`
	Channel   string          `json:"channel,omitempty" msgpack:"channel,omitempty"`
	ClientID  string          `json:"client_id,omitempty" msgpack:"client_id,omitempty"`
	Token     string          `json:"token,omitempty" msgpack:"token,omitempty"`
	Transport string          `json:"transport,omitempty" msgpack:"transport,omitempty"`
	Data      json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`
	Info      *ClientInfo     `json:"info,omitempty" msgpack:"info,omitempty"`
	Reason    string          `json:"reason,omitempty" msgpack:"reason,omitempty"`
	Error     string          `json:"error,omitempty" msgpack:"error,omitempty"`
}

// ClientInfo describes the publisher of a publication.
type ClientInfo struct {
	ClientID string `json:"client_id" msgpack:"client_id"`
}

// Frame type constants.
const (
	// Client to broker
	TypeConnect     = "connect"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePublish     = "publish"

	// Broker to client
	TypeConnected    = "connected"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypePublication  = "publication"
	TypeDisconnect   = "disconnect"
	TypeError        = "error"
)

// TransportWebsocket is reported in connected frames.
const TransportWebsocket = "websocket"

// Disconnect reasons sent by the broker.
const (
	ReasonUnauthorized = "unauthorized"
	ReasonSlowClient   = "slow client"
	ReasonShutdown     = "shutdown"
)

// MaxChannelLength bounds channel names accepted by the broker.
const MaxChannelLength = 255

// ErrorFrame builds an error frame, optionally scoped to a channel.
func ErrorFrame(channel, msg string) *Frame {
	return &Frame{Type: TypeError, Channel: channel, Error: msg}
}
