package broker

import "github.com/BioHazard786/sensorlink/internal/protocol"

// Channel is a named topic. Every publication on it is delivered to all
// members, the publisher included.
type Channel struct {
	// Name is the channel name clients subscribe with.
	Name string

	// Members are the subscribed clients.
	Members map[*Client]struct{}
}

// Message is a frame received from a client, tagged with its origin.
type Message struct {
	*protocol.Frame

	// client is the client that sent the frame.
	// It's used internally by the Hub and never sent over the wire.
	client *Client
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients  int
	Channels int
}
