package broker

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/sensorlink/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer.
	maxMessageSize = 16 * 1024

	// Outbound frames buffered per client before it is considered slow.
	sendBufferSize = 256
)

// Client is a wrapper for a single websocket connection (a peer).
type Client struct {
	// Hub manages this client.
	Hub *Hub

	// Conn is the websocket connection.
	Conn *websocket.Conn

	// Codec encodes frames in the format negotiated at upgrade time.
	Codec protocol.Codec

	// ID is the broker-assigned client id reported in connected frames
	// and in the info of every publication this client makes.
	ID string

	// Send is a buffered channel for all outbound frames.
	// The hub writes to it, and WritePump drains it to the websocket.
	Send chan *protocol.Frame

	// Fields below are owned by the hub goroutine.
	connected bool
	channels  map[string]struct{}
	limiter   *rate.Limiter
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		frame, err := protocol.ReadFrame(c.Conn, c.Codec)
		if errors.Is(err, protocol.ErrMalformedFrame) {
			c.Hub.logger.Debug("dropping malformed frame", "client", c.ID, "err", err)
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("read failed", "client", c.ID, "err", err)
			}
			return
		}

		select {
		case c.Hub.Broadcast <- &Message{Frame: frame, client: c}:
		case <-c.Hub.Done():
			return
		}
	}
}

// WritePump pumps frames from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := protocol.WriteFrame(c.Conn, c.Codec, frame); err != nil {
				c.Hub.logger.Warn("write failed", "client", c.ID, "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
