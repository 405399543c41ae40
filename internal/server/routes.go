package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/sensorlink/internal/broker"
	"github.com/BioHazard786/sensorlink/internal/protocol"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,

	// Channel ids are capability tokens handed out through share links, so
	// any origin holding one may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// The "format" query parameter selects the frame codec (json by default).
func ServeWs(hub *broker.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codec, err := protocol.CodecFor(r.URL.Query().Get("format"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "err", err)
			return
		}

		client := hub.NewClient(conn, codec)

		select {
		case hub.Register <- client:
		case <-hub.Done():
			conn.Close()
			return
		}

		// The pumps own the client's lifecycle from here on.
		go client.WritePump()
		go client.ReadPump()
	}
}

// Health reports broker liveness and current counts.
func Health(hub *broker.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		stats, err := hub.Stats(ctx)
		if err != nil {
			http.Error(w, "Broker is not running.", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Broker is healthy. clients=%d channels=%d\n", stats.Clients, stats.Channels)
	}
}

// Routes registers the broker endpoints on a new mux.
func Routes(hub *broker.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", Health(hub))
	mux.HandleFunc("/ws", ServeWs(hub))
	mux.HandleFunc("/sender", Sender())
	return mux
}
