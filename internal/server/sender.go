package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BioHazard786/sensorlink/internal/channel"
	"github.com/BioHazard786/sensorlink/internal/protocol"
)

//go:embed assets/sender.html
var assets embed.FS

var senderPage = template.Must(template.ParseFS(assets, "assets/sender.html"))

// Sender serves the page share links point to.
func Sender() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Only allow GET and HEAD requests
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimSpace(r.URL.Query().Get(channel.QueryParam))
		if id == "" || len(channel.ID(id).Name()) > protocol.MaxChannelLength {
			http.Error(w, "Missing or invalid channel.", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if err := senderPage.Execute(w, struct{ Channel string }{id}); err != nil {
			slog.Warn("failed to render sender page", "err", err)
		}
	}
}
