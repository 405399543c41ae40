package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/BioHazard786/sensorlink/internal/broker"
	"github.com/BioHazard786/sensorlink/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T) (*broker.Hub, *httptest.Server) {
	t.Helper()
	hub := broker.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(Routes(hub))
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		srv.Close()
		http.DefaultClient.CloseIdleConnections()
	})
	return hub, srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealth(t *testing.T) {
	_, srv := startServer(t)

	code, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "clients=0 channels=0")
}

func TestServeWs_RejectsUnknownFormat(t *testing.T) {
	_, srv := startServer(t)

	code, _ := get(t, srv.URL+"/ws?format=xml")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServeWs_Connect(t *testing.T) {
	_, srv := startServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?format=msgpack"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.WriteFrame(conn, protocol.Msgpack, &protocol.Frame{Type: protocol.TypeConnect}))
	f, err := protocol.ReadFrame(conn, protocol.Msgpack)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeConnected, f.Type)
	assert.NotEmpty(t, f.ClientID)
}

func TestSender(t *testing.T) {
	_, srv := startServer(t)

	code, body := get(t, srv.URL+"/sender?channel=abc")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "sensorlink send abc")

	code, body = get(t, srv.URL+"/sender?channel=%3Cb%3E")
	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "<b>")

	code, _ = get(t, srv.URL+"/sender")
	assert.Equal(t, http.StatusBadRequest, code)

	resp, err := http.Post(srv.URL+"/sender?channel=abc", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
