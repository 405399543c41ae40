package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/BioHazard786/sensorlink/internal/transport"
)

// fakeTransport delivers events only when the test drives them, always on
// the calling goroutine.
type fakeTransport struct {
	mu           sync.Mutex
	onConnect    func(transport.ConnectEvent)
	onDisconnect func(transport.DisconnectEvent)
	handlers     transport.SubscriptionHandlers
	channel      string
	dialed       bool
	connected    bool
	connectErr   error
	subscribeErr error
	connects     int
	disconnects  int
	published    []json.RawMessage
}

func (f *fakeTransport) OnConnect(fn func(transport.ConnectEvent)) { f.onConnect = fn }

func (f *fakeTransport) OnDisconnect(fn func(transport.DisconnectEvent)) { f.onDisconnect = fn }

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.dialed = true
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	f.drop("client disconnect")
}

func (f *fakeTransport) Subscribe(channel string, h transport.SubscriptionHandlers) (transport.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.channel = channel
	f.handlers = h
	return &fakeSubscription{f: f, channel: channel}, nil
}

// connect fires the connect event for clientID.
func (f *fakeTransport) connect(clientID string) {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.onConnect(transport.ConnectEvent{ClientID: clientID, Latency: 5 * time.Millisecond, Transport: "websocket"})
}

func (f *fakeTransport) subscribed() {
	f.handlers.OnSubscribe(transport.SubscribeEvent{Channel: f.channel})
}

func (f *fakeTransport) deliver(from string, payload string) {
	f.handlers.OnPublish(transport.Publication{
		Channel: f.channel,
		Data:    json.RawMessage(payload),
		Info:    transport.ClientInfo{ClientID: from},
	})
}

func (f *fakeTransport) fail(err error) {
	f.handlers.OnError(transport.ErrorEvent{Channel: f.channel, Err: err})
}

// drop ends the connection the way the websocket client does: once dialed,
// a disconnect event follows even if connect never completed, then
// unsubscribe.
func (f *fakeTransport) drop(reason string) {
	f.mu.Lock()
	if !f.dialed && !f.connected {
		f.mu.Unlock()
		return
	}
	f.dialed = false
	f.connected = false
	h := f.handlers
	f.handlers = transport.SubscriptionHandlers{}
	f.mu.Unlock()

	f.onDisconnect(transport.DisconnectEvent{Reason: reason})
	if h.OnUnsubscribe != nil {
		h.OnUnsubscribe(transport.UnsubscribeEvent{Channel: f.channel, Reason: reason})
	}
}

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	for i, m := range f.published {
		out[i] = string(m)
	}
	return out
}

type fakeSubscription struct {
	f       *fakeTransport
	channel string
}

func (s *fakeSubscription) Channel() string { return s.channel }

func (s *fakeSubscription) Publish(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if !s.f.connected {
		return transport.ErrClosed
	}
	s.f.published = append(s.f.published, data)
	return nil
}

func (s *fakeSubscription) Unsubscribe() error { return nil }

// slowDialTransport holds Connect until the test releases it.
type slowDialTransport struct {
	*fakeTransport
	dialing chan struct{}
	release chan error
}

func newSlowDialTransport() *slowDialTransport {
	return &slowDialTransport{
		fakeTransport: &fakeTransport{},
		dialing:       make(chan struct{}),
		release:       make(chan error),
	}
}

func (f *slowDialTransport) Connect(context.Context) error {
	close(f.dialing)
	return <-f.release
}

// silentTransport never reports a disconnect.
type silentTransport struct {
	*fakeTransport
}

func (silentTransport) Disconnect() {}
