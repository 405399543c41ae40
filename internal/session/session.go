package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/sensorlink/internal/channel"
	"github.com/BioHazard786/sensorlink/internal/message"
	"github.com/BioHazard786/sensorlink/internal/reactive"
	"github.com/BioHazard786/sensorlink/internal/transport"
)

// Session is one peer's side of a pairing: it drives the handshake over a
// transport, holds the latest state and schedules renders of it.
type Session struct {
	role      message.Role
	transport transport.Transport
	channel   channel.ID
	shareBase string
	logger    *slog.Logger
	render    func(View) error
	scheduler *reactive.Scheduler
	schedOpts []reactive.Option

	mu       sync.Mutex
	conn     ConnectionState
	pairing  PairingState
	localID  string
	remoteID string
	latency  time.Duration
	snapshot Snapshot
	sub      transport.Subscription
	throttle Throttler
	stats    Stats
	gone     chan struct{}
	dialed   bool
}

// detachTimeout bounds how long Detach waits for the transport to report
// the disconnect.
var detachTimeout = 5 * time.Second

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRenderer sets the function each update cycle hands the current view to.
func WithRenderer(fn func(View) error) Option {
	return func(s *Session) { s.render = fn }
}

// WithShareBase sets the base URL share links are built from.
func WithShareBase(base string) Option {
	return func(s *Session) { s.shareBase = base }
}

// WithHooks registers callbacks for the first and every completed update.
func WithHooks(firstUpdated, updated func()) Option {
	return func(s *Session) {
		if firstUpdated != nil {
			s.schedOpts = append(s.schedOpts, reactive.WithFirstUpdated(firstUpdated))
		}
		if updated != nil {
			s.schedOpts = append(s.schedOpts, reactive.WithUpdated(updated))
		}
	}
}

// WithErrorObserver receives render failures.
func WithErrorObserver(fn func(error)) Option {
	return func(s *Session) {
		s.schedOpts = append(s.schedOpts, reactive.WithErrorObserver(fn))
	}
}

// New creates a session for role on the channel id. Nothing happens on the
// transport until Attach.
func New(role message.Role, t transport.Transport, id channel.ID, opts ...Option) *Session {
	s := &Session{
		role:      role,
		transport: t,
		channel:   id,
		logger:    slog.Default(),
		render:    func(View) error { return nil },
		throttle:  Throttler{Interval: MinMotionInterval},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session", "role", string(role))
	s.scheduler = reactive.New(func() error { return s.render(s.View()) }, s.schedOpts...)

	t.OnConnect(s.onConnect)
	t.OnDisconnect(s.onDisconnect)

	s.scheduler.RequestUpdate()
	return s
}

// Attach starts rendering and connects the transport. A failed dial leaves
// the session disconnected. Attaching a session that is not disconnected
// fails without touching its state.
func (s *Session) Attach(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != Disconnected || s.gone != nil {
		s.mu.Unlock()
		return fmt.Errorf("attach session: %w", transport.ErrAlreadyConnected)
	}
	s.conn = Connecting
	s.gone = make(chan struct{})
	s.mu.Unlock()

	s.scheduler.Enable()
	s.scheduler.RequestUpdate()

	if err := s.transport.Connect(ctx); err != nil {
		s.mu.Lock()
		s.reset()
		s.closeGone()
		s.mu.Unlock()
		s.scheduler.RequestUpdate()
		return fmt.Errorf("attach session: %w", err)
	}

	s.mu.Lock()
	if s.gone != nil {
		s.dialed = true
	}
	s.mu.Unlock()
	return nil
}

// Detach disconnects the transport, waits until the disconnect has been
// observed and stops rendering. There is nothing to wait for while the dial
// is still in flight; Attach itself settles the state when it returns.
func (s *Session) Detach() {
	s.transport.Disconnect()

	s.mu.Lock()
	gone := s.gone
	waiting := s.dialed && gone != nil
	s.mu.Unlock()

	if waiting {
		select {
		case <-gone:
		case <-time.After(detachTimeout):
			s.logger.Warn("transport did not report disconnect", "timeout", detachTimeout)
		}
	}

	s.scheduler.Close()
	<-s.scheduler.UpdateComplete()
}

// View returns the current state as a view model.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		Role:            s.role,
		ConnectionState: s.conn,
		PairingState:    s.pairing,
		LocalID:         s.localID,
		RemoteID:        s.remoteID,
		Latency:         s.latency,
		ShareReference:  s.shareReference(),
		Snapshot:        s.snapshot,
	}
}

func (s *Session) shareReference() string {
	if s.shareBase == "" {
		return s.channel.String()
	}
	return channel.ShareLink(s.shareBase, s.channel)
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) ChannelID() channel.ID {
	return s.channel
}

// UpdateComplete is closed when the latest requested render has finished.
func (s *Session) UpdateComplete() <-chan struct{} {
	return s.scheduler.UpdateComplete()
}

func (s *Session) onConnect(ev transport.ConnectEvent) {
	s.mu.Lock()
	s.conn = Connected
	s.pairing = Pairing
	s.localID = ev.ClientID
	s.latency = ev.Latency
	s.mu.Unlock()

	s.logger.Info("connected", "client", ev.ClientID, "latency", ev.Latency, "transport", ev.Transport)
	s.scheduler.RequestUpdate()

	sub, err := s.transport.Subscribe(s.channel.Name(), transport.SubscriptionHandlers{
		OnPublish:     s.onPublish,
		OnSubscribe:   s.onSubscribe,
		OnUnsubscribe: s.onUnsubscribe,
		OnError:       s.onError,
	})
	if err != nil {
		s.logger.Warn("subscribe failed", "channel", s.channel.Name(), "err", err)
		s.lost()
		return
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

func (s *Session) onDisconnect(ev transport.DisconnectEvent) {
	s.mu.Lock()
	s.reset()
	s.closeGone()
	s.mu.Unlock()

	s.logger.Info("disconnected", "reason", ev.Reason)
	s.scheduler.RequestUpdate()
}

// closeGone releases a waiting Detach. Callers hold mu.
func (s *Session) closeGone() {
	if s.gone != nil {
		close(s.gone)
		s.gone = nil
	}
	s.dialed = false
}

// reset returns every transient field to its default. Callers hold mu.
func (s *Session) reset() {
	s.conn = Disconnected
	s.pairing = Pairing
	s.localID = ""
	s.remoteID = ""
	s.latency = 0
	s.snapshot = Snapshot{}
	s.sub = nil
	s.throttle.Reset()
}

func (s *Session) onSubscribe(ev transport.SubscribeEvent) {
	s.logger.Debug("subscribed", "channel", ev.Channel)
	if s.role != message.RoleSender {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return
	}
	if err := s.sub.Publish(message.Discovery{Role: message.RoleSender}); err != nil {
		s.logger.Warn("failed to announce", "err", err)
	}
}

func (s *Session) onUnsubscribe(ev transport.UnsubscribeEvent) {
	s.logger.Debug("unsubscribed", "channel", ev.Channel, "reason", ev.Reason)
	s.lost()
}

func (s *Session) onError(ev transport.ErrorEvent) {
	s.logger.Warn("subscription error", "channel", ev.Channel, "err", ev.Err)
	s.lost()
}

// lost drops the subscription and, unless already disconnected, tears the
// connection down so the disconnect path resets the session.
func (s *Session) lost() {
	s.mu.Lock()
	s.sub = nil
	connected := s.conn != Disconnected
	s.mu.Unlock()

	if connected {
		s.transport.Disconnect()
	}
}

func (s *Session) onPublish(pub transport.Publication) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != Connected {
		return
	}
	if pub.Info.ClientID != "" && pub.Info.ClientID == s.localID {
		return
	}

	if s.pairing == Pairing {
		tag, err := message.DecodeTag(pub.Data)
		if err != nil {
			s.logger.Debug("dropping malformed message", "err", err)
			return
		}
		s.pair(tag, pub.Info.ClientID)
		return
	}

	env, err := message.Decode(pub.Data)
	if err != nil {
		s.logger.Debug("dropping malformed message", "err", err)
		return
	}
	s.route(env)
}

// pair completes the handshake on a qualifying message. Only kind and role
// are read, so damage elsewhere in the payload does not block pairing.
// Callers hold mu.
func (s *Session) pair(tag message.Tag, publisher string) {
	if !shouldPair(s.role, tag) {
		s.logger.Debug("ignoring message while pairing", "kind", tag.Kind, "role", tag.Role)
		return
	}

	if s.role == message.RoleReceiver && s.sub != nil {
		if err := s.sub.Publish(message.Discovery{Role: message.RoleReceiver}); err != nil {
			s.logger.Warn("failed to answer discovery", "err", err)
		}
	}

	s.remoteID = publisher
	s.pairing = Paired
	s.logger.Info("paired", "remote", publisher)
	s.scheduler.RequestUpdate()
}
