package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/BioHazard786/sensorlink/internal/channel"
	"github.com/BioHazard786/sensorlink/internal/device"
	"github.com/BioHazard786/sensorlink/internal/message"
	"github.com/BioHazard786/sensorlink/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	senderDiscovery   = `{"kind":"discovery","role":"sender"}`
	receiverDiscovery = `{"kind":"discovery","role":"receiver"}`
)

func attach(t *testing.T, role message.Role, opts ...Option) (*Session, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	s := New(role, ft, "abc", opts...)
	require.NoError(t, s.Attach(context.Background()))
	t.Cleanup(s.Detach)
	return s, ft
}

func pairedReceiver(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	s, ft := attach(t, message.RoleReceiver)
	ft.connect("r1")
	ft.subscribed()
	ft.deliver("s1", senderDiscovery)
	require.Equal(t, Paired, s.View().PairingState)
	return s, ft
}

func pairedSender(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	s, ft := attach(t, message.RoleSender)
	ft.connect("s1")
	ft.subscribed()
	ft.deliver("r1", receiverDiscovery)
	require.Equal(t, Paired, s.View().PairingState)
	return s, ft
}

func TestSession_ConnectSubscribesToChannel(t *testing.T) {
	s, ft := attach(t, message.RoleReceiver)
	assert.Equal(t, Connecting, s.View().ConnectionState)
	assert.Equal(t, 1, ft.connects)

	ft.connect("r1")

	v := s.View()
	assert.Equal(t, Connected, v.ConnectionState)
	assert.Equal(t, Pairing, v.PairingState)
	assert.Equal(t, "r1", v.LocalID)
	assert.Equal(t, 5*time.Millisecond, v.Latency)
	assert.Equal(t, "sensors_abc", ft.channel)
}

func TestSession_ReceiverHandshake(t *testing.T) {
	s, ft := attach(t, message.RoleReceiver)
	ft.connect("r1")
	ft.subscribed()
	assert.Empty(t, ft.messages(), "receiver must not announce itself")

	ft.deliver("s1", `{"kind":"orientation_sensor","orientation":{"alpha":1,"beta":2,"gamma":3}}`)
	assert.Equal(t, Pairing, s.View().PairingState)
	assert.Equal(t, Snapshot{}, s.View().Snapshot)

	ft.deliver("s1", senderDiscovery)

	v := s.View()
	assert.Equal(t, Paired, v.PairingState)
	assert.Equal(t, "s1", v.RemoteID)
	require.Len(t, ft.messages(), 1)
	assert.JSONEq(t, receiverDiscovery, ft.messages()[0])

	ft.deliver("s2", senderDiscovery)
	assert.Equal(t, "s1", s.View().RemoteID)
	assert.Len(t, ft.messages(), 1)
}

func TestSession_SenderHandshake(t *testing.T) {
	s, ft := attach(t, message.RoleSender)
	ft.connect("s1")
	ft.subscribed()

	require.NotEmpty(t, ft.messages())
	assert.JSONEq(t, senderDiscovery, ft.messages()[0])

	ft.deliver("x9", `{"kind":"motion_sensor"}`)
	assert.Equal(t, Pairing, s.View().PairingState)

	ft.deliver("r1", receiverDiscovery)
	assert.Equal(t, Paired, s.View().PairingState)
	assert.Equal(t, "r1", s.View().RemoteID)
	assert.Len(t, ft.messages(), 1)
}

func TestShouldPair(t *testing.T) {
	tests := []struct {
		tag      message.Tag
		receiver bool
		sender   bool
	}{
		{tag: message.Tag{Kind: message.KindDiscovery, Role: message.RoleSender}, receiver: true, sender: true},
		{tag: message.Tag{Kind: message.KindDiscovery, Role: message.RoleReceiver}, receiver: true, sender: true},
		{tag: message.Tag{Kind: message.KindDiscovery}, receiver: true, sender: true},
		{tag: message.Tag{Kind: "hello", Role: message.RoleSender}, receiver: true, sender: false},
		{tag: message.Tag{Kind: "hello", Role: message.RoleReceiver}, receiver: false, sender: true},
		{tag: message.Tag{Kind: message.KindOrientation}, receiver: false, sender: false},
		{tag: message.Tag{Kind: message.KindMotion}, receiver: false, sender: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.receiver, receiverShouldPair(tt.tag), "receiver %+v", tt.tag)
		assert.Equal(t, tt.sender, senderShouldPair(tt.tag), "sender %+v", tt.tag)
	}
}

func TestSession_IgnoresOwnPublications(t *testing.T) {
	s, ft := attach(t, message.RoleSender)
	ft.connect("s1")
	ft.subscribed()

	ft.deliver("s1", senderDiscovery)
	assert.Equal(t, Pairing, s.View().PairingState)
	assert.Empty(t, s.View().RemoteID)
}

func TestSession_IgnoresMalformedPayloads(t *testing.T) {
	s, ft := attach(t, message.RoleReceiver)
	ft.connect("r1")

	for _, payload := range []string{`"discovery"`, `[]`, `{"kind":`, `{"role":5}`} {
		ft.deliver("s1", payload)
	}
	assert.Equal(t, Pairing, s.View().PairingState)
	assert.Equal(t, Connected, s.View().ConnectionState)
}

func TestRouter_Orientation(t *testing.T) {
	s, ft := pairedReceiver(t)
	ft.deliver("s1", `{"kind":"motion_sensor","acceleration":{"x":1,"y":2,"z":3}}`)

	ft.deliver("s1", `{"kind":"orientation_sensor","orientation":{"alpha":10,"beta":20,"gamma":30}}`)

	snap := s.View().Snapshot
	assert.Equal(t, message.Rotation{Alpha: 10, Beta: 20, Gamma: 30}, snap.Orientation)
	assert.Equal(t, message.Motion{X: 1, Y: 2, Z: 3}, snap.Acceleration)
	assert.Equal(t, message.Rotation{}, snap.RotationRate)
}

func TestRouter_MotionReplacesAllFields(t *testing.T) {
	s, ft := pairedReceiver(t)
	ft.deliver("s1", `{"kind":"motion_sensor",
		"acceleration":{"x":1,"y":2,"z":3},
		"accelerationIncludingGravity":{"x":4,"y":5,"z":6},
		"rotationRate":{"alpha":7,"beta":8,"gamma":9}}`)
	ft.deliver("s1", `{"kind":"motion_sensor","acceleration":{"x":-1}}`)

	assert.Equal(t, Snapshot{Acceleration: message.Motion{X: -1}}, s.View().Snapshot)
}

func TestRouter_IgnoresUnknownKinds(t *testing.T) {
	s, ft := pairedReceiver(t)
	ft.deliver("s1", `{"kind":"battery","level":0.5}`)
	ft.deliver("s1", senderDiscovery)

	assert.Equal(t, Snapshot{}, s.View().Snapshot)
	assert.Equal(t, "s1", s.View().RemoteID)
}

func TestSender_ThrottlesMotion(t *testing.T) {
	s, ft := pairedSender(t)

	motion := func(ms int) {
		s.HandleMotion(device.MotionEvent{
			Timestamp:    time.Duration(ms) * time.Millisecond,
			Acceleration: message.Motion{X: float64(ms)},
		})
	}
	motion(1000)
	motion(1199)
	motion(1200)
	motion(1300)
	motion(1400)

	msgs := ft.messages()[1:]
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0], `"x":1000`)
	assert.Contains(t, msgs[1], `"x":1200`)
	assert.Contains(t, msgs[2], `"x":1400`)

	stats := s.Stats()
	assert.Equal(t, 3, stats.MotionPublished)
	assert.Equal(t, 2, stats.MotionThrottled)
}

func TestSender_OrientationIsNotThrottled(t *testing.T) {
	s, ft := pairedSender(t)

	for i := range 5 {
		s.HandleOrientation(device.OrientationEvent{
			Timestamp: time.Duration(i) * time.Millisecond,
			Rotation:  message.Rotation{Alpha: float64(i)},
		})
	}

	assert.Len(t, ft.messages(), 6)
	assert.Equal(t, 5, s.Stats().OrientationPublished)
}

func TestSender_SkipsWhileUnpaired(t *testing.T) {
	s, ft := attach(t, message.RoleSender)
	s.HandleOrientation(device.OrientationEvent{})

	ft.connect("s1")
	ft.subscribed()
	s.HandleOrientation(device.OrientationEvent{})
	s.HandleMotion(device.MotionEvent{Timestamp: time.Second})

	assert.Len(t, ft.messages(), 1)
	assert.Equal(t, 3, s.Stats().SkippedUnpaired)
}

func TestReceiver_DoesNotPublishSensors(t *testing.T) {
	s, ft := pairedReceiver(t)
	s.HandleOrientation(device.OrientationEvent{})
	s.HandleMotion(device.MotionEvent{Timestamp: time.Second})
	assert.Len(t, ft.messages(), 1)
}

func TestSession_DisconnectResetsEverything(t *testing.T) {
	setups := map[string]func(*testing.T) (*Session, *fakeTransport){
		"connected": func(t *testing.T) (*Session, *fakeTransport) {
			s, ft := attach(t, message.RoleReceiver)
			ft.connect("r1")
			return s, ft
		},
		"paired receiver with data": func(t *testing.T) (*Session, *fakeTransport) {
			s, ft := pairedReceiver(t)
			ft.deliver("s1", `{"kind":"orientation_sensor","orientation":{"alpha":10,"beta":20,"gamma":30}}`)
			return s, ft
		},
		"paired sender": pairedSender,
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			s, ft := setup(t)
			ft.drop("transport closed")

			v := s.View()
			assert.Equal(t, Disconnected, v.ConnectionState)
			assert.Equal(t, Pairing, v.PairingState)
			assert.Empty(t, v.LocalID)
			assert.Empty(t, v.RemoteID)
			assert.Zero(t, v.Latency)
			assert.Equal(t, Snapshot{}, v.Snapshot)
			assert.Equal(t, "abc", v.ShareReference)
		})
	}
}

func TestSender_ThrottleResetsOnDisconnect(t *testing.T) {
	s, ft := pairedSender(t)
	s.HandleMotion(device.MotionEvent{Timestamp: 5 * time.Second})

	ft.drop("transport closed")
	ft.connect("s1")
	ft.subscribed()
	ft.deliver("r1", receiverDiscovery)

	s.HandleMotion(device.MotionEvent{Timestamp: 250 * time.Millisecond})
	assert.Equal(t, 2, s.Stats().MotionPublished)
}

func TestSession_SubscriptionErrorDisconnects(t *testing.T) {
	s, ft := pairedReceiver(t)
	ft.fail(transport.ErrBrokerError)

	assert.Equal(t, 1, ft.disconnects)
	assert.Equal(t, Disconnected, s.View().ConnectionState)
	assert.Equal(t, Pairing, s.View().PairingState)
}

func TestSession_SubscribeFailureDisconnects(t *testing.T) {
	ft := &fakeTransport{subscribeErr: transport.ErrNotConnected}
	s := New(message.RoleReceiver, ft, "abc")
	require.NoError(t, s.Attach(context.Background()))
	defer s.Detach()

	ft.connect("r1")
	assert.Equal(t, Disconnected, s.View().ConnectionState)
	assert.Equal(t, 1, ft.disconnects)
}

func TestSession_AttachFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	ft := &fakeTransport{connectErr: dialErr}
	s := New(message.RoleSender, ft, "abc")
	defer s.Detach()

	err := s.Attach(context.Background())
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, Disconnected, s.View().ConnectionState)
}

func TestSession_RendersLatestView(t *testing.T) {
	var mu sync.Mutex
	var views []View
	var first int

	s, ft := attach(t, message.RoleReceiver,
		WithShareBase("https://sensors.example"),
		WithRenderer(func(v View) error {
			mu.Lock()
			views = append(views, v)
			mu.Unlock()
			return nil
		}),
		WithHooks(func() { first++ }, nil),
	)
	ft.connect("r1")
	ft.subscribed()
	ft.deliver("s1", senderDiscovery)
	<-s.UpdateComplete()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, views)
	last := views[len(views)-1]
	assert.Equal(t, Paired, last.PairingState)
	assert.Equal(t, "s1", last.RemoteID)
	assert.Equal(t, channel.ShareLink("https://sensors.example", "abc"), last.ShareReference)
	assert.Equal(t, 1, first)
}

func TestSession_RenderErrorsAreObserved(t *testing.T) {
	errs := make(chan error, 8)
	s, _ := attach(t, message.RoleReceiver,
		WithRenderer(func(View) error { return errors.New("terminal gone") }),
		WithErrorObserver(func(err error) { errs <- err }),
	)
	<-s.UpdateComplete()

	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "terminal gone")
	case <-time.After(time.Second):
		t.Fatal("render error not observed")
	}
}

func TestSession_DetachDisconnects(t *testing.T) {
	ft := &fakeTransport{}
	s := New(message.RoleReceiver, ft, "abc")
	require.NoError(t, s.Attach(context.Background()))
	ft.connect("r1")

	s.Detach()
	assert.Equal(t, 1, ft.disconnects)
	assert.Equal(t, Disconnected, s.View().ConnectionState)
}

func TestSession_PairsDespiteDamagedFields(t *testing.T) {
	payloads := []string{
		`{"kind":"discovery","role":7}`,
		`{"kind":5,"role":"sender"}`,
		`{"kind":"discovery","role":"sender","orientation":"n/a"}`,
		`{"kind":"discovery","role":"sender","rotationRate":{"alpha":"x"}}`,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			s, ft := attach(t, message.RoleReceiver)
			ft.connect("r1")
			ft.subscribed()
			ft.deliver("s1", payload)

			assert.Equal(t, Paired, s.View().PairingState)
			assert.Equal(t, "s1", s.View().RemoteID)
		})
	}
}

func TestSession_AttachTwiceKeepsState(t *testing.T) {
	s, ft := pairedReceiver(t)

	err := s.Attach(context.Background())
	assert.ErrorIs(t, err, transport.ErrAlreadyConnected)
	assert.Equal(t, 1, ft.connects)
	assert.Equal(t, Connected, s.View().ConnectionState)
	assert.Equal(t, Paired, s.View().PairingState)
	assert.Equal(t, "s1", s.View().RemoteID)
}

func detachWithin(t *testing.T, s *Session, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		s.Detach()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("Detach did not return")
	}
}

func TestSession_DetachWhileConnecting(t *testing.T) {
	ft := &fakeTransport{}
	s := New(message.RoleReceiver, ft, "abc")
	require.NoError(t, s.Attach(context.Background()))
	require.Equal(t, Connecting, s.View().ConnectionState)

	detachWithin(t, s, time.Second)
	assert.Equal(t, 1, ft.disconnects)
	assert.Equal(t, Disconnected, s.View().ConnectionState)
}

func TestSession_DetachDuringFailedDial(t *testing.T) {
	ft := newSlowDialTransport()
	s := New(message.RoleReceiver, ft, "abc")

	attached := make(chan error, 1)
	go func() { attached <- s.Attach(context.Background()) }()
	<-ft.dialing

	detachWithin(t, s, time.Second)

	dialErr := errors.New("i/o timeout")
	ft.release <- dialErr
	assert.ErrorIs(t, <-attached, dialErr)
	assert.Equal(t, Disconnected, s.View().ConnectionState)
}

func TestSession_DetachGivesUpOnSilentTransport(t *testing.T) {
	prev := detachTimeout
	detachTimeout = 50 * time.Millisecond
	t.Cleanup(func() { detachTimeout = prev })

	ft := silentTransport{&fakeTransport{}}
	s := New(message.RoleReceiver, ft, "abc")
	require.NoError(t, s.Attach(context.Background()))
	ft.connect("r1")

	detachWithin(t, s, time.Second)
}
