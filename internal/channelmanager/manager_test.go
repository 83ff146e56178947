package channelmanager

import (
	"context"
	"testing"

	"github.com/lumenbridge/broker/internal/app"
	"github.com/lumenbridge/broker/internal/cache"
	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/namespace"
	"github.com/lumenbridge/broker/internal/token"
	"github.com/lumenbridge/broker/internal/webhook"
)

// fakeAdapter is a minimal single-node Adapter double backed directly by
// a namespace.Namespace, enough to exercise the state machine without
// the full Local adapter's metrics wiring.
type fakeAdapter struct {
	ns          *namespace.Namespace
	broadcasts  []broadcastCall
}

type broadcastCall struct {
	channel channel.Name
	message []byte
	except  string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{ns: namespace.New()}
}

func (f *fakeAdapter) AddSocket(appID string, conn *namespace.Connection) { f.ns.AddSocket(conn) }
func (f *fakeAdapter) BindUser(appID, socketID, userID string)           { f.ns.BindUser(socketID, userID) }
func (f *fakeAdapter) RemoveSocket(appID, socketID string) []namespace.Departure {
	return f.ns.RemoveSocket(socketID)
}
func (f *fakeAdapter) AddToChannel(appID string, ch channel.Name, socketID string, member *channel.MemberInfo) namespace.JoinResult {
	return f.ns.Subscribe(socketID, ch, member)
}
func (f *fakeAdapter) RemoveFromChannel(appID string, ch channel.Name, socketID string) namespace.LeaveResult {
	return f.ns.Unsubscribe(socketID, ch)
}
func (f *fakeAdapter) Broadcast(ctx context.Context, appID string, ch channel.Name, message []byte, exceptSocket string) error {
	f.broadcasts = append(f.broadcasts, broadcastCall{channel: ch, message: message, except: exceptSocket})
	return nil
}
func (f *fakeAdapter) Send(ctx context.Context, appID, socketID string, message []byte) error { return nil }
func (f *fakeAdapter) Disconnect(ctx context.Context, appID, socketID string, code int, reason string) error {
	return nil
}
func (f *fakeAdapter) ChannelMembers(ctx context.Context, appID string, ch channel.Name) (map[string]channel.MemberInfo, error) {
	return f.ns.Members(ch), nil
}
func (f *fakeAdapter) ChannelSockets(ctx context.Context, appID string, ch channel.Name) ([]string, error) {
	var out []string
	for _, c := range f.ns.Sockets(ch) {
		out = append(out, c.SocketID)
	}
	return out, nil
}
func (f *fakeAdapter) ChannelsWithSocketCount(ctx context.Context, appID, prefix string) (map[channel.Name]int, error) {
	return nil, nil
}
func (f *fakeAdapter) SocketCount(ctx context.Context, appID string) (int, error) { return f.ns.SocketCount(), nil }
func (f *fakeAdapter) TerminateUser(ctx context.Context, appID, userID string) ([]string, error) {
	return nil, nil
}
func (f *fakeAdapter) Close() error { return nil }

type fakeEmitter struct {
	events []webhook.Event
}

func (e *fakeEmitter) Emit(ctx context.Context, appID string, ev webhook.Event) {
	e.events = append(e.events, ev)
}

func testApp() app.App {
	return app.Default("app1", "key1", "secret1")
}

func TestSubscribeRejectsInvalidChannel(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	m := New(ad, cache.NewNone(), &fakeEmitter{})

	_, err := m.Subscribe(context.Background(), testApp(), "1.1", "", SubscribeRequest{Channel: "has a space"}, 0)
	if err != ErrInvalidChannel {
		t.Fatalf("Subscribe error = %v, want ErrInvalidChannel", err)
	}
}

func TestSubscribeRejectsBadAuthOnPrivateChannel(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	m := New(ad, cache.NewNone(), &fakeEmitter{})

	_, err := m.Subscribe(context.Background(), testApp(), "1.1", "", SubscribeRequest{
		Channel: "private-chat",
		Auth:    "key1:bad-signature",
	}, 0)
	if err != ErrAuthFailed {
		t.Fatalf("Subscribe error = %v, want ErrAuthFailed", err)
	}
}

func TestSubscribeEmitsChannelOccupiedOnFirstJoin(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	emitter := &fakeEmitter{}
	m := New(ad, cache.NewNone(), emitter)

	_, err := m.Subscribe(context.Background(), testApp(), "1.1", "", SubscribeRequest{Channel: "lobby"}, 0)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if len(emitter.events) != 1 || emitter.events[0].Type != webhook.ChannelOccupied {
		t.Fatalf("expected a channel_occupied webhook, got %v", emitter.events)
	}
}

func TestSubscribePresenceValidAuth(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	a := testApp()
	m := New(ad, cache.NewNone(), &fakeEmitter{})

	channelData := `{"user_id":"u1"}`
	auth := token.SignChannelAuth(a.Key, a.Secret, "1.1", "presence-lobby", channelData)

	res, err := m.Subscribe(context.Background(), a, "1.1", "", SubscribeRequest{
		Channel:     "presence-lobby",
		Auth:        auth,
		ChannelData: channelData,
	}, 0)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if res.Presence == nil || res.Presence.Count != 1 {
		t.Fatalf("expected a presence payload with 1 member, got %+v", res.Presence)
	}
}

func TestUnsubscribeVacatesAndEmitsWebhook(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	emitter := &fakeEmitter{}
	m := New(ad, cache.NewNone(), emitter)

	m.Subscribe(context.Background(), testApp(), "1.1", "", SubscribeRequest{Channel: "lobby"}, 0)
	m.Unsubscribe(context.Background(), "app1", "lobby", "1.1")

	found := false
	for _, ev := range emitter.events {
		if ev.Type == webhook.ChannelVacated {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a channel_vacated webhook, got %v", emitter.events)
	}
}

func TestClientEventRequiresPrivateChannel(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	m := New(ad, cache.NewNone(), &fakeEmitter{})

	err := m.ClientEvent(context.Background(), testApp(), "lobby", "1.1", "client-foo", nil)
	if err != ErrClientChannelKind {
		t.Fatalf("ClientEvent error = %v, want ErrClientChannelKind", err)
	}
}

func TestClientEventBroadcastsOnPrivateChannel(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	m := New(ad, cache.NewNone(), &fakeEmitter{})

	err := m.ClientEvent(context.Background(), testApp(), "private-chat", "1.1", "client-foo", map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("ClientEvent failed: %v", err)
	}
	if len(ad.broadcasts) != 1 || ad.broadcasts[0].except != "1.1" {
		t.Fatalf("expected one broadcast excluding the sender, got %v", ad.broadcasts)
	}
}

func TestClientEventRequiresAppOptIn(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	m := New(ad, cache.NewNone(), &fakeEmitter{})

	a := testApp()
	a.EnableClientMessages = false
	if err := m.ClientEvent(context.Background(), a, "private-chat", "1.1", "client-foo", nil); err != ErrClientEventsOff {
		t.Fatalf("ClientEvent error = %v, want ErrClientEventsOff", err)
	}
}

func TestHandleDisconnectRunsUnsubscribeForEveryChannel(t *testing.T) {
	ad := newFakeAdapter()
	ad.AddSocket("app1", namespace.NewConnection("1.1", func([]byte) error { return nil }, nil))
	emitter := &fakeEmitter{}
	m := New(ad, cache.NewNone(), emitter)

	m.Subscribe(context.Background(), testApp(), "1.1", "", SubscribeRequest{Channel: "lobby"}, 0)
	m.Subscribe(context.Background(), testApp(), "1.1", "", SubscribeRequest{Channel: "news"}, 1)

	m.HandleDisconnect(context.Background(), "app1", "1.1")

	vacated := 0
	for _, ev := range emitter.events {
		if ev.Type == webhook.ChannelVacated {
			vacated++
		}
	}
	if vacated != 2 {
		t.Errorf("expected 2 channel_vacated webhooks, got %d (%v)", vacated, emitter.events)
	}
}
