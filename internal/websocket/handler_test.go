package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lumenbridge/broker/internal/adapter"
	"github.com/lumenbridge/broker/internal/app"
	"github.com/lumenbridge/broker/internal/cache"
	"github.com/lumenbridge/broker/internal/channelmanager"
	"github.com/lumenbridge/broker/internal/webhook"
)

type nopEmitter struct{}

func (nopEmitter) Emit(ctx context.Context, appID string, ev webhook.Event) {}

func newTestSession(cfg Config) (*session, *Client) {
	ad := adapter.NewLocal(nil)
	cm := channelmanager.New(ad, cache.NewNone(), nopEmitter{})
	cl := &Client{
		SocketID: "1.1",
		send:     make(chan []byte, sendBufferSize),
		closeCh:  make(chan struct{}),
	}
	h := &Handler{
		apps:     nil,
		adapter:  ad,
		channels: cm,
		metrics:  nil,
		cfg:      cfg.withDefaults(),
	}
	a := app.Default("app1", "key1", "secret1")
	s := &session{handler: h, client: cl, app: a}
	return s, cl
}

func TestOnFramePingRepliesWithPong(t *testing.T) {
	s, cl := newTestSession(Config{})
	s.onFrame([]byte(`{"event":"pusher:ping"}`))

	select {
	case raw := <-cl.send:
		var f Frame
		json.Unmarshal(raw, &f)
		if f.Event != EventPong {
			t.Fatalf("Event = %q, want %q", f.Event, EventPong)
		}
	default:
		t.Fatal("expected a pong frame to be queued")
	}
}

func TestOnFrameUnknownEventClosesConnection(t *testing.T) {
	s, cl := newTestSession(Config{})
	s.onFrame([]byte(`{"event":"not-a-real-event"}`))

	select {
	case <-cl.closeCh:
	default:
		t.Fatal("an unknown event must close the connection")
	}
	if cl.closeCode != CloseUnknownEvent {
		t.Errorf("closeCode = %d, want %d", cl.closeCode, CloseUnknownEvent)
	}
}

func TestOnFrameMalformedPayloadSendsProtocolError(t *testing.T) {
	s, cl := newTestSession(Config{})
	s.onFrame([]byte(`not json`))

	select {
	case raw := <-cl.send:
		var f Frame
		json.Unmarshal(raw, &f)
		if f.Event != EventError {
			t.Fatalf("Event = %q, want %q", f.Event, EventError)
		}
	default:
		t.Fatal("expected a pusher:error frame for a malformed payload")
	}
}

func TestMonitorActivitySendsPingAfterTimeoutThenClosesOnSilence(t *testing.T) {
	s, cl := newTestSession(Config{ActivityTimeout: 20 * time.Millisecond, PongTimeout: 20 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		s.monitorActivity()
		close(done)
	}()

	select {
	case raw := <-cl.send:
		var f Frame
		json.Unmarshal(raw, &f)
		if f.Event != EventPing {
			t.Fatalf("Event = %q, want %q", f.Event, EventPing)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a ping frame after the activity timeout elapsed")
	}

	select {
	case <-cl.closeCh:
	case <-time.After(time.Second):
		t.Fatal("expected the connection to close after the pong timeout elapsed with no reply")
	}
	if cl.closeCode != ClosePingTimeout {
		t.Errorf("closeCode = %d, want %d", cl.closeCode, ClosePingTimeout)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitorActivity should return once the connection closes")
	}
}

func TestMonitorActivityResetsOnIncomingFrame(t *testing.T) {
	s, cl := newTestSession(Config{ActivityTimeout: 30 * time.Millisecond, PongTimeout: 200 * time.Millisecond})
	go s.monitorActivity()

	// Keep the connection "active" for longer than ActivityTimeout alone
	// would tolerate, by touching it periodically, and confirm no close
	// happens as long as frames keep arriving.
	for i := 0; i < 5; i++ {
		time.Sleep(15 * time.Millisecond)
		s.touch()
	}

	select {
	case <-cl.closeCh:
		t.Fatal("a connection receiving regular activity must not be closed")
	default:
	}
}
