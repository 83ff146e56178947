package adapter

import (
	"context"
	"testing"

	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/namespace"
)

func TestLocalAddAndRemoveSocket(t *testing.T) {
	l := NewLocal(nil)
	conn := namespace.NewConnection("1.1", func([]byte) error { return nil }, nil)
	l.AddSocket("app1", conn)

	count, _ := l.SocketCount(context.Background(), "app1")
	if count != 1 {
		t.Fatalf("SocketCount = %d, want 1", count)
	}

	l.RemoveSocket("app1", "1.1")
	count, _ = l.SocketCount(context.Background(), "app1")
	if count != 0 {
		t.Fatalf("SocketCount after remove = %d, want 0", count)
	}
}

func TestLocalBroadcastSkipsExceptSocket(t *testing.T) {
	l := NewLocal(nil)
	var received []string

	connA := namespace.NewConnection("1.1", func(msg []byte) error {
		received = append(received, "1.1")
		return nil
	}, nil)
	connB := namespace.NewConnection("1.2", func(msg []byte) error {
		received = append(received, "1.2")
		return nil
	}, nil)
	l.AddSocket("app1", connA)
	l.AddSocket("app1", connB)
	l.AddToChannel("app1", channel.Name("lobby"), "1.1", nil)
	l.AddToChannel("app1", channel.Name("lobby"), "1.2", nil)

	l.Broadcast(context.Background(), "app1", channel.Name("lobby"), []byte("hi"), "1.1")

	if len(received) != 1 || received[0] != "1.2" {
		t.Fatalf("expected only 1.2 to receive the broadcast, got %v", received)
	}
}

func TestLocalChannelOccupiedAndVacated(t *testing.T) {
	l := NewLocal(nil)
	conn := namespace.NewConnection("1.1", func([]byte) error { return nil }, nil)
	l.AddSocket("app1", conn)

	res := l.AddToChannel("app1", channel.Name("lobby"), "1.1", nil)
	if !res.ChannelOccupied {
		t.Error("first subscriber should occupy the channel")
	}

	leave := l.RemoveFromChannel("app1", channel.Name("lobby"), "1.1")
	if !leave.ChannelVacated {
		t.Error("last subscriber leaving should vacate the channel")
	}
}

func TestLocalTerminateUser(t *testing.T) {
	l := NewLocal(nil)
	var closedCode int
	var closedReason string
	conn := namespace.NewConnection("1.1", func([]byte) error { return nil }, func(code int, reason string) {
		closedCode = code
		closedReason = reason
	})
	l.AddSocket("app1", conn)
	l.BindUser("app1", "1.1", "u1")

	closed, err := l.TerminateUser(context.Background(), "app1", "u1")
	if err != nil || len(closed) != 1 || closed[0] != "1.1" {
		t.Fatalf("TerminateUser = (%v, %v), want ([1.1], nil)", closed, err)
	}
	if closedCode == 0 {
		t.Error("TerminateUser should close the socket's underlying transport, not just remove it from the namespace")
	}
	if closedReason == "" {
		t.Error("expected a close reason to be passed to the socket's Close callback")
	}

	count, _ := l.SocketCount(context.Background(), "app1")
	if count != 0 {
		t.Error("terminated socket should be removed from the namespace")
	}
}

func TestLocalDisconnectClosesUnderlyingTransport(t *testing.T) {
	l := NewLocal(nil)
	var closedCode int
	conn := namespace.NewConnection("1.1", func([]byte) error { return nil }, func(code int, reason string) {
		closedCode = code
	})
	l.AddSocket("app1", conn)

	if err := l.Disconnect(context.Background(), "app1", "1.1", 4009, "subscription auth failed"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if closedCode != 4009 {
		t.Errorf("closedCode = %d, want 4009 (the code passed to Disconnect)", closedCode)
	}

	count, _ := l.SocketCount(context.Background(), "app1")
	if count != 0 {
		t.Error("disconnected socket should be removed from the namespace")
	}
}
