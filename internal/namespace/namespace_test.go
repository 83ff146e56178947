package namespace

import (
	"testing"

	"github.com/lumenbridge/broker/internal/channel"
)

func noopSend([]byte) error { return nil }

func TestSubscribeOccupiesChannel(t *testing.T) {
	ns := New()
	conn := NewConnection("1.1", noopSend, nil)
	ns.AddSocket(conn)

	res := ns.Subscribe("1.1", channel.Name("lobby"), nil)
	if !res.ChannelOccupied {
		t.Error("first subscriber should occupy the channel")
	}

	conn2 := NewConnection("1.2", noopSend, nil)
	ns.AddSocket(conn2)
	res2 := ns.Subscribe("1.2", channel.Name("lobby"), nil)
	if res2.ChannelOccupied {
		t.Error("second subscriber should not re-occupy the channel")
	}
}

func TestUnsubscribeVacatesChannel(t *testing.T) {
	ns := New()
	conn := NewConnection("1.1", noopSend, nil)
	ns.AddSocket(conn)
	ns.Subscribe("1.1", channel.Name("lobby"), nil)

	res := ns.Unsubscribe("1.1", channel.Name("lobby"))
	if !res.ChannelVacated {
		t.Error("last unsubscribe should vacate the channel")
	}
	if ns.Occupied(channel.Name("lobby")) {
		t.Error("channel should no longer be occupied")
	}
}

func TestPresenceRosterAndLastOfUser(t *testing.T) {
	ns := New()
	ch := channel.Name("presence-lobby")

	a := NewConnection("1.1", noopSend, nil)
	ns.AddSocket(a)
	ns.Subscribe("1.1", ch, &channel.MemberInfo{UserID: "u1"})

	b := NewConnection("1.2", noopSend, nil)
	ns.AddSocket(b)
	res := ns.Subscribe("1.2", ch, &channel.MemberInfo{UserID: "u1"})
	if res.FirstOfUser {
		t.Error("second socket for the same user should not be FirstOfUser")
	}

	members := ns.Members(ch)
	if len(members) != 1 {
		t.Fatalf("expected 1 distinct presence member, got %d", len(members))
	}

	leave := ns.Unsubscribe("1.1", ch)
	if leave.LastOfUser {
		t.Error("u1 still has socket 1.2 in the channel, should not be LastOfUser")
	}

	leave2 := ns.Unsubscribe("1.2", ch)
	if !leave2.LastOfUser {
		t.Error("the final socket for u1 should be LastOfUser")
	}
}

func TestRemoveSocketReportsDeparturesAndVacancy(t *testing.T) {
	ns := New()
	conn := NewConnection("1.1", noopSend, nil)
	ns.AddSocket(conn)
	ns.Subscribe("1.1", channel.Name("lobby"), nil)
	ns.Subscribe("1.1", channel.Name("news"), nil)

	deps := ns.RemoveSocket("1.1")
	if len(deps) != 2 {
		t.Fatalf("expected 2 departures, got %d", len(deps))
	}
	for _, d := range deps {
		if !d.ChannelVacated {
			t.Errorf("channel %s should be vacated since it had one subscriber", d.Channel)
		}
	}
	if ns.SocketCount() != 0 {
		t.Error("socket should be removed from the namespace")
	}
}

func TestBindUserAndSocketsForUser(t *testing.T) {
	ns := New()
	conn := NewConnection("1.1", noopSend, nil)
	ns.AddSocket(conn)
	ns.BindUser("1.1", "u1")

	socks := ns.SocketsForUser("u1")
	if len(socks) != 1 || socks[0].SocketID != "1.1" {
		t.Fatalf("expected socket 1.1 bound to u1, got %v", socks)
	}
}

func TestBindUserRebindRemovesStaleEntry(t *testing.T) {
	ns := New()
	conn := NewConnection("1.1", noopSend, nil)
	ns.AddSocket(conn)
	ns.BindUser("1.1", "u1")
	ns.BindUser("1.1", "u2")

	if socks := ns.SocketsForUser("u1"); len(socks) != 0 {
		t.Errorf("u1 should have no sockets left after rebinding, got %v", socks)
	}
	socks := ns.SocketsForUser("u2")
	if len(socks) != 1 || socks[0].SocketID != "1.1" {
		t.Fatalf("expected socket 1.1 bound to u2, got %v", socks)
	}
}
