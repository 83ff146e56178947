package adapter

import (
	"context"
	"log"
	"sync"

	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/metrics"
	"github.com/lumenbridge/broker/internal/namespace"
)

// Local fans events out to sockets held in this process only. It is the
// whole Adapter for a single-node deployment and the engine a Horizontal
// adapter wraps for multi-node ones.
type Local struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace.Namespace // app id -> namespace
	metrics    *metrics.Recorder
}

// NewLocal returns an empty Local adapter. rec may be nil.
func NewLocal(rec *metrics.Recorder) *Local {
	return &Local{
		namespaces: make(map[string]*namespace.Namespace),
		metrics:    metrics.OrNop(rec),
	}
}

func (l *Local) namespaceFor(appID string) *namespace.Namespace {
	l.mu.RLock()
	ns, ok := l.namespaces[appID]
	l.mu.RUnlock()
	if ok {
		return ns
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if ns, ok := l.namespaces[appID]; ok {
		return ns
	}
	ns = namespace.New()
	l.namespaces[appID] = ns
	return ns
}

// AddSocket implements Adapter.
func (l *Local) AddSocket(appID string, conn *namespace.Connection) {
	l.namespaceFor(appID).AddSocket(conn)
	l.metrics.ConnectionOpened(appID)
}

// BindUser implements Adapter.
func (l *Local) BindUser(appID, socketID, userID string) {
	l.namespaceFor(appID).BindUser(socketID, userID)
}

// RemoveSocket implements Adapter.
func (l *Local) RemoveSocket(appID, socketID string) []namespace.Departure {
	deps := l.namespaceFor(appID).RemoveSocket(socketID)
	l.metrics.ConnectionClosed(appID)
	return deps
}

// AddToChannel implements Adapter.
func (l *Local) AddToChannel(appID string, ch channel.Name, socketID string, member *channel.MemberInfo) namespace.JoinResult {
	res := l.namespaceFor(appID).Subscribe(socketID, ch, member)
	if res.ChannelOccupied {
		l.metrics.ChannelOccupied(appID)
	}
	return res
}

// RemoveFromChannel implements Adapter.
func (l *Local) RemoveFromChannel(appID string, ch channel.Name, socketID string) namespace.LeaveResult {
	res := l.namespaceFor(appID).Unsubscribe(socketID, ch)
	if res.ChannelVacated {
		l.metrics.ChannelVacated(appID)
	}
	return res
}

// Broadcast implements Adapter. It never crosses nodes; Horizontal wraps
// this to also publish onto the backplane.
func (l *Local) Broadcast(ctx context.Context, appID string, ch channel.Name, message []byte, exceptSocket string) error {
	ns := l.namespaceFor(appID)
	for _, conn := range ns.Sockets(ch) {
		if conn.SocketID == exceptSocket {
			continue
		}
		if err := conn.Send(message); err != nil {
			log.Printf("adapter: write to socket %s failed, scheduling cleanup: %v", conn.SocketID, err)
			go l.RemoveSocket(appID, conn.SocketID)
			continue
		}
		l.metrics.MessageSent(appID)
	}
	return nil
}

// Send implements Adapter.
func (l *Local) Send(ctx context.Context, appID, socketID string, message []byte) error {
	ns := l.namespaceFor(appID)
	conn, ok := ns.Socket(socketID)
	if !ok {
		return nil
	}
	return conn.Send(message)
}

// Disconnect implements Adapter: it closes the socket's underlying
// transport with the given protocol code, then removes it from the
// namespace so membership and webhooks stay consistent even if the
// close races with the socket's own readPump exit.
func (l *Local) Disconnect(ctx context.Context, appID, socketID string, code int, reason string) error {
	ns := l.namespaceFor(appID)
	if conn, ok := ns.Socket(socketID); ok && conn.Close != nil {
		conn.Close(code, reason)
	}
	l.RemoveSocket(appID, socketID)
	return nil
}

// ChannelMembers implements Adapter.
func (l *Local) ChannelMembers(ctx context.Context, appID string, ch channel.Name) (map[string]channel.MemberInfo, error) {
	return l.namespaceFor(appID).Members(ch), nil
}

// ChannelSockets implements Adapter.
func (l *Local) ChannelSockets(ctx context.Context, appID string, ch channel.Name) ([]string, error) {
	conns := l.namespaceFor(appID).Sockets(ch)
	out := make([]string, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.SocketID)
	}
	return out, nil
}

// ChannelsWithSocketCount implements Adapter.
func (l *Local) ChannelsWithSocketCount(ctx context.Context, appID, prefix string) (map[channel.Name]int, error) {
	ns := l.namespaceFor(appID)
	out := make(map[channel.Name]int)
	for _, name := range ns.ChannelsWithPrefix(prefix) {
		out[name] = len(ns.Sockets(name))
	}
	return out, nil
}

// SocketCount implements Adapter.
func (l *Local) SocketCount(ctx context.Context, appID string) (int, error) {
	return l.namespaceFor(appID).SocketCount(), nil
}

// closeNormal is the RFC 6455 "normal closure" code used for
// administrative disconnects (forced termination, graceful shutdown)
// that are not protocol violations.
const closeNormal = 1000

// TerminateUser implements Adapter.
func (l *Local) TerminateUser(ctx context.Context, appID, userID string) ([]string, error) {
	ns := l.namespaceFor(appID)
	conns := ns.SocketsForUser(userID)
	out := make([]string, 0, len(conns))
	for _, conn := range conns {
		out = append(out, conn.SocketID)
		if conn.Close != nil {
			conn.Close(closeNormal, "terminated by server")
		}
		l.RemoveSocket(appID, conn.SocketID)
	}
	return out, nil
}

// Close implements Adapter; Local holds no transport to release.
func (l *Local) Close() error { return nil }
