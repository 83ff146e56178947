// Package adapter implements channel fan-out, first for a single node
// (Local) and then meshed across nodes over a shared backplane
// (Horizontal), per the pluggable transports in internal/adapter's
// transport files.
package adapter

import (
	"context"

	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/namespace"
)

// Adapter is the fan-out contract the Channel Manager and HTTP API hold
// a handle to. Local serves one process; Horizontal wraps Local with a
// mesh so that every operation also reaches sockets on other nodes.
type Adapter interface {
	// AddSocket registers a freshly accepted connection for appID.
	AddSocket(appID string, conn *namespace.Connection)
	// BindUser associates socketID with an authenticated user id, as set
	// by pusher:signin.
	BindUser(appID, socketID, userID string)
	// RemoveSocket tears a connection down, running the Unsubscribe path
	// for every channel it held, and returns those departures.
	RemoveSocket(appID, socketID string) []namespace.Departure

	// AddToChannel joins socketID to ch, updating the presence roster
	// when member is non-nil.
	AddToChannel(appID string, ch channel.Name, socketID string, member *channel.MemberInfo) namespace.JoinResult
	// RemoveFromChannel leaves socketID from ch.
	RemoveFromChannel(appID string, ch channel.Name, socketID string) namespace.LeaveResult

	// Broadcast pushes message to every local and remote subscriber of
	// ch except exceptSocket (pass "" for none).
	Broadcast(ctx context.Context, appID string, ch channel.Name, message []byte, exceptSocket string) error
	// Send unicasts message to one socket id. Both implementations
	// deliver only to sockets connected to this node.
	Send(ctx context.Context, appID, socketID string, message []byte) error
	// Disconnect closes a socket with a protocol close code, locally or
	// by asking the node that holds it.
	Disconnect(ctx context.Context, appID, socketID string, code int, reason string) error

	// ChannelMembers returns the presence roster merged across nodes.
	ChannelMembers(ctx context.Context, appID string, ch channel.Name) (map[string]channel.MemberInfo, error)
	// ChannelSockets returns every socket id subscribed to ch, merged
	// across nodes.
	ChannelSockets(ctx context.Context, appID string, ch channel.Name) ([]string, error)
	// ChannelsWithSocketCount returns occupied channels under prefix
	// with their subscriber counts summed across nodes.
	ChannelsWithSocketCount(ctx context.Context, appID, prefix string) (map[channel.Name]int, error)
	// SocketCount returns the number of sockets for appID, summed
	// across nodes.
	SocketCount(ctx context.Context, appID string) (int, error)
	// TerminateUser disconnects every socket bound to userID, wherever
	// connected, and returns the socket ids that were closed.
	TerminateUser(ctx context.Context, appID, userID string) ([]string, error)

	// Close releases any transport resources.
	Close() error
}
