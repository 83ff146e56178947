// Package namespace holds the per-app connection and channel index that
// the Local Adapter and Channel Manager operate on: which sockets exist,
// which channels each socket has joined, and which users are online.
package namespace

import (
	"sync"

	"github.com/lumenbridge/broker/internal/channel"
)

// Connection is everything the namespace tracks about one socket. The
// WebSocket send path and JSON payload live outside this struct (owned
// by the Connection Handler); Send is the narrow interface this package
// needs to fan messages out without importing gorilla/websocket.
type Connection struct {
	SocketID string
	UserID   string
	Send     func(frame []byte) error
	Close    func(code int, reason string)

	mu       sync.RWMutex
	channels map[channel.Name]bool
}

// NewConnection builds an empty Connection ready to be registered. close
// may be nil, in which case Disconnect/TerminateUser only remove the
// socket from the namespace without closing its underlying transport.
func NewConnection(socketID string, send func([]byte) error, close func(code int, reason string)) *Connection {
	return &Connection{
		SocketID: socketID,
		Send:     send,
		Close:    close,
		channels: make(map[channel.Name]bool),
	}
}

func (c *Connection) addChannel(name channel.Name) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[name] = true
}

func (c *Connection) removeChannel(name channel.Name) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, name)
}

// Channels returns a snapshot of the channels this socket has joined.
func (c *Connection) Channels() []channel.Name {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]channel.Name, 0, len(c.channels))
	for n := range c.channels {
		out = append(out, n)
	}
	return out
}

// InChannel reports whether the socket has joined name.
func (c *Connection) InChannel(name channel.Name) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[name]
}

// Namespace is the single-app index: sockets, the channels they've
// joined, and presence rosters. One Namespace exists per app key held
// by a given node; the Local Adapter owns one map of these, keyed by
// app id.
type Namespace struct {
	mu sync.RWMutex

	sockets map[string]*Connection          // socket id -> connection
	members map[channel.Name]map[string]bool // channel -> socket ids
	users   map[string]map[string]bool       // user id -> socket ids
	roster  map[channel.Name]map[string]channel.MemberInfo // channel -> user id -> info, presence only
}

// New returns an empty Namespace.
func New() *Namespace {
	return &Namespace{
		sockets: make(map[string]*Connection),
		members: make(map[channel.Name]map[string]bool),
		users:   make(map[string]map[string]bool),
		roster:  make(map[channel.Name]map[string]channel.MemberInfo),
	}
}

// AddSocket registers a new connection. Call once per socket, before any
// subscribe.
func (ns *Namespace) AddSocket(conn *Connection) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.sockets[conn.SocketID] = conn
}

// BindUser associates a socket with an authenticated user id, as set by
// pusher:signin. Rebinding an already-bound socket moves it out of its
// previous user's set so ns.users never holds a stale socket id.
func (ns *Namespace) BindUser(socketID, userID string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	conn, ok := ns.sockets[socketID]
	if !ok {
		return
	}
	if conn.UserID != "" && conn.UserID != userID {
		if set, ok := ns.users[conn.UserID]; ok {
			delete(set, socketID)
			if len(set) == 0 {
				delete(ns.users, conn.UserID)
			}
		}
	}
	conn.UserID = userID

	set, ok := ns.users[userID]
	if !ok {
		set = make(map[string]bool)
		ns.users[userID] = set
	}
	set[socketID] = true
}

// Departure describes one channel a removed socket was subscribed to:
// whether the channel is now empty and, for presence channels, whether
// the socket was the last one of its user in that channel.
type Departure struct {
	Channel        channel.Name
	UserID         string
	LastOfUser     bool
	ChannelVacated bool
}

// RemoveSocket tears down every trace of a disconnecting socket: its
// channel memberships, presence roster entries, and user index entry.
// Returns one Departure per channel the socket was subscribed to.
func (ns *Namespace) RemoveSocket(socketID string) []Departure {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	conn, ok := ns.sockets[socketID]
	if !ok {
		return nil
	}
	delete(ns.sockets, socketID)

	var departures []Departure
	for _, name := range conn.Channels() {
		set := ns.members[name]
		delete(set, socketID)
		vacated := len(set) == 0
		if vacated {
			delete(ns.members, name)
		}
		dep := Departure{Channel: name, UserID: conn.UserID, ChannelVacated: vacated}
		if name.IsPresence() && conn.UserID != "" {
			dep.LastOfUser = !ns.userStillInChannelLocked(conn.UserID, name, socketID)
			if dep.LastOfUser {
				if r := ns.roster[name]; r != nil {
					delete(r, conn.UserID)
					if len(r) == 0 {
						delete(ns.roster, name)
					}
				}
			}
		}
		departures = append(departures, dep)
	}

	if conn.UserID != "" {
		if set := ns.users[conn.UserID]; set != nil {
			delete(set, socketID)
			if len(set) == 0 {
				delete(ns.users, conn.UserID)
			}
		}
	}
	return departures
}

func (ns *Namespace) userStillInChannelLocked(userID string, name channel.Name, excludeSocket string) bool {
	for sid := range ns.members[name] {
		if sid == excludeSocket {
			continue
		}
		if conn, ok := ns.sockets[sid]; ok && conn.UserID == userID {
			return true
		}
	}
	return false
}

// JoinResult reports whether a Subscribe call was the first subscriber
// to occupy the channel and, for presence channels, the first join for
// that user id.
type JoinResult struct {
	ChannelOccupied bool
	FirstOfUser     bool
}

// Subscribe adds socketID to name's member set. member is only consulted
// for presence channels.
func (ns *Namespace) Subscribe(socketID string, name channel.Name, member *channel.MemberInfo) JoinResult {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	conn, ok := ns.sockets[socketID]
	if !ok {
		return JoinResult{}
	}

	set, existed := ns.members[name]
	if !existed {
		set = make(map[string]bool)
		ns.members[name] = set
	}
	set[socketID] = true
	conn.addChannel(name)

	res := JoinResult{ChannelOccupied: !existed}
	if name.IsPresence() && member != nil {
		r, ok := ns.roster[name]
		if !ok {
			r = make(map[string]channel.MemberInfo)
			ns.roster[name] = r
		}
		if _, already := r[member.UserID]; !already {
			res.FirstOfUser = true
		}
		r[member.UserID] = *member
		if conn.UserID == "" {
			conn.UserID = member.UserID
		}
	}
	return res
}

// LeaveResult mirrors Departure but for an explicit unsubscribe call
// rather than a full disconnect.
type LeaveResult struct {
	ChannelVacated bool
	LastOfUser     bool
	UserID         string
}

// Unsubscribe removes socketID from name's member set.
func (ns *Namespace) Unsubscribe(socketID string, name channel.Name) LeaveResult {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	conn, ok := ns.sockets[socketID]
	if !ok {
		return LeaveResult{}
	}
	conn.removeChannel(name)

	set, ok := ns.members[name]
	if !ok {
		return LeaveResult{}
	}
	delete(set, socketID)
	res := LeaveResult{UserID: conn.UserID}
	if len(set) == 0 {
		delete(ns.members, name)
		res.ChannelVacated = true
	}
	if name.IsPresence() && conn.UserID != "" {
		res.LastOfUser = !ns.userStillInChannelLocked(conn.UserID, name, socketID)
		if res.LastOfUser {
			if r := ns.roster[name]; r != nil {
				delete(r, conn.UserID)
				if len(r) == 0 {
					delete(ns.roster, name)
				}
			}
		}
	}
	return res
}

// Sockets returns the connections currently subscribed to name.
func (ns *Namespace) Sockets(name channel.Name) []*Connection {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	set := ns.members[name]
	out := make([]*Connection, 0, len(set))
	for sid := range set {
		if conn, ok := ns.sockets[sid]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// SocketsForUser returns every connection bound to userID.
func (ns *Namespace) SocketsForUser(userID string) []*Connection {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	set := ns.users[userID]
	out := make([]*Connection, 0, len(set))
	for sid := range set {
		if conn, ok := ns.sockets[sid]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// Members returns a snapshot of a presence channel's roster.
func (ns *Namespace) Members(name channel.Name) map[string]channel.MemberInfo {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	r := ns.roster[name]
	out := make(map[string]channel.MemberInfo, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ChannelCount returns the number of distinct occupied channels.
func (ns *Namespace) ChannelCount() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.members)
}

// SocketCount returns the number of sockets registered in this namespace.
func (ns *Namespace) SocketCount() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.sockets)
}

// Occupied reports whether name currently has at least one subscriber.
func (ns *Namespace) Occupied(name channel.Name) bool {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.members[name]) > 0
}

// ChannelsWithPrefix lists occupied channels whose name starts with prefix,
// used by the channel-inspection HTTP endpoint's filter parameter.
func (ns *Namespace) ChannelsWithPrefix(prefix string) []channel.Name {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]channel.Name, 0)
	for name, set := range ns.members {
		if len(set) == 0 {
			continue
		}
		if prefix == "" || hasPrefix(string(name), prefix) {
			out = append(out, name)
		}
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Socket looks up a single connection by id.
func (ns *Namespace) Socket(socketID string) (*Connection, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	conn, ok := ns.sockets[socketID]
	return conn, ok
}
