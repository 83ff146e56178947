package adapter

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/namespace"
)

type broadcastEnvelope struct {
	NodeID       string          `json:"node_id"`
	AppID        string          `json:"app_id"`
	Channel      string          `json:"channel"`
	Message      json.RawMessage `json:"message"`
	ExceptSocket string          `json:"except_socket,omitempty"`
}

type requestOp string

const (
	opChannelMembers    requestOp = "channel_members"
	opChannelSockets    requestOp = "channel_sockets"
	opChannelsWithCount requestOp = "channels_with_counts"
	opSocketCount       requestOp = "socket_count"
	opTerminateUser     requestOp = "terminate_user"
	opDisconnect        requestOp = "disconnect"
)

type requestEnvelope struct {
	RequestID string          `json:"request_id"`
	NodeID    string          `json:"node_id"`
	AppID     string          `json:"app_id"`
	Op        requestOp       `json:"op"`
	Args      json.RawMessage `json:"args,omitempty"`
}

type responseEnvelope struct {
	RequestID string          `json:"request_id"`
	NodeID    string          `json:"node_id"`
	Payload   json.RawMessage `json:"payload"`
}

type heartbeatEnvelope struct {
	NodeID string `json:"node_id"`
}

// HorizontalConfig tunes the mesh's topic names and timing. Prefix must
// end in ":" per the backplane key layout.
type HorizontalConfig struct {
	Prefix            string
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

func (c HorizontalConfig) withDefaults() HorizontalConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 2 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 15 * time.Second
	}
	return c
}

// Horizontal wraps a Local adapter with a mesh layer over Transport: it
// publishes every local broadcast and serves peers' state requests,
// while merging peers' replies into its own reads.
type Horizontal struct {
	local     *Local
	transport Transport
	nodeID    string
	cfg       HorizontalConfig

	mu       sync.Mutex
	peers    map[string]time.Time // node id -> last heartbeat seen
	pending  map[string]chan responseEnvelope
	stopOnce sync.Once
	stop     chan struct{}
}

// NewHorizontal starts the mesh: subscribes to the broadcast, request,
// response and heartbeat topics, and begins publishing heartbeats.
func NewHorizontal(local *Local, transport Transport, cfg HorizontalConfig) (*Horizontal, error) {
	cfg = cfg.withDefaults()
	h := &Horizontal{
		local:     local,
		transport: transport,
		nodeID:    uuid.NewString(),
		cfg:       cfg,
		peers:     make(map[string]time.Time),
		pending:   make(map[string]chan responseEnvelope),
		stop:      make(chan struct{}),
	}

	ctx := context.Background()
	if err := transport.Subscribe(ctx, cfg.Prefix+"broadcast", h.onBroadcast); err != nil {
		return nil, err
	}
	if err := transport.Subscribe(ctx, cfg.Prefix+"req", h.onRequest); err != nil {
		return nil, err
	}
	if err := transport.Subscribe(ctx, cfg.Prefix+"res", h.onResponse); err != nil {
		return nil, err
	}
	if err := transport.Subscribe(ctx, cfg.Prefix+"heartbeat", h.onHeartbeat); err != nil {
		return nil, err
	}

	h.publishHeartbeat()
	go h.heartbeatLoop()
	return h, nil
}

func (h *Horizontal) heartbeatLoop() {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.publishHeartbeat()
		case <-h.stop:
			return
		}
	}
}

func (h *Horizontal) publishHeartbeat() {
	payload, _ := json.Marshal(heartbeatEnvelope{NodeID: h.nodeID})
	if err := h.transport.Publish(context.Background(), h.cfg.Prefix+"heartbeat", payload); err != nil {
		log.Printf("adapter: heartbeat publish failed: %v", err)
	}
}

func (h *Horizontal) onHeartbeat(payload []byte) {
	var env heartbeatEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.NodeID == h.nodeID {
		return
	}
	h.mu.Lock()
	h.peers[env.NodeID] = time.Now()
	h.mu.Unlock()
}

// livePeerCount returns the number of distinct peers heartbeated within
// HeartbeatTimeout, not counting this node.
func (h *Horizontal) livePeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	cutoff := time.Now().Add(-h.cfg.HeartbeatTimeout)
	for id, seen := range h.peers {
		if seen.After(cutoff) {
			n++
		} else {
			delete(h.peers, id)
		}
	}
	return n
}

func (h *Horizontal) onBroadcast(payload []byte) {
	var env broadcastEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("adapter: malformed broadcast envelope: %v", err)
		return
	}
	if env.NodeID == h.nodeID {
		return
	}
	h.local.Broadcast(context.Background(), env.AppID, channel.Name(env.Channel), env.Message, env.ExceptSocket)
}

// Broadcast implements Adapter: fans out locally first, then publishes
// so peers fan out to their own subscribers.
func (h *Horizontal) Broadcast(ctx context.Context, appID string, ch channel.Name, message []byte, exceptSocket string) error {
	if err := h.local.Broadcast(ctx, appID, ch, message, exceptSocket); err != nil {
		return err
	}
	env := broadcastEnvelope{
		NodeID:       h.nodeID,
		AppID:        appID,
		Channel:      string(ch),
		Message:      json.RawMessage(message),
		ExceptSocket: exceptSocket,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return h.transport.Publish(ctx, h.cfg.Prefix+"broadcast", payload)
}

type channelArgs struct {
	Channel string `json:"channel,omitempty"`
	Prefix  string `json:"prefix,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	SocketID string `json:"socket_id,omitempty"`
	Code    int    `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Horizontal) onRequest(payload []byte) {
	var env requestEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("adapter: malformed request envelope: %v", err)
		return
	}
	if env.NodeID == h.nodeID {
		return
	}
	var args channelArgs
	_ = json.Unmarshal(env.Args, &args)

	ctx := context.Background()
	var result interface{}
	switch env.Op {
	case opChannelMembers:
		result, _ = h.local.ChannelMembers(ctx, env.AppID, channel.Name(args.Channel))
	case opChannelSockets:
		result, _ = h.local.ChannelSockets(ctx, env.AppID, channel.Name(args.Channel))
	case opChannelsWithCount:
		result, _ = h.local.ChannelsWithSocketCount(ctx, env.AppID, args.Prefix)
	case opSocketCount:
		result, _ = h.local.SocketCount(ctx, env.AppID)
	case opTerminateUser:
		result, _ = h.local.TerminateUser(ctx, env.AppID, args.UserID)
	case opDisconnect:
		h.local.Disconnect(ctx, env.AppID, args.SocketID, args.Code, args.Reason)
		result = true
	default:
		return
	}

	payloadOut, err := json.Marshal(result)
	if err != nil {
		return
	}
	resp := responseEnvelope{RequestID: env.RequestID, NodeID: h.nodeID, Payload: payloadOut}
	respBytes, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := h.transport.Publish(ctx, h.cfg.Prefix+"res", respBytes); err != nil {
		log.Printf("adapter: response publish failed: %v", err)
	}
}

func (h *Horizontal) onResponse(payload []byte) {
	var env responseEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return
	}
	h.mu.Lock()
	ch, ok := h.pending[env.RequestID]
	h.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- env:
	default:
	}
}

// broadcastRequest publishes a request envelope and collects responses
// from every live peer (or until ctx/RequestTimeout expires), returning
// the raw payloads received.
func (h *Horizontal) broadcastRequest(ctx context.Context, appID string, op requestOp, args interface{}) ([]json.RawMessage, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	replyCh := make(chan responseEnvelope, 32)

	h.mu.Lock()
	h.pending[reqID] = replyCh
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, reqID)
		h.mu.Unlock()
	}()

	env := requestEnvelope{RequestID: reqID, NodeID: h.nodeID, AppID: appID, Op: op, Args: argsBytes}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if err := h.transport.Publish(ctx, h.cfg.Prefix+"req", payload); err != nil {
		return nil, err
	}

	timeout := h.cfg.RequestTimeout
	deadline := time.After(timeout)
	want := h.livePeerCount()
	if want == 0 {
		return nil, nil
	}
	seen := make(map[string]bool)
	var payloads []json.RawMessage
	for {
		select {
		case resp := <-replyCh:
			if seen[resp.NodeID] {
				continue
			}
			seen[resp.NodeID] = true
			payloads = append(payloads, resp.Payload)
			if len(seen) >= want {
				return payloads, nil
			}
		case <-deadline:
			return payloads, nil
		case <-ctx.Done():
			return payloads, ctx.Err()
		}
	}
}

// AddSocket implements Adapter; socket registration is node-local, there
// is nothing to mesh until the socket joins a channel.
func (h *Horizontal) AddSocket(appID string, conn *namespace.Connection) {
	h.local.AddSocket(appID, conn)
}

// BindUser implements Adapter; the user index is node-local, matching
// AddSocket above.
func (h *Horizontal) BindUser(appID, socketID, userID string) {
	h.local.BindUser(appID, socketID, userID)
}

// RemoveSocket implements Adapter.
func (h *Horizontal) RemoveSocket(appID, socketID string) []namespace.Departure {
	return h.local.RemoveSocket(appID, socketID)
}

// AddToChannel implements Adapter.
func (h *Horizontal) AddToChannel(appID string, ch channel.Name, socketID string, member *channel.MemberInfo) namespace.JoinResult {
	return h.local.AddToChannel(appID, ch, socketID, member)
}

// RemoveFromChannel implements Adapter.
func (h *Horizontal) RemoveFromChannel(appID string, ch channel.Name, socketID string) namespace.LeaveResult {
	return h.local.RemoveFromChannel(appID, ch, socketID)
}

// Send implements Adapter by delivering through the local adapter only;
// a socket connected to another node is not reached.
func (h *Horizontal) Send(ctx context.Context, appID, socketID string, message []byte) error {
	return h.local.Send(ctx, appID, socketID, message)
}

// Disconnect implements Adapter: closes locally, and asks every peer to
// do the same in case the socket lives elsewhere.
func (h *Horizontal) Disconnect(ctx context.Context, appID, socketID string, code int, reason string) error {
	h.local.Disconnect(ctx, appID, socketID, code, reason)
	_, err := h.broadcastRequest(ctx, appID, opDisconnect, channelArgs{SocketID: socketID, Code: code, Reason: reason})
	return err
}

// ChannelMembers implements Adapter, merging this node's roster with
// every peer's.
func (h *Horizontal) ChannelMembers(ctx context.Context, appID string, ch channel.Name) (map[string]channel.MemberInfo, error) {
	merged, err := h.local.ChannelMembers(ctx, appID, ch)
	if err != nil {
		return nil, err
	}
	payloads, err := h.broadcastRequest(ctx, appID, opChannelMembers, channelArgs{Channel: string(ch)})
	if err != nil {
		return merged, err
	}
	for _, p := range payloads {
		var part map[string]channel.MemberInfo
		if err := json.Unmarshal(p, &part); err != nil {
			continue
		}
		for k, v := range part {
			merged[k] = v
		}
	}
	return merged, nil
}

// ChannelSockets implements Adapter, merging this node's subscriber list
// with every peer's.
func (h *Horizontal) ChannelSockets(ctx context.Context, appID string, ch channel.Name) ([]string, error) {
	local, err := h.local.ChannelSockets(ctx, appID, ch)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(local))
	for _, s := range local {
		seen[s] = true
	}
	payloads, err := h.broadcastRequest(ctx, appID, opChannelSockets, channelArgs{Channel: string(ch)})
	if err != nil {
		return local, err
	}
	for _, p := range payloads {
		var part []string
		if err := json.Unmarshal(p, &part); err != nil {
			continue
		}
		for _, s := range part {
			if !seen[s] {
				seen[s] = true
				local = append(local, s)
			}
		}
	}
	return local, nil
}

// ChannelsWithSocketCount implements Adapter, summing counts across
// nodes for channels both report.
func (h *Horizontal) ChannelsWithSocketCount(ctx context.Context, appID, prefix string) (map[channel.Name]int, error) {
	merged, err := h.local.ChannelsWithSocketCount(ctx, appID, prefix)
	if err != nil {
		return nil, err
	}
	payloads, err := h.broadcastRequest(ctx, appID, opChannelsWithCount, channelArgs{Prefix: prefix})
	if err != nil {
		return merged, err
	}
	for _, p := range payloads {
		var part map[channel.Name]int
		if err := json.Unmarshal(p, &part); err != nil {
			continue
		}
		for k, v := range part {
			merged[k] += v
		}
	}
	return merged, nil
}

// SocketCount implements Adapter, summing across nodes.
func (h *Horizontal) SocketCount(ctx context.Context, appID string) (int, error) {
	total, err := h.local.SocketCount(ctx, appID)
	if err != nil {
		return 0, err
	}
	payloads, err := h.broadcastRequest(ctx, appID, opSocketCount, channelArgs{})
	if err != nil {
		return total, err
	}
	for _, p := range payloads {
		var n int
		if err := json.Unmarshal(p, &n); err != nil {
			continue
		}
		total += n
	}
	return total, nil
}

// TerminateUser implements Adapter, closing the user's sockets on every
// node and returning the union of closed socket ids.
func (h *Horizontal) TerminateUser(ctx context.Context, appID, userID string) ([]string, error) {
	local, err := h.local.TerminateUser(ctx, appID, userID)
	if err != nil {
		return nil, err
	}
	payloads, err := h.broadcastRequest(ctx, appID, opTerminateUser, channelArgs{UserID: userID})
	if err != nil {
		return local, err
	}
	for _, p := range payloads {
		var part []string
		if err := json.Unmarshal(p, &part); err != nil {
			continue
		}
		local = append(local, part...)
	}
	return local, nil
}

// Close implements Adapter.
func (h *Horizontal) Close() error {
	h.stopOnce.Do(func() { close(h.stop) })
	return h.transport.Close()
}
