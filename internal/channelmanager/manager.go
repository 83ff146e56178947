// Package channelmanager implements the subscribe/unsubscribe/client-event
// state machine: auth verification, presence roster bookkeeping, and the
// webhook and broadcast side effects each transition triggers.
package channelmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lumenbridge/broker/internal/adapter"
	"github.com/lumenbridge/broker/internal/app"
	"github.com/lumenbridge/broker/internal/cache"
	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/namespace"
	"github.com/lumenbridge/broker/internal/token"
	"github.com/lumenbridge/broker/internal/webhook"
)

// Error codes sent back to the client as pusher:error frames, per the
// close-code table.
const (
	CodeSubscriptionAuthFailed = 4009
)

// Errors returned by Manager methods; callers translate these to the
// appropriate protocol error frame or close code.
var (
	ErrAuthFailed        = fmt.Errorf("channelmanager: subscription auth failed")
	ErrTooManyChannels   = fmt.Errorf("channelmanager: channel limit exceeded")
	ErrInvalidChannel    = fmt.Errorf("channelmanager: invalid channel name")
	ErrPresenceOversize  = fmt.Errorf("channelmanager: presence member data too large")
	ErrPresenceFull      = fmt.Errorf("channelmanager: presence channel full")
	ErrClientEventsOff   = fmt.Errorf("channelmanager: client events not enabled for this app")
	ErrClientChannelKind = fmt.Errorf("channelmanager: client events require a private or presence channel")
	ErrClientRateLimited = fmt.Errorf("channelmanager: client event rate limit exceeded")
)

// SubscribeRequest carries the parsed pusher:subscribe frame fields.
type SubscribeRequest struct {
	Channel     channel.Name
	Auth        string
	ChannelData string // raw channel_data for presence channels
}

// SubscribeResult is what the Connection Handler sends back as
// pusher_internal:subscription_succeeded.
type SubscribeResult struct {
	Channel  channel.Name
	Presence *PresencePayload // nil for non-presence channels
	CacheHit []byte           // non-nil if the cache holds an entry under cacheKey; nothing in the broker writes that key
}

// PresencePayload is the roster snapshot carried in subscription_succeeded
// and matches Pusher's {count, ids, hash} shape.
type PresencePayload struct {
	Count int                           `json:"count"`
	IDs   []string                      `json:"ids"`
	Hash  map[string]interface{}        `json:"hash"`
}

// Manager runs the state machine described in spec.md §4.4 against one
// Adapter, deciding auth, limits, and side effects.
type Manager struct {
	adapter  adapter.Adapter
	cache    cache.Cache
	webhooks webhook.Emitter

	mu       sync.Mutex
	eventBuckets map[string]*bucket // socket id -> per-second client-event counter
}

// New builds a Manager over the given Adapter, Cache (for cache-channel
// replay) and webhook Emitter.
func New(ad adapter.Adapter, c cache.Cache, wh webhook.Emitter) *Manager {
	return &Manager{
		adapter:      ad,
		cache:        c,
		webhooks:     wh,
		eventBuckets: make(map[string]*bucket),
	}
}

type bucket struct {
	mu       sync.Mutex
	second   int64
	count    int64
}

func (b *bucket) allow(limit int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now().Unix()
	if now != b.second {
		b.second = now
		b.count = 0
	}
	b.count++
	return b.count <= limit
}

// Subscribe runs the subscribe state machine for socketID on req.Channel.
func (m *Manager) Subscribe(ctx context.Context, a app.App, socketID, userID string, req SubscribeRequest, channelCount int) (SubscribeResult, error) {
	if !channel.Valid(string(req.Channel)) {
		return SubscribeResult{}, ErrInvalidChannel
	}

	if req.Channel.RequiresAuth() {
		if !token.VerifyChannelAuth(a.Secret, socketID, string(req.Channel), req.ChannelData, req.Auth) {
			return SubscribeResult{}, ErrAuthFailed
		}
	}

	if channelCount >= a.MaxChannelsPerConnection {
		return SubscribeResult{}, ErrTooManyChannels
	}

	var member *channel.MemberInfo
	if req.Channel.IsPresence() {
		parsed, err := parsePresenceData(req.ChannelData, a.MaxPresenceMemberSizeKB)
		if err != nil {
			return SubscribeResult{}, err
		}
		member = &parsed
	}

	res := m.adapter.AddToChannel(a.ID, req.Channel, socketID, member)

	if req.Channel.IsPresence() && member != nil {
		members, err := m.adapter.ChannelMembers(ctx, a.ID, req.Channel)
		if err == nil && len(members) > a.MaxPresenceMembersPerChannel {
			m.adapter.RemoveFromChannel(a.ID, req.Channel, socketID)
			return SubscribeResult{}, ErrPresenceFull
		}
	}

	if res.ChannelOccupied {
		m.webhooks.Emit(ctx, a.ID, webhook.Event{Type: webhook.ChannelOccupied, Channel: string(req.Channel)})
	}

	var presencePayload *PresencePayload
	if req.Channel.IsPresence() {
		if res.FirstOfUser && member != nil {
			m.webhooks.Emit(ctx, a.ID, webhook.Event{Type: webhook.MemberAdded, Channel: string(req.Channel), UserID: member.UserID})
			m.broadcastMemberEvent(ctx, a.ID, req.Channel, socketID, "pusher_internal:member_added", *member)
		}
		members, _ := m.adapter.ChannelMembers(ctx, a.ID, req.Channel)
		presencePayload = buildPresencePayload(members)
	}

	result := SubscribeResult{Channel: req.Channel, Presence: presencePayload}

	if req.Channel.IsCache() {
		if raw, ok, _ := m.cache.Get(ctx, cacheKey(a.ID, req.Channel)); ok {
			result.CacheHit = []byte(raw)
		} else {
			m.webhooks.Emit(ctx, a.ID, webhook.Event{Type: webhook.CacheMiss, Channel: string(req.Channel)})
		}
	}

	return result, nil
}

// Unsubscribe runs the unsubscribe state machine for one explicit
// pusher:unsubscribe frame.
func (m *Manager) Unsubscribe(ctx context.Context, appID string, ch channel.Name, socketID string) {
	res := m.adapter.RemoveFromChannel(appID, ch, socketID)
	m.emitDepartureEffects(ctx, appID, socketID, namespace.Departure{
		Channel:        ch,
		UserID:         res.UserID,
		LastOfUser:     res.LastOfUser,
		ChannelVacated: res.ChannelVacated,
	})
}

// HandleDisconnect runs the Unsubscribe path for every channel a closing
// socket held, per spec.md §4.5's close-cleanup requirement, then drops
// its rate-limit bucket.
func (m *Manager) HandleDisconnect(ctx context.Context, appID, socketID string) {
	departures := m.adapter.RemoveSocket(appID, socketID)
	for _, dep := range departures {
		m.emitDepartureEffects(ctx, appID, socketID, dep)
	}
	m.ForgetSocket(socketID)
}

func (m *Manager) emitDepartureEffects(ctx context.Context, appID, socketID string, dep namespace.Departure) {
	if dep.Channel.IsPresence() && dep.LastOfUser {
		m.webhooks.Emit(ctx, appID, webhook.Event{Type: webhook.MemberRemoved, Channel: string(dep.Channel), UserID: dep.UserID})
		m.broadcastMemberEvent(ctx, appID, dep.Channel, socketID, "pusher_internal:member_removed", channel.MemberInfo{UserID: dep.UserID})
	}
	if dep.ChannelVacated {
		m.webhooks.Emit(ctx, appID, webhook.Event{Type: webhook.ChannelVacated, Channel: string(dep.Channel)})
	}
}

// ClientEvent runs the client-event path: name begins with "client-".
func (m *Manager) ClientEvent(ctx context.Context, a app.App, ch channel.Name, socketID, eventName string, data interface{}) error {
	if !a.EnableClientMessages {
		return ErrClientEventsOff
	}
	if !ch.IsPrivate() {
		return ErrClientChannelKind
	}

	m.mu.Lock()
	b, ok := m.eventBuckets[socketID]
	if !ok {
		b = &bucket{}
		m.eventBuckets[socketID] = b
	}
	m.mu.Unlock()

	if !b.allow(a.MaxClientEventsPerSecond) {
		return ErrClientRateLimited
	}

	frame, err := json.Marshal(map[string]interface{}{
		"event":   eventName,
		"channel": string(ch),
		"data":    data,
	})
	if err != nil {
		return err
	}
	if err := m.adapter.Broadcast(ctx, a.ID, ch, frame, socketID); err != nil {
		return err
	}
	m.webhooks.Emit(ctx, a.ID, webhook.Event{Type: webhook.ClientEvent, Channel: string(ch), Event: eventName, Data: data})
	return nil
}

// ForgetSocket drops the per-socket rate bucket on disconnect.
func (m *Manager) ForgetSocket(socketID string) {
	m.mu.Lock()
	delete(m.eventBuckets, socketID)
	m.mu.Unlock()
}

func (m *Manager) broadcastMemberEvent(ctx context.Context, appID string, ch channel.Name, exceptSocket, eventName string, member channel.MemberInfo) {
	frame, err := json.Marshal(map[string]interface{}{
		"event":   eventName,
		"channel": string(ch),
		"data":    member,
	})
	if err != nil {
		return
	}
	m.adapter.Broadcast(ctx, appID, ch, frame, exceptSocket)
}

func cacheKey(appID string, ch channel.Name) string {
	return "cache-channel:" + appID + ":" + string(ch)
}

func buildPresencePayload(members map[string]channel.MemberInfo) *PresencePayload {
	ids := make([]string, 0, len(members))
	hash := make(map[string]interface{}, len(members))
	for userID, info := range members {
		ids = append(ids, userID)
		hash[userID] = info.UserInfo
	}
	return &PresencePayload{Count: len(members), IDs: ids, Hash: hash}
}

func parsePresenceData(raw string, maxKB int) (channel.MemberInfo, error) {
	if maxKB > 0 && len(raw) > maxKB*1024 {
		return channel.MemberInfo{}, ErrPresenceOversize
	}
	var member channel.MemberInfo
	if err := json.Unmarshal([]byte(raw), &member); err != nil {
		return channel.MemberInfo{}, fmt.Errorf("%w: %v", ErrInvalidChannel, err)
	}
	if member.UserID == "" {
		return channel.MemberInfo{}, ErrInvalidChannel
	}
	return member, nil
}
