// Package websocket implements the Connection Handler: the WebSocket
// handshake, the pusher:* frame dispatch table, and the per-connection
// activity timeout, grounded on the teacher's websocket.Client/Hub
// readPump/writePump split and generalized to the Pusher protocol.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenbridge/broker/internal/adapter"
	"github.com/lumenbridge/broker/internal/app"
	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/channelmanager"
	"github.com/lumenbridge/broker/internal/metrics"
	"github.com/lumenbridge/broker/internal/namespace"
	"github.com/lumenbridge/broker/internal/token"
)

// errorCode values used in pusher:error frames that do not mandate a
// connection close, per spec.md §7's "socket stays open unless the code
// mandates close".
const codeProtocolError = 4000

// Config tunes per-connection timing.
type Config struct {
	ActivityTimeout time.Duration // default 120s
	PongTimeout     time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.ActivityTimeout <= 0 {
		c.ActivityTimeout = 120 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 30 * time.Second
	}
	return c
}

// Handler upgrades HTTP requests to WebSocket connections and runs the
// Pusher protocol dispatch loop against the shared Adapter, App Registry
// and Channel Manager.
type Handler struct {
	apps     app.Manager
	adapter  adapter.Adapter
	channels *channelmanager.Manager
	metrics  *metrics.Recorder
	cfg      Config
	running  func() bool
}

// NewHandler builds a Handler. running, if non-nil, is consulted at
// handshake time so new connections are refused once the server starts
// shutting down; pass nil to always accept.
func NewHandler(apps app.Manager, ad adapter.Adapter, cm *channelmanager.Manager, rec *metrics.Recorder, cfg Config, running func() bool) *Handler {
	return &Handler{
		apps:     apps,
		adapter:  ad,
		channels: cm,
		metrics:  metrics.OrNop(rec),
		cfg:      cfg.withDefaults(),
		running:  running,
	}
}

// HandleConnection is the gin route handler for GET /app/:app_key.
func (h *Handler) HandleConnection(c *gin.Context) {
	ctx := context.Background()
	appKey := c.Param("app_key")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}
	cl := newClient(conn)

	if h.running != nil && !h.running() {
		h.reject(cl, CloseOverCapacity, "server shutting down")
		return
	}

	a, err := h.apps.ByKey(ctx, appKey)
	if err != nil {
		h.reject(cl, CloseAppDoesNotExist, "app does not exist")
		return
	}
	if !a.Enabled {
		h.reject(cl, CloseAppDisabled, "app disabled")
		return
	}
	count, _ := h.adapter.SocketCount(ctx, a.ID)
	if int64(count) >= a.MaxConnections && a.MaxConnections > 0 {
		h.reject(cl, CloseOverCapacity, "over capacity")
		return
	}

	nsConn := namespace.NewConnection(cl.SocketID, cl.Send, cl.Close)
	h.adapter.AddSocket(a.ID, nsConn)

	established, err := encodeFrameStringData(EventConnectionEstablished, "", connectionEstablishedData{
		SocketID:        cl.SocketID,
		ActivityTimeout: int(h.cfg.ActivityTimeout.Seconds()),
	})
	if err == nil {
		cl.Send(established)
	}

	s := &session{handler: h, client: cl, app: a}
	go cl.writePump()
	go s.monitorActivity()
	cl.readPump(s.onFrame, s.onDone)
}

// reject closes a connection that failed handshake checks without ever
// starting its read loop, writing the close frame synchronously.
func (h *Handler) reject(cl *Client, code int, reason string) {
	cl.Close(code, reason)
	cl.writePump()
}

// session holds the per-connection state the dispatch table and the
// activity-timeout monitor both touch.
type session struct {
	handler *Handler
	client  *Client
	app     app.App

	mu           sync.Mutex
	channelCount int
	userID       string
	lastActivity time.Time
	awaitingPong bool
	doneOnce     sync.Once
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.awaitingPong = false
	s.mu.Unlock()
}

func (s *session) boundUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// monitorActivity implements spec.md §4.5's activity timeout: if no
// frame arrives within ActivityTimeout, a ping is sent; if no pong (or
// any other frame, which also counts as activity) arrives within
// PongTimeout, the connection closes with 4201.
func (s *session) monitorActivity() {
	s.touch()
	tick := time.Second
	if d := s.handler.cfg.ActivityTimeout / 2; d > 0 && d < tick {
		tick = d
	}
	if d := s.handler.cfg.PongTimeout / 2; d > 0 && d < tick {
		tick = d
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.client.closeCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastActivity)
			awaiting := s.awaitingPong
			s.mu.Unlock()

			if awaiting && idle >= s.handler.cfg.ActivityTimeout+s.handler.cfg.PongTimeout {
				s.client.Close(ClosePingTimeout, "ping timeout")
				return
			}
			if !awaiting && idle >= s.handler.cfg.ActivityTimeout {
				frame, err := encodeFrame(EventPing, "", struct{}{})
				if err == nil {
					s.client.Send(frame)
				}
				s.mu.Lock()
				s.awaitingPong = true
				s.mu.Unlock()
			}
		}
	}
}

// onFrame dispatches one inbound frame, per the table in spec.md §4.5.
func (s *session) onFrame(raw []byte) {
	s.touch()

	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.sendError(codeProtocolError, "malformed frame")
		return
	}

	switch {
	case f.Event == EventPing:
		frame, _ := encodeFrame(EventPong, "", struct{}{})
		s.client.Send(frame)
	case f.Event == EventSubscribe:
		s.handleSubscribe(f.Data)
	case f.Event == EventUnsubscribe:
		s.handleUnsubscribe(f.Data)
	case f.Event == EventSignin:
		s.handleSignin(f.Data)
	case strings.HasPrefix(f.Event, "client-"):
		s.handleClientEvent(f, f.Event)
	default:
		s.sendError(CloseUnknownEvent, "unknown event: "+f.Event)
		s.client.Close(CloseUnknownEvent, "unknown event")
	}
}

func (s *session) handleSubscribe(raw json.RawMessage) {
	var data subscribeData
	if err := json.Unmarshal(raw, &data); err != nil {
		s.sendError(codeProtocolError, "invalid subscribe payload")
		return
	}

	ctx := context.Background()
	s.mu.Lock()
	count := s.channelCount
	s.mu.Unlock()

	req := channelmanager.SubscribeRequest{
		Channel:     channel.Name(data.Channel),
		Auth:        data.Auth,
		ChannelData: data.ChannelData,
	}
	res, err := s.handler.channels.Subscribe(ctx, s.app, s.client.SocketID, s.boundUserID(), req, count)
	if err != nil {
		if err == channelmanager.ErrAuthFailed {
			s.sendError(channelmanager.CodeSubscriptionAuthFailed, "subscription auth failed")
			s.client.Close(CloseSubscriptionAuth, "subscription auth failed")
			return
		}
		s.sendError(codeProtocolError, err.Error())
		return
	}

	s.mu.Lock()
	s.channelCount++
	s.mu.Unlock()

	if res.CacheHit != nil {
		s.client.Send(res.CacheHit)
	}

	payload := map[string]interface{}{}
	if res.Presence != nil {
		payload["presence"] = res.Presence
	}
	frame, err := encodeFrameStringData(EventSubscriptionSucceeded, data.Channel, payload)
	if err == nil {
		s.client.Send(frame)
	}
}

func (s *session) handleUnsubscribe(raw json.RawMessage) {
	var data unsubscribeData
	if err := json.Unmarshal(raw, &data); err != nil {
		s.sendError(codeProtocolError, "invalid unsubscribe payload")
		return
	}
	s.handler.channels.Unsubscribe(context.Background(), s.app.ID, channel.Name(data.Channel), s.client.SocketID)
	s.mu.Lock()
	if s.channelCount > 0 {
		s.channelCount--
	}
	s.mu.Unlock()
}

func (s *session) handleSignin(raw json.RawMessage) {
	if s.boundUserID() != "" {
		s.sendError(codeProtocolError, "already signed in")
		return
	}

	var data signinData
	if err := json.Unmarshal(raw, &data); err != nil {
		s.sendError(codeProtocolError, "invalid signin payload")
		return
	}
	if !token.VerifySignin(s.app.Secret, s.client.SocketID, data.UserData, data.Auth) {
		s.sendError(codeProtocolError, "signin auth failed")
		return
	}

	var info struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal([]byte(data.UserData), &info)
	if info.UserID == "" {
		s.sendError(codeProtocolError, "signin user_data missing user_id")
		return
	}

	s.mu.Lock()
	s.userID = info.UserID
	s.mu.Unlock()
	s.handler.adapter.BindUser(s.app.ID, s.client.SocketID, info.UserID)

	frame, err := encodeFrameStringData(EventSigninSuccess, "", struct{}{})
	if err == nil {
		s.client.Send(frame)
	}
}

func (s *session) handleClientEvent(f Frame, eventName string) {
	ch := channel.Name(f.Channel)
	var data interface{}
	_ = json.Unmarshal(f.Data, &data)

	err := s.handler.channels.ClientEvent(context.Background(), s.app, ch, s.client.SocketID, eventName, data)
	if err != nil {
		s.sendError(codeProtocolError, err.Error())
	}
}

func (s *session) sendError(code int, message string) {
	frame, err := encodeFrame(EventError, "", errorData{Code: code, Message: message})
	if err != nil {
		return
	}
	s.client.Send(frame)
}

// onDone runs the §4.5 close-cleanup path exactly once, idempotent with
// any concurrent server-initiated Close.
func (s *session) onDone() {
	s.doneOnce.Do(func() {
		s.handler.channels.HandleDisconnect(context.Background(), s.app.ID, s.client.SocketID)
	})
}
