package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/server"
	"github.com/lumenbridge/broker/internal/webhook"
)

const maxEventChannels = 100
const maxBatchEvents = 10

// eventRequest is one POST /apps/:app_id/events body.
type eventRequest struct {
	Name     string   `json:"name"`
	Channel  string   `json:"channel,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Data     string   `json:"data"`
	SocketID string   `json:"socket_id,omitempty"`
}

// batchEventRequest is one POST /apps/:app_id/batch_events body.
type batchEventRequest struct {
	BatchEvents []eventRequest `json:"batch"`
}

func triggerEvent(c *gin.Context, s *server.Server) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	channels := req.Channels
	if req.Channel != "" {
		channels = append(channels, req.Channel)
	}

	a := appFromContext(c)
	if !backendRateLimitOK(c, s, a.ID, a.MaxBackendEventsPerSecond) {
		return
	}

	if err := deliverEvent(c, s, a.ID, req.Name, channels, req.Data, req.SocketID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func triggerBatch(c *gin.Context, s *server.Server) {
	var req batchEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.BatchEvents) > maxBatchEvents {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("batch_events: at most %d events per call", maxBatchEvents)})
		return
	}

	a := appFromContext(c)
	if !backendRateLimitOK(c, s, a.ID, a.MaxBackendEventsPerSecond) {
		return
	}

	for _, ev := range req.BatchEvents {
		channels := ev.Channels
		if ev.Channel != "" {
			channels = append(channels, ev.Channel)
		}
		if err := deliverEvent(c, s, a.ID, ev.Name, channels, ev.Data, ev.SocketID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{})
}

func deliverEvent(c *gin.Context, s *server.Server, appID, name string, channels []string, data, exceptSocket string) error {
	if len(channels) == 0 {
		return fmt.Errorf("events: at least one channel is required")
	}
	if len(channels) > maxEventChannels {
		return fmt.Errorf("events: at most %d channels per call", maxEventChannels)
	}
	for _, ch := range channels {
		if !channel.Valid(ch) {
			return fmt.Errorf("events: invalid channel name %q", ch)
		}
	}

	var payload json.RawMessage
	if data != "" {
		payload = json.RawMessage(data)
	} else {
		payload = json.RawMessage("null")
	}

	for _, ch := range channels {
		frame, err := json.Marshal(map[string]interface{}{
			"event":   name,
			"channel": ch,
			"data":    json.RawMessage(payload),
		})
		if err != nil {
			return err
		}
		if err := s.Adapter.Broadcast(c.Request.Context(), appID, channel.Name(ch), frame, exceptSocket); err != nil {
			return err
		}
		s.Webhooks.Emit(c.Request.Context(), appID, webhook.Event{
			Type:    webhook.ClientEvent,
			Channel: ch,
			Event:   name,
			Data:    payload,
		})
	}
	return nil
}

// backendRateLimitOK enforces max_backend_events_per_second per app,
// writing a 429 response and returning false when exceeded.
func backendRateLimitOK(c *gin.Context, s *server.Server, appID string, limit int64) bool {
	if limit <= 0 {
		return true
	}
	res, err := s.RateLimiter.Allow(c.Request.Context(), "backend:"+appID, limit, time.Second)
	if err != nil {
		return true
	}
	if !res.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "backend event rate limit exceeded"})
		return false
	}
	return true
}
