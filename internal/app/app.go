// Package app implements the App Registry: a read-mostly map from app id
// and app key to credentials and limits, fronted by a pluggable backend.
package app

// Webhook is one outbound notification target configured for an App.
type Webhook struct {
	URL        string   `json:"url,omitempty"`
	Lambda     string   `json:"lambda_function,omitempty"`
	EventTypes []string `json:"event_types"`
	Filter     string   `json:"filter,omitempty"`
}

// App is the tenant record: credentials plus the limits that the
// Connection Handler and Channel Manager enforce at runtime.
type App struct {
	ID                            string    `json:"id"`
	Key                           string    `json:"key"`
	Secret                        string    `json:"secret"`
	Enabled                       bool      `json:"enabled"`
	MaxConnections                int64     `json:"max_connections"`
	MaxClientEventsPerSecond      int64     `json:"max_client_events_per_second"`
	MaxChannelsPerConnection      int       `json:"max_channels_per_connection"`
	EnableClientMessages          bool      `json:"enable_client_messages"`
	MaxPresenceMembersPerChannel  int       `json:"max_presence_members_per_channel"`
	MaxPresenceMemberSizeKB       int       `json:"max_presence_member_size_kb"`
	Webhooks                      []Webhook `json:"webhooks,omitempty"`
	MaxBackendEventsPerSecond     int64     `json:"max_backend_events_per_second"`
	MaxReadRequestsPerSecond      int64     `json:"max_read_requests_per_second"`
}

// Default returns the limits used for apps registered without explicit
// overrides, matching the original implementation's demo-app defaults.
func Default(id, key, secret string) App {
	return App{
		ID:                           id,
		Key:                          key,
		Secret:                       secret,
		Enabled:                      true,
		MaxConnections:               1000,
		MaxClientEventsPerSecond:     100,
		MaxChannelsPerConnection:     100,
		EnableClientMessages:         true,
		MaxPresenceMembersPerChannel: 100,
		MaxPresenceMemberSizeKB:      10,
		MaxBackendEventsPerSecond:    1000,
		MaxReadRequestsPerSecond:     1000,
	}
}

// WebhooksFor filters the app's webhooks to those interested in eventType,
// applying the optional channel-name prefix filter.
func (a App) WebhooksFor(eventType, channelName string) []Webhook {
	var out []Webhook
	for _, wh := range a.Webhooks {
		if !containsStr(wh.EventTypes, eventType) {
			continue
		}
		if wh.Filter != "" && !matchFilter(wh.Filter, channelName) {
			continue
		}
		out = append(out, wh)
	}
	return out
}

func containsStr(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

// matchFilter treats Filter as a channel-name prefix; callers with a real
// regex requirement can extend this without changing the Webhook shape.
func matchFilter(filter, channelName string) bool {
	if len(channelName) < len(filter) {
		return false
	}
	return channelName[:len(filter)] == filter
}
