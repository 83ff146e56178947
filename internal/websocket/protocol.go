package websocket

import "encoding/json"

// Frame is the envelope every inbound and outbound message shares: a
// named event plus a payload whose shape depends on the event.
type Frame struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	Channel string          `json:"channel,omitempty"`
}

// Protocol event names, per spec.md §6's wire protocol table.
const (
	EventConnectionEstablished = "pusher:connection_established"
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	EventMemberAdded           = "pusher_internal:member_added"
	EventMemberRemoved         = "pusher_internal:member_removed"
	EventSignin                = "pusher:signin"
	EventSigninSuccess         = "pusher:signin_success"
	EventCacheMiss             = "pusher:cache_miss"
	EventError                 = "pusher:error"
)

// Close codes, per spec.md §6.
const (
	CloseAppDoesNotExist  = 4001
	CloseAppDisabled      = 4003
	CloseOverCapacity     = 4004
	CloseSubscriptionAuth = 4009
	CloseBackpressure     = 4200
	ClosePingTimeout      = 4201
	CloseUnknownEvent     = 4301
)

// connectionEstablishedData is JSON-encoded as a string and carried in
// the connection_established frame's data field.
type connectionEstablishedData struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

// subscribeData is the parsed pusher:subscribe frame data.
type subscribeData struct {
	Channel     string `json:"channel"`
	Auth        string `json:"auth,omitempty"`
	ChannelData string `json:"channel_data,omitempty"`
}

// unsubscribeData is the parsed pusher:unsubscribe frame data.
type unsubscribeData struct {
	Channel string `json:"channel"`
}

// signinData is the parsed pusher:signin frame data.
type signinData struct {
	Auth     string `json:"auth"`
	UserData string `json:"user_data"`
}

// errorData is carried in a pusher:error frame.
type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func encodeFrame(event, channel string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Channel: channel, Data: raw})
}

// encodeFrameStringData matches Pusher's connection_established quirk:
// data is a JSON-encoded string, not a nested object.
func encodeFrameStringData(event, channel string, data interface{}) ([]byte, error) {
	inner, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Channel: channel, Data: outer})
}
