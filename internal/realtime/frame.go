package realtime

import "encoding/json"

// Frame types exchanged over the realtime websocket.
const (
	FrameJoin      = "join"
	FrameJoinReply = "join_reply"
	FrameLeave     = "leave"
	FrameEvent     = "event"
)

// Join reply statuses.
const (
	ReplyOK    = "ok"
	ReplyError = "error"
)

// Frame is the single JSON message shape used in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Ref     int64           `json:"ref,omitempty"`
	Private bool            `json:"private,omitempty"`
	Token   string          `json:"token,omitempty"`
	Status  string          `json:"status,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Kind    EventKind       `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEventFrame builds an event frame for domain d.
func NewEventFrame(d Domain, kind EventKind, payload json.RawMessage) Frame {
	return Frame{
		Type:    FrameEvent,
		Topic:   ChannelName(d),
		Kind:    kind,
		Payload: payload,
	}
}
