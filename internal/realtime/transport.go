package realtime

import "encoding/json"

// ChannelOptions configure a channel at creation.
type ChannelOptions struct {
	Private bool
}

// SubscribeState is what a transport reports about a subscription attempt.
type SubscribeState string

const (
	StateSubscribed   SubscribeState = "SUBSCRIBED"
	StateChannelError SubscribeState = "CHANNEL_ERROR"
	StateTimedOut     SubscribeState = "TIMED_OUT"
	StateClosed       SubscribeState = "CLOSED"
)

// Channel is a transport-owned handle for one topic.
type Channel interface {
	Name() string
	// On registers fn for events of kind. Must be called before Subscribe.
	On(kind EventKind, fn func(payload json.RawMessage))
	// Subscribe starts joining the topic. cb may be invoked more than once
	// and from any goroutine.
	Subscribe(cb func(state SubscribeState, err error))
}

// Transport creates and releases channels. Each live channel holds network
// resources until RemoveChannel is called.
type Transport interface {
	Channel(name string, opts ChannelOptions) Channel
	RemoveChannel(ch Channel) error
}
