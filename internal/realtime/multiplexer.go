package realtime

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/petra184/mobile-app-sub002/internal/lifecycle"
)

// Status is the health of one opened channel.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusSubscribed Status = "subscribed"
	StatusError      Status = "error"
	StatusClosed     Status = "closed"
)

// Multiplexer opens one channel per registered domain and tracks their
// health. It never retries: an errored channel stays errored until Setup
// runs again.
type Multiplexer struct {
	mu        sync.Mutex
	transport Transport
	logger    *slog.Logger
	guard     lifecycle.Guard
	channels  map[string]Channel
	status    map[string]Status
	listeners []func(map[string]Status)
}

func New(transport Transport, logger *slog.Logger) *Multiplexer {
	return &Multiplexer{
		transport: transport,
		logger:    logger,
		channels:  make(map[string]Channel),
		status:    make(map[string]Status),
	}
}

// OnStatusChange registers fn to receive a copy of the status map whenever
// any channel's status changes.
func (m *Multiplexer) OnStatusChange(fn func(map[string]Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// ConnectionStatus returns a copy of the per-channel status map. Prefer it
// over IsConnected when any single healthy channel is useful on its own.
func (m *Multiplexer) ConnectionStatus() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCopyLocked()
}

// IsConnected reports total readiness: at least one channel is open and
// every opened channel is subscribed. One errored channel makes it false.
func (m *Multiplexer) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.status) == 0 {
		return false
	}
	for _, s := range m.status {
		if s != StatusSubscribed {
			return false
		}
	}
	return true
}

func (m *Multiplexer) statusCopyLocked() map[string]Status {
	out := make(map[string]Status, len(m.status))
	for k, v := range m.status {
		out[k] = v
	}
	return out
}

func (m *Multiplexer) unlockAndNotify() {
	snap := m.statusCopyLocked()
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

type pendingJoin struct {
	name string
	ch   Channel
}

// Setup tears down whatever is open and opens one channel per domain that
// has a handler in reg. The points channel is opened only when userID is
// set, and only events addressed to userID reach its handler.
func (m *Multiplexer) Setup(reg *Registry, userID string) {
	m.Cleanup()

	tok := m.guard.Token()
	var joins []pendingJoin

	m.mu.Lock()
	for _, d := range Domains {
		h, ok := reg.Handler(d)
		if !ok {
			continue
		}
		if d == DomainPoints && userID == "" {
			continue
		}

		name := ChannelName(d)
		ch := m.transport.Channel(name, ChannelOptions{Private: d == DomainPoints})
		for _, kind := range EventKinds {
			ch.On(kind, m.dispatcher(tok, d, kind, h, userID))
		}
		m.channels[name] = ch
		m.status[name] = StatusConnecting
		joins = append(joins, pendingJoin{name: name, ch: ch})
	}
	m.unlockAndNotify()

	for _, j := range joins {
		name := j.name
		j.ch.Subscribe(func(state SubscribeState, err error) {
			m.onSubscribeState(tok, name, state, err)
		})
	}
	m.logger.Info("realtime setup", "channels", len(joins), "addressed", userID != "")
}

func (m *Multiplexer) dispatcher(tok lifecycle.Token, d Domain, kind EventKind, h Handler, userID string) func(json.RawMessage) {
	return func(payload json.RawMessage) {
		if !m.guard.Valid(tok) {
			return
		}
		if d == DomainPoints && !addressedTo(payload, userID) {
			m.logger.Debug("dropping points event for another user", "kind", kind)
			return
		}
		h(Event{Domain: d, Kind: kind, Payload: payload})
	}
}

// onSubscribeState moves a channel out of connecting. Later reports for a
// channel that already settled are logged and otherwise ignored.
func (m *Multiplexer) onSubscribeState(tok lifecycle.Token, name string, state SubscribeState, err error) {
	m.mu.Lock()
	if !m.guard.Valid(tok) {
		m.mu.Unlock()
		return
	}
	cur, ok := m.status[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	if cur != StatusConnecting {
		m.mu.Unlock()
		m.logger.Warn("channel state after settle ignored", "channel", name, "status", cur, "state", state, "error", err)
		return
	}

	switch state {
	case StateSubscribed:
		m.status[name] = StatusSubscribed
	case StateChannelError, StateTimedOut, StateClosed:
		m.status[name] = StatusError
	default:
		m.mu.Unlock()
		m.logger.Warn("unknown subscribe state", "channel", name, "state", state)
		return
	}
	next := m.status[name]
	m.unlockAndNotify()

	if next == StatusError {
		m.logger.Warn("channel subscription failed", "channel", name, "state", state, "error", err)
	} else {
		m.logger.Debug("channel subscribed", "channel", name)
	}
}

// Cleanup releases every channel and clears all tracked status. It is safe
// to call when nothing is open and safe to call repeatedly.
func (m *Multiplexer) Cleanup() {
	m.guard.Invalidate()

	m.mu.Lock()
	if len(m.channels) == 0 && len(m.status) == 0 {
		m.mu.Unlock()
		return
	}
	channels := m.channels
	m.channels = make(map[string]Channel)
	m.status = make(map[string]Status)
	m.unlockAndNotify()

	for name, ch := range channels {
		if err := m.transport.RemoveChannel(ch); err != nil {
			m.logger.Warn("remove channel", "channel", name, "error", err)
		}
	}
}

type addressedPayload struct {
	UserID string `json:"user_id"`
	New    *struct {
		UserID string `json:"user_id"`
	} `json:"new"`
	Old *struct {
		UserID string `json:"user_id"`
	} `json:"old"`
}

// addressedTo reports whether a points payload names userID, either at the
// top level or in its new/old record.
func addressedTo(payload json.RawMessage, userID string) bool {
	if userID == "" {
		return false
	}
	var p addressedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false
	}
	switch {
	case p.UserID != "":
		return p.UserID == userID
	case p.New != nil && p.New.UserID != "":
		return p.New.UserID == userID
	case p.Old != nil && p.Old.UserID != "":
		return p.Old.UserID == userID
	}
	return false
}
