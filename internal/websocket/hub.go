package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/petra184/mobile-app-sub002/internal/auth"
	"github.com/petra184/mobile-app-sub002/internal/realtime"
)

// Verifier turns an access token into a principal.
type Verifier interface {
	Verify(token string) (auth.Principal, error)
}

var (
	errUnknownTopic = errors.New("unknown topic")
	errUnauthorized = errors.New("unauthorized")
)

// Hub tracks connected clients and the topics each has joined, and fans
// published events out to the members of a topic.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	verifier Verifier
	logger   *slog.Logger
}

func NewHub(verifier Verifier, logger *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		verifier: verifier,
		logger:   logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Join subscribes c to topic. Private topics need a valid token, either
// in the join itself or presented when the socket was opened.
func (h *Hub) Join(c *Client, topic string, private bool, token string) error {
	if _, ok := realtime.DomainForChannel(topic); !ok {
		return fmt.Errorf("%w %q", errUnknownTopic, topic)
	}

	var member auth.Principal
	if private || topic == realtime.ChannelName(realtime.DomainPoints) {
		p, err := h.principalFor(c, token)
		if err != nil {
			return err
		}
		member = p
	}

	h.mu.Lock()
	c.topics[topic] = member
	h.mu.Unlock()
	return nil
}

func (h *Hub) principalFor(c *Client, token string) (auth.Principal, error) {
	if token != "" && h.verifier != nil {
		p, err := h.verifier.Verify(token)
		if err != nil {
			return auth.Principal{}, fmt.Errorf("%w: %v", errUnauthorized, err)
		}
		return p, nil
	}
	if c.principal != nil {
		return *c.principal, nil
	}
	return auth.Principal{}, errUnauthorized
}

func (h *Hub) Leave(c *Client, topic string) {
	h.mu.Lock()
	delete(c.topics, topic)
	h.mu.Unlock()
}

// Publish sends f to every client that joined f.Topic. A non-empty userID
// restricts delivery to members joined as that user (or as an admin). It
// returns how many clients were sent the frame.
func (h *Hub) Publish(f realtime.Frame, userID string) int {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("marshal frame", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		member, ok := c.topics[f.Topic]
		if !ok {
			continue
		}
		if userID != "" && member.UserID != userID && !member.Admin {
			continue
		}
		select {
		case c.send <- data:
			sent++
		default:
			h.logger.Warn("client buffer full, dropping frame", "topic", f.Topic)
		}
	}
	return sent
}

// PublishEvent is Publish for a domain event.
func (h *Hub) PublishEvent(d realtime.Domain, kind realtime.EventKind, payload any, userID string) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", d, err)
	}
	return h.Publish(realtime.NewEventFrame(d, kind, raw), userID), nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MemberCount returns how many clients have joined topic.
func (h *Hub) MemberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if _, ok := c.topics[topic]; ok {
			n++
		}
	}
	return n
}
