package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"

	"github.com/petra184/mobile-app-sub002/internal/auth"
	"github.com/petra184/mobile-app-sub002/internal/realtime"
)

const (
	sendBufferSize = 64
	pingInterval   = 30 * time.Second
)

// Client is one websocket connection and the topics it has joined. topics
// is guarded by the hub's lock.
type Client struct {
	hub       *Hub
	conn      *ws.Conn
	send      chan []byte
	principal *auth.Principal
	topics    map[string]auth.Principal
}

// NewClient creates a Client. principal is the identity presented when the
// socket was opened, or nil.
func NewClient(hub *Hub, conn *ws.Conn, principal *auth.Principal) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		principal: principal,
		topics:    make(map[string]auth.Principal),
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump handles join and leave frames until the connection fails.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var f realtime.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.hub.logger.Debug("ignoring malformed frame", "error", err)
			continue
		}

		switch f.Type {
		case realtime.FrameJoin:
			c.handleJoin(ctx, f)
		case realtime.FrameLeave:
			c.hub.Leave(c, f.Topic)
		default:
			c.hub.logger.Debug("ignoring frame", "type", f.Type)
		}
	}
}

func (c *Client) handleJoin(ctx context.Context, f realtime.Frame) {
	reply := realtime.Frame{Type: realtime.FrameJoinReply, Topic: f.Topic, Ref: f.Ref, Status: realtime.ReplyOK}
	if err := c.hub.Join(c, f.Topic, f.Private, f.Token); err != nil {
		reply.Status = realtime.ReplyError
		reply.Reason = err.Error()
		c.hub.logger.Info("join rejected", "topic", f.Topic, "error", err)
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
