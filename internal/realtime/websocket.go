package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	defaultJoinTimeout = 10 * time.Second
	pingInterval       = 30 * time.Second
	readLimit          = 1 << 20
)

var errTransportClosed = errors.New("realtime: transport closed")

// WebsocketTransport multiplexes every channel over one websocket. The
// connection is dialed by the first Subscribe and closed when the last
// channel is removed.
type WebsocketTransport struct {
	url         string
	token       func() string
	logger      *slog.Logger
	joinTimeout time.Duration

	mu       sync.Mutex
	conn     *ws.Conn
	cancel   context.CancelFunc
	dialing  chan struct{} // closed when the dial in progress finishes
	gen      uint64        // bumped by Close; a dial from an older gen is discarded
	channels map[string]*wsChannel
	nextRef  int64
}

// NewWebsocketTransport creates a transport for url. token supplies the
// bearer token sent on dial and with private joins; it may be nil.
func NewWebsocketTransport(url string, token func() string, logger *slog.Logger) *WebsocketTransport {
	if token == nil {
		token = func() string { return "" }
	}
	return &WebsocketTransport{
		url:         url,
		token:       token,
		logger:      logger,
		joinTimeout: defaultJoinTimeout,
		channels:    make(map[string]*wsChannel),
	}
}

type wsChannel struct {
	t        *WebsocketTransport
	name     string
	opts     ChannelOptions
	mu       sync.Mutex
	handlers map[EventKind][]func(json.RawMessage)
	cb       func(SubscribeState, error)
	ref      int64
	joined   bool
	timer    *time.Timer
}

func (c *wsChannel) Name() string { return c.name }

func (c *wsChannel) On(kind EventKind, fn func(payload json.RawMessage)) {
	c.mu.Lock()
	c.handlers[kind] = append(c.handlers[kind], fn)
	c.mu.Unlock()
}

func (c *wsChannel) Subscribe(cb func(state SubscribeState, err error)) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
	go c.t.join(c)
}

func (c *wsChannel) report(state SubscribeState, err error) {
	c.mu.Lock()
	cb := c.cb
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	if cb != nil {
		cb(state, err)
	}
}

func (c *wsChannel) dispatch(kind EventKind, payload json.RawMessage) {
	c.mu.Lock()
	fns := slices.Clone(c.handlers[kind])
	c.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

// Channel registers a channel under name. A second call with the same name
// replaces the first.
func (t *WebsocketTransport) Channel(name string, opts ChannelOptions) Channel {
	c := &wsChannel{
		t:        t,
		name:     name,
		opts:     opts,
		handlers: make(map[EventKind][]func(json.RawMessage)),
	}
	t.mu.Lock()
	t.channels[name] = c
	t.mu.Unlock()
	return c
}

// RemoveChannel leaves the topic and forgets the channel. The socket is
// closed once no channels remain.
func (t *WebsocketTransport) RemoveChannel(ch Channel) error {
	t.mu.Lock()
	c, ok := t.channels[ch.Name()]
	if !ok || c != ch {
		t.mu.Unlock()
		return nil
	}
	delete(t.channels, ch.Name())
	conn := t.conn
	empty := len(t.channels) == 0
	t.mu.Unlock()

	c.mu.Lock()
	c.cb = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	joined := c.joined
	c.mu.Unlock()

	var err error
	if conn != nil && joined {
		err = t.write(conn, Frame{Type: FrameLeave, Topic: c.name})
	}
	if empty {
		t.Close()
	}
	return err
}

// Close drops the socket. Channels that are still registered see CLOSED.
func (t *WebsocketTransport) Close() error {
	t.mu.Lock()
	conn, cancel := t.conn, t.cancel
	t.conn, t.cancel = nil, nil
	t.gen++
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}
	return conn.Close(ws.StatusNormalClosure, "")
}

// ensureConn returns the shared connection, dialing it if needed. Only one
// dial runs at a time and it runs without holding t.mu; other callers wait
// for it to finish.
func (t *WebsocketTransport) ensureConn(ctx context.Context) (*ws.Conn, error) {
	for {
		t.mu.Lock()
		if t.conn != nil {
			conn := t.conn
			t.mu.Unlock()
			return conn, nil
		}
		if wait := t.dialing; wait != nil {
			t.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("dial %s: %w", t.url, ctx.Err())
			}
		}
		done := make(chan struct{})
		t.dialing = done
		gen := t.gen
		t.mu.Unlock()

		conn, err := t.dial(ctx)

		t.mu.Lock()
		t.dialing = nil
		close(done)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		if gen != t.gen {
			t.mu.Unlock()
			conn.Close(ws.StatusNormalClosure, "")
			return nil, errTransportClosed
		}
		loopCtx, cancel := context.WithCancel(context.Background())
		t.conn = conn
		t.cancel = cancel
		t.mu.Unlock()

		go t.readLoop(loopCtx, conn)
		go t.pingLoop(loopCtx, conn)
		return conn, nil
	}
}

func (t *WebsocketTransport) dial(ctx context.Context) (*ws.Conn, error) {
	header := http.Header{}
	if tok := t.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, _, err := ws.Dial(ctx, t.url, &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

func (t *WebsocketTransport) join(c *wsChannel) {
	ctx, cancel := context.WithTimeout(context.Background(), t.joinTimeout)
	defer cancel()

	conn, err := t.ensureConn(ctx)
	if err != nil {
		c.report(StateChannelError, err)
		return
	}

	t.mu.Lock()
	t.nextRef++
	ref := t.nextRef
	t.mu.Unlock()

	frame := Frame{Type: FrameJoin, Topic: c.name, Ref: ref, Private: c.opts.Private}
	if c.opts.Private {
		frame.Token = t.token()
	}

	c.mu.Lock()
	c.ref = ref
	c.timer = time.AfterFunc(t.joinTimeout, func() {
		c.report(StateTimedOut, fmt.Errorf("join %s: no reply within %s", c.name, t.joinTimeout))
	})
	c.mu.Unlock()

	if err := t.write(conn, frame); err != nil {
		c.report(StateChannelError, err)
	}
}

func (t *WebsocketTransport) write(conn *ws.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, ws.MessageText, data); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	return nil
}

func (t *WebsocketTransport) channel(topic string) *wsChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels[topic]
}

// readLoop routes inbound frames until the socket fails, then reports the
// failure to every channel still registered.
func (t *WebsocketTransport) readLoop(ctx context.Context, conn *ws.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.connLost(conn, err)
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.logger.Warn("realtime: malformed frame", "error", err)
			continue
		}

		c := t.channel(f.Topic)
		if c == nil {
			continue
		}

		switch f.Type {
		case FrameJoinReply:
			c.mu.Lock()
			stale := f.Ref != c.ref
			if !stale && f.Status == ReplyOK {
				c.joined = true
			}
			c.mu.Unlock()
			if stale {
				continue
			}
			if f.Status == ReplyOK {
				c.report(StateSubscribed, nil)
			} else {
				c.report(StateChannelError, fmt.Errorf("join %s: %s", f.Topic, f.Reason))
			}
		case FrameEvent:
			if !f.Kind.Valid() {
				t.logger.Debug("realtime: ignoring event kind", "topic", f.Topic, "kind", f.Kind)
				continue
			}
			c.dispatch(f.Kind, f.Payload)
		}
	}
}

func (t *WebsocketTransport) connLost(conn *ws.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	channels := make([]*wsChannel, 0, len(t.channels))
	for _, c := range t.channels {
		channels = append(channels, c)
	}
	t.mu.Unlock()

	if ws.CloseStatus(err) == ws.StatusNormalClosure || errors.Is(err, context.Canceled) {
		err = errTransportClosed
	}
	t.logger.Warn("realtime connection lost", "error", err)
	for _, c := range channels {
		c.mu.Lock()
		c.joined = false
		c.mu.Unlock()
		c.report(StateClosed, err)
	}
}

func (t *WebsocketTransport) pingLoop(ctx context.Context, conn *ws.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
