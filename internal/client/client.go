package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/internal/logging"
)

// DefaultTimeout is a reasonable per-command timeout for callers that
// do not carry their own deadline.
const DefaultTimeout = 10 * time.Second

const authTimeout = 10 * time.Second

// Client is a connected websocket API client. Safe for concurrent use.
type Client struct {
	conn *websocket.Conn

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan serverFrame
	handlers map[uint64]func(json.RawMessage)
	closed   bool

	done chan struct{}
}

// Dial connects to the hub at addr and completes the authentication
// handshake. addr may be a bare "host:port", a ws:// or wss:// URL, or
// an http:// URL as returned by discovery.
func Dial(ctx context.Context, addr, token string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, apiURL(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to hub at %s: %w", addr, err)
	}

	c := &Client{
		conn:     conn,
		pending:  make(map[uint64]chan serverFrame),
		handlers: make(map[uint64]func(json.RawMessage)),
		done:     make(chan struct{}),
	}

	if err := c.authenticate(ctx, token); err != nil {
		conn.Close()
		return nil, err
	}
	logging.LogConnection(addr, "connected")

	go c.readLoop()
	return c, nil
}

// apiURL normalizes addr to the websocket endpoint URL.
func apiURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "http://"):
		addr = "ws" + strings.TrimPrefix(addr, "http")
	case strings.HasPrefix(addr, "https://"):
		addr = "wss" + strings.TrimPrefix(addr, "https")
	case !strings.Contains(addr, "://"):
		addr = "ws://" + addr
	}
	return strings.TrimSuffix(addr, "/") + "/api/websocket"
}

// authenticate runs the auth phase. The hub either accepts the
// connection outright or challenges for an access token.
func (c *Client) authenticate(ctx context.Context, token string) error {
	deadline := time.Now().Add(authTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	var frame serverFrame
	if err := c.conn.ReadJSON(&frame); err != nil {
		return fmt.Errorf("failed to read auth frame: %w", err)
	}
	switch frame.Type {
	case frameAuthOK:
		return nil
	case frameAuthRequired:
	default:
		return fmt.Errorf("unexpected frame %q during authentication", frame.Type)
	}

	if err := c.conn.WriteJSON(map[string]string{
		"type":         "auth",
		"access_token": token,
	}); err != nil {
		return fmt.Errorf("failed to send access token: %w", err)
	}

	if err := c.conn.ReadJSON(&frame); err != nil {
		return fmt.Errorf("failed to read auth reply: %w", err)
	}
	switch frame.Type {
	case frameAuthOK:
		return nil
	case frameAuthInvalid:
		return fmt.Errorf("%w: %s", ErrAuthInvalid, frame.Message)
	default:
		return fmt.Errorf("unexpected frame %q during authentication", frame.Type)
	}
}

// Close shuts the connection down. Pending commands fail with
// ErrConnectionClosed.
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// Done is closed when the connection is gone, whichever side ended it.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readLoop dispatches incoming frames until the connection drops.
func (c *Client) readLoop() {
	defer c.teardown()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logging.Warn("Discarding unparseable frame from hub", zap.Error(err))
			continue
		}

		switch frame.Type {
		case frameEvent:
			c.mu.Lock()
			handler := c.handlers[frame.ID]
			c.mu.Unlock()
			if handler != nil {
				handler(frame.Event)
			}
		case frameResult, framePong:
			c.mu.Lock()
			ch := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if ch != nil {
				ch <- frame
			}
		}
	}
}

// teardown marks the client closed and unblocks every waiter.
func (c *Client) teardown() {
	c.mu.Lock()
	c.closed = true
	c.pending = make(map[uint64]chan serverFrame)
	c.handlers = make(map[uint64]func(json.RawMessage))
	c.mu.Unlock()
	close(c.done)
}

// send writes a command with the next id and registers a response
// channel for it. An optional event handler is installed before the
// command goes out so no event can be missed.
func (c *Client) send(command map[string]any, handler func(json.RawMessage)) (uint64, chan serverFrame, error) {
	ch := make(chan serverFrame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, nil, ErrConnectionClosed
	}
	c.nextID++
	id := c.nextID
	command["id"] = id
	c.pending[id] = ch
	if handler != nil {
		c.handlers[id] = handler
	}
	err := c.conn.WriteJSON(command)
	if err != nil {
		delete(c.pending, id)
		delete(c.handlers, id)
	}
	c.mu.Unlock()

	if err != nil {
		return 0, nil, fmt.Errorf("failed to send %v: %w", command["type"], err)
	}
	return id, ch, nil
}

// call sends a command and waits for its result frame.
func (c *Client) call(ctx context.Context, command map[string]any) (serverFrame, error) {
	id, ch, err := c.send(command, nil)
	if err != nil {
		return serverFrame{}, err
	}
	return c.wait(ctx, id, ch)
}

func (c *Client) wait(ctx context.Context, id uint64, ch chan serverFrame) (serverFrame, error) {
	select {
	case frame := <-ch:
		return frame, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		delete(c.handlers, id)
		c.mu.Unlock()
		return serverFrame{}, ctx.Err()
	case <-c.done:
		return serverFrame{}, ErrConnectionClosed
	}
}

// result runs a command and decodes its result payload into out when
// out is non-nil.
func (c *Client) result(ctx context.Context, command map[string]any, out any) error {
	frame, err := c.call(ctx, command)
	if err != nil {
		return err
	}
	if frame.Type == framePong {
		return nil
	}
	if !frame.Success {
		if frame.Error != nil {
			return frame.Error
		}
		return fmt.Errorf("command %v failed", command["type"])
	}
	if out != nil && len(frame.Result) > 0 {
		if err := json.Unmarshal(frame.Result, out); err != nil {
			return fmt.Errorf("failed to decode %v result: %w", command["type"], err)
		}
	}
	return nil
}

// Subscription is an active event stream. The zero value is not
// usable; subscriptions come from SubscribeEvents and StartPreview.
type Subscription struct {
	ID     uint64
	client *Client
}

// subscribe runs a subscribing command with an event handler attached
// to its id.
func (c *Client) subscribe(ctx context.Context, command map[string]any, handler func(json.RawMessage)) (*Subscription, error) {
	id, ch, err := c.send(command, handler)
	if err != nil {
		return nil, err
	}

	frame, err := c.wait(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	if !frame.Success {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
		if frame.Error != nil {
			return nil, frame.Error
		}
		return nil, fmt.Errorf("command %v failed", command["type"])
	}
	return &Subscription{ID: id, client: c}, nil
}

// Unsubscribe cancels the subscription on the hub and stops event
// delivery.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	err := s.client.result(ctx, map[string]any{
		"type":         "unsubscribe_events",
		"subscription": s.ID,
	}, nil)

	s.client.mu.Lock()
	delete(s.client.handlers, s.ID)
	s.client.mu.Unlock()
	return err
}
