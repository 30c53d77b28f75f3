package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/internal/logging"
	"github.com/hearthd/hearth/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound queue per connection. A client that cannot drain this
	// many messages is disconnected rather than allowed to stall the
	// event sources feeding it.
	sendQueueSize = 256
)

// Connection is one authenticated websocket client.
type Connection struct {
	ws     *websocket.Conn
	server *Server
	remote string

	send chan []byte
	done chan struct{}

	mu            sync.Mutex
	lastID        uint64
	subscriptions map[uint64]func()
	closed        bool
}

func newConnection(ws *websocket.Conn, server *Server) *Connection {
	return &Connection{
		ws:            ws,
		server:        server,
		remote:        ws.RemoteAddr().String(),
		send:          make(chan []byte, sendQueueSize),
		done:          make(chan struct{}),
		subscriptions: make(map[uint64]func()),
	}
}

// Remote returns the peer address, for logging.
func (c *Connection) Remote() string { return c.remote }

// SendResult sends a success result for a command id.
func (c *Connection) SendResult(id uint64, result any) {
	c.sendJSON(resultMessage{ID: id, Type: "result", Success: true, Result: result})
}

// SendError sends a failed result for a command id.
func (c *Connection) SendError(id uint64, code, message string) {
	c.sendJSON(resultMessage{ID: id, Type: "result", Success: false,
		Error: &wireError{Code: code, Message: message}})
}

// SendEvent sends an event frame carrying the id of the subscribing
// command.
func (c *Connection) SendEvent(id uint64, event any) {
	c.sendJSON(eventMessage{ID: id, Type: "event", Event: event})
}

// Subscribe records a cancel function under a command id. The
// subscription can be ended by unsubscribe_events or by the connection
// going away.
func (c *Connection) Subscribe(id uint64, cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Connection already tearing down; cancel immediately.
		go cancel()
		return
	}
	c.subscriptions[id] = cancel
}

// Unsubscribe cancels the subscription registered under id.
func (c *Connection) Unsubscribe(id uint64) bool {
	c.mu.Lock()
	cancel, ok := c.subscriptions[id]
	if ok {
		delete(c.subscriptions, id)
	}
	c.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

func (c *Connection) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		// Queue full: the client is too slow to keep its subscriptions.
		logging.Warn("dropping slow websocket client", zap.String("remote", c.remote))
		c.teardown()
	}
}

// checkNextID enforces strictly increasing command ids.
func (c *Connection) checkNextID(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id <= c.lastID {
		return false
	}
	c.lastID = id
	return true
}

// teardown cancels all subscriptions and signals both pumps to exit.
// Safe to call multiple times.
func (c *Connection) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancels := make([]func(), 0, len(c.subscriptions))
	for _, cancel := range c.subscriptions {
		cancels = append(cancels, cancel)
	}
	c.subscriptions = make(map[uint64]func())
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	close(c.done)
}

// readPump reads commands until the connection drops. It runs on the
// connection's own goroutine and is the only reader.
func (c *Connection) readPump() {
	defer func() {
		c.teardown()
		c.ws.Close()
		metrics.RecordConnectionClosed()
		logging.LogConnection(c.remote, "disconnected")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("websocket read error",
					zap.String("remote", c.remote), zap.Error(err))
			}
			return
		}
		c.server.handleMessage(c, data)
	}
}

// writePump writes queued messages and keepalive pings. It runs on the
// connection's own goroutine and is the only writer.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			// Flush whatever is already queued before closing.
			for {
				select {
				case data := <-c.send:
					c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					c.ws.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}
