package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/flow"
	"github.com/hearthd/hearth/internal/logging"
	"github.com/hearthd/hearth/internal/metrics"
	"github.com/hearthd/hearth/internal/version"
)

// authTimeout is how long a fresh connection gets to authenticate.
const authTimeout = 10 * time.Second

// CommandHandler processes one client command. Returning a *CmdError
// sends that error to the client; any other error maps to
// unknown_error. Handlers send success results themselves.
type CommandHandler func(conn *Connection, msg *Message) error

// Server is the websocket API endpoint plus the HTTP sidecars
// (metrics and health).
type Server struct {
	hub   *core.Hub
	flows *flow.Manager
	token string

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	commands map[string]CommandHandler

	httpServer *http.Server
}

// NewServer wires the API against a hub and flow manager. The API
// token comes from the hub config; an empty token disables the
// authentication phase.
func NewServer(hub *core.Hub, flows *flow.Manager) *Server {
	s := &Server{
		hub:   hub,
		flows: flows,
		token: hub.Config.APIToken,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is token-guarded, not origin-guarded.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		commands: make(map[string]CommandHandler),
	}
	s.registerBuiltinCommands()
	return s
}

// RegisterCommand adds a command handler. Integrations call this to
// contribute their own commands.
func (s *Server) RegisterCommand(name string, handler CommandHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[name] = handler
}

// Hub returns the hub the server fronts.
func (s *Server) Hub() *core.Hub { return s.hub }

// Flows returns the flow manager the server fronts.
func (s *Server) Flows() *flow.Manager { return s.flows }

// Handler returns the full HTTP handler: websocket API, Prometheus
// metrics, and health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", s.handleWebsocket)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Run serves the API on addr until Shutdown is called.
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("websocket API listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConnection(ws, s)
	if !s.authenticate(conn) {
		ws.Close()
		return
	}

	metrics.RecordConnectionOpened()
	logging.LogConnection(conn.remote, "connected")

	go conn.writePump()
	conn.readPump()
}

// authenticate runs the pre-command phase: with a token configured the
// client must present it in an auth message; without one the server
// grants access immediately. Writes here are synchronous since the
// pumps are not running yet.
func (s *Server) authenticate(conn *Connection) bool {
	ws := conn.ws

	if s.token == "" {
		return writeAuthFrame(ws, authOKMessage{Type: "auth_ok", Version: version.Version})
	}

	if !writeAuthFrame(ws, authRequiredMessage{Type: "auth_required", Version: version.Version}) {
		return false
	}

	ws.SetReadDeadline(time.Now().Add(authTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		logging.LogConnection(conn.remote, "auth_timeout")
		return false
	}

	var auth authMessage
	if err := json.Unmarshal(data, &auth); err != nil || auth.Type != "auth" {
		writeAuthFrame(ws, authInvalidMessage{Type: "auth_invalid", Message: "Auth message expected"})
		logging.LogConnection(conn.remote, "auth_invalid")
		return false
	}

	if subtle.ConstantTimeCompare([]byte(auth.AccessToken), []byte(s.token)) != 1 {
		writeAuthFrame(ws, authInvalidMessage{Type: "auth_invalid", Message: "Invalid access token"})
		logging.LogConnection(conn.remote, "auth_failed")
		return false
	}

	return writeAuthFrame(ws, authOKMessage{Type: "auth_ok", Version: version.Version})
}

func writeAuthFrame(ws *websocket.Conn, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data) == nil
}

// handleMessage dispatches one raw client frame. It runs on the
// connection's read goroutine; handlers are synchronous.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	msg, err := parseMessage(data)
	if err != nil {
		// Unparseable frames cannot be correlated to a command, so
		// the connection is beyond saving.
		conn.SendError(0, ErrInvalidFormat, "invalid JSON")
		conn.teardown()
		return
	}

	if msg.ID == 0 || msg.Type == "" {
		conn.SendError(msg.ID, ErrInvalidFormat, "command requires a positive id and a type")
		return
	}
	if !conn.checkNextID(msg.ID) {
		conn.SendError(msg.ID, ErrIDReuse, "identifier values have to increase")
		return
	}

	logging.LogCommand(conn.remote, msg.ID, msg.Type)

	s.mu.RLock()
	handler, ok := s.commands[msg.Type]
	s.mu.RUnlock()
	if !ok {
		conn.SendError(msg.ID, ErrUnknownCommand, "unknown command "+msg.Type)
		metrics.RecordCommand(msg.Type, metrics.ResultError)
		return
	}

	if err := handler(conn, msg); err != nil {
		var cmdErr *CmdError
		if errors.As(err, &cmdErr) {
			conn.SendError(msg.ID, cmdErr.Code, cmdErr.Message)
		} else {
			conn.SendError(msg.ID, ErrUnknownError, err.Error())
		}
		metrics.RecordCommand(msg.Type, metrics.ResultError)
		return
	}
	metrics.RecordCommand(msg.Type, metrics.ResultSuccess)
}
