package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fahrprobe/fahrprobe-cli/internal/encoding"
	"github.com/fahrprobe/fahrprobe-cli/internal/models"
)

// WebSocketPath is where live clients connect.
const WebSocketPath = "/ws"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local use only
	},
}

// ControlFunc applies a control message received from a client.
type ControlFunc func(models.Control) error

// wsClient serialises writes; gorilla connections allow one writer at a time.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(messageType, data)
}

// WebSocketServer pushes frames to browser clients and accepts control
// messages from them
type WebSocketServer struct {
	host      string
	port      int
	encoder   encoding.Encoder
	onControl ControlFunc
	greet     func() (models.Frame, bool)
	clients   map[*wsClient]bool
	mu        sync.RWMutex
	server    *http.Server
}

// NewWebSocketServer creates a new WebSocket server. onControl may be nil,
// in which case client messages are ignored.
func NewWebSocketServer(host string, port int, encoder encoding.Encoder, onControl ControlFunc) *WebSocketServer {
	return &WebSocketServer{
		host:      host,
		port:      port,
		encoder:   encoder,
		onControl: onControl,
		clients:   make(map[*wsClient]bool),
	}
}

// OnConnect sets a function producing the frame every new client gets
// first, typically the current scenario state.
func (s *WebSocketServer) OnConnect(fn func() (models.Frame, bool)) {
	s.greet = fn
}

// Handler serves the WebSocket endpoint, for mounting on another mux.
func (s *WebSocketServer) Handler() http.Handler {
	return http.HandlerFunc(s.handleWebSocket)
}

// Start starts the WebSocket server
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("WebSocket server listening", "address", s.GetAddress())
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("WebSocket server failed: %w", err)
		}
		return nil
	}
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade connection", "error", err)
		return
	}
	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = true
	clientCount := len(s.clients)
	s.mu.Unlock()

	slog.Info("client connected", "remote", r.RemoteAddr, "total", clientCount)

	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		clientCount := len(s.clients)
		s.mu.Unlock()

		conn.Close()
		slog.Info("client disconnected", "total", clientCount)
	}()

	if s.greet != nil {
		if frame, ok := s.greet(); ok {
			s.send(client, frame)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleMessage(client, data)
	}
}

func (s *WebSocketServer) handleMessage(client *wsClient, data []byte) {
	if s.onControl == nil {
		return
	}
	ctrl, err := models.ParseControl(data)
	if err == nil {
		err = s.onControl(ctrl)
	}
	if err != nil {
		slog.Debug("control rejected", "error", err)
		reply := fmt.Appendf(nil, `{"error":%q}`, err.Error())
		if err := client.write(websocket.TextMessage, reply); err != nil {
			slog.Debug("failed to send error reply", "error", err)
		}
	}
}

func (s *WebSocketServer) messageType() int {
	if s.encoder.ContentType() == "application/json" {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

func (s *WebSocketServer) send(client *wsClient, frame models.Frame) {
	data, err := s.encoder.Encode(frame)
	if err != nil {
		slog.Warn("failed to encode frame", "error", err)
		return
	}
	if err := client.write(s.messageType(), data); err != nil {
		slog.Debug("failed to send to client", "error", err)
	}
}

// Broadcast sends a frame to all connected clients
func (s *WebSocketServer) Broadcast(frame models.Frame) error {
	data, err := s.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mt := s.messageType()
	for client := range s.clients {
		if err := client.write(mt, data); err != nil {
			// the read loop cleans the client up
			slog.Debug("failed to send to client", "error", err)
		}
	}

	return nil
}

// BroadcastFromChannel reads frames from a channel and broadcasts them
func (s *WebSocketServer) BroadcastFromChannel(ctx context.Context, frames <-chan models.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := s.Broadcast(frame); err != nil {
				slog.Warn("broadcast error", "error", err)
			}
		}
	}
}

// GetClientCount returns the number of connected clients
func (s *WebSocketServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown closes every client and stops the server
func (s *WebSocketServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	for client := range s.clients {
		client.conn.Close()
	}
	s.clients = make(map[*wsClient]bool)
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the server address
func (s *WebSocketServer) GetAddress() string {
	return fmt.Sprintf("ws://%s:%d%s", s.host, s.port, WebSocketPath)
}
