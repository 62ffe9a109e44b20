// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"audioviz/internal/log"
	"audioviz/internal/pipeline"
)

const (
	// WebSocketPath is where clients connect.
	WebSocketPath = "/ws"

	broadcastBacklog = 16
	writeTimeout     = time.Second
)

// ErrRendererClosed is returned by Render after Close.
var ErrRendererClosed = errors.New("transport: renderer closed")

// WebSocketRenderer broadcasts every frame as JSON to all connected
// WebSocket clients.
type WebSocketRenderer struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	closed    bool

	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	listener net.Listener
	server   *http.Server
}

// NewWebSocketRenderer listens on addr and serves clients at WebSocketPath.
// An empty addr only builds the handler; mount it with ServeHTTP.
func NewWebSocketRenderer(addr string) (*WebSocketRenderer, error) {
	w := &WebSocketRenderer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Visualizer clients are served from anywhere
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastBacklog),
		done:      make(chan struct{}),
	}

	if addr != "" {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen for WebSocket clients on %s: %w", addr, err)
		}
		w.listener = listener

		mux := http.NewServeMux()
		mux.Handle(WebSocketPath, w)
		w.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			log.Infof("WebSocketRenderer: Listening on ws://%s%s", listener.Addr(), WebSocketPath)
			if err := w.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("WebSocketRenderer: Server error: %v", err)
			}
		}()
	}

	w.wg.Add(1)
	go w.handleBroadcasts()
	return w, nil
}

// Addr returns the listening address, or nil when no listener was started.
func (w *WebSocketRenderer) Addr() net.Addr {
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

// ServeHTTP upgrades the request and registers the client.
func (w *WebSocketRenderer) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Warnf("WebSocketRenderer: Upgrade error: %v", err)
		return
	}

	w.clientsMu.Lock()
	if w.closed {
		w.clientsMu.Unlock()
		conn.Close()
		return
	}
	w.clients[conn] = true
	total := len(w.clients)
	w.wg.Add(1)
	w.clientsMu.Unlock()
	log.Infof("WebSocketRenderer: Client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients never send anything we use; reading only detects disconnects.
	go func() {
		defer w.wg.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				w.removeClient(conn)
				return
			}
		}
	}()
}

func (w *WebSocketRenderer) removeClient(conn *websocket.Conn) {
	w.clientsMu.Lock()
	_, ok := w.clients[conn]
	delete(w.clients, conn)
	total := len(w.clients)
	w.clientsMu.Unlock()

	conn.Close()
	if ok {
		log.Infof("WebSocketRenderer: Client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

// handleBroadcasts sends messages to all connected clients
func (w *WebSocketRenderer) handleBroadcasts() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case msg := <-w.broadcast:
			w.clientsMu.Lock()
			for client := range w.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Warnf("WebSocketRenderer: Error sending to client %s: %v", client.RemoteAddr(), err)
					client.Close()
					delete(w.clients, client)
				}
			}
			w.clientsMu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (w *WebSocketRenderer) ClientCount() int {
	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()
	return len(w.clients)
}

// Render queues the frame for broadcast. When clients cannot keep up the
// frame is dropped.
func (w *WebSocketRenderer) Render(f pipeline.Frame) error {
	select {
	case <-w.done:
		return ErrRendererClosed
	default:
	}

	if w.ClientCount() == 0 {
		return nil
	}

	msg, err := json.Marshal(NewFrameMessage(f))
	if err != nil {
		return fmt.Errorf("encoding frame %d: %w", f.Sequence, err)
	}

	select {
	case w.broadcast <- msg:
	default:
		log.Debugf("WebSocketRenderer: Backlog full, dropping frame %d", f.Sequence)
	}
	return nil
}

// Close disconnects all clients and shuts down the server.
func (w *WebSocketRenderer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		log.Debugf("WebSocketRenderer: Closing")
		close(w.done)

		if w.server != nil {
			err = w.server.Close()
		}

		w.clientsMu.Lock()
		w.closed = true
		for client := range w.clients {
			client.Close()
		}
		clear(w.clients)
		w.clientsMu.Unlock()

		w.wg.Wait()
	})
	return err
}

// Ensure WebSocketRenderer satisfies the interface
var _ pipeline.Renderer = (*WebSocketRenderer)(nil)
