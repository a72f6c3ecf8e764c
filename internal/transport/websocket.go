package transport

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"trackprobe/internal/log"
)

// WebSocketTransport broadcasts analysis frames as JSON to every
// connected browser client.
//
// Thread Safety:
// - Uses mutex for client map access
// - Send queues onto a buffered channel; a single goroutine writes
// - Rate limits broadcasts to protect clients and the network
type WebSocketTransport struct {
	addr     string
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	broadcast chan any

	sendMu          sync.Mutex
	lastSend        time.Time
	minSendInterval time.Duration // zero disables rate limiting

	closed   atomic.Bool
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWebSocketTransport creates a broadcaster for the given listen
// address. minSendInterval drops frames that arrive faster; zero keeps
// every frame. Call Start to begin serving.
func NewWebSocketTransport(addr string, minSendInterval time.Duration) *WebSocketTransport {
	t := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Meter frames are not sensitive; allow any page
			},
		},
		clients:         make(map[*websocket.Conn]bool),
		broadcast:       make(chan any, 256),
		minSendInterval: minSendInterval,
		doneChan:        make(chan struct{}),
	}

	t.mux = http.NewServeMux()
	t.mux.HandleFunc("/ws", t.handleWebSocket)
	t.server = &http.Server{Handler: t.mux}

	return t
}

// Start binds the listen address and launches the server and the
// broadcast loop.
func (t *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	t.listener = ln

	t.wg.Add(1)
	go t.handleBroadcasts()

	go func() {
		if err := t.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("WebSocket: server error: %v", err)
		}
	}()

	log.Infof("WebSocket: serving meter frames on ws://%s/ws", ln.Addr())
	return nil
}

// Addr returns the bound listen address, useful when the configured
// address requested an ephemeral port.
func (t *WebSocketTransport) Addr() string {
	if t.listener == nil {
		return t.addr
	}
	return t.listener.Addr().String()
}

// Handler exposes the HTTP mux so the transport can be mounted on an
// existing server.
func (t *WebSocketTransport) Handler() http.Handler { return t.mux }

// ClientCount returns the number of connected clients.
func (t *WebSocketTransport) ClientCount() int {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()
	return len(t.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket: upgrade error: %v", err)
		return
	}

	t.clientsMu.Lock()
	t.clients[conn] = true
	total := len(t.clients)
	t.clientsMu.Unlock()
	log.Debugf("WebSocket: client connected, total: %d", total)

	// Drain the connection until it errors so closures are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		t.clientsMu.Lock()
		delete(t.clients, conn)
		total := len(t.clients)
		t.clientsMu.Unlock()
		conn.Close()
		log.Debugf("WebSocket: client disconnected, total: %d", total)
	}()
}

// handleBroadcasts sends queued frames to all connected clients.
func (t *WebSocketTransport) handleBroadcasts() {
	defer t.wg.Done()

	for {
		select {
		case <-t.doneChan:
			return
		case data := <-t.broadcast:
			t.clientsMu.Lock()
			for client := range t.clients {
				if err := client.WriteJSON(data); err != nil {
					log.Debugf("WebSocket: dropping client: %v", err)
					client.Close()
					delete(t.clients, client)
				}
			}
			t.clientsMu.Unlock()
		}
	}
}

// allowSend applies the rate limit.
func (t *WebSocketTransport) allowSend() bool {
	if t.minSendInterval <= 0 {
		return true
	}
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	now := time.Now()
	if now.Sub(t.lastSend) < t.minSendInterval {
		return false
	}
	t.lastSend = now
	return true
}

// Send queues data for broadcast. Frames beyond the rate limit or a
// full queue are dropped rather than blocking the caller.
func (t *WebSocketTransport) Send(data any) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if !t.allowSend() {
		return nil
	}

	select {
	case t.broadcast <- data:
	default:
		// Queue full, drop the frame.
	}
	return nil
}

// Close shuts down the server and disconnects every client. Safe to
// call more than once.
func (t *WebSocketTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		t.closed.Store(true)
		close(t.doneChan)

		t.clientsMu.Lock()
		for client := range t.clients {
			client.Close()
		}
		t.clients = make(map[*websocket.Conn]bool)
		t.clientsMu.Unlock()

		if t.server != nil {
			err = t.server.Close()
		}
		t.wg.Wait()
		log.Info("WebSocket: closed")
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
