// Package stream broadcasts run events to websocket clients as JSON.
package stream

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/bus"
)

const (
	// Path is the websocket endpoint.
	Path = "/events"

	historySize = 256
	sendBuffer  = 64
	writeWait   = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server accepts websocket clients and sends them every event it handles.
// Clients that connect late first receive the recent history. A client
// that cannot keep up is disconnected.
type Server struct {
	addr     string
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	history [][]byte

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Server listening on addr once started.
func New(addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr:    addr,
		log:     log.Named("stream"),
		clients: make(map[*client]struct{}),
		stop:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	return mux
}

// Start listens and serves in the background until ctx is done or Stop is
// called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Serve", zap.Error(err))
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
		case <-s.stop:
		}
		_ = s.server.Shutdown(context.Background())
		s.closeAll()
	}()

	s.log.Info("Event stream listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes the listener and every client connection.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.closeAll()
	s.wg.Wait()
	return nil
}

// Handle broadcasts ev. It is meant to be subscribed to the run's event bus
// and never blocks on a slow client.
func (s *Server) Handle(ev bus.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("Marshal event", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, data)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.log.Warn("Dropping slow client", zap.String("remote", c.conn.RemoteAddr().String()))
			s.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.log.Debug("Upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer+historySize)}

	// Registration and wg.Add happen under mu so Stop, which closes stop
	// before taking mu, never waits on a writer it has not seen.
	s.mu.Lock()
	select {
	case <-s.stop:
		s.mu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	for _, data := range s.history {
		c.send <- data
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Debug("Client connected", zap.String("remote", conn.RemoteAddr().String()))

	go func() {
		defer s.wg.Done()
		s.writeLoop(c)
	}()

	// Inbound messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	s.removeLocked(c)
	s.mu.Unlock()
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug("Write failed", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.removeLocked(c)
	}
}
