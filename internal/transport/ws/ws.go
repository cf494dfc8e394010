// Package ws serves the snapshot stream over WebSocket.
package ws

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/transport"
)

// Config controls the WebSocket server.
type Config struct {
	Path         string
	SendQueue    int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Path:         "/ws",
		SendQueue:    16,
		WriteTimeout: 5 * time.Second,
		PingInterval: 20 * time.Second,
	}
}

// Server upgrades HTTP requests into hub clients.
type Server struct {
	cfg      Config
	hub      *transport.Hub
	log      log.Log
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, hub *transport.Hub, logger log.Log) *Server {
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultConfig().SendQueue
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	return &Server{
		cfg: cfg,
		hub: hub,
		log: logger.With(log.String("transport", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler serves the stream on the configured path plus a /health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
		_ = s.hub.Close()
	}()

	s.log.Info("websocket server started", log.String("address", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "websocket server error")
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.Error(err))
		return
	}
	c := newClient(conn, s.cfg)
	go c.writePump()
	if err = s.hub.Add(c); err != nil {
		s.log.Warn("client rejected", log.Error(err))
		_ = c.Close()
		return
	}
	c.readPump(s.hub)
	s.hub.Remove(c.id)
	_ = c.Close()
}

type client struct {
	id   string
	conn *websocket.Conn
	cfg  Config

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, cfg Config) *client {
	conn.SetReadLimit(transport.MaxFrameSize)
	return &client{
		id:   uuid.New().String(),
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendQueue),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

func (c *client) Send(data []byte) error {
	select {
	case <-c.done:
		return transport.ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return transport.ErrSendQueueFull
	}
}

func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *client) readPump(hub *transport.Hub) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		hub.Receive(c, data)
	}
}

func (c *client) writePump() {
	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if c.cfg.WriteTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-ping:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
