// Package quic serves the snapshot stream over QUIC. Each client opens one
// bidirectional stream and exchanges length-prefixed JSON frames on it.
package quic

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/transport"
)

// ALPN is the application protocol negotiated by server and client.
const ALPN = "simscript-quic"

// Config controls the QUIC server.
type Config struct {
	SendQueue   int
	IdleTimeout time.Duration
	// TLS is generated as a self-signed certificate when nil.
	TLS *tls.Config
}

func DefaultConfig() Config {
	return Config{SendQueue: 16, IdleTimeout: 30 * time.Second}
}

// Server accepts QUIC connections into a hub.
type Server struct {
	cfg Config
	hub *transport.Hub
	log log.Log

	mu       sync.Mutex
	listener *quic.Listener
}

func NewServer(cfg Config, hub *transport.Hub, logger log.Log) *Server {
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultConfig().SendQueue
	}
	return &Server{cfg: cfg, hub: hub, log: logger.With(log.String("transport", "quic"))}
}

// Listen binds addr. Serve must be called to accept clients.
func (s *Server) Listen(addr string) (net.Addr, error) {
	tlsConfig := s.cfg.TLS
	if tlsConfig == nil {
		var err error
		if tlsConfig, err = GenerateTLSConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to create TLS config")
		}
	}
	listener, err := quic.ListenAddr(addr, tlsConfig, &quic.Config{
		MaxIdleTimeout:  s.cfg.IdleTimeout,
		KeepAlivePeriod: s.cfg.IdleTimeout / 3,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start QUIC listener")
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.log.Info("QUIC server started", log.String("address", listener.Addr().String()))
	return listener.Addr(), nil
}

// Serve accepts connections until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("quic: Serve called before Listen")
	}
	go func() {
		<-ctx.Done()
		_ = listener.Close()
		_ = s.hub.Close()
	}()

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to accept QUIC connection")
		}
		go s.handle(ctx, conn)
	}
}

// ListenAndServe binds addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if _, err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) handle(ctx context.Context, conn *quic.Conn) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		s.log.Debug("no stream opened", log.String("remote_addr", conn.RemoteAddr().String()), log.Error(err))
		_ = conn.CloseWithError(0, "no stream")
		return
	}
	// the client announces the stream with a hello frame
	if _, err = ReadFrame(stream); err != nil {
		_ = conn.CloseWithError(0, "bad hello")
		return
	}

	c := &client{
		id:     uuid.New().String(),
		conn:   conn,
		stream: stream,
		send:   make(chan []byte, s.cfg.SendQueue),
		done:   make(chan struct{}),
	}
	go c.writePump()
	if err = s.hub.Add(c); err != nil {
		_ = c.Close()
		return
	}
	for {
		data, err := ReadFrame(stream)
		if err != nil {
			break
		}
		s.hub.Receive(c, data)
	}
	s.hub.Remove(c.id)
	_ = c.Close()
}

type client struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
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
		err = c.conn.CloseWithError(0, "closed")
	})
	return err
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := WriteFrame(c.stream, data); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// WriteFrame writes data with a big-endian uint32 length prefix.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > transport.MaxFrameSize {
		return transport.ErrFrameTooLarge
	}
	header := make([]byte, 4, 4+len(data))
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	if _, err := w.Write(append(header, data...)); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read frame header")
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > transport.MaxFrameSize {
		return nil, transport.ErrFrameTooLarge
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, "failed to read frame data")
	}
	return data, nil
}

// GenerateTLSConfig creates a self-signed certificate for localhost.
func GenerateTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate key")
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"simscript"}},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, errors.Wrap(err, "create certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
