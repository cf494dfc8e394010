package quic

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/internal/transport"
)

// Client is a viewer connected to a Server.
type Client struct {
	conn   *quic.Conn
	stream *quic.Stream
	mu     sync.Mutex
}

// Dial connects to addr. A nil tlsConfig trusts any certificate, which suits the
// self-signed certificate of a development server.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (*Client, error) {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{InsecureSkipVerify: true, NextProtos: []string{ALPN}}
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial")
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	c := &Client{conn: conn, stream: stream}
	if err = c.write(transport.Frame{Type: transport.FrameHello}); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) write(f transport.Frame) error {
	data, err := transport.Encode(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteFrame(c.stream, data)
}

// Next blocks until the next frame arrives.
func (c *Client) Next() (transport.Frame, error) {
	data, err := ReadFrame(c.stream)
	if err != nil {
		return transport.Frame{}, err
	}
	return transport.Decode(data)
}

// Impulse asks the server to push target.
func (c *Client) Impulse(target physics.BodyID, vector, offset mgl64.Vec3) error {
	return c.write(transport.Frame{Type: transport.FrameImpulse, Target: target, Vector: vector, Offset: offset})
}

func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "bye")
}
