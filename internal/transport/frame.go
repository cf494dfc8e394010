// Package transport streams simulation snapshots to remote viewers and routes their
// commands back into the simulation. Concrete servers live in the ws and quic
// subpackages; both speak the JSON Frame format defined here.
package transport

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/simscript/simscript/internal/bridge"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/pkg/generic"
)

type FrameType string

const (
	// FrameHello is the first frame sent to a client.
	FrameHello    FrameType = "hello"
	FrameSnapshot FrameType = "snapshot"
	// FrameImpulse is sent by clients to push a body.
	FrameImpulse FrameType = "impulse"
	FrameError   FrameType = "error"
)

// MaxFrameSize bounds inbound frames.
const MaxFrameSize = 1 << 20

var (
	ErrFrameTooLarge   = errors.New("transport: frame too large")
	ErrUnsupportedType = errors.New("transport: unsupported frame type")
	ErrClientClosed    = errors.New("transport: client closed")
	ErrSendQueueFull   = errors.New("transport: send queue full")
)

// Frame is the envelope of every message in either direction.
type Frame struct {
	Type FrameType `json:"type"`
	// Run identifies the server run that produced the frame.
	Run  string `json:"run,omitempty"`
	Sent int64  `json:"sent,omitempty"`

	Snapshot *bridge.Snapshot `json:"snapshot,omitempty"`
	Digest   uint64           `json:"digest,omitempty"`

	Target physics.BodyID `json:"target,omitempty"`
	Vector mgl64.Vec3     `json:"vector,omitempty"`
	Offset mgl64.Vec3     `json:"offset,omitempty"`

	Error string `json:"error,omitempty"`
	Code  uint32 `json:"code,omitempty"`
}

// SnapshotFrame wraps snap together with its digest.
func SnapshotFrame(run string, snap *bridge.Snapshot) Frame {
	return Frame{
		Type:     FrameSnapshot,
		Run:      run,
		Sent:     time.Now().UnixNano(),
		Snapshot: snap,
		Digest:   snap.Digest(),
	}
}

// ErrorFrame reports err to a client.
func ErrorFrame(run string, err error) Frame {
	return Frame{
		Type:  FrameError,
		Run:   run,
		Sent:  time.Now().UnixNano(),
		Error: err.Error(),
		Code:  uint32(physics.GetErrorCode(err)),
	}
}

var buffers = generic.NewResetPool(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// Encode marshals f to JSON.
func Encode(f Frame) ([]byte, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(f); err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	return append([]byte(nil), out...), nil
}

// Decode unmarshals a JSON frame.
func Decode(data []byte) (Frame, error) {
	if len(data) > MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, errors.Wrap(err, "decode frame")
	}
	return f, nil
}

// Commander receives client commands.
type Commander interface {
	ApplyImpulseAt(id physics.BodyID, impulse, offset mgl64.Vec3) error
}

// Dispatch routes an inbound frame to c.
func Dispatch(c Commander, f Frame) error {
	switch f.Type {
	case FrameImpulse:
		return c.ApplyImpulseAt(f.Target, f.Vector, f.Offset)
	default:
		return errors.Wrapf(ErrUnsupportedType, "frame type %q", f.Type)
	}
}
