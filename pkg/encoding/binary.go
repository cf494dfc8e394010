// Package encoding holds the little-endian binary layout shared by snapshot
// encodings and digests.
package encoding

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer is returned by Reader when fewer bytes remain than requested.
var ErrShortBuffer = errors.New("encoding: short buffer")

// Serializable is implemented by values with a binary form.
type Serializable interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Writer appends little-endian values to a byte slice.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) Uint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// Float64 writes the IEEE-754 bits of v. Negative zero and NaN payloads are kept as is.
func (w *Writer) Float64(v float64) {
	w.Uint64(math.Float64bits(v))
}

// Floats writes each value in order.
func (w *Writer) Floats(vs ...float64) {
	for _, v := range vs {
		w.Float64(v)
	}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Reader consumes values written by Writer.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) take(n int) ([]byte, error) {
	if len(r.buf)-r.off < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) Float64() (float64, error) {
	bits, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// Floats fills dst in order.
func (r *Reader) Floats(dst ...*float64) error {
	for _, d := range dst {
		v, err := r.Float64()
		if err != nil {
			return err
		}
		*d = v
	}
	return nil
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }
