// Package binio implements the little-endian binary reader and writer used
// for navigation tile blobs. The encoding is fixed little-endian so baked
// tiles are portable between hosts.
package binio

import (
	"encoding/binary"
	"errors"
	"math"
)

var ErrShortBuffer = errors.New("binio: short buffer")

// Writer accumulates little-endian encoded values.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Len() int      { return len(w.buf) }

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteUint8s(vs []uint8) {
	w.buf = append(w.buf, vs...)
}

func (w *Writer) WriteUint16s(vs []uint16) {
	for _, v := range vs {
		w.WriteUint16(v)
	}
}

func (w *Writer) WriteUint32s(vs []uint32) {
	for _, v := range vs {
		w.WriteUint32(v)
	}
}

func (w *Writer) WriteFloat32s(vs []float32) {
	for _, v := range vs {
		w.WriteFloat32(v)
	}
}

// Reader decodes values written by Writer. Reads past the end of the buffer
// set a sticky error instead of panicking; check Err once after decoding.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

func (r *Reader) Err() error     { return r.err }
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) ReadUint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadUint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) ReadUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(r.ReadUint32())
}

func (r *Reader) ReadUint8s(vs []uint8) {
	b := r.take(len(vs))
	if b != nil {
		copy(vs, b)
	}
}

func (r *Reader) ReadUint16s(vs []uint16) {
	for i := range vs {
		vs[i] = r.ReadUint16()
	}
}

func (r *Reader) ReadUint32s(vs []uint32) {
	for i := range vs {
		vs[i] = r.ReadUint32()
	}
}

func (r *Reader) ReadFloat32s(vs []float32) {
	for i := range vs {
		vs[i] = r.ReadFloat32()
	}
}
