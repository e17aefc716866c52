package packet

import (
	"encoding/binary"
	"math"
)

// Writer builds an outbound message buffer. Multi-byte fixed-width writes
// are little-endian. StartMessage/EndMessage nest and back-patch the
// 2-byte length once the payload is known.
type Writer struct {
	buf    []byte
	starts []int
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteByte writes 1 byte. It never fails; the error satisfies io.ByteWriter.
func (w *Writer) WriteByte(v byte) error {
	w.buf = append(w.buf, v)
	return nil
}

// WriteBool writes 1 or 0.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// WriteUint16 writes 2 bytes little-endian.
func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteUint32 writes 4 bytes little-endian.
func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteInt32 writes 4 bytes little-endian (two's complement).
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteFloat32 writes a little-endian IEEE 754 single.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WritePackedUint32 writes v as base-128 groups, low group first.
func (w *Writer) WritePackedUint32(v uint32) {
	for v >= 0x80 {
		w.buf = append(w.buf, byte(v)|0x80)
		v >>= 7
	}
	w.buf = append(w.buf, byte(v))
}

// WritePackedInt32 writes the uint32 bit pattern of v; negatives take 5 bytes.
func (w *Writer) WritePackedInt32(v int32) {
	w.WritePackedUint32(uint32(v))
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteBytesAndSize writes a packed length followed by b.
func (w *Writer) WriteBytesAndSize(b []byte) {
	w.WritePackedInt32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString writes a packed byte length followed by the UTF-8 bytes.
func (w *Writer) WriteString(s string) {
	w.WritePackedInt32(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// StartMessage opens a framed sub-message with the given tag.
func (w *Writer) StartMessage(tag byte) {
	w.starts = append(w.starts, len(w.buf))
	w.buf = append(w.buf, 0, 0, tag)
}

// EndMessage closes the innermost open sub-message and writes its length.
func (w *Writer) EndMessage() {
	if len(w.starts) == 0 {
		return
	}
	start := w.starts[len(w.starts)-1]
	w.starts = w.starts[:len(w.starts)-1]
	binary.LittleEndian.PutUint16(w.buf[start:], uint16(len(w.buf)-start-headerSize))
}

// Bytes returns the written buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}
