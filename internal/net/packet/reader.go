package packet

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// headerSize is the sub-message header: 2 bytes LE length + 1 byte tag.
const headerSize = 3

// Reader is a bounded cursor over one message payload. Nested messages get
// their own Reader starting at offset 0; the parent skips past them whether
// or not the child is fully consumed.
type Reader struct {
	data []byte
	off  int
	tag  byte
}

// NewReader returns a reader over a whole root buffer. Its tag is 0xFF.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, tag: 0xFF}
}

// NewMessageReader returns a reader over data that already had its header stripped.
func NewMessageReader(tag byte, data []byte) *Reader {
	return &Reader{data: data, tag: tag}
}

// Tag returns the message tag this reader was created for.
func (r *Reader) Tag() byte { return r.tag }

// Position returns the current read offset.
func (r *Reader) Position() int { return r.off }

// Len returns the bound of this reader.
func (r *Reader) Len() int { return len(r.data) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// HasRemaining reports whether unread bytes are left.
func (r *Reader) HasRemaining() bool { return r.off < len(r.data) }

// Buffer returns the whole payload this reader is bounded to.
func (r *Reader) Buffer() []byte { return r.data }

// Unread returns the unread bytes without copying or advancing.
func (r *Reader) Unread() []byte { return r.data[r.off:] }

func (r *Reader) fail(op string, err error) error {
	return &ProtocolError{Op: op, Pos: r.off, Err: err}
}

func (r *Reader) need(op string, n int) error {
	if n < 0 || r.Remaining() < n {
		return r.fail(op, ErrTruncatedInput)
	}
	return nil
}

// ReadByte reads 1 unsigned byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need("read byte", 1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

// ReadBool reads 1 byte, non-zero is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

// ReadUint16 reads 2 bytes as little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need("read uint16", 2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

// ReadUint32 reads 4 bytes as little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need("read uint32", 4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// ReadInt32 reads 4 bytes as little-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads a little-endian IEEE 754 single.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadPackedUint32 decodes a base-128 integer: 7 bits per byte, low group
// first, high bit set on every byte except the last.
func (r *Reader) ReadPackedUint32() (uint32, error) {
	var v uint32
	var shift uint
	for i := 0; ; i++ {
		if r.off >= len(r.data) {
			return 0, r.fail("read packed int", ErrTruncatedInput)
		}
		b := r.data[r.off]
		// the fifth group only has 4 bits of room and must terminate
		if i == 4 && b > 0x0F {
			return 0, r.fail("read packed int", ErrOverflow)
		}
		r.off++
		v |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}

// ReadPackedInt32 decodes a packed integer and reinterprets its bits as int32.
func (r *Reader) ReadPackedInt32() (int32, error) {
	v, err := r.ReadPackedUint32()
	return int32(v), err
}

// ReadBytes reads n raw bytes. The returned slice aliases the buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need("read bytes", n); err != nil {
		return nil, err
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

// ReadBytesAndSize reads a packed length followed by that many bytes and
// returns a copy.
func (r *Reader) ReadBytesAndSize() ([]byte, error) {
	n, err := r.ReadPackedInt32()
	if err != nil {
		return nil, err
	}
	if err := r.need("read bytes and size", int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:])
	r.off += int(n)
	return b, nil
}

// ReadString reads a packed length followed by UTF-8 text. Ill-formed
// sequences from the client are replaced with U+FFFD.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadPackedInt32()
	if err != nil {
		return "", err
	}
	if err := r.need("read string", int(n)); err != nil {
		return "", err
	}
	raw := r.data[r.off : r.off+int(n)]
	r.off += int(n)
	return utf8String(raw), nil
}

func utf8String(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	// Fast path: ASCII needs no validation
	allASCII := true
	for _, b := range raw {
		if b >= 0x80 {
			allASCII = false
			break
		}
	}
	if allASCII {
		return string(raw)
	}
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// ReadMessage reads one framed sub-message: 2 bytes LE length, 1 byte tag,
// then length payload bytes exposed as a nested Reader.
func (r *Reader) ReadMessage() (*Reader, error) {
	if err := r.need("read message header", headerSize); err != nil {
		return nil, err
	}
	length := int(binary.LittleEndian.Uint16(r.data[r.off:]))
	tag := r.data[r.off+2]
	start := r.off + headerSize
	if len(r.data)-start < length {
		return nil, r.fail("read message payload", ErrTruncatedInput)
	}
	end := start + length
	r.off = end
	return &Reader{data: r.data[start:end:end], tag: tag}, nil
}
