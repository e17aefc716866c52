package packet

import (
	"math"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

func TestPackedUint32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7F, 0x80, 0xFF, 0x3FFF, 0x4000, 0x1FFFFF, 0x200000,
		0xFFFFFFF, 0x10000000, math.MaxInt32, math.MaxUint32 - 1, math.MaxUint32}
	for shift := uint(0); shift < 32; shift++ {
		values = append(values, uint32(1)<<shift, (uint32(1)<<shift)-1)
	}
	for _, v := range values {
		w := NewWriter()
		w.WritePackedUint32(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadPackedUint32()
		assert.Equal(t, nil, err)
		assert.Equal(t, v, got)
		assert.Tf(t, !r.HasRemaining(), "value %d left %d bytes", v, r.Remaining())
	}
}

func TestPackedInt32RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 7, -2, 127, 128, math.MaxInt32, math.MinInt32} {
		w := NewWriter()
		w.WritePackedInt32(v)
		got, err := NewReader(w.Bytes()).ReadPackedInt32()
		assert.Equal(t, nil, err)
		assert.Equal(t, v, got)
	}
}

func TestPackedEncodingIsBitExact(t *testing.T) {
	w := NewWriter()
	w.WritePackedUint32(300)
	assert.Equal(t, []byte{0xAC, 0x02}, w.Bytes())

	w = NewWriter()
	w.WritePackedUint32(math.MaxUint32)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, w.Bytes())
}

func TestPackedTruncated(t *testing.T) {
	_, err := NewReader([]byte{0x80, 0x80}).ReadPackedUint32()
	assert.T(t, errors.Is(err, ErrTruncatedInput), err)
	assert.T(t, IsProtocolError(err))

	_, err = NewReader(nil).ReadPackedInt32()
	assert.T(t, errors.Is(err, ErrTruncatedInput), err)
}

func TestPackedOverflow(t *testing.T) {
	_, err := NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x10}).ReadPackedUint32()
	assert.T(t, errors.Is(err, ErrOverflow), err)

	// a sixth group would be needed
	_, err = NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}).ReadPackedUint32()
	assert.T(t, errors.Is(err, ErrOverflow), err)
	assert.T(t, IsProtocolError(err))
}

func TestReadMessage(t *testing.T) {
	w := NewWriter()
	w.StartMessage(4)
	w.WritePackedUint32(42)
	w.StartMessage(1)
	w.WriteBytes([]byte{9, 9})
	w.EndMessage()
	w.EndMessage()
	w.StartMessage(7)
	w.EndMessage()

	r := NewReader(w.Bytes())
	outer, err := r.ReadMessage()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(4), outer.Tag())
	assert.Equal(t, 0, outer.Position())
	assert.Equal(t, 6, outer.Len())

	id, err := outer.ReadPackedUint32()
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(42), id)

	inner, err := outer.ReadMessage()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(1), inner.Tag())
	assert.Equal(t, []byte{9, 9}, inner.Unread())

	empty, err := r.ReadMessage()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(7), empty.Tag())
	assert.Equal(t, 0, empty.Len())
	assert.T(t, !r.HasRemaining())
}

func TestReadMessageSkipsUnreadPayload(t *testing.T) {
	w := NewWriter()
	w.StartMessage(99)
	w.WriteBytes([]byte{1, 2, 3, 4, 5})
	w.EndMessage()
	w.StartMessage(5)
	w.WritePackedUint32(3)
	w.EndMessage()

	r := NewReader(w.Bytes())
	_, err := r.ReadMessage()
	assert.Equal(t, nil, err)
	next, err := r.ReadMessage()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(5), next.Tag())
}

func TestReadMessageLengthPastBuffer(t *testing.T) {
	// declares 10 bytes, carries 2
	r := NewReader([]byte{10, 0, 1, 0xAA, 0xBB})
	sub, err := r.ReadMessage()
	assert.T(t, sub == nil)
	assert.T(t, errors.Is(err, ErrTruncatedInput), err)

	// header itself cut short
	_, err = NewReader([]byte{1, 0}).ReadMessage()
	assert.T(t, errors.Is(err, ErrTruncatedInput), err)
}

func TestNestedReaderBoundedByParent(t *testing.T) {
	// outer message of 4 bytes whose child claims 3 bytes but only 1 is inside the parent
	r := NewReader([]byte{4, 0, 1, 3, 0, 2, 0xFF, 0xEE, 0xDD})
	outer, err := r.ReadMessage()
	assert.Equal(t, nil, err)
	_, err = outer.ReadMessage()
	assert.T(t, errors.Is(err, ErrTruncatedInput), err)
}

func TestReadString(t *testing.T) {
	w := NewWriter()
	w.WriteString("OnlineGame")
	w.WriteString("")
	w.WriteString("héllo")
	r := NewReader(w.Bytes())

	s, err := r.ReadString()
	assert.Equal(t, nil, err)
	assert.Equal(t, "OnlineGame", s)
	s, err = r.ReadString()
	assert.Equal(t, nil, err)
	assert.Equal(t, "", s)
	s, err = r.ReadString()
	assert.Equal(t, nil, err)
	assert.Equal(t, "héllo", s)
}

func TestReadStringTruncated(t *testing.T) {
	_, err := NewReader([]byte{5, 'a', 'b'}).ReadString()
	assert.T(t, errors.Is(err, ErrTruncatedInput), err)
}

func TestBytesAndSize(t *testing.T) {
	blob := []byte{1, 2, 3, 4, 5, 6, 7}
	w := NewWriter()
	w.WriteBytesAndSize(blob)
	w.WriteByte(0xEE)

	r := NewReader(w.Bytes())
	got, err := r.ReadBytesAndSize()
	assert.Equal(t, nil, err)
	assert.Equal(t, blob, got)
	b, err := r.ReadByte()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(0xEE), b)

	_, err = NewReader([]byte{9, 1}).ReadBytesAndSize()
	assert.T(t, errors.Is(err, ErrTruncatedInput), err)
}

func TestFixedWidth(t *testing.T) {
	w := NewWriter()
	w.WriteUint16(0xBEEF)
	w.WriteInt32(-5)
	w.WriteFloat32(1.5)
	w.WriteBool(true)

	r := NewReader(w.Bytes())
	u16, _ := r.ReadUint16()
	assert.Equal(t, uint16(0xBEEF), u16)
	i32, _ := r.ReadInt32()
	assert.Equal(t, int32(-5), i32)
	f, _ := r.ReadFloat32()
	assert.Equal(t, float32(1.5), f)
	b, _ := r.ReadBool()
	assert.T(t, b)

	_, err := r.ReadUint32()
	assert.T(t, IsProtocolError(err))
}
