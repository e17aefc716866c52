package net

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// A frame is [uint16 LE length][payload], where the length counts its own
// two bytes. The payload holds one or more root messages.
const (
	frameHeaderLen = 2
	MaxFrameSize   = math.MaxUint16
)

var (
	ErrFrameTooShort = errors.New("frame shorter than its header")
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
)

// FrameReader splits a byte stream into frames.
type FrameReader struct {
	r     *bufio.Reader
	hdr   [frameHeaderLen]byte
	limit int
}

// NewFrameReader reads frames of at most limit bytes from r. A limit of 0
// or less allows the largest length the header can carry.
func NewFrameReader(r io.Reader, limit int) *FrameReader {
	if limit <= 0 || limit > MaxFrameSize {
		limit = MaxFrameSize
	}
	return &FrameReader{r: bufio.NewReader(r), limit: limit}
}

// Next returns the payload of the next frame. Each call returns a new
// slice, so callers may keep it.
func (fr *FrameReader) Next() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.hdr[:]); err != nil {
		return nil, err
	}
	size := int(binary.LittleEndian.Uint16(fr.hdr[:]))
	switch {
	case size <= frameHeaderLen:
		return nil, errors.Wrapf(ErrFrameTooShort, "length %d", size)
	case size > fr.limit:
		return nil, errors.Wrapf(ErrFrameTooLarge, "length %d, limit %d", size, fr.limit)
	}
	payload := make([]byte, size-frameHeaderLen)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, errors.Wrapf(err, "frame body of %d bytes", len(payload))
	}
	return payload, nil
}

// AppendFrame appends payload to dst as one frame.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	size := len(payload) + frameHeaderLen
	if size > MaxFrameSize {
		return dst, errors.Wrapf(ErrFrameTooLarge, "length %d", size)
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(size))
	return append(dst, payload...), nil
}
