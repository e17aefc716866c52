package packet

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTruncatedInput is returned when a read needs more bytes than remain.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrOverflow is returned when a packed integer does not fit 32 bits.
	ErrOverflow = errors.New("packed integer overflow")
)

// ProtocolError is a structural decode failure. The read position of the
// reader that produced it can no longer be trusted, so callers must not
// keep parsing the same buffer.
type ProtocolError struct {
	Op  string
	Pos int
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Pos, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether err (or anything it wraps) is a structural failure.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
