package packet

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SessionState represents the connection's current protocol phase.
type SessionState int

const (
	StateConnected SessionState = iota // handshake done, not in a game
	StateInGame                        // hosted or joined a game
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateInGame:
		return "InGame"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc handles one root message. The session is passed as an opaque
// interface to avoid import cycles. A returned ProtocolError means the
// connection's stream can no longer be trusted.
type HandlerFunc func(sess any, r *Reader) error

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps root tags to handlers with state-based access control.
type Registry struct {
	handlers map[RootTag]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[RootTag]*handlerEntry),
		log:      log,
	}
}

// Register maps a root tag to a handler, restricted to the given session states.
func (reg *Registry) Register(tag RootTag, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[tag] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Has reports whether a handler is registered for tag.
func (reg *Registry) Has(tag RootTag) bool {
	_, ok := reg.handlers[tag]
	return ok
}

// DispatchPacket walks every root message of one transport packet and
// dispatches it. It stops at the first error.
func (reg *Registry) DispatchPacket(sess any, state func() SessionState, data []byte) error {
	r := NewReader(data)
	for r.HasRemaining() {
		msg, err := r.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read root message")
		}
		if err := reg.Dispatch(sess, state(), msg); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch finds the handler for the message tag, validates the session
// state and calls the handler. Unknown tags are ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, msg *Reader) error {
	tag := RootTag(msg.Tag())
	reg.log.Debug("root message",
		zap.Stringer("tag", tag),
		zap.Int("size", msg.Len()),
		zap.Stringer("state", state),
	)

	entry, ok := reg.handlers[tag]
	if !ok {
		reg.log.Debug("unhandled root tag", zap.Stringer("tag", tag), zap.Stringer("state", state))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("root tag not allowed in state",
			zap.Stringer("tag", tag),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("tag %s not allowed in state %s", tag, state)
	}

	return reg.safeCall(entry.fn, sess, msg, tag)
}

// safeCall executes a handler with panic recovery so a single bad message
// cannot take down the connection's goroutine.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader, tag RootTag) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Stringer("tag", tag),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for tag %s: %v", tag, rec)
		}
	}()
	return fn(sess, r)
}
