package net

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/innernet/server/internal/net/packet"
	"go.uber.org/zap"
)

// Handler receives the packets and the close event of a session.
// HandlePacket runs on the session's read goroutine; returning an error
// closes the connection.
type Handler interface {
	HandlePacket(s *Session, data []byte) error
	SessionClosed(s *Session)
}

// SessionOptions carries the per-connection limits from config.
type SessionOptions struct {
	OutQueueSize     int
	PacketsPerSecond int // 0 = unlimited
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxFrameSize     int // 0 = largest the header allows
}

// Session is one client connection. Reads and writes run in their own
// goroutines; inbound packets are handed to the Handler in order.
type Session struct {
	ID   int32
	conn net.Conn

	state    atomic.Int32 // packet.SessionState stored as int32
	gameCode atomic.Int32

	OutQueue chan []byte // writer goroutine reads from here

	IP string

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktPerSec  int
	pktCount   int
	pktResetAt int64

	readTimeout  time.Duration
	writeTimeout time.Duration
	maxFrame     int

	handler Handler
	log     *zap.Logger
}

func NewSession(conn net.Conn, id int32, opts SessionOptions, handler Handler, log *zap.Logger) *Session {
	if opts.OutQueueSize <= 0 {
		opts.OutQueueSize = 64
	}
	s := &Session{
		ID:           id,
		conn:         conn,
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		closeCh:      make(chan struct{}),
		pktPerSec:    opts.PacketsPerSecond,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		maxFrame:     opts.MaxFrameSize,
		handler:      handler,
		log:          log.With(zap.Int32("client", id)),
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

// ClientID implements game.Player.
func (s *Session) ClientID() int32 { return s.ID }

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// GameCode returns the code of the game this session is in, 0 if none.
func (s *Session) GameCode() int32 { return s.gameCode.Load() }

// CompareAndSwapGameCode sets the game code to code if it is still old.
func (s *Session) CompareAndSwapGameCode(old, code int32) bool {
	return s.gameCode.CompareAndSwap(old, code)
}

// SwapGameCode stores code and returns the previous game code.
func (s *Session) SwapGameCode(code int32) int32 { return s.gameCode.Swap(code) }

// Log returns the session-scoped logger.
func (s *Session) Log() *zap.Logger { return s.log }

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues a transport packet. Non-blocking: a full queue disconnects
// the slow client.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("output queue full, dropping slow client")
		s.Close()
	}
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
		if s.handler != nil {
			s.handler.SessionClosed(s)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads frames and hands them to the handler. Any handler error
// ends the connection: after a structural failure the stream position is
// meaningless.
func (s *Session) readLoop() {
	defer s.Close()

	frames := NewFrameReader(s.conn, s.maxFrame)
	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		payload, err := frames.Next()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.pktPerSec > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.pktPerSec {
				s.log.Warn("packet rate exceeded, disconnecting", zap.Int("pps", s.pktCount))
				return
			}
		}

		if err := s.handler.HandlePacket(s, payload); err != nil {
			if packet.IsProtocolError(err) {
				s.log.Warn("malformed packet, disconnecting", zap.Error(err))
			} else {
				s.log.Info("packet rejected, disconnecting", zap.Error(err))
			}
			return
		}
	}
}

// writeBatchSize caps how many bytes of queued frames go out in one write.
const writeBatchSize = 16 << 10

// writeLoop drains OutQueue to the socket, coalescing whatever is already
// queued into a single write.
func (s *Session) writeLoop() {
	defer s.Close()

	var buf []byte
	for {
		select {
		case data := <-s.OutQueue:
			var err error
			if buf, err = s.appendQueued(buf[:0], data); err != nil {
				s.log.Warn("dropping outbound packet", zap.Error(err))
				continue
			}
			if s.writeTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if _, err := s.conn.Write(buf); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// appendQueued frames first and then any packets waiting in OutQueue
// until the batch reaches writeBatchSize. Oversized packets are dropped.
func (s *Session) appendQueued(buf, first []byte) ([]byte, error) {
	buf, err := AppendFrame(buf, first)
	if err != nil {
		return buf, err
	}
	for len(buf) < writeBatchSize {
		select {
		case data := <-s.OutQueue:
			if buf, err = AppendFrame(buf, data); err != nil {
				s.log.Warn("dropping outbound packet", zap.Error(err))
			}
		default:
			return buf, nil
		}
	}
	return buf, nil
}
