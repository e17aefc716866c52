package net

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/innernet/server/internal/net/packet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func writeFrame(t *testing.T, w io.Writer, payload []byte) {
	buf, err := AppendFrame(nil, payload)
	if err != nil {
		t.Errorf("frame: %v", err)
		return
	}
	if _, err := w.Write(buf); err != nil {
		t.Errorf("write: %v", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	buf, err := AppendFrame([]byte{9}, []byte{1, 2, 3})
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{9, 5, 0, 1, 2, 3}, buf)

	buf, err = AppendFrame(buf[1:], []byte{7})
	assert.Equal(t, nil, err)

	fr := NewFrameReader(bytes.NewReader(buf), 0)
	got, err := fr.Next()
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
	got, err = fr.Next()
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{7}, got)
	_, err = fr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFrameReaderRejects(t *testing.T) {
	_, err := NewFrameReader(bytes.NewReader([]byte{2, 0}), 0).Next()
	assert.T(t, errors.Is(err, ErrFrameTooShort))

	_, err = NewFrameReader(bytes.NewReader([]byte{9, 0, 1}), 0).Next()
	assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err))

	_, err = NewFrameReader(bytes.NewReader([]byte{0x10, 0, 1, 2}), 8).Next()
	assert.T(t, errors.Is(err, ErrFrameTooLarge))
}

func TestAppendFrameTooLarge(t *testing.T) {
	dst := []byte{1}
	out, err := AppendFrame(dst, make([]byte, MaxFrameSize))
	assert.T(t, errors.Is(err, ErrFrameTooLarge))
	assert.Equal(t, dst, out)
}

type chanHandler struct {
	packets chan []byte
	closed  chan struct{}
}

func (h *chanHandler) HandlePacket(s *Session, data []byte) error {
	if len(data) > 0 && data[0] == 0xFF {
		_, err := packet.NewReader(data).ReadMessage()
		return err
	}
	h.packets <- data
	return nil
}

func (h *chanHandler) SessionClosed(s *Session) { close(h.closed) }

func TestSessionDeliversAndCloses(t *testing.T) {
	server, client := net.Pipe()
	h := &chanHandler{packets: make(chan []byte, 4), closed: make(chan struct{})}
	sess := NewSession(server, 7, SessionOptions{OutQueueSize: 4}, h, zap.NewNop())
	sess.Start()
	assert.Equal(t, int32(7), sess.ClientID())
	assert.Equal(t, packet.StateConnected, sess.State())

	go writeFrame(t, client, []byte{0, 0, 0})
	select {
	case got := <-h.packets:
		assert.Equal(t, []byte{0, 0, 0}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("packet not delivered")
	}

	sess.Send([]byte{4, 2})
	out, err := NewFrameReader(client, 0).Next()
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{4, 2}, out)

	// a root message whose length overruns the frame
	go writeFrame(t, client, []byte{0xFF, 0x00, 0x05})
	select {
	case <-h.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("session not closed on malformed packet")
	}
	assert.T(t, sess.IsClosed())
	assert.Equal(t, packet.StateDisconnecting, sess.State())
	client.Close()
}

func TestQueuedPacketsCoalesced(t *testing.T) {
	server, client := net.Pipe()
	h := &chanHandler{packets: make(chan []byte, 1), closed: make(chan struct{})}
	sess := NewSession(server, 3, SessionOptions{OutQueueSize: 8}, h, zap.NewNop())

	// queued before the writer starts, so they share one write and the
	// oversized one is dropped
	sess.Send([]byte{1})
	sess.Send([]byte{2, 2})
	sess.Send(make([]byte, MaxFrameSize))
	sess.Send([]byte{3})
	sess.Start()

	fr := NewFrameReader(client, 0)
	for _, want := range [][]byte{{1}, {2, 2}, {3}} {
		got, err := fr.Next()
		assert.Equal(t, nil, err)
		assert.Equal(t, want, got)
	}
	sess.Close()
	client.Close()
}
