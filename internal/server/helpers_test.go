package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	sendErr error
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.closed {
		return errors.New("closed")
	}
	c.frames = append(c.frames, payload)
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	return !c.IsOpen()
}

func (c *fakeConn) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(c.frames))
	for _, frame := range c.frames {
		env, err := protocol.Decode(frame)
		if err != nil {
			t.Fatalf("undecodable frame %s: %v", frame, err)
		}
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) ofType(t *testing.T, typ string) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for _, env := range c.envelopes(t) {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeTimer struct {
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	f.stopped = true
	return true
}
