package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type frame struct {
	data []byte
	err  error
}

type fakeWSConn struct {
	reads chan frame
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	writes []frame
	types  []int
}

func newFakeWSConn() *fakeWSConn {
	return &fakeWSConn{reads: make(chan frame, 16), done: make(chan struct{})}
}

func (f *fakeWSConn) ReadMessage() (int, []byte, error) {
	select {
	case fr := <-f.reads:
		if fr.err != nil {
			return 0, nil, fr.err
		}
		return websocket.TextMessage, fr.data, nil
	case <-f.done:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (f *fakeWSConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return errors.New("write on closed connection")
	default:
	}
	f.types = append(f.types, messageType)
	f.writes = append(f.writes, frame{data: data})
	return nil
}

func (f *fakeWSConn) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeWSConn) isClosed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *fakeWSConn) sent(t *testing.T) []protocol.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Envelope
	for i, w := range f.writes {
		if f.types[i] != websocket.TextMessage {
			continue
		}
		env, err := protocol.Decode(w.data)
		if err != nil {
			t.Fatalf("decode sent frame %q: %v", w.data, err)
		}
		out = append(out, env)
	}
	return out
}

func (f *fakeWSConn) sentClose() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, typ := range f.types {
		if typ == websocket.CloseMessage {
			return true
		}
	}
	return false
}

type dialResult struct {
	conn  *fakeWSConn
	err   error
	block bool
}

type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	calls   int
}

func (d *fakeDialer) DialContext(ctx context.Context, url string, _ http.Header) (Conn, error) {
	d.mu.Lock()
	d.calls++
	var res dialResult
	if len(d.results) > 0 {
		res = d.results[0]
		d.results = d.results[1:]
	} else {
		res = dialResult{err: errors.New("connection refused")}
	}
	d.mu.Unlock()

	if res.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.conn, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	block  bool
}

func (r *delayRecorder) wait(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	block := r.block
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return ctx.Err()
}

func (r *delayRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestConnection(t *testing.T, dialer *fakeDialer, waits *delayRecorder) *Connection {
	t.Helper()
	c, err := NewConnection(ConnectionOptions{
		URL:            "ws://relay.test/ws",
		Nickname:       "Fox",
		ConnectTimeout: 50 * time.Millisecond,
		Dialer:         dialer,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}
	if waits != nil {
		c.wait = waits.wait
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewConnectionValidatesNickname(t *testing.T) {
	for _, nickname := range []string{"", "  ", "abcdefghijklmnopqrstuvwxyz"} {
		if _, err := NewConnection(ConnectionOptions{Nickname: nickname}, zerolog.Nop()); !errors.Is(err, ErrInvalidNickname) {
			t.Fatalf("nickname %q: expected ErrInvalidNickname, got %v", nickname, err)
		}
		if _, err := ValidateNickname(nickname); !errors.Is(err, ErrInvalidNickname) {
			t.Fatalf("ValidateNickname(%q): expected ErrInvalidNickname, got %v", nickname, err)
		}
	}
	if got, err := ValidateNickname("  Fox "); err != nil || got != "Fox" {
		t.Fatalf("expected trimmed nickname, got %q %v", got, err)
	}
}

func TestConnectSendsJoin(t *testing.T) {
	conn := newFakeWSConn()
	c := newTestConnection(t, &fakeDialer{results: []dialResult{{conn: conn}}}, nil)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.State() != StateConnected {
		t.Fatalf("expected connected, got %v", c.State())
	}
	sent := conn.sent(t)
	if len(sent) != 1 || sent[0].Type != protocol.TYPE_USER_JOIN || sent[0].Nickname != "Fox" {
		t.Fatalf("expected user_join, got %+v", sent)
	}

	if err := c.SendChat("hello"); err != nil {
		t.Fatalf("send chat: %v", err)
	}
	if err := c.RequestTopicChange(); err != nil {
		t.Fatalf("topic change: %v", err)
	}
	sent = conn.sent(t)
	if len(sent) != 3 || sent[1].Content != "hello" || sent[2].Type != protocol.TYPE_TOPIC_CHANGE {
		t.Fatalf("unexpected frames %+v", sent)
	}
}

func TestConnectTimeout(t *testing.T) {
	c := newTestConnection(t, &fakeDialer{results: []dialResult{{block: true}}}, nil)

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %v", c.State())
	}
}

func TestConnectDialFailure(t *testing.T) {
	c := newTestConnection(t, &fakeDialer{}, nil)
	if err := c.Connect(context.Background()); err == nil || errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected plain dial error, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %v", c.State())
	}
}

func TestSendRequiresConnection(t *testing.T) {
	c := newTestConnection(t, &fakeDialer{}, nil)
	if err := c.SendChat("hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.RequestTopicChange(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.SendChat(" "); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestEventsSkipMalformedFrames(t *testing.T) {
	conn := newFakeWSConn()
	c := newTestConnection(t, &fakeDialer{results: []dialResult{{conn: conn}}}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	good, _ := json.Marshal(protocol.Envelope{Type: protocol.TYPE_SYSTEM, Content: "hi"})
	conn.reads <- frame{data: []byte("{oops")}
	conn.reads <- frame{data: []byte(`{"content":"untyped"}`)}
	conn.reads <- frame{data: good}

	select {
	case env := <-c.Events():
		if env.Type != protocol.TYPE_SYSTEM || env.Content != "hi" {
			t.Fatalf("unexpected event %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	if c.State() != StateConnected {
		t.Fatalf("malformed frames must not drop the connection")
	}
}

func TestCleanCloseDoesNotReconnect(t *testing.T) {
	conn := newFakeWSConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	waits := &delayRecorder{}
	c := newTestConnection(t, dialer, waits)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	conn.reads <- frame{err: &websocket.CloseError{Code: websocket.CloseNormalClosure}}

	waitFor(t, "disconnected", func() bool { return c.State() == StateDisconnected })
	time.Sleep(50 * time.Millisecond)
	if dialer.callCount() != 1 || len(waits.recorded()) != 0 {
		t.Fatalf("expected no reconnect after clean close")
	}
}

func TestReconnectBackoffUntilExhausted(t *testing.T) {
	conn := newFakeWSConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	waits := &delayRecorder{}
	c := newTestConnection(t, dialer, waits)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	conn.reads <- frame{err: io.ErrUnexpectedEOF}

	waitFor(t, "reconnect exhausted", func() bool {
		return len(waits.recorded()) == DEFAULT_MAX_RECONNECT_ATTEMPTS && c.State() == StateDisconnected
	})
	for i, d := range waits.recorded() {
		if want := time.Duration(i+1) * time.Second; d != want {
			t.Fatalf("attempt %d: delay %v, want %v", i+1, d, want)
		}
	}
	if got := dialer.callCount(); got != 1+DEFAULT_MAX_RECONNECT_ATTEMPTS {
		t.Fatalf("expected %d dials, got %d", 1+DEFAULT_MAX_RECONNECT_ATTEMPTS, got)
	}
	if err := c.SendChat("still there?"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after exhaustion, got %v", err)
	}

	var seen []State
	for len(c.States()) > 0 {
		seen = append(seen, <-c.States())
	}
	want := []State{StateConnecting, StateConnected, StateReconnecting, StateDisconnected}
	if len(seen) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, seen)
		}
	}
}

func TestReconnectSuccessResetsAttempts(t *testing.T) {
	first, second := newFakeWSConn(), newFakeWSConn()
	dialer := &fakeDialer{results: []dialResult{
		{conn: first},
		{err: errors.New("refused")},
		{conn: second},
	}}
	waits := &delayRecorder{}
	c := newTestConnection(t, dialer, waits)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	first.reads <- frame{err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}}

	waitFor(t, "reconnected", func() bool {
		return dialer.callCount() == 3 && c.State() == StateConnected
	})
	if c.Attempts() != 0 {
		t.Fatalf("expected attempts reset, got %d", c.Attempts())
	}
	if got := waits.recorded(); len(got) != 2 || got[0] != time.Second || got[1] != 2*time.Second {
		t.Fatalf("unexpected delays %v", got)
	}
	sent := second.sent(t)
	if len(sent) != 1 || sent[0].Type != protocol.TYPE_USER_JOIN {
		t.Fatalf("expected join on the new socket, got %+v", sent)
	}
	if err := c.SendChat("back"); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
}

func TestDisconnectCancelsBackoff(t *testing.T) {
	conn := newFakeWSConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	waits := &delayRecorder{block: true}
	c := newTestConnection(t, dialer, waits)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	conn.reads <- frame{err: io.ErrUnexpectedEOF}
	waitFor(t, "backoff started", func() bool { return len(waits.recorded()) == 1 })
	if c.State() != StateReconnecting || c.Attempts() != 1 {
		t.Fatalf("expected reconnecting attempt 1, got %v attempt %d", c.State(), c.Attempts())
	}

	c.Disconnect()
	time.Sleep(50 * time.Millisecond)
	if c.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %v", c.State())
	}
	if dialer.callCount() != 1 {
		t.Fatalf("expected no dial after disconnect, got %d", dialer.callCount())
	}
}

func TestConnectDuringBackoff(t *testing.T) {
	first, second := newFakeWSConn(), newFakeWSConn()
	dialer := &fakeDialer{results: []dialResult{{conn: first}, {conn: second}}}
	waits := &delayRecorder{block: true}
	c := newTestConnection(t, dialer, waits)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	first.reads <- frame{err: io.ErrUnexpectedEOF}
	waitFor(t, "backoff started", func() bool { return len(waits.recorded()) == 1 })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("manual connect: %v", err)
	}
	if c.State() != StateConnected || c.Attempts() != 0 {
		t.Fatalf("expected connected with attempts reset, got %v %d", c.State(), c.Attempts())
	}
	time.Sleep(50 * time.Millisecond)
	if dialer.callCount() != 2 {
		t.Fatalf("expected the pending backoff to be abandoned, got %d dials", dialer.callCount())
	}
}

func TestDisconnectSendsCloseFrame(t *testing.T) {
	conn := newFakeWSConn()
	c := newTestConnection(t, &fakeDialer{results: []dialResult{{conn: conn}}}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c.Disconnect()
	if !conn.sentClose() || !conn.isClosed() {
		t.Fatalf("expected a close frame and a closed socket")
	}
	time.Sleep(20 * time.Millisecond)
	if c.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %v", c.State())
	}
}

func TestBackoffDelay(t *testing.T) {
	for attempt := 1; attempt <= 5; attempt++ {
		if got := BackoffDelay(time.Second, attempt); got != time.Duration(attempt)*time.Second {
			t.Fatalf("attempt %d: got %v", attempt, got)
		}
	}
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
