package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/rs/zerolog"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	DEFAULT_CONNECT_TIMEOUT        = 5 * time.Second
	DEFAULT_MAX_RECONNECT_ATTEMPTS = 5
	DEFAULT_RECONNECT_DELAY        = time.Second
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectTimeout   = errors.New("connect timed out")
	ErrInvalidNickname  = errors.New("nickname must be 1-20 characters")
	ErrInvalidContent   = errors.New("message must be 1-500 characters")
	ErrConnectionClosed = errors.New("connection closed")
)

type ConnectionOptions struct {
	URL                  string
	Nickname             string
	ConnectTimeout       time.Duration
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	Dialer               Dialer
}

// BackoffDelay is the wait before reconnect attempt n (1-based).
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

// Connection is one client's link to the relay. It dials, announces the
// nickname, and reconnects with linear backoff after an unexpected close.
type Connection struct {
	opts ConnectionOptions
	log  zerolog.Logger

	mu            sync.Mutex
	writeMu       sync.Mutex
	state         State
	conn          Conn
	gen           uint64
	attempts      int
	cancelBackoff context.CancelFunc

	events    chan protocol.Envelope
	states    chan State
	closed    chan struct{}
	closeOnce sync.Once

	wait func(ctx context.Context, d time.Duration) error
}

// ValidateNickname trims the nickname and checks it against the relay's bounds.
func ValidateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if n := utf8.RuneCountInString(nickname); n == 0 || n > protocol.MAX_NICKNAME_LENGTH {
		return "", ErrInvalidNickname
	}
	return nickname, nil
}

func NewConnection(opts ConnectionOptions, log zerolog.Logger) (*Connection, error) {
	nickname, err := ValidateNickname(opts.Nickname)
	if err != nil {
		return nil, err
	}
	opts.Nickname = nickname
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DEFAULT_CONNECT_TIMEOUT
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DEFAULT_MAX_RECONNECT_ATTEMPTS
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DEFAULT_RECONNECT_DELAY
	}
	if opts.Dialer == nil {
		opts.Dialer = WSDialer{}
	}
	return &Connection{
		opts:   opts,
		log:    log.With().Str("component", "connection").Str("nickname", nickname).Logger(),
		events: make(chan protocol.Envelope, 256),
		states: make(chan State, 32),
		closed: make(chan struct{}),
		wait:   sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) Nickname() string { return c.opts.Nickname }

// Events delivers every decoded frame from the relay.
func (c *Connection) Events() <-chan protocol.Envelope { return c.events }

// States delivers state transitions. Slow readers miss intermediate states;
// State always reports the current one.
func (c *Connection) States() <-chan State { return c.states }

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts is the reconnect attempt in progress, zero when not reconnecting.
func (c *Connection) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// setState must be called with mu held.
func (c *Connection) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.log.Debug().Stringer("state", s).Int("attempt", c.attempts).Msg("state change")
	select {
	case c.states <- s:
	default:
	}
}

// Connect dials the relay and joins the room. It cancels any reconnect in
// progress and resets the attempt counter.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return ErrConnectionClosed
	default:
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.stopBackoff()
	c.attempts = 0
	c.gen++
	gen := c.gen
	c.setState(StateConnecting)
	c.mu.Unlock()

	conn, err := c.dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Disconnect or another Connect won the race.
		if conn != nil {
			conn.Close()
		}
		if err != nil {
			return err
		}
		return ErrNotConnected
	}
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}
	c.attach(conn)
	return nil
}

func (c *Connection) dial(ctx context.Context) (Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn, err := c.opts.Dialer.DialContext(dctx, c.opts.URL, nil)
	if err != nil {
		if errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrConnectTimeout, c.opts.ConnectTimeout)
		}
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	if err := writeJSON(conn, protocol.NewJoinRequest(c.opts.Nickname)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}
	return conn, nil
}

// attach must be called with mu held.
func (c *Connection) attach(conn Conn) {
	c.gen++
	c.conn = conn
	c.attempts = 0
	c.cancelBackoff = nil
	c.setState(StateConnected)
	c.log.Info().Str("url", c.opts.URL).Msg("connected")
	go c.listenWSEvents(conn, c.gen)
}

func (c *Connection) handleClose(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if isCleanClose(err) {
		c.log.Info().Msg("relay closed the connection")
		c.setState(StateDisconnected)
		return
	}
	c.log.Warn().Err(err).Msg("connection lost")
	select {
	case <-c.closed:
		c.setState(StateDisconnected)
		return
	default:
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelBackoff = cancel
	c.setState(StateReconnecting)
	go c.reconnect(ctx, c.gen)
}

func (c *Connection) reconnect(ctx context.Context, gen uint64) {
	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		c.mu.Lock()
		if ctx.Err() != nil || gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.attempts = attempt
		c.mu.Unlock()

		delay := BackoffDelay(c.opts.ReconnectDelay, attempt)
		c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")
		if err := c.wait(ctx, delay); err != nil {
			return
		}

		conn, err := c.dial(ctx)

		c.mu.Lock()
		if ctx.Err() != nil || gen != c.gen {
			c.mu.Unlock()
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err == nil {
			c.attach(conn)
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() == nil && gen == c.gen {
		c.log.Error().Int("attempts", c.opts.MaxReconnectAttempts).Msg("giving up reconnecting")
		c.attempts = 0
		c.cancelBackoff = nil
		c.setState(StateDisconnected)
	}
}

// stopBackoff must be called with mu held.
func (c *Connection) stopBackoff() {
	if c.cancelBackoff != nil {
		c.cancelBackoff()
		c.cancelBackoff = nil
	}
}

// Disconnect closes the socket cleanly and cancels any pending reconnect.
// It never triggers a reconnect.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.stopBackoff()
	c.gen++
	conn := c.conn
	c.conn = nil
	c.attempts = 0
	c.setState(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		closeGracefully(conn)
		c.writeMu.Unlock()
	}
}

// Close disconnects and stops event delivery for good.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.Disconnect()
	})
}

// Send writes v to the relay. Nothing is queued while offline.
func (c *Connection) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected && conn != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeJSON(conn, v)
}

func (c *Connection) SendChat(content string) error {
	if err := ValidateContent(content); err != nil {
		return err
	}
	return c.Send(protocol.NewChatRequest(content))
}

func (c *Connection) RequestTopicChange() error {
	return c.Send(protocol.NewTopicChangeRequest())
}

func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" || utf8.RuneCountInString(content) > protocol.MAX_CONTENT_LENGTH {
		return ErrInvalidContent
	}
	return nil
}
