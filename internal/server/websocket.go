package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var wsUpgrader = websocket.Upgrader{}

var (
	errConnClosed = errors.New("connection closed")
	errOutboxFull = errors.New("outbox full")
)

type TransportOptions struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	OutboxSize       int
	// InboundRate is the sustained number of frames per second accepted from
	// one session. Zero disables limiting.
	InboundRate  float64
	InboundBurst int
}

func (o TransportOptions) withDefaults() TransportOptions {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 1024
	}
	if o.InboundRate > 0 && o.InboundBurst <= 0 {
		o.InboundBurst = int(o.InboundRate) + 1
	}
	return o
}

// wsConn is a session transport: a bounded outbox drained by one writer goroutine.
type wsConn struct {
	conn         *websocket.Conn
	outbox       chan []byte
	closed       chan struct{}
	once         sync.Once
	writeTimeout time.Duration
}

func newWSConn(conn *websocket.Conn, outboxSize int, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		conn:         conn,
		outbox:       make(chan []byte, outboxSize),
		closed:       make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) Send(payload []byte) error {
	if !c.IsOpen() {
		return errConnClosed
	}
	select {
	case c.outbox <- payload:
		return nil
	default:
		return errOutboxFull
	}
}

func (c *wsConn) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) messageSender() {
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (b *Broker) HandleWebsocketConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("upgrade")
		return
	}
	b.log.Debug().Str("remote", r.RemoteAddr).Msg("connection waiting for join")
	go b.waitForJoin(conn)
}

// waitForJoin reads frames until a valid user_join arrives or the handshake
// deadline passes. Anything else received before joining is dropped.
func (b *Broker) waitForJoin(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(b.transport.HandshakeTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.log.Debug().Err(err).Msg("closing client, no join received")
			conn.Close()
			return
		}
		envelope, err := protocol.Decode(data)
		if err != nil {
			b.log.Warn().Err(err).Msg("malformed frame before join")
			continue
		}
		if envelope.Type != protocol.TYPE_USER_JOIN {
			b.log.Debug().Str("type", envelope.Type).Msg("frame before join dropped")
			continue
		}
		if _, err := normalizeNickname(envelope.Nickname); err != nil {
			b.log.Warn().Err(err).Str("nickname", envelope.Nickname).Msg("join rejected")
			continue
		}

		conn.SetReadDeadline(time.Time{})
		peer := newWSConn(conn, b.transport.OutboxSize, b.transport.WriteTimeout)
		id, err := b.Join(envelope.Nickname, peer)
		if err != nil {
			peer.Close()
			return
		}
		go peer.messageSender()
		b.messageReciever(id, peer)
		return
	}
}

func (b *Broker) messageReciever(id string, peer *wsConn) {
	var limiter *rate.Limiter
	if b.transport.InboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.transport.InboundRate), b.transport.InboundBurst)
	}
	for {
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			peer.Close()
			b.Leave(id)
			return
		}
		envelope, err := protocol.Decode(data)
		if err != nil {
			b.log.Warn().Err(err).Str("session", id).Msg("malformed frame dropped")
			continue
		}
		if limiter != nil && !limiter.Allow() {
			b.log.Warn().Str("session", id).Str("type", envelope.Type).Msg("rate limited frame dropped")
			continue
		}
		b.Submit(id, envelope)
	}
}

type healthResponse struct {
	Status       string          `json:"status"`
	Users        []protocol.User `json:"users"`
	CurrentTopic string          `json:"currentTopic"`
	TopicHistory []string        `json:"topicHistory"`
}

func (b *Broker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	select {
	case <-b.done:
		status = "stopped"
	default:
	}
	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(healthResponse{
		Status:       status,
		Users:        b.Users(),
		CurrentTopic: b.CurrentTopic(),
		TopicHistory: b.TopicHistory(),
	})
}
