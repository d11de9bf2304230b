package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/gorilla/websocket"
)

// Conn is the part of *websocket.Conn the connection drives.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WSDialer dials with a gorilla websocket.Dialer.
type WSDialer struct {
	Dialer *websocket.Dialer
}

func (d WSDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func writeJSON(conn Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// isCleanClose reports whether the peer ended the socket with a normal
// closure frame.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}

func closeGracefully(conn Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
}

// listenWSEvents decodes frames from conn until it fails, dropping
// malformed ones, and hands the terminal error to handleClose.
func (c *Connection) listenWSEvents(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("drop malformed frame")
			continue
		}
		select {
		case c.events <- env:
		case <-c.closed:
			return
		}
	}
}
