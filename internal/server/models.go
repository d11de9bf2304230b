package server

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
)

const (
	SYSTEM_AUTHOR    = "System"
	JOIN_TIME_FORMAT = "2006-01-02T15:04:05.000Z07:00"
	TIMESTAMP_FORMAT = "15:04"
)

var (
	ErrBrokerStopped   = errors.New("broker stopped")
	ErrInvalidNickname = errors.New("invalid nickname")
	ErrInvalidContent  = errors.New("invalid content")
)

// Conn is the registry's handle on one session's transport.
type Conn interface {
	Send(payload []byte) error
	IsOpen() bool
	Close() error
}

type Session struct {
	ID       string
	Nickname string
	JoinTime time.Time
	conn     Conn
}

func (s Session) User() protocol.User {
	return protocol.User{
		ID:       s.ID,
		Nickname: s.Nickname,
		JoinTime: s.JoinTime.UTC().Format(JOIN_TIME_FORMAT),
	}
}

func normalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || utf8.RuneCountInString(nickname) > protocol.MAX_NICKNAME_LENGTH {
		return "", ErrInvalidNickname
	}
	return nickname, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" || utf8.RuneCountInString(content) > protocol.MAX_CONTENT_LENGTH {
		return ErrInvalidContent
	}
	return nil
}
