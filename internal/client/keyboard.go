package client

import (
	"os"
	"time"
)

const (
	KEY_CTRL_C byte = 0x03 // interrupt
	KEY_CTRL_R byte = 0x12

	KEY_BACKSPACE byte = 0x7F // DEL (most terminals)
	KEY_CTRL_H    byte = 0x08 // backspace on some terminals

	KEY_TAB   byte = 0x09
	KEY_ENTER byte = 0x0D // carriage return
	KEY_ESC   byte = 0x1B
)

// Printable ASCII range
// 0x20 (space) → 0x7E (~)

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

var (
	KEY_UP   = []byte{0x1B, 0x5B, 'A'}
	KEY_DOWN = []byte{0x1B, 0x5B, 'B'}
)

type KeyType int

const (
	KEY_TYPE_PRINTABLE KeyType = iota
	KEY_TYPE_CTRL_C
	KEY_TYPE_CTRL_R
	KEY_TYPE_ESC
	KEY_TYPE_UP_ARROW
	KEY_TYPE_DOWN_ARROW
	KEY_TYPE_TAB
	KEY_TYPE_ENTER
	KEY_TYPE_BACKSPACE
	KEY_TYPE_UNKNOWN
)

type EventKeyPress struct {
	KeyType KeyType
	Char    byte
}

var singleByteKeys = map[byte]KeyType{
	KEY_CTRL_C:    KEY_TYPE_CTRL_C,
	KEY_CTRL_R:    KEY_TYPE_CTRL_R,
	KEY_TAB:       KEY_TYPE_TAB,
	KEY_ENTER:     KEY_TYPE_ENTER,
	KEY_BACKSPACE: KEY_TYPE_BACKSPACE,
	KEY_CTRL_H:    KEY_TYPE_BACKSPACE,
}

func listenKeyEvents(events chan EventKeyPress) {
	for {
		event, err := readKey()
		if err != nil {
			close(events)
			break
		}
		events <- event
	}
}

func readKey() (EventKeyPress, error) {
	bt := make([]byte, 1)
	_, err := os.Stdin.Read(bt)
	if err != nil {
		return EventKeyPress{}, err
	}

	if isPrintable(bt[0]) {
		return EventKeyPress{KeyType: KEY_TYPE_PRINTABLE, Char: bt[0]}, nil
	}
	if keyType, ok := singleByteKeys[bt[0]]; ok {
		return EventKeyPress{KeyType: keyType, Char: bt[0]}, nil
	}
	if bt[0] != KEY_ESC {
		return EventKeyPress{KeyType: KEY_TYPE_UNKNOWN, Char: bt[0]}, nil
	}

	os.Stdin.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	defer os.Stdin.SetReadDeadline(time.Time{})

	seq := []byte{KEY_ESC}
	for len(seq) < 3 {
		if _, err := os.Stdin.Read(bt); err != nil {
			return EventKeyPress{KeyType: KEY_TYPE_ESC, Char: KEY_ESC}, nil
		}
		seq = append(seq, bt[0])
	}
	return EventKeyPress{KeyType: escapeSequenceKey(seq)}, nil
}

func escapeSequenceKey(seq []byte) KeyType {
	switch string(seq) {
	case string(KEY_UP):
		return KEY_TYPE_UP_ARROW
	case string(KEY_DOWN):
		return KEY_TYPE_DOWN_ARROW
	}
	return KEY_TYPE_UNKNOWN
}
