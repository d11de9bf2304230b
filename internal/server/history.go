package server

import (
	"sync"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
)

const DEFAULT_HISTORY_SIZE = 20

// History keeps the most recent messages for priming newly joined sessions.
// It is not durable.
type History struct {
	mu    sync.Mutex
	buf   []protocol.Message
	start int
	size  int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DEFAULT_HISTORY_SIZE
	}
	return &History{buf: make([]protocol.Message, capacity)}
}

func (h *History) Append(m protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	end := (h.start + h.size) % len(h.buf)
	h.buf[end] = m
	if h.size < len(h.buf) {
		h.size++
	} else {
		h.start = (h.start + 1) % len(h.buf)
	}
}

// Tail returns up to n of the newest messages, oldest first.
func (h *History) Tail(n int) []protocol.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	n = min(max(n, 0), h.size)
	out := make([]protocol.Message, 0, n)
	for i := h.size - n; i < h.size; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

func (h *History) Cap() int {
	return len(h.buf)
}
