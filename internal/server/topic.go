package server

import (
	"errors"
	"math/rand"
	"sync"
)

const TOPIC_HISTORY_CAP = 10

var ErrNoAlternativeTopic = errors.New("topic pool has no alternative to the current topic")

// TopicRotator owns the current discussion topic and the recent ones.
type TopicRotator struct {
	mu      sync.Mutex
	pool    []string
	current string
	history []string
	intn    func(n int) int
}

// NewTopicRotator starts on the first topic of the pool.
func NewTopicRotator(pool []string) *TopicRotator {
	t := &TopicRotator{
		pool: append([]string(nil), pool...),
		intn: rand.Intn,
	}
	if len(t.pool) > 0 {
		t.current = t.pool[0]
	}
	return t
}

func (t *TopicRotator) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// History returns recent topics, most recent first.
func (t *TopicRotator) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history...)
}

// Rotate draws a new topic different from the current one.
func (t *TopicRotator) Rotate() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasAlternative() {
		return "", ErrNoAlternativeTopic
	}
	next := t.current
	for next == t.current {
		next = t.pool[t.intn(len(t.pool))]
	}

	t.pushHistory(t.current)
	t.history = remove(t.history, next)
	t.current = next
	return next, nil
}

// ReplacePool swaps the pool rotations draw from. The current topic stays
// until the next rotation even when the new pool lacks it.
func (t *TopicRotator) ReplacePool(pool []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pool = append([]string(nil), pool...)
	if t.current == "" && len(t.pool) > 0 {
		t.current = t.pool[0]
	}
}

func (t *TopicRotator) hasAlternative() bool {
	for _, topic := range t.pool {
		if topic != t.current {
			return true
		}
	}
	return false
}

func (t *TopicRotator) pushHistory(topic string) {
	if topic == "" {
		return
	}
	t.history = append([]string{topic}, remove(t.history, topic)...)
	if len(t.history) > TOPIC_HISTORY_CAP {
		t.history = t.history[:TOPIC_HISTORY_CAP]
	}
}

func remove(list []string, value string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
