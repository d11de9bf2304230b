package server

import (
	"encoding/json"
	"fmt"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/rs/zerolog"
)

// Broadcaster fans events out to every live session. Delivery is best effort:
// closed transports are skipped and nothing is retried.
type Broadcaster struct {
	registry *Registry
	log      zerolog.Logger
}

func NewBroadcaster(registry *Registry, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log}
}

// Uniform serializes the event once and sends the same bytes to everyone.
// It returns the number of sessions the payload was handed to.
func (b *Broadcaster) Uniform(event any) int {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error().Err(err).Msg("marshal broadcast")
		return 0
	}
	delivered := 0
	for _, s := range b.registry.sessionsByJoinTime() {
		if b.deliver(s, payload) {
			delivered++
		}
	}
	return delivered
}

// Personalized sends one message event to every session with isOwn computed
// for that recipient.
func (b *Broadcaster) Personalized(event protocol.MessageEvent, isOwn func(Session) bool) int {
	delivered := 0
	for _, s := range b.registry.sessionsByJoinTime() {
		recipient := event
		recipient.IsOwn = isOwn(*s)
		payload, err := json.Marshal(recipient)
		if err != nil {
			b.log.Error().Err(err).Msg("marshal personalized broadcast")
			return delivered
		}
		if b.deliver(s, payload) {
			delivered++
		}
	}
	return delivered
}

func (b *Broadcaster) SendTo(id string, event any) error {
	s, ok := b.registry.lookupConn(id)
	if !ok {
		return fmt.Errorf("session %s not registered", id)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if !b.deliver(s, payload) {
		return fmt.Errorf("session %s not writable", id)
	}
	return nil
}

func (b *Broadcaster) deliver(s *Session, payload []byte) bool {
	if s.conn == nil || !s.conn.IsOpen() {
		return false
	}
	if err := s.conn.Send(payload); err != nil {
		b.log.Debug().Err(err).Str("session", s.ID).Msg("drop payload")
		return false
	}
	return true
}
