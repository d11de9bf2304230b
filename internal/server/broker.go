package server

import (
	"fmt"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/content"
	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Options struct {
	HistorySize      int
	BotReplyDelay    time.Duration
	BotCancelOnLeave bool
	// TopicSchedule is a cron expression for automatic topic rotation. Empty disables it.
	TopicSchedule string
	Content       content.Pack
	Transport     TransportOptions
}

type joinRequest struct {
	nickname string
	conn     Conn
	reply    chan string
}

type inboundEvent struct {
	sessionID string
	envelope  protocol.Envelope
}

type botReply struct {
	sessionID string
	task      *Task
}

// Broker is the relay actor. A single goroutine owns every state mutation:
// joins, leaves, inbound events, bot replies and scheduled rotations are all
// funnelled through its channels and handled one at a time.
type Broker struct {
	registry  *Registry
	history   *History
	topics    *TopicRotator
	bot       *Responder
	out       *Broadcaster
	botName   string
	transport TransportOptions

	cancelOnLeave bool
	pending       map[string]map[*Task]struct{}
	cron          *cron.Cron

	joinUserRequests    chan joinRequest
	kickOutUserRequests chan string
	inbound             chan inboundEvent
	botReplies          chan botReply
	rotations           chan struct{}
	contents            chan content.Pack
	stop                chan struct{}
	done                chan struct{}

	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

func NewBroker(opts Options, log zerolog.Logger) (*Broker, error) {
	pack := opts.Content
	if len(pack.Topics) == 0 {
		pack = content.Default()
	}
	if err := pack.Validate(); err != nil {
		return nil, err
	}

	registry := NewRegistry()
	b := &Broker{
		registry:            registry,
		history:             NewHistory(opts.HistorySize),
		topics:              NewTopicRotator(pack.Topics),
		bot:                 NewResponder(pack.Commands, pack.Help, opts.BotReplyDelay),
		out:                 NewBroadcaster(registry, log.With().Str("component", "broadcast").Logger()),
		botName:             pack.BotName,
		transport:           opts.Transport.withDefaults(),
		cancelOnLeave:       opts.BotCancelOnLeave,
		pending:             make(map[string]map[*Task]struct{}),
		joinUserRequests:    make(chan joinRequest, 1024),
		kickOutUserRequests: make(chan string, 1024),
		inbound:             make(chan inboundEvent, 1024),
		botReplies:          make(chan botReply, 1024),
		rotations:           make(chan struct{}, 16),
		contents:            make(chan content.Pack, 1),
		stop:                make(chan struct{}),
		done:                make(chan struct{}),
		now:                 time.Now,
		newID:               uuid.NewString,
		log:                 log.With().Str("component", "broker").Logger(),
	}

	if opts.TopicSchedule != "" {
		parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		b.cron = cron.New(cron.WithParser(parser))
		if _, err := b.cron.AddFunc(opts.TopicSchedule, b.RequestRotation); err != nil {
			return nil, fmt.Errorf("topic schedule %q: %w", opts.TopicSchedule, err)
		}
	}
	return b, nil
}

func (b *Broker) Start() {
	if b.cron != nil {
		b.cron.Start()
	}
	go func() {
		for {
			select {
			case request := <-b.joinUserRequests:
				b.handleJoinUserRequest(request)
			case event := <-b.inbound:
				b.handleInbound(event)
			case reply := <-b.botReplies:
				b.handleBotReply(reply)
			case id := <-b.kickOutUserRequests:
				b.handleKickOutUser(id)
			case <-b.rotations:
				b.rotateTopic("")
			case pack := <-b.contents:
				b.handleContent(pack)
			case <-b.stop:
				b.handleStop()
				return
			}
		}
	}()
}

// Stop shuts the actor down and waits for it to finish. Pending bot replies
// are cancelled and every session is closed.
func (b *Broker) Stop() {
	select {
	case b.stop <- struct{}{}:
		<-b.done
	case <-b.done:
	}
}

func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Join registers a session and returns its id once the newcomer has been
// primed with history and announced to the room.
func (b *Broker) Join(nickname string, conn Conn) (string, error) {
	nickname, err := normalizeNickname(nickname)
	if err != nil {
		return "", err
	}
	request := joinRequest{nickname: nickname, conn: conn, reply: make(chan string, 1)}
	select {
	case b.joinUserRequests <- request:
	case <-b.done:
		return "", ErrBrokerStopped
	}
	select {
	case id := <-request.reply:
		return id, nil
	case <-b.done:
		return "", ErrBrokerStopped
	}
}

func (b *Broker) Leave(sessionID string) {
	select {
	case b.kickOutUserRequests <- sessionID:
	case <-b.done:
	}
}

func (b *Broker) Submit(sessionID string, envelope protocol.Envelope) {
	select {
	case b.inbound <- inboundEvent{sessionID: sessionID, envelope: envelope}:
	case <-b.done:
	}
}

// RequestRotation asks for a topic rotation not tied to any session.
func (b *Broker) RequestRotation() {
	select {
	case b.rotations <- struct{}{}:
	case <-b.done:
	default:
		b.log.Warn().Msg("rotation request dropped, queue full")
	}
}

// ReplaceContent swaps the topic pool, command table and bot name without
// touching sessions, history or the current topic.
func (b *Broker) ReplaceContent(pack content.Pack) error {
	if err := pack.Validate(); err != nil {
		return err
	}
	select {
	case b.contents <- pack:
		return nil
	case <-b.done:
		return ErrBrokerStopped
	}
}

func (b *Broker) Users() []protocol.User {
	return b.registry.Snapshot()
}

func (b *Broker) CurrentTopic() string {
	return b.topics.Current()
}

func (b *Broker) TopicHistory() []string {
	return b.topics.History()
}

func (b *Broker) handleStop() {
	if b.cron != nil {
		b.cron.Stop()
	}
	for id := range b.pending {
		b.cancelPending(id)
	}
	b.registry.closeAll()
	close(b.done)
}

func (b *Broker) handleContent(pack content.Pack) {
	b.botName = pack.BotName
	b.topics.ReplacePool(pack.Topics)
	b.bot.Replace(pack.Commands, pack.Help)
	b.log.Info().Int("topics", len(pack.Topics)).Int("commands", len(pack.Commands)).Msg("content replaced")
}

func (b *Broker) handleJoinUserRequest(request joinRequest) {
	id := b.registry.Register(request.nickname, request.conn)
	request.reply <- id
	b.log.Info().Str("session", id).Str("nickname", request.nickname).Msg("join user")

	history := protocol.NewHistoryEvent(b.history.Tail(b.history.Cap()), b.topics.Current())
	if err := b.out.SendTo(id, history); err != nil {
		b.log.Warn().Err(err).Str("session", id).Msg("history not delivered")
	}
	b.announce(fmt.Sprintf("%s joined the room 🎉", request.nickname))
	b.out.Uniform(protocol.NewUserListEvent(b.registry.Snapshot()))
}

func (b *Broker) handleKickOutUser(id string) {
	session, ok := b.registry.Unregister(id)
	if !ok {
		return
	}
	b.log.Info().Str("session", id).Str("nickname", session.Nickname).Msg("kick user")
	if b.cancelOnLeave {
		b.cancelPending(id)
	}
	b.announce(fmt.Sprintf("%s left the room 👋", session.Nickname))
	b.out.Uniform(protocol.NewUserListEvent(b.registry.Snapshot()))
}

func (b *Broker) handleInbound(event inboundEvent) {
	session, ok := b.registry.Lookup(event.sessionID)
	if !ok {
		return
	}
	switch event.envelope.Type {
	case protocol.TYPE_CHAT_MESSAGE:
		b.handleChat(session, event.envelope.Content)
	case protocol.TYPE_TOPIC_CHANGE:
		b.rotateTopic(session.Nickname)
	case protocol.TYPE_USER_JOIN:
		b.log.Warn().Str("session", session.ID).Msg("ignoring repeated join")
	default:
		b.log.Warn().Str("session", session.ID).Str("type", event.envelope.Type).Msg("unknown event type")
	}
}

func (b *Broker) handleChat(sender Session, text string) {
	if err := validateContent(text); err != nil {
		b.log.Warn().Err(err).Str("session", sender.ID).Int("length", len(text)).Msg("drop chat message")
		return
	}

	message := b.newMessage(text, sender.Nickname, protocol.KindText)
	b.history.Append(message)
	b.out.Personalized(protocol.NewMessageEvent(message), func(recipient Session) bool {
		return recipient.ID == sender.ID
	})

	token, ok := ParseCommand(text)
	if !ok {
		b.log.Debug().Str("nickname", sender.Nickname).Str("content", text).Msg("chat")
		return
	}
	task := b.bot.Schedule(token, func(task *Task) {
		select {
		case b.botReplies <- botReply{sessionID: sender.ID, task: task}:
		case <-b.done:
		}
	})
	if b.pending[sender.ID] == nil {
		b.pending[sender.ID] = make(map[*Task]struct{})
	}
	b.pending[sender.ID][task] = struct{}{}
	b.log.Debug().Str("nickname", sender.Nickname).Str("command", token).Bool("known", b.bot.Known(token)).Msg("bot command")
}

func (b *Broker) handleBotReply(reply botReply) {
	if tasks := b.pending[reply.sessionID]; tasks != nil {
		delete(tasks, reply.task)
		if len(tasks) == 0 {
			delete(b.pending, reply.sessionID)
		}
	}
	message := b.newMessage(reply.task.Reply, b.botName, protocol.KindRobot)
	b.history.Append(message)
	b.out.Uniform(protocol.NewMessageEvent(message))
}

func (b *Broker) cancelPending(sessionID string) {
	for task := range b.pending[sessionID] {
		task.Cancel()
	}
	delete(b.pending, sessionID)
}

// rotateTopic changes the topic and announces it. requestedBy is empty for scheduled rotations.
func (b *Broker) rotateTopic(requestedBy string) {
	topic, err := b.topics.Rotate()
	if err != nil {
		b.log.Warn().Err(err).Str("requested_by", requestedBy).Msg("topic not rotated")
		return
	}
	message := b.newMessage("Topic updated: "+topic, SYSTEM_AUTHOR, protocol.KindSystem)
	b.history.Append(message)
	b.out.Uniform(protocol.NewTopicEvent(message, topic))
	b.log.Info().Str("topic", topic).Str("requested_by", requestedBy).Msg("topic changed")
}

func (b *Broker) announce(text string) {
	message := b.newMessage(text, SYSTEM_AUTHOR, protocol.KindSystem)
	b.history.Append(message)
	b.out.Uniform(protocol.NewMessageEvent(message))
}

func (b *Broker) newMessage(text, author string, kind protocol.Kind) protocol.Message {
	return protocol.Message{
		ID:        b.newID(),
		Content:   text,
		Author:    author,
		Timestamp: b.now().Format(TIMESTAMP_FORMAT),
		Kind:      kind,
	}
}
