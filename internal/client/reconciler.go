package client

import (
	"context"
	"sync"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/0ya-sh0/GoChatRoom/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_DEDUP_WINDOW     = 10
	DEFAULT_MAX_DISPLAY      = 50
	DEFAULT_SAVE_TIMEOUT     = 3 * time.Second
	CLIENT_TOPIC_HISTORY_CAP = 10
	LOCAL_TIMESTAMP_FORMAT   = "15:04"
)

// Saver persists a client's own chat messages.
type Saver interface {
	SaveMessage(ctx context.Context, r store.Record) error
}

// Entry is one line of the room view.
type Entry struct {
	protocol.Message
	IsOwn bool
}

type ReconcilerOptions struct {
	Nickname    string
	Window      int
	MaxDisplay  int
	SaveTimeout time.Duration
	Saver       Saver
}

// Reconciler folds relay frames into the local view. It drops redelivered
// messages and saves each own chat message once.
type Reconciler struct {
	opts ReconcilerOptions
	log  zerolog.Logger

	mu           sync.Mutex
	entries      []Entry
	users        []protocol.User
	topic        string
	topicHistory []string

	saves sync.WaitGroup
	now   func() time.Time
}

func NewReconciler(opts ReconcilerOptions, log zerolog.Logger) *Reconciler {
	if opts.Window <= 0 {
		opts.Window = DEFAULT_DEDUP_WINDOW
	}
	if opts.MaxDisplay <= 0 {
		opts.MaxDisplay = DEFAULT_MAX_DISPLAY
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DEFAULT_SAVE_TIMEOUT
	}
	return &Reconciler{
		opts: opts,
		log:  log.With().Str("component", "reconciler").Logger(),
		now:  time.Now,
	}
}

// Apply folds one relay frame into the view and reports whether anything
// visible changed.
func (r *Reconciler) Apply(env protocol.Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch env.Type {
	case protocol.TYPE_USER_LIST:
		r.users = append([]protocol.User(nil), env.Users...)
		return true
	case protocol.TYPE_MESSAGE_HISTORY:
		if env.CurrentTopic != "" {
			r.topic = env.CurrentTopic
		}
		for _, m := range env.Messages {
			r.add(Entry{Message: m}, false, true)
		}
		return true
	}

	kind, ok := protocol.KindOfEnvelope(env.Type)
	if !ok {
		r.log.Debug().Str("type", env.Type).Msg("ignore frame")
		return false
	}
	if env.Type == protocol.TYPE_TOPIC_CHANGE {
		r.changeTopic(env.NewTopic)
	}
	entry := Entry{
		Message: protocol.Message{
			ID:        env.ID,
			Content:   env.Content,
			Author:    env.Author,
			Timestamp: env.Timestamp,
			Kind:      kind,
		},
		IsOwn: env.IsOwn,
	}
	return r.add(entry, kind == protocol.KindText && env.IsOwn, false) || env.Type == protocol.TYPE_TOPIC_CHANGE
}

// AppendLocal records a message typed while offline. It is never sent to
// the relay but is saved like an echoed one.
func (r *Reconciler) AppendLocal(content string) (Entry, error) {
	if err := ValidateContent(content); err != nil {
		return Entry{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := Entry{
		Message: protocol.Message{
			ID:        uuid.NewString(),
			Content:   content,
			Author:    r.opts.Nickname,
			Timestamp: r.now().Format(LOCAL_TIMESTAMP_FORMAT),
			Kind:      protocol.KindText,
		},
		IsOwn: true,
	}
	r.add(entry, true, false)
	return entry, nil
}

// Prime seeds the view with persisted history. Nothing primed is saved again.
func (r *Reconciler) Prime(records []store.Record) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	added := 0
	for _, rec := range records {
		m, err := rec.Message()
		if err != nil {
			r.log.Warn().Err(err).Str("id", rec.ID).Msg("skip persisted record")
			continue
		}
		isOwn := rec.OwnerID != "" && rec.OwnerID == r.opts.Nickname
		if r.add(Entry{Message: m, IsOwn: isOwn}, false, true) {
			added++
		}
	}
	return added
}

// add must be called with mu held. Replayed batches (relay history, persisted
// records) overlap what is already shown, so their ids are matched against
// the whole view instead of the live window.
func (r *Reconciler) add(e Entry, save, replay bool) bool {
	if replay && e.ID != "" {
		if r.inView(e.ID) {
			return false
		}
	} else if r.isDuplicate(e) {
		return false
	}
	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.opts.MaxDisplay; over > 0 {
		r.entries = append(r.entries[:0:0], r.entries[over:]...)
	}
	if save && r.opts.Saver != nil {
		r.save(e)
	}
	return true
}

func (r *Reconciler) isDuplicate(e Entry) bool {
	start := max(len(r.entries)-r.opts.Window, 0)
	for _, prev := range r.entries[start:] {
		if e.ID != "" && prev.ID == e.ID {
			return true
		}
		if prev.Content == e.Content && prev.Author == e.Author && prev.Kind == e.Kind && prev.IsOwn == e.IsOwn {
			return true
		}
	}
	return false
}

func (r *Reconciler) inView(id string) bool {
	for _, prev := range r.entries {
		if prev.ID == id {
			return true
		}
	}
	return false
}

func (r *Reconciler) save(e Entry) {
	rec := store.RecordFromMessage(e.Message, r.opts.Nickname, r.now())
	r.saves.Add(1)
	go func() {
		defer r.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.SaveTimeout)
		defer cancel()
		if err := r.opts.Saver.SaveMessage(ctx, rec); err != nil {
			r.log.Warn().Err(err).Str("id", rec.ID).Msg("save message failed")
		}
	}()
}

// changeTopic must be called with mu held.
func (r *Reconciler) changeTopic(next string) {
	if next == "" || next == r.topic {
		return
	}
	history := make([]string, 0, CLIENT_TOPIC_HISTORY_CAP)
	if r.topic != "" {
		history = append(history, r.topic)
	}
	for _, t := range r.topicHistory {
		if t != r.topic && t != next && len(history) < CLIENT_TOPIC_HISTORY_CAP {
			history = append(history, t)
		}
	}
	r.topicHistory = history
	r.topic = next
}

// Flush blocks until every save started so far has finished.
func (r *Reconciler) Flush() {
	r.saves.Wait()
}

func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

func (r *Reconciler) Users() []protocol.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.User(nil), r.users...)
}

func (r *Reconciler) Topic() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topic
}

func (r *Reconciler) TopicHistory() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topicHistory...)
}
