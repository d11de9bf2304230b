// Package store persists chat messages saved by clients and serves them back
// for priming. A Store is shared by the history service and its tests; the
// HTTP implementation is the client side of the same contract.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/rs/zerolog"
)

var (
	ErrUnavailable   = errors.New("store unavailable")
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is one persisted chat message.
type Record struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	TypeCode  int       `json:"typeCode"`
	OwnerID   string    `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordFromMessage converts a displayed message into a persistable record.
func RecordFromMessage(m protocol.Message, ownerID string, at time.Time) Record {
	return Record{
		ID:        m.ID,
		Content:   m.Content,
		Author:    m.Author,
		TypeCode:  m.Kind.Code(),
		OwnerID:   ownerID,
		CreatedAt: at.UTC(),
	}
}

// Message converts the record back into a wire message. The timestamp is
// rendered in local wall-clock HH:MM like the relay does.
func (r Record) Message() (protocol.Message, error) {
	kind, err := protocol.KindFromCode(r.TypeCode)
	if err != nil {
		return protocol.Message{}, err
	}
	return protocol.Message{
		ID:        r.ID,
		Content:   r.Content,
		Author:    r.Author,
		Timestamp: r.CreatedAt.Local().Format("15:04"),
		Kind:      kind,
	}, nil
}

// Validate normalizes r in place.
func (r *Record) Validate() error {
	r.ID = strings.TrimSpace(r.ID)
	r.Author = strings.TrimSpace(r.Author)
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidRecord)
	}
	if len([]rune(r.Content)) > protocol.MAX_CONTENT_LENGTH {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidRecord, protocol.MAX_CONTENT_LENGTH)
	}
	if _, err := protocol.KindFromCode(r.TypeCode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Store is the persistence collaborator.
type Store interface {
	SaveMessage(ctx context.Context, r Record) error
	// FetchLatest returns up to limit of the newest records, oldest first.
	// A limit of zero or less returns everything.
	FetchLatest(ctx context.Context, limit int) ([]Record, error)
	Health(ctx context.Context) bool
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver      string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	RedisKey    string
	RedisCap    int64
	BaseURL     string
}

// Open initializes the configured store.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	log = log.With().Str("component", "store").Str("driver", driver).Logger()

	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, cfg.SQLitePath, log)
	case "postgres", "pgx":
		return OpenPostgres(ctx, cfg.DatabaseURL, log)
	case "redis":
		return OpenRedis(ctx, cfg, log)
	case "http":
		return NewHTTP(cfg.BaseURL, nil), nil
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}

// latest trims an oldest-first slice to its newest limit entries.
func latest(records []Record, limit int) []Record {
	if limit <= 0 || limit >= len(records) {
		return records
	}
	return records[len(records)-limit:]
}
