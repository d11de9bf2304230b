package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type LogConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Console bool   `env:"LOG_CONSOLE" envDefault:"true"`
	File    string `env:"LOG_FILE"`
}

// Server configures the relay process.
type Server struct {
	Addr             string        `env:"RELAY_ADDR" envDefault:"localhost:8123"`
	HandshakeWait    time.Duration `env:"RELAY_HANDSHAKE_TIMEOUT" envDefault:"5s"`
	WriteTimeout     time.Duration `env:"RELAY_WRITE_TIMEOUT" envDefault:"1s"`
	OutboxSize       int           `env:"RELAY_OUTBOX_SIZE" envDefault:"1024"`
	HistorySize      int           `env:"HISTORY_SIZE" envDefault:"20"`
	InboundRate      float64       `env:"INBOUND_RATE" envDefault:"10"`
	InboundBurst     int           `env:"INBOUND_BURST" envDefault:"20"`
	BotReplyDelay    time.Duration `env:"BOT_REPLY_DELAY" envDefault:"1s"`
	BotCancelOnLeave bool          `env:"BOT_CANCEL_ON_LEAVE" envDefault:"false"`
	TopicSchedule    string        `env:"TOPIC_ROTATE_SCHEDULE"`
	ContentFile      string        `env:"CONTENT_FILE"`
	ContentWatch     bool          `env:"CONTENT_WATCH" envDefault:"true"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Log              LogConfig
}

// Client configures the terminal client.
type Client struct {
	URL                  string        `env:"RELAY_URL" envDefault:"ws://localhost:8123/ws"`
	Nickname             string        `env:"NICKNAME"`
	ConnectTimeout       time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay       time.Duration `env:"RECONNECT_DELAY" envDefault:"1s"`
	DedupWindow          int           `env:"DEDUP_WINDOW" envDefault:"10"`
	MaxDisplay           int           `env:"MAX_DISPLAY" envDefault:"50"`
	HistoryAPIURL        string        `env:"HISTORY_API_URL"`
	SaveTimeout          time.Duration `env:"SAVE_TIMEOUT" envDefault:"3s"`
	Log                  LogConfig     `envPrefix:"CLIENT_"`
}

// History configures the persistence service.
type History struct {
	Addr            string        `env:"HISTORY_ADDR" envDefault:"localhost:8124"`
	Driver          string        `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"data/history.db"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	RedisKey        string        `env:"REDIS_KEY" envDefault:"chat:messages"`
	RedisCap        int64         `env:"REDIS_CAP" envDefault:"10000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Log             LogConfig
}

// LoadDotenv reads .env when present. A missing file is not an error for the caller to act on.
func LoadDotenv() error {
	return godotenv.Load()
}

func LoadServer() (*Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadClient() (*Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadHistory() (*History, error) {
	var cfg History
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
