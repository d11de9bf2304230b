package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/config"
	"github.com/0ya-sh0/GoChatRoom/internal/content"
	"github.com/0ya-sh0/GoChatRoom/internal/logging"
	"github.com/0ya-sh0/GoChatRoom/internal/server"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog"
)

func main() {
	dotenvErr := config.LoadDotenv()
	cfg, err := config.LoadServer()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("load config")
	}

	log, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, Console: cfg.Log.Console, File: cfg.Log.File})
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("init logger")
	}
	defer closer.Close()
	if dotenvErr != nil {
		log.Debug().Err(dotenvErr).Msg("no .env file loaded")
	}

	pack := content.Default()
	if cfg.ContentFile != "" {
		if pack, err = content.Load(cfg.ContentFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.ContentFile).Msg("load content pack")
		}
	}

	broker, err := server.NewBroker(server.Options{
		HistorySize:      cfg.HistorySize,
		BotReplyDelay:    cfg.BotReplyDelay,
		BotCancelOnLeave: cfg.BotCancelOnLeave,
		TopicSchedule:    cfg.TopicSchedule,
		Content:          pack,
		Transport: server.TransportOptions{
			HandshakeTimeout: cfg.HandshakeWait,
			WriteTimeout:     cfg.WriteTimeout,
			OutboxSize:       cfg.OutboxSize,
			InboundRate:      cfg.InboundRate,
			InboundBurst:     cfg.InboundBurst,
		},
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create broker")
	}
	broker.Start()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	if cfg.ContentFile != "" && cfg.ContentWatch {
		go func() {
			err := content.Watch(watchCtx, cfg.ContentFile, log.With().Str("component", "content").Logger(), func(p content.Pack) {
				if err := broker.ReplaceContent(p); err != nil {
					log.Warn().Err(err).Msg("content not applied")
				}
			})
			if err != nil {
				log.Warn().Err(err).Str("file", cfg.ContentFile).Msg("content watch disabled")
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", broker.HandleWebsocketConnection)
	mux.HandleFunc("/healthz", broker.HandleHealth)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("topic", broker.CurrentTopic()).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"broker": func(ctx context.Context) error {
				stopWatch()
				broker.Stop()
				return nil
			},
		},
	)
	exitCode := <-wait
	log.Info().Int("code", exitCode).Msg("relay stopped")
	closer.Close()
	os.Exit(exitCode)
}
