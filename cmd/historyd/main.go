package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/config"
	"github.com/0ya-sh0/GoChatRoom/internal/historyapi"
	"github.com/0ya-sh0/GoChatRoom/internal/logging"
	"github.com/0ya-sh0/GoChatRoom/internal/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	dotenvErr := config.LoadDotenv()
	cfg, err := config.LoadHistory()
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Open(ctx, store.Config{
		Driver:      cfg.Driver,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		RedisPass:   cfg.RedisPassword,
		RedisDB:     cfg.RedisDB,
		RedisKey:    cfg.RedisKey,
		RedisCap:    cfg.RedisCap,
	}, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Driver).Msg("open store")
	}

	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := historyapi.NewRouter(log, historyapi.NewHandler(log, st))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("driver", cfg.Driver).Msg("history service listening")
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
			"store": func(ctx context.Context) error {
				return st.Close()
			},
		},
	)
	exitCode := <-wait
	log.Info().Int("code", exitCode).Msg("history service stopped")
	closer.Close()
	os.Exit(exitCode)
}
