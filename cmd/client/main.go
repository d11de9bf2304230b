package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/0ya-sh0/GoChatRoom/internal/client"
	"github.com/0ya-sh0/GoChatRoom/internal/config"
	"github.com/0ya-sh0/GoChatRoom/internal/logging"
	"github.com/0ya-sh0/GoChatRoom/internal/store"
)

func main() {
	_ = config.LoadDotenv()
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	prefs := client.LoadPrefs("")
	nickname := cfg.Nickname
	if len(os.Args) > 1 {
		nickname = os.Args[1]
	}
	if nickname == "" {
		nickname = prefs.Nickname
	}
	if nickname == "" {
		fmt.Fprintln(os.Stderr, "Nickname is required: $ ./client fox")
		os.Exit(1)
	}
	if nickname, err = client.ValidateNickname(nickname); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	url := cfg.URL
	if os.Getenv("RELAY_URL") == "" && prefs.URL != "" {
		url = prefs.URL
	}

	// stdout belongs to the terminal UI, so logs always go to a file
	logFile := cfg.Log.File
	if logFile == "" {
		home, _ := os.UserHomeDir()
		logFile = filepath.Join(home, ".goChatTUIClient", "client.log")
	}
	log, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, File: logFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer closer.Close()

	var history store.Store
	if cfg.HistoryAPIURL != "" {
		history = store.NewHTTP(cfg.HistoryAPIURL, &http.Client{Timeout: cfg.SaveTimeout})
		defer history.Close()
	}

	if err := client.SavePrefs("", client.Prefs{Nickname: nickname, URL: url}); err != nil {
		log.Warn().Err(err).Msg("save prefs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := client.SetupTerminal(); err != nil {
		fmt.Fprintln(os.Stderr, "terminal:", err)
		os.Exit(1)
	}
	err = client.Start(ctx, client.Options{
		Connection: client.ConnectionOptions{
			URL:                  url,
			Nickname:             nickname,
			ConnectTimeout:       cfg.ConnectTimeout,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			ReconnectDelay:       cfg.ReconnectDelay,
		},
		Room: client.ReconcilerOptions{
			Window:      cfg.DedupWindow,
			MaxDisplay:  cfg.MaxDisplay,
			SaveTimeout: cfg.SaveTimeout,
		},
		History: history,
	}, log)
	client.RestoreTerminal()
	if err != nil {
		log.Error().Err(err).Msg("client stopped")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
