package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/client"
	"github.com/0ya-sh0/GoChatRoom/internal/config"
	"github.com/0ya-sh0/GoChatRoom/internal/logging"
	"github.com/rs/zerolog"
)

// usage: testclient [clients] [messages-per-client]
func main() {
	_ = config.LoadDotenv()
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, Console: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer closer.Close()

	clients := argInt(1, 5)
	messages := argInt(2, 20)

	var wg sync.WaitGroup
	results := make([]int, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = run(cfg, fmt.Sprintf("load-%d", i), messages, log)
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range results {
		total += n
	}
	log.Info().Int("clients", clients).Int("messages", messages).Int("entries_seen", total).Msg("load run finished")
}

func argInt(pos, def int) int {
	if len(os.Args) <= pos {
		return def
	}
	n, err := strconv.Atoi(os.Args[pos])
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// run drives one scripted client and returns how many entries it displayed.
func run(cfg *config.Client, nickname string, messages int, log zerolog.Logger) int {
	conn, err := client.NewConnection(client.ConnectionOptions{
		URL:                  cfg.URL,
		Nickname:             nickname,
		ConnectTimeout:       cfg.ConnectTimeout,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
	}, log)
	if err != nil {
		log.Error().Err(err).Str("nickname", nickname).Msg("new connection")
		return 0
	}
	defer conn.Close()
	room := client.NewReconciler(client.ReconcilerOptions{Nickname: nickname}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		log.Error().Err(err).Str("nickname", nickname).Msg("connect")
		return 0
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case env := <-conn.Events():
				room.Apply(env)
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < messages; i++ {
		content := fmt.Sprintf("m %d from %s", i, nickname)
		if i%10 == 9 {
			content = "/joke"
		}
		if err := conn.SendChat(content); err != nil {
			log.Warn().Err(err).Str("nickname", nickname).Msg("send")
		}
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(2 * time.Second)
	cancel()
	<-done
	return len(room.Entries())
}
