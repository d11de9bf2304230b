package client

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// PRIME_LIMIT is how many persisted messages seed the view on start.
const PRIME_LIMIT = 50

type Options struct {
	Connection ConnectionOptions
	Room       ReconcilerOptions
	// History, when set, primes the view on start and receives own messages.
	History store.Store
	Output  io.Writer
}

// Start runs the terminal UI until the user quits or ctx ends. The terminal
// must already be in raw mode.
func Start(ctx context.Context, opts Options, log zerolog.Logger) error {
	_, h, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	conn, err := NewConnection(opts.Connection, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	opts.Room.Nickname = conn.Nickname()
	if opts.History != nil {
		opts.Room.Saver = opts.History
	}
	room := NewReconciler(opts.Room, log)
	defer room.Flush()
	if opts.History != nil {
		primeFromHistory(ctx, room, opts.History, log)
	}

	state := NewUIState(conn.Nickname(), conn, room)
	state.height = h
	if err := conn.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("initial connect failed")
		state.notice = "offline: " + err.Error()
	}
	state.status = conn.State()
	updateChatScroll(state, 0)

	done := make(chan struct{})
	defer close(done)
	keyEvents := make(chan EventKeyPress)
	resizeEvents := make(chan int)
	go listenKeyEvents(keyEvents)
	go listenResizeEvents(resizeEvents, done)

	requireRender := true
	for {
		if requireRender {
			render(opts.Output, state)
			requireRender = false
		}
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-keyEvents:
			if !ok {
				return nil
			}
			requireRender = handleKeypress(state, event)
			if state.exit {
				return nil
			}
			if state.reconnect {
				state.reconnect = false
				go func() {
					if err := conn.Connect(ctx); err != nil {
						log.Warn().Err(err).Msg("manual reconnect failed")
					}
				}()
			}
		case event := <-conn.Events():
			requireRender = handleWSMessage(state, event)
		case status := <-conn.States():
			requireRender = handleStateChange(state, status, conn.Attempts())
		case newHeight, ok := <-resizeEvents:
			if !ok {
				resizeEvents = nil
				continue
			}
			requireRender = handleResize(state, newHeight)
		}
	}
}

func primeFromHistory(ctx context.Context, room *Reconciler, history store.Store, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	records, err := history.FetchLatest(ctx, PRIME_LIMIT)
	if err != nil {
		log.Warn().Err(err).Msg("could not load saved messages")
		return
	}
	log.Info().Int("primed", room.Prime(records)).Msg("loaded saved messages")
}
