package client

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

const (
	ESC = "\x1b"

	CursorHome = ESC + "[H"
	CursorHide = ESC + "[?25l"
	CursorShow = ESC + "[?25h"

	ClearScreen = ESC + "[2J"

	// Cursor positioning (use fmt.Sprintf)
	CursorPos = ESC + "[%d;%dH" // row, col (1-based)

	Reset = ESC + "[0m"
	Bold  = ESC + "[1m"
	Dim   = ESC + "[2m"

	FgRed    = ESC + "[31m"
	FgGreen  = ESC + "[32m"
	FgYellow = ESC + "[33m"
	FgCyan   = ESC + "[36m"
)

const (
	ANSI_ENTER_ALT_SCREEN = "\x1b[?1049h"
	ANSI_EXIT_ALT_SCREEN  = "\x1b[?1049l"
)

// listenResizeEvents polls the terminal height and reports changes until done
// is closed.
func listenResizeEvents(events chan int, done <-chan struct{}) {
	defer close(events)
	_, height, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil {
		return
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		_, newHeight, err := term.GetSize(int(os.Stdin.Fd()))
		if err != nil {
			return
		}
		if newHeight != height {
			height = newHeight
			select {
			case events <- height:
			case <-done:
				return
			}
		}
	}
}

var oldState *term.State

func SetupTerminal() error {
	state, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	oldState = state
	fmt.Print(ANSI_ENTER_ALT_SCREEN)
	return nil
}

func RestoreTerminal() {
	fmt.Print(ClearScreen, CursorHome, CursorShow)
	fmt.Print(ANSI_EXIT_ALT_SCREEN)
	if oldState != nil {
		term.Restore(int(os.Stdin.Fd()), oldState)
	}
}
