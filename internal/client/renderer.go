package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
)

const SEP = "──────────────────────────────────────────────────────"

// FIXED is the number of rows not available to the message pane.
const FIXED = 10

const ONLINE_WIDTH = 40

func render(w io.Writer, state *UIState) {
	fmt.Fprint(w, ClearScreen, CursorHome, CursorHide)
	printHeader(w, state.nickname, state.status, state.attempt)
	printRoom(w, state.room.Topic(), state.room.Users())
	printMessages(w, state.room.Entries(), state.height, state.messageScroll)
	printCurrentText(w, state.currentText, state.notice, state.height)
}

func statusBadge(status State, attempt int) string {
	switch status {
	case StateConnected:
		return FgGreen + "● connected" + Reset
	case StateConnecting:
		return FgYellow + "◌ connecting" + Reset
	case StateReconnecting:
		return FgYellow + fmt.Sprintf("◌ reconnecting (attempt %d)", attempt) + Reset
	default:
		return FgRed + "○ offline" + Reset
	}
}

func printHeader(w io.Writer, nickname string, status State, attempt int) {
	fmt.Fprint(w, Reset, SEP)
	fmt.Fprintf(w, CursorPos, 2, 1)
	fmt.Fprint(w, " GoChatRoom - ", Bold, nickname, Reset, "   ", statusBadge(status, attempt))
	fmt.Fprintf(w, CursorPos, 3, 1)
	fmt.Fprint(w, Reset, SEP)
}

func printRoom(w io.Writer, topic string, users []protocol.User) {
	fmt.Fprintf(w, CursorPos, 4, 1)
	if topic == "" {
		topic = "-"
	}
	fmt.Fprint(w, " Topic: ", FgCyan, topic, Reset)

	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Nickname)
	}
	online := []rune(strings.Join(names, ", "))
	if len(online) > ONLINE_WIDTH {
		online = append(online[:ONLINE_WIDTH-3], []rune("...")...)
	}
	fmt.Fprintf(w, CursorPos, 5, 1)
	fmt.Fprintf(w, " Online (%d): %s", len(users), string(online))
	fmt.Fprintf(w, CursorPos, 6, 1)
	fmt.Fprint(w, Reset, SEP)
}

func printMessages(w io.Writer, entries []Entry, height, messageScroll int) {
	line := 7
	start := min(messageScroll, len(entries))
	end := min(len(entries), start+max(height-FIXED, 1))

	for _, e := range entries[start:end] {
		fmt.Fprint(w, Reset)
		fmt.Fprintf(w, CursorPos, line, 1)
		line++
		switch e.Kind {
		case protocol.KindSystem:
			fmt.Fprint(w, Dim, e.Timestamp, " · ", e.Content, Reset)
		case protocol.KindRobot:
			fmt.Fprint(w, FgCyan, e.Timestamp, " ", e.Author, ": ", Reset, e.Content)
		default:
			if e.IsOwn {
				fmt.Fprint(w, FgGreen, e.Timestamp, " you: ", Reset, e.Content)
			} else {
				fmt.Fprint(w, FgRed, e.Timestamp, " ", e.Author, ": ", Reset, e.Content)
			}
		}
	}
}

func printCurrentText(w io.Writer, currentText, notice string, height int) {
	fmt.Fprintf(w, CursorPos, height-3, 1)
	fmt.Fprint(w, Reset, SEP)
	fmt.Fprintf(w, CursorPos, height-2, 1)
	switch {
	case currentText != "":
		fmt.Fprint(w, " > ", currentText)
	case notice != "":
		fmt.Fprint(w, " > ", FgYellow, notice, Reset)
	default:
		fmt.Fprint(w, " > enter message or /help... ")
	}
	fmt.Fprintf(w, CursorPos, height-1, 1)
	fmt.Fprint(w, Reset, SEP)
	fmt.Fprintf(w, CursorPos, height, 1)
	fmt.Fprint(w, "↑ ↓ Scroll   Enter: Send   Tab: New topic   Ctrl+R: Reconnect   Ctrl+C: Quit")
	fmt.Fprint(w, Reset)
}
