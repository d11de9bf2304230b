package client

import (
	"errors"
	"os"
	"unicode/utf8"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"golang.org/x/term"
)

// roomSender is what the UI needs from a Connection.
type roomSender interface {
	SendChat(content string) error
	RequestTopicChange() error
}

type UIState struct {
	nickname      string
	conn          roomSender
	room          *Reconciler
	status        State
	attempt       int
	height        int
	messageScroll int
	currentText   string
	notice        string
	reconnect     bool
	exit          bool
}

func NewUIState(nickname string, conn roomSender, room *Reconciler) *UIState {
	_, h, _ := term.GetSize(int(os.Stdin.Fd()))
	return &UIState{
		nickname: nickname,
		conn:     conn,
		room:     room,
		status:   StateDisconnected,
		height:   h,
	}
}

func handleResize(state *UIState, newHeight int) bool {
	state.height = newHeight
	updateChatScroll(state, 0)
	return true
}

func handleWSMessage(state *UIState, event protocol.Envelope) bool {
	atBottom := isScrolledToBottom(state)
	if !state.room.Apply(event) {
		return false
	}
	if atBottom {
		updateChatScroll(state, 0)
	}
	return true
}

// OFFLINE_NOTICE is shown while disconnected. Offline messages stay on screen
// and reach the history store if one is configured, but never the relay.
const OFFLINE_NOTICE = "offline: messages are not sent, only saved to history if enabled. Ctrl+R reconnects"

func handleStateChange(state *UIState, status State, attempt int) bool {
	state.status = status
	state.attempt = attempt
	switch status {
	case StateConnected:
		state.notice = ""
	case StateDisconnected:
		state.notice = OFFLINE_NOTICE
	}
	return true
}

func messageListHeight(state *UIState) int {
	return max(state.height-FIXED, 1)
}

func isScrolledToBottom(state *UIState) bool {
	maximumStart := max(len(state.room.Entries())-messageListHeight(state), 0)
	return state.messageScroll >= maximumStart
}

/*
The message pane shows entries messageScroll .. messageScroll+(height-FIXED).
With m entries and a pane of p lines the first visible entry ranges over
0 .. max(m-p, 0). A delta of zero pins the view to the newest entries.
*/
func updateChatScroll(state *UIState, delta int) bool {
	entries := len(state.room.Entries())
	maximumStart := max(entries-messageListHeight(state), 0)
	prevMessageScroll := state.messageScroll
	if delta == 0 {
		state.messageScroll = maximumStart
	} else {
		state.messageScroll = state.messageScroll + delta
		state.messageScroll = max(0, state.messageScroll)
		state.messageScroll = min(state.messageScroll, maximumStart)
	}
	return prevMessageScroll != state.messageScroll
}

func handlePrintableKey(state *UIState, event EventKeyPress) bool {
	if utf8.RuneCountInString(state.currentText) >= protocol.MAX_CONTENT_LENGTH {
		return false
	}
	state.currentText = state.currentText + string(event.Char)
	return true
}

func handleBackspace(state *UIState) bool {
	if len(state.currentText) == 0 {
		return false
	}
	_, size := utf8.DecodeLastRuneInString(state.currentText)
	state.currentText = state.currentText[:len(state.currentText)-size]
	return true
}

func handleCtrlC(state *UIState) bool {
	state.exit = true
	return false
}

func handleCtrlR(state *UIState) bool {
	if state.status != StateDisconnected {
		return false
	}
	state.reconnect = true
	state.notice = "reconnecting..."
	return true
}

func handleTab(state *UIState) bool {
	if err := state.conn.RequestTopicChange(); err != nil {
		state.notice = "cannot change topic while " + state.status.String()
		return true
	}
	return false
}

func handleEnter(state *UIState) bool {
	content := state.currentText
	if ValidateContent(content) != nil {
		return false
	}
	state.currentText = ""

	err := state.conn.SendChat(content)
	switch {
	case err == nil:
		// own messages appear when the relay echoes them
		return true
	case errors.Is(err, ErrNotConnected):
		if _, err := state.room.AppendLocal(content); err != nil {
			state.notice = err.Error()
			return true
		}
		state.notice = "offline: message kept locally"
		updateChatScroll(state, 0)
		return true
	default:
		state.currentText = content
		state.notice = err.Error()
		return true
	}
}

func handleKeypress(state *UIState, event EventKeyPress) bool {
	switch event.KeyType {
	case KEY_TYPE_CTRL_C:
		return handleCtrlC(state)
	case KEY_TYPE_CTRL_R:
		return handleCtrlR(state)
	case KEY_TYPE_UP_ARROW:
		return updateChatScroll(state, -1)
	case KEY_TYPE_DOWN_ARROW:
		return updateChatScroll(state, 1)
	case KEY_TYPE_TAB:
		return handleTab(state)
	case KEY_TYPE_ENTER:
		return handleEnter(state)
	case KEY_TYPE_PRINTABLE:
		return handlePrintableKey(state, event)
	case KEY_TYPE_BACKSPACE:
		return handleBackspace(state)
	}
	return false
}
