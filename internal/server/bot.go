package server

import (
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const DEFAULT_BOT_REPLY_DELAY = time.Second

const (
	taskPending int32 = iota
	taskFired
	taskCancelled
)

type stopper interface {
	Stop() bool
}

// Task is a scheduled bot reply.
type Task struct {
	Command string
	Reply   string
	state   atomic.Int32
	timer   stopper
}

// Cancel prevents the reply from firing. It reports whether the task was still pending.
func (t *Task) Cancel() bool {
	if !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

func (t *Task) Fired() bool {
	return t.state.Load() == taskFired
}

// Responder maps command tokens to canned replies delivered after a fixed delay.
type Responder struct {
	commands map[string][]string
	help     string
	delay    time.Duration

	mu        sync.Mutex
	intn      func(n int) int
	afterFunc func(d time.Duration, f func()) stopper
}

func NewResponder(commands map[string][]string, help string, delay time.Duration) *Responder {
	if delay < 0 {
		delay = DEFAULT_BOT_REPLY_DELAY
	}
	return &Responder{
		commands: commands,
		help:     help,
		delay:    delay,
		intn:     rand.Intn,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// ParseCommand extracts the command token from a chat message that starts with '/'.
func ParseCommand(content string) (string, bool) {
	if !strings.HasPrefix(content, "/") {
		return "", false
	}
	token := strings.Fields(content)[0]
	return token, true
}

func (r *Responder) Known(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.commands[token]
	return ok
}

// Replace swaps the command table and help text. Tasks already scheduled keep
// the reply they picked.
func (r *Responder) Replace(commands map[string][]string, help string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = commands
	r.help = help
}

// Reply picks a reply uniformly at random, or the help text for unknown tokens.
func (r *Responder) Reply(token string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	replies := r.commands[token]
	if len(replies) == 0 {
		return r.help
	}
	return replies[r.intn(len(replies))]
}

// Schedule picks the reply now and hands it to deliver once the delay elapses,
// unless the task is cancelled first.
func (r *Responder) Schedule(token string, deliver func(*Task)) *Task {
	task := &Task{Command: token, Reply: r.Reply(token)}
	task.timer = r.afterFunc(r.delay, func() {
		if task.state.CompareAndSwap(taskPending, taskFired) {
			deliver(task)
		}
	})
	return task
}
