// Package notify carries user-visible notices (the chat equivalent of toasts)
// from background components to whatever frontend is attached.
package notify

import "sync"

// Level tells the frontend how to present a notice.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is a single user-visible message.
type Notice struct {
	Level   Level
	Message string
}

// Notifier receives notices.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a plain function to Notifier.
type Func func(n Notice)

func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Recorder keeps every notice it receives; handy in tests and CLI commands.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Count returns how many recorded notices carry the given message.
func (r *Recorder) Count(message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notices {
		if n.Message == message {
			count++
		}
	}
	return count
}

// Relay forwards notices to a target attached after construction. Notices
// sent before Attach are dropped.
type Relay struct {
	mu     sync.RWMutex
	target Notifier
}

// Attach sets the notifier every later notice goes to.
func (r *Relay) Attach(target Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
}

func (r *Relay) Notify(n Notice) {
	r.mu.RLock()
	target := r.target
	r.mu.RUnlock()
	if target != nil {
		target.Notify(n)
	}
}
