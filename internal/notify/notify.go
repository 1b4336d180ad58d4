package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindUnauthorized   Kind = "unauthorized"
	KindSessionExpired Kind = "session_expired"
	KindServerError    Kind = "server_error"
	KindNetworkError   Kind = "network_error"
	KindRequestFailed  Kind = "request_failed"
	KindSuccess        Kind = "success"
)

type Notification struct {
	Kind    Kind
	Message string
}

// Notifier surfaces user-visible messages.
type Notifier interface {
	Notify(n Notification)
}

// Navigator sends the user back to the sign-in entry point.
type Navigator interface {
	RedirectToSignIn()
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type NavigatorFunc func()

func (f NavigatorFunc) RedirectToSignIn() { f() }

// LogNotifier writes notifications to the logger. Used by the headless client.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(note Notification) {
	ev := n.logger.Warn()
	if note.Kind == KindSuccess {
		ev = n.logger.Info()
	}
	ev.Str("kind", string(note.Kind)).Msg(note.Message)
}

func (n *LogNotifier) RedirectToSignIn() {
	n.logger.Warn().Msg("Redirecting to sign-in")
}

// Recorder keeps every notification and redirect in memory.
type Recorder struct {
	mu        sync.Mutex
	notes     []Notification
	redirects int
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *Recorder) RedirectToSignIn() {
	r.mu.Lock()
	r.redirects++
	r.mu.Unlock()
}

func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

func (r *Recorder) Redirects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redirects
}

func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}
