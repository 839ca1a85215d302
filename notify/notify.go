// Package notify delivers user-facing notifications about completed writes
// and failed reads.
package notify

import (
	"sync"
	"time"

	"github.com/dailyyoga/studysync/logger"
	"go.uber.org/zap"
)

// Level is the severity shown to the user
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is one toast
type Notification struct {
	Level    Level
	Message  string
	Resource string
	Op       string
	At       time.Time
}

// Notifier shows notifications; implementations must be safe for concurrent use
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier
type Func func(n Notification)

func (f Func) Notify(n Notification) { f(n) }

// Nop discards notifications
func Nop() Notifier {
	return Func(func(Notification) {})
}

type logNotifier struct {
	log logger.Logger
}

// Log writes notifications to a logger
func Log(log logger.Logger) Notifier {
	return &logNotifier{log: logger.Named(log, "notify")}
}

func (l *logNotifier) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("resource", n.Resource),
		zap.String("op", n.Op),
	}
	if n.Level == LevelError {
		l.log.Warn(n.Message, fields...)
		return
	}
	l.log.Info(n.Message, fields...)
}

type multi []Notifier

// Multi fans a notification out to every notifier in order
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.list))
	copy(out, r.list)
	return out
}

// Last returns the most recent notification
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) == 0 {
		return Notification{}, false
	}
	return r.list[len(r.list)-1], true
}

// Reset drops everything recorded
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = nil
}
