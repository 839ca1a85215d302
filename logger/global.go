package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

type holder struct{ l Logger }

var global atomic.Pointer[holder]

func init() {
	global.Store(&holder{l: zap.NewNop()})
}

// Global returns the process-wide logger: the last one built by New or set
// with SetGlobal. It discards everything until then.
func Global() Logger {
	return global.Load().l
}

// SetGlobal replaces the process-wide logger and returns a function that
// restores the previous one. A nil logger resets it to a nop logger.
func SetGlobal(l Logger) (restore func()) {
	if l == nil {
		l = zap.NewNop()
	}
	prev := global.Swap(&holder{l: l})
	return func() { global.Store(prev) }
}

// Sync flushes the process-wide logger
func Sync() error {
	return Global().Sync()
}

func orGlobal(l Logger) Logger {
	if l == nil {
		return Global()
	}
	return l
}
