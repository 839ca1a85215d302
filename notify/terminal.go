package notify

import (
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

// Terminal prints notifications with pterm prefix printers
type Terminal struct {
	mu      sync.Mutex
	success pterm.PrefixPrinter
	failure pterm.PrefixPrinter
	info    pterm.PrefixPrinter
}

// NewTerminal prints to w, or stdout when w is nil
func NewTerminal(w io.Writer) *Terminal {
	if w == nil {
		w = os.Stdout
	}
	return &Terminal{
		success: *pterm.Success.WithWriter(w),
		failure: *pterm.Error.WithWriter(w),
		info:    *pterm.Info.WithWriter(w),
	}
}

func (t *Terminal) Notify(n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch n.Level {
	case LevelSuccess:
		t.success.Println(n.Message)
	case LevelError:
		t.failure.Println(n.Message)
	default:
		t.info.Println(n.Message)
	}
}
