package notify

import (
	"bytes"
	"sync"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(Notification{Level: LevelSuccess, Message: "Expense created"})
	r.Notify(Notification{Level: LevelError, Message: "Network Error"})

	all := r.All()
	require.Len(t, all, 2)
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "Network Error", last.Message)

	r.Reset()
	assert.Empty(t, r.All())
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := Log(zap.New(core))

	n.Notify(Notification{Level: LevelSuccess, Message: "Budget updated", Resource: "budgets", Op: "update"})
	n.Notify(Notification{Level: LevelError, Message: "Request failed with status code 500", Resource: "budgets", Op: "update"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "budgets", entries[1].ContextMap()["resource"])
}

func TestTerminal(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	term := NewTerminal(&buf)
	term.Notify(Notification{Level: LevelSuccess, Message: "Task created"})
	term.Notify(Notification{Level: LevelError, Message: "Task not found"})
	term.Notify(Notification{Level: LevelInfo, Message: "Session ended"})

	out := buf.String()
	assert.Contains(t, out, "Task created")
	assert.Contains(t, out, "Task not found")
	assert.Contains(t, out, "Session ended")
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	Multi(a, b, Nop()).Notify(Notification{Message: "hi"})
	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	rec := NewRecorder()
	d := NewDispatcher(zap.NewNop(), rec)

	for i := 0; i < 50; i++ {
		d.Notify(Notification{Message: string(rune('a' + i%26))})
	}
	d.Close()
	d.Close()

	all := rec.All()
	require.Len(t, all, 50)
	for i, n := range all {
		assert.Equal(t, string(rune('a'+i%26)), n.Message)
	}

	d.Notify(Notification{Message: "late"})
	assert.Len(t, rec.All(), 50)
}

func TestDispatcher_SurvivesPanickingNotifier(t *testing.T) {
	rec := NewRecorder()
	var once sync.Once
	d := NewDispatcher(zap.NewNop(), Func(func(n Notification) {
		once.Do(func() { panic("sink broke") })
		rec.Notify(n)
	}))

	d.Notify(Notification{Message: "first"})
	d.Notify(Notification{Message: "second"})
	d.Close()

	all := rec.All()
	require.Len(t, all, 1)
	assert.Equal(t, "second", all[0].Message)
}
