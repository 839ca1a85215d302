package routine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type ctxKey struct{}

func TestRunner_GoNamed(t *testing.T) {
	runner := New(zap.NewNop())

	var executed atomic.Bool
	runner.GoNamed("refetch", func() {
		executed.Store(true)
	})
	runner.Wait()

	if !executed.Load() {
		t.Error("expected named function to be executed")
	}
}

func TestRunner_PanicIsLogged(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	runner := New(zap.New(core))

	var after atomic.Bool
	runner.GoNamed("panicky", func() {
		panic("boom")
	})
	runner.GoNamed("healthy", func() {
		after.Store(true)
	})
	runner.Wait()

	if !after.Load() {
		t.Error("expected goroutine after panic to execute")
	}
	entries := recorded.FilterMessage("goroutine panicked").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 panic log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["routine"] != "panicky" {
		t.Errorf("expected routine field 'panicky', got %v", entries[0].ContextMap()["routine"])
	}
}

func TestRunner_GoNamedWithContext(t *testing.T) {
	runner := New(zap.NewNop())

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	var mu sync.Mutex
	var received string
	runner.GoNamedWithContext(ctx, "ctx", func(ctx context.Context) {
		mu.Lock()
		defer mu.Unlock()
		received = ctx.Value(ctxKey{}).(string)
	})
	runner.Wait()

	mu.Lock()
	defer mu.Unlock()
	if received != "value" {
		t.Errorf("expected context value 'value', got %q", received)
	}
}

func TestRunner_Running(t *testing.T) {
	runner := New(zap.NewNop())

	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		runner.GoNamed("blocked", func() { <-release })
	}
	if got := runner.Running(); got != 3 {
		t.Errorf("expected 3 running, got %d", got)
	}
	close(release)
	runner.Wait()
	if got := runner.Running(); got != 0 {
		t.Errorf("expected 0 running after Wait, got %d", got)
	}
}

func TestGoNamed_Standalone_WithPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	GoNamed(zap.NewNop(), "standalone", func() {
		defer wg.Done()
		panic("standalone panic")
	})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("standalone goroutine did not finish")
	}
}

func TestErrPanic(t *testing.T) {
	err := ErrPanic("test error")
	if err.Error() != "routine: panic recovered: test error" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrPanicRecovered) {
		t.Error("expected ErrPanic to wrap ErrPanicRecovered")
	}
}
