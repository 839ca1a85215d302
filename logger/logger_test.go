package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_NilConfig(t *testing.T) {
	l, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil) failed: %v", err)
	}
	if l == nil {
		t.Fatal("New(nil) returned nil logger")
	}
	l.Info("test")
}

func TestNew_PartialConfig(t *testing.T) {
	cfg := &Config{Level: "debug", Encoding: "console"}
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New with partial config failed: %v", err)
	}
	if l == nil {
		t.Fatal("New returned nil logger")
	}
	if cfg.Name != "studysync" {
		t.Errorf("expected default name to be merged, got %q", cfg.Name)
	}
	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
		t.Errorf("expected default output paths, got %v", cfg.OutputPaths)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"valid", &Config{Level: "info", Encoding: "json", OutputPaths: []string{"stderr"}}, false},
		{"no outputs", &Config{Level: "info", Encoding: "json"}, true},
		{"invalid level", &Config{Level: "verbose", Encoding: "json"}, true},
		{"invalid encoding", &Config{Level: "info", Encoding: "xml"}, true},
		{"empty level", &Config{Level: "", Encoding: "json"}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_InvalidEncoding(t *testing.T) {
	if _, err := New(&Config{Level: "info", Encoding: "xml"}); err == nil {
		t.Fatal("expected error for invalid encoding, got nil")
	}
}

func TestNamed_ZapLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	Named(base, "cache").Info("entry collected")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "cache" {
		t.Errorf("expected logger name 'cache', got %q", entries[0].LoggerName)
	}
}

func TestWith_AttachesFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	With(base, zap.String("resource", "expenses")).Info("fetched")

	entries := recorded.FilterField(zap.String("resource", "expenses")).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry with resource field, got %d", len(entries))
	}
}

type plainLogger struct{ Logger }

func TestNamed_NonZapLoggerUnchanged(t *testing.T) {
	l := plainLogger{Nop()}
	if got := Named(l, "x"); got != Logger(l) {
		t.Error("expected non-zap logger to be returned unchanged")
	}
}
