package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger
	logger = slog.New(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() { logger = prev })
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	return out
}

func TestSetup(t *testing.T) {
	logger = nil
	once = *new(sync.Once)

	Setup("DEBUG", "json")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "text").Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("text output unexpected: %q", buf.String())
	}

	buf.Reset()
	New(&buf, "info", "json").Info("hello")
	if out := decodeLine(t, &buf); out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}

	buf.Reset()
	New(&buf, "warn", "json").Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
}

func TestContextHelpers(t *testing.T) {
	tests := []struct {
		name  string
		log   func() *slog.Logger
		field string
		want  string
	}{
		{"component", func() *slog.Logger { return WithComponent("api") }, "component", "api"},
		{"workspace", func() *slog.Logger { return WithWorkspace("docs") }, "workspace", "docs"},
		{"query", func() *slog.Logger { return WithQuery("q-1") }, "query_id", "q-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureGlobal(t)
			tt.log().Info("hello")

			out := decodeLine(t, buf)
			if out[tt.field] != tt.want {
				t.Errorf("Expected %s %q, got %v", tt.field, tt.want, out[tt.field])
			}
		})
	}
}
