package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_ComponentOnEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentBudget, JSON: true, Output: &buf})

	logger.Info("hello", FieldProfile, "home")
	logger.WithComponent(ComponentStorage).Warn("careful")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0][FieldComponent] != ComponentBudget || lines[0][FieldProfile] != "home" {
		t.Errorf("first record = %v", lines[0])
	}
	if lines[1][FieldComponent] != ComponentStorage {
		t.Errorf("second record component = %v, want %v", lines[1][FieldComponent], ComponentStorage)
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Error("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "kept" {
		t.Errorf("records = %v", lines)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("FromContext(empty) component = %v, want unknown", got.Component())
	}

	logger := Discard().WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Errorf("FromContext() returned a different logger")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, JSON: true, Output: &buf})

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0][FieldRequestID] != "req-1" {
		t.Errorf("records = %v", lines)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{JSON: true, Output: &buf}))
	ctx := context.Background()

	sl.LogHTTPEnd(ctx, httptest.NewRequest(http.MethodPost, "/api/profiles?x=1", nil), 503, 12, "10.0.0.1")
	sl.LogImport(ctx, "home", "checking", "credit", 3, 1)
	sl.LogError(ctx, "boom", errors.New("disk full"), ComponentStorage, OpUpdate, nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0]["level"] != "ERROR" || lines[0][FieldSuccess] != false {
		t.Errorf("http record = %v", lines[0])
	}
	if lines[1][FieldImported] != float64(3) || lines[1][FieldProfile] != "home" {
		t.Errorf("import record = %v", lines[1])
	}
	if lines[2][FieldError] != "disk full" || lines[2][FieldOperation] != OpUpdate {
		t.Errorf("error record = %v", lines[2])
	}
}
