package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// resetState clears all package state between tests.
func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logBuffer = nil
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"streams": "debug",
			"api":     "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"streams", true, true, true},
		{"api", false, false, true},
		{"sweeper", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			gotDebug := handler.Enabled(context.Background(), slog.LevelDebug)
			gotInfo := handler.Enabled(context.Background(), slog.LevelInfo)
			gotWarn := handler.Enabled(context.Background(), slog.LevelWarn)

			if gotDebug != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, gotDebug, tt.wantDebug)
			}
			if gotInfo != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, gotInfo, tt.wantInfo)
			}
			if gotWarn != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, gotWarn, tt.wantWarn)
			}
		})
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, output)
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	loggerBefore := GetLogger("supervisor")
	handlerBefore := loggerBefore.Handler()

	if handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger created before Initialize should NOT have debug enabled")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"supervisor": "debug"},
	})

	if loggerAfter := GetLogger("supervisor"); loggerBefore != loggerAfter {
		t.Error("Logger should be cached - same pointer before and after Initialize")
	}
	if !handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Cached logger should have debug enabled after Initialize updates LevelVar")
	}
}

func TestSetLevelsUpdatesExistingLoggers(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	handler := GetLogger("streams").Handler()
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}

	SetLevels(Config{Modules: map[string]string{"streams": "debug"}})
	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after SetLevels")
	}

	SetLevels(Config{Level: "error"})
	if handler.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after global level raised to error")
	}
}

func TestBufferHandlerRecordsEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug", Format: "text"})

	var seen []LogEntry
	SetLogCallback(func(entry LogEntry) {
		seen = append(seen, entry)
	})
	defer SetLogCallback(nil)

	GetLogger("cameras").With("camera_id", "front").Info("camera created")

	entries := GetBuffer().Snapshot("")
	if len(entries) == 0 {
		t.Fatal("expected buffered entries")
	}
	last := entries[len(entries)-1]
	if last.Module != "cameras" || last.Message != "camera created" {
		t.Errorf("last entry = %+v", last)
	}
	if last.Attributes["camera_id"] != "front" {
		t.Errorf("camera_id attribute = %v", last.Attributes["camera_id"])
	}
	if len(seen) != 1 {
		t.Errorf("callback saw %d entries, want 1", len(seen))
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"invalid", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseLevel(tt.input)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("parseLevel(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestModuleLevelFallback(t *testing.T) {
	cfg := Config{Level: "bogus", Modules: map[string]string{"ffmpeg": "error", "api": "nonsense"}}
	if got := cfg.moduleLevel("ffmpeg"); got != slog.LevelError {
		t.Errorf("ffmpeg = %v, want error", got)
	}
	if got := cfg.moduleLevel("api"); got != slog.LevelInfo {
		t.Errorf("api with invalid level = %v, want info", got)
	}
	cfg.Level = "warn"
	if got := cfg.moduleLevel("streams"); got != slog.LevelWarn {
		t.Errorf("streams = %v, want global warn", got)
	}
}

func TestRingBufferWrapsAndFilters(t *testing.T) {
	rb := NewRingBuffer(3)
	if got := rb.Snapshot(""); len(got) != 0 {
		t.Fatalf("empty buffer snapshot = %v", got)
	}

	modules := []string{"api", "streams", "api", "ffmpeg", "api"}
	for i, m := range modules {
		rb.Write(LogEntry{Module: m, Message: string(rune('a' + i))})
	}

	if rb.Len() != 3 {
		t.Errorf("Len = %d, want 3", rb.Len())
	}

	var msgs string
	for _, e := range rb.Snapshot("") {
		msgs += e.Message
	}
	if msgs != "cde" {
		t.Errorf("oldest-first messages = %q, want cde", msgs)
	}

	api := rb.Snapshot("api")
	if len(api) != 2 || api[0].Message != "c" || api[1].Message != "e" {
		t.Errorf("api snapshot = %+v", api)
	}
}

func TestJournalFieldName(t *testing.T) {
	tests := map[string]string{
		"camera_id":         "CAMERA_ID",
		"run-id":            "RUN_ID",
		"http.status":       "HTTP_STATUS",
		"_private":          "PRIVATE",
		"2fast":             "FAST",
		"message":           "",
		"":                  "",
		"SYSLOG_IDENTIFIER": "",
	}
	for in, want := range tests {
		if got := journalFieldName(in); got != want {
			t.Errorf("journalFieldName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMultiHandlerJoinsErrors(t *testing.T) {
	failing := failingHandler{err: errors.New("journal down")}
	var buf bytes.Buffer
	ok := slog.NewTextHandler(&buf, nil)

	h := NewMultiHandler(failing, ok)
	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0))
	if err == nil || !strings.Contains(err.Error(), "journal down") {
		t.Errorf("Handle error = %v", err)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Error("healthy handler should still receive the record")
	}
}

type failingHandler struct{ err error }

func (failingHandler) Enabled(context.Context, slog.Level) bool   { return true }
func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }
func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler        { return f }
func (f failingHandler) WithGroup(string) slog.Handler             { return f }
