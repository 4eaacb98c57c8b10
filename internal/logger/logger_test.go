package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestPrettyHandler_Structural(t *testing.T) {
	var buf bytes.Buffer
	opts := &slog.HandlerOptions{Level: LevelDebug}
	h := NewPrettyHandler(&buf, opts, false)
	l := slog.New(h)

	t.Run("WithAttrs", func(t *testing.T) {
		buf.Reset()
		l2 := l.With("request_id", "abc-123")
		l2.Info("Extraction finished", "rows", 3)

		output := buf.String()
		if !strings.Contains(output, "request_id=abc-123") {
			t.Errorf("output missing persistent attr: %q", output)
		}
		if !strings.Contains(output, "rows=3") {
			t.Errorf("output missing record attr: %q", output)
		}
	})

	t.Run("WithGroup", func(t *testing.T) {
		buf.Reset()
		l2 := l.WithGroup("stats").With("trans_units", 10)
		l2.Info("Extraction finished", "skipped_status", 4)

		output := buf.String()
		if !strings.Contains(output, "stats.trans_units=10") {
			t.Errorf("output missing grouped persistent attr: %q", output)
		}
		if !strings.Contains(output, "stats.skipped_status=4") {
			t.Errorf("output missing grouped record attr: %q", output)
		}
	})

	t.Run("GroupValue", func(t *testing.T) {
		buf.Reset()
		l.Info("Scores", slog.Group("score", "min", 0.5, "max", 0.9))

		output := buf.String()
		if !strings.Contains(output, "score.min=0.5") || !strings.Contains(output, "score.max=0.9") {
			t.Errorf("output missing inline group attrs: %q", output)
		}
	})

	t.Run("LevelFilter", func(t *testing.T) {
		buf.Reset()
		quiet := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: LevelWarn}, false))
		quiet.Info("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})
}

func TestRedactAttr(t *testing.T) {
	tests := []struct {
		name   string
		attr   slog.Attr
		redact bool
	}{
		{"api key by key", slog.String("api_key", "sk-1234567890abcdef"), true},
		{"hf token by value", slog.String("message", "using hf_abcdefghijklmnopqrstuv"), true},
		{"bearer by value", slog.String("detail", "Bearer abc.def"), true},
		{"segment source", slog.String("src", "Hello"), true},
		{"segment hypothesis", slog.String("mt", "Bonjour"), true},
		{"segment reference", slog.String("ref", "Salut"), true},
		{"text suffix", slog.String("target_text", "x"), true},
		{"file path", slog.String("file", "/tmp/demo.mqxliff"), false},
		{"model", slog.String("model", "Unbabel/wmt22-comet-da"), false},
		{"count", slog.Int("rows", 4), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactAttr(nil, tt.attr)
			isRedacted := got.Value.String() == redacted
			if isRedacted != tt.redact {
				t.Fatalf("RedactAttr(%s) redacted=%v, want %v", tt.attr.Key, isRedacted, tt.redact)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"chatty":  LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitJSON_Redacts(t *testing.T) {
	defer Init(LevelInfo, nil)

	var buf bytes.Buffer
	InitJSON(LevelInfo, &buf)
	Info("Using credential", "provider", "env", "hf_token", "hf_abcdefghijklmnopqrstuv")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["hf_token"] != redacted {
		t.Errorf("token not redacted: %v", rec["hf_token"])
	}
	if rec["provider"] != "env" {
		t.Errorf("provider altered: %v", rec["provider"])
	}
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	prevStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	defer func() { os.Stderr = prevStderr }()

	fn()

	_ = w.Close()
	out, _ := io.ReadAll(r)
	return string(out)
}

func TestPrettyHandler_NoColorWhenNotTTY(t *testing.T) {
	prevIsTerminal := isTerminal
	isTerminal = func(_ int) bool { return false }
	defer func() { isTerminal = prevIsTerminal }()
	defer Init(LevelInfo, nil)

	out := captureStderr(t, func() {
		Init(LevelInfo, nil)
		Info("test message", "file", "a.xlf")
	})
	if strings.Contains(out, "\033[") {
		t.Fatalf("unexpected ANSI codes in output: %q", out)
	}
}

func TestPrettyHandler_NoColorWhenLogFileEnabled(t *testing.T) {
	prevIsTerminal := isTerminal
	isTerminal = func(_ int) bool { return true }
	defer func() { isTerminal = prevIsTerminal }()
	defer Init(LevelInfo, nil)

	var logBuf bytes.Buffer
	out := captureStderr(t, func() {
		Init(LevelInfo, &logBuf)
		Info("test message", "file", "a.xlf")
	})
	if strings.Contains(out, "\033[") {
		t.Fatalf("unexpected ANSI codes in output: %q", out)
	}
	if !strings.Contains(logBuf.String(), `"file":"a.xlf"`) {
		t.Fatalf("expected JSONL record in log file, got %q", logBuf.String())
	}
}
