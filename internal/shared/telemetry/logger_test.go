package telemetry

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestWriteEmitsJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Error("signing.notify_failed", map[string]any{"document_id": "doc-1", "attempt": 2})

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	if entry["level"] != "error" {
		t.Fatalf("expected level error, got %v", entry["level"])
	}
	if entry["msg"] != "signing.notify_failed" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
	if entry["document_id"] != "doc-1" {
		t.Fatalf("expected document_id field, got %v", entry["document_id"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts field in %v", entry)
	}
}

func TestSetLevelFiltersLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("warn")
	t.Cleanup(func() {
		SetLevel("debug")
		SetOutput(os.Stdout)
	})

	Info("dropped", nil)
	Warn("kept", nil)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %s", out)
	}
}
