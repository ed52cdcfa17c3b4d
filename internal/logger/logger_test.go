package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod", "info")

	log.Debug("hidden")
	log.Info("booking created", "booking_id", "b-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "fixitnow" || entry["booking_id"] != "b-1" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "dev", "WARN")

	log.Info("quiet")
	log.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Errorf("unexpected output %q", out)
	}
}
