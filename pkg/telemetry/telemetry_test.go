package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in        string
		wantLevel string
		wantMsg   string
	}{
		{"INFO offer 10.0.0.10 to aa:bb:cc:dd:ee:ff", "INFO", "offer 10.0.0.10 to aa:bb:cc:dd:ee:ff"},
		{"WARN no available lease for aa", "WARN", "no available lease for aa"},
		{"[error] bind failed", "ERROR", "bind failed"},
		{"warning: pool nearly full", "WARN", "pool nearly full"},
		{"listening", "INFO", "listening"},
		{"", "INFO", ""},
	}

	for _, tt := range tests {
		level, msg := parseLevel(tt.in)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Fatalf("parseLevel(%q) = %q, %q; want %q, %q", tt.in, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]string {
	t.Helper()
	var out []map[string]string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]string
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestJSONLogWriter(t *testing.T) {
	var buf bytes.Buffer
	w := newJSONLogWriter("dhcpd", &buf, "")
	w.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	if _, err := w.Write([]byte("INFO ack 10.0.0.10 to aa:bb:cc:dd:ee:ff\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got["level"] != "INFO" || got["service"] != "dhcpd" || got["msg"] != "ack 10.0.0.10 to aa:bb:cc:dd:ee:ff" {
		t.Fatalf("unexpected entry %v", got)
	}
	if got["ts"] != "2026-01-01T00:00:00Z" {
		t.Fatalf("unexpected ts %q", got["ts"])
	}
	if _, ok := got["trace_id"]; ok {
		t.Fatalf("trace_id should be omitted when empty")
	}
}

func TestNewLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("dhcpd", &buf, "warn")

	logger.Printf("INFO offer 10.0.0.10 to aa")
	logger.Printf("DEBUG parsed 3 options")
	logger.Printf("WARN no available lease for bb")
	logger.Printf("ERROR send reply: unreachable")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), entries)
	}
	if entries[0]["level"] != "WARN" || entries[1]["level"] != "ERROR" {
		t.Fatalf("unexpected levels %v", entries)
	}
}

func TestMiddlewareLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	w := newJSONLogWriter("dhcpd", &buf, "")
	mw := Middleware("dhcpd", w)

	h := mw(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leases/aa", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	entries := decodeLines(t, &buf)
	if len(entries) != 1 || !strings.HasPrefix(entries[0]["msg"], "GET /v1/leases/aa 404 ") {
		t.Fatalf("unexpected access log %v", entries)
	}
}

func TestInitWithoutExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, mw, logger, err := Init(context.Background(), "dhcpd")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if mw == nil || logger == nil {
		t.Fatalf("expected middleware and logger")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if _, _, _, err := Init(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty service name")
	}
}
