package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestInterfacesCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"interfaces"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected loopback plus wildcard, got %q", out.String())
	}
	if !strings.Contains(out.String(), "127.0.0.1") {
		t.Fatalf("loopback missing from %q", out.String())
	}
	if lines[len(lines)-1] != "0.0.0.0 (all interfaces)" {
		t.Fatalf("unexpected last line %q", lines[len(lines)-1])
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("DHCPD_SERVER_IP", "")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", t.TempDir() + "/missing.json"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}
