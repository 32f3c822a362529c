package bus

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	if err := b.Publish(context.Background(), "dhcpd.leases.offered", "id", map[string]string{"mac": "aa"}); err == nil {
		t.Fatal("expected error from nil bus")
	}
	b.Close()
}

func TestNewUnreachable(t *testing.T) {
	// Port 1 on loopback refuses connections.
	_, err := New("nats://127.0.0.1:1", nats.Timeout(time.Second))
	if err == nil {
		t.Fatal("expected connect error")
	}
}
