package dhcp

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"

	"ipmidhcpd/services/dhcpd/internal/config"
)

type Server struct {
	cfg     config.DHCPConfig
	logger  *log.Logger
	handler *Handler
}

type Handler struct {
	pool      *Pool
	serverIP  net.IP
	replyOpts replyOptions
	logger    *log.Logger
	metrics   *Metrics
	events    EventPublisher
	subject   string
	tracer    trace.Tracer

	queue        chan queuedEvent
	eventsMu     sync.RWMutex
	eventsClosed bool
	eventsDone   chan struct{}
}

// HandlerConfig carries the reply parameters. Metrics and Events are optional.
type HandlerConfig struct {
	ServerIP     net.IP
	SubnetMask   net.IPMask
	Router       net.IP
	DNS          net.IP
	LeaseTime    time.Duration
	Metrics      *Metrics
	Events       EventPublisher
	EventSubject string
}

type replyOptions struct {
	serverID   []byte
	leaseTime  []byte
	subnetMask []byte
	router     []byte
	dns        []byte
}

type Pool struct {
	mu        sync.Mutex
	clock     clock.Clock
	startIP   net.IP
	endIP     net.IP
	leaseTime time.Duration
	leases    map[string]lease
}

type lease struct {
	ip        net.IP
	expiresAt time.Time
}

// Lease is an exported snapshot of one table entry.
type Lease struct {
	MAC       string    `json:"mac"`
	IP        string    `json:"ip"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}
