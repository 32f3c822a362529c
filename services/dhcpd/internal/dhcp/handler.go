package dhcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ipmidhcpd/services/dhcpd/internal/dhcp"

// maxLeaseTime is the largest lease option 51 can carry in its 32 bits.
const maxLeaseTime = math.MaxUint32 * time.Second

// NewHandler builds the message dispatcher on top of pool.
func NewHandler(pool *Pool, cfg HandlerConfig, logger *log.Logger) (*Handler, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	serverIP := cfg.ServerIP.To4()
	if serverIP == nil {
		return nil, fmt.Errorf("server address %v must be IPv4", cfg.ServerIP)
	}
	if cfg.LeaseTime <= 0 {
		return nil, errors.New("lease time must be positive")
	}
	if cfg.LeaseTime > maxLeaseTime {
		return nil, fmt.Errorf("lease time %s does not fit option 51", cfg.LeaseTime)
	}
	if logger == nil {
		logger = log.Default()
	}
	subject := cfg.EventSubject
	if subject == "" {
		subject = "dhcpd.leases"
	}

	leaseSecs := make([]byte, 4)
	binary.BigEndian.PutUint32(leaseSecs, uint32(cfg.LeaseTime.Seconds()))

	h := &Handler{
		pool:     pool,
		serverIP: cloneIP(serverIP),
		replyOpts: replyOptions{
			serverID:   cloneIP(serverIP),
			leaseTime:  leaseSecs,
			subnetMask: ipv4Bytes(net.IP(cfg.SubnetMask)),
			router:     ipv4Bytes(cfg.Router),
			dns:        ipv4Bytes(cfg.DNS),
		},
		logger:  logger,
		metrics: cfg.Metrics,
		events:  cfg.Events,
		subject: subject,
		tracer:  otel.Tracer(tracerName),
	}
	if h.events != nil {
		h.startEvents()
	}
	return h, nil
}

// Handle classifies one inbound datagram and returns the reply to broadcast.
// ok is false when the datagram is dropped or needs no answer.
func (h *Handler) Handle(ctx context.Context, data []byte) (reply []byte, ok bool) {
	if !hasMagicCookie(data) {
		h.metrics.observeDrop(dropMalformed)
		return nil, false
	}
	opts := ParseOptions(data[minPacketLen:])
	mt := opts[optMessageType]
	if len(mt) == 0 {
		h.metrics.observeDrop(dropNoType)
		return nil, false
	}
	hdr, err := DecodeHeader(data)
	if err != nil {
		h.metrics.observeDrop(dropMalformed)
		return nil, false
	}
	mac := hdr.CHAddr.String()

	// A multi-byte type value matches none of the known types.
	msgType := dhcpv4.MessageType(0)
	if len(mt) == 1 {
		msgType = dhcpv4.MessageType(mt[0])
	}
	h.metrics.observeReceived(messageTypeLabel(msgType))

	ctx, span := h.tracer.Start(ctx, "dhcp.handle", trace.WithAttributes(
		attribute.String("dhcp.message_type", msgType.String()),
		attribute.String("dhcp.mac", mac),
		attribute.String("dhcp.xid", fmt.Sprintf("0x%08x", hdr.XID)),
	))
	defer span.End()

	switch msgType {
	case dhcpv4.MessageTypeDiscover:
		return h.respond(ctx, span, data, hdr, mac, nil, dhcpv4.MessageTypeOffer)
	case dhcpv4.MessageTypeRequest:
		return h.respond(ctx, span, data, hdr, mac, requestedIP(opts), dhcpv4.MessageTypeAck)
	case dhcpv4.MessageTypeDecline, dhcpv4.MessageTypeRelease:
		// The binding is left to expire on its own.
		h.logger.Printf("INFO ignoring DHCP message type %d from %s", byte(msgType), mac)
		kind := EventReleased
		if msgType == dhcpv4.MessageTypeDecline {
			kind = EventDeclined
		}
		h.publish(ctx, kind, mac, hdr.CIAddr.String(), hdr.XID)
	}
	return nil, false
}

func (h *Handler) respond(ctx context.Context, span trace.Span, request []byte, hdr Header, mac string, requested net.IP, replyType dhcpv4.MessageType) ([]byte, bool) {
	ip := h.pool.Allocate(mac, requested)
	if ip == nil {
		h.logger.Printf("DEBUG no available lease for %s", mac)
		h.metrics.observeDrop(dropExhausted)
		span.SetStatus(codes.Error, "pool exhausted")
		return nil, false
	}
	span.SetAttributes(attribute.String("dhcp.yiaddr", ip.String()))

	options := BuildOptions(h.optionsFor(replyType))
	reply, err := BuildReply(request, ip, h.serverIP, options)
	if err != nil {
		h.logger.Printf("ERROR build %s for %s: %v", replyType, mac, err)
		h.metrics.observeDrop(dropEncode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "build reply")
		return nil, false
	}

	verb, kind := "offer", EventOffered
	if replyType == dhcpv4.MessageTypeAck {
		verb, kind = "ack", EventAcked
	}
	h.metrics.observeReply(verb)
	h.logger.Printf("INFO %s %s to %s", verb, ip, mac)
	h.publish(ctx, kind, mac, ip.String(), hdr.XID)
	return reply, true
}

// optionsFor is the fixed reply template; unset entries are skipped.
func (h *Handler) optionsFor(replyType dhcpv4.MessageType) []Option {
	return []Option{
		{Code: optMessageType, Value: []byte{byte(replyType)}},
		{Code: optServerID, Value: h.replyOpts.serverID},
		{Code: optLeaseTime, Value: h.replyOpts.leaseTime},
		{Code: optSubnetMask, Value: h.replyOpts.subnetMask},
		{Code: optRouter, Value: h.replyOpts.router},
		{Code: optDNS, Value: h.replyOpts.dns},
	}
}

// requestedIP reads option 50. Anything but a 4-byte value counts as absent.
func requestedIP(opts Options) net.IP {
	v := opts[optRequestedIP]
	if len(v) != net.IPv4len {
		return nil
	}
	return cloneIP(v)
}

func messageTypeLabel(t dhcpv4.MessageType) string {
	switch t {
	case dhcpv4.MessageTypeDiscover:
		return "discover"
	case dhcpv4.MessageTypeRequest:
		return "request"
	case dhcpv4.MessageTypeDecline:
		return "decline"
	case dhcpv4.MessageTypeRelease:
		return "release"
	case dhcpv4.MessageTypeInform:
		return "inform"
	default:
		return "other"
	}
}

func ipv4Bytes(ip net.IP) []byte {
	if len(ip) == net.IPv4len {
		return cloneIP(ip)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil
	}
	return cloneIP(v4)
}
