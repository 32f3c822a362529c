package dhcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"ipmidhcpd/services/dhcpd/internal/config"
)

const readBufferSize = 4096

func NewServer(cfg config.DHCPConfig, handler *Handler, logger *log.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.BroadcastIP == nil {
		cfg.BroadcastIP = net.IPv4bcast
	}
	return &Server{cfg: cfg, logger: logger, handler: handler}, nil
}

// Run binds the server port and answers datagrams until ctx is cancelled.
func (s *Server) Run(ctx context.Context, ready *atomic.Bool) error {
	addr := net.JoinHostPort(s.bindHost(), strconv.Itoa(s.cfg.ServerPort))
	lc := net.ListenConfig{Control: broadcastControl}
	conn, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		if isAddrNotAvailable(err) {
			s.logUnassignedBind()
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	ready.Store(true)

	start, end := s.handler.pool.Range()
	s.logger.Printf("INFO DHCP server listening on %s", addr)
	s.logger.Printf("INFO pool %s - %s", start, end)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.serve(ctx, conn)
	}()

	select {
	case err := <-errCh:
		conn.Close()
		if err != nil {
			return fmt.Errorf("dhcp serve: %w", err)
		}
	case <-ctx.Done():
		conn.Close()
		<-errCh
	}
	return nil
}

// serve handles one datagram at a time: parse, allocate, build and send all
// finish before the next read.
func (s *Server) serve(ctx context.Context, conn net.PacketConn) error {
	dst := &net.UDPAddr{IP: s.cfg.BroadcastIP, Port: s.cfg.ClientPort}
	buf := make([]byte, readBufferSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		reply, ok := s.handler.Handle(ctx, buf[:n])
		if !ok {
			continue
		}
		if _, err := conn.WriteTo(reply, dst); err != nil {
			s.logger.Printf("ERROR send reply to %s: %v", dst, err)
		}
	}
}

func (s *Server) bindHost() string {
	if s.cfg.BindIP == nil {
		return net.IPv4zero.String()
	}
	return s.cfg.BindIP.String()
}

func (s *Server) logUnassignedBind() {
	s.logger.Printf("ERROR bind_ip %s is not assigned to this host", s.bindHost())
	ips, err := config.LocalIPv4s()
	if err != nil {
		s.logger.Printf("WARN list local addresses: %v", err)
		return
	}
	s.logger.Printf("INFO update the config to one of: %s, or use 0.0.0.0 to bind all interfaces", strings.Join(ips, ", "))
}
