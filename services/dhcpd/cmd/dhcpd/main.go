package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"ipmidhcpd/pkg/bus"
	"ipmidhcpd/pkg/telemetry"
	"ipmidhcpd/services/dhcpd/internal/adminhttp"
	"ipmidhcpd/services/dhcpd/internal/config"
	"ipmidhcpd/services/dhcpd/internal/dhcp"
)

const serviceName = "dhcpd"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Minimal DHCP responder for BMC and IPMI networks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.json", "Path to the JSON configuration file")
	cmd.AddCommand(newInterfacesCommand())
	return cmd
}

func newInterfacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "List the IPv4 addresses usable as bind_ip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printInterfaces(cmd.OutOrStdout())
		},
	}
}

func printInterfaces(w io.Writer) error {
	ips, err := config.LocalIPv4s()
	if err != nil {
		return fmt.Errorf("list local addresses: %w", err)
	}
	for _, ip := range ips {
		fmt.Fprintln(w, ip)
	}
	fmt.Fprintln(w, "0.0.0.0 (all interfaces)")
	return nil
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
		}
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := dhcp.NewPool(cfg.DHCP.RangeStart, cfg.DHCP.RangeEnd, cfg.DHCP.LeaseTime, nil)
	if err != nil {
		return fmt.Errorf("create lease pool: %w", err)
	}
	metrics, err := dhcp.NewMetrics(prometheus.DefaultRegisterer, pool)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	handlerCfg := dhcp.HandlerConfig{
		ServerIP:     cfg.DHCP.ServerIP,
		SubnetMask:   cfg.DHCP.SubnetMask,
		Router:       cfg.DHCP.Router,
		DNS:          cfg.DHCP.DNS,
		LeaseTime:    cfg.DHCP.LeaseTime,
		Metrics:      metrics,
		EventSubject: cfg.Events.Subject,
	}
	if cfg.Events.NATSURL != "" {
		b, err := bus.New(cfg.Events.NATSURL)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		defer b.Close()
		handlerCfg.Events = b
		logger.Printf("INFO publishing lease events to %s on %s.*", cfg.Events.NATSURL, cfg.Events.Subject)
	}

	handler, err := dhcp.NewHandler(pool, handlerCfg, logger)
	if err != nil {
		return fmt.Errorf("create dhcp handler: %w", err)
	}
	// Deferred after the bus, so queued events flush before the drain.
	defer handler.Close()
	server, err := dhcp.NewServer(cfg.DHCP, handler, logger)
	if err != nil {
		return fmt.Errorf("create dhcp server: %w", err)
	}

	var dhcpReady atomic.Bool
	errCh := make(chan error, 2)

	go func() {
		if err := server.Run(ctx, &dhcpReady); err != nil {
			errCh <- fmt.Errorf("dhcp: %w", err)
		}
	}()

	if cfg.HTTP.Enabled {
		if err := serveAdmin(ctx, cfg.HTTP, pool, &dhcpReady, middleware, logger, errCh); err != nil {
			return err
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func serveAdmin(ctx context.Context, cfg config.HTTPConfig, pool *dhcp.Pool, ready *atomic.Bool, middleware func(http.Handler) http.Handler, logger *log.Logger, errCh chan<- error) error {
	api, err := adminhttp.New(pool, ready.Load, promhttp.Handler())
	if err != nil {
		return fmt.Errorf("create admin api: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middleware(api.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: http shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO http listening on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	return nil
}
