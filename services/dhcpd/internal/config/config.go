package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultLeaseSeconds = 3600
	defaultServerPort   = 67
	defaultClientPort   = 68
	defaultHTTPAddr     = ":8080"
	defaultNATSSubject  = "dhcpd.leases"
)

// Load reads the JSON configuration file at path, applies DHCPD_* environment
// overrides and validates the result. A missing file is not an error as long
// as the environment supplies every required value.
func Load(path string) (Config, error) {
	fc, err := readFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{}

	if cfg.DHCP.BindIP, err = parseIPv4("bind_ip", getEnv("DHCPD_BIND_IP", fc.BindIP)); err != nil {
		return Config{}, err
	}
	if cfg.DHCP.ServerIP, err = parseIPv4("server_ip", getEnv("DHCPD_SERVER_IP", fc.ServerIP)); err != nil {
		return Config{}, err
	}
	if cfg.DHCP.RangeStart, err = parseIPv4("pool_start", getEnv("DHCPD_POOL_START", fc.PoolStart)); err != nil {
		return Config{}, err
	}
	if cfg.DHCP.RangeEnd, err = parseIPv4("pool_end", getEnv("DHCPD_POOL_END", fc.PoolEnd)); err != nil {
		return Config{}, err
	}
	mask, err := parseIPv4("subnet_mask", getEnv("DHCPD_SUBNET_MASK", fc.SubnetMask))
	if err != nil {
		return Config{}, err
	}
	cfg.DHCP.SubnetMask = net.IPMask(mask)
	if cfg.DHCP.Router, err = parseIPv4("router", getEnv("DHCPD_ROUTER", fc.Router)); err != nil {
		return Config{}, err
	}
	if cfg.DHCP.DNS, err = parseIPv4("dns", getEnv("DHCPD_DNS", fc.DNS)); err != nil {
		return Config{}, err
	}

	leaseSecs := defaultLeaseSeconds
	if fc.LeaseTimeSeconds != nil {
		leaseSecs = *fc.LeaseTimeSeconds
	}
	leaseSecs = getEnvInt("DHCPD_LEASE_SECONDS", leaseSecs)
	if leaseSecs <= 0 {
		return Config{}, fmt.Errorf("invalid lease_time_seconds: %d", leaseSecs)
	}
	// Option 51 carries the lease as an unsigned 32-bit count of seconds.
	if int64(leaseSecs) > math.MaxUint32 {
		return Config{}, fmt.Errorf("lease_time_seconds %d exceeds %d", leaseSecs, uint32(math.MaxUint32))
	}
	cfg.DHCP.LeaseTime = time.Duration(leaseSecs) * time.Second

	if bytes.Compare(cfg.DHCP.RangeStart, cfg.DHCP.RangeEnd) > 0 {
		return Config{}, fmt.Errorf("pool_start %s must be <= pool_end %s", cfg.DHCP.RangeStart, cfg.DHCP.RangeEnd)
	}

	cfg.DHCP.ServerPort = getEnvInt("DHCPD_SERVER_PORT", intOr(fc.ServerPort, defaultServerPort))
	cfg.DHCP.ClientPort = getEnvInt("DHCPD_CLIENT_PORT", intOr(fc.ClientPort, defaultClientPort))
	for name, port := range map[string]int{"server_port": cfg.DHCP.ServerPort, "client_port": cfg.DHCP.ClientPort} {
		if port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("%s %d is outside the valid range 1-65535", name, port)
		}
	}

	broadcast := getEnv("DHCPD_BROADCAST_IP", fc.BroadcastIP)
	if broadcast == "" {
		cfg.DHCP.BroadcastIP = net.IPv4bcast.To4()
	} else if cfg.DHCP.BroadcastIP, err = parseIPv4("broadcast_ip", broadcast); err != nil {
		return Config{}, err
	}

	httpAddr := defaultHTTPAddr
	if fc.HTTPAddr != nil {
		httpAddr = *fc.HTTPAddr
	}
	cfg.HTTP.Addr = getEnv("DHCPD_HTTP_ADDR", httpAddr)
	cfg.HTTP.Enabled = getEnvBool("DHCPD_ENABLE_HTTP", cfg.HTTP.Addr != "")

	cfg.Events.NATSURL = getEnv("DHCPD_NATS_URL", fc.NATSURL)
	cfg.Events.Subject = getEnv("DHCPD_NATS_SUBJECT", fc.NATSSubject)
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = defaultNATSSubject
	}

	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	// JSON documents are valid YAML, so config.json loads as-is.
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

func parseIPv4(name, value string) (net.IP, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	ip := net.ParseIP(value)
	if ip == nil {
		return nil, fmt.Errorf("invalid %s: %q", name, value)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("%s must be an IPv4 address: %q", name, value)
	}
	return v4, nil
}

// LocalIPv4s lists the IPv4 addresses assigned to this host, loopback
// included, sorted and de-duplicated.
func LocalIPv4s() ([]string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	seen := make(map[string]struct{})
	for _, iface := range interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var candidate net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				candidate = v.IP
			case *net.IPAddr:
				candidate = v.IP
			}
			if v4 := candidate.To4(); v4 != nil {
				seen[v4.String()] = struct{}{}
			}
		}
	}
	seen[net.IPv4(127, 0, 0, 1).String()] = struct{}{}

	ips := make([]string, 0, len(seen))
	for ip := range seen {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
