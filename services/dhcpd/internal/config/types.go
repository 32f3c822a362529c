package config

import (
	"net"
	"time"
)

type Config struct {
	DHCP   DHCPConfig
	HTTP   HTTPConfig
	Events EventsConfig
}

type DHCPConfig struct {
	BindIP      net.IP
	ServerIP    net.IP
	ServerPort  int
	ClientPort  int
	BroadcastIP net.IP
	RangeStart  net.IP
	RangeEnd    net.IP
	SubnetMask  net.IPMask
	Router      net.IP
	DNS         net.IP
	LeaseTime   time.Duration
}

type HTTPConfig struct {
	Enabled bool
	Addr    string
}

// EventsConfig turns on lease event publishing when NATSURL is set.
type EventsConfig struct {
	NATSURL string
	Subject string
}

// fileConfig mirrors the on-disk JSON document.
type fileConfig struct {
	BindIP           string  `yaml:"bind_ip"`
	ServerIP         string  `yaml:"server_ip"`
	LeaseTimeSeconds *int    `yaml:"lease_time_seconds"`
	PoolStart        string  `yaml:"pool_start"`
	PoolEnd          string  `yaml:"pool_end"`
	SubnetMask       string  `yaml:"subnet_mask"`
	Router           string  `yaml:"router"`
	DNS              string  `yaml:"dns"`
	ServerPort       *int    `yaml:"server_port"`
	ClientPort       *int    `yaml:"client_port"`
	BroadcastIP      string  `yaml:"broadcast_ip"`
	HTTPAddr         *string `yaml:"http_addr"`
	NATSURL          string  `yaml:"nats_url"`
	NATSSubject      string  `yaml:"nats_subject"`
}
