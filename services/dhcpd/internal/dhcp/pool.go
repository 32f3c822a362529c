package dhcp

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
)

// NewPool creates the lease table for the inclusive range [start, end].
// A nil clk uses the wall clock.
func NewPool(start, end net.IP, leaseTime time.Duration, clk clock.Clock) (*Pool, error) {
	s, e := start.To4(), end.To4()
	if s == nil || e == nil {
		return nil, fmt.Errorf("pool range %v-%v must be IPv4", start, end)
	}
	if compareIP(s, e) > 0 {
		return nil, fmt.Errorf("pool start %s is after end %s", s, e)
	}
	if leaseTime <= 0 {
		return nil, errors.New("lease time must be positive")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Pool{
		clock:     clk,
		startIP:   cloneIP(s),
		endIP:     cloneIP(e),
		leaseTime: leaseTime,
		leases:    make(map[string]lease),
	}, nil
}

// Allocate returns the address bound to mac, or nil when the pool is
// exhausted. An unexpired binding is returned as-is without extending it.
// Otherwise requested is honoured when it lies in the pool and nobody holds
// it, and failing that the lowest free address is bound.
func (p *Pool) Allocate(mac string, requested net.IP) net.IP {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if l, ok := p.leases[mac]; ok && l.expiresAt.After(now) {
		return cloneIP(l.ip)
	}

	if ip := requested.To4(); ip != nil && p.contains(ip) && !p.isAllocated(ip, now) {
		return p.bind(mac, ip, now)
	}

	for ip := cloneIP(p.startIP); ; ip = incrementIP(ip) {
		if !p.isAllocated(ip, now) {
			return p.bind(mac, ip, now)
		}
		if compareIP(ip, p.endIP) >= 0 {
			return nil
		}
	}
}

// Lookup returns the table entry for mac, stale or not.
func (p *Pool) Lookup(mac string) (Lease, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.leases[mac]
	if !ok {
		return Lease{}, false
	}
	return l.snapshot(mac, p.clock.Now()), true
}

// Leases returns every table entry ordered by address, then MAC.
func (p *Pool) Leases() []Lease {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	out := make([]Lease, 0, len(p.leases))
	keys := make(map[string]net.IP, len(p.leases))
	for mac, l := range p.leases {
		out = append(out, l.snapshot(mac, now))
		keys[mac] = l.ip
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareIP(keys[out[i].MAC], keys[out[j].MAC]); c != 0 {
			return c < 0
		}
		return out[i].MAC < out[j].MAC
	})
	return out
}

// Size is the number of addresses in the range.
func (p *Pool) Size() int {
	return int(ipToUint32(p.endIP)-ipToUint32(p.startIP)) + 1
}

// Active counts entries whose expiry is still ahead.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	n := 0
	for _, l := range p.leases {
		if l.expiresAt.After(now) {
			n++
		}
	}
	return n
}

// Range returns copies of the pool bounds.
func (p *Pool) Range() (net.IP, net.IP) {
	return cloneIP(p.startIP), cloneIP(p.endIP)
}

func (p *Pool) bind(mac string, ip net.IP, now time.Time) net.IP {
	p.leases[mac] = lease{ip: cloneIP(ip), expiresAt: now.Add(p.leaseTime)}
	return cloneIP(ip)
}

func (p *Pool) contains(ip net.IP) bool {
	return compareIP(ip, p.startIP) >= 0 && compareIP(ip, p.endIP) <= 0
}

// isAllocated is a linear scan over the table; stale entries never block.
func (p *Pool) isAllocated(ip net.IP, now time.Time) bool {
	for _, l := range p.leases {
		if l.expiresAt.After(now) && ip.Equal(l.ip) {
			return true
		}
	}
	return false
}

func (l lease) snapshot(mac string, now time.Time) Lease {
	return Lease{
		MAC:       mac,
		IP:        l.ip.String(),
		ExpiresAt: l.expiresAt,
		Active:    l.expiresAt.After(now),
	}
}
