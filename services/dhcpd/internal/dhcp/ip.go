package dhcp

import (
	"bytes"
	"encoding/binary"
	"net"
)

func cloneIP(ip net.IP) net.IP {
	if ip == nil {
		return nil
	}
	dup := make(net.IP, len(ip))
	copy(dup, ip)
	return dup
}

func ipToUint32(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}

func uint32ToIP(v uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}

// incrementIP wraps 255.255.255.255 to 0.0.0.0; callers bound the walk.
func incrementIP(ip net.IP) net.IP {
	return uint32ToIP(ipToUint32(ip) + 1)
}

// compareIP orders IPv4 addresses numerically. Nil sorts first.
func compareIP(a, b net.IP) int {
	return bytes.Compare(a.To4(), b.To4())
}
