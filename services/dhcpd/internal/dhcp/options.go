package dhcp

import (
	"bytes"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// Option codes the responder reads or writes.
const (
	optPad         = byte(dhcpv4.OptionPad)
	optSubnetMask  = byte(dhcpv4.OptionSubnetMask)
	optRouter      = byte(dhcpv4.OptionRouter)
	optDNS         = byte(dhcpv4.OptionDomainNameServer)
	optRequestedIP = byte(dhcpv4.OptionRequestedIPAddress)
	optLeaseTime   = byte(dhcpv4.OptionIPAddressLeaseTime)
	optMessageType = byte(dhcpv4.OptionDHCPMessageType)
	optServerID    = byte(dhcpv4.OptionServerIdentifier)
	optEnd         = byte(dhcpv4.OptionEnd)
)

const maxOptionLen = 255

// Option is a single TLV entry. A nil Value marks an optional entry that
// BuildOptions leaves out.
type Option struct {
	Code  byte
	Value []byte
}

// Options maps an option code to the value of its last occurrence.
type Options map[byte][]byte

// ParseOptions decodes a TLV option stream. Pad bytes are skipped and the end
// marker stops the scan. A stream cut short inside a length byte or a value
// yields the options decoded so far.
func ParseOptions(raw []byte) Options {
	opts := make(Options)
	for i := 0; i < len(raw); {
		code := raw[i]
		i++
		switch code {
		case optEnd:
			return opts
		case optPad:
			continue
		}
		if i >= len(raw) {
			break
		}
		n := int(raw[i])
		i++
		// A value cut short is discarded, not recorded short: the stream
		// 53,2,1 carries no message type and the datagram is dropped.
		if i+n > len(raw) {
			break
		}
		opts[code] = bytes.Clone(raw[i : i+n])
		i += n
	}
	return opts
}

// BuildOptions encodes opts in order and appends the end marker. Values
// longer than 255 bytes are clipped to fit the length byte.
func BuildOptions(opts []Option) []byte {
	size := 1
	for _, o := range opts {
		size += 2 + len(o.Value)
	}
	out := make([]byte, 0, size)
	for _, o := range opts {
		if o.Value == nil {
			continue
		}
		value := o.Value
		if len(value) > maxOptionLen {
			value = value[:maxOptionLen]
		}
		out = append(out, o.Code, byte(len(value)))
		out = append(out, value...)
	}
	return append(out, optEnd)
}
