package dhcp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// BOOTP fixed header layout (RFC 2131 section 2).
const (
	headerLen     = 236
	minPacketLen  = headerLen + 4
	chaddrOffset  = 28
	chaddrLen     = 16
	sizeThroughCH = chaddrOffset + chaddrLen
)

var magicCookie = [4]byte{0x63, 0x82, 0x53, 0x63}

var errShortRequest = errors.New("request shorter than the BOOTP address block")

// Header is the inbound view of the fixed BOOTP fields the responder uses.
type Header struct {
	Op     byte
	HType  byte
	HLen   byte
	Hops   byte
	XID    uint32
	Secs   uint16
	Flags  uint16
	CIAddr net.IP
	CHAddr net.HardwareAddr
}

// DecodeHeader reads the fixed fields from b, which must hold at least the
// first 44 bytes of a BOOTP packet. Only the first HLen bytes of chaddr are
// kept, with HLen clamped to the 16-byte field.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < sizeThroughCH {
		return Header{}, errShortRequest
	}
	h := Header{
		Op:     b[0],
		HType:  b[1],
		HLen:   b[2],
		Hops:   b[3],
		XID:    binary.BigEndian.Uint32(b[4:8]),
		Secs:   binary.BigEndian.Uint16(b[8:10]),
		Flags:  binary.BigEndian.Uint16(b[10:12]),
		CIAddr: net.IP(bytes.Clone(b[12:16])),
	}
	n := int(h.HLen)
	if n > chaddrLen {
		n = chaddrLen
	}
	h.CHAddr = net.HardwareAddr(bytes.Clone(b[chaddrOffset : chaddrOffset+n]))
	return h, nil
}

// BuildReply assembles a BOOTREPLY for request: the transaction fields,
// ciaddr and the full 16-byte chaddr are copied, yiaddr and siaddr are set,
// giaddr, sname and file are zero, and the magic cookie precedes options.
func BuildReply(request []byte, yiaddr, siaddr net.IP, options []byte) ([]byte, error) {
	h, err := DecodeHeader(request)
	if err != nil {
		return nil, err
	}
	your := yiaddr.To4()
	if your == nil {
		return nil, fmt.Errorf("assigned address %v is not IPv4", yiaddr)
	}
	server := siaddr.To4()
	if server == nil {
		return nil, fmt.Errorf("server address %v is not IPv4", siaddr)
	}

	reply := make([]byte, minPacketLen, minPacketLen+len(options))
	reply[0] = byte(dhcpv4.OpcodeBootReply)
	reply[1] = h.HType
	reply[2] = h.HLen
	reply[3] = h.Hops
	binary.BigEndian.PutUint32(reply[4:8], h.XID)
	binary.BigEndian.PutUint16(reply[8:10], h.Secs)
	binary.BigEndian.PutUint16(reply[10:12], h.Flags)
	copy(reply[12:16], h.CIAddr)
	copy(reply[16:20], your)
	copy(reply[20:24], server)
	copy(reply[chaddrOffset:sizeThroughCH], request[chaddrOffset:sizeThroughCH])
	copy(reply[headerLen:minPacketLen], magicCookie[:])
	return append(reply, options...), nil
}

func hasMagicCookie(b []byte) bool {
	return len(b) >= minPacketLen && [4]byte(b[headerLen:minPacketLen]) == magicCookie
}
