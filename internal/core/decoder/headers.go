package decoder

import (
	"encoding/binary"
	"net"
	"net/netip"

	"github.com/google/gopacket/layers"
)

// Fixed header sizes in bytes.
const (
	EthernetHeaderLen = 14
	VLANTagLen        = 4
	IPv4HeaderLen     = 20
	ICMPHeaderLen     = 8
	TCPHeaderLen      = 20
	UDPHeaderLen      = 8
	ESPHeaderLen      = 8
	AHHeaderLen       = 12
)

// IPv4 flag and offset bits of the fragment word.
const (
	ipv4DontFragment  = 0x4000
	ipv4MoreFragments = 0x2000
	ipv4OffsetMask    = 0x1fff
)

// The header views below read fields straight out of the captured bytes.
// Callers bounds-check before building a view.

// IPv4Header is a view of an IPv4 header, options included.
type IPv4Header []byte

func (h IPv4Header) Version() uint8      { return h[0] >> 4 }
func (h IPv4Header) IHL() uint8          { return h[0] & 0x0f }
func (h IPv4Header) HeaderLen() int      { return int(h.IHL()) * 4 }
func (h IPv4Header) TOS() uint8          { return h[1] }
func (h IPv4Header) TotalLen() int       { return int(binary.BigEndian.Uint16(h[2:4])) }
func (h IPv4Header) ID() uint16          { return binary.BigEndian.Uint16(h[4:6]) }
func (h IPv4Header) TTL() uint8          { return h[8] }
func (h IPv4Header) Checksum() uint16    { return binary.BigEndian.Uint16(h[10:12]) }
func (h IPv4Header) Src() netip.Addr     { return netip.AddrFrom4([4]byte(h[12:16])) }
func (h IPv4Header) Dst() netip.Addr     { return netip.AddrFrom4([4]byte(h[16:20])) }
func (h IPv4Header) fragWord() uint16    { return binary.BigEndian.Uint16(h[6:8]) }
func (h IPv4Header) DontFragment() bool  { return h.fragWord()&ipv4DontFragment != 0 }
func (h IPv4Header) MoreFragments() bool { return h.fragWord()&ipv4MoreFragments != 0 }
func (h IPv4Header) FragmentOffset() int { return int(h.fragWord()&ipv4OffsetMask) * 8 }
func (h IPv4Header) Protocol() layers.IPProtocol {
	return layers.IPProtocol(h[9])
}

// IsFragment reports whether the datagram is one piece of a larger one.
func (h IPv4Header) IsFragment() bool {
	return h.fragWord()&(ipv4MoreFragments|ipv4OffsetMask) != 0
}

// ICMPHeader is a view of the 8-byte ICMP header.
type ICMPHeader []byte

func (h ICMPHeader) Type() uint8      { return h[0] }
func (h ICMPHeader) Code() uint8      { return h[1] }
func (h ICMPHeader) Checksum() uint16 { return binary.BigEndian.Uint16(h[2:4]) }
func (h ICMPHeader) Rest() uint32     { return binary.BigEndian.Uint32(h[4:8]) }

// TCPHeader is a view of a TCP header, options included.
type TCPHeader []byte

func (h TCPHeader) SrcPort() uint16  { return binary.BigEndian.Uint16(h[0:2]) }
func (h TCPHeader) DstPort() uint16  { return binary.BigEndian.Uint16(h[2:4]) }
func (h TCPHeader) Seq() uint32      { return binary.BigEndian.Uint32(h[4:8]) }
func (h TCPHeader) Ack() uint32      { return binary.BigEndian.Uint32(h[8:12]) }
func (h TCPHeader) DataOffset() int  { return int(h[12] >> 4) }
func (h TCPHeader) HeaderLen() int   { return h.DataOffset() * 4 }
func (h TCPHeader) Flags() uint8     { return h[13] }
func (h TCPHeader) Window() uint16   { return binary.BigEndian.Uint16(h[14:16]) }
func (h TCPHeader) Checksum() uint16 { return binary.BigEndian.Uint16(h[16:18]) }

// TCP flag bits.
const (
	TCPFin = 0x01
	TCPSyn = 0x02
	TCPRst = 0x04
	TCPPsh = 0x08
	TCPAck = 0x10
	TCPUrg = 0x20
)

// UDPHeader is a view of the 8-byte UDP header.
type UDPHeader []byte

func (h UDPHeader) SrcPort() uint16  { return binary.BigEndian.Uint16(h[0:2]) }
func (h UDPHeader) DstPort() uint16  { return binary.BigEndian.Uint16(h[2:4]) }
func (h UDPHeader) Length() uint16   { return binary.BigEndian.Uint16(h[4:6]) }
func (h UDPHeader) Checksum() uint16 { return binary.BigEndian.Uint16(h[6:8]) }

// ESPHeader is a view of the ESP SPI and sequence number.
type ESPHeader []byte

func (h ESPHeader) SPI() uint32 { return binary.BigEndian.Uint32(h[0:4]) }
func (h ESPHeader) Seq() uint32 { return binary.BigEndian.Uint32(h[4:8]) }

// AHHeader is a view of an IPsec Authentication Header.
type AHHeader []byte

func (h AHHeader) NextHeader() layers.IPProtocol { return layers.IPProtocol(h[0]) }

// PayloadLen is the raw length field: header length in 32-bit words minus 2.
func (h AHHeader) PayloadLen() uint8 { return h[1] }
func (h AHHeader) HeaderLen() int    { return (int(h[1]) + 2) * 4 }
func (h AHHeader) SPI() uint32       { return binary.BigEndian.Uint32(h[4:8]) }
func (h AHHeader) Seq() uint32       { return binary.BigEndian.Uint32(h[8:12]) }

// EthernetHeader is a view of an Ethernet II MAC header.
type EthernetHeader []byte

func (h EthernetHeader) Dst() net.HardwareAddr { return net.HardwareAddr(h[0:6]) }
func (h EthernetHeader) Src() net.HardwareAddr { return net.HardwareAddr(h[6:12]) }
func (h EthernetHeader) EtherType() layers.EthernetType {
	return layers.EthernetType(binary.BigEndian.Uint16(h[12:14]))
}
