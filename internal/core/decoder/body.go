package decoder

// Body is the protocol-specific part of a DCB. The set of bodies is closed:
// only this package defines them.
type Body interface {
	// Header references the layer's own header bytes.
	Header() Ref
	isBody()
}

// DCB sizes charged against the arena. A block header covers the protocol
// link, the next link and the arena position; each header reference adds a
// fixed amount.
const (
	dcbHeaderSize = 32
	refSize       = 16

	EthernetDCBSize = dcbHeaderSize + 2*refSize
	IPDCBSize       = dcbHeaderSize + 2*refSize
	FragDCBSize     = dcbHeaderSize + 1*refSize
	ICMPDCBSize     = dcbHeaderSize + 4*refSize
	TCPDCBSize      = dcbHeaderSize + 3*refSize
	UDPDCBSize      = dcbHeaderSize + 3*refSize
	ESPDCBSize      = dcbHeaderSize + 3*refSize
)

// EthernetBody describes an Ethernet II frame header and its 802.1Q tags.
type EthernetBody struct {
	Hdr  Ref // 14-byte MAC header
	Tags Ref // VLAN tags following it, null when untagged
}

// IPBody is shared by the ipv4, ipraw and iptunnel layers.
type IPBody struct {
	IP Ref
	AH Ref // enclosing AH header, null when not under AH
}

// FragBody describes one IPv4 fragment.
type FragBody struct {
	IP Ref
}

// ICMPBody describes an ICMP message and, for error messages, the embedded
// IP header when it validated.
type ICMPBody struct {
	IP    Ref
	AH    Ref
	Hdr   Ref
	Inner Ref
}

// TCPBody describes a TCP header including options.
type TCPBody struct {
	IP  Ref
	AH  Ref
	Hdr Ref
}

// UDPBody describes a UDP header.
type UDPBody struct {
	IP  Ref
	AH  Ref
	Hdr Ref
}

// ESPBody describes an ESP header; the payload is opaque.
type ESPBody struct {
	IP  Ref
	AH  Ref
	Hdr Ref
}

func (b EthernetBody) Header() Ref { return b.Hdr }
func (b IPBody) Header() Ref       { return b.IP }
func (b FragBody) Header() Ref     { return b.IP }
func (b ICMPBody) Header() Ref     { return b.Hdr }
func (b TCPBody) Header() Ref      { return b.Hdr }
func (b UDPBody) Header() Ref      { return b.Hdr }
func (b ESPBody) Header() Ref      { return b.Hdr }

func (EthernetBody) isBody() {}
func (IPBody) isBody()       {}
func (FragBody) isBody()     {}
func (ICMPBody) isBody()     {}
func (TCPBody) isBody()      {}
func (UDPBody) isBody()      {}
func (ESPBody) isBody()      {}
