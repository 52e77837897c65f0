package decoder

import (
	"firestige.xyz/firestorm/internal/core"
)

// IPv4 is the IPv4 decoder together with every layer it can record. Each
// engine builds its own instance so registries never share protocols.
type IPv4 struct {
	Decoder *Decoder

	Root      *Protocol // ipv4: every non-fragmented datagram
	Frag      *Protocol // ipfrag
	Raw       *Protocol // ipraw: protocols without a sub-decoder
	Tunnel    *Protocol // iptunnel: IP-in-IP
	ICMP      *Protocol
	IGMP      *Protocol
	SCTP      *Protocol
	DCCP      *Protocol
	TCP       *Protocol
	TCPStream *Protocol // reserved for stream reassembly output
	UDP       *Protocol
	ESP       *Protocol
}

// NewIPv4 returns an IPv4 decoder ready to Install.
func NewIPv4() *IPv4 {
	ip := &IPv4{
		Root:      &Protocol{Label: "ipv4", DCBSize: IPDCBSize},
		Frag:      &Protocol{Label: "ipfrag", DCBSize: FragDCBSize},
		Raw:       &Protocol{Label: "ipraw", DCBSize: IPDCBSize},
		Tunnel:    &Protocol{Label: "iptunnel", DCBSize: IPDCBSize},
		ICMP:      &Protocol{Label: "icmp", DCBSize: ICMPDCBSize},
		IGMP:      &Protocol{Label: "igmp"},
		SCTP:      &Protocol{Label: "sctp"},
		DCCP:      &Protocol{Label: "dccp"},
		TCP:       &Protocol{Label: "tcp", DCBSize: TCPDCBSize},
		TCPStream: &Protocol{Label: "tcpstream", DCBSize: TCPDCBSize},
		UDP:       &Protocol{Label: "udp", DCBSize: UDPDCBSize},
		ESP:       &Protocol{Label: "esp", DCBSize: ESPDCBSize},
	}
	ip.Decoder = &Decoder{Label: "IPv4", Decode: ip.decode}
	return ip
}

// Protocols lists the layers in catalog order.
func (ip *IPv4) Protocols() []*Protocol {
	return []*Protocol{
		ip.Root, ip.Frag, ip.Tunnel, ip.Raw, ip.ICMP, ip.IGMP, ip.SCTP,
		ip.DCCP, ip.TCP, ip.TCPStream, ip.UDP, ip.ESP,
	}
}

// Install adds the decoder and its protocols to b and registers it for
// ethertype 0x0800, the PF_INET socket family and the raw-IP link types.
func (ip *IPv4) Install(b *Builder) error {
	if err := b.AddDecoder(ip.Decoder); err != nil {
		return err
	}
	regs := []struct {
		ns core.Namespace
		id core.ProtoID
	}{
		{core.NSEther, core.EtherTypeIPv4},
		{core.NSUnixPF, core.PFInet},
		{core.NSDLT, core.DLTRaw},
		{core.NSDLT, core.LinkTypeRaw},
	}
	for _, reg := range regs {
		if err := b.Register(ip.Decoder, reg.ns, reg.id); err != nil {
			return err
		}
	}
	for _, p := range ip.Protocols() {
		if err := b.AddProtocol(ip.Decoder, p); err != nil {
			return err
		}
	}
	return nil
}

// decode parses the IPv4 header at the cursor. Every check is a hard gate:
// a failure leaves the path without further layers. Once the header is
// accepted the cursor always ends at the datagram end, whatever the
// sub-decoders did.
func (ip *IPv4) decode(r *Registry, p *Packet) {
	start := p.Cursor()
	if !p.Has(IPv4HeaderLen) {
		r.abort("ipv4", "short_header", "ipv4: short header at %d", start)
		return
	}

	hdr := IPv4Header(p.Data[start : start+IPv4HeaderLen])
	if hdr.IHL() < 5 {
		r.abort("ipv4", "header_length", "ipv4: header length %d < %d", hdr.HeaderLen(), IPv4HeaderLen)
		return
	}
	if hdr.Version() != 4 {
		r.abort("ipv4", "version", "ipv4: bad version %d != 4", hdr.Version())
		return
	}

	hlen := hdr.HeaderLen()
	if !p.Has(hlen) {
		r.abort("ipv4", "short_header", "ipv4: options truncated at %d", start)
		return
	}
	total := hdr.TotalLen()
	if total < hlen || start+total > p.End() {
		r.abort("ipv4", "truncated", "ipv4: truncated IP packet")
		return
	}

	hdr = IPv4Header(p.Data[start : start+hlen])
	if Checksum(hdr) != 0 {
		r.abort("ipv4", "checksum", "ipv4: bad checksum")
		return
	}

	iph := Ref{Off: start, Len: hlen}
	dgramEnd := start + total
	p.Advance(hlen)

	if hdr.IsFragment() {
		r.Layer(p, ip.Frag, FragBody{IP: iph})
		p.Seek(dgramEnd)
		return
	}

	prev := p.narrow(dgramEnd)
	if _, ok := r.Layer(p, ip.Root, IPBody{IP: iph}); ok {
		ip.demux(r, p, hdr.Protocol(), iph, Ref{})
	}
	p.restore(prev)
	p.Seek(dgramEnd)
}
