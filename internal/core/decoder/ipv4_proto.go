package decoder

import (
	"github.com/google/gopacket/layers"
)

// subProto is the closed set of IP payload handlers.
type subProto uint8

const (
	protoRaw subProto = iota
	protoICMP
	protoTunnel
	protoTCP
	protoUDP
	protoESP
	protoAH
)

// ipProtoMap maps every IP protocol number to its handler. Numbers not
// listed, IGMP, DCCP and SCTP among them, fall to protoRaw.
var ipProtoMap = func() (m [256]subProto) {
	m[layers.IPProtocolICMPv4] = protoICMP
	m[layers.IPProtocolIPv4] = protoTunnel
	m[layers.IPProtocolTCP] = protoTCP
	m[layers.IPProtocolUDP] = protoUDP
	m[layers.IPProtocolESP] = protoESP
	m[layers.IPProtocolAH] = protoAH
	return m
}()

// demux runs the handler for proto. ah references the enclosing AH header,
// or is null outside AH.
func (ip *IPv4) demux(r *Registry, p *Packet, proto layers.IPProtocol, iph, ah Ref) {
	switch ipProtoMap[proto] {
	case protoRaw:
		ip.raw(r, p, proto, iph, ah)
	case protoICMP:
		ip.icmp(r, p, iph, ah)
	case protoTunnel:
		ip.tunnel(r, p, iph, ah)
	case protoTCP:
		ip.tcp(r, p, iph, ah)
	case protoUDP:
		ip.udp(r, p, iph, ah)
	case protoESP:
		ip.esp(r, p, iph, ah)
	case protoAH:
		ip.ah(r, p, iph, ah)
	}
}

func (ip *IPv4) raw(r *Registry, p *Packet, proto layers.IPProtocol, iph, ah Ref) {
	r.Layer(p, ip.Raw, IPBody{IP: iph, AH: ah})
	r.trace("ipv4: unknown protocol %d", proto)
}

// tunnel records the outer header and decodes the encapsulated datagram.
// Nesting depth is bounded by the arena.
func (ip *IPv4) tunnel(r *Registry, p *Packet, iph, ah Ref) {
	if _, ok := r.Layer(p, ip.Tunnel, IPBody{IP: iph, AH: ah}); !ok {
		return
	}
	r.trace("ipv4: tunnel")
	ip.decode(r, p)
}

func (ip *IPv4) icmp(r *Registry, p *Packet, iph, ah Ref) {
	start := p.Cursor()
	if !p.Advance(ICMPHeaderLen) {
		r.abort("icmp", "short_header", "icmp: short header at %d", start)
		return
	}
	hdr := ICMPHeader(p.Data[start : start+ICMPHeaderLen])
	r.trace("icmp: type=%d code=%d", hdr.Type(), hdr.Code())

	var inner Ref
	switch hdr.Type() {
	case layers.ICMPv4TypeDestinationUnreachable,
		layers.ICMPv4TypeTimeExceeded,
		layers.ICMPv4TypeParameterProblem:
		inner = ip.icmpInner(r, p)
	}

	r.Layer(p, ip.ICMP, ICMPBody{
		IP:    iph,
		AH:    ah,
		Hdr:   Ref{Off: start, Len: ICMPHeaderLen},
		Inner: inner,
	})
}

// icmpInner validates the IP header quoted by an ICMP error. Failure is not
// fatal to the ICMP layer; the null Ref is returned instead.
func (ip *IPv4) icmpInner(r *Registry, p *Packet) Ref {
	start := p.Cursor()
	if !p.Has(IPv4HeaderLen) {
		return Ref{}
	}
	hdr := IPv4Header(p.Data[start : start+IPv4HeaderLen])
	if hdr.Version() != 4 || hdr.IHL() < 5 {
		r.log.Warn("icmp: bad ip header in payload")
		return Ref{}
	}
	hlen := hdr.HeaderLen()
	if !p.Has(hlen) {
		return Ref{}
	}
	if Checksum(p.Data[start:start+hlen]) != 0 {
		r.trace("icmp: bad ip checksum in payload")
		return Ref{}
	}
	p.Advance(hlen)
	return Ref{Off: start, Len: hlen}
}

func (ip *IPv4) tcp(r *Registry, p *Packet, iph, ah Ref) {
	start := p.Cursor()
	if !p.Has(TCPHeaderLen) {
		r.abort("tcp", "short_header", "tcp: short header at %d", start)
		return
	}
	hdr := TCPHeader(p.Data[start : start+TCPHeaderLen])
	if hdr.DataOffset() < 5 {
		r.abort("tcp", "header_length", "tcp: header length %d < %d", hdr.HeaderLen(), TCPHeaderLen)
		return
	}
	hlen := hdr.HeaderLen()
	if !p.Advance(hlen) {
		r.abort("tcp", "short_header", "tcp: options truncated at %d", start)
		return
	}
	r.trace("tcp: %d -> %d", hdr.SrcPort(), hdr.DstPort())
	r.Layer(p, ip.TCP, TCPBody{IP: iph, AH: ah, Hdr: Ref{Off: start, Len: hlen}})
}

func (ip *IPv4) udp(r *Registry, p *Packet, iph, ah Ref) {
	start := p.Cursor()
	if !p.Advance(UDPHeaderLen) {
		r.abort("udp", "short_header", "udp: short header at %d", start)
		return
	}
	hdr := UDPHeader(p.Data[start : start+UDPHeaderLen])
	r.trace("udp: %d -> %d", hdr.SrcPort(), hdr.DstPort())
	r.Layer(p, ip.UDP, UDPBody{IP: iph, AH: ah, Hdr: Ref{Off: start, Len: UDPHeaderLen}})
}

// esp records the ESP header. The payload is encrypted, so nothing follows.
func (ip *IPv4) esp(r *Registry, p *Packet, iph, ah Ref) {
	start := p.Cursor()
	if !p.Advance(ESPHeaderLen) {
		r.abort("esp", "short_header", "esp: short header at %d", start)
		return
	}
	r.trace("esp: spi=%#08x", ESPHeader(p.Data[start:start+ESPHeaderLen]).SPI())
	r.Layer(p, ip.ESP, ESPBody{IP: iph, AH: ah, Hdr: Ref{Off: start, Len: ESPHeaderLen}})
}

// ah skips an Authentication Header and demuxes what it protects. Only one
// level of AH is accepted.
func (ip *IPv4) ah(r *Registry, p *Packet, iph, outer Ref) {
	if outer.Valid() {
		r.abort("ah", "nested", "ipv4(ah): nesting AH")
		return
	}
	start := p.Cursor()
	if !p.Has(AHHeaderLen) {
		r.abort("ah", "short_header", "ipv4(ah): short header at %d", start)
		return
	}
	hdr := AHHeader(p.Data[start : start+AHHeaderLen])
	if hdr.PayloadLen() < 1 {
		r.abort("ah", "header_length", "ipv4(ah): header length %d < %d", hdr.HeaderLen(), AHHeaderLen)
		return
	}
	hlen := hdr.HeaderLen()
	if !p.Advance(hlen) {
		r.abort("ah", "truncated", "ipv4(ah): truncated AH packet")
		return
	}
	r.trace("ah: spi=%#08x", hdr.SPI())
	ip.demux(r, p, hdr.NextHeader(), iph, Ref{Off: start, Len: hlen})
}
