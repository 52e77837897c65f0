package decoder

import (
	"encoding/binary"

	"github.com/google/gopacket/layers"

	"firestige.xyz/firestorm/internal/core"
)

// Ethernet is the Ethernet II root decoder for DLT_EN10MB captures.
type Ethernet struct {
	Decoder *Decoder
	Proto   *Protocol
}

// NewEthernet returns an Ethernet decoder ready to Install.
func NewEthernet() *Ethernet {
	e := &Ethernet{
		Proto: &Protocol{Label: "ethernet", DCBSize: EthernetDCBSize},
	}
	e.Decoder = &Decoder{Label: "Ethernet", Decode: e.decode}
	return e
}

// Install adds the decoder under link type EN10MB.
func (e *Ethernet) Install(b *Builder) error {
	if err := b.AddDecoder(e.Decoder); err != nil {
		return err
	}
	if err := b.Register(e.Decoder, core.NSDLT, core.DLTEthernet); err != nil {
		return err
	}
	return b.AddProtocol(e.Decoder, e.Proto)
}

// decode records the MAC header plus any 802.1Q/802.1ad tags and hands the
// payload to the decoder for the innermost ethertype.
func (e *Ethernet) decode(r *Registry, p *Packet) {
	start := p.Cursor()
	if !p.Advance(EthernetHeaderLen) {
		r.abort("ethernet", "short_header", "ethernet: short frame at %d", start)
		return
	}

	etherType := EthernetHeader(p.Data[start : start+EthernetHeaderLen]).EtherType()
	tags := p.Cursor()
	for etherType == layers.EthernetTypeDot1Q || etherType == layers.EthernetTypeQinQ {
		off := p.Cursor()
		if !p.Advance(VLANTagLen) {
			r.abort("ethernet", "truncated", "ethernet: truncated VLAN tag")
			return
		}
		// 2 bytes TCI, then the next ethertype
		etherType = layers.EthernetType(binary.BigEndian.Uint16(p.Data[off+2 : off+4]))
	}

	body := EthernetBody{Hdr: Ref{Off: start, Len: EthernetHeaderLen}}
	if n := p.Cursor() - tags; n > 0 {
		body.Tags = Ref{Off: tags, Len: n}
	}
	if _, ok := r.Layer(p, e.Proto, body); !ok {
		return
	}
	if !r.DecodeNext(p, core.NSEther, core.ProtoID(etherType)) {
		r.trace("ethernet: no decoder for ethertype %#04x", uint16(etherType))
	}
}

// VLANs returns the VLAN ids of the tags body references, outermost first.
func (p *Packet) VLANs(body EthernetBody) []uint16 {
	tags := p.Bytes(body.Tags)
	ids := make([]uint16, 0, len(tags)/VLANTagLen)
	for len(tags) >= VLANTagLen {
		ids = append(ids, binary.BigEndian.Uint16(tags[0:2])&0x0fff)
		tags = tags[VLANTagLen:]
	}
	return ids
}
