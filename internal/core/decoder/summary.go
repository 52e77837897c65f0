package decoder

import (
	"time"
)

// Summary is the sink-facing view of a decoded packet.
type Summary struct {
	Source     string         `json:"source" yaml:"source"`
	Timestamp  time.Time      `json:"timestamp" yaml:"timestamp"`
	CaptureLen int            `json:"caplen" yaml:"caplen"`
	Length     int            `json:"length" yaml:"length"`
	Layers     []LayerSummary `json:"layers" yaml:"layers"`
}

// LayerSummary describes one recorded layer.
type LayerSummary struct {
	Protocol string         `json:"protocol" yaml:"protocol"`
	Offset   int            `json:"offset" yaml:"offset"`
	Length   int            `json:"length" yaml:"length"`
	Fields   map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Summarize renders the layers recorded in p.
func Summarize(source string, p *Packet) Summary {
	s := Summary{
		Source:     source,
		Timestamp:  p.Timestamp,
		CaptureLen: len(p.Data),
		Length:     int(p.OrigLen),
		Layers:     make([]LayerSummary, 0, p.Count()),
	}
	if s.Length == 0 {
		s.Length = s.CaptureLen
	}
	for _, dcb := range p.Layers() {
		s.Layers = append(s.Layers, summarizeLayer(p, dcb))
	}
	return s
}

func summarizeLayer(p *Packet, dcb DCB) LayerSummary {
	hdr := dcb.Body.Header()
	ls := LayerSummary{
		Protocol: dcb.Proto.Label,
		Offset:   hdr.Off,
		Length:   hdr.Len,
	}

	switch b := dcb.Body.(type) {
	case EthernetBody:
		h := EthernetHeader(p.Bytes(b.Hdr))
		ls.Fields = map[string]any{
			"src":       h.Src().String(),
			"dst":       h.Dst().String(),
			"ethertype": uint16(h.EtherType()),
		}
		if b.Tags.Valid() {
			ls.Fields["vlans"] = p.VLANs(b)
		}
	case IPBody:
		ls.Fields = ipFields(IPv4Header(p.Bytes(b.IP)))
		ls.Fields["ah"] = b.AH.Valid()
	case FragBody:
		h := IPv4Header(p.Bytes(b.IP))
		ls.Fields = ipFields(h)
		ls.Fields["id"] = h.ID()
		ls.Fields["frag_offset"] = h.FragmentOffset()
		ls.Fields["more_fragments"] = h.MoreFragments()
	case ICMPBody:
		h := ICMPHeader(p.Bytes(b.Hdr))
		ls.Fields = map[string]any{
			"type": h.Type(),
			"code": h.Code(),
		}
		if b.Inner.Valid() {
			inner := IPv4Header(p.Bytes(b.Inner))
			ls.Fields["inner_src"] = inner.Src().String()
			ls.Fields["inner_dst"] = inner.Dst().String()
		}
	case TCPBody:
		h := TCPHeader(p.Bytes(b.Hdr))
		ls.Fields = map[string]any{
			"sport": h.SrcPort(),
			"dport": h.DstPort(),
			"seq":   h.Seq(),
			"flags": h.Flags(),
		}
	case UDPBody:
		h := UDPHeader(p.Bytes(b.Hdr))
		ls.Fields = map[string]any{
			"sport": h.SrcPort(),
			"dport": h.DstPort(),
		}
	case ESPBody:
		ls.Fields = map[string]any{
			"spi": ESPHeader(p.Bytes(b.Hdr)).SPI(),
		}
	}
	return ls
}

func ipFields(h IPv4Header) map[string]any {
	return map[string]any{
		"src":      h.Src().String(),
		"dst":      h.Dst().String(),
		"protocol": uint8(h.Protocol()),
		"ttl":      h.TTL(),
	}
}
