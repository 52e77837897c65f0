package decoder

import (
	"iter"

	"firestige.xyz/firestorm/internal/core"
)

// Handle identifies a DCB in a packet's layer stack. Handles stay valid for
// the whole decode of a packet, including across arena growth.
type Handle int

// NoLayer is the absent handle.
const NoLayer Handle = -1

// Ref locates a header inside the packet buffer. The zero Ref is the null
// reference.
type Ref struct {
	Off int
	Len int
}

// Valid reports whether r references any bytes.
func (r Ref) Valid() bool { return r.Len > 0 }

// End returns the offset just past the referenced bytes.
func (r Ref) End() int { return r.Off + r.Len }

// Source is the capture source a packet came from.
type Source interface {
	Name() string
	// LinkType names the root decoder for the source's frames.
	LinkType() (core.Namespace, core.ProtoID)
}

// Packet is the per-packet decode state: the captured bytes, a cursor that
// moves forward as headers are consumed, the current end bound and the DCB
// arena.
type Packet struct {
	core.RawPacket

	cursor int
	end    int
	arena  arena
}

// NewPacket wraps raw for decoding. The arena is sized by Registry.Decode.
func NewPacket(raw core.RawPacket) *Packet {
	return &Packet{RawPacket: raw, end: len(raw.Data)}
}

// Reset loads a new captured frame, dropping all recorded layers. The arena
// keeps any growth requested earlier.
func (p *Packet) Reset(raw core.RawPacket) {
	p.RawPacket = raw
	p.reset()
}

func (p *Packet) reset() {
	p.cursor = 0
	p.end = len(p.Data)
	p.arena.reset()
}

// Cursor returns the offset of the next unparsed byte.
func (p *Packet) Cursor() int { return p.cursor }

// End returns the current end bound; decoders never read at or past it.
func (p *Packet) End() int { return p.end }

// Has reports whether n more bytes are available at the cursor.
func (p *Packet) Has(n int) bool {
	return n >= 0 && p.cursor+n <= p.end
}

// Advance moves the cursor n bytes forward. It fails without moving when
// that would pass the end bound.
func (p *Packet) Advance(n int) bool {
	if !p.Has(n) {
		return false
	}
	p.cursor += n
	return true
}

// Seek repositions the cursor, clamped to the end bound.
func (p *Packet) Seek(off int) {
	switch {
	case off < 0:
		off = 0
	case off > p.end:
		off = p.end
	}
	p.cursor = off
}

// narrow lowers the end bound to end and returns the previous bound.
func (p *Packet) narrow(end int) int {
	prev := p.end
	if end < p.end {
		p.end = end
	}
	return prev
}

func (p *Packet) restore(end int) { p.end = end }

// Bytes returns the bytes r references, or nil for the null reference.
func (p *Packet) Bytes(r Ref) []byte {
	if !r.Valid() || r.Off < 0 || r.End() > len(p.Data) {
		return nil
	}
	return p.Data[r.Off:r.End():r.End()]
}

// rest returns the bytes between the cursor and the end bound.
func (p *Packet) rest() []byte {
	return p.Data[p.cursor:p.end:p.end]
}

// Count returns the number of recorded layers.
func (p *Packet) Count() int { return len(p.arena.layers) }

// DCB returns the layer for h. It panics on a handle not issued for this packet.
func (p *Packet) DCB(h Handle) DCB { return p.arena.layers[h] }

// Layers iterates the recorded layers from the outermost, following each
// block's Next link.
func (p *Packet) Layers() iter.Seq2[Handle, DCB] {
	return func(yield func(Handle, DCB) bool) {
		for h := Handle(0); int(h) < len(p.arena.layers); {
			dcb := p.arena.layers[h]
			if !yield(h, dcb) {
				return
			}
			h = dcb.Next
		}
	}
}

// Find returns the first layer recorded for the protocol labelled label.
func (p *Packet) Find(label string) (Handle, bool) {
	for h, dcb := range p.Layers() {
		if dcb.Proto.Label == label {
			return h, true
		}
	}
	return NoLayer, false
}

// Labels lists the protocol labels of the recorded layers in order.
func (p *Packet) Labels() []string {
	labels := make([]string, 0, p.Count())
	for _, dcb := range p.Layers() {
		labels = append(labels, dcb.Proto.Label)
	}
	return labels
}
