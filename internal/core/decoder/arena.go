package decoder

import "firestige.xyz/firestorm/internal/core"

// DefaultMinLayers is the layer depth every packet supports without Reserve.
const DefaultMinLayers = 8

// DCB is a decode control block: one recorded protocol layer.
type DCB struct {
	Proto *Protocol
	// Next is the slot following this block, set at allocation so completed
	// layers can be walked without a separate counter.
	Next Handle
	Body Body

	// Arena position in bytes.
	Off  int
	Size int
}

// arena bump-allocates DCBs against a byte budget. Blocks live in a slice and
// are addressed by index, so growth never invalidates a Handle.
type arena struct {
	layers []DCB
	top    int
	limit  int
}

func (a *arena) reset() {
	clear(a.layers)
	a.layers = a.layers[:0]
	a.top = 0
}

// grow raises the byte limit to at least limit and pre-sizes the layer list.
func (a *arena) grow(limit, layers int) {
	if limit > a.limit {
		a.limit = limit
	}
	if layers > cap(a.layers) {
		grown := make([]DCB, len(a.layers), layers)
		copy(grown, a.layers)
		a.layers = grown
	}
}

// alloc carves size bytes from the arena top. It fails with core.ErrNoRoom
// when the new top would pass the limit.
func (a *arena) alloc(proto *Protocol, size int, body Body) (Handle, error) {
	if a.top+size > a.limit {
		return NoLayer, core.ErrNoRoom
	}
	h := Handle(len(a.layers))
	a.layers = append(a.layers, DCB{
		Proto: proto,
		Next:  h + 1,
		Body:  body,
		Off:   a.top,
		Size:  size,
	})
	a.top += size
	return h, nil
}

// Top returns the arena bytes in use.
func (p *Packet) Top() int { return p.arena.top }

// Limit returns the arena byte budget.
func (p *Packet) Limit() int { return p.arena.limit }
