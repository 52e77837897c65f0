package decoder

import (
	"fmt"
	"strconv"

	"firestige.xyz/firestorm/internal/core"
	"firestige.xyz/firestorm/internal/metrics"
)

// NewPacket wraps raw with an arena sized for the registry's layer budget.
func (r *Registry) NewPacket(raw core.RawPacket) *Packet {
	p := NewPacket(raw)
	r.Reserve(p, r.minLayers)
	return p
}

// Reserve grows p's arena so that at least minLayers layers of the largest
// known DCB fit. Handles already issued stay valid.
func (r *Registry) Reserve(p *Packet, minLayers int) {
	p.arena.grow(minLayers*r.maxDCB, minLayers)
}

// Decode runs one captured packet through the decoder chain, starting at
// the decoder registered for the source's link type. It never fails: the
// packet ends up with zero or more recorded layers.
func (r *Registry) Decode(src Source, p *Packet) {
	p.reset()
	r.Reserve(p, r.minLayers)
	ns, id := src.LinkType()
	metrics.DecodePacketsTotal.WithLabelValues(linkLabel(ns, id)).Inc()

	d, ok := r.Lookup(ns, id)
	if !ok {
		metrics.DecodeUnresolvedTotal.WithLabelValues(ns.String()).Inc()
		if r.log.IsDebugEnabled() {
			r.log.WithField("source", src.Name()).Debugf("decode: no decoder for %s id %#x", ns, id)
		}
		return
	}
	d.Decode(r, p)
}

// DecodeNext hands the packet to the decoder registered for id within ns,
// with cursor and arena as they are. It reports whether a decoder was found.
func (r *Registry) DecodeNext(p *Packet, ns core.Namespace, id core.ProtoID) bool {
	d, ok := r.Lookup(ns, id)
	if !ok {
		return false
	}
	d.Decode(r, p)
	return true
}

// Layer records a layer of proto with the given body, then runs the flow
// trackers attached to proto. When the arena is full it returns NoLayer and
// false; nothing is recorded.
func (r *Registry) Layer(p *Packet, proto *Protocol, body Body) (Handle, bool) {
	h, err := p.arena.alloc(proto, proto.DCBSize, body)
	if err != nil {
		if proto.exhausted != nil {
			proto.exhausted.Inc()
		}
		if r.log.IsDebugEnabled() {
			r.log.WithError(err).Debugf("%s: layer not recorded", proto.Label)
		}
		return NoLayer, false
	}
	if proto.recorded != nil {
		proto.recorded.Inc()
	}
	for _, ft := range proto.trackers {
		if ft.Track != nil {
			ft.Track(r, p, h)
		}
	}
	return h, true
}

// abort reports a structural problem that stops the current decode path.
// These warnings are always emitted.
func (r *Registry) abort(decoder, reason, format string, args ...any) {
	metrics.DecodeAbortsTotal.WithLabelValues(decoder, reason).Inc()
	r.log.WithField("reason", reason).Warn(fmt.Sprintf(format, args...))
}

// trace emits an informational message when debug logging is on.
func (r *Registry) trace(format string, args ...any) {
	if r.log.IsDebugEnabled() {
		r.log.Debugf(format, args...)
	}
}

func linkLabel(ns core.Namespace, id core.ProtoID) string {
	return ns.String() + "/" + strconv.FormatUint(uint64(id), 10)
}
