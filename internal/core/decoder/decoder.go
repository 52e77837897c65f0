// Package decoder implements the namespace-dispatched protocol decode engine:
// the decoder and protocol catalog, the per-packet DCB arena, flow tracker
// hooks and the built-in Ethernet and IPv4 decoders.
package decoder

import "github.com/prometheus/client_golang/prometheus"

// DecodeFunc parses the layer at the packet cursor. It records DCBs through
// r.Layer and hands off to the next layer through r.DecodeNext.
type DecodeFunc func(r *Registry, p *Packet)

// Decoder owns one decode entry point and the protocol layers it can produce.
type Decoder struct {
	Label  string
	Decode DecodeFunc
	// Flow is an optional subsystem started before any packet is decoded and
	// stopped at shutdown.
	Flow Subsystem

	protos []*Protocol
}

// Protocols returns the protocols added to d, in the order they were added.
func (d *Decoder) Protocols() []*Protocol {
	return d.protos
}

// Protocol is a layer a decoder can record.
type Protocol struct {
	Label string
	// DCBSize is the arena budget one layer of this protocol consumes.
	DCBSize int

	owner    *Decoder
	trackers []*FlowTracker

	recorded  prometheus.Counter
	exhausted prometheus.Counter
}

// Owner returns the decoder the protocol was added to.
func (p *Protocol) Owner() *Decoder {
	return p.owner
}

// Tracked reports whether any flow tracker is attached to p.
func (p *Protocol) Tracked() bool {
	return len(p.trackers) > 0
}
