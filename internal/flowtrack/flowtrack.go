// Package flowtrack keeps per-flow bookkeeping for IPv4 fragments and TCP
// connections. It hooks into the decoder through flow trackers; neither
// fragment reassembly nor stream reassembly is performed.
package flowtrack

import (
	"time"

	"firestige.xyz/firestorm/internal/config"
	"firestige.xyz/firestorm/internal/core/decoder"
)

// Default table expiry, shared with the configuration defaults.
const (
	DefaultFragmentTimeout = config.DefaultFragmentTimeout
	DefaultTCPTimeout      = config.DefaultTCPTimeout
)

// Install attaches the fragment and TCP trackers to ip's protocols.
func Install(b *decoder.Builder, ip *decoder.IPv4, frags *Fragments, streams *Streams) error {
	if err := b.AddFlowTracker(frags.Tracker(ip.Frag)); err != nil {
		return err
	}
	return b.AddFlowTracker(streams.Tracker(ip.TCP))
}

// packetTime is the capture timestamp, or the wall clock for packets that
// carry none.
func packetTime(p *decoder.Packet) time.Time {
	if p.Timestamp.IsZero() {
		return time.Now()
	}
	return p.Timestamp
}
