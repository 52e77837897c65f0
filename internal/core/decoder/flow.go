package decoder

import (
	"fmt"
	"slices"

	"firestige.xyz/firestorm/internal/core"
)

// Subsystem is cross-packet state whose lifetime brackets packet processing,
// such as a fragment or connection table.
type Subsystem interface {
	Name() string
	Start() error
	Stop()
}

// TrackFunc is called right after a layer of the tracked protocol is
// recorded, with the handle of that layer.
type TrackFunc func(r *Registry, p *Packet, h Handle)

// FlowTracker hooks a protocol's layers into cross-packet state.
type FlowTracker struct {
	Proto *Protocol
	Track TrackFunc
	// Subsystem, when set, is started by Activate and stopped by Shutdown.
	Subsystem Subsystem
}

// collectSubsystems lists subsystems in start order: decoder subsystems in
// decoder order, then tracker subsystems in registration order. Each
// instance appears once.
func (r *Registry) collectSubsystems() []Subsystem {
	var subs []Subsystem
	add := func(s Subsystem) {
		if s != nil && !slices.Contains(subs, s) {
			subs = append(subs, s)
		}
	}
	for _, d := range r.decoders {
		add(d.Flow)
	}
	for _, ft := range r.trackers {
		add(ft.Subsystem)
	}
	return subs
}

// Subsystems returns the flow subsystems in start order.
func (r *Registry) Subsystems() []Subsystem {
	return slices.Clone(r.subsystems)
}

// Activate starts every flow subsystem in order. If one fails, those already
// started are stopped in reverse order before the error is returned.
func (r *Registry) Activate() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.started > 0 {
		return nil
	}
	for i, s := range r.subsystems {
		if err := s.Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				r.subsystems[j].Stop()
			}
			return fmt.Errorf("%w: %s: %w", core.ErrSubsystemStart, s.Name(), err)
		}
		r.log.WithField("subsystem", s.Name()).Debug("flow subsystem started")
	}
	r.started = len(r.subsystems)
	r.stopped = false
	return nil
}

// Shutdown stops the started subsystems in reverse start order. Calling it
// again is a no-op.
func (r *Registry) Shutdown() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.stopped {
		return
	}
	for i := r.started - 1; i >= 0; i-- {
		r.subsystems[i].Stop()
		r.log.WithField("subsystem", r.subsystems[i].Name()).Debug("flow subsystem stopped")
	}
	r.started = 0
	r.stopped = true
}
