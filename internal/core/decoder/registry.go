package decoder

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"firestige.xyz/firestorm/internal/core"
	"firestige.xyz/firestorm/internal/log"
	"firestige.xyz/firestorm/internal/metrics"
)

// Entry maps a protocol id within a namespace to its decoder.
type Entry struct {
	ID      core.ProtoID
	Decoder *Decoder
}

// Builder collects decoders, namespace registrations, protocols and flow
// trackers during configuration. Build freezes them into a Registry.
type Builder struct {
	decoders []*Decoder
	entries  [core.NumNamespaces][]Entry
	trackers []*FlowTracker
	built    bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddDecoder links d into the decoder list.
func (b *Builder) AddDecoder(d *Decoder) error {
	if b.built {
		return core.ErrRegistryBuilt
	}
	if slices.Contains(b.decoders, d) {
		return fmt.Errorf("%w: %s", core.ErrDuplicateDecoder, d.Label)
	}
	b.decoders = append(b.decoders, d)
	return nil
}

// Register makes d the decoder for id within ns.
func (b *Builder) Register(d *Decoder, ns core.Namespace, id core.ProtoID) error {
	if b.built {
		return core.ErrRegistryBuilt
	}
	if !ns.Valid() {
		return fmt.Errorf("%w: %d", core.ErrBadNamespace, ns)
	}
	if !slices.Contains(b.decoders, d) {
		return fmt.Errorf("%w: %s", core.ErrUnknownDecoder, d.Label)
	}
	b.entries[ns] = append(b.entries[ns], Entry{ID: id, Decoder: d})
	return nil
}

// AddProtocol links p to decoder d.
func (b *Builder) AddProtocol(d *Decoder, p *Protocol) error {
	if b.built {
		return core.ErrRegistryBuilt
	}
	if !slices.Contains(b.decoders, d) {
		return fmt.Errorf("%w: %s", core.ErrUnknownDecoder, d.Label)
	}
	if p.owner != nil {
		return fmt.Errorf("%w: %s belongs to %s", core.ErrProtocolOwned, p.Label, p.owner.Label)
	}
	p.owner = d
	d.protos = append(d.protos, p)
	return nil
}

// AddFlowTracker attaches ft to its protocol.
func (b *Builder) AddFlowTracker(ft *FlowTracker) error {
	if b.built {
		return core.ErrRegistryBuilt
	}
	if ft.Proto == nil || ft.Proto.owner == nil {
		return core.ErrUnknownProtocol
	}
	b.trackers = append(b.trackers, ft)
	return nil
}

// Option configures a Registry at Build time.
type Option func(*Registry)

// WithLogger sets the logger decoders report through.
func WithLogger(l log.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithMinLayers sets the layer depth every packet arena is sized for.
func WithMinLayers(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.minLayers = n
		}
	}
}

// Build validates and freezes the registrations. Namespace entries are
// sorted by id; a repeated id within a namespace is an error. The Builder
// cannot be used afterwards.
func (b *Builder) Build(opts ...Option) (*Registry, error) {
	if b.built {
		return nil, core.ErrRegistryBuilt
	}

	r := &Registry{
		decoders:  slices.Clone(b.decoders),
		trackers:  slices.Clone(b.trackers),
		minLayers: DefaultMinLayers,
		log:       log.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for ns := range b.entries {
		entries := slices.Clone(b.entries[ns])
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
		for i := 1; i < len(entries); i++ {
			if entries[i].ID == entries[i-1].ID {
				return nil, fmt.Errorf("%w: %s id %#x (%s, %s)", core.ErrDuplicateID,
					core.Namespace(ns), entries[i].ID, entries[i-1].Decoder.Label, entries[i].Decoder.Label)
			}
		}
		r.ns[ns] = entries
	}

	for _, d := range r.decoders {
		for _, p := range d.protos {
			if p.DCBSize > r.maxDCB {
				r.maxDCB = p.DCBSize
			}
			p.recorded = metrics.DecodeLayersTotal.WithLabelValues(p.Label)
			p.exhausted = metrics.DecodeArenaExhaustedTotal.WithLabelValues(p.Label)
		}
	}

	for _, ft := range r.trackers {
		ft.Proto.trackers = append(ft.Proto.trackers, ft)
	}
	r.subsystems = r.collectSubsystems()

	b.built = true
	return r, nil
}

// Registry is the frozen, read-only view of all registrations. It is safe
// to share; decoding itself is single-threaded per packet.
type Registry struct {
	decoders   []*Decoder
	ns         [core.NumNamespaces][]Entry
	trackers   []*FlowTracker
	subsystems []Subsystem

	maxDCB    int
	minLayers int
	log       log.Logger

	lifecycle sync.Mutex
	started   int
	stopped   bool
}

// Lookup returns the decoder registered for id within ns. Absence is a
// normal outcome.
func (r *Registry) Lookup(ns core.Namespace, id core.ProtoID) (*Decoder, bool) {
	if !ns.Valid() {
		return nil, false
	}
	entries := r.ns[ns]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].ID >= id })
	if i < len(entries) && entries[i].ID == id {
		return entries[i].Decoder, true
	}
	return nil, false
}

// Entries returns the sorted registrations of ns.
func (r *Registry) Entries(ns core.Namespace) []Entry {
	if !ns.Valid() {
		return nil
	}
	return slices.Clone(r.ns[ns])
}

// Decoders returns all decoders in the order they were added.
func (r *Registry) Decoders() []*Decoder {
	return slices.Clone(r.decoders)
}

// MaxDCBSize is the largest DCB size declared by any protocol.
func (r *Registry) MaxDCBSize() int {
	return r.maxDCB
}

// MinLayers is the layer depth packet arenas are sized for by default.
func (r *Registry) MinLayers() int {
	return r.minLayers
}

// Namespaces lists the namespaces that have at least one registration.
func (r *Registry) Namespaces() []core.Namespace {
	var out []core.Namespace
	for ns := range r.ns {
		if len(r.ns[ns]) > 0 {
			out = append(out, core.Namespace(ns))
		}
	}
	return out
}
