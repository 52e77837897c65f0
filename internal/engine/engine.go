// Package engine assembles the default decoder registry: Ethernet and IPv4
// decoders plus the fragment and TCP flow trackers.
package engine

import (
	"fmt"

	"firestige.xyz/firestorm/internal/config"
	"firestige.xyz/firestorm/internal/core/decoder"
	"firestige.xyz/firestorm/internal/flowtrack"
	"firestige.xyz/firestorm/internal/log"
)

// Engine holds the frozen registry together with the components wired into
// it, so callers can inspect flow state.
type Engine struct {
	Registry  *decoder.Registry
	Ethernet  *decoder.Ethernet
	IPv4      *decoder.IPv4
	Fragments *flowtrack.Fragments
	Streams   *flowtrack.Streams
}

// New builds the registry described by cfg. Subsystems are not started;
// call Start before decoding.
func New(cfg *config.GlobalConfig) (*Engine, error) {
	e := &Engine{
		Ethernet: decoder.NewEthernet(),
		IPv4:     decoder.NewIPv4(),
		Fragments: flowtrack.NewFragments(flowtrack.FragmentConfig{
			Timeout:         cfg.Flow.Fragments.Timeout,
			MaxFragsPerIP:   cfg.Flow.Fragments.MaxFragsPerIP,
			RateLimitWindow: cfg.Flow.Fragments.RateLimitWindow,
		}),
		Streams: flowtrack.NewStreams(cfg.Flow.TCP.Timeout),
	}

	b := decoder.NewBuilder()
	if err := e.Ethernet.Install(b); err != nil {
		return nil, fmt.Errorf("install ethernet decoder: %w", err)
	}
	if err := e.IPv4.Install(b); err != nil {
		return nil, fmt.Errorf("install ipv4 decoder: %w", err)
	}
	if err := flowtrack.Install(b, e.IPv4, e.Fragments, e.Streams); err != nil {
		return nil, fmt.Errorf("install flow trackers: %w", err)
	}

	reg, err := b.Build(
		decoder.WithLogger(log.GetLogger().WithField("component", "decoder")),
		decoder.WithMinLayers(cfg.Decoder.MinLayers),
	)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	e.Registry = reg
	return e, nil
}

// Start activates the flow subsystems.
func (e *Engine) Start() error {
	return e.Registry.Activate()
}

// Stop shuts the flow subsystems down.
func (e *Engine) Stop() {
	e.Registry.Shutdown()
}
