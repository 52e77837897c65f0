// Package config handles configuration structures.
package config

import (
	"fmt"

	"firestige.xyz/firestorm/internal/core"
)

// PipelineConfig configures the packet pipeline driver.
type PipelineConfig struct {
	// Filter is a classic BPF program (tcpdump -dd output) run against each
	// captured frame before decode. Empty accepts everything.
	Filter []BPFInstruction `mapstructure:"filter"`
	// FilterExpr is a tcpdump expression compiled for Ethernet frames.
	// Mutually exclusive with Filter.
	FilterExpr string     `mapstructure:"filter_expr"`
	Sink       SinkConfig `mapstructure:"sink"`
}

// BPFInstruction is one raw cBPF instruction.
type BPFInstruction struct {
	Op uint16 `mapstructure:"op"`
	Jt uint8  `mapstructure:"jt"`
	Jf uint8  `mapstructure:"jf"`
	K  uint32 `mapstructure:"k"`
}

// SinkConfig selects where decoded layer summaries go.
type SinkConfig struct {
	Type    string         `mapstructure:"type"`   // console | kafka
	Format  string         `mapstructure:"format"` // console only: json | yaml
	Options map[string]any `mapstructure:"options"`
}

// Validate validates pipeline configuration.
func (pc *PipelineConfig) Validate() error {
	if pc.FilterExpr != "" && len(pc.Filter) > 0 {
		return fmt.Errorf("%w: pipeline.filter and pipeline.filter_expr are mutually exclusive", core.ErrConfigInvalid)
	}
	switch pc.Sink.Type {
	case "console":
		if pc.Sink.Format != "json" && pc.Sink.Format != "yaml" {
			return fmt.Errorf("%w: invalid console sink format: %s (must be json/yaml)", core.ErrConfigInvalid, pc.Sink.Format)
		}
	case "kafka":
		if pc.Sink.Options == nil {
			return fmt.Errorf("%w: kafka sink requires options", core.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported sink type: %s (must be console/kafka)", core.ErrConfigInvalid, pc.Sink.Type)
	}
	return nil
}
