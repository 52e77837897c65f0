package pipeline

import (
	"fmt"
	"io"

	"golang.org/x/net/bpf"

	"firestige.xyz/firestorm/internal/config"
	"firestige.xyz/firestorm/internal/core/decoder"
	"firestige.xyz/firestorm/internal/log"
	"firestige.xyz/firestorm/internal/sink/console"
	"firestige.xyz/firestorm/internal/sink/kafka"
)

// Builder provides a fluent interface for assembling a Pipeline.
type Builder struct {
	reg    *decoder.Registry
	filter []bpf.RawInstruction
	sink   Sink
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithRegistry sets the decoder registry.
func (b *Builder) WithRegistry(r *decoder.Registry) *Builder {
	b.reg = r
	return b
}

// WithFilter sets a classic BPF program run on each frame before decode.
func (b *Builder) WithFilter(prog []bpf.RawInstruction) *Builder {
	b.filter = prog
	return b
}

// WithSink sets the summary sink.
func (b *Builder) WithSink(s Sink) *Builder {
	b.sink = s
	return b
}

// Build validates the parts and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.reg == nil {
		return nil, fmt.Errorf("pipeline requires a decoder registry")
	}
	if b.sink == nil {
		return nil, fmt.Errorf("pipeline requires a sink")
	}

	p := &Pipeline{
		reg:   b.reg,
		sink:  b.sink,
		stats: &Stats{},
		log:   log.GetLogger().WithField("component", "pipeline"),
	}
	if len(b.filter) > 0 {
		insns, ok := bpf.Disassemble(b.filter)
		if !ok {
			return nil, fmt.Errorf("filter contains instructions that cannot be decoded")
		}
		vm, err := bpf.NewVM(insns)
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		p.filter = vm
	}
	return p, nil
}

// FilterProgram converts configured instructions to raw BPF.
func FilterProgram(insns []config.BPFInstruction) []bpf.RawInstruction {
	raw := make([]bpf.RawInstruction, len(insns))
	for i, ins := range insns {
		raw[i] = bpf.RawInstruction{Op: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return raw
}

// NewSink builds the sink cfg selects. Console output goes to stdout.
func NewSink(cfg config.SinkConfig, stdout io.Writer) (Sink, error) {
	switch cfg.Type {
	case console.Name:
		s, err := console.New(stdout, cfg.Format)
		if err != nil {
			return nil, err
		}
		return s, nil
	case kafka.Name:
		s, err := kafka.New(cfg.Options)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", cfg.Type)
	}
}

// FromConfig assembles a pipeline from the pipeline config section.
func FromConfig(reg *decoder.Registry, cfg config.PipelineConfig, stdout io.Writer) (*Pipeline, error) {
	sink, err := NewSink(cfg.Sink, stdout)
	if err != nil {
		return nil, err
	}
	prog := FilterProgram(cfg.Filter)
	if cfg.FilterExpr != "" {
		if prog, err = CompileFilter(cfg.FilterExpr, DefaultSnapLen); err != nil {
			sink.Close()
			return nil, err
		}
	}
	p, err := NewBuilder().
		WithRegistry(reg).
		WithFilter(prog).
		WithSink(sink).
		Build()
	if err != nil {
		sink.Close()
		return nil, err
	}
	return p, nil
}
