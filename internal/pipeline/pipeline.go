// Package pipeline drives capture sources through the decoder registry and
// hands layer summaries to a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/bpf"

	"firestige.xyz/firestorm/internal/core"
	"firestige.xyz/firestorm/internal/core/decoder"
	"firestige.xyz/firestorm/internal/log"
	"firestige.xyz/firestorm/internal/metrics"
)

// Source is a capture source the pipeline can drain.
type Source interface {
	decoder.Source
	// Next returns the next captured frame; io.EOF ends the source.
	Next() (core.RawPacket, error)
	Close() error
}

// Sink receives one summary per decoded packet.
type Sink interface {
	Name() string
	Send(ctx context.Context, s decoder.Summary) error
	Close() error
}

// Pipeline is a single-threaded decode loop. Sources are drained one after
// another; a packet is fully decoded and reported before the next is read.
type Pipeline struct {
	reg    *decoder.Registry
	filter *bpf.VM
	sink   Sink
	stats  *Stats
	log    log.Logger
}

// Run drains every source in order, closing each when done. Cancellation
// is checked between packets.
func (p *Pipeline) Run(ctx context.Context, sources ...Source) error {
	for _, src := range sources {
		err := p.drain(ctx, src)
		if cerr := src.Close(); cerr != nil {
			p.log.WithError(cerr).WithField("source", src.Name()).Warn("close source failed")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) drain(ctx context.Context, src Source) error {
	name := src.Name()
	logger := p.log.WithField("source", name)
	logger.Info("source started")

	pkt := p.reg.NewPacket(core.RawPacket{})
	var n uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			logger.WithField("packets", n).Info("source drained")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		n++
		p.stats.Received.Add(1)

		if !p.accept(raw.Data) {
			p.stats.Filtered.Add(1)
			metrics.PipelineFilteredTotal.WithLabelValues(name).Inc()
			continue
		}

		pkt.Reset(raw)
		p.reg.Decode(src, pkt)
		p.stats.Decoded.Add(1)

		if err := p.sink.Send(ctx, decoder.Summarize(name, pkt)); err != nil {
			p.stats.SinkErrors.Add(1)
			metrics.PipelineSinkErrorsTotal.WithLabelValues(p.sink.Name()).Inc()
			logger.WithError(err).Error("sink send failed")
			continue
		}
		p.stats.Reported.Add(1)
	}
}

// accept runs the filter program; no program accepts everything.
func (p *Pipeline) accept(frame []byte) bool {
	if p.filter == nil {
		return true
	}
	n, err := p.filter.Run(frame)
	if err != nil {
		p.log.WithError(err).Debug("filter failed")
		return false
	}
	return n > 0
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// Close closes the sink.
func (p *Pipeline) Close() error {
	return p.sink.Close()
}
