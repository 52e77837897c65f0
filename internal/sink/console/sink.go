// Package console writes decoded packet summaries to a stream as JSON lines
// or YAML documents.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"firestige.xyz/firestorm/internal/core/decoder"
)

const Name = "console"

type encoder interface {
	Encode(v any) error
}

// Sink encodes each summary onto its writer.
type Sink struct {
	mu   sync.Mutex
	enc  encoder
	yaml *yaml.Encoder
}

// New returns a sink writing format ("json" or "yaml") to w.
func New(w io.Writer, format string) (*Sink, error) {
	switch format {
	case "json", "":
		return &Sink{enc: json.NewEncoder(w)}, nil
	case "yaml":
		ye := yaml.NewEncoder(w)
		ye.SetIndent(2)
		return &Sink{enc: ye, yaml: ye}, nil
	default:
		return nil, fmt.Errorf("unsupported console format: %s", format)
	}
}

func (s *Sink) Name() string { return Name }

// Send writes one summary.
func (s *Sink) Send(_ context.Context, sum decoder.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(sum)
}

// Close flushes a pending YAML document end.
func (s *Sink) Close() error {
	if s.yaml != nil {
		return s.yaml.Close()
	}
	return nil
}
