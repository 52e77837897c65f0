package pipeline

import (
	"sync/atomic"
)

// Stats counts packets through one pipeline.
type Stats struct {
	Received   atomic.Uint64
	Filtered   atomic.Uint64
	Decoded    atomic.Uint64
	Reported   atomic.Uint64
	SinkErrors atomic.Uint64
}

// Reset resets all counters to zero.
func (s *Stats) Reset() {
	s.Received.Store(0)
	s.Filtered.Store(0)
	s.Decoded.Store(0)
	s.Reported.Store(0)
	s.SinkErrors.Store(0)
}
