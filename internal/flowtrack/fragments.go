package flowtrack

import (
	"encoding/binary"
	"net/netip"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/firestorm/internal/core/decoder"
	"firestige.xyz/firestorm/internal/log"
	"firestige.xyz/firestorm/internal/metrics"
)

// FragmentConfig configures the fragment tracker.
type FragmentConfig struct {
	Timeout         time.Duration
	MaxFragsPerIP   int // 0 disables rate limiting
	RateLimitWindow time.Duration
}

// Datagram is the bookkeeping kept for one fragmented datagram.
type Datagram struct {
	Src, Dst  netip.Addr
	Protocol  uint8
	ID        uint16
	Fragments int
	Bytes     int  // payload bytes seen, overlaps counted twice
	Size      int  // full payload size, known once the last fragment arrives
	Final     bool // last fragment seen
	FirstSeen time.Time
	LastSeen  time.Time
}

// Complete reports whether enough payload has been seen to cover the whole
// datagram.
func (d *Datagram) Complete() bool {
	return d.Final && d.Bytes >= d.Size
}

// Fragments tracks fragmented IPv4 datagrams keyed by source, destination,
// protocol and IP id. Entries expire after the configured timeout.
type Fragments struct {
	cfg     FragmentConfig
	limiter *rateLimiter
	log     log.Logger
	purge   time.Duration // janitor interval; 0 disables it

	mu    sync.Mutex
	table *cache.Cache
}

// NewFragments returns a stopped fragment tracker.
func NewFragments(cfg FragmentConfig) *Fragments {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFragmentTimeout
	}
	return &Fragments{
		cfg:     cfg,
		limiter: newRateLimiter(cfg.MaxFragsPerIP, cfg.RateLimitWindow),
		log:     log.GetLogger().WithField("subsystem", "ipdefrag"),
		purge:   cfg.Timeout / 2,
	}
}

// Tracker returns the flow tracker for the ipfrag protocol.
func (f *Fragments) Tracker(proto *decoder.Protocol) *decoder.FlowTracker {
	return &decoder.FlowTracker{Proto: proto, Track: f.track, Subsystem: f}
}

func (f *Fragments) Name() string { return "ipdefrag" }

// Start creates the datagram table.
func (f *Fragments) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := cache.New(f.cfg.Timeout, f.purge)
	table.OnEvicted(func(string, interface{}) {
		metrics.FlowFragmentsActive.Dec()
	})
	f.table = table
	return nil
}

// Stop drops every tracked datagram.
func (f *Fragments) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.table == nil {
		return
	}
	metrics.FlowFragmentsActive.Sub(float64(f.table.ItemCount()))
	f.table.Flush()
	f.table = nil
}

// Len returns the number of datagrams in flight.
func (f *Fragments) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.table == nil {
		return 0
	}
	return f.table.ItemCount()
}

// Lookup returns a copy of the bookkeeping for a datagram.
func (f *Fragments) Lookup(src, dst netip.Addr, proto uint8, id uint16) (Datagram, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.table == nil {
		return Datagram{}, false
	}
	v, ok := f.table.Get(fragmentKey(src, dst, proto, id))
	if !ok {
		return Datagram{}, false
	}
	return *v.(*Datagram), true
}

func fragmentKey(src, dst netip.Addr, proto uint8, id uint16) string {
	var b [4 + 4 + 1 + 2]byte
	s, d := src.As4(), dst.As4()
	copy(b[0:4], s[:])
	copy(b[4:8], d[:])
	b[8] = proto
	binary.BigEndian.PutUint16(b[9:11], id)
	return string(b[:])
}

func (f *Fragments) track(r *decoder.Registry, p *decoder.Packet, h decoder.Handle) {
	body, ok := p.DCB(h).Body.(decoder.FragBody)
	if !ok {
		return
	}
	hdr := decoder.IPv4Header(p.Bytes(body.IP))
	now := packetTime(p)

	if f.limiter != nil && !f.limiter.allow(hdr.Src(), now) {
		if f.log.IsDebugEnabled() {
			f.log.Debugf("fragment rate limit exceeded for %s", hdr.Src())
		}
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.table == nil {
		return
	}

	proto := uint8(hdr.Protocol())
	key := fragmentKey(hdr.Src(), hdr.Dst(), proto, hdr.ID())
	var dg *Datagram
	v, found := f.table.Get(key)
	if found {
		dg = v.(*Datagram)
	} else {
		// purge an expired entry the janitor has not reached so that
		// OnEvicted balances the gauge before the key is reused
		f.table.Delete(key)
		dg = &Datagram{
			Src:       hdr.Src(),
			Dst:       hdr.Dst(),
			Protocol:  proto,
			ID:        hdr.ID(),
			FirstSeen: now,
		}
	}

	payload := hdr.TotalLen() - hdr.HeaderLen()
	dg.Fragments++
	dg.Bytes += payload
	dg.LastSeen = now
	if !hdr.MoreFragments() {
		dg.Final = true
		dg.Size = hdr.FragmentOffset() + payload
	}

	if dg.Complete() {
		if found {
			f.table.Delete(key)
		}
		if f.log.IsDebugEnabled() {
			f.log.Debugf("datagram %s -> %s id %d complete after %d fragments",
				dg.Src, dg.Dst, dg.ID, dg.Fragments)
		}
		return
	}
	if !found {
		metrics.FlowFragmentsActive.Inc()
	}
	f.table.SetDefault(key, dg)
}
