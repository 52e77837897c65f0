package flowtrack

import (
	"net/netip"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/firestorm/internal/core/decoder"
	"firestige.xyz/firestorm/internal/log"
	"firestige.xyz/firestorm/internal/metrics"
)

// ConnState is the coarse lifecycle of a tracked TCP connection.
type ConnState string

const (
	StateSynSent     ConnState = "syn_sent"
	StateEstablished ConnState = "established"
	StateClosing     ConnState = "closing"
)

// Conn is the bookkeeping kept for one TCP connection. Client is the side
// that sent the first packet seen, or the SYN sender when the handshake was
// captured.
type Conn struct {
	Client, Server netip.AddrPort
	State          ConnState
	Packets        uint64
	Bytes          uint64 // TCP payload bytes, both directions
	FirstSeen      time.Time
	LastSeen       time.Time

	clientFin bool
	serverFin bool
}

// Streams tracks TCP connections by their unordered address/port pair.
// Connections are dropped on RST, after FIN from both sides, or when idle
// past the timeout.
type Streams struct {
	timeout time.Duration
	purge   time.Duration // janitor interval; 0 disables it
	log     log.Logger

	mu    sync.Mutex
	table *cache.Cache
}

// NewStreams returns a stopped TCP tracker.
func NewStreams(timeout time.Duration) *Streams {
	if timeout <= 0 {
		timeout = DefaultTCPTimeout
	}
	return &Streams{
		timeout: timeout,
		purge:   timeout / 2,
		log:     log.GetLogger().WithField("subsystem", "tcpflow"),
	}
}

// Tracker returns the flow tracker for the tcp protocol.
func (s *Streams) Tracker(proto *decoder.Protocol) *decoder.FlowTracker {
	return &decoder.FlowTracker{Proto: proto, Track: s.track, Subsystem: s}
}

func (s *Streams) Name() string { return "tcpflow" }

// Start creates the connection table.
func (s *Streams) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := cache.New(s.timeout, s.purge)
	table.OnEvicted(func(string, interface{}) {
		metrics.FlowTCPActive.Dec()
	})
	s.table = table
	return nil
}

// Stop drops every tracked connection.
func (s *Streams) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return
	}
	metrics.FlowTCPActive.Sub(float64(s.table.ItemCount()))
	s.table.Flush()
	s.table = nil
}

// Len returns the number of tracked connections.
func (s *Streams) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return 0
	}
	return s.table.ItemCount()
}

// Lookup returns a copy of the connection between a and b, in either
// direction.
func (s *Streams) Lookup(a, b netip.AddrPort) (Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return Conn{}, false
	}
	v, ok := s.table.Get(connKey(a, b))
	if !ok {
		return Conn{}, false
	}
	return *v.(*Conn), true
}

func connKey(a, b netip.AddrPort) string {
	if a.Compare(b) > 0 {
		a, b = b, a
	}
	return a.String() + "|" + b.String()
}

func (s *Streams) track(r *decoder.Registry, p *decoder.Packet, h decoder.Handle) {
	body, ok := p.DCB(h).Body.(decoder.TCPBody)
	if !ok {
		return
	}
	iph := decoder.IPv4Header(p.Bytes(body.IP))
	tcph := decoder.TCPHeader(p.Bytes(body.Hdr))
	src := netip.AddrPortFrom(iph.Src(), tcph.SrcPort())
	dst := netip.AddrPortFrom(iph.Dst(), tcph.DstPort())
	flags := tcph.Flags()
	now := packetTime(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return
	}

	key := connKey(src, dst)
	var c *Conn
	v, found := s.table.Get(key)
	if found {
		c = v.(*Conn)
	} else {
		// see Fragments.track
		s.table.Delete(key)
		if flags&decoder.TCPRst != 0 {
			return
		}
		c = &Conn{Client: src, Server: dst, State: StateEstablished, FirstSeen: now}
		if flags&(decoder.TCPSyn|decoder.TCPAck) == decoder.TCPSyn {
			c.State = StateSynSent
		}
	}

	c.Packets++
	if payload := iph.TotalLen() - iph.HeaderLen() - body.AH.Len - tcph.HeaderLen(); payload > 0 {
		c.Bytes += uint64(payload)
	}
	c.LastSeen = now

	fromClient := src == c.Client
	switch {
	case flags&decoder.TCPRst != 0:
		s.drop(key, c, "reset")
		return
	case flags&decoder.TCPFin != 0:
		if fromClient {
			c.clientFin = true
		} else {
			c.serverFin = true
		}
		c.State = StateClosing
	case c.State == StateSynSent && !fromClient && flags&decoder.TCPAck != 0:
		c.State = StateEstablished
	}

	if c.clientFin && c.serverFin {
		s.drop(key, c, "closed")
		return
	}
	if !found {
		metrics.FlowTCPActive.Inc()
	}
	s.table.SetDefault(key, c)
}

// drop removes a finished connection. Called with s.mu held.
func (s *Streams) drop(key string, c *Conn, why string) {
	if _, ok := s.table.Get(key); ok {
		s.table.Delete(key)
	}
	if s.log.IsDebugEnabled() {
		s.log.Debugf("tcp %s <-> %s %s after %d packets", c.Client, c.Server, why, c.Packets)
	}
}
