package decoder

import (
	"net"
	"slices"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"firestige.xyz/firestorm/internal/core"
	"firestige.xyz/firestorm/internal/log"
)

type testSource struct {
	name string
	ns   core.Namespace
	id   core.ProtoID
}

func (s testSource) Name() string                             { return s.name }
func (s testSource) LinkType() (core.Namespace, core.ProtoID) { return s.ns, s.id }

var (
	rawIP = testSource{name: "raw", ns: core.NSDLT, id: core.DLTRaw}
	ether = testSource{name: "eth", ns: core.NSDLT, id: core.DLTEthernet}

	testSrc = net.IPv4(192, 0, 2, 1).To4()
	testDst = net.IPv4(198, 51, 100, 7).To4()
)

type harness struct {
	r    *Registry
	ip   *IPv4
	eth  *Ethernet
	hook *test.Hook
}

// newHarness builds a registry with the Ethernet and IPv4 decoders and a
// logger whose entries can be inspected.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	h := &harness{ip: NewIPv4(), eth: NewEthernet(), hook: hook}

	b := NewBuilder()
	require.NoError(t, h.eth.Install(b))
	require.NoError(t, h.ip.Install(b))
	r, err := b.Build(append([]Option{WithLogger(log.NewLogrus(logger))}, opts...)...)
	require.NoError(t, err)
	h.r = r
	return h
}

func (h *harness) decode(src Source, data []byte) *Packet {
	p := h.r.NewPacket(core.RawPacket{Data: data})
	h.r.Decode(src, p)
	return p
}

func (h *harness) warnings() int {
	n := 0
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			n++
		}
	}
	return n
}

func newIPv4Layer(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x1234,
		Protocol: proto,
		SrcIP:    testSrc,
		DstIP:    testDst,
	}
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return slices.Clone(buf.Bytes())
}

func tcpPacket(t *testing.T, payload []byte) []byte {
	t.Helper()
	ip := newIPv4Layer(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 80, Seq: 1000, ACK: true, PSH: true, Window: 512}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ip, tcp, gopacket.Payload(payload))
}

func udpPacket(t *testing.T, payload []byte) []byte {
	t.Helper()
	ip := newIPv4Layer(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ip, udp, gopacket.Payload(payload))
}

// ahHeader returns an AH header with a 12-byte ICV: payload length 4,
// 24 bytes in total.
func ahHeader(next layers.IPProtocol) []byte {
	return []byte{
		byte(next), 4, 0, 0, // next header, payload len, reserved
		0x00, 0x00, 0x10, 0x01, // SPI
		0x00, 0x00, 0x00, 0x01, // sequence
		0xaa, 0xaa, 0xaa, 0xaa, 0xbb, 0xbb, 0xbb, 0xbb, 0xcc, 0xcc, 0xcc, 0xcc, // ICV
	}
}
