package decoder

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/firestorm/internal/metrics"
)

func ahPacket(t *testing.T, ahs ...[]byte) []byte {
	t.Helper()
	ip := newIPv4Layer(layers.IPProtocolAH)
	tcp := &layers.TCP{SrcPort: 500, DstPort: 500, SYN: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	ls := []gopacket.SerializableLayer{ip}
	for _, ah := range ahs {
		ls = append(ls, gopacket.Payload(ah))
	}
	return serialize(t, append(ls, tcp)...)
}

func TestAH_DemuxesNextHeader(t *testing.T) {
	h := newHarness(t)
	data := ahPacket(t, ahHeader(layers.IPProtocolTCP))
	p := h.decode(rawIP, data)

	require.Equal(t, []string{"ipv4", "tcp"}, p.Labels())
	body := p.DCB(1).Body.(TCPBody)
	assert.Equal(t, Ref{Off: 20, Len: 24}, body.AH)
	assert.Equal(t, Ref{Off: 44, Len: 20}, body.Hdr)
	assert.Equal(t, uint32(0x1001), AHHeader(p.Bytes(body.AH)).SPI())
	assert.Equal(t, len(data), p.Cursor())
	assert.Zero(t, h.warnings())
}

func TestAH_NestingGuard(t *testing.T) {
	h := newHarness(t)
	before := testutil.ToFloat64(metrics.DecodeAbortsTotal.WithLabelValues("ah", "nested"))

	data := ahPacket(t, ahHeader(layers.IPProtocolAH), ahHeader(layers.IPProtocolTCP))
	p := h.decode(rawIP, data)

	assert.Equal(t, []string{"ipv4"}, p.Labels())
	require.Equal(t, 1, h.warnings())
	assert.Equal(t, "ipv4(ah): nesting AH", h.hook.LastEntry().Message)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DecodeAbortsTotal.WithLabelValues("ah", "nested")))
	assert.Equal(t, len(data), p.Cursor())
}

func TestAH_HeaderLength(t *testing.T) {
	h := newHarness(t)
	ah := ahHeader(layers.IPProtocolTCP)
	ah[1] = 0

	p := h.decode(rawIP, ahPacket(t, ah))
	assert.Equal(t, []string{"ipv4"}, p.Labels())
	require.Equal(t, 1, h.warnings())
	assert.Equal(t, "ipv4(ah): header length 8 < 12", h.hook.LastEntry().Message)
}

func TestAH_Truncated(t *testing.T) {
	h := newHarness(t)
	data := serialize(t, newIPv4Layer(layers.IPProtocolAH), gopacket.Payload(ahHeader(layers.IPProtocolTCP)[:16]))

	p := h.decode(rawIP, data)
	assert.Equal(t, []string{"ipv4"}, p.Labels())
	require.Equal(t, 1, h.warnings())
	assert.Equal(t, "ipv4(ah): truncated AH packet", h.hook.LastEntry().Message)
}

func TestAH_ShortFixedHeader(t *testing.T) {
	h := newHarness(t)
	before := testutil.ToFloat64(metrics.DecodeAbortsTotal.WithLabelValues("ah", "short_header"))
	data := serialize(t, newIPv4Layer(layers.IPProtocolAH), gopacket.Payload(ahHeader(layers.IPProtocolTCP)[:8]))

	p := h.decode(rawIP, data)
	assert.Equal(t, []string{"ipv4"}, p.Labels())
	require.Equal(t, 1, h.warnings())
	assert.Equal(t, "ipv4(ah): short header at 20", h.hook.LastEntry().Message)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DecodeAbortsTotal.WithLabelValues("ah", "short_header")))
}

func TestAH_RawPayloadKeepsAHReference(t *testing.T) {
	h := newHarness(t)
	data := serialize(t, newIPv4Layer(layers.IPProtocolAH),
		gopacket.Payload(ahHeader(layers.IPProtocolGRE)), gopacket.Payload(make([]byte, 8)))

	p := h.decode(rawIP, data)
	require.Equal(t, []string{"ipv4", "ipraw"}, p.Labels())
	assert.Equal(t, Ref{Off: 20, Len: 24}, p.DCB(1).Body.(IPBody).AH)
}

// tunnelPacket nests a TCP segment in depth IP-in-IP encapsulations.
func tunnelPacket(t *testing.T, depth int) []byte {
	t.Helper()
	var ls []gopacket.SerializableLayer
	for i := 0; i < depth; i++ {
		ls = append(ls, newIPv4Layer(layers.IPProtocolIPv4))
	}
	inner := newIPv4Layer(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 1, DstPort: 2, SYN: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(inner))
	return serialize(t, append(ls, inner, tcp)...)
}

func count(labels []string, label string) int {
	n := 0
	for _, l := range labels {
		if l == label {
			n++
		}
	}
	return n
}

func TestTunnel_WithinBudget(t *testing.T) {
	h := newHarness(t)
	data := tunnelPacket(t, 2)
	p := h.decode(rawIP, data)

	assert.Equal(t, []string{"ipv4", "iptunnel", "ipv4", "iptunnel", "ipv4", "tcp"}, p.Labels())
	assert.Equal(t, len(data), p.Cursor())

	// the innermost datagram starts after two outer headers
	tcpBody := p.DCB(5).Body.(TCPBody)
	assert.Equal(t, Ref{Off: 40, Len: 20}, tcpBody.IP)
	assert.Equal(t, Ref{Off: 60, Len: 20}, tcpBody.Hdr)
}

func TestTunnel_BoundedByArena(t *testing.T) {
	h := newHarness(t)
	// each level costs an ipv4 and an iptunnel block
	k := h.r.MinLayers() * h.r.MaxDCBSize() / (2 * IPDCBSize)
	require.Equal(t, 6, k)

	before := testutil.ToFloat64(metrics.DecodeArenaExhaustedTotal.WithLabelValues("ipv4"))
	data := tunnelPacket(t, k+3)
	p := h.decode(rawIP, data)

	labels := p.Labels()
	assert.Equal(t, k, count(labels, "iptunnel"))
	assert.Equal(t, 0, count(labels, "tcp"))
	assert.LessOrEqual(t, p.Top(), p.Limit())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DecodeArenaExhaustedTotal.WithLabelValues("ipv4")))
	assert.Equal(t, len(data), p.Cursor())
}

func TestTunnel_DeeperWithMoreLayers(t *testing.T) {
	h := newHarness(t, WithMinLayers(16))
	data := tunnelPacket(t, 10)
	p := h.decode(rawIP, data)

	labels := p.Labels()
	assert.Equal(t, 10, count(labels, "iptunnel"))
	assert.Equal(t, 1, count(labels, "tcp"))
}

func icmpPacket(t *testing.T, typ uint8, payload []byte) []byte {
	t.Helper()
	return serialize(t, newIPv4Layer(layers.IPProtocolICMPv4),
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(typ, 1)},
		gopacket.Payload(payload))
}

func TestICMP_InnerHeader(t *testing.T) {
	h := newHarness(t)
	quoted := udpPacket(t, []byte("x"))[:28]

	for _, typ := range []uint8{
		layers.ICMPv4TypeDestinationUnreachable,
		layers.ICMPv4TypeTimeExceeded,
		layers.ICMPv4TypeParameterProblem,
	} {
		data := icmpPacket(t, typ, quoted)
		p := h.decode(rawIP, data)

		require.Equal(t, []string{"ipv4", "icmp"}, p.Labels())
		body := p.DCB(1).Body.(ICMPBody)
		assert.Equal(t, Ref{Off: 20, Len: 8}, body.Hdr)
		assert.Equal(t, Ref{Off: 28, Len: 20}, body.Inner, "type %d", typ)
		assert.Equal(t, Ref{Off: 0, Len: 20}, body.IP)
		assert.Equal(t, typ, ICMPHeader(p.Bytes(body.Hdr)).Type())
		assert.Equal(t, len(data), p.Cursor())
	}
}

func TestICMP_TruncatedInnerHeader(t *testing.T) {
	h := newHarness(t)
	quoted := udpPacket(t, nil)[:12]
	p := h.decode(rawIP, icmpPacket(t, layers.ICMPv4TypeDestinationUnreachable, quoted))

	require.Equal(t, []string{"ipv4", "icmp"}, p.Labels())
	assert.False(t, p.DCB(1).Body.(ICMPBody).Inner.Valid())
	// a short quoted header does not stop the icmp layer
	assert.Zero(t, h.warnings())
}

func TestICMP_BadInnerHeader(t *testing.T) {
	h := newHarness(t)

	badVersion := udpPacket(t, nil)[:28]
	badVersion[0] = 0x65
	p := h.decode(rawIP, icmpPacket(t, layers.ICMPv4TypeTimeExceeded, badVersion))
	require.Equal(t, []string{"ipv4", "icmp"}, p.Labels())
	assert.False(t, p.DCB(1).Body.(ICMPBody).Inner.Valid())
	assert.Equal(t, 1, h.warnings())

	badSum := udpPacket(t, nil)[:28]
	badSum[8]--
	p = h.decode(rawIP, icmpPacket(t, layers.ICMPv4TypeTimeExceeded, badSum))
	require.Equal(t, []string{"ipv4", "icmp"}, p.Labels())
	assert.False(t, p.DCB(1).Body.(ICMPBody).Inner.Valid())
}

func TestICMP_EchoHasNoInnerHeader(t *testing.T) {
	h := newHarness(t)
	quoted := udpPacket(t, nil)[:28]
	p := h.decode(rawIP, icmpPacket(t, layers.ICMPv4TypeEchoRequest, quoted))

	require.Equal(t, []string{"ipv4", "icmp"}, p.Labels())
	assert.False(t, p.DCB(1).Body.(ICMPBody).Inner.Valid())
}

func TestTCP_DataOffsetTooSmall(t *testing.T) {
	h := newHarness(t)
	data := tcpPacket(t, nil)
	data[32] = 0x40

	p := h.decode(rawIP, data)
	assert.Equal(t, []string{"ipv4"}, p.Labels())
	require.Equal(t, 1, h.warnings())
	assert.Equal(t, "tcp: header length 16 < 20", h.hook.LastEntry().Message)
}

func TestTCP_Options(t *testing.T) {
	h := newHarness(t)
	ip := newIPv4Layer(layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: 1, DstPort: 2, SYN: true,
		Options: []layers.TCPOption{
			{OptionType: layers.TCPOptionKindMSS, OptionLength: 4, OptionData: []byte{0x05, 0xb4}},
		},
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	data := serialize(t, ip, tcp)

	p := h.decode(rawIP, data)
	require.Equal(t, []string{"ipv4", "tcp"}, p.Labels())
	assert.Equal(t, Ref{Off: 20, Len: 24}, p.DCB(1).Body.(TCPBody).Hdr)
}
