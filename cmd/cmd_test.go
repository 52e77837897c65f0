package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/firestorm/internal/config"
	"firestige.xyz/firestorm/internal/engine"
)

func udpFrame(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	udp := &layers.UDP{SrcPort: 5060, DstPort: 5060}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload("INVITE")))
	return buf.Bytes()
}

func writeTrace(t *testing.T, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, data := range frames {
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestRunValidate_Defaults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runValidate("", &buf))
	assert.Contains(t, buf.String(), "VALID")
	assert.Contains(t, buf.String(), "min_layers=8")
	assert.Contains(t, buf.String(), "sink=console")
}

func TestRunValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := "firestorm:\n  log:\n    level: verbose\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	var buf bytes.Buffer
	err := runValidate(path, &buf)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
	assert.Empty(t, buf.String())
}

func TestRunProtocols(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	eng, err := engine.New(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	runProtocols(eng.Registry, &buf)
	out := buf.String()

	assert.Contains(t, out, "Decoders (2):")
	assert.Contains(t, out, "ethernet")
	assert.Contains(t, out, "ipfrag")
	assert.Contains(t, out, "tcp        dcb=80 [tracked]")
	assert.Contains(t, out, "Arena: 8 layer(s) x 96 bytes")
	assert.Contains(t, out, "-> ipv4")
	assert.Contains(t, out, "(0x0800) -> ipv4")
}

func TestRunDecode_ConsoleJSON(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	path := writeTrace(t, udpFrame(t), udpFrame(t))

	var buf bytes.Buffer
	require.NoError(t, runDecode(context.Background(), cfg, []string{path}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, `"source":"trace.pcap"`)
		assert.Contains(t, line, `"protocol":"udp"`)
		assert.Contains(t, line, `"dport":5060`)
	}
}

func TestRunDecode_MissingFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	var buf bytes.Buffer
	err = runDecode(context.Background(), cfg, []string{filepath.Join(t.TempDir(), "absent.pcap")}, &buf)
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestRunDecode_Cancelled(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	path := writeTrace(t, udpFrame(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	assert.NoError(t, runDecode(ctx, cfg, []string{path}, &buf))
	assert.Empty(t, buf.String())
}
