package pcap

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/firestorm/internal/core"
)

func writeCapture(t *testing.T, ng bool, link layers.LinkType, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if ng {
		w, err := pcapgo.NewNgWriter(f, link)
		require.NoError(t, err)
		for i, frame := range frames {
			ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Second), CaptureLength: len(frame), Length: len(frame)}
			require.NoError(t, w.WritePacket(ci, frame))
		}
		require.NoError(t, w.Flush())
		return path
	}

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, link))
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Second), CaptureLength: len(frame), Length: len(frame) + 10}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return path
}

func TestSource_ReadsFrames(t *testing.T) {
	path := writeCapture(t, false, layers.LinkTypeEthernet, []byte{1, 2, 3}, []byte{4, 5})

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "capture.pcap", s.Name())
	ns, id := s.LinkType()
	assert.Equal(t, core.NSDLT, ns)
	assert.Equal(t, core.DLTEthernet, id)

	pkt, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, pkt.Data)
	assert.Equal(t, uint32(3), pkt.CaptureLen)
	assert.Equal(t, uint32(13), pkt.OrigLen)
	assert.Equal(t, 2024, pkt.Timestamp.Year())

	pkt, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, pkt.Data)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSource_PcapNG(t *testing.T) {
	path := writeCapture(t, true, layers.LinkTypeRaw, []byte{0x45, 0, 0, 20})

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, id := s.LinkType()
	assert.Equal(t, core.LinkTypeRaw, id)

	pkt, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x45, 0, 0, 20}, pkt.Data)
}

func TestSource_Closed(t *testing.T) {
	s, err := Open(writeCapture(t, false, layers.LinkTypeEthernet))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Next()
	assert.ErrorIs(t, err, core.ErrSourceClosed)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)

	bogus := filepath.Join(t.TempDir(), "bogus.pcap")
	require.NoError(t, os.WriteFile(bogus, []byte("not a capture file at all"), 0o644))
	_, err = Open(bogus)
	assert.Error(t, err)
}
