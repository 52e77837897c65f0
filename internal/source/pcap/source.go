// Package pcap reads captured frames from pcap and pcapng files.
package pcap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/firestorm/internal/core"
)

// pcapng section header block type, as it appears at the start of a file
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source is a capture file opened for sequential reading.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
}

// Open opens a classic pcap or pcapng file.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(len(ngMagic))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture file %s: %w", path, err)
	}

	var r packetReader
	if bytes.Equal(magic, ngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse capture file %s: %w", path, err)
	}

	return &Source{path: path, file: f, reader: r}, nil
}

// Name is the capture file's base name.
func (s *Source) Name() string {
	return filepath.Base(s.path)
}

// LinkType maps the file's link type into the DLT namespace.
func (s *Source) LinkType() (core.Namespace, core.ProtoID) {
	return core.NSDLT, core.ProtoID(s.reader.LinkType())
}

// Next returns the next frame, or io.EOF at the end of the file.
func (s *Source) Next() (core.RawPacket, error) {
	if s.file == nil {
		return core.RawPacket{}, core.ErrSourceClosed
	}
	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, fmt.Errorf("failed to read packet from %s: %w", s.path, err)
	}
	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

// Close releases the file. Further calls to Next fail with core.ErrSourceClosed.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
