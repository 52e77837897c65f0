// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is a captured frame as handed over by a capture source.
type RawPacket struct {
	Data       []byte    // Captured bytes
	Timestamp  time.Time // Capture timestamp
	CaptureLen uint32    // Bytes actually captured
	OrigLen    uint32    // Length of the frame on the wire
}
