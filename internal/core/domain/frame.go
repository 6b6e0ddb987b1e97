package domain

import (
	"encoding/binary"
	"errors"
	"math"
)

// Relay frames are opaque to the server: they are fanned out byte-for-byte
// without inspection. The layout below documents the wire contract between
// the two browser endpoints and backs the codec used by tests and tooling.
//
// Encoded-frame format (little-endian):
//
//	byte 0      frame type (0 = delta, 1 = key)
//	bytes 1-8   presentation timestamp, float64 microseconds
//	bytes 9-12  duration, uint32 microseconds
//	bytes 13-   encoded payload
//
// Fallback image format: byte 0 is 0xFF, followed by a complete still image.
const (
	FrameTypeDelta byte = 0
	FrameTypeKey   byte = 1

	FallbackImageSentinel byte = 0xFF

	FrameHeaderSize = 13
)

var ErrShortFrame = errors.New("frame shorter than header")

type FrameHeader struct {
	Type        byte
	TimestampUS float64
	DurationUS  uint32
}

// MarshalFrame prepends the header to the payload.
func MarshalFrame(h FrameHeader, payload []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(payload))
	buf[0] = h.Type
	binary.LittleEndian.PutUint64(buf[1:9], math.Float64bits(h.TimestampUS))
	binary.LittleEndian.PutUint32(buf[9:13], h.DurationUS)
	copy(buf[FrameHeaderSize:], payload)
	return buf
}

// UnmarshalFrame splits a binary frame into its header and payload.
func UnmarshalFrame(data []byte) (FrameHeader, []byte, error) {
	if len(data) < FrameHeaderSize {
		return FrameHeader{}, nil, ErrShortFrame
	}
	h := FrameHeader{
		Type:        data[0],
		TimestampUS: math.Float64frombits(binary.LittleEndian.Uint64(data[1:9])),
		DurationUS:  binary.LittleEndian.Uint32(data[9:13]),
	}
	return h, data[FrameHeaderSize:], nil
}

// IsFallbackImage reports whether the frame carries a still image rather than
// an encoded video frame.
func IsFallbackImage(data []byte) bool {
	return len(data) > 0 && data[0] == FallbackImageSentinel
}
