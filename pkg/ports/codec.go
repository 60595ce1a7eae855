package ports

import (
	"github.com/user/screencast/pkg/yuv420"
)

// Codec abstracts one video codec session. A session is not safe for
// concurrent or re-entrant use; all calls must come from a single
// goroutine.
type Codec interface {
	// Encode submits one planar image for duration timebase ticks starting
	// at pts. Codecs buffer internally, so any call may return zero or
	// more compressed packets.
	Encode(img *yuv420.Image, pts, duration int64) ([]Packet, error)

	// Flush drains the codec's internal backlog. An empty result means
	// nothing is pending and draining is complete.
	Flush(pts int64) ([]Packet, error)

	// FourCC returns the codec identifier tag for the container header.
	FourCC() uint32

	// Close releases the codec session.
	Close() error
}

// Packet is one compressed frame emitted by a codec.
type Packet struct {
	Data     []byte
	PTS      int64 // Presentation timestamp in timebase units
	Duration int64 // Display duration in timebase units
	Keyframe bool
}
