package ivf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FileInfo is the parsed IVF file header.
type FileInfo struct {
	FourCC     uint32
	Width      int
	Height     int
	Timebase   Timebase
	FrameCount uint32
}

// FourCCString renders the codec tag as four ASCII characters.
func (i FileInfo) FourCCString() string {
	return string([]byte{
		byte(i.FourCC),
		byte(i.FourCC >> 8),
		byte(i.FourCC >> 16),
		byte(i.FourCC >> 24),
	})
}

// Packet is one compressed packet read back from a recording.
type Packet struct {
	PTS  int64
	Data []byte
}

// Reader parses an IVF file sequentially.
type Reader struct {
	r    io.Reader
	Info FileInfo
}

// NewReader parses the file header from r. A frame count of zero can mean
// either an empty recording or one that was never finalized; a non-zero
// count is authoritative.
func NewReader(r io.Reader) (*Reader, error) {
	var h [HeaderSize]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	if string(h[0:4]) != signature {
		return nil, fmt.Errorf("not an IVF file (bad signature %q)", h[0:4])
	}
	if v := binary.LittleEndian.Uint16(h[4:6]); v != version {
		return nil, fmt.Errorf("unsupported IVF version %d", v)
	}
	if hs := binary.LittleEndian.Uint16(h[6:8]); hs != HeaderSize {
		return nil, fmt.Errorf("unexpected header size %d", hs)
	}

	return &Reader{
		r: r,
		Info: FileInfo{
			FourCC: binary.LittleEndian.Uint32(h[8:12]),
			Width:  int(binary.LittleEndian.Uint16(h[12:14])),
			Height: int(binary.LittleEndian.Uint16(h[14:16])),
			Timebase: Timebase{
				Den: binary.LittleEndian.Uint32(h[16:20]),
				Num: binary.LittleEndian.Uint32(h[20:24]),
			},
			FrameCount: binary.LittleEndian.Uint32(h[24:28]),
		},
	}, nil
}

// ReadPacket returns the next packet, or io.EOF after the last one.
func (r *Reader) ReadPacket() (*Packet, error) {
	var h [PacketHeaderSize]byte
	if _, err := io.ReadFull(r.r, h[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read packet header: %w", err)
	}

	size := binary.LittleEndian.Uint32(h[0:4])
	pts := int64(binary.LittleEndian.Uint32(h[4:8])) |
		int64(binary.LittleEndian.Uint32(h[8:12]))<<32

	data := make([]byte, size)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, fmt.Errorf("read packet payload: %w", err)
	}
	return &Packet{PTS: pts, Data: data}, nil
}
