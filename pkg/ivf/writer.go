// Package ivf implements the minimal IVF streaming container: a 32-byte
// file header followed by length-prefixed compressed packets. The format
// is append-only, so a recording can be written without knowing the final
// frame count; the count is patched into the header on finalize. All
// integer fields are little-endian, and the byte layout lives entirely in
// this package.
package ivf

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	// HeaderSize is the fixed size of the file header in bytes.
	HeaderSize = 32
	// PacketHeaderSize is the fixed size of each packet header in bytes.
	PacketHeaderSize = 12

	signature = "DKIF"
	version   = 0
)

// FourCCVP8 is the codec tag for VP8 payloads ("VP80").
const FourCCVP8 uint32 = 0x30385056

// Timebase defines the duration of one timestamp unit in seconds as the
// rational Num/Den.
type Timebase struct {
	Num uint32
	Den uint32
}

// Writer serializes an IVF file. It is not safe for concurrent use; the
// encode worker is its only writer.
type Writer struct {
	file       *os.File
	fourcc     uint32
	width      int
	height     int
	timebase   Timebase
	frameCount uint32
	closed     bool
}

// NewWriter creates path for writing and writes the file header with a
// frame count of zero. Until Finalize rewrites the header the file is a
// parseable prefix, not a complete recording.
func NewWriter(path string, fourcc uint32, width, height int, tb Timebase) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open %s for writing: %w", path, err)
	}

	w := &Writer{
		file:     file,
		fourcc:   fourcc,
		width:    width,
		height:   height,
		timebase: tb,
	}

	if _, err := file.Write(w.fileHeader(0)); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write file header: %w", err)
	}
	return w, nil
}

// fileHeader builds the 32-byte header with the given frame count.
func (w *Writer) fileHeader(frameCount uint32) []byte {
	h := make([]byte, HeaderSize)
	copy(h[0:4], signature)
	binary.LittleEndian.PutUint16(h[4:6], version)
	binary.LittleEndian.PutUint16(h[6:8], HeaderSize)
	binary.LittleEndian.PutUint32(h[8:12], w.fourcc)
	binary.LittleEndian.PutUint16(h[12:14], uint16(w.width))
	binary.LittleEndian.PutUint16(h[14:16], uint16(w.height))
	binary.LittleEndian.PutUint32(h[16:20], w.timebase.Den)
	binary.LittleEndian.PutUint32(h[20:24], w.timebase.Num)
	binary.LittleEndian.PutUint32(h[24:28], frameCount)
	binary.LittleEndian.PutUint32(h[28:32], 0)
	return h
}

// WritePacket appends one compressed packet: a 12-byte header carrying the
// payload size and presentation timestamp, then the payload bytes.
func (w *Writer) WritePacket(payload []byte, pts int64) error {
	var h [PacketHeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(h[4:8], uint32(pts))
	binary.LittleEndian.PutUint32(h[8:12], uint32(pts>>32))

	if _, err := w.file.Write(h[:]); err != nil {
		return fmt.Errorf("write packet header: %w", err)
	}
	if _, err := w.file.Write(payload); err != nil {
		return fmt.Errorf("write packet payload: %w", err)
	}
	w.frameCount++
	return nil
}

// FrameCount returns the number of packets written so far.
func (w *Writer) FrameCount() uint32 {
	return w.frameCount
}

// Finalize rewrites the file header with the true frame count and closes
// the file. The recording is only valid once Finalize has run.
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.file.Seek(0, 0); err != nil {
		w.file.Close()
		return fmt.Errorf("seek to header: %w", err)
	}
	if _, err := w.file.Write(w.fileHeader(w.frameCount)); err != nil {
		w.file.Close()
		return fmt.Errorf("rewrite file header: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close recording: %w", err)
	}
	return nil
}
