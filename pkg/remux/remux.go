// Package remux converts finished IVF recordings into fragmented MP4 for
// players that do not read IVF. It is an offline utility; the recording
// path itself always writes IVF.
package remux

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/screencast/pkg/ivf"
)

// IsVP8Keyframe reports whether a VP8 payload is an independently
// decodable frame. The low bit of the first byte of the uncompressed
// data chunk is zero for keyframes.
func IsVP8Keyframe(payload []byte) bool {
	return len(payload) > 0 && payload[0]&0x01 == 0
}

// ToMP4 reads an IVF recording from r and returns a fragmented MP4 with
// a single vp08 video track.
func ToMP4(r io.Reader) ([]byte, error) {
	reader, err := ivf.NewReader(r)
	if err != nil {
		return nil, err
	}
	if reader.Info.FourCC != ivf.FourCCVP8 {
		return nil, fmt.Errorf("unsupported codec %q", reader.Info.FourCCString())
	}

	var packets []*ivf.Packet
	for {
		pkt, err := reader.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("no packets to remux")
	}

	timescale := reader.Info.Timebase.Den
	trackID := uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")

	trak := init.Moov.Trak

	vpcC := &mp4.VppCBox{
		Version:                 1,
		Profile:                 0,
		Level:                   10,
		BitDepth:                8,
		ChromaSubsampling:       1, // 4:2:0
		VideoFullRangeFlag:      0,
		ColourPrimaries:         2, // unspecified
		TransferCharacteristics: 2,
		MatrixCoefficients:      2,
	}

	vp08 := mp4.CreateVisualSampleEntryBox("vp08",
		uint16(reader.Info.Width), uint16(reader.Info.Height), vpcC)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(vp08)

	trak.Tkhd.Width = mp4.Fixed32(reader.Info.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(reader.Info.Height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}

	for i, pkt := range packets {
		// Duration from the PTS delta to the next packet; the last packet
		// gets one timebase tick.
		dur := uint32(1)
		if i < len(packets)-1 {
			if delta := packets[i+1].PTS - pkt.PTS; delta > 0 {
				dur = uint32(delta)
			}
		}

		flags := mp4.NonSyncSampleFlags
		if IsVP8Keyframe(pkt.Data) {
			flags = mp4.SyncSampleFlags
		}

		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(pkt.Data)),
				Dur:   dur,
			},
			DecodeTime: uint64(pkt.PTS),
			Data:       pkt.Data,
		})
	}

	var buf bytes.Buffer

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}

	return buf.Bytes(), nil
}
