package screencast

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/screencast/pkg/adapters/logger"
	"github.com/user/screencast/pkg/ivf"
	"github.com/user/screencast/pkg/ports"
	"github.com/user/screencast/pkg/yuv420"
)

// fakeCodec emits one packet per Encode call. With hold set, packets are
// buffered internally and released one at a time through Flush, which
// mimics a codec with lookahead.
type fakeCodec struct {
	hold      bool
	encodeErr error

	encodes  int
	buffered []ports.Packet
	closed   bool
}

func (f *fakeCodec) Encode(img *yuv420.Image, pts, duration int64) ([]ports.Packet, error) {
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	f.encodes++
	pkt := ports.Packet{
		Data:     []byte{0x00, byte(f.encodes)},
		PTS:      pts,
		Duration: duration,
		Keyframe: f.encodes == 1,
	}
	if f.hold {
		f.buffered = append(f.buffered, pkt)
		return nil, nil
	}
	return []ports.Packet{pkt}, nil
}

func (f *fakeCodec) Flush(pts int64) ([]ports.Packet, error) {
	if len(f.buffered) == 0 {
		return nil, nil
	}
	pkt := f.buffered[0]
	f.buffered = f.buffered[1:]
	return []ports.Packet{pkt}, nil
}

func (f *fakeCodec) FourCC() uint32 { return ivf.FourCCVP8 }

func (f *fakeCodec) Close() error {
	f.closed = true
	return nil
}

func fakeFactory(codec *fakeCodec) CodecFactory {
	return func(width, height, fps int) (ports.Codec, error) {
		return codec, nil
	}
}

func makeFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func newTestEncoder(t *testing.T, codec *fakeCodec) (*Encoder, string, func(time.Duration)) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.ivf")

	e, err := New(path, 64, 64, 0, fakeFactory(codec), logger.NewNoop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	advance := func(d time.Duration) { now = now.Add(d) }

	return e, path, advance
}

func readPackets(t *testing.T, path string) (ivf.FileInfo, []*ivf.Packet) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()

	r, err := ivf.NewReader(f)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	var packets []*ivf.Packet
	for {
		pkt, err := r.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket failed: %v", err)
		}
		packets = append(packets, pkt)
	}
	return r.Info, packets
}

func TestNew_InvalidSizes(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{"odd width", 641, 480},
		{"odd height", 640, 481},
		{"zero width", 0, 480},
		{"negative height", 640, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.ivf")
			_, err := New(path, tt.width, tt.height, 0, fakeFactory(&fakeCodec{}), logger.NewNoop())
			if !errors.Is(err, ErrInvalidFrameSize) {
				t.Fatalf("expected ErrInvalidFrameSize, got %v", err)
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Error("output file should not exist after failed initialization")
			}
		})
	}
}

func TestNew_NilFactory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ivf")
	_, err := New(path, 64, 64, 0, nil, logger.NewNoop())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestFinish_NoFrames(t *testing.T) {
	codec := &fakeCodec{}
	e, path, _ := newTestEncoder(t, codec)

	e.Finish(nil)

	info, packets := readPackets(t, path)
	if info.FrameCount != 0 {
		t.Errorf("frame count = %d, want 0", info.FrameCount)
	}
	if len(packets) != 0 {
		t.Errorf("got %d packets, want 0", len(packets))
	}
	if !codec.closed {
		t.Error("codec was not closed")
	}
}

func TestSubmitFrame_DurationFromArrivalGap(t *testing.T) {
	codec := &fakeCodec{}
	e, path, advance := newTestEncoder(t, codec)
	frame := makeFrame(t, 64, 64)

	e.SubmitFrame(frame) // held until the next arrival fixes its duration
	advance(100 * time.Millisecond)
	e.SubmitFrame(frame) // first frame: 1 + round(0.1*30) = 4 ticks
	advance(200 * time.Millisecond)
	e.Finish(nil) // second frame: 1 + round(0.2*30) = 7 ticks

	if codec.encodes != 11 {
		t.Errorf("encode calls = %d, want 11", codec.encodes)
	}

	info, packets := readPackets(t, path)
	if len(packets) != 11 {
		t.Fatalf("got %d packets, want 11", len(packets))
	}
	if info.FrameCount != 11 {
		t.Errorf("header frame count = %d, want 11", info.FrameCount)
	}
	for i, pkt := range packets {
		if pkt.PTS != int64(i) {
			t.Errorf("packet %d pts = %d, want %d", i, pkt.PTS, i)
		}
	}
}

func TestSubmitFrame_BackToBackMinimumDuration(t *testing.T) {
	codec := &fakeCodec{}
	e, _, _ := newTestEncoder(t, codec)
	frame := makeFrame(t, 64, 64)

	// Two frames with no elapsed time between them. Each still encodes
	// for at least one tick.
	e.SubmitFrame(frame)
	e.SubmitFrame(frame)
	e.Finish(nil)

	if codec.encodes != 2 {
		t.Errorf("encode calls = %d, want 2", codec.encodes)
	}
}

func TestSubmitFrame_GarbageDropped(t *testing.T) {
	codec := &fakeCodec{}
	e, path, advance := newTestEncoder(t, codec)

	e.SubmitFrame([]byte("not an image"))
	advance(100 * time.Millisecond)
	e.SubmitFrame(makeFrame(t, 64, 64))
	advance(100 * time.Millisecond)
	e.Finish(nil)

	// Only the valid frame reaches the codec: 1 + round(0.1*30) = 4 ticks.
	if codec.encodes != 4 {
		t.Errorf("encode calls = %d, want 4", codec.encodes)
	}
	info, packets := readPackets(t, path)
	if uint32(len(packets)) != info.FrameCount {
		t.Errorf("header count %d does not match %d packets", info.FrameCount, len(packets))
	}
}

func TestFinish_DrainsBufferingCodec(t *testing.T) {
	codec := &fakeCodec{hold: true}
	e, path, advance := newTestEncoder(t, codec)
	frame := makeFrame(t, 64, 64)

	e.SubmitFrame(frame)
	advance(100 * time.Millisecond)
	e.SubmitFrame(frame)
	advance(100 * time.Millisecond)
	e.Finish(nil)

	// Every buffered packet must come out through the flush loop.
	info, packets := readPackets(t, path)
	if len(packets) != codec.encodes {
		t.Errorf("got %d packets for %d encode calls", len(packets), codec.encodes)
	}
	if uint32(len(packets)) != info.FrameCount {
		t.Errorf("header count %d does not match %d packets", info.FrameCount, len(packets))
	}
	if len(codec.buffered) != 0 {
		t.Errorf("%d packets left in the codec after Finish", len(codec.buffered))
	}
	if e.PacketCount() != info.FrameCount {
		t.Errorf("PacketCount = %d, want %d", e.PacketCount(), info.FrameCount)
	}
}

func TestErr_CodecFailureSurfacesAfterFinish(t *testing.T) {
	codec := &fakeCodec{encodeErr: errors.New("bitstream error")}
	e, path, _ := newTestEncoder(t, codec)

	e.SubmitFrame(makeFrame(t, 64, 64))
	e.SubmitFrame(makeFrame(t, 64, 64))
	e.Finish(nil)

	if !errors.Is(e.Err(), ErrCodec) {
		t.Errorf("Err = %v, want ErrCodec", e.Err())
	}
	// The recording is still finalized.
	info, _ := readPackets(t, path)
	if info.FrameCount != 0 {
		t.Errorf("frame count = %d, want 0", info.FrameCount)
	}
}

func TestFinish_OnDoneRunsAfterFinalize(t *testing.T) {
	codec := &fakeCodec{}
	e, path, _ := newTestEncoder(t, codec)
	e.SubmitFrame(makeFrame(t, 64, 64))

	called := false
	e.Finish(func() {
		called = true
		// The file must already be complete when the callback runs.
		info, _ := readPackets(t, path)
		if info.FrameCount == 0 {
			t.Error("recording not finalized before onDone")
		}
	})
	if !called {
		t.Error("onDone was not called")
	}
}

func TestFinish_Idempotent(t *testing.T) {
	codec := &fakeCodec{}
	e, _, _ := newTestEncoder(t, codec)

	e.Finish(nil)
	e.Finish(nil) // must not panic or deadlock
}

func TestFinish_NilEncoder(t *testing.T) {
	var e *Encoder
	called := false
	e.Finish(func() { called = true })
	if !called {
		t.Error("onDone was not called on nil encoder")
	}
}

func TestSubmitFrame_AfterFinishPanics(t *testing.T) {
	codec := &fakeCodec{}
	e, _, _ := newTestEncoder(t, codec)
	e.Finish(nil)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on SubmitFrame after Finish")
		}
	}()
	e.SubmitFrame(makeFrame(t, 64, 64))
}
