package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/screencast/pkg/adapters/logger"
	"github.com/user/screencast/pkg/ivf"
	"github.com/user/screencast/pkg/ports"
	"github.com/user/screencast/pkg/yuv420"
)

type stubCodec struct{}

func (stubCodec) Encode(img *yuv420.Image, pts, duration int64) ([]ports.Packet, error) {
	return []ports.Packet{{Data: []byte{0}, PTS: pts, Duration: duration}}, nil
}
func (stubCodec) Flush(pts int64) ([]ports.Packet, error) { return nil, nil }
func (stubCodec) FourCC() uint32                          { return ivf.FourCCVP8 }
func (stubCodec) Close() error                            { return nil }

func stubFactory(width, height, fps int) (ports.Codec, error) {
	return stubCodec{}, nil
}

// fakeSource emits a fixed number of frames and then closes its channel,
// the way a real source behaves when the page goes away.
type fakeSource struct {
	frames   int
	silent   bool // keep the channel open without sending
	startErr error
	stopped  bool
}

func (s *fakeSource) Start(ctx context.Context, opts ports.CaptureOptions) (<-chan ports.SourceFrame, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	ch := make(chan ports.SourceFrame)
	if s.silent {
		return ch, nil
	}
	go func() {
		defer close(ch)
		data := testFrame(opts.Width, opts.Height)
		for i := 0; i < s.frames; i++ {
			select {
			case ch <- ports.SourceFrame{Data: data, Arrived: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s *fakeSource) Stop() error {
	s.stopped = true
	return nil
}

func testFrame(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 30, G: 60, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		OutputPath: filepath.Join(t.TempDir(), "out.ivf"),
		Width:      64,
		Height:     64,
		Duration:   5 * time.Second,
	}
}

func TestRun_SourceClosesChannel(t *testing.T) {
	source := &fakeSource{frames: 3}
	orch := New(source, stubFactory, logger.NewNoop())

	cfg := testConfig(t)
	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.FramesCaptured != 3 {
		t.Errorf("FramesCaptured = %d, want 3", result.FramesCaptured)
	}
	if result.PacketsWritten == 0 {
		t.Error("no packets written")
	}
	if !source.stopped {
		t.Error("source was not stopped")
	}

	f, err := os.Open(cfg.OutputPath)
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()
	r, err := ivf.NewReader(f)
	if err != nil {
		t.Fatalf("recording is not a valid IVF file: %v", err)
	}
	if r.Info.FrameCount != result.PacketsWritten {
		t.Errorf("header count %d does not match result %d", r.Info.FrameCount, result.PacketsWritten)
	}
	if result.OutputBytes <= ivf.HeaderSize {
		t.Errorf("OutputBytes = %d, expected more than a bare header", result.OutputBytes)
	}
}

func TestRun_StartFailure(t *testing.T) {
	source := &fakeSource{startErr: fmt.Errorf("browser did not launch")}
	orch := New(source, stubFactory, logger.NewNoop())

	cfg := testConfig(t)
	_, err := orch.Run(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error")
	}

	// The recording must still be finalized as a valid empty file.
	f, openErr := os.Open(cfg.OutputPath)
	if openErr != nil {
		t.Fatalf("open recording: %v", openErr)
	}
	defer f.Close()
	r, readErr := ivf.NewReader(f)
	if readErr != nil {
		t.Fatalf("recording is not a valid IVF file: %v", readErr)
	}
	if r.Info.FrameCount != 0 {
		t.Errorf("frame count = %d, want 0", r.Info.FrameCount)
	}
}

func TestRun_EncoderFailure(t *testing.T) {
	source := &fakeSource{frames: 1}
	orch := New(source, stubFactory, logger.NewNoop())

	cfg := testConfig(t)
	cfg.Width = 641 // odd
	if _, err := orch.Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for invalid dimensions")
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	source := &fakeSource{frames: 1 << 30} // effectively endless
	orch := New(source, stubFactory, logger.NewNoop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	cfg := testConfig(t)
	result, err := orch.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !source.stopped {
		t.Error("source was not stopped after cancellation")
	}
	if result.Elapsed >= cfg.Duration {
		t.Errorf("session ran for %v, should have been cut short", result.Elapsed)
	}
}

func TestRun_DeadlineStopsSession(t *testing.T) {
	// A source that never sends: the configured duration must end the run.
	source := &fakeSource{silent: true}
	orch := New(source, stubFactory, logger.NewNoop())

	cfg := testConfig(t)
	cfg.Duration = 50 * time.Millisecond

	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.FramesCaptured != 0 {
		t.Errorf("FramesCaptured = %d, want 0", result.FramesCaptured)
	}
}
