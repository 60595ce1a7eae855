package patternsource

import (
	"bytes"
	"context"
	"image/jpeg"
	"testing"
	"time"

	"github.com/user/screencast/pkg/adapters/logger"
	"github.com/user/screencast/pkg/ports"
)

func TestStart_EmitsRequestedFrames(t *testing.T) {
	source := New(5, time.Millisecond, logger.NewNoop())

	frames, err := source.Start(context.Background(), ports.CaptureOptions{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	n := 0
	for frame := range frames {
		n++
		img, err := jpeg.Decode(bytes.NewReader(frame.Data))
		if err != nil {
			t.Fatalf("frame %d is not a JPEG: %v", n, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != 64 || bounds.Dy() != 64 {
			t.Errorf("frame %d is %dx%d, want 64x64", n, bounds.Dx(), bounds.Dy())
		}
		if frame.Arrived.IsZero() {
			t.Errorf("frame %d has no arrival timestamp", n)
		}
	}
	if n != 5 {
		t.Errorf("received %d frames, want 5", n)
	}
}

func TestStart_InvalidDimensions(t *testing.T) {
	source := New(1, time.Millisecond, logger.NewNoop())

	if _, err := source.Start(context.Background(), ports.CaptureOptions{Width: 0, Height: 64}); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestStop_ClosesChannel(t *testing.T) {
	source := New(1000, time.Millisecond, logger.NewNoop())

	frames, err := source.Start(context.Background(), ports.CaptureOptions{Width: 32, Height: 32})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	<-frames
	if err := source.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// The channel drains and closes well before all 1000 frames.
	n := 0
	for range frames {
		n++
	}
	if n >= 999 {
		t.Errorf("drained %d frames after Stop, generation did not halt", n)
	}
}

func TestStart_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := New(1000, time.Millisecond, logger.NewNoop())

	frames, err := source.Start(ctx, ports.CaptureOptions{Width: 32, Height: 32})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after context cancellation")
		}
	}
}
