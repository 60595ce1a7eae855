// Package patternsource provides a synthetic capture source that renders
// a moving test pattern. It lets the recording pipeline run without a
// browser, for smoke tests and encoder benchmarking.
package patternsource

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"math"
	"time"

	"github.com/fogleman/gg"

	"github.com/user/screencast/pkg/ports"
)

// Source implements ports.CaptureSource with generated frames.
type Source struct {
	logger   ports.Logger
	interval time.Duration
	count    int
	cancel   context.CancelFunc
}

// New creates a pattern source that emits count frames, one every
// interval.
func New(count int, interval time.Duration, logger ports.Logger) *Source {
	return &Source{
		logger:   logger.WithComponent("pattern"),
		interval: interval,
		count:    count,
	}
}

// Start begins emitting frames. The channel closes after the configured
// number of frames or when ctx is cancelled.
func (s *Source) Start(ctx context.Context, opts ports.CaptureOptions) (<-chan ports.SourceFrame, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("pattern source needs positive dimensions, got %dx%d", opts.Width, opts.Height)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	frames := make(chan ports.SourceFrame, 16)

	s.logger.Debug("Generating %d test frames", s.count)

	go func() {
		defer close(frames)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; i < s.count; i++ {
			data, err := s.render(i, opts.Width, opts.Height)
			if err != nil {
				s.logger.Error("Failed to render frame: %s", err)
				return
			}
			select {
			case frames <- ports.SourceFrame{Data: data, Arrived: time.Now()}:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames, nil
}

// Stop cancels frame generation.
func (s *Source) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// render draws one frame: a dark background, a circle orbiting the
// center, and the frame index.
func (s *Source) render(index, width, height int) ([]byte, error) {
	dc := gg.NewContext(width, height)

	dc.SetRGB(0.10, 0.10, 0.18)
	dc.Clear()

	cx := float64(width) / 2
	cy := float64(height) / 2
	radius := math.Min(cx, cy) * 0.6
	angle := float64(index) * 0.2

	dc.SetRGB(0.29, 0.87, 0.50)
	dc.DrawCircle(cx+radius*math.Cos(angle), cy+radius*math.Sin(angle), math.Min(cx, cy)*0.15)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.DrawString(fmt.Sprintf("frame %d", index), 8, 16)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Ensure Source implements ports.CaptureSource
var _ ports.CaptureSource = (*Source)(nil)
