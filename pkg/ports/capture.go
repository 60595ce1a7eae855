// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
	"time"
)

// CaptureSource abstracts a producer of raw screen frames. Frames arrive
// whenever the screen content changes, not on a fixed cadence.
type CaptureSource interface {
	// Start begins frame delivery and returns the frame channel.
	// The channel is closed when the source stops or ctx is cancelled.
	Start(ctx context.Context, opts CaptureOptions) (<-chan SourceFrame, error)

	// Stop ends frame delivery and releases the source.
	Stop() error
}

// CaptureOptions configures a capture session.
type CaptureOptions struct {
	URL               string // Page to record (ignored by synthetic sources)
	Width             int    // Maximum frame width in pixels
	Height            int    // Maximum frame height in pixels
	Quality           int    // JPEG quality for screencast frames (0-100)
	Headless          bool
	ChromePath        string
	UserAgent         string
	IgnoreHTTPSErrors bool
	ProxyServer       string
}

// SourceFrame is one captured screen update.
type SourceFrame struct {
	Data    []byte    // Encoded image bytes (JPEG or PNG)
	Arrived time.Time // Wall-clock arrival time
}
