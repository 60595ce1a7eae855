// Package chromebrowser provides a capture source implementation using chromedp.
package chromebrowser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/user/screencast/pkg/ports"
)

// Source implements ports.CaptureSource by driving a Chrome/Chromium
// instance and subscribing to CDP screencast frames.
type Source struct {
	logger ports.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu     sync.Mutex
	frames chan ports.SourceFrame
	active bool
}

// New creates a new Source.
func New(logger ports.Logger) *Source {
	return &Source{logger: logger.WithComponent("browser")}
}

// Start launches the browser, navigates to the target URL and begins the
// CDP screencast. Frames are delivered on the returned channel as they
// arrive; the channel is closed by Stop or when ctx is cancelled.
func (s *Source) Start(ctx context.Context, opts ports.CaptureOptions) (<-chan ports.SourceFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil, fmt.Errorf("screencast already active")
	}

	chromedpOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-gpu", true),
	}

	if opts.Headless {
		// New headless mode for better rendering compatibility
		chromedpOpts = append(chromedpOpts, chromedp.Flag("headless", "new"))
	}

	chromePath := ResolveChromePath(opts.ChromePath)
	if chromePath == "" {
		return nil, fmt.Errorf("chrome not found: install Chrome/Chromium, set CHROME_PATH, or use --chrome-path")
	}
	chromedpOpts = append(chromedpOpts, chromedp.ExecPath(chromePath))

	if opts.UserAgent != "" {
		chromedpOpts = append(chromedpOpts, chromedp.UserAgent(opts.UserAgent))
	}

	if opts.Width > 0 && opts.Height > 0 {
		chromedpOpts = append(chromedpOpts,
			chromedp.WindowSize(opts.Width, opts.Height),
			chromedp.Flag("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height)))
	}

	if opts.IgnoreHTTPSErrors {
		chromedpOpts = append(chromedpOpts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("allow-insecure-localhost", true))
	}

	if opts.ProxyServer != "" {
		chromedpOpts = append(chromedpOpts, chromedp.Flag("proxy-server", opts.ProxyServer))
	}

	if opts.Headless {
		s.logger.Debug("Launching browser in headless mode")
	} else {
		s.logger.Debug("Launching browser")
	}

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(ctx, chromedpOpts...)
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx)

	s.frames = make(chan ports.SourceFrame, 16)
	s.active = true

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventScreencastFrame:
			data, err := base64.StdEncoding.DecodeString(e.Data)
			if err != nil {
				return
			}

			frame := ports.SourceFrame{Data: data, Arrived: time.Now()}

			s.mu.Lock()
			if s.active {
				select {
				case s.frames <- frame:
				default:
					// Channel full, skip frame
				}
			}
			s.mu.Unlock()

			// Chrome withholds further frames until the ack
			go chromedp.Run(s.ctx, page.ScreencastFrameAck(e.SessionID))
		}
	})

	s.logger.Debug("Navigating to %s", opts.URL)
	if err := chromedp.Run(s.ctx,
		network.Enable(),
		chromedp.Navigate(opts.URL),
	); err != nil {
		s.teardownLocked()
		return nil, fmt.Errorf("navigate: %w", err)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = 80
	}

	s.logger.Debug("Starting screencast")
	if err := chromedp.Run(s.ctx,
		page.StartScreencast().
			WithFormat(page.ScreencastFormatJpeg).
			WithQuality(int64(quality)).
			WithMaxWidth(int64(opts.Width)).
			WithMaxHeight(int64(opts.Height)),
	); err != nil {
		s.teardownLocked()
		return nil, fmt.Errorf("start screencast: %w", err)
	}

	return s.frames, nil
}

// Stop ends the screencast and shuts down the browser. The mutex is
// released around the CDP round trip: the frame listener runs on the
// event dispatch goroutine and takes the same mutex, so holding it here
// would stall the dispatch loop and the stop command's response with it.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()

	// Best effort; the browser may already be gone if the context was
	// cancelled.
	chromedp.Run(s.ctx, page.StopScreencast())
	s.logger.Debug("Screencast stopped")

	s.mu.Lock()
	close(s.frames)
	s.teardownLocked()
	s.mu.Unlock()
	s.logger.Debug("Browser closed")
	return nil
}

func (s *Source) teardownLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	s.active = false
}

// Ensure Source implements ports.CaptureSource
var _ ports.CaptureSource = (*Source)(nil)
