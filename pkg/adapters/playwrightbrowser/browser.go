// Package playwrightbrowser provides a capture source implementation
// using playwright-go. It drives the same CDP screencast as the chromedp
// adapter through a raw CDP session, so the two are interchangeable
// behind ports.CaptureSource.
package playwrightbrowser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/user/screencast/pkg/ports"
)

// Source implements ports.CaptureSource using a Playwright-managed
// Chromium instance.
type Source struct {
	logger ports.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	session playwright.CDPSession

	mu     sync.Mutex
	frames chan ports.SourceFrame
	active bool
}

// New creates a new Source.
func New(logger ports.Logger) *Source {
	return &Source{logger: logger.WithComponent("playwright")}
}

// Start launches Chromium via Playwright, navigates to the target URL and
// subscribes to Page.screencastFrame events over a CDP session.
func (s *Source) Start(ctx context.Context, opts ports.CaptureOptions) (<-chan ports.SourceFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil, fmt.Errorf("screencast already active")
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.ChromePath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ChromePath)
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	s.logger.Debug("Launching browser")
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(opts.IgnoreHTTPSErrors),
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	if opts.Width > 0 && opts.Height > 0 {
		contextOpts.Viewport = &playwright.Size{Width: opts.Width, Height: opts.Height}
	}

	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("new context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}

	session, err := browserCtx.NewCDPSession(page)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("new CDP session: %w", err)
	}

	s.pw = pw
	s.browser = browser
	s.session = session
	s.frames = make(chan ports.SourceFrame, 16)
	s.active = true

	session.On("Page.screencastFrame", func(params map[string]interface{}) {
		encoded, _ := params["data"].(string)
		data, err := base64.StdEncoding.DecodeString(encoded)
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
		if sessionID, ok := params["sessionId"]; ok {
			session.Send("Page.screencastFrameAck", map[string]interface{}{
				"sessionId": sessionID,
			})
		}
	})

	s.logger.Debug("Navigating to %s", opts.URL)
	if _, err := page.Goto(opts.URL); err != nil {
		s.teardownLocked()
		return nil, fmt.Errorf("navigate: %w", err)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = 80
	}

	s.logger.Debug("Starting screencast")
	if _, err := session.Send("Page.startScreencast", map[string]interface{}{
		"format":    "jpeg",
		"quality":   quality,
		"maxWidth":  opts.Width,
		"maxHeight": opts.Height,
	}); err != nil {
		s.teardownLocked()
		return nil, fmt.Errorf("start screencast: %w", err)
	}

	return s.frames, nil
}

// Stop ends the screencast and shuts down Playwright. The mutex is
// released around the CDP round trip; the frame handler takes the same
// mutex on the event dispatch goroutine.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()

	s.session.Send("Page.stopScreencast", nil)
	s.logger.Debug("Screencast stopped")

	s.mu.Lock()
	close(s.frames)
	s.teardownLocked()
	s.mu.Unlock()
	s.logger.Debug("Browser closed")
	return nil
}

func (s *Source) teardownLocked() {
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.pw != nil {
		s.pw.Stop()
		s.pw = nil
	}
	s.active = false
}

// Ensure Source implements ports.CaptureSource
var _ ports.CaptureSource = (*Source)(nil)
