// Package orchestrator coordinates a capture source and the screencast
// encoder for one bounded recording session.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ideamans/go-l10n"

	"github.com/user/screencast/pkg/ports"
	"github.com/user/screencast/pkg/screencast"
)

// Config contains all configuration for a recording session.
type Config struct {
	URL        string
	OutputPath string

	Width  int
	Height int
	Scale  float64

	Duration time.Duration
	Quality  int

	Headless          bool
	ChromePath        string
	UserAgent         string
	IgnoreHTTPSErrors bool
	ProxyServer       string
}

// RunResult summarizes a finished recording.
type RunResult struct {
	FramesCaptured int
	PacketsWritten uint32
	OutputBytes    int64
	Elapsed        time.Duration
}

// Orchestrator runs recording sessions.
type Orchestrator struct {
	source   ports.CaptureSource
	newCodec screencast.CodecFactory
	logger   ports.Logger
}

// New creates a new Orchestrator.
func New(source ports.CaptureSource, newCodec screencast.CodecFactory, logger ports.Logger) *Orchestrator {
	return &Orchestrator{
		source:   source,
		newCodec: newCodec,
		logger:   logger,
	}
}

// Run records frames from the capture source into cfg.OutputPath until
// the configured duration elapses, ctx is cancelled, or the source stops
// on its own, then finalizes the recording.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (RunResult, error) {
	encoder, err := screencast.New(cfg.OutputPath, cfg.Width, cfg.Height, cfg.Scale, o.newCodec, o.logger)
	if err != nil {
		return RunResult{}, fmt.Errorf("create encoder: %w", err)
	}

	frames, err := o.source.Start(ctx, ports.CaptureOptions{
		URL:               cfg.URL,
		Width:             cfg.Width,
		Height:            cfg.Height,
		Quality:           cfg.Quality,
		Headless:          cfg.Headless,
		ChromePath:        cfg.ChromePath,
		UserAgent:         cfg.UserAgent,
		IgnoreHTTPSErrors: cfg.IgnoreHTTPSErrors,
		ProxyServer:       cfg.ProxyServer,
	})
	if err != nil {
		// Finish with zero frames still produces a valid empty recording.
		encoder.Finish(nil)
		return RunResult{}, fmt.Errorf("start capture: %w", err)
	}

	o.logger.Info(l10n.F("Recording %s to %s...", cfg.URL, cfg.OutputPath))

	started := time.Now()
	deadline := time.NewTimer(cfg.Duration)
	defer deadline.Stop()

	captured := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline.C:
			break loop
		case frame, ok := <-frames:
			if !ok {
				break loop
			}
			encoder.SubmitFrame(frame.Data)
			captured++
		}
	}

	o.source.Stop()
	encoder.Finish(nil)
	if err := encoder.Err(); err != nil {
		o.logger.Warn(l10n.F("Recording completed with errors: %s", err.Error()))
	}

	elapsed := time.Since(started)
	o.logger.Info(l10n.F("Captured %d frames in %d ms", captured, elapsed.Milliseconds()))
	o.logger.Info(l10n.F("Recording finished: %d packets", encoder.PacketCount()))

	result := RunResult{
		FramesCaptured: captured,
		PacketsWritten: encoder.PacketCount(),
		Elapsed:        elapsed,
	}
	if info, err := os.Stat(cfg.OutputPath); err == nil {
		result.OutputBytes = info.Size()
	}
	return result, nil
}
