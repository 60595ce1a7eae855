// Package main provides the CLI entry point for screencast.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/screencast/pkg/adapters/chromebrowser"
	"github.com/user/screencast/pkg/adapters/logger"
	"github.com/user/screencast/pkg/adapters/osfilesystem"
	"github.com/user/screencast/pkg/adapters/patternsource"
	"github.com/user/screencast/pkg/adapters/playwrightbrowser"
	"github.com/user/screencast/pkg/adapters/vp8encoder"
	"github.com/user/screencast/pkg/config"
	"github.com/user/screencast/pkg/ivf"
	"github.com/user/screencast/pkg/orchestrator"
	"github.com/user/screencast/pkg/ports"
	"github.com/user/screencast/pkg/remux"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "screencast",
		Usage:   "Record browser sessions into IVF video files.",
		Version: version,
		Commands: []*cli.Command{
			recordCommand(),
			patternCommand(),
			infoCommand(),
			remuxCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info", Usage: "Log level (debug, info, warn, error)"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: "Suppress all log output"},
	}
}

func newLogger(c *cli.Context) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	return logger.NewConsole(ports.ParseLogLevel(c.String("log-level")))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn(l10n.T("Interrupted, shutting down..."))
		cancel()
	}()
	return ctx, cancel
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Record a web page screencast to an IVF file",
		ArgsUsage: "URL",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "Output IVF file path"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Usage: "Video width (even, default 1280)"},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Usage: "Video height (even, default 720)"},
			&cli.Float64Flag{Name: "scale", Usage: "Uniform downscale factor applied to captured frames"},
			&cli.IntFlag{Name: "duration", Aliases: []string{"d"}, Usage: "Recording duration in milliseconds"},
			&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Usage: "Screencast JPEG quality (0-100)"},
			&cli.StringFlag{Name: "browser", Usage: "Capture backend (chromedp or playwright)"},
			&cli.StringFlag{Name: "chrome-path", Usage: "Path to Chrome executable"},
			&cli.StringFlag{Name: "user-agent", Usage: "Override browser user agent"},
			&cli.BoolFlag{Name: "visible", Usage: "Run browser in non-headless mode"},
			&cli.BoolFlag{Name: "ignore-https-errors", Usage: "Ignore HTTPS certificate errors"},
			&cli.StringFlag{Name: "proxy-server", Usage: "HTTP proxy server (e.g. http://proxy:8080)"},
		}, loggingFlags()...),
		Action: runRecord,
	}
}

func runRecord(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one URL argument is required", 1)
	}

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	cfg.URL = c.Args().First()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(c)
	ctx, cancel := signalContext(log)
	defer cancel()

	var source ports.CaptureSource
	switch cfg.Browser {
	case "playwright":
		source = playwrightbrowser.New(log)
	default:
		source = chromebrowser.New(log)
	}

	orch := orchestrator.New(source, vp8encoder.New, log)
	result, err := orch.Run(ctx, sessionConfig(cfg))
	if err != nil {
		return err
	}

	log.Info(l10n.F("Output saved to %s", cfg.OutputPath))
	log.Debug("Wrote %d bytes", result.OutputBytes)
	return nil
}

func patternCommand() *cli.Command {
	return &cli.Command{
		Name:  "pattern",
		Usage: "Record a synthetic test pattern to an IVF file",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "Output IVF file path"},
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Value: 640, Usage: "Video width (even)"},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Value: 360, Usage: "Video height (even)"},
			&cli.IntFlag{Name: "frames", Aliases: []string{"n"}, Value: 90, Usage: "Number of frames to generate"},
			&cli.IntFlag{Name: "interval", Value: 100, Usage: "Milliseconds between frames"},
		}, loggingFlags()...),
		Action: runPattern,
	}
}

func runPattern(c *cli.Context) error {
	log := newLogger(c)
	ctx, cancel := signalContext(log)
	defer cancel()

	interval := time.Duration(c.Int("interval")) * time.Millisecond
	source := patternsource.New(c.Int("frames"), interval, log)

	orch := orchestrator.New(source, vp8encoder.New, log)
	cfg := orchestrator.Config{
		OutputPath: c.String("output"),
		Width:      c.Int("width"),
		Height:     c.Int("height"),
		// Generous deadline; the source closes the channel after the last frame.
		Duration: time.Duration(c.Int("frames")+10) * interval * 2,
	}

	result, err := orch.Run(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info(l10n.F("Output saved to %s", cfg.OutputPath))
	log.Debug("Wrote %d packets, %d bytes", result.PacketsWritten, result.OutputBytes)
	return nil
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Print the header and packet list of an IVF file",
		ArgsUsage: "FILE",
		Action:    runInfo,
	}
}

func runInfo(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one file argument is required", 1)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := ivf.NewReader(f)
	if err != nil {
		return err
	}

	info := r.Info
	fmt.Printf("codec:      %s\n", info.FourCCString())
	fmt.Printf("dimensions: %dx%d\n", info.Width, info.Height)
	fmt.Printf("timebase:   %d/%d\n", info.Timebase.Num, info.Timebase.Den)
	fmt.Printf("frames:     %d\n", info.FrameCount)

	n := 0
	for {
		pkt, err := r.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n++
		marker := ""
		if remux.IsVP8Keyframe(pkt.Data) {
			marker = "[K] "
		}
		fmt.Printf("  #%03d %spts=%d sz=%d\n", n, marker, pkt.PTS, len(pkt.Data))
	}
	if uint32(n) != info.FrameCount {
		fmt.Printf("warning: header frame count %d does not match %d packets (unfinalized recording?)\n",
			info.FrameCount, n)
	}
	return nil
}

func remuxCommand() *cli.Command {
	return &cli.Command{
		Name:      "remux",
		Usage:     "Convert a finished IVF recording to MP4",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "Output MP4 file path"},
		},
		Action: runRemux,
	}
}

func runRemux(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one file argument is required", 1)
	}

	fs := osfilesystem.New()
	data, err := fs.ReadFile(c.Args().First())
	if err != nil {
		return err
	}

	mp4Data, err := remux.ToMP4(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return fs.WriteFile(c.String("output"), mp4Data)
}

func buildConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	cfg.OutputPath = c.String("output")
	if c.IsSet("width") {
		cfg.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Height = c.Int("height")
	}
	if c.IsSet("scale") {
		cfg.Scale = c.Float64("scale")
	}
	if c.IsSet("duration") {
		cfg.DurationMs = c.Int("duration")
	}
	if c.IsSet("quality") {
		cfg.Quality = c.Int("quality")
	}
	if c.IsSet("browser") {
		cfg.Browser = c.String("browser")
	}
	if c.IsSet("chrome-path") {
		cfg.ChromePath = c.String("chrome-path")
	}
	if c.IsSet("user-agent") {
		cfg.UserAgent = c.String("user-agent")
	}
	if c.Bool("visible") {
		cfg.Headless = false
	}
	if c.Bool("ignore-https-errors") {
		cfg.IgnoreHTTPSErrors = true
	}
	if c.IsSet("proxy-server") {
		cfg.ProxyServer = c.String("proxy-server")
	}
	return cfg, nil
}

func sessionConfig(cfg config.Config) orchestrator.Config {
	return orchestrator.Config{
		URL:               cfg.URL,
		OutputPath:        cfg.OutputPath,
		Width:             cfg.Width,
		Height:            cfg.Height,
		Scale:             cfg.Scale,
		Duration:          time.Duration(cfg.DurationMs) * time.Millisecond,
		Quality:           cfg.Quality,
		Headless:          cfg.Headless,
		ChromePath:        cfg.ChromePath,
		UserAgent:         cfg.UserAgent,
		IgnoreHTTPSErrors: cfg.IgnoreHTTPSErrors,
		ProxyServer:       cfg.ProxyServer,
	}
}
