// Command asciiterm is an interactive console that fetches images by URL
// and prints them as ASCII art, optionally exporting a rendered PNG.
//
// Usage:
//
//	asciiterm [flags]                          interactive console
//	asciiterm [flags] to_ascii <url> [k=v ...]  run one command and exit
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rekav/img2ascii"
	"github.com/rekav/img2ascii/channel"
	"github.com/rekav/img2ascii/config"
	"github.com/rekav/img2ascii/host"
	"github.com/rekav/img2ascii/log"
	"github.com/rekav/img2ascii/sink"
)

// batchTimeout caps how long a one-shot command waits for its image.
const batchTimeout = 2 * time.Minute

func main() {
	configPath := flag.StringP("config", "c", "", "YAML configuration file")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFile := flag.String("log-file", "", "Write logs to this file")
	outDir := flag.StringP("out-dir", "o", "", "Directory for exported PNGs (dir sink)")
	sinkName := flag.String("sink", "", "Export sink: dir or minio")
	fontPath := flag.String("font", "", "TTF font for PNG export (default: Go Mono)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [command [args]]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *outDir != "" {
		cfg.Export.Dir = *outDir
	}
	if *sinkName != "" {
		cfg.Export.Sink = *sinkName
	}
	if *fontPath != "" {
		cfg.Render.FontPath = *fontPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	batch := flag.NArg() > 0
	closeLog, err := setupLogging(cfg.Log, batch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if batch {
		err = runBatch(ctx, cfg, strings.Join(flag.Args(), " "))
	} else {
		err = runInteractive(ctx, cfg)
	}
	if errors.Is(err, errReported) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging applies the level and destination. The interactive
// console owns the terminal, so without a log file its logs are dropped.
func setupLogging(cfg config.Log, batch bool) (func(), error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	switch {
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		log.SetOutput(f)
		return func() { f.Close() }, nil
	case !batch:
		log.SetOutput(io.Discard)
	}
	return func() {}, nil
}

// pipeline is the wired converter and both ends of the transport channel.
type pipeline struct {
	poller  *img2ascii.Poller
	fetcher *host.Fetcher
}

func newPipeline(cfg *config.Config, out img2ascii.LineSink) (*pipeline, error) {
	var ropts []img2ascii.RendererOption
	if cfg.Render.FontPath != "" {
		ropts = append(ropts, img2ascii.WithFontFile(cfg.Render.FontPath))
	}
	if cfg.Render.MaxPixels > 0 {
		ropts = append(ropts, img2ascii.WithMaxPixels(cfg.Render.MaxPixels))
	}
	renderer, err := img2ascii.NewTextRenderer(ropts...)
	if err != nil {
		return nil, err
	}

	trigger, err := sink.New(cfg.Export)
	if err != nil {
		return nil, err
	}

	conv, err := img2ascii.NewConverter(
		img2ascii.WithRenderer(renderer),
		img2ascii.WithTrigger(trigger),
		img2ascii.WithLineSink(out),
		img2ascii.WithMaxSourcePixels(cfg.Render.MaxSourcePixels),
	)
	if err != nil {
		return nil, err
	}

	store := channel.NewMemoryStore()
	t := cfg.Transport
	poller := img2ascii.NewPoller(store, conv, out,
		img2ascii.WithMaxResultText(t.MaxResultText),
		img2ascii.WithMaxPayload(t.MaxPayload),
	)
	fetcher := host.NewFetcher(store,
		host.WithHTTPClient(host.NewHTTPClient(t.FetchTimeout)),
		host.WithUserAgent(t.UserAgent),
		host.WithMaxResultText(t.MaxResultText),
		host.WithPollInterval(t.PollInterval),
	)
	log.Info("pipeline ready: font=%s sink=%s", renderer.FontName(), cfg.Export.Sink)
	return &pipeline{poller: poller, fetcher: fetcher}, nil
}

func runInteractive(ctx context.Context, cfg *config.Config) error {
	out := &transcript{}
	p, err := newPipeline(cfg, out)
	if err != nil {
		return err
	}
	c := newConsole(p.poller, out)
	out.WriteLine("ASCII image console. Type 'help' for commands.", img2ascii.LineSystem)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.fetcher.Run(gctx) })
	g.Go(func() error {
		prog := tea.NewProgram(newModel(gctx, c, out, cfg.TickInterval),
			tea.WithAltScreen(),
			tea.WithContext(gctx),
		)
		_, err := prog.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		// Leaving the console stops the fetcher.
		return errQuit
	})
	if err := g.Wait(); !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

var (
	// errQuit ends the errgroup once the console exits.
	errQuit = errors.New("quit")
	// errReported marks a failure already printed by the pipeline.
	errReported = errors.New("reported")
)

// stdout prints console lines for batch mode.
type stdout struct {
	w, errw io.Writer
}

func (s stdout) WriteLine(line string, kind img2ascii.LineKind) {
	if kind == img2ascii.LineError {
		fmt.Fprintln(s.errw, line)
		return
	}
	fmt.Fprintln(s.w, line)
}

func (stdout) Clear() {}

func runBatch(ctx context.Context, cfg *config.Config, line string) error {
	out := stdout{w: os.Stdout, errw: os.Stderr}
	p, err := newPipeline(cfg, out)
	if err != nil {
		return err
	}
	c := newConsole(p.poller, out)
	c.Execute(line)
	if c.lastErr != nil {
		return errReported
	}
	if !p.poller.Pending() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.fetcher.Run(gctx) })

	var convErr error
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()
	for p.poller.Pending() {
		select {
		case <-gctx.Done():
			p.poller.Cancel()
			cancel()
			g.Wait()
			return fmt.Errorf("no result: %w", context.Cause(gctx))
		case <-ticker.C:
			_, convErr = p.poller.Tick(gctx)
		}
	}
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	if convErr != nil {
		// The poller already printed it.
		return errReported
	}
	return nil
}
