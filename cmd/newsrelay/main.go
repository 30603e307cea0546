package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/newsrelay/pkg/config"
	"github.com/umputun/newsrelay/pkg/dispatch"
	"github.com/umputun/newsrelay/pkg/feed"
	"github.com/umputun/newsrelay/pkg/poller"
	"github.com/umputun/newsrelay/pkg/snapshot"
	"github.com/umputun/newsrelay/pkg/telegram"
	"github.com/umputun/newsrelay/server"
)

// Opts with all CLI options
type Opts struct {
	Config      string `short:"c" long:"config" env:"CONFIG" description:"configuration file, defaults are used if not set"`
	Interval    int    `short:"i" long:"interval" env:"SLEEP_DURATION_SECS" description:"poll interval in seconds, overrides poll.interval"`
	Token       string `long:"token" env:"TELEGRAM_TOKEN" description:"telegram bot token, overrides telegram.token"`
	Destination string `long:"destination" env:"TELEGRAM_CHAT_ID" description:"telegram chat id or @channel, overrides telegram.destination"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor, opts.Token)

	lgr.Printf("[INFO] starting newsrelay version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		lgr.Printf("[ERROR] newsrelay failed: %v", err)
		os.Exit(1)
	}

	lgr.Printf("[INFO] shutdown complete")
}

// run wires all components and blocks until ctx is canceled or the status server fails
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Telegram.Token != opts.Token {
		setupLog(opts.Debug, opts.NoColor, cfg.Telegram.Token)
	}

	store, closeStore, err := makeStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to make snapshot store: %w", err)
	}
	defer closeStore()

	source, err := feed.NewSource(feed.Format(cfg.Feed.Format), cfg.Feed.Timeout, cfg.Feed.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to make feed source: %w", err)
	}

	sink, err := telegram.New(telegram.Params{
		Token:     cfg.Telegram.Token,
		APIURL:    cfg.Telegram.APIURL,
		Timeout:   cfg.Telegram.Timeout,
		RateLimit: cfg.Telegram.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to make telegram sink: %w", err)
	}

	p := poller.New(poller.Params{
		Source:     source,
		Store:      store,
		Dispatcher: dispatch.New(sink, cfg.Telegram.Destination, cfg.Message.MaxChunkLen),
		FeedURL:    cfg.Feed.URL,
		Interval:   cfg.Poll.Interval,
		Preamble:   cfg.Message.Preamble,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })

	if cfg.Server.Listen != "" {
		srv := server.New(cfg, p, store, revision, opts.Debug)
		g.Go(func() error { return srv.Run(gctx) })
	} else {
		lgr.Printf("[INFO] status server disabled")
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("newsrelay stopped: %w", err)
	}
	return nil
}

// applyOverrides sets config values passed with command line or environment
func applyOverrides(cfg *config.Config, opts Opts) {
	if opts.Interval > 0 {
		cfg.Poll.Interval = time.Duration(opts.Interval) * time.Second
	}
	if opts.Token != "" {
		cfg.Telegram.Token = opts.Token
	}
	if opts.Destination != "" {
		cfg.Telegram.Destination = opts.Destination
	}
}

// makeStore creates snapshot store for the configured storage type
func makeStore(ctx context.Context, cfg config.StorageConfig) (store poller.SnapshotStore, closeFn func(), err error) {
	switch cfg.Type {
	case "sqlite":
		s, err := snapshot.NewSQLiteStore(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store %s: %w", cfg.DSN, err)
		}
		lgr.Printf("[INFO] snapshot stored in sqlite %s", cfg.DSN)
		return s, func() {
			if err := s.Close(); err != nil {
				lgr.Printf("[WARN] failed to close snapshot db: %v", err)
			}
		}, nil
	default:
		s, err := snapshot.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file store %s: %w", cfg.Path, err)
		}
		lgr.Printf("[INFO] snapshot stored in %s", cfg.Path)
		return s, func() {}, nil
	}
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
