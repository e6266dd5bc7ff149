package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/history"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/scheduler"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"assetpipe.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Dev     DevCmd     `cmd:"" default:"1" help:"Build for development, then serve and rebuild on change (default)"`
	Build   BuildCmd   `cmd:"" help:"Run the production build"`
	Run     RunCmd     `cmd:"" help:"Run named tasks in order"`
	Tasks   TasksCmd   `cmd:"" help:"List the registered tasks"`
	Init    InitCmd    `cmd:"" help:"Write a default configuration file"`
	History HistoryCmd `cmd:"" help:"Show recent builds"`
}

// AfterApply runs after flag parsing; setup logging once. ASSETPIPE_LOG_LEVEL
// overrides the level unless --verbose is given.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if env := os.Getenv("ASSETPIPE_LOG_LEVEL"); env != "" {
		level = parseLevel(env, level)
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}

func parseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return def
	}
}

func logger(g *Global) *slog.Logger {
	if g != nil && g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// runtime bundles what every building command needs around a config.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	recorder  metrics.Recorder
	registry  *prom.Registry
	history   *history.Store
}

func (r *runtime) Close() {
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			r.logger.Warn("Failed to close history", "error", err)
		}
	}
}

// setup loads the configuration and wires metrics and build history into a
// scheduler. A missing configuration file falls back to the defaults.
func setup(g *Global, cli *CLI) (*runtime, error) {
	log := logger(g)
	cfg, err := config.LoadOptional(cli.Config)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: log, recorder: metrics.NoopRecorder{}}

	if cfg.Metrics.Enabled {
		rt.registry = prom.NewRegistry()
		rt.recorder = metrics.NewPrometheusRecorder(rt.registry)
	}

	opts := []scheduler.Option{scheduler.WithRecorder(rt.recorder)}
	if cfg.HistoryEnabled() {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			// History is a convenience; builds run without it.
			log.Warn("Build history unavailable", "path", cfg.HistoryPath(), "error", err)
		} else {
			rt.history = store
			opts = append(opts, scheduler.WithObserver(&history.Observer{Store: store, Logger: log}))
		}
	}
	rt.scheduler = scheduler.New(log, opts...)
	return rt, nil
}
