package commands

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/devserver"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

// DevCmd runs the development sequence, then serves the output and reruns
// tasks whose sources change.
type DevCmd struct {
	Host         string `help:"Override server.host."`
	Port         int    `help:"Override server.port."`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable live reload notifications and script injection."`
}

func (d *DevCmd) Run(g *Global, cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := setup(g, cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := rt.newServer(d.Host, d.Port, !d.NoLiveReload)
	project, seq, err := build.DevelopmentSequence(rt.cfg, srv, build.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	project.WarnEmpty()

	_, buildErr := rt.scheduler.Run(ctx, project.Entry(), seq)
	if ctx.Err() != nil {
		return nil
	}
	srv.BuildComplete(buildErr)
	if buildErr != nil {
		// Keep serving; the next successful rerun recovers.
		rt.logger.Error("Initial build failed; serving last output", logfields.Error(buildErr))
	}
	return serveAndWatch(ctx, rt, project, srv)
}

// newServer creates the dev server for rt's configuration; zero host and
// port keep the configured values.
func (r *runtime) newServer(host string, port int, liveReload bool) *devserver.Server {
	if host == "" {
		host = r.cfg.Server.Host
	}
	if port == 0 {
		port = r.cfg.Server.Port
	}
	opts := devserver.Options{
		Root:       r.cfg.OutputRoot(),
		Addr:       net.JoinHostPort(host, strconv.Itoa(port)),
		LiveReload: liveReload && r.cfg.LiveReloadEnabled(),
		Recorder:   r.recorder,
		Logger:     r.logger,
	}
	if r.registry != nil {
		opts.Metrics = metrics.HTTPHandler(r.registry)
		opts.MetricsPath = r.cfg.Metrics.Path
	}
	return devserver.New(opts)
}

// serveAndWatch serves the output root and reruns bound tasks on change
// until ctx is canceled.
func serveAndWatch(ctx context.Context, rt *runtime, project *build.Project, srv *devserver.Server) error {
	if err := os.MkdirAll(rt.cfg.OutputRoot(), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output root").Build()
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			rt.logger.Warn("Dev server shutdown", logfields.Error(err))
		}
	}()

	bindings := project.WatchBindings()
	w, err := watch.NewWatcher(rt.cfg.Root, bindings,
		watch.WithLogger(rt.logger),
		watch.WithSkipDirs(rt.cfg.OutputRoot()))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "start watcher").Build()
	}
	defer func() { _ = w.Close() }()

	disp := watch.NewDispatcher(bindings, rt.cfg.Watch.DebounceInterval,
		watch.WithReporter(srv),
		watch.WithRecorder(rt.recorder),
		watch.WithDispatchLogger(rt.logger))

	rt.logger.Info("Watching for changes", logfields.Count(len(bindings)), logfields.Addr(srv.URL()))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return disp.Run(gctx, w.Events()) })
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.logger.Info("Shutting down")
	return nil
}
