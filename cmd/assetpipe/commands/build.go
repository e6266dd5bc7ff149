package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/assetpipe/internal/build"
)

// BuildCmd runs the production sequence.
type BuildCmd struct {
	Serve bool `help:"Serve and watch the output after a successful build."`
}

func (b *BuildCmd) Run(g *Global, cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := setup(g, cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !b.Serve {
		project, seq, err := build.ProductionSequence(rt.cfg, build.WithLogger(rt.logger))
		if err != nil {
			return err
		}
		project.WarnEmpty()
		_, err = rt.scheduler.Run(ctx, project.Entry(), seq)
		return err
	}

	srv := rt.newServer("", 0, true)
	project, err := build.Tasks(rt.cfg, build.Production, srv, build.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	project.WarnEmpty()
	if _, err := rt.scheduler.Run(ctx, project.Entry(), project.Sequence()); err != nil {
		return err
	}
	srv.BuildComplete(nil)
	return serveAndWatch(ctx, rt, project, srv)
}
