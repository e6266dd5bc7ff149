package commands

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"git.home.luguber.info/inful/assetpipe/internal/build"
)

// RunCmd runs the named tasks, in the order given, without cleaning first
// unless "clean" is one of them.
type RunCmd struct {
	Tasks      []string `arg:"" name:"task" help:"Task names, see 'assetpipe tasks'."`
	Production bool     `short:"p" help:"Use the production variant of the tasks."`
}

func (r *RunCmd) Run(g *Global, cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := setup(g, cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	mode := build.Development
	if r.Production {
		mode = build.Production
	}
	project, err := build.Tasks(rt.cfg, mode, nil, build.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	seq, err := project.Registry.Sequence(r.Tasks...)
	if err != nil {
		return err
	}
	_, err = rt.scheduler.Run(ctx, strings.Join(r.Tasks, ","), seq)
	return err
}
