package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// TasksCmd lists the registered tasks in sequence order.
type TasksCmd struct {
	Production bool `short:"p" help:"List the production variant."`

	Out io.Writer `kong:"-"`
}

func (t *TasksCmd) Run(_ *Global, cli *CLI) error {
	cfg, err := config.LoadOptional(cli.Config)
	if err != nil {
		return err
	}
	mode := build.Development
	if t.Production {
		mode = build.Production
	}
	project, err := build.Tasks(cfg, mode, nil)
	if err != nil {
		return err
	}
	out := t.Out
	if out == nil {
		out = os.Stdout
	}
	units := map[string][]string{}
	for _, p := range project.Pipelines() {
		units[p.Name] = p.UnitNames()
	}
	for _, name := range project.SequenceNames() {
		line := name
		if u, ok := units[name]; ok {
			line += "\t" + strings.Join(u, " -> ")
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
