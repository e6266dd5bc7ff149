package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/history"
)

// HistoryCmd prints the most recent builds.
type HistoryCmd struct {
	Limit int `short:"n" default:"10" help:"Number of builds to show."`

	Out io.Writer `kong:"-"`
}

func (h *HistoryCmd) Run(_ *Global, cli *CLI) error {
	cfg, err := config.LoadOptional(cli.Config)
	if err != nil {
		return err
	}
	if !cfg.HistoryEnabled() {
		return ferrors.ConfigError("build history is disabled").Build()
	}
	path := cfg.HistoryPath()
	if _, err := os.Stat(path); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "no build history yet").WithContext("path", path).Build()
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	out := h.Out
	if out == nil {
		out = os.Stdout
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tENTRY\tOUTCOME\tDURATION\tTASKS\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Entry, r.Outcome,
			r.Duration.Round(time.Millisecond), len(r.Tasks), r.Error)
	}
	return tw.Flush()
}
