package commands

import "git.home.luguber.info/inful/assetpipe/internal/config"

// InitCmd writes a commented default configuration.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(g *Global, cli *CLI) error {
	logger(g).Info("Initializing configuration", "path", cli.Config, "force", i.Force)
	return config.Init(cli.Config, i.Force)
}
