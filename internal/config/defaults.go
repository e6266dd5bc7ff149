package config

import (
	"path"
	"time"
)

const (
	defaultVersion  = "1"
	defaultDebounce = 100 * time.Millisecond
)

// Default returns a configuration reproducing the conventional layout:
// sources under src/, output under dist/. Default globs are rooted at
// source.dir.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

func applyDefaults(c *Config) {
	if c.Version == "" {
		c.Version = defaultVersion
	}
	if c.Source.Dir == "" {
		c.Source.Dir = "src"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "dist"
	}
	src := func(glob string) string { return path.Join(c.Source.Dir, glob) }

	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}

	if len(c.Markup.Patterns) == 0 {
		c.Markup.Patterns = []string{src("**/*.html")}
	}

	if len(c.Styles.Patterns) == 0 {
		c.Styles.Patterns = []string{src("styles/**/*.css")}
	}
	if c.Styles.Bundle == "" {
		c.Styles.Bundle = "main.css"
	}
	if c.Styles.Level == 0 {
		c.Styles.Level = 2
	}

	if len(c.Scripts.Components) == 0 {
		c.Scripts.Components = []string{src("js/components/**/*.js")}
	}
	if c.Scripts.Entry == "" {
		c.Scripts.Entry = src("js/main.js")
	}
	if c.Scripts.Bundle == "" {
		c.Scripts.Bundle = "app.js"
	}
	if c.Scripts.Target == "" {
		c.Scripts.Target = "es2015"
	}
	if len(c.Scripts.Watch) == 0 {
		c.Scripts.Watch = []string{src("js/**/*.js")}
	}

	if len(c.Images.Patterns) == 0 {
		c.Images.Patterns = []string{
			src("images/**/*.jpg"),
			src("images/**/*.png"),
			src("images/*.svg"),
			src("images/**/*.jpeg"),
		}
	}
	if c.Images.Dest == "" {
		c.Images.Dest = "images"
	}
	if c.Images.JPEGQuality == 0 {
		c.Images.JPEGQuality = 85
	}

	if len(c.Sprites.Patterns) == 0 {
		c.Sprites.Patterns = []string{src("images/svg/**/*.svg")}
	}
	if c.Sprites.Dest == "" {
		c.Sprites.Dest = "images"
	}
	if c.Sprites.Sprite == "" {
		c.Sprites.Sprite = "sprite.svg"
	}

	if len(c.Resources.Patterns) == 0 {
		c.Resources.Patterns = []string{src("resources/**")}
	}

	if c.Watch.Debounce == "" {
		c.Watch.Debounce = defaultDebounce.String()
		c.Watch.DebounceInterval = defaultDebounce
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.History.Path == "" {
		c.History.Path = ".assetpipe/history.db"
	}
}
