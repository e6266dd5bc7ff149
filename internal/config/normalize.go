package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// NormalizationResult captures adjustments & warnings from normalization pass.
type NormalizationResult struct{ Warnings []string }

// Normalize canonicalises paths, enumerations and durations in place.
// Values it cannot interpret are replaced by their defaults with a warning.
func Normalize(c *Config) (*NormalizationResult, error) {
	if c == nil {
		return nil, fmt.Errorf("config nil")
	}
	res := &NormalizationResult{}

	c.Source.Dir = cleanDir(c.Source.Dir)
	c.Output.Dir = cleanDir(c.Output.Dir)
	c.Images.Dest = cleanDest(c.Images.Dest)
	c.Sprites.Dest = cleanDest(c.Sprites.Dest)
	c.Resources.Dest = cleanDest(c.Resources.Dest)
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Scripts.Target = strings.ToLower(strings.TrimSpace(c.Scripts.Target))

	for i, t := range c.Styles.Targets {
		c.Styles.Targets[i] = strings.ToLower(strings.TrimSpace(t))
	}
	for ext, argv := range c.Images.Commands {
		norm := strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(norm, ".") {
			norm = "." + norm
		}
		if norm != ext {
			delete(c.Images.Commands, ext)
			c.Images.Commands[norm] = argv
		}
	}
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Dest = cleanDest(p.Dest)
		for j, m := range p.Modes {
			p.Modes[j] = strings.ToLower(strings.TrimSpace(m))
		}
	}

	if d := strings.TrimSpace(c.Watch.Debounce); d != "" {
		dur, err := time.ParseDuration(d)
		switch {
		case err != nil:
			res.Warnings = append(res.Warnings, fmt.Sprintf("watch.debounce: invalid duration %q, using %s", d, defaultDebounce))
			c.Watch.Debounce = defaultDebounce.String()
			c.Watch.DebounceInterval = defaultDebounce
		case dur < 0:
			res.Warnings = append(res.Warnings, fmt.Sprintf("watch.debounce: negative duration %q coerced to 0s", d))
			c.Watch.Debounce = "0s"
			c.Watch.DebounceInterval = 0
		default:
			c.Watch.Debounce = d
			c.Watch.DebounceInterval = dur
		}
	}
	return res, nil
}

func cleanDir(d string) string {
	d = strings.TrimSpace(d)
	if d == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(d))
}

// cleanDest makes an output sub directory relative; "" means the output root.
func cleanDest(d string) string {
	d = strings.Trim(strings.TrimSpace(filepath.ToSlash(d)), "/")
	if d == "" {
		return ""
	}
	d = path.Clean(d)
	if d == "." {
		return ""
	}
	return d
}
