package config

import (
	"path"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// BuiltinTasks are the task names reserved by the standard sequences.
var BuiltinTasks = []string{"clean", "resources", "html", "scripts", "styles", "images", "sprites"}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ferrors.ConfigError("server.port out of range").WithContext("port", c.Server.Port).Build()
	}
	if c.Styles.Level != 1 && c.Styles.Level != 2 {
		return ferrors.ConfigError("styles.level must be 1 or 2").WithContext("level", c.Styles.Level).Build()
	}
	if len(c.Styles.Targets) > 0 {
		if _, err := transform.ParseEngines(c.Styles.Targets); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid styles.targets").Build()
		}
	}
	if _, err := transform.ParseTarget(c.Scripts.Target); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid scripts.target").Build()
	}
	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		return ferrors.ConfigError("images.jpeg_quality must be within 1..100").
			WithContext("jpeg_quality", c.Images.JPEGQuality).Build()
	}
	for ext, argv := range c.Images.Commands {
		if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
			return ferrors.ConfigError("images.commands entry is empty").WithContext("ext", ext).Build()
		}
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") || strings.HasPrefix(c.Metrics.Path, "/__assetpipe") {
		return ferrors.ConfigError("metrics.path must be absolute and outside /__assetpipe").
			WithContext("path", c.Metrics.Path).Build()
	}
	for _, single := range []struct{ key, value string }{
		{"styles.bundle", c.Styles.Bundle},
		{"scripts.bundle", c.Scripts.Bundle},
		{"sprites.sprite", c.Sprites.Sprite},
	} {
		if err := validateOutputName(single.key, single.value); err != nil {
			return err
		}
	}
	if err := c.validateOutputsDisjoint(); err != nil {
		return err
	}
	return c.validatePipelines()
}

func (c *Config) validatePaths() error {
	out := c.Output.Dir
	if out == "" || out == "." {
		return ferrors.ConfigError("output.dir must name a directory below the project root").Build()
	}
	if filepath.IsAbs(out) || out == ".." || strings.HasPrefix(out, "../") {
		return ferrors.ConfigError("output.dir must stay inside the project root").WithContext("dir", out).Build()
	}
	src := c.Source.Dir
	if src == "" {
		return ferrors.ConfigError("source.dir is empty").Build()
	}
	if within(out, src) {
		return ferrors.ConfigError("output.dir must not be inside source.dir").
			WithContext("output", out).WithContext("source", src).Build()
	}
	if src != "." && within(src, out) {
		return ferrors.ConfigError("source.dir must not be inside output.dir").
			WithContext("output", out).WithContext("source", src).Build()
	}
	return nil
}

// within reports whether slash path p equals dir or lies below it.
func within(p, dir string) bool {
	if dir == "." {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

func validateOutputName(key, name string) error {
	clean := path.Clean(filepath.ToSlash(name))
	if name == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return ferrors.ConfigError("invalid output file name").WithContext("key", key).WithContext("value", name).Build()
	}
	return nil
}

// validateOutputsDisjoint rejects fixed output files claimed by two tasks.
// Paths that depend on the source tree are checked again while building.
func (c *Config) validateOutputsDisjoint() error {
	owners := map[string]string{}
	claims := []struct{ owner, path string }{
		{"styles", path.Join(".", c.Styles.Bundle)},
		{"scripts", path.Join(".", c.Scripts.Bundle)},
		{"sprites", path.Join(c.Sprites.Dest, c.Sprites.Sprite)},
	}
	for _, p := range c.Pipelines {
		for _, u := range p.Units {
			if u.Unit != "concat" {
				continue
			}
			if name, ok := u.Options["name"].(string); ok {
				claims = append(claims, struct{ owner, path string }{p.Name, path.Join(p.Dest, name)})
			}
		}
	}
	for _, cl := range claims {
		if prev, dup := owners[cl.path]; dup && prev != cl.owner {
			return ferrors.ConfigError("output path produced by two pipelines").
				WithContext("path", cl.path).WithContext("owner", prev).WithContext("claimant", cl.owner).Build()
		}
		owners[cl.path] = cl.owner
	}
	return nil
}

func (c *Config) validatePipelines() error {
	names := map[string]bool{}
	for _, b := range BuiltinTasks {
		names[b] = true
	}
	reg := transform.NewRegistry()
	for _, p := range c.Pipelines {
		if p.Name == "" {
			return ferrors.ConfigError("pipeline without a name").Build()
		}
		if names[p.Name] {
			return ferrors.ConfigError("pipeline name already in use").WithContext("pipeline", p.Name).Build()
		}
		names[p.Name] = true
		if len(p.Sources) == 0 {
			return ferrors.ConfigError("pipeline has no sources").WithContext("pipeline", p.Name).Build()
		}
		if len(p.Units) == 0 {
			return ferrors.ConfigError("pipeline has no units").WithContext("pipeline", p.Name).Build()
		}
		for _, m := range p.Modes {
			if m != "development" && m != "production" {
				return ferrors.ConfigError("unknown pipeline mode").
					WithContext("pipeline", p.Name).WithContext("mode", m).Build()
			}
		}
		for _, u := range p.Units {
			if _, err := reg.Build(u.Unit, u.Options); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid pipeline unit").
					WithContext("pipeline", p.Name).WithContext("unit", u.Unit).Build()
			}
		}
	}
	return nil
}
