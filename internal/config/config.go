// Package config loads, defaults and validates assetpipe.yaml.
package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Load reads the configuration file at path. Variables from .env.local and
// .env next to it are loaded first without overriding the environment, then
// ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve config path").Build()
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "configuration file not found").
			WithContext("path", path).Build()
	}
	root := filepath.Dir(abs)
	loadEnvFiles(root)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").WithContext("path", path).Build()
	}
	return parse(data, root)
}

// LoadOptional behaves like Load but falls back to the defaults, rooted at
// the directory of path, when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		abs, aerr := filepath.Abs(filepath.Dir(path))
		if aerr != nil {
			return nil, ferrors.WrapError(aerr, ferrors.CategoryConfig, "resolve project root").Build()
		}
		loadEnvFiles(abs)
		c := Default()
		c.Root = abs
		return c, nil
	}
	return Load(path)
}

func parse(data []byte, root string) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var c Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse config").Build()
	}
	c.Root = root

	nres, err := Normalize(&c)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "normalize config").Build()
	}
	for _, w := range nres.Warnings {
		slog.Warn("Config normalization", slog.String("detail", w))
	}
	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadEnvFiles(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Could not load environment file", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		slog.Debug("Loaded environment file", slog.String("path", p))
	}
}

// OutputRoot returns the absolute output directory.
func (c *Config) OutputRoot() string {
	return filepath.Join(c.Root, filepath.FromSlash(c.Output.Dir))
}

// SourceRoot returns the absolute source directory.
func (c *Config) SourceRoot() string {
	return filepath.Join(c.Root, filepath.FromSlash(c.Source.Dir))
}

// HistoryPath returns the absolute history database path.
func (c *Config) HistoryPath() string {
	if filepath.IsAbs(c.History.Path) {
		return c.History.Path
	}
	return filepath.Join(c.Root, filepath.FromSlash(c.History.Path))
}

// Init writes a commented default configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create config directory").Build()
		}
	}
	if err := os.WriteFile(path, []byte(defaultTemplate), 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write config file").WithContext("path", path).Build()
	}
	return nil
}

const defaultTemplate = `# assetpipe configuration. Paths and globs are relative to this file.
version: "1"

source:
  dir: src           # roots the default globs; globs written here are used as is
output:
  dir: dist          # removed and rebuilt by every full sequence

server:
  host: localhost
  port: 3000
  live_reload: true

markup:
  patterns: ["src/**/*.html"]
  collapse_whitespace: true   # production builds only

styles:
  patterns: ["src/styles/**/*.css"]
  bundle: main.css
  # targets: [chrome58, firefox57, safari11, edge16]
  cascade: false
  level: 2           # 1: whitespace and comments, 2: also merge rules

scripts:
  components: ["src/js/components/**/*.js"]
  entry: src/js/main.js
  bundle: app.js
  target: es2015
  watch: ["src/js/**/*.js"]

images:
  patterns:
    - src/images/**/*.jpg
    - src/images/**/*.png
    - src/images/*.svg
    - src/images/**/*.jpeg
  dest: images
  jpeg_quality: 85
  # commands:
  #   .png: [pngquant, "-"]

sprites:
  patterns: ["src/images/svg/**/*.svg"]
  dest: images
  sprite: sprite.svg

resources:
  patterns: ["src/resources/**"]
  dest: ""

watch:
  debounce: 100ms

metrics:
  enabled: false
  path: /metrics

history:
  enabled: true
  path: .assetpipe/history.db

# Additional pipelines built from named units:
# pipelines:
#   - name: fonts
#     sources: ["src/fonts/**/*.woff2"]
#     dest: fonts
#     watch: true
#     units:
#       - unit: copy
`
