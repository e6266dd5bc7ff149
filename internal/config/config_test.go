package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, DefaultPath)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "dist", c.Output.Dir)
	assert.Equal(t, "main.css", c.Styles.Bundle)
	assert.Equal(t, "app.js", c.Scripts.Bundle)
	assert.Equal(t, "images", c.Sprites.Dest)
	assert.Equal(t, "sprite.svg", c.Sprites.Sprite)
	assert.Equal(t, 2, c.Styles.Level)
	assert.Equal(t, "es2015", c.Scripts.Target)
	assert.Equal(t, 3000, c.Server.Port)
	assert.Equal(t, 100*time.Millisecond, c.Watch.DebounceInterval)
	assert.True(t, c.LiveReloadEnabled())
	assert.True(t, c.HistoryEnabled())
	assert.True(t, c.CollapseWhitespace())
	require.NoError(t, c.Validate())
}

func TestLoadAppliesDefaultsAndRoot(t *testing.T) {
	p := writeConfig(t, "styles:\n  level: 1\nwatch:\n  debounce: 250ms\n")
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(p), c.Root)
	assert.Equal(t, 1, c.Styles.Level)
	assert.Equal(t, 250*time.Millisecond, c.Watch.DebounceInterval)
	assert.Equal(t, "src/js/main.js", c.Scripts.Entry)
	assert.Equal(t, filepath.Join(c.Root, "dist"), c.OutputRoot())
	assert.Equal(t, filepath.Join(c.Root, ".assetpipe", "history.db"), c.HistoryPath())
}

func TestDefaultGlobsFollowSourceDir(t *testing.T) {
	c, err := Load(writeConfig(t, "source:\n  dir: ./assets/\nstyles:\n  patterns: [\"lib/**/*.css\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, "assets", c.Source.Dir)
	assert.Equal(t, []string{"assets/**/*.html"}, c.Markup.Patterns)
	assert.Equal(t, "assets/js/main.js", c.Scripts.Entry)
	assert.Equal(t, []string{"assets/js/components/**/*.js"}, c.Scripts.Components)
	assert.Equal(t, []string{"assets/images/svg/**/*.svg"}, c.Sprites.Patterns)
	assert.Equal(t, []string{"assets/resources/**"}, c.Resources.Patterns)
	// explicit globs are kept as written
	assert.Equal(t, []string{"lib/**/*.css"}, c.Styles.Patterns)

	assert.Equal(t, []string{"src/styles/**/*.css"}, Default().Styles.Patterns)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("ASSETPIPE_TEST_PORT", "4100")
	p := writeConfig(t, "server:\n  port: ${ASSETPIPE_TEST_PORT}\n")
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 4100, c.Server.Port)
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	p := writeConfig(t, "output:\n  dir: ${ASSETPIPE_TEST_OUT}\nserver:\n  host: ${ASSETPIPE_TEST_HOST}\n")
	dir := filepath.Dir(p)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ASSETPIPE_TEST_OUT=public\nASSETPIPE_TEST_HOST=0.0.0.0\n"), 0o644))
	t.Setenv("ASSETPIPE_TEST_HOST", "127.0.0.1")
	t.Cleanup(func() { _ = os.Unsetenv("ASSETPIPE_TEST_OUT") })

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "public", c.Output.Dir)
	assert.Equal(t, "127.0.0.1", c.Server.Host)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "stylez:\n  level: 2\n"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoadOptionalFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := LoadOptional(filepath.Join(dir, DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, dir, c.Root)
	assert.Equal(t, "dist", c.Output.Dir)
}

func TestNormalizeDebounce(t *testing.T) {
	c := &Config{Watch: WatchConfig{Debounce: "soon"}}
	res, err := Normalize(c)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, defaultDebounce, c.Watch.DebounceInterval)

	c = &Config{Watch: WatchConfig{Debounce: "-1s"}, Images: ImagesConfig{Commands: map[string][]string{"PNG": {"pngquant"}}}}
	_, err = Normalize(c)
	require.NoError(t, err)
	assert.Zero(t, c.Watch.DebounceInterval)
	assert.Contains(t, c.Images.Commands, ".png")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty output":         func(c *Config) { c.Output.Dir = "." },
		"output escapes root":  func(c *Config) { c.Output.Dir = "../dist" },
		"output inside source": func(c *Config) { c.Output.Dir = "src/dist" },
		"source inside output": func(c *Config) { c.Source.Dir = "dist/src" },
		"bad level":            func(c *Config) { c.Styles.Level = 3 },
		"port range":           func(c *Config) { c.Server.Port = 70000 },
		"bad target":           func(c *Config) { c.Scripts.Target = "es3" },
		"bad browsers":         func(c *Config) { c.Styles.Targets = []string{"mosaic1"} },
		"jpeg quality":         func(c *Config) { c.Images.JPEGQuality = 101 },
		"overlapping bundles":  func(c *Config) { c.Scripts.Bundle = "main.css" },
		"escaping bundle":      func(c *Config) { c.Styles.Bundle = "../main.css" },
		"reserved pipeline": func(c *Config) {
			c.Pipelines = []PipelineConfig{{Name: "styles", Sources: []string{"x"}, Units: []UnitConfig{{Unit: "copy"}}}}
		},
		"unknown unit": func(c *Config) {
			c.Pipelines = []PipelineConfig{{Name: "fonts", Sources: []string{"x"}, Units: []UnitConfig{{Unit: "uglify"}}}}
		},
		"pipeline bundle overlap": func(c *Config) {
			c.Pipelines = []PipelineConfig{{Name: "vendor", Sources: []string{"x"}, Units: []UnitConfig{{Unit: "concat", Options: map[string]any{"name": "app.js"}}}}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}

	c := Default()
	c.Pipelines = []PipelineConfig{{Name: "fonts", Sources: []string{"src/fonts/**"}, Dest: "fonts", Units: []UnitConfig{{Unit: "copy"}}}}
	require.NoError(t, c.Validate())
}

func TestInitWritesLoadableDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, Init(p, false))

	c, err := Load(p)
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.Styles, c.Styles)
	assert.Equal(t, def.Scripts, c.Scripts)
	assert.Equal(t, def.Images.Patterns, c.Images.Patterns)
	assert.Equal(t, def.Watch, c.Watch)

	err = Init(p, false)
	require.Error(t, err)
	require.NoError(t, Init(p, true))
}
