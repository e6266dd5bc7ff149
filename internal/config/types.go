package config

import "time"

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "assetpipe.yaml"

// Config is the project configuration. Every glob and directory is relative
// to Root, the directory holding the configuration file.
type Config struct {
	Version   string           `yaml:"version"`
	Source    SourceConfig     `yaml:"source"`
	Output    OutputConfig     `yaml:"output"`
	Server    ServerConfig     `yaml:"server"`
	Markup    MarkupConfig     `yaml:"markup"`
	Styles    StylesConfig     `yaml:"styles"`
	Scripts   ScriptsConfig    `yaml:"scripts"`
	Images    ImagesConfig     `yaml:"images"`
	Sprites   SpritesConfig    `yaml:"sprites"`
	Resources ResourcesConfig  `yaml:"resources"`
	Watch     WatchConfig      `yaml:"watch"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	History   HistoryConfig    `yaml:"history"`
	Pipelines []PipelineConfig `yaml:"pipelines,omitempty"`

	// Root is the absolute project directory.
	Root string `yaml:"-"`
}

// SourceConfig names the source tree; watchers observe it.
type SourceConfig struct {
	Dir string `yaml:"dir"`
}

// OutputConfig names the deployable output tree.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	LiveReload *bool  `yaml:"live_reload"`
}

// MarkupConfig configures the html task.
type MarkupConfig struct {
	Patterns           []string `yaml:"patterns"`
	CollapseWhitespace *bool    `yaml:"collapse_whitespace"` // production only
}

// StylesConfig configures the styles task.
type StylesConfig struct {
	Patterns []string `yaml:"patterns"`
	Bundle   string   `yaml:"bundle"`
	Targets  []string `yaml:"targets"`
	Cascade  bool     `yaml:"cascade"`
	Level    int      `yaml:"level"`
}

// ScriptsConfig configures the scripts task. Components are bundled before
// the entry file.
type ScriptsConfig struct {
	Components []string `yaml:"components"`
	Entry      string   `yaml:"entry"`
	Bundle     string   `yaml:"bundle"`
	Target     string   `yaml:"target"`
	// Watch overrides the globs that retrigger the task.
	Watch []string `yaml:"watch"`
}

// ImagesConfig configures the images task.
type ImagesConfig struct {
	Patterns    []string            `yaml:"patterns"`
	Dest        string              `yaml:"dest"`
	JPEGQuality int                 `yaml:"jpeg_quality"`
	Commands    map[string][]string `yaml:"commands"`
	Workers     int                 `yaml:"workers"`
}

// SpritesConfig configures the sprites task.
type SpritesConfig struct {
	Patterns []string `yaml:"patterns"`
	Dest     string   `yaml:"dest"`
	Sprite   string   `yaml:"sprite"`
}

// ResourcesConfig configures the resources copy task.
type ResourcesConfig struct {
	Patterns []string `yaml:"patterns"`
	Dest     string   `yaml:"dest"`
}

// WatchConfig configures change detection.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`

	DebounceInterval time.Duration `yaml:"-"`
}

// MetricsConfig toggles the Prometheus endpoint on the dev server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HistoryConfig configures the build history database.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PipelineConfig declares an additional pipeline built from named units.
type PipelineConfig struct {
	Name    string       `yaml:"name"`
	Sources []string     `yaml:"sources"`
	Dest    string       `yaml:"dest"`
	Units   []UnitConfig `yaml:"units"`
	// Modes limits the pipeline to development or production; empty means both.
	Modes []string `yaml:"modes"`
	Watch bool     `yaml:"watch"`
}

// UnitConfig names a transformation unit and its options.
type UnitConfig struct {
	Unit    string         `yaml:"unit"`
	Options map[string]any `yaml:"options"`
}

// Enabled reports whether b is set and true, falling back to def when unset.
func Enabled(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// LiveReloadEnabled reports whether browsers are notified of changes.
func (c *Config) LiveReloadEnabled() bool { return Enabled(c.Server.LiveReload, true) }

// HistoryEnabled reports whether build reports are persisted.
func (c *Config) HistoryEnabled() bool { return Enabled(c.History.Enabled, true) }

// CollapseWhitespace reports whether production markup is collapsed.
func (c *Config) CollapseWhitespace() bool { return Enabled(c.Markup.CollapseWhitespace, true) }
