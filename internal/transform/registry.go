package transform

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Options are the free-form settings of a unit declared in configuration.
type Options map[string]any

// Factory builds a unit from its options.
type Factory func(opts Options) (Unit, error)

// Registry resolves unit names used in configuration to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding every built-in unit.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.MustRegister("copy", func(Options) (Unit, error) { return Passthrough(), nil })
	r.MustRegister("concat", func(o Options) (Unit, error) {
		var cfg struct {
			Name string `yaml:"name"`
		}
		if err := o.decode(&cfg); err != nil {
			return nil, err
		}
		if cfg.Name == "" {
			return nil, fmt.Errorf("concat requires a name")
		}
		return Concat(cfg.Name), nil
	})
	r.MustRegister("html-minify", func(o Options) (Unit, error) {
		cfg := struct {
			CollapseWhitespace bool `yaml:"collapse_whitespace"`
		}{CollapseWhitespace: true}
		if err := o.decode(&cfg); err != nil {
			return nil, err
		}
		return HTMLMinify(HTMLMinifyOptions{CollapseWhitespace: cfg.CollapseWhitespace}), nil
	})
	r.MustRegister("css-prefix", func(o Options) (Unit, error) {
		var cfg struct {
			Targets []string `yaml:"targets"`
			Cascade bool     `yaml:"cascade"`
		}
		if err := o.decode(&cfg); err != nil {
			return nil, err
		}
		return CSSPrefix(CSSPrefixOptions{Targets: cfg.Targets, Cascade: cfg.Cascade})
	})
	r.MustRegister("css-optimize", func(o Options) (Unit, error) {
		var cfg struct {
			Level int `yaml:"level"`
		}
		if err := o.decode(&cfg); err != nil {
			return nil, err
		}
		return CSSOptimize(CSSOptimizeOptions{Level: cfg.Level})
	})
	r.MustRegister("js-transpile", func(o Options) (Unit, error) {
		var cfg struct {
			Target string `yaml:"target"`
		}
		if err := o.decode(&cfg); err != nil {
			return nil, err
		}
		return JSTranspile(JSTranspileOptions{Target: cfg.Target})
	})
	r.MustRegister("js-minify", func(Options) (Unit, error) { return JSMinify(), nil })
	r.MustRegister("sourcemap-init", func(Options) (Unit, error) { return SourceMapInit(), nil })
	r.MustRegister("sourcemap", func(Options) (Unit, error) { return SourceMapWrite(), nil })
	r.MustRegister("svg-sprite", func(o Options) (Unit, error) {
		var cfg struct {
			Sprite string `yaml:"sprite"`
		}
		if err := o.decode(&cfg); err != nil {
			return nil, err
		}
		return SVGSprite(SVGSpriteOptions{Sprite: cfg.Sprite}), nil
	})
	r.MustRegister("image-compress", func(o Options) (Unit, error) {
		var cfg struct {
			JPEGQuality int                 `yaml:"jpeg_quality"`
			Commands    map[string][]string `yaml:"commands"`
		}
		if err := o.decode(&cfg); err != nil {
			return nil, err
		}
		return ImageCompress(ImageCompressOptions{JPEGQuality: cfg.JPEGQuality, Commands: cfg.Commands})
	})
	return r
}

// Register adds a factory; names are unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("unit factory needs a name and a constructor")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("unit %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for built-ins; it panics on a duplicate.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Build constructs the named unit.
func (r *Registry) Build(name string, opts Options) (Unit, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", name)
	}
	u, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", name, err)
	}
	return u, nil
}

// Names lists registered units in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// decode maps the loose option map onto a typed struct through yaml so the
// same tags serve the configuration file and the unit.
func (o Options) decode(v any) error {
	if len(o) == 0 {
		return nil
	}
	data, err := yaml.Marshal(map[string]any(o))
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
