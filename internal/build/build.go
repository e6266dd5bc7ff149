package build

import (
	"fmt"
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/task"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

// Mode selects the development or production flavour of the tasks.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// Entry points, named after the sequences they run.
const (
	EntryDefault = "default"
	EntryBuild   = "build"
)

// Option configures Tasks.
type Option func(*Project)

// WithLogger sets the logger handed to every pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(p *Project) {
		if l != nil {
			p.env.Logger = l
		}
	}
}

// Project is the task registry of one configuration in one mode, plus what
// is needed to watch it.
type Project struct {
	Config   *config.Config
	Mode     Mode
	Registry *task.Registry

	env       pipeline.Env
	pipelines []*pipeline.Pipeline
	order     []string
	watched   map[string][]string
}

// Tasks builds the registry for cfg: clean, the built-in pipelines and any
// configured custom pipelines enabled for mode. notify may be nil; it is
// told about every file a pipeline task rewrites.
func Tasks(cfg *config.Config, mode Mode, notify task.Notifier, opts ...Option) (*Project, error) {
	if mode != Development && mode != Production {
		return nil, ferrors.ValidationError(fmt.Sprintf("unknown mode %q", mode)).Build()
	}
	p := &Project{
		Config:   cfg,
		Mode:     mode,
		Registry: task.NewRegistry(),
		env: pipeline.Env{
			Root:   cfg.Root,
			Output: cfg.OutputRoot(),
			Ledger: asset.NewLedger(),
			Logger: slog.Default(),
		},
		watched: map[string][]string{},
	}
	for _, o := range opts {
		o(p)
	}

	if err := p.add(task.Clean(p.env.Output, p.env.Ledger), nil); err != nil {
		return nil, err
	}
	builtins, err := p.builtinPipelines()
	if err != nil {
		return nil, err
	}
	for _, b := range builtins {
		if err := p.addPipeline(b.pipeline, b.watch, notify); err != nil {
			return nil, err
		}
	}
	if err := p.customPipelines(notify); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) add(t task.Task, watchPatterns []string) error {
	if err := p.Registry.Register(t); err != nil {
		return err
	}
	p.order = append(p.order, t.Name())
	if len(watchPatterns) > 0 {
		p.watched[t.Name()] = watchPatterns
	}
	return nil
}

func (p *Project) addPipeline(pl *pipeline.Pipeline, watchPatterns []string, notify task.Notifier) error {
	if err := p.add(task.FromPipeline(pl, p.env, notify), watchPatterns); err != nil {
		return err
	}
	p.pipelines = append(p.pipelines, pl)
	return nil
}

type builtin struct {
	pipeline *pipeline.Pipeline
	watch    []string
}

func (p *Project) builtinPipelines() ([]builtin, error) {
	cfg := p.Config
	dev := p.Mode == Development

	html := []transform.Unit{transform.Passthrough()}
	if !dev {
		html = []transform.Unit{transform.HTMLMinify(transform.HTMLMinifyOptions{CollapseWhitespace: cfg.CollapseWhitespace()})}
	}

	transpile, err := transform.JSTranspile(transform.JSTranspileOptions{Target: cfg.Scripts.Target})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "scripts task").Build()
	}
	scripts := []transform.Unit{transpile, transform.Concat(cfg.Scripts.Bundle)}

	prefix, err := transform.CSSPrefix(transform.CSSPrefixOptions{Targets: cfg.Styles.Targets, Cascade: cfg.Styles.Cascade})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "styles task").Build()
	}
	optimize, err := transform.CSSOptimize(transform.CSSOptimizeOptions{Level: cfg.Styles.Level})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "styles task").Build()
	}
	styles := []transform.Unit{transform.Concat(cfg.Styles.Bundle), prefix}

	// Development output stays readable; production minifies.
	if dev {
		scripts = withSourceMaps(scripts)
		styles = withSourceMaps(styles)
	} else {
		scripts = append(scripts, transform.JSMinify())
		styles = append(styles, optimize)
	}

	images, err := transform.ImageCompress(transform.ImageCompressOptions{
		JPEGQuality: cfg.Images.JPEGQuality,
		Commands:    cfg.Images.Commands,
		Workers:     cfg.Images.Workers,
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "images task").Build()
	}

	scriptSources := append(slices.Clone(cfg.Scripts.Components), cfg.Scripts.Entry)
	scriptWatch := cfg.Scripts.Watch
	if len(scriptWatch) == 0 {
		scriptWatch = scriptSources
	}

	return []builtin{
		{
			pipeline: &pipeline.Pipeline{Name: "resources", Sources: cfg.Resources.Patterns, Units: []transform.Unit{transform.Passthrough()}, Dest: cfg.Resources.Dest},
			watch:    cfg.Resources.Patterns,
		},
		{
			pipeline: &pipeline.Pipeline{Name: "html", Sources: cfg.Markup.Patterns, Units: html},
			watch:    cfg.Markup.Patterns,
		},
		{
			pipeline: &pipeline.Pipeline{Name: "scripts", Sources: scriptSources, Units: scripts},
			watch:    scriptWatch,
		},
		{
			pipeline: &pipeline.Pipeline{Name: "styles", Sources: cfg.Styles.Patterns, Units: styles},
			watch:    cfg.Styles.Patterns,
		},
		{
			pipeline: &pipeline.Pipeline{Name: "images", Sources: cfg.Images.Patterns, Units: []transform.Unit{images}, Dest: cfg.Images.Dest},
			watch:    cfg.Images.Patterns,
		},
		{
			pipeline: &pipeline.Pipeline{
				Name:    "sprites",
				Sources: cfg.Sprites.Patterns,
				Units:   []transform.Unit{transform.SVGSprite(transform.SVGSpriteOptions{Sprite: cfg.Sprites.Sprite})},
				Dest:    cfg.Sprites.Dest,
			},
			watch: cfg.Sprites.Patterns,
		},
	}, nil
}

// withSourceMaps brackets units with source map tracking and the final
// inline comment.
func withSourceMaps(units []transform.Unit) []transform.Unit {
	out := make([]transform.Unit, 0, len(units)+2)
	out = append(out, transform.SourceMapInit())
	out = append(out, units...)
	return append(out, transform.SourceMapWrite())
}

func (p *Project) customPipelines(notify task.Notifier) error {
	reg := transform.NewRegistry()
	for _, pc := range p.Config.Pipelines {
		if len(pc.Modes) > 0 && !slices.Contains(pc.Modes, string(p.Mode)) {
			continue
		}
		units := make([]transform.Unit, 0, len(pc.Units))
		for _, uc := range pc.Units {
			u, err := reg.Build(uc.Unit, uc.Options)
			if err != nil {
				return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid pipeline unit").
					WithContext("pipeline", pc.Name).WithContext("unit", uc.Unit).Build()
			}
			units = append(units, u)
		}
		var w []string
		if pc.Watch {
			w = pc.Sources
		}
		pl := &pipeline.Pipeline{Name: pc.Name, Sources: pc.Sources, Units: units, Dest: pc.Dest}
		if err := p.addPipeline(pl, w, notify); err != nil {
			return err
		}
	}
	return nil
}

// Entry names the sequence the project's mode runs.
func (p *Project) Entry() string {
	if p.Mode == Production {
		return EntryBuild
	}
	return EntryDefault
}

// SequenceNames lists the full sequence: clean first, then every pipeline
// in registration order.
func (p *Project) SequenceNames() []string { return slices.Clone(p.order) }

// Sequence resolves the full sequence.
func (p *Project) Sequence() task.Sequence {
	seq, err := p.Registry.Sequence(p.order...)
	if err != nil {
		// order only holds registered names
		panic(err)
	}
	return seq
}

// Pipelines returns the pipelines of the full sequence, for startup checks.
func (p *Project) Pipelines() []*pipeline.Pipeline { return slices.Clone(p.pipelines) }

// WarnEmpty logs every pipeline whose sources match nothing.
func (p *Project) WarnEmpty() int {
	return pipeline.WarnEmpty(p.env.Logger, p.env.Root, p.pipelines)
}

// WatchBindings maps each watched task to the globs that retrigger it.
func (p *Project) WatchBindings() []watch.Binding {
	var out []watch.Binding
	for _, name := range p.order {
		patterns, ok := p.watched[name]
		if !ok {
			continue
		}
		t, _ := p.Registry.Get(name)
		out = append(out, watch.Binding{Name: name, Patterns: patterns, Task: t})
	}
	return out
}

// DevelopmentSequence builds the development project and its sequence.
func DevelopmentSequence(cfg *config.Config, notify task.Notifier, opts ...Option) (*Project, task.Sequence, error) {
	p, err := Tasks(cfg, Development, notify, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Sequence(), nil
}

// ProductionSequence builds the production project and its sequence.
func ProductionSequence(cfg *config.Config, opts ...Option) (*Project, task.Sequence, error) {
	p, err := Tasks(cfg, Production, nil, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Sequence(), nil
}
