// Package pipeline runs one source selection through an ordered list of
// transformation units and writes the result under the output root.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// Pipeline is a named selection of sources plus the units applied to them.
// Dest is the sub directory of the output root that receives the result.
type Pipeline struct {
	Name    string
	Sources []string
	Units   []transform.Unit
	Dest    string
}

// Env is what a pipeline needs from the build around it.
type Env struct {
	// Root is the project directory sources are resolved against.
	Root string
	// Output is the absolute output root.
	Output string
	// Ledger, when set, enforces that pipelines write disjoint paths.
	Ledger *asset.Ledger
	Logger *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Result summarises one successful run.
type Result struct {
	Pipeline string
	Inputs   int
	// Written are output-root relative slash paths.
	Written  []string
	Duration time.Duration
}

// UnitNames lists the units in execution order.
func (p *Pipeline) UnitNames() []string {
	names := make([]string, len(p.Units))
	for i, u := range p.Units {
		names[i] = u.Name()
	}
	return names
}

// Run selects the sources, applies every unit in order and writes the
// outcome. The whole set is transformed in memory first, so a failing unit
// leaves the output exactly as it was.
func (p *Pipeline) Run(ctx context.Context, env Env) (*Result, error) {
	start := time.Now()
	log := env.logger().With(logfields.Pipeline(p.Name))

	set, err := asset.Select(env.Root, p.Sources)
	if err != nil {
		return nil, err
	}
	res := &Result{Pipeline: p.Name, Inputs: len(set)}
	if len(set) == 0 {
		log.Debug("No sources matched")
		res.Duration = time.Since(start)
		return res, nil
	}

	for _, u := range p.Units {
		if err := ctx.Err(); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "pipeline canceled").
				WithContext("pipeline", p.Name).Build()
		}
		next, err := u.Apply(ctx, set)
		if err != nil {
			return nil, p.unitError(u, err)
		}
		log.Debug("Unit applied", logfields.Unit(u.Name()), logfields.Count(len(next)))
		set = next
	}

	if err := env.Ledger.Claim(p.Name, outputPaths(p.Dest, set)); err != nil {
		return nil, err
	}
	written, err := asset.Write(env.Output, p.Dest, set)
	if err != nil {
		return nil, err
	}
	res.Written = written
	res.Duration = time.Since(start)
	log.Debug("Pipeline complete", logfields.Count(len(written)),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}

func (p *Pipeline) unitError(u transform.Unit, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "pipeline canceled").
			WithContext("pipeline", p.Name).WithContext("unit", u.Name()).Build()
	}
	b := ferrors.WrapError(err, ferrors.CategoryTransform, "transform failed").
		WithContext("pipeline", p.Name).
		WithContext("unit", u.Name())
	if te, ok := transform.AsError(err); ok {
		b = b.WithContext("asset", te.Asset)
		if te.Line > 0 {
			b = b.WithContext("line", te.Line).WithContext("column", te.Column)
		}
		if te.Syntax {
			b = b.WithContext("syntax", true)
		}
	}
	return b.Build()
}

func outputPaths(dest string, set asset.Set) []string {
	out := make([]string, len(set))
	for i, a := range set {
		out[i] = asset.OutputPath(dest, a.Path)
	}
	return out
}

// WarnEmpty logs a warning for every pipeline whose sources match nothing.
// A missing glob directory is not an error during a build, only a likely
// configuration mistake worth surfacing once at startup.
func WarnEmpty(logger *slog.Logger, root string, pipelines []*Pipeline) int {
	if logger == nil {
		logger = slog.Default()
	}
	empty := 0
	for _, p := range pipelines {
		set, err := asset.Select(root, p.Sources)
		if err != nil || len(set) > 0 {
			continue
		}
		empty++
		logger.Warn("Pipeline sources match no files", logfields.Pipeline(p.Name), slog.Any("patterns", p.Sources))
	}
	return empty
}
