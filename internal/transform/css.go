package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/parse/v2"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

// DefaultBrowserTargets is used when no prefix targets are configured.
var DefaultBrowserTargets = []string{"chrome58", "firefox57", "safari11", "edge16"}

// CSSPrefixOptions configures vendor prefixing.
type CSSPrefixOptions struct {
	Targets []string
	// Cascade is accepted for configuration compatibility; prefixed
	// declarations are never visually aligned.
	Cascade bool
}

type cssPrefix struct {
	engines []api.Engine
}

// CSSPrefix adds the vendor prefixes the target browsers need.
func CSSPrefix(opts CSSPrefixOptions) (Unit, error) {
	targets := opts.Targets
	if len(targets) == 0 {
		targets = DefaultBrowserTargets
	}
	engines, err := ParseEngines(targets)
	if err != nil {
		return nil, err
	}
	return &cssPrefix{engines: engines}, nil
}

func (p *cssPrefix) Name() string { return "css-prefix" }

func (p *cssPrefix) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	return eachAsset(ctx, in, func(a asset.Asset) (asset.Asset, error) {
		return esbuildTransform(p.Name(), a, api.TransformOptions{
			Loader:  api.LoaderCSS,
			Engines: p.engines,
		})
	})
}

// CSSOptimizeOptions configures stylesheet optimisation.
type CSSOptimizeOptions struct {
	// Level 1 removes whitespace and comments; level 2 also restructures
	// rules (merging, shorthand folding).
	Level int
}

type cssOptimize struct {
	level int
	m     *minify.M
}

// CSSOptimize minifies stylesheets at the given level.
func CSSOptimize(opts CSSOptimizeOptions) (Unit, error) {
	level := opts.Level
	if level == 0 {
		level = 2
	}
	if level != 1 && level != 2 {
		return nil, fmt.Errorf("css optimisation level must be 1 or 2, got %d", opts.Level)
	}
	m := minify.New()
	m.Add("text/css", &css.Minifier{KeepCSS2: true})
	return &cssOptimize{level: level, m: m}, nil
}

func (o *cssOptimize) Name() string { return "css-optimize" }

func (o *cssOptimize) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	return eachAsset(ctx, in, func(a asset.Asset) (asset.Asset, error) {
		if o.level == 2 {
			return esbuildTransform(o.Name(), a, api.TransformOptions{
				Loader:           api.LoaderCSS,
				MinifyWhitespace: true,
				MinifySyntax:     true,
			})
		}
		// A tracked map has to survive, which only esbuild can chain.
		if a.SourceMap != nil {
			return esbuildTransform(o.Name(), a, api.TransformOptions{
				Loader:           api.LoaderCSS,
				MinifyWhitespace: true,
			})
		}
		out, err := o.m.Bytes("text/css", a.Contents)
		if err != nil {
			return asset.Asset{}, minifyError(o.Name(), a, err)
		}
		return a.WithContents(out), nil
	})
}

// minifyError converts a tdewolff error into an Error.
func minifyError(unit string, a asset.Asset, err error) *Error {
	e := &Error{Unit: unit, Asset: a.Source, Err: err}
	var perr *parse.Error
	if errors.As(err, &perr) {
		src, line := a.Locate(perr.Line)
		e.Asset = src
		e.Line = line
		e.Column = perr.Column
		e.Message = perr.Message
		e.Syntax = true
	}
	return e
}
