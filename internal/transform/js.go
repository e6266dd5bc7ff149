package transform

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

// JSTranspileOptions configures per-file script transpilation.
type JSTranspileOptions struct {
	// Target is a language preset such as "es2015" (the default).
	Target string
}

type jsTranspile struct {
	target api.Target
}

// JSTranspile lowers modern syntax to the target language level, one file
// at a time so failures name the file they came from.
func JSTranspile(opts JSTranspileOptions) (Unit, error) {
	t, err := ParseTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	return &jsTranspile{target: t}, nil
}

func (j *jsTranspile) Name() string { return "js-transpile" }

func (j *jsTranspile) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	return eachAsset(ctx, in, func(a asset.Asset) (asset.Asset, error) {
		return esbuildTransform(j.Name(), a, api.TransformOptions{
			Loader: api.LoaderJS,
			Target: j.target,
		})
	})
}

type jsMinify struct{}

// JSMinify minifies whitespace, identifiers and syntax.
func JSMinify() Unit { return jsMinify{} }

func (jsMinify) Name() string { return "js-minify" }

func (m jsMinify) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	return eachAsset(ctx, in, func(a asset.Asset) (asset.Asset, error) {
		return esbuildTransform(m.Name(), a, api.TransformOptions{
			Loader:            api.LoaderJS,
			MinifyWhitespace:  true,
			MinifyIdentifiers: true,
			MinifySyntax:      true,
		})
	})
}
