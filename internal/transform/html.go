package transform

import (
	"context"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

// HTMLMinifyOptions configures markup minification.
type HTMLMinifyOptions struct {
	CollapseWhitespace bool
}

type htmlMinify struct {
	m *minify.M
}

// HTMLMinify minifies markup, including inline styles, scripts and SVG.
func HTMLMinify(opts HTMLMinifyOptions) Unit {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepWhitespace:   !opts.CollapseWhitespace,
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return &htmlMinify{m: m}
}

func (h *htmlMinify) Name() string { return "html-minify" }

func (h *htmlMinify) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	return eachAsset(ctx, in, func(a asset.Asset) (asset.Asset, error) {
		out, err := h.m.Bytes("text/html", a.Contents)
		if err != nil {
			return asset.Asset{}, minifyError(h.Name(), a, err)
		}
		return a.WithContents(out), nil
	})
}
