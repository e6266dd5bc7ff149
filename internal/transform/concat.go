package transform

import (
	"bytes"
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

type concat struct {
	name string
}

// Concat joins all inputs, newline separated and in input order, into a
// single asset at name. Source maps carried by the inputs are merged.
func Concat(name string) Unit {
	return &concat{name: name}
}

func (c *concat) Name() string { return "concat" }

func (c *concat) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	if len(in) == 0 {
		return asset.Set{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	segments := make([]asset.Segment, 0, len(in))
	parts := make([]mapPart, 0, len(in))
	withMaps := false
	line := 1
	for i, a := range in {
		if i > 0 {
			buf.WriteByte('\n')
		}
		newlines := bytes.Count(a.Contents, []byte{'\n'})
		segments = append(segments, asset.Segment{Source: a.Source, StartLine: line, Lines: newlines + 1})
		parts = append(parts, mapPart{asset: a, lineOffset: line - 1})
		if a.SourceMap != nil {
			withMaps = true
		}
		buf.Write(a.Contents)
		line += newlines + 1
	}

	out := asset.Asset{Path: c.name, Source: c.name, Contents: buf.Bytes(), Segments: segments}
	if withMaps {
		m, err := mergeMaps(c.name, parts)
		if err != nil {
			return nil, &Error{Unit: c.Name(), Asset: c.name, Message: "merge source maps", Err: err}
		}
		out.SourceMap = m
	}
	return asset.Set{out}, nil
}
