// Package asset models the virtual files that flow through a pipeline and
// the filesystem edges of a build: selecting sources by glob and writing
// results under the output root.
package asset

import "bytes"

// Segment records which source file produced a line range of an asset.
// Concatenation keeps these so later units can name the original file
// when they report a position in the combined output.
type Segment struct {
	Source    string
	StartLine int // 1-based line in the asset where this source begins
	Lines     int
}

// Asset is a virtual file: a path relative to its output directory, the
// content bytes and, optionally, a source map. Values are never mutated in
// place; the With* helpers return modified copies.
type Asset struct {
	Path      string
	Source    string
	Contents  []byte
	SourceMap []byte
	Segments  []Segment
}

// New creates an asset whose source identity equals its path.
func New(path string, contents []byte) Asset {
	return Asset{Path: path, Source: path, Contents: contents}
}

// WithContents returns a copy with replaced contents.
func (a Asset) WithContents(b []byte) Asset {
	a.Contents = b
	return a
}

// WithPath returns a copy with a new virtual path (source identity is kept).
func (a Asset) WithPath(p string) Asset {
	a.Path = p
	return a
}

// WithSourceMap returns a copy carrying the given source map.
func (a Asset) WithSourceMap(m []byte) Asset {
	a.SourceMap = m
	return a
}

// Locate maps a 1-based line of this asset back to the originating source
// file and its local line. Assets without segments map to themselves.
func (a Asset) Locate(line int) (string, int) {
	for _, s := range a.Segments {
		if line >= s.StartLine && line < s.StartLine+s.Lines {
			return s.Source, line - s.StartLine + 1
		}
	}
	return a.Source, line
}

// LineCount returns the number of lines in the contents, counting a trailing
// partial line.
func (a Asset) LineCount() int {
	if len(a.Contents) == 0 {
		return 0
	}
	n := bytes.Count(a.Contents, []byte{'\n'})
	if a.Contents[len(a.Contents)-1] != '\n' {
		n++
	}
	return n
}

// Set is an ordered collection of assets.
type Set []Asset

// Paths returns the virtual paths in order.
func (s Set) Paths() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = a.Path
	}
	return out
}

// Find returns the asset at path.
func (s Set) Find(path string) (Asset, bool) {
	for _, a := range s {
		if a.Path == path {
			return a, true
		}
	}
	return Asset{}, false
}
