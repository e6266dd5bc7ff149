package transform

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

// sourceMap is the v3 source map document.
type sourceMap struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

type mapping struct {
	genCol  int
	src     int
	srcLine int
	srcCol  int
	name    int
	hasSrc  bool
	hasName bool
}

const vlqChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func encodeVLQ(b *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		b.WriteByte(vlqChars[digit])
		if u == 0 {
			return
		}
	}
}

func decodeVLQ(s string, i int) (int, int, error) {
	shift, result := 0, 0
	for {
		if i >= len(s) {
			return 0, i, fmt.Errorf("truncated VLQ at %d", i)
		}
		c := strings.IndexByte(vlqChars, s[i])
		if c < 0 {
			return 0, i, fmt.Errorf("invalid VLQ character %q", s[i])
		}
		i++
		result += (c & 31) << shift
		if c&32 == 0 {
			break
		}
		shift += 5
	}
	if result&1 == 1 {
		return -(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

func decodeMappings(s string) ([][]mapping, error) {
	var lines [][]mapping
	src, srcLine, srcCol, name := 0, 0, 0, 0
	for _, lineStr := range strings.Split(s, ";") {
		var line []mapping
		genCol := 0
		for _, segStr := range strings.Split(lineStr, ",") {
			if segStr == "" {
				continue
			}
			var fields []int
			for i := 0; i < len(segStr); {
				v, next, err := decodeVLQ(segStr, i)
				if err != nil {
					return nil, err
				}
				fields = append(fields, v)
				i = next
			}
			genCol += fields[0]
			m := mapping{genCol: genCol}
			if len(fields) >= 4 {
				src += fields[1]
				srcLine += fields[2]
				srcCol += fields[3]
				m.src, m.srcLine, m.srcCol, m.hasSrc = src, srcLine, srcCol, true
			}
			if len(fields) >= 5 {
				name += fields[4]
				m.name, m.hasName = name, true
			}
			line = append(line, m)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func encodeMappings(lines [][]mapping) string {
	var b strings.Builder
	src, srcLine, srcCol, name := 0, 0, 0, 0
	for i, line := range lines {
		if i > 0 {
			b.WriteByte(';')
		}
		genCol := 0
		for j, m := range line {
			if j > 0 {
				b.WriteByte(',')
			}
			encodeVLQ(&b, m.genCol-genCol)
			genCol = m.genCol
			if !m.hasSrc {
				continue
			}
			encodeVLQ(&b, m.src-src)
			encodeVLQ(&b, m.srcLine-srcLine)
			encodeVLQ(&b, m.srcCol-srcCol)
			src, srcLine, srcCol = m.src, m.srcLine, m.srcCol
			if m.hasName {
				encodeVLQ(&b, m.name-name)
				name = m.name
			}
		}
	}
	return b.String()
}

// identityMap maps every line of contents to the same line of source.
func identityMap(source string, contents []byte) []byte {
	n := bytes.Count(contents, []byte{'\n'}) + 1
	lines := make([][]mapping, n)
	for i := range lines {
		lines[i] = []mapping{{genCol: 0, src: 0, srcLine: i, srcCol: 0, hasSrc: true}}
	}
	content := string(contents)
	sm := sourceMap{
		Version:        3,
		File:           path.Base(source),
		Sources:        []string{source},
		SourcesContent: []*string{&content},
		Names:          []string{},
		Mappings:       encodeMappings(lines),
	}
	data, _ := json.Marshal(sm)
	return data
}

type mapPart struct {
	asset      asset.Asset
	lineOffset int
}

// mergeMaps combines the maps of concatenated parts, each starting on its
// own line, into one map for file.
func mergeMaps(file string, parts []mapPart) ([]byte, error) {
	out := sourceMap{Version: 3, File: path.Base(file), Names: []string{}}
	srcIndex := map[string]int{}
	nameIndex := map[string]int{}
	var lines [][]mapping

	for _, p := range parts {
		raw := p.asset.SourceMap
		if raw == nil {
			raw = identityMap(p.asset.Source, p.asset.Contents)
		}
		var sm sourceMap
		if err := json.Unmarshal(raw, &sm); err != nil {
			return nil, fmt.Errorf("%s: %w", p.asset.Source, err)
		}
		srcRemap := make([]int, len(sm.Sources))
		for i, s := range sm.Sources {
			idx, ok := srcIndex[s]
			if !ok {
				idx = len(out.Sources)
				srcIndex[s] = idx
				out.Sources = append(out.Sources, s)
				var content *string
				if i < len(sm.SourcesContent) {
					content = sm.SourcesContent[i]
				}
				out.SourcesContent = append(out.SourcesContent, content)
			}
			srcRemap[i] = idx
		}
		nameRemap := make([]int, len(sm.Names))
		for i, n := range sm.Names {
			idx, ok := nameIndex[n]
			if !ok {
				idx = len(out.Names)
				nameIndex[n] = idx
				out.Names = append(out.Names, n)
			}
			nameRemap[i] = idx
		}

		decoded, err := decodeMappings(sm.Mappings)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.asset.Source, err)
		}
		for j, line := range decoded {
			target := p.lineOffset + j
			for len(lines) <= target {
				lines = append(lines, nil)
			}
			for _, m := range line {
				if m.hasSrc {
					if m.src >= len(srcRemap) {
						return nil, fmt.Errorf("%s: source index %d out of range", p.asset.Source, m.src)
					}
					m.src = srcRemap[m.src]
				}
				if m.hasName {
					if m.name >= len(nameRemap) {
						return nil, fmt.Errorf("%s: name index %d out of range", p.asset.Source, m.name)
					}
					m.name = nameRemap[m.name]
				}
				lines[target] = append(lines[target], m)
			}
		}
	}
	out.Mappings = encodeMappings(lines)
	return json.Marshal(out)
}

func mapKind(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".css":
		return "css"
	case ".js", ".mjs", ".cjs":
		return "js"
	default:
		return ""
	}
}

func inlineComment(p string, m []byte) string {
	url := "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(m)
	if mapKind(p) == "css" {
		return "/*# sourceMappingURL=" + url + " */"
	}
	return "//# sourceMappingURL=" + url
}

// withInputMap returns the contents with the asset's map appended as an
// inline comment so esbuild chains it into the map it produces.
func withInputMap(a asset.Asset) string {
	if a.SourceMap == nil || mapKind(a.Path) == "" {
		return string(a.Contents)
	}
	return string(a.Contents) + "\n" + inlineComment(a.Path, a.SourceMap) + "\n"
}

// SourceMapInit starts source map tracking: every script and stylesheet gets
// a map pointing at itself, which later units carry forward.
func SourceMapInit() Unit {
	return Func{UnitName: "sourcemap-init", Fn: func(ctx context.Context, in asset.Set) (asset.Set, error) {
		return eachAsset(ctx, in, func(a asset.Asset) (asset.Asset, error) {
			if mapKind(a.Path) == "" || a.SourceMap != nil {
				return a, nil
			}
			return a.WithSourceMap(identityMap(a.Source, a.Contents)), nil
		})
	}}
}

// SourceMapWrite appends the carried source map as an inline comment.
func SourceMapWrite() Unit {
	return Func{UnitName: "sourcemap", Fn: func(ctx context.Context, in asset.Set) (asset.Set, error) {
		return eachAsset(ctx, in, func(a asset.Asset) (asset.Asset, error) {
			if a.SourceMap == nil || mapKind(a.Path) == "" {
				return a, nil
			}
			body := bytes.TrimRight(a.Contents, "\n")
			out := make([]byte, 0, len(body)+len(a.SourceMap)*2)
			out = append(out, body...)
			out = append(out, '\n')
			out = append(out, inlineComment(a.Path, a.SourceMap)...)
			out = append(out, '\n')
			return a.WithContents(out), nil
		})
	}}
}
