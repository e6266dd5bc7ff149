package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

// SVGSpriteOptions configures the stack sprite.
type SVGSpriteOptions struct {
	// Sprite is the output path of the combined file.
	Sprite string
}

const spriteStyle = `:root>svg{display:none}:root>svg:target{display:block}`

type svgSprite struct {
	sprite string
}

// SVGSprite stacks every input SVG into one file. Each icon is a nested svg
// whose id is the file's base name, so sprite.svg#name renders that icon.
func SVGSprite(opts SVGSpriteOptions) Unit {
	name := opts.Sprite
	if name == "" {
		name = "sprite.svg"
	}
	return &svgSprite{sprite: name}
}

func (s *svgSprite) Name() string { return "svg-sprite" }

func (s *svgSprite) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	if len(in) == 0 {
		return asset.Set{}, nil
	}
	icons := make(asset.Set, len(in))
	copy(icons, in)
	sort.SliceStable(icons, func(i, j int) bool { return icons[i].Path < icons[j].Path })

	var buf bytes.Buffer
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">`)
	buf.WriteString("<style>" + spriteStyle + "</style>")

	var scratch []byte
	ids := make(map[string]string, len(icons))
	for _, a := range icons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(path.Base(a.Path), path.Ext(a.Path))
		if prev, dup := ids[id]; dup {
			return nil, &Error{Unit: s.Name(), Asset: a.Source,
				Message: fmt.Sprintf("icon id %q already used by %s", id, prev)}
		}
		ids[id] = a.Source

		icon, err := parseIcon(a.Contents)
		if err != nil {
			return nil, &Error{Unit: s.Name(), Asset: a.Source, Message: err.Error(), Syntax: true, Err: err}
		}
		buf.WriteString(`<svg id=`)
		buf.Write(xml.EscapeAttrVal(&scratch, []byte(id)))
		if icon.viewBox != "" {
			buf.WriteString(` viewBox=`)
			buf.Write(xml.EscapeAttrVal(&scratch, []byte(icon.viewBox)))
		}
		buf.WriteString(">")
		buf.Write(bytes.TrimSpace(icon.inner))
		buf.WriteString("</svg>")
	}
	buf.WriteString("</svg>\n")

	out := asset.Asset{Path: s.sprite, Source: s.sprite, Contents: buf.Bytes()}
	return asset.Set{out}, nil
}

type icon struct {
	viewBox string
	inner   []byte
}

// parseIcon finds the root svg element, its view box and the raw markup
// between its tags.
func parseIcon(data []byte) (icon, error) {
	// NewInput copies data; the lexer rewrites whitespace in attribute values.
	in := parse.NewInput(bytes.NewReader(data))
	l := xml.NewLexer(in)
	for {
		tt, _ := l.Next()
		switch tt {
		case xml.ErrorToken:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return icon{}, err
			}
			return icon{}, errors.New("no svg root element")
		case xml.StartTagToken:
			if name := localName(l.Text()); name != "svg" {
				return icon{}, fmt.Errorf("root element is <%s>, want <svg>", name)
			}
			return parseRoot(l, in, data)
		}
	}
}

// parseRoot reads the root element's attributes up to the end of its start
// tag.
func parseRoot(l *xml.Lexer, in *parse.Input, data []byte) (icon, error) {
	var ic icon
	var width, height string
	for {
		tt, _ := l.Next()
		switch tt {
		case xml.AttributeToken:
			val := attrValue(l.AttrVal())
			switch localName(l.Text()) {
			case "viewBox":
				ic.viewBox = val
			case "width":
				width = strings.TrimSuffix(val, "px")
			case "height":
				height = strings.TrimSuffix(val, "px")
			}
			continue
		case xml.StartTagCloseToken:
			begin := in.Offset()
			end := bytes.LastIndex(data, []byte("</svg>"))
			if end < begin {
				return icon{}, errors.New("unclosed <svg> root element")
			}
			ic.inner = data[begin:end]
		case xml.StartTagCloseVoidToken:
		default:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return icon{}, err
			}
			return icon{}, errors.New("unterminated <svg> start tag")
		}
		if ic.viewBox == "" && width != "" && height != "" {
			ic.viewBox = "0 0 " + width + " " + height
		}
		return ic, nil
	}
}

func localName(b []byte) string {
	if i := bytes.LastIndexByte(b, ':'); i >= 0 {
		b = b[i+1:]
	}
	return string(b)
}

func attrValue(b []byte) string {
	if n := len(b); n >= 2 && (b[0] == '"' || b[0] == '\'') && b[n-1] == b[0] {
		b = b[1 : n-1]
	}
	return string(b)
}
