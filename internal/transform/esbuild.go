package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var engineRe = regexp.MustCompile(`^([a-z]+)(\d+(?:\.\d+)*)$`)

// ParseEngines converts targets such as "chrome58" or "safari11.1" into
// esbuild engines.
func ParseEngines(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		m := engineRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(t)))
		if m == nil {
			return nil, fmt.Errorf("invalid browser target %q", t)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", m[1], t)
		}
		engines = append(engines, api.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

var jsTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a language preset name to an esbuild target.
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		return api.ES2015, nil
	}
	t, ok := jsTargets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown script target %q", name)
	}
	return t, nil
}

// esbuildTransform runs one esbuild transform over a and returns the result
// with the produced source map attached when the input carried one.
func esbuildTransform(unit string, a asset.Asset, opts api.TransformOptions) (asset.Asset, error) {
	opts.Sourcefile = a.Source
	opts.LogLevel = api.LogLevelSilent
	tracked := a.SourceMap != nil
	if tracked {
		opts.Sourcemap = api.SourceMapExternal
		opts.SourcesContent = api.SourcesContentInclude
	}

	res := api.Transform(withInputMap(a), opts)
	if len(res.Errors) > 0 {
		return asset.Asset{}, messageError(unit, a, res.Errors[0])
	}

	out := a.WithContents(res.Code)
	if tracked {
		out = out.WithSourceMap(res.Map)
	}
	out.Segments = nil
	return out, nil
}

// messageError converts an esbuild message into an Error naming the original
// source file of the failing line.
func messageError(unit string, a asset.Asset, msg api.Message) *Error {
	e := &Error{Unit: unit, Asset: a.Source, Message: msg.Text, Syntax: true}
	if msg.Location != nil {
		src, line := a.Locate(msg.Location.Line)
		e.Asset = src
		e.Line = line
		e.Column = msg.Location.Column + 1
	}
	return e
}
