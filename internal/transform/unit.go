// Package transform defines the Transformation Unit contract and the units
// used by the asset pipelines. Each unit maps an ordered asset set to a new
// set and knows nothing about the units before or after it.
package transform

import (
	"context"
	"errors"
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

// Unit is one step of a pipeline.
type Unit interface {
	Name() string
	Apply(ctx context.Context, in asset.Set) (asset.Set, error)
}

// Func adapts a function to the Unit interface.
type Func struct {
	UnitName string
	Fn       func(ctx context.Context, in asset.Set) (asset.Set, error)
}

func (f Func) Name() string { return f.UnitName }

func (f Func) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	return f.Fn(ctx, in)
}

// Error is a transformation failure tied to one asset. Line and Column are
// 1-based and zero when unknown.
type Error struct {
	Unit    string
	Asset   string
	Line    int
	Column  int
	Message string
	Syntax  bool
	Err     error
}

func (e *Error) Error() string {
	loc := e.Asset
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Asset, e.Line, e.Column)
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Unit, loc, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsSyntax reports whether the input could not be parsed.
func (e *Error) IsSyntax() bool { return e.Syntax }

// IsSyntax reports whether err carries a syntax Error.
func IsSyntax(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Syntax
}

// AsError extracts the transformation Error from a chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Passthrough returns a unit that forwards its input unchanged; copy
// pipelines consist of it alone.
func Passthrough() Unit {
	return Func{UnitName: "copy", Fn: func(_ context.Context, in asset.Set) (asset.Set, error) {
		return in, nil
	}}
}

func eachAsset(ctx context.Context, in asset.Set, fn func(asset.Asset) (asset.Asset, error)) (asset.Set, error) {
	out := make(asset.Set, 0, len(in))
	for _, a := range in {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := fn(a)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
