package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyEntry      = "entry"
	KeyTask       = "task"
	KeyPipeline   = "pipeline"
	KeyUnit       = "unit"
	KeyAsset      = "asset"
	KeyBinding    = "binding"
	KeyPath       = "path"
	KeyOp         = "op"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyAddr       = "addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Entry(name string) slog.Attr     { return slog.String(KeyEntry, name) }
func Task(name string) slog.Attr      { return slog.String(KeyTask, name) }
func Pipeline(name string) slog.Attr  { return slog.String(KeyPipeline, name) }
func Unit(name string) slog.Attr      { return slog.String(KeyUnit, name) }
func Asset(path string) slog.Attr     { return slog.String(KeyAsset, path) }
func Binding(name string) slog.Attr   { return slog.String(KeyBinding, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Addr(addr string) slog.Attr      { return slog.String(KeyAddr, addr) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
