package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapterExitCodes(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"config", ConfigError("missing file").Build(), 7},
		{"transform", TransformError("syntax").Build(), 11},
		{"filesystem", FileSystemError("read").Build(), 11},
		{"server", ServerError("listen").Build(), 12},
		{"internal", InternalError("bug").Build(), 10},
		{"wrapped transform", fmt.Errorf("task scripts: %w", TransformError("syntax").Build()), 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapterFormatNamesAssetAndUnit(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)
	err := TransformError("transformation failed").
		WithCause(errors.New("src/js/main.js:3:4: Expected \";\" but found \"}\"")).
		WithContext("unit", "js-transpile").
		WithContext("asset", "src/js/main.js").
		Build()

	msg := adapter.FormatError(err)

	assert.True(t, strings.HasPrefix(msg, "transform error: transformation failed"))
	assert.Contains(t, msg, "asset=src/js/main.js")
	assert.Contains(t, msg, "unit=js-transpile")
	assert.Contains(t, msg, "Expected")
}

func TestCLIErrorAdapterFormatUnclassified(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)
	assert.Equal(t, "Error: boom", adapter.FormatError(errors.New("boom")))
	assert.Empty(t, adapter.FormatError(nil))
}

func TestCLIErrorAdapterVerbose(t *testing.T) {
	adapter := NewCLIErrorAdapter(true, nil)
	err := ConfigError("missing file").Build()
	assert.Equal(t, err.Error(), adapter.FormatError(err))
}
