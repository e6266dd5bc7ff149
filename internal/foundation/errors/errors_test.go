package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "assetpipe.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "assetpipe.yaml" {
			t.Errorf("expected context file=assetpipe.yaml, got %v", file)
		}
	})

	t.Run("Found through wrapping", func(t *testing.T) {
		inner := TransformError("unit failed").WithContext("unit", "js-minify").Build()
		wrapped := fmt.Errorf("task scripts: %w", inner)

		if !IsClassified(wrapped) {
			t.Fatal("expected wrapped error to be classified")
		}
		if !HasCategory(wrapped, CategoryTransform) {
			t.Error("expected transform category")
		}
		if GetCategory(errors.New("plain")) != CategoryInternal {
			t.Error("unclassified errors default to internal")
		}
	})

	t.Run("WithContext copies", func(t *testing.T) {
		base := FileSystemError("write failed").Build()
		derived := base.WithContext("path", "dist/main.css")

		if _, ok := base.Context().Get("path"); ok {
			t.Error("expected original context to be unchanged")
		}
		if p, _ := derived.Context().GetString("path"); p != "dist/main.css" {
			t.Errorf("unexpected derived path %q", p)
		}
	})
}

func TestErrorBuilderWrap(t *testing.T) {
	originalErr := errors.New("permission denied")
	err := WrapError(originalErr, CategoryFileSystem, "cannot read source").
		Warning().
		WithContext("path", "src/styles").
		Build()

	if !errors.Is(err, originalErr) {
		t.Error("expected wrapped cause to be reachable")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("expected warning severity, got %s", err.Severity())
	}
	if err.IsFatal() {
		t.Error("warning must not be fatal")
	}
}

func TestErrorContextMerge(t *testing.T) {
	a := ErrorContext{"a": 1, "b": 1}
	b := ErrorContext{"b": 2}
	merged := a.Merge(b)
	if merged["a"] != 1 || merged["b"] != 2 {
		t.Errorf("unexpected merge result %v", merged)
	}
	if a["b"] != 1 {
		t.Error("merge must not mutate the receiver")
	}
}
