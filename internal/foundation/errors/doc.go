// Package errors provides the classified error type used across assetpipe.
//
// A ClassifiedError carries a category (config, transform, filesystem, ...),
// a severity, a human-readable message, an optional cause and structured
// context such as the failing asset or transformation unit. The CLI adapter
// turns classified errors into exit codes and one-line messages.
//
// Example usage:
//
//	err := errors.TransformError("unit failed").
//		WithCause(cause).
//		WithContext("unit", "js-minify").
//		WithContext("asset", "src/js/main.js").
//		Build()
package errors
