package asset

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Base returns the static directory prefix of a glob pattern ("." when the
// pattern starts with a wildcard). Selected assets are relative to it.
func Base(pattern string) string {
	base, _ := doublestar.SplitPattern(strings.TrimPrefix(pattern, "!"))
	return base
}

// Match reports whether a root-relative slash path is selected by patterns,
// honouring "!" exclusions.
func Match(patterns []string, name string) bool {
	included := false
	for _, p := range patterns {
		if ex, ok := strings.CutPrefix(p, "!"); ok {
			if m, _ := doublestar.Match(ex, name); m {
				return false
			}
			continue
		}
		if m, _ := doublestar.Match(p, name); m {
			included = true
		}
	}
	return included
}

// Select reads every file under root matched by patterns.
//
// Order follows the pattern list; files matched by one pattern are sorted
// lexically; a file matched twice keeps its first position. Patterns
// prefixed with "!" exclude. Matching nothing is not an error.
func Select(root string, patterns []string) (Set, error) {
	st, err := os.Stat(root)
	if err != nil || !st.IsDir() {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "source root is not a directory").
			Fatal().WithContext("path", root).Build()
	}

	var includes, excludes []string
	for _, p := range patterns {
		if ex, ok := strings.CutPrefix(p, "!"); ok {
			excludes = append(excludes, ex)
			continue
		}
		includes = append(includes, p)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	var out Set
	for _, pattern := range includes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, ferrors.ConfigError("invalid glob pattern").WithContext("pattern", pattern).Build()
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "glob failed").
				Fatal().WithContext("pattern", pattern).Build()
		}
		sort.Strings(matches)

		base := Base(pattern)
		for _, m := range matches {
			if _, dup := seen[m]; dup || excluded(excludes, m) {
				continue
			}
			seen[m] = struct{}{}

			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(m)))
			if err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read source").
					Fatal().WithContext("path", m).Build()
			}
			out = append(out, Asset{Path: relativeTo(base, m), Source: m, Contents: data})
		}
	}
	return out, nil
}

func excluded(excludes []string, name string) bool {
	for _, ex := range excludes {
		if m, _ := doublestar.Match(ex, name); m {
			return true
		}
	}
	return false
}

func relativeTo(base, name string) string {
	if base == "." || base == "" {
		return name
	}
	if rel, ok := strings.CutPrefix(name, base+"/"); ok {
		return rel
	}
	return path.Base(name)
}
