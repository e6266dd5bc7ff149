package asset

import (
	"os"
	"path"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Write stores every asset of set under root/dest and returns the written
// paths relative to root (slash separated).
//
// Each file is written to a temporary sibling and renamed into place, so a
// reader or a concurrent rerun never observes a partially written file.
func Write(root, dest string, set Set) ([]string, error) {
	written := make([]string, 0, len(set))
	for _, a := range set {
		rel := OutputPath(dest, a.Path)
		target := filepath.Join(root, filepath.FromSlash(rel))
		if err := writeAtomic(target, a.Contents); err != nil {
			return written, ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output").
				Fatal().WithContext("path", rel).WithContext("asset", a.Source).Build()
		}
		written = append(written, rel)
	}
	return written, nil
}

// OutputPath is the output-root relative slash path an asset at p is
// written to when its pipeline targets dest.
func OutputPath(dest, p string) string {
	return path.Clean(path.Join(filepath.ToSlash(dest), p))
}

func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".assetpipe-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Clean removes the output root and everything below it. A missing root is fine.
func Clean(root string) error {
	if err := os.RemoveAll(root); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "clean output").
			Fatal().WithContext("path", root).Build()
	}
	return nil
}
