package gatekeeper

import (
	"os"
	"path/filepath"
)

// evalSymlinksBestEffort resolves symlinks in path, walking up to the
// nearest existing ancestor when path itself does not yet exist (the
// common case for a proposed Create). This matches step 6 of the
// Gatekeeper algorithm: "resolving symlinks" must not fail just because
// the file hasn't been written yet.
func evalSymlinksBestEffort(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		return path, nil
	}

	if _, err := os.Stat(dir); err != nil {
		resolvedDir, err2 := evalSymlinksBestEffort(dir)
		if err2 != nil {
			return path, nil
		}
		return filepath.Join(resolvedDir, base), nil
	}

	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return path, nil
	}
	return filepath.Join(resolvedDir, base), nil
}
