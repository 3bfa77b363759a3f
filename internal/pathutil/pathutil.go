// Package pathutil provides the path normalization and containment rules
// used to map source files onto configured projects.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

const sep = string(filepath.Separator)

// Normalize resolves path to an absolute path with collapsed separators
// and exactly one trailing separator. Normalize is idempotent, which makes
// the result safe to use as a string-prefix key.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		// filepath.Abs only fails when the working directory is gone;
		// fall back to cleaning the path as given.
		abs = filepath.Clean(path)
	}
	if !strings.HasSuffix(abs, sep) {
		abs += sep
	}
	return abs
}

// IsUnder reports whether candidate lives under root. This is a pure
// string-prefix test on normalized paths: no filesystem access, so paths
// that do not exist behave the same as ones that do. The trailing
// separator added by Normalize keeps /foo from matching /foobar.
func IsUnder(root, candidate string) bool {
	return strings.HasPrefix(Normalize(candidate), Normalize(root))
}

// ExpandCodePaths returns the code search paths for a project root and its
// library directories: root/ebin and root/test first, then for each library
// directory (in order) the ebin and test directory of every immediate
// subdirectory, in listing order. Library directories that do not exist
// contribute nothing.
func ExpandCodePaths(root string, libDirs []string) []string {
	paths := []string{
		filepath.Join(root, "ebin"),
		filepath.Join(root, "test"),
	}

	for _, lib := range libDirs {
		entries, err := os.ReadDir(filepath.Join(root, lib))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			sub := filepath.Join(root, lib, entry.Name())
			paths = append(paths, filepath.Join(sub, "ebin"), filepath.Join(sub, "test"))
		}
	}

	return paths
}
