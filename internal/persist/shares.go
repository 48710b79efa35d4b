// Package persist writes capture artifacts and notes to the lab file shares.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDirMode is applied to directories created for work dirs.
const DefaultDirMode os.FileMode = 0o775

// Shares maps the logical drive aliases H: and S: onto mounted roots.
type Shares struct {
	HDDRoot string
	SSDRoot string
	DirMode os.FileMode
}

// Resolve maps an alias path onto its share root and cleans it.
// Paths under an alias cannot climb above the share root.
// Resolve is idempotent: resolving a resolved path returns it unchanged.
func (s Shares) Resolve(path string) string {
	if len(path) >= 2 && path[1] == ':' {
		var root string
		switch strings.ToUpper(path[:2]) {
		case "H:":
			root = s.HDDRoot
		case "S:":
			root = s.SSDRoot
		}
		if root != "" {
			rest := strings.ReplaceAll(path[2:], `\`, "/")
			return filepath.Join(root, filepath.Clean("/"+rest))
		}
	}
	return filepath.Clean(path)
}

// EnsureDir resolves dir and creates it with the configured mode.
func (s Shares) EnsureDir(dir string) (string, error) {
	resolved := s.Resolve(dir)

	mode := s.DirMode
	if mode == 0 {
		mode = DefaultDirMode
	}
	if err := os.MkdirAll(resolved, mode); err != nil {
		return "", fmt.Errorf("create work dir %s: %w", resolved, err)
	}
	return resolved, nil
}

// Join resolves dir, creates it, and returns the path of name inside it.
// name must be a plain file name.
func (s Shares) Join(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	resolved, err := s.EnsureDir(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolved, name), nil
}
