package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// ValidateName checks a single name component handed over by FUSE
func ValidateName(name string) bool {
	if name == "" || strings.Contains(name, "..") {
		return false
	}
	return !filepath.IsAbs(name)
}

// ValidatePathWithinRoot cleans path and fails with EPERM when it escapes
// root. Relative paths are taken from the working directory.
func ValidatePathWithinRoot(path, root string) (string, error) {
	cleaned := filepath.Clean(path)

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	if absPath == absRoot {
		return cleaned, nil
	}
	prefix := absRoot
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if !strings.HasPrefix(absPath, prefix) {
		return "", syscall.EPERM
	}
	return cleaned, nil
}

// ValidateRoot checks an overlay root taken from the configuration file.
// Roots are used by plain concatenation, so they must be absolute and
// should not end in a separator.
func ValidateRoot(root string) error {
	if !filepath.IsAbs(root) {
		return fmt.Errorf("overlay root is not absolute: %q", root)
	}
	if len(root) > 1 && strings.HasSuffix(root, "/") {
		return fmt.Errorf("overlay root ends with a separator: %q", root)
	}
	st, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot access overlay root: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("overlay root is not a directory: %s", root)
	}
	return nil
}
