package pathutil

import (
	"strings"
)

// IsAbs reports whether path is an absolute slash-separated path
func IsAbs(path string) bool {
	return strings.HasPrefix(path, "/")
}

// Qualify converts a logical absolute path to its candidate under an overlay
// root. Both sides are expected to be normalized absolute paths, so this is
// plain concatenation.
func Qualify(root, path string) string {
	return root + path
}

// StripRoot converts an overlay-qualified path back to the logical path.
// It reports false when path does not live under root.
func StripRoot(path, root string) (string, bool) {
	if !strings.HasPrefix(path, root) {
		return "", false
	}
	rest := strings.TrimPrefix(path, root)
	if rest == "" {
		return "/", true
	}
	if !strings.HasPrefix(rest, "/") {
		// "/overlay/high" must not claim "/overlay/highway/x"
		return "", false
	}
	return rest, true
}

// HasPathPrefix reports whether path starts with prefix
func HasPathPrefix(path, prefix string) bool {
	return prefix != "" && strings.HasPrefix(path, prefix)
}
