package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func IndentMessage(level int, message string) string {
	indent := strings.Repeat("  ", level) // 2 spaces per level
	lines := strings.Split(message, "\n")
	indented := make([]string, len(lines))
	for i, line := range lines {
		indented[i] = indent + line
	}
	return strings.Join(indented, "\n")
}

func Info(t *testing.T, message string) {
	t.Helper()
	t.Logf("\033[33mℹ\033[0m info: %s", message)
}

func Infof(t *testing.T, format string, args ...interface{}) {
	t.Helper()
	Info(t, fmt.Sprintf(format, args...))
}

func InfoFIndent(t *testing.T, level int, format string, args ...interface{}) {
	t.Helper()
	msg := fmt.Sprintf("\033[33mℹ\033[0m info: %s", fmt.Sprintf(format, args...))
	t.Log(IndentMessage(level, msg))
}

func Fail(t *testing.T, message string) {
	t.Helper()
	t.Logf("\033[31m✗\033[0m error: %s", message)
	t.FailNow()
}

func Failf(t *testing.T, format string, args ...interface{}) {
	t.Helper()
	Fail(t, fmt.Sprintf(format, args...))
}

func FailFIndent(t *testing.T, level int, format string, args ...interface{}) {
	t.Helper()
	msg := fmt.Sprintf("\033[31m✗\033[0m error: %s", fmt.Sprintf(format, args...))
	t.Log(IndentMessage(level, msg))
	t.FailNow()
}

func SuccessFIndent(t *testing.T, level int, format string, args ...interface{}) {
	t.Helper()
	message := fmt.Sprintf(format, args...)
	status := "success"
	if message == "" {
		status += "."
	} else {
		status += ": "
	}
	msg := fmt.Sprintf("\033[32m✓\033[0m %s%s", status, message)
	t.Log(IndentMessage(level, msg))
}

func getLevel(levels ...int) int {
	if len(levels) > 0 {
		return levels[0]
	}
	return 0
}

// ShouldCreateFile writes content to path, creating parent directories
func ShouldCreateFile(path string, content string, t *testing.T, levels ...int) {
	t.Helper()
	level := getLevel(levels...)
	InfoFIndent(t, level, "file %s should be created", path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		FailFIndent(t, level, "failed to create parent directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		FailFIndent(t, level, "failed to create file: %v", err)
	}
	ShouldHaveSameContent(path, content, t, level+1)
	SuccessFIndent(t, level, "")
}

func ShouldCreateDir(path string, t *testing.T, levels ...int) {
	t.Helper()
	level := getLevel(levels...)
	InfoFIndent(t, level, "directory %s should be created", path)
	if err := os.MkdirAll(path, 0755); err != nil {
		FailFIndent(t, level, "failed to create directory: %v", err)
	}
	ShouldExist(path, t, level+1)
	SuccessFIndent(t, level, "")
}

func ShouldHaveSameContent(path string, base string, t *testing.T, levels ...int) {
	t.Helper()
	level := getLevel(levels...)
	InfoFIndent(t, level, "file %s should have same content", path)
	if content, err := os.ReadFile(path); err != nil {
		FailFIndent(t, level, "failed to read file: %v", err)
	} else if string(content) != base {
		FailFIndent(t, level, "file content mismatch (path: %s): expected '%s', got '%s'", path, base, string(content))
	}
	SuccessFIndent(t, level, "")
}

func ShouldExist(path string, t *testing.T, levels ...int) {
	t.Helper()
	level := getLevel(levels...)
	InfoFIndent(t, level, "file or directory %s should exist", path)
	if _, err := os.Stat(path); err != nil {
		FailFIndent(t, level, "file or directory %s should exist, but does not", path)
	}
	SuccessFIndent(t, level, "")
}

func ShouldNotExist(path string, t *testing.T, levels ...int) {
	t.Helper()
	level := getLevel(levels...)
	InfoFIndent(t, level, "file or directory %s should not exist", path)
	if _, err := os.Lstat(path); err == nil {
		FailFIndent(t, level, "file or directory %s should not exist, but does", path)
	}
	SuccessFIndent(t, level, "")
}

// NamesShouldEqual compares two listings regardless of order
func NamesShouldEqual(got, want []string, t *testing.T, levels ...int) {
	t.Helper()
	level := getLevel(levels...)
	g := append([]string(nil), got...)
	w := append([]string(nil), want...)
	sort.Strings(g)
	sort.Strings(w)
	if strings.Join(g, "\x00") != strings.Join(w, "\x00") {
		FailFIndent(t, level, "entries mismatch: expected %v, got %v", w, g)
	}
}

// Layout is a base tree plus overlay roots on disk. Overlay content for a
// logical path p lives at root+p, the same way the resolver qualifies it.
type Layout struct {
	Base  string
	Roots []string
}

// NewLayout creates a base directory and n overlay roots, highest priority
// first
func NewLayout(t *testing.T, n int) *Layout {
	t.Helper()
	l := &Layout{Base: filepath.Join(t.TempDir(), "base")}
	if err := os.MkdirAll(l.Base, 0755); err != nil {
		Failf(t, "failed to create base directory: %v", err)
	}
	for i := 0; i < n; i++ {
		root := filepath.Join(t.TempDir(), fmt.Sprintf("overlay%d", i))
		if err := os.MkdirAll(root, 0755); err != nil {
			Failf(t, "failed to create overlay root: %v", err)
		}
		l.Roots = append(l.Roots, root)
	}
	return l
}

// Logical returns the absolute logical path of rel inside the base tree
func (l *Layout) Logical(rel string) string {
	return filepath.Join(l.Base, rel)
}

// Overlay returns where rel lives under overlay root i
func (l *Layout) Overlay(i int, rel string) string {
	return l.Roots[i] + l.Logical(rel)
}

func (l *Layout) WriteBase(t *testing.T, rel, content string) string {
	t.Helper()
	p := l.Logical(rel)
	ShouldCreateFile(p, content, t)
	return p
}

func (l *Layout) WriteOverlay(t *testing.T, i int, rel, content string) string {
	t.Helper()
	p := l.Overlay(i, rel)
	ShouldCreateFile(p, content, t)
	return p
}

func (l *Layout) MkdirOverlay(t *testing.T, i int, rel string) string {
	t.Helper()
	p := l.Overlay(i, rel)
	ShouldCreateDir(p, t)
	return p
}

// WriteConfig writes a configuration file listing the overlay roots and
// returns its path
func (l *Layout) WriteConfig(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("# overlay roots, highest priority first\n")
	for _, root := range l.Roots {
		b.WriteString(root)
		b.WriteString("\n")
	}
	p := filepath.Join(t.TempDir(), "preloadfs-overlays.conf")
	ShouldCreateFile(p, b.String(), t)
	return p
}
