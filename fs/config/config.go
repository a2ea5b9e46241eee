package config

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultPath is the well-known location of the overlay root list
const DefaultPath = "/etc/preloadfs-overlays.conf"

// EnvPath overrides DefaultPath when set to a non-empty value
const EnvPath = "PRELOADFS_CONFIG"

// Parse reads one overlay root per line. Everything from a '#' onward is a
// comment, surrounding whitespace is trimmed and empty lines are dropped.
// Order is preserved: the first root listed has the highest priority.
func Parse(r io.Reader) []string {
	roots := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		roots = append(roots, line)
	}
	return roots
}

// Provider loads the overlay roots from a file once and caches them for the
// lifetime of the process.
type Provider struct {
	path     string
	readFile func(string) ([]byte, error)

	// loading latches while a load is in flight so that a nested or
	// concurrent load returns an empty list instead of recursing.
	loading atomic.Bool
	roots   atomic.Pointer[[]string]
}

// Option customizes a Provider
type Option func(*Provider)

// WithReadFile replaces the function used to read the configuration file
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(p *Provider) {
		p.readFile = fn
	}
}

// New creates a Provider reading from path
func New(path string, opts ...Option) *Provider {
	p := &Provider{
		path:     path,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the configuration file this provider reads
func (p *Provider) Path() string {
	return p.path
}

// Roots returns the overlay roots in priority order. A missing or unreadable
// file yields an empty list.
func (p *Provider) Roots() []string {
	if roots := p.roots.Load(); roots != nil {
		return *roots
	}

	if !p.loading.CompareAndSwap(false, true) {
		return nil
	}
	defer p.loading.Store(false)

	// another caller may have finished loading between the two checks
	if roots := p.roots.Load(); roots != nil {
		return *roots
	}

	roots := []string{}
	if data, err := p.readFile(p.path); err == nil {
		roots = Parse(bytes.NewReader(data))
	}
	p.roots.Store(&roots)
	return roots
}

// Loaded reports whether the roots have been read
func (p *Provider) Loaded() bool {
	return p.roots.Load() != nil
}

var (
	defaultProvider *Provider
	defaultOnce     sync.Once
)

// Default returns the process-wide provider. The path is taken from
// PRELOADFS_CONFIG when set, DefaultPath otherwise.
func Default() *Provider {
	defaultOnce.Do(func() {
		defaultProvider = New(PathFromEnv())
	})
	return defaultProvider
}

// PathFromEnv returns the configuration path selected by the environment
func PathFromEnv() string {
	if path := os.Getenv(EnvPath); path != "" {
		return path
	}
	return DefaultPath
}
