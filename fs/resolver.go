package fs

import (
	"golang.org/x/sys/unix"

	"github.com/pleclech/preloadfs/fs/pathutil"
)

// Kind selects which filesystem objects satisfy a resolution
type Kind int

const (
	// KindFile matches regular files
	KindFile Kind = iota
	// KindDir matches directories
	KindDir
	// KindAny matches regular files and directories
	KindAny
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// Matches reports whether a stat mode satisfies the kind
func (k Kind) Matches(mode uint32) bool {
	isFile := mode&unix.S_IFMT == unix.S_IFREG
	isDir := mode&unix.S_IFMT == unix.S_IFDIR
	switch k {
	case KindFile:
		return isFile
	case KindDir:
		return isDir
	case KindAny:
		return isFile || isDir
	default:
		return false
	}
}

// RootSource yields the overlay roots in priority order
type RootSource interface {
	Roots() []string
}

// Prober stats a path on the real filesystem, following symlinks
type Prober interface {
	Stat(path string, st *unix.Stat_t) error
}

// StaticRoots is a fixed RootSource
type StaticRoots []string

// Roots returns the roots
func (s StaticRoots) Roots() []string {
	return s
}

// Resolver decides whether an overlay-qualified path replaces the path a
// caller supplied
type Resolver struct {
	roots      RootSource
	prober     Prober
	guard      Guard
	configPath string
}

// NewResolver creates a Resolver. configPath is never shadowed; a nil guard
// disables re-entrancy protection.
func NewResolver(roots RootSource, prober Prober, guard Guard, configPath string) *Resolver {
	if guard == nil {
		guard = noGuard{}
	}
	return &Resolver{
		roots:      roots,
		prober:     prober,
		guard:      guard,
		configPath: configPath,
	}
}

// Guard returns the re-entrancy guard the resolver honors
func (r *Resolver) Guard() Guard {
	return r.guard
}

// Roots returns the configured overlay roots
func (r *Resolver) Roots() []string {
	return r.roots.Roots()
}

// Resolve returns the candidate under the highest-priority overlay root that
// exists with the requested kind. It reports false when the caller must keep
// the original path.
func (r *Resolver) Resolve(path string, kind Kind) (string, bool) {
	if !r.eligible(path) {
		return "", false
	}

	for _, root := range r.roots.Roots() {
		candidate := pathutil.Qualify(root, path)
		matched := r.probe(candidate, kind)
		LogResolution(path, candidate, kind, matched)
		if matched {
			return candidate, true
		}
	}
	return "", false
}

// DirCandidates returns every overlay candidate of path that exists as a
// directory, in priority order
func (r *Resolver) DirCandidates(path string) []string {
	if !r.eligible(path) {
		return nil
	}

	var candidates []string
	for _, root := range r.roots.Roots() {
		candidate := pathutil.Qualify(root, path)
		matched := r.probe(candidate, KindDir)
		LogResolution(path, candidate, KindDir, matched)
		if matched {
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

func (r *Resolver) eligible(path string) bool {
	// the flag is held by a probe further up this thread's stack
	if r.guard.Active() {
		return false
	}
	if !pathutil.IsAbs(path) {
		return false
	}
	// the configuration file is never redirected
	if pathutil.HasPathPrefix(path, r.configPath) {
		return false
	}
	return true
}

func (r *Resolver) probe(candidate string, kind Kind) bool {
	release := r.guard.Enter()
	defer release()

	var st unix.Stat_t
	if err := r.prober.Stat(candidate, &st); err != nil {
		return false
	}
	return kind.Matches(st.Mode)
}
