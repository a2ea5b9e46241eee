package fs

import (
	"errors"
	"io"
	"sync"
	"unsafe"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Handle is the opaque identity of an open directory stream: a DIR* address
// inside the preloaded library, a file descriptor for OSReal.
type Handle uintptr

// Shape selects the entry layout a caller reads with
type Shape int

const (
	// ShapeDirent is the legacy struct dirent
	ShapeDirent Shape = iota
	// ShapeDirent64 is struct dirent64
	ShapeDirent64
)

// Entry is one raw directory entry. Raw points at the underlying C entry when
// the stream is backed by libc and stays valid until the next read of the
// stream that produced it.
type Entry struct {
	fuse.DirEntry
	Raw unsafe.Pointer
}

// DirOps are the real directory-stream operations
type DirOps interface {
	OpenDir(path string) (Handle, error)
	// ReadDir returns io.EOF once the stream is exhausted
	ReadDir(h Handle, shape Shape) (Entry, error)
	CloseDir(h Handle) error
}

type dirState int

const (
	dirOpen dirState = iota
	dirExhausted
	dirClosed
)

// mergedDir is one logical open-directory session
type mergedDir struct {
	path     string
	base     Handle
	hasBase  bool
	overlays []Handle
	// index of the first overlay stream that may still have entries
	cursor int
	// names yielded by overlay streams, shadowing the base stream
	seen  map[string]struct{}
	state dirState
}

func (d *mergedDir) handles() int {
	n := len(d.overlays)
	if d.hasBase {
		n++
	}
	return n
}

func isDotEntry(name string) bool {
	return name == "." || name == ".."
}

func (d *mergedDir) next(ops DirOps, shape Shape) (Entry, error) {
	if d.state != dirOpen {
		return Entry{}, io.EOF
	}

	for d.cursor < len(d.overlays) {
		e, err := ops.ReadDir(d.overlays[d.cursor], shape)
		if err == io.EOF {
			d.cursor++
			continue
		}
		if err != nil {
			return Entry{}, err
		}
		// only the base stream contributes "." and ".."
		if isDotEntry(e.Name) {
			continue
		}
		if _, ok := d.seen[e.Name]; ok {
			continue
		}
		d.seen[e.Name] = struct{}{}
		return e, nil
	}

	if !d.hasBase {
		d.state = dirExhausted
		return Entry{}, io.EOF
	}

	for {
		e, err := ops.ReadDir(d.base, shape)
		if err == io.EOF {
			d.state = dirExhausted
			return Entry{}, io.EOF
		}
		if err != nil {
			return Entry{}, err
		}
		if _, shadowed := d.seen[e.Name]; shadowed {
			continue
		}
		return e, nil
	}
}

// DirRegistry maps handle identities to merged sessions. The lock is held
// only for the map operation itself, never across real directory I/O.
type DirRegistry struct {
	mu   sync.Mutex
	dirs map[Handle]*mergedDir
}

// NewDirRegistry creates an empty registry
func NewDirRegistry() *DirRegistry {
	return &DirRegistry{
		dirs: make(map[Handle]*mergedDir),
	}
}

func (r *DirRegistry) insert(h Handle, d *mergedDir) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs[h] = d
}

func (r *DirRegistry) lookup(h Handle) (*mergedDir, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dirs[h]
	return d, ok
}

func (r *DirRegistry) remove(h Handle) (*mergedDir, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dirs[h]
	if ok {
		delete(r.dirs, h)
	}
	return d, ok
}

// Contains reports whether h is a registered session
func (r *DirRegistry) Contains(h Handle) bool {
	_, ok := r.lookup(h)
	return ok
}

// Len returns the number of open sessions
func (r *DirRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dirs)
}

// DirMerger presents a directory that exists in the base tree and in any
// number of overlay roots as one stream
type DirMerger struct {
	resolver *Resolver
	ops      DirOps
	registry *DirRegistry
}

// NewDirMerger creates a DirMerger
func NewDirMerger(resolver *Resolver, ops DirOps, registry *DirRegistry) *DirMerger {
	if registry == nil {
		registry = NewDirRegistry()
	}
	return &DirMerger{
		resolver: resolver,
		ops:      ops,
		registry: registry,
	}
}

// Registry returns the session registry
func (m *DirMerger) Registry() *DirRegistry {
	return m.registry
}

// Open opens path in the base tree and in every overlay root holding it as a
// directory. The identity returned is the base handle, or the first overlay
// handle when the base tree lacks the directory. When no layer has it the
// base open's error is returned and nothing is registered.
func (m *DirMerger) Open(path string) (Handle, error) {
	base, baseErr := m.ops.OpenDir(path)

	var overlays []Handle
	for _, candidate := range m.resolver.DirCandidates(path) {
		h, err := m.ops.OpenDir(candidate)
		if err != nil {
			Debug("opendir %s: overlay %s: %v", path, candidate, err)
			continue
		}
		overlays = append(overlays, h)
	}

	if baseErr != nil && len(overlays) == 0 {
		return 0, baseErr
	}

	d := &mergedDir{
		path:     path,
		base:     base,
		hasBase:  baseErr == nil,
		overlays: overlays,
		seen:     make(map[string]struct{}),
	}

	id := base
	if !d.hasBase {
		id = overlays[0]
	}
	m.registry.insert(id, d)
	Debug("opendir %s: base=%v overlays=%d", path, d.hasBase, len(overlays))
	return id, nil
}

// ReadMerged returns the next merged entry of h. merged is false when h is
// not a registered session; the caller then forwards to the real read.
//
// Overlay entries come first, in root priority order, then the base entries
// not shadowed by them. "." and ".." are taken from the base stream only, so
// a directory that exists only under overlay roots lists without them.
func (m *DirMerger) ReadMerged(h Handle, shape Shape) (e Entry, merged bool, err error) {
	d, ok := m.registry.lookup(h)
	if !ok {
		return Entry{}, false, nil
	}
	e, err = d.next(m.ops, shape)
	return e, true, err
}

// Read is ReadMerged with unregistered handles forwarded to the real read
func (m *DirMerger) Read(h Handle, shape Shape) (Entry, error) {
	e, merged, err := m.ReadMerged(h, shape)
	if !merged {
		return m.ops.ReadDir(h, shape)
	}
	return e, err
}

// Close removes the session and releases every underlying handle. Failures
// are aggregated: one failing close fails the whole operation even though
// the remaining handles were released. An unknown handle is forwarded to
// the real close.
func (m *DirMerger) Close(h Handle) error {
	d, ok := m.registry.remove(h)
	if !ok {
		return m.ops.CloseDir(h)
	}
	d.state = dirClosed

	var errs []error
	if d.hasBase {
		if err := m.ops.CloseDir(d.base); err != nil {
			errs = append(errs, err)
		}
	}
	for _, o := range d.overlays {
		if err := m.ops.CloseDir(o); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	LogTeardown(d.path, d.handles(), err)
	return err
}
