package fs

import (
	"io"
	"path"
	"sort"
	"sync"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// memTree is an in-memory filesystem implementing Prober and DirOps with a
// deterministic entry order
type memTree struct {
	mu        sync.Mutex
	files     map[string]uint64
	dirs      map[string][]string
	streams   map[Handle]*memStream
	closeErr  map[string]error
	readErr   map[string]error
	nextIno   uint64
	nextH     Handle
	statCalls int
}

type memStream struct {
	path  string
	names []string
	pos   int
}

func newMemTree() *memTree {
	return &memTree{
		files:    make(map[string]uint64),
		dirs:     map[string][]string{"/": nil},
		streams:  make(map[Handle]*memStream),
		closeErr: make(map[string]error),
		readErr:  make(map[string]error),
		nextIno:  1,
		nextH:    100,
	}
}

func (m *memTree) addDir(p string) *memTree {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDirLocked(p)
	return m
}

func (m *memTree) addDirLocked(p string) {
	if _, ok := m.dirs[p]; ok {
		return
	}
	m.dirs[p] = nil
	m.linkLocked(p)
}

func (m *memTree) addFile(p string) *memTree {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = m.nextIno
	m.nextIno++
	m.linkLocked(p)
	return m
}

func (m *memTree) linkLocked(p string) {
	parent := path.Dir(p)
	m.addDirLocked(parent)
	name := path.Base(p)
	for _, existing := range m.dirs[parent] {
		if existing == name {
			return
		}
	}
	m.dirs[parent] = append(m.dirs[parent], name)
}

func (m *memTree) ino(p string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[p]
}

func (m *memTree) Stat(p string, st *unix.Stat_t) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statCalls++
	if _, ok := m.dirs[p]; ok {
		st.Mode = unix.S_IFDIR | 0755
		return nil
	}
	if ino, ok := m.files[p]; ok {
		st.Mode = unix.S_IFREG | 0644
		st.Ino = ino
		return nil
	}
	return unix.ENOENT
}

func (m *memTree) OpenDir(p string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.dirs[p]
	if !ok {
		if _, isFile := m.files[p]; isFile {
			return 0, unix.ENOTDIR
		}
		return 0, unix.ENOENT
	}
	names := append([]string{".", ".."}, entries...)
	h := m.nextH
	m.nextH++
	m.streams[h] = &memStream{path: p, names: names}
	return h, nil
}

func (m *memTree) ReadDir(h Handle, _ Shape) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[h]
	if !ok {
		return Entry{}, unix.EBADF
	}
	if err := m.readErr[s.path]; err != nil {
		return Entry{}, err
	}
	if s.pos >= len(s.names) {
		return Entry{}, io.EOF
	}
	name := s.names[s.pos]
	s.pos++

	full := path.Join(s.path, name)
	mode := uint32(unix.DT_REG) << 12
	if _, isDir := m.dirs[full]; isDir || name == "." || name == ".." {
		mode = uint32(unix.DT_DIR) << 12
	}
	return Entry{DirEntry: fuse.DirEntry{Name: name, Ino: m.files[full], Mode: mode}}, nil
}

func (m *memTree) CloseDir(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[h]
	if !ok {
		return unix.EBADF
	}
	delete(m.streams, h)
	return m.closeErr[s.path]
}

func (m *memTree) pathOf(h Handle) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[h]; ok {
		return s.path
	}
	return ""
}

func (m *memTree) openStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

func (m *memTree) stats() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statCalls
}

func entryNames(entries []fuse.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func sortedCopy(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
