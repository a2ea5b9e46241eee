//go:build linux
// +build linux

package fs

import (
	"context"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	tu "github.com/pleclech/preloadfs/fs/utils/testing"
)

// TestSetup provides a base tree with two overlay roots and a preview root
// node wired to them
type TestSetup struct {
	T      *testing.T
	Layout *tu.Layout
	Real   *OSReal
	Merger *DirMerger
	Root   *OverlayNode
}

// NewTestSetup creates a new test environment. The node tree is initialized
// without mounting so node methods can be called directly.
func NewTestSetup(t *testing.T) *TestSetup {
	layout := tu.NewLayout(t, 2)
	createTestFilesystem(t, layout)

	osr := NewOSReal()
	resolver := NewResolver(StaticRoots(layout.Roots), osr, NewThreadGuard(), testConfigPath)
	merger := NewDirMerger(resolver, osr, nil)

	root, err := NewOverlayRoot(layout.Base, resolver, merger)
	if err != nil {
		t.Fatalf("Failed to create overlay root: %v", err)
	}
	fs.NewNodeFS(root, &fs.Options{})

	return &TestSetup{
		T:      t,
		Layout: layout,
		Real:   osr,
		Merger: merger,
		Root:   root.(*OverlayNode),
	}
}

// createTestFilesystem creates the base tree and overlay content
func createTestFilesystem(t *testing.T, l *tu.Layout) {
	for path, content := range map[string]string{
		"file1.txt":       "content1",
		"file2.txt":       "content2",
		"dir1/nested.txt": "nested content",
	} {
		l.WriteBase(t, path, content)
	}

	l.WriteOverlay(t, 0, "file1.txt", "high content1")
	l.WriteOverlay(t, 1, "file1.txt", "low content1")
	l.WriteOverlay(t, 1, "only-low.txt", "low only")
	l.WriteOverlay(t, 0, "dir1/extra.txt", "extra")
	l.WriteOverlay(t, 1, "dir3/deep.txt", "deep")
}

// Child looks name up under the root and attaches it to the tree
func (ts *TestSetup) Child(name string) (*OverlayNode, syscall.Errno) {
	var out fuse.EntryOut
	ch, errno := ts.Root.Lookup(context.Background(), name, &out)
	if errno != 0 {
		return nil, errno
	}
	ts.Root.AddChild(name, ch, true)
	return ch.Operations().(*OverlayNode), 0
}

// ReadDirNames drains a DirStream into names
func ReadDirNames(t *testing.T, ds fs.DirStream) []string {
	t.Helper()
	defer ds.Close()

	var names []string
	for ds.HasNext() {
		e, errno := ds.Next()
		if errno != 0 {
			t.Fatalf("Next: %v", errno)
		}
		names = append(names, e.Name)
	}
	return names
}
