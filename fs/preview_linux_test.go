//go:build linux
// +build linux

package fs

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	tu "github.com/pleclech/preloadfs/fs/utils/testing"
)

func TestOverlayNode_Readdir(t *testing.T) {
	ts := NewTestSetup(t)
	ctx := context.Background()

	if errno := ts.Root.Opendir(ctx); errno != 0 {
		t.Fatalf("Opendir: %v", errno)
	}
	ds, errno := ts.Root.Readdir(ctx)
	if errno != 0 {
		t.Fatalf("Readdir: %v", errno)
	}
	names := ReadDirNames(t, ds)

	tu.NamesShouldEqual(names, []string{
		"file1.txt", "dir1", "only-low.txt", "dir3", ".", "..", "file2.txt",
	}, t)

	if ts.Merger.Registry().Len() != 0 {
		t.Errorf("%d sessions left open", ts.Merger.Registry().Len())
	}
	if ts.Real.OpenCount() != 0 {
		t.Errorf("%d descriptors left open", ts.Real.OpenCount())
	}
}

func TestOverlayNode_Lookup(t *testing.T) {
	ts := NewTestSetup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		wantErrno syscall.Errno
		wantSize  int
		wantDir   bool
	}{
		{name: "file1.txt", wantSize: len("high content1")},
		{name: "file2.txt", wantSize: len("content2")},
		{name: "only-low.txt", wantSize: len("low only")},
		{name: "dir3", wantDir: true},
		{name: "missing", wantErrno: syscall.ENOENT},
		{name: "../escape", wantErrno: syscall.EPERM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out fuse.EntryOut
			_, errno := ts.Root.Lookup(ctx, tt.name, &out)
			if errno != tt.wantErrno {
				t.Fatalf("Lookup errno = %v, want %v", errno, tt.wantErrno)
			}
			if errno != 0 {
				return
			}
			isDir := out.Attr.Mode&syscall.S_IFMT == syscall.S_IFDIR
			if isDir != tt.wantDir {
				t.Errorf("directory = %v, want %v", isDir, tt.wantDir)
			}
			if !tt.wantDir && int(out.Attr.Size) != tt.wantSize {
				t.Errorf("size = %d, want %d", out.Attr.Size, tt.wantSize)
			}
		})
	}
}

func TestOverlayNode_OpenReadsOverlay(t *testing.T) {
	ts := NewTestSetup(t)
	ctx := context.Background()

	node, errno := ts.Child("file1.txt")
	if errno != 0 {
		t.Fatalf("Child: %v", errno)
	}

	if _, _, errno := node.Open(ctx, syscall.O_WRONLY); errno != syscall.EROFS {
		t.Errorf("Open(O_WRONLY) = %v, want EROFS", errno)
	}

	fh, _, errno := node.Open(ctx, syscall.O_RDONLY)
	if errno != 0 {
		t.Fatalf("Open: %v", errno)
	}
	defer fh.(fs.FileReleaser).Release(ctx)

	buf := make([]byte, 64)
	res, errno := fh.(fs.FileReader).Read(ctx, buf, 0)
	if errno != 0 {
		t.Fatalf("Read: %v", errno)
	}
	data, status := res.Bytes(buf)
	if !status.Ok() {
		t.Fatalf("Bytes: %v", status)
	}
	if string(data) != "high content1" {
		t.Errorf("content = %q, want overlay content", data)
	}

	var out fuse.AttrOut
	if errno := node.Getattr(ctx, nil, &out); errno != 0 {
		t.Fatalf("Getattr: %v", errno)
	}
	if int(out.Size) != len("high content1") {
		t.Errorf("Getattr size = %d, want overlay size", out.Size)
	}
}

func TestOverlayNode_SubdirListings(t *testing.T) {
	ts := NewTestSetup(t)
	ctx := context.Background()

	tests := []struct {
		dir  string
		want []string
	}{
		{"dir1", []string{"extra.txt", ".", "..", "nested.txt"}},
		{"dir3", []string{"deep.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			node, errno := ts.Child(tt.dir)
			if errno != 0 {
				t.Fatalf("Child: %v", errno)
			}
			ds, errno := node.Readdir(ctx)
			if errno != 0 {
				t.Fatalf("Readdir: %v", errno)
			}
			tu.NamesShouldEqual(ReadDirNames(t, ds), tt.want, t)
		})
	}
}

func TestOverlayNode_ReadOnly(t *testing.T) {
	ts := NewTestSetup(t)
	ctx := context.Background()

	if _, errno := ts.Root.Mkdir(ctx, "new", 0755, &fuse.EntryOut{}); errno != syscall.EROFS {
		t.Errorf("Mkdir = %v, want EROFS", errno)
	}
	if errno := ts.Root.Unlink(ctx, "file2.txt"); errno != syscall.EROFS {
		t.Errorf("Unlink = %v, want EROFS", errno)
	}
	if _, _, _, errno := ts.Root.Create(ctx, "new.txt", 0, 0644, &fuse.EntryOut{}); errno != syscall.EROFS {
		t.Errorf("Create = %v, want EROFS", errno)
	}
	tu.ShouldExist(ts.Layout.Logical("file2.txt"), t)
	tu.ShouldNotExist(ts.Layout.Logical("new.txt"), t)
}

func TestMountOverlay(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mount test in short mode")
	}
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("FUSE not available")
	}

	ts := NewTestSetup(t)
	mountPoint := t.TempDir()

	// a fresh root: the one in TestSetup is already bound to a NodeFS
	root, err := NewOverlayRoot(ts.Layout.Base, ts.Root.view.resolver, ts.Merger)
	if err != nil {
		t.Fatalf("NewOverlayRoot: %v", err)
	}
	server, err := MountOverlay(mountPoint, root, false)
	if err != nil {
		t.Skipf("mount not permitted here: %v", err)
	}
	defer server.Unmount()

	tu.ShouldHaveSameContent(filepath.Join(mountPoint, "file1.txt"), "high content1", t)
	tu.ShouldHaveSameContent(filepath.Join(mountPoint, "dir3", "deep.txt"), "deep", t)

	entries, err := os.ReadDir(mountPoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	tu.NamesShouldEqual(names, []string{"file1.txt", "file2.txt", "dir1", "dir3", "only-low.txt"}, t)

	if err := os.WriteFile(filepath.Join(mountPoint, "file2.txt"), []byte("x"), 0644); err == nil {
		t.Error("write through read-only view succeeded")
	}
}

func TestOverlayNode_Readlink(t *testing.T) {
	ts := NewTestSetup(t)
	ctx := context.Background()

	if err := os.Symlink("file2.txt", ts.Layout.Logical("link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink("file2.txt", ts.Layout.Logical("baselink")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	// the overlay copy points at the overlay's own file1.txt
	if err := os.Symlink("file1.txt", ts.Layout.Overlay(0, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"link", "file1.txt"},
		{"baselink", "file2.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, errno := ts.Child(tt.name)
			if errno != 0 {
				t.Fatalf("Lookup(%s): %v", tt.name, errno)
			}
			got, errno := node.Readlink(ctx)
			if errno != 0 {
				t.Fatalf("Readlink: %v", errno)
			}
			if string(got) != tt.want {
				t.Errorf("Readlink(%s) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}

	node, errno := ts.Child("file2.txt")
	if errno != 0 {
		t.Fatalf("Lookup(file2.txt): %v", errno)
	}
	if _, errno := node.Readlink(ctx); errno != syscall.EINVAL {
		t.Errorf("Readlink on a regular file = %v, want EINVAL", errno)
	}
}
