//go:build linux
// +build linux

package fs

import (
	"context"
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/pleclech/preloadfs/fs/rootinit"
	"github.com/pleclech/preloadfs/fs/utils"
)

// OverlayNode is a read-only loopback node. Lookups, attributes, reads and
// listings see the tree the preloaded library would present to a process.
type OverlayNode struct {
	fs.LoopbackNode

	view *overlayView
}

type overlayView struct {
	resolver *Resolver
	merger   *DirMerger
}

var (
	_ = (fs.NodeLookuper)((*OverlayNode)(nil))
	_ = (fs.NodeGetattrer)((*OverlayNode)(nil))
	_ = (fs.NodeOpener)((*OverlayNode)(nil))
	_ = (fs.NodeOpendirer)((*OverlayNode)(nil))
	_ = (fs.NodeReaddirer)((*OverlayNode)(nil))
	_ = (fs.NodeReadlinker)((*OverlayNode)(nil))
)

// realPath returns the overlay replacement of p, or p itself
func (v *overlayView) realPath(p string, kind Kind) string {
	if target, ok := v.resolver.Resolve(p, kind); ok {
		return target
	}
	return p
}

// logicalPath is the path a preloaded process would have used
func (n *OverlayNode) logicalPath() string {
	return filepath.Join(n.RootData.Path, n.Path(n.Root()))
}

func (n *OverlayNode) idFromStat(st *syscall.Stat_t) fs.StableAttr {
	// mix the device into the inode number, masking out the root device so
	// a single-device tree keeps its own inode numbers
	swapped := (uint64(st.Dev) << 32) | (uint64(st.Dev) >> 32)
	rDev := n.RootData.Dev
	swappedRootDev := (rDev << 32) | (rDev >> 32)

	return fs.StableAttr{
		Mode: uint32(st.Mode),
		Gen:  1,
		Ino:  (swapped ^ swappedRootDev) ^ st.Ino,
	}
}

func (n *OverlayNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !utils.ValidateName(name) {
		return nil, syscall.EPERM
	}

	p := filepath.Join(n.logicalPath(), name)
	target := n.view.realPath(p, KindAny)

	var st syscall.Stat_t
	if err := syscall.Lstat(target, &st); err != nil {
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)

	node := n.RootData.NewNode(n.RootData, n.EmbeddedInode(), name, &st)
	ch := n.NewInode(ctx, node, n.idFromStat(&st))
	return ch, 0
}

func (n *OverlayNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if f != nil {
		if fga, ok := f.(fs.FileGetattrer); ok {
			return fga.Getattr(ctx, out)
		}
	}

	p := n.view.realPath(n.logicalPath(), KindAny)
	var st syscall.Stat_t
	if err := syscall.Lstat(p, &st); err != nil {
		return fs.ToErrno(err)
	}
	out.FromStat(&st)
	return fs.OK
}

func (n *OverlayNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND|syscall.O_CREAT) != 0 {
		return nil, 0, syscall.EROFS
	}

	p := n.view.realPath(n.logicalPath(), KindFile)
	Debug("Open: %s -> %s", n.logicalPath(), p)

	fd, err := syscall.Open(p, int(flags), 0)
	if err != nil {
		return nil, 0, fs.ToErrno(err)
	}
	return fs.NewLoopbackFile(fd), 0, 0
}

func (n *OverlayNode) Opendir(ctx context.Context) syscall.Errno {
	h, err := n.view.merger.Open(n.logicalPath())
	if err != nil {
		return fs.ToErrno(err)
	}
	return fs.ToErrno(n.view.merger.Close(h))
}

func (n *OverlayNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	return NewMergedDirStream(n.view.merger, n.logicalPath())
}

func (n *OverlayNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	p := n.view.realPath(n.logicalPath(), KindFile)

	buf := make([]byte, 4096)
	bytesRead, err := syscall.Readlink(p, buf)
	if err != nil {
		return nil, fs.ToErrno(err)
	}
	return buf[:bytesRead], 0
}

// The view never writes; the mount is also made with "ro".

func (n *OverlayNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

func (n *OverlayNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

func (n *OverlayNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *OverlayNode) Mknod(ctx context.Context, name string, mode, rdev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *OverlayNode) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *OverlayNode) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *OverlayNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *OverlayNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *OverlayNode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.EROFS
}

func newOverlayNode(rootData *fs.LoopbackRoot, parent *fs.Inode, _ string, _ *syscall.Stat_t) fs.InodeEmbedder {
	n := &OverlayNode{
		LoopbackNode: fs.LoopbackNode{
			RootData: rootData,
		},
	}

	if parent != nil {
		if ops, ok := parent.Operations().(*OverlayNode); ok {
			n.view = ops.view
		}
	}
	return n
}

// NewOverlayRoot creates the root node of a preview of inSrcDir
func NewOverlayRoot(inSrcDir string, resolver *Resolver, merger *DirMerger) (fs.InodeEmbedder, error) {
	srcDir, err := rootinit.GetMountPoint(inSrcDir)
	if err != nil {
		return nil, fmt.Errorf("get source directory error:\n%w", err)
	}

	var st syscall.Stat_t
	if err := syscall.Stat(srcDir, &st); err != nil {
		return nil, fmt.Errorf("stat source directory: %w", err)
	}

	rootData := &fs.LoopbackRoot{
		NewNode: newOverlayNode,
		Path:    srcDir,
		Dev:     uint64(st.Dev),
	}

	root := &OverlayNode{
		LoopbackNode: fs.LoopbackNode{
			RootData: rootData,
		},
		view: &overlayView{
			resolver: resolver,
			merger:   merger,
		},
	}
	return root, nil
}

// MountOverlay mounts root read-only at mountPoint. Kernel caching is off
// since overlay roots may change underneath the view.
func MountOverlay(mountPoint string, root fs.InodeEmbedder, debug bool) (*fuse.Server, error) {
	zeroDuration := time.Duration(0)
	opts := &fs.Options{
		EntryTimeout:    &zeroDuration,
		AttrTimeout:     &zeroDuration,
		NegativeTimeout: &zeroDuration,
	}
	opts.MountOptions.Options = []string{"ro"}
	opts.MountOptions.FsName = "preloadfs"
	opts.MountOptions.Name = "preloadfs"
	opts.Debug = debug

	return fs.Mount(mountPoint, root, opts)
}
