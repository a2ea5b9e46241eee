package main

/*
#include "preload.h"
*/
import "C"

import (
	"io"
	"syscall"
	"unsafe"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	pfs "github.com/pleclech/preloadfs/fs"
)

// libcDirs implements the resolver probe and the merge engine's directory
// operations on the real libc functions. Handles are DIR* addresses.
type libcDirs struct {
	symbols *pfs.SymbolTable
}

// dirPtr recovers the DIR* a Handle was made from. Handles here only hold
// C pointers, which the Go collector never moves or frees.
func dirPtr(h pfs.Handle) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&h))
}

func errnoOf(err C.int) error {
	if err == 0 {
		return syscall.EIO
	}
	return syscall.Errno(err)
}

// Stat follows symlinks; only the mode is filled in
func (l *libcDirs) Stat(path string, st *unix.Stat_t) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var mode C.uint
	var cerr C.int
	if C.pf_probe(l.symbols.MustGet("stat"), cpath, &mode, &cerr) != 0 {
		return errnoOf(cerr)
	}
	st.Mode = uint32(mode)
	return nil
}

func (l *libcDirs) OpenDir(path string) (pfs.Handle, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var cerr C.int
	d := C.pf_opendir(l.symbols.MustGet("opendir"), cpath, &cerr)
	if d == nil {
		return 0, errnoOf(cerr)
	}
	return pfs.Handle(uintptr(d)), nil
}

func (l *libcDirs) readdirFor(shape pfs.Shape) (unsafe.Pointer, pfs.Shape) {
	if shape == pfs.ShapeDirent64 {
		if fn, ok := l.symbols.Get("readdir64"); ok {
			return fn, pfs.ShapeDirent64
		}
	}
	// without readdir64 both layouts are the same struct
	return l.symbols.MustGet("readdir"), pfs.ShapeDirent
}

func (l *libcDirs) ReadDir(h pfs.Handle, shape pfs.Shape) (pfs.Entry, error) {
	fn, actual := l.readdirFor(shape)

	var cerr C.int
	raw := C.pf_readdir(fn, dirPtr(h), &cerr)
	if raw == nil {
		if cerr != 0 {
			return pfs.Entry{}, syscall.Errno(cerr)
		}
		return pfs.Entry{}, io.EOF
	}

	var ino C.ulonglong
	var typ C.uchar
	name := C.pf_dirent_info(raw, C.int(actual), &ino, &typ)
	return pfs.Entry{
		DirEntry: fuse.DirEntry{
			Name: C.GoString(name),
			Ino:  uint64(ino),
			Mode: uint32(typ) << 12,
		},
		Raw: raw,
	}, nil
}

func (l *libcDirs) CloseDir(h pfs.Handle) error {
	var cerr C.int
	if C.pf_closedir(l.symbols.MustGet("closedir"), dirPtr(h), &cerr) != 0 {
		return errnoOf(cerr)
	}
	return nil
}

// stage copies an entry into the thread's scratch buffer for shape
func stage(e pfs.Entry, shape pfs.Shape) unsafe.Pointer {
	return C.pf_stage_dirent(e.Raw, C.int(shape))
}
