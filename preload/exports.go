package main

/*
#include "preload.h"
*/
import "C"

import (
	"io"
	"unsafe"

	pfs "github.com/pleclech/preloadfs/fs"
)

// open family

//export preloadfs_open
func preloadfs_open(path *C.char, flags C.int, mode C.mode_t) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("open")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_open(fn, p, flags, mode)
	})
}

//export preloadfs_open64
func preloadfs_open64(path *C.char, flags C.int, mode C.mode_t) C.int {
	l := getLayer()
	fn, ok := l.symbols.Get("open64")
	if !ok {
		return missing()
	}
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_open(fn, p, flags, mode)
	})
}

//export preloadfs_openat
func preloadfs_openat(dirfd C.int, path *C.char, flags C.int, mode C.mode_t) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("openat")
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_openat(fn, dirfd, p, flags, mode)
	})
}

//export preloadfs_openat64
func preloadfs_openat64(dirfd C.int, path *C.char, flags C.int, mode C.mode_t) C.int {
	l := getLayer()
	fn, ok := l.symbols.Get("openat64")
	if !ok {
		return missing()
	}
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_openat(fn, dirfd, p, flags, mode)
	})
}

//export preloadfs_creat
func preloadfs_creat(path *C.char, mode C.mode_t) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("creat")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_path_mode(fn, p, mode)
	})
}

//export preloadfs_creat64
func preloadfs_creat64(path *C.char, mode C.mode_t) C.int {
	l := getLayer()
	fn, ok := l.symbols.Get("creat64")
	if !ok {
		return missing()
	}
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_path_mode(fn, p, mode)
	})
}

//export preloadfs_fopen
func preloadfs_fopen(path *C.char, mode *C.char) unsafe.Pointer {
	l := getLayer()
	fn := l.symbols.MustGet("fopen")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) unsafe.Pointer {
		return C.pf_call_fopen(fn, p, mode)
	})
}

//export preloadfs_fopen64
func preloadfs_fopen64(path *C.char, mode *C.char) unsafe.Pointer {
	l := getLayer()
	fn, ok := l.symbols.Get("fopen64")
	if !ok {
		return missingPtr()
	}
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) unsafe.Pointer {
		return C.pf_call_fopen(fn, p, mode)
	})
}

// stat family: a file or a directory may shadow

func statWith(name string, optional bool, path *C.char, buf unsafe.Pointer) C.int {
	l := getLayer()
	fn, ok := l.symbols.Get(name)
	if !ok {
		if optional {
			return missing()
		}
		fn = l.symbols.MustGet(name)
	}
	return pfs.Single(l.dispatch, path, pfs.KindAny, func(p *C.char) C.int {
		return C.pf_call_path_buf(fn, p, buf)
	})
}

//export preloadfs_stat
func preloadfs_stat(path *C.char, buf unsafe.Pointer) C.int {
	return statWith("stat", false, path, buf)
}

//export preloadfs_lstat
func preloadfs_lstat(path *C.char, buf unsafe.Pointer) C.int {
	return statWith("lstat", false, path, buf)
}

//export preloadfs_stat64
func preloadfs_stat64(path *C.char, buf unsafe.Pointer) C.int {
	return statWith("stat64", true, path, buf)
}

//export preloadfs_lstat64
func preloadfs_lstat64(path *C.char, buf unsafe.Pointer) C.int {
	return statWith("lstat64", true, path, buf)
}

func fstatatWith(name string, optional bool, dirfd C.int, path *C.char, buf unsafe.Pointer, flags C.int) C.int {
	l := getLayer()
	fn, ok := l.symbols.Get(name)
	if !ok {
		if optional {
			return missing()
		}
		fn = l.symbols.MustGet(name)
	}
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindAny, func(p *C.char) C.int {
		return C.pf_call_fstatat(fn, dirfd, p, buf, flags)
	})
}

//export preloadfs_fstatat
func preloadfs_fstatat(dirfd C.int, path *C.char, buf unsafe.Pointer, flags C.int) C.int {
	return fstatatWith("fstatat", false, dirfd, path, buf, flags)
}

//export preloadfs_fstatat64
func preloadfs_fstatat64(dirfd C.int, path *C.char, buf unsafe.Pointer, flags C.int) C.int {
	return fstatatWith("fstatat64", true, dirfd, path, buf, flags)
}

//export preloadfs_statx
func preloadfs_statx(dirfd C.int, path *C.char, flags C.int, mask C.uint, buf unsafe.Pointer) C.int {
	l := getLayer()
	fn, ok := l.symbols.Get("statx")
	if !ok {
		return missing()
	}
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindAny, func(p *C.char) C.int {
		return C.pf_call_statx(fn, dirfd, p, flags, mask, buf)
	})
}

//export preloadfs_access
func preloadfs_access(path *C.char, mode C.int) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("access")
	return pfs.Single(l.dispatch, path, pfs.KindAny, func(p *C.char) C.int {
		return C.pf_call_path_int(fn, p, mode)
	})
}

//export preloadfs_faccessat
func preloadfs_faccessat(dirfd C.int, path *C.char, mode C.int, flags C.int) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("faccessat")
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindAny, func(p *C.char) C.int {
		return C.pf_call_faccessat(fn, dirfd, p, mode, flags)
	})
}

// links and exec

//export preloadfs_readlink
func preloadfs_readlink(path *C.char, buf *C.char, size C.size_t) C.ssize_t {
	l := getLayer()
	fn := l.symbols.MustGet("readlink")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.ssize_t {
		return C.pf_call_readlink(fn, p, buf, size)
	})
}

//export preloadfs_readlinkat
func preloadfs_readlinkat(dirfd C.int, path *C.char, buf *C.char, size C.size_t) C.ssize_t {
	l := getLayer()
	fn := l.symbols.MustGet("readlinkat")
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindFile, func(p *C.char) C.ssize_t {
		return C.pf_call_readlinkat(fn, dirfd, p, buf, size)
	})
}

//export preloadfs_execve
func preloadfs_execve(path *C.char, argv **C.char, envp **C.char) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("execve")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_execve(fn, p, argv, envp)
	})
}

//export preloadfs_execv
func preloadfs_execv(path *C.char, argv **C.char) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("execv")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_execv(fn, p, argv)
	})
}

//export preloadfs_execvp
func preloadfs_execvp(file *C.char, argv **C.char) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("execvp")
	return pfs.Single(l.dispatch, file, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_execv(fn, p, argv)
	})
}

// namespace changes

func pathWith(name string, kind pfs.Kind, path *C.char) C.int {
	l := getLayer()
	fn := l.symbols.MustGet(name)
	return pfs.Single(l.dispatch, path, kind, func(p *C.char) C.int {
		return C.pf_call_path(fn, p)
	})
}

//export preloadfs_unlink
func preloadfs_unlink(path *C.char) C.int {
	return pathWith("unlink", pfs.KindFile, path)
}

//export preloadfs_rmdir
func preloadfs_rmdir(path *C.char) C.int {
	return pathWith("rmdir", pfs.KindDir, path)
}

//export preloadfs_chdir
func preloadfs_chdir(path *C.char) C.int {
	return pathWith("chdir", pfs.KindDir, path)
}

//export preloadfs_unlinkat
func preloadfs_unlinkat(dirfd C.int, path *C.char, flags C.int) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("unlinkat")
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_unlinkat(fn, dirfd, p, flags)
	})
}

//export preloadfs_mkdir
func preloadfs_mkdir(path *C.char, mode C.mode_t) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("mkdir")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_path_mode(fn, p, mode)
	})
}

//export preloadfs_mkdirat
func preloadfs_mkdirat(dirfd C.int, path *C.char, mode C.mode_t) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("mkdirat")
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_mkdirat(fn, dirfd, p, mode)
	})
}

func pairWith(name string, oldpath, newpath *C.char) C.int {
	l := getLayer()
	fn := l.symbols.MustGet(name)
	return pfs.Pair(l.dispatch, oldpath, newpath, pfs.KindFile, func(o, n *C.char) C.int {
		return C.pf_call_path2(fn, o, n)
	})
}

//export preloadfs_rename
func preloadfs_rename(oldpath, newpath *C.char) C.int {
	return pairWith("rename", oldpath, newpath)
}

//export preloadfs_link
func preloadfs_link(oldpath, newpath *C.char) C.int {
	return pairWith("link", oldpath, newpath)
}

//export preloadfs_symlink
func preloadfs_symlink(target, linkpath *C.char) C.int {
	return pairWith("symlink", target, linkpath)
}

//export preloadfs_renameat
func preloadfs_renameat(olddirfd C.int, oldpath *C.char, newdirfd C.int, newpath *C.char) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("renameat")
	return pfs.PairAt(l.dispatch, int(olddirfd), oldpath, int(newdirfd), newpath, pfs.KindFile, func(o, n *C.char) C.int {
		return C.pf_call_renameat(fn, olddirfd, o, newdirfd, n)
	})
}

//export preloadfs_linkat
func preloadfs_linkat(olddirfd C.int, oldpath *C.char, newdirfd C.int, newpath *C.char, flags C.int) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("linkat")
	return pfs.PairAt(l.dispatch, int(olddirfd), oldpath, int(newdirfd), newpath, pfs.KindFile, func(o, n *C.char) C.int {
		return C.pf_call_linkat(fn, olddirfd, o, newdirfd, n, flags)
	})
}

//export preloadfs_symlinkat
func preloadfs_symlinkat(target *C.char, newdirfd C.int, linkpath *C.char) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("symlinkat")
	// the target is not resolved against any descriptor
	return pfs.PairAt(l.dispatch, pfs.AtFDCWD, target, int(newdirfd), linkpath, pfs.KindFile, func(t, n *C.char) C.int {
		return C.pf_call_symlinkat(fn, t, newdirfd, n)
	})
}

// metadata changes

//export preloadfs_chmod
func preloadfs_chmod(path *C.char, mode C.mode_t) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("chmod")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_path_mode(fn, p, mode)
	})
}

//export preloadfs_fchmodat
func preloadfs_fchmodat(dirfd C.int, path *C.char, mode C.mode_t, flags C.int) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("fchmodat")
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_fchmodat(fn, dirfd, p, mode, flags)
	})
}

func chownWith(name string, path *C.char, owner C.uid_t, group C.gid_t) C.int {
	l := getLayer()
	fn := l.symbols.MustGet(name)
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_chown(fn, p, owner, group)
	})
}

//export preloadfs_chown
func preloadfs_chown(path *C.char, owner C.uid_t, group C.gid_t) C.int {
	return chownWith("chown", path, owner, group)
}

//export preloadfs_lchown
func preloadfs_lchown(path *C.char, owner C.uid_t, group C.gid_t) C.int {
	return chownWith("lchown", path, owner, group)
}

//export preloadfs_fchownat
func preloadfs_fchownat(dirfd C.int, path *C.char, owner C.uid_t, group C.gid_t, flags C.int) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("fchownat")
	return pfs.At(l.dispatch, int(dirfd), path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_fchownat(fn, dirfd, p, owner, group, flags)
	})
}

//export preloadfs_truncate
func preloadfs_truncate(path *C.char, length C.off_t) C.int {
	l := getLayer()
	fn := l.symbols.MustGet("truncate")
	return pfs.Single(l.dispatch, path, pfs.KindFile, func(p *C.char) C.int {
		return C.pf_call_truncate(fn, p, length)
	})
}

// directory streams

//export preloadfs_opendir
func preloadfs_opendir(path *C.char) unsafe.Pointer {
	l := getLayer()
	name, ok := cCodec{}.Decode(path)
	if !ok {
		var cerr C.int
		d := C.pf_opendir(l.symbols.MustGet("opendir"), path, &cerr)
		if d == nil {
			C.pf_set_errno(cerr)
		}
		return d
	}

	h, err := l.merger.Open(name)
	if err != nil {
		publishErrno(err)
		return nil
	}
	return dirPtr(h)
}

func readdirShape(dirp unsafe.Pointer, shape pfs.Shape) unsafe.Pointer {
	e, err := getLayer().merger.Read(pfs.Handle(uintptr(dirp)), shape)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		publishErrno(err)
		return nil
	}
	return stage(e, shape)
}

//export preloadfs_readdir
func preloadfs_readdir(dirp unsafe.Pointer) unsafe.Pointer {
	return readdirShape(dirp, pfs.ShapeDirent)
}

//export preloadfs_readdir64
func preloadfs_readdir64(dirp unsafe.Pointer) unsafe.Pointer {
	return readdirShape(dirp, pfs.ShapeDirent64)
}

//export preloadfs_closedir
func preloadfs_closedir(dirp unsafe.Pointer) C.int {
	if err := getLayer().merger.Close(pfs.Handle(uintptr(dirp))); err != nil {
		publishErrno(err)
		return -1
	}
	return 0
}
