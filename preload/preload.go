// Command preload is built with -buildmode=c-shared into libpreloadfs.so.
// Loaded through LD_PRELOAD it redirects filesystem calls to overlay roots
// listed in the configuration file and merges overlay directories into
// directory listings.
package main

/*
#cgo CFLAGS: -O2 -Wall
#cgo LDFLAGS: -ldl

#include "preload.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"unsafe"

	pfs "github.com/pleclech/preloadfs/fs"
	"github.com/pleclech/preloadfs/fs/config"
)

// symbols the layer forwards to, resolved together on first use
var realSymbols = []pfs.Symbol{
	{Name: "open"},
	{Name: "openat"},
	{Name: "creat"},
	{Name: "fopen"},
	{Name: "stat"},
	{Name: "lstat"},
	{Name: "fstatat"},
	{Name: "access"},
	{Name: "faccessat"},
	{Name: "readlink"},
	{Name: "readlinkat"},
	{Name: "execve"},
	{Name: "execv"},
	{Name: "execvp"},
	{Name: "unlink"},
	{Name: "unlinkat"},
	{Name: "rmdir"},
	{Name: "mkdir"},
	{Name: "mkdirat"},
	{Name: "rename"},
	{Name: "renameat"},
	{Name: "link"},
	{Name: "linkat"},
	{Name: "symlink"},
	{Name: "symlinkat"},
	{Name: "chdir"},
	{Name: "chmod"},
	{Name: "fchmodat"},
	{Name: "chown"},
	{Name: "lchown"},
	{Name: "fchownat"},
	{Name: "truncate"},
	{Name: "opendir"},
	{Name: "readdir"},
	{Name: "closedir"},
	{Name: "statx", Optional: true},
	{Name: "open64", Optional: true},
	{Name: "openat64", Optional: true},
	{Name: "creat64", Optional: true},
	{Name: "fopen64", Optional: true},
	{Name: "stat64", Optional: true},
	{Name: "lstat64", Optional: true},
	{Name: "fstatat64", Optional: true},
	{Name: "readdir64", Optional: true},
}

// layer is everything one process needs to interpose
type layer struct {
	symbols  *pfs.SymbolTable
	resolver *pfs.Resolver
	merger   *pfs.DirMerger
	dispatch *pfs.Dispatcher[*C.char]
}

var (
	theLayer     *layer
	theLayerOnce sync.Once
)

func lookupSymbol(name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.pf_next_symbol(cname)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "preloadfs: "+format+"\n", args...)
	C.abort()
}

func newLayer(provider *config.Provider, lookup func(string) unsafe.Pointer) *layer {
	symbols := pfs.NewSymbolTable(realSymbols, lookup, fatal)
	ops := &libcDirs{symbols: symbols}
	resolver := pfs.NewResolver(provider, ops, cGuard{}, provider.Path())
	return &layer{
		symbols:  symbols,
		resolver: resolver,
		merger:   pfs.NewDirMerger(resolver, ops, nil),
		dispatch: pfs.NewDispatcher[*C.char](resolver, cCodec{}),
	}
}

func getLayer() *layer {
	theLayerOnce.Do(func() {
		pfs.SetGlobalLevel(pfs.LevelFromEnv())
		theLayer = newLayer(config.Default(), lookupSymbol)
	})
	return theLayer
}

// cGuard keeps the re-entrancy flag in C thread-local storage. Exported
// calls run on the caller's thread, so the flag follows the OS thread.
type cGuard struct{}

func (cGuard) Enter() func() {
	prev := C.pf_guard_swap(1)
	return func() {
		C.pf_guard_swap(prev)
	}
}

func (cGuard) Active() bool {
	return C.pf_guard_active() != 0
}

// cCodec decodes NUL-terminated C path arguments
type cCodec struct{}

func (cCodec) Decode(p *C.char) (string, bool) {
	if p == nil {
		return "", false
	}
	return pfs.StringCodec{}.Decode(C.GoString(p))
}

func (cCodec) Encode(s string) (*C.char, func()) {
	cs := C.CString(s)
	return cs, func() {
		C.free(unsafe.Pointer(cs))
	}
}

// publishErrno makes err the errno seen by the interposed caller
func publishErrno(err error) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		errno = syscall.EIO
	}
	C.pf_set_errno(C.int(errno))
}

func missing() C.int {
	C.pf_set_errno(C.ENOSYS)
	return -1
}

func missingPtr() unsafe.Pointer {
	C.pf_set_errno(C.ENOSYS)
	return nil
}

// calls made before this point went straight to libc
func init() {
	C.pf_mark_go_ready()
}

func main() {}
