//go:build linux
// +build linux

package fs

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// ThreadGuard keys the re-entrancy flag by OS thread id. The goroutine that
// enters is pinned to its thread until release so the flag cannot migrate.
//
// Inside the preloaded library the flag lives in C thread-local storage
// instead; this implementation serves pure-Go callers (CLI, FUSE preview).
type ThreadGuard struct {
	active sync.Map // tid -> struct{}
}

// NewThreadGuard creates a guard with no thread holding the flag
func NewThreadGuard() *ThreadGuard {
	return &ThreadGuard{}
}

// Enter sets the flag for the calling thread
func (g *ThreadGuard) Enter() func() {
	runtime.LockOSThread()
	tid := unix.Gettid()
	_, wasActive := g.active.LoadOrStore(tid, struct{}{})

	return func() {
		if !wasActive {
			g.active.Delete(tid)
		}
		runtime.UnlockOSThread()
	}
}

// Active reports whether the calling thread holds the flag
func (g *ThreadGuard) Active() bool {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	_, ok := g.active.Load(unix.Gettid())
	return ok
}
