package fs

import (
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// MergedDirStream exposes a merged directory session as a go-fuse DirStream
type MergedDirStream struct {
	merger *DirMerger

	mu        sync.Mutex
	handle    Handle
	closed    bool
	done      bool
	next      *fuse.DirEntry
	nextErrno syscall.Errno
}

// NewMergedDirStream opens path through the merger
func NewMergedDirStream(merger *DirMerger, path string) (fs.DirStream, syscall.Errno) {
	h, err := merger.Open(path)
	if err != nil {
		return nil, fs.ToErrno(err)
	}
	return &MergedDirStream{
		merger: merger,
		handle: h,
	}, fs.OK
}

func (ds *MergedDirStream) HasNext() bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.next != nil || ds.nextErrno != 0 {
		return true
	}
	if ds.done || ds.closed {
		return false
	}

	e, err := ds.merger.Read(ds.handle, ShapeDirent64)
	if err == io.EOF {
		ds.done = true
		return false
	}
	if err != nil {
		// surfaced by the following Next call
		ds.nextErrno = fs.ToErrno(err)
		return true
	}
	entry := e.DirEntry
	ds.next = &entry
	return true
}

func (ds *MergedDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.nextErrno != 0 {
		errno := ds.nextErrno
		ds.nextErrno = 0
		ds.done = true
		return fuse.DirEntry{}, errno
	}
	if ds.next == nil {
		return fuse.DirEntry{}, syscall.ENOENT
	}
	e := *ds.next
	ds.next = nil
	return e, fs.OK
}

// Close releases the session; calling it twice is a no-op
func (ds *MergedDirStream) Close() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return
	}
	ds.closed = true
	if err := ds.merger.Close(ds.handle); err != nil {
		Warn("closing merged stream: %v", err)
	}
}

// ReadAll drains a merged directory into a slice. The session is closed
// before returning.
func ReadAll(merger *DirMerger, path string) ([]fuse.DirEntry, error) {
	h, err := merger.Open(path)
	if err != nil {
		return nil, err
	}

	var entries []fuse.DirEntry
	for {
		e, err := merger.Read(h, ShapeDirent64)
		if err == io.EOF {
			break
		}
		if err != nil {
			return entries, errors.Join(err, merger.Close(h))
		}
		entries = append(entries, e.DirEntry)
	}
	return entries, merger.Close(h)
}
