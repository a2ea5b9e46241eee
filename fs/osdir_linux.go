//go:build linux
// +build linux

package fs

import (
	"io"
	"sync"
	"unsafe"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// OSReal implements Prober and DirOps on raw system calls. Directory handles
// are the file descriptors themselves.
type OSReal struct {
	mu   sync.Mutex
	dirs map[Handle]*osDir
}

type osDir struct {
	fd   int
	buf  []byte
	todo []byte
}

// NewOSReal creates an OSReal with no open directories
func NewOSReal() *OSReal {
	return &OSReal{
		dirs: make(map[Handle]*osDir),
	}
}

// Stat follows symlinks like stat(2)
func (o *OSReal) Stat(path string, st *unix.Stat_t) error {
	return unix.Stat(path, st)
}

// OpenDir opens path for enumeration
func (o *OSReal) OpenDir(path string) (Handle, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}

	h := Handle(fd)
	o.mu.Lock()
	o.dirs[h] = &osDir{fd: fd, buf: make([]byte, 4096)}
	o.mu.Unlock()
	return h, nil
}

// ReadDir returns the next raw entry of h, io.EOF at the end. The shape is
// irrelevant here: getdents64 records are always decoded.
func (o *OSReal) ReadDir(h Handle, _ Shape) (Entry, error) {
	o.mu.Lock()
	d, ok := o.dirs[h]
	o.mu.Unlock()
	if !ok {
		return Entry{}, unix.EBADF
	}
	return d.next()
}

// CloseDir releases h
func (o *OSReal) CloseDir(h Handle) error {
	o.mu.Lock()
	d, ok := o.dirs[h]
	delete(o.dirs, h)
	o.mu.Unlock()
	if !ok {
		return unix.EBADF
	}
	return unix.Close(d.fd)
}

// OpenCount reports how many directories are open
func (o *OSReal) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.dirs)
}

// Like unix.Dirent, but without the [256]byte name.
type dirent struct {
	Ino    uint64
	Off    int64
	Reclen uint16
	Type   uint8
	Name   [1]uint8 // align to 4 bytes for 32 bits.
}

func (d *osDir) load() error {
	if len(d.todo) > 0 {
		return nil
	}

	n, err := unix.Getdents(d.fd, d.buf)
	if n < 0 {
		n = 0
	}
	d.todo = d.buf[:n]
	return err
}

func (d *osDir) next() (Entry, error) {
	nameOffset := int(unsafe.Offsetof(dirent{}.Name))

	for {
		if len(d.todo) == 0 {
			if err := d.load(); err != nil {
				return Entry{}, err
			}
			if len(d.todo) == 0 {
				return Entry{}, io.EOF
			}
		}

		if len(d.todo) < nameOffset {
			return Entry{}, unix.EIO
		}
		de := (*dirent)(unsafe.Pointer(&d.todo[0]))
		if int(de.Reclen) < nameOffset || int(de.Reclen) > len(d.todo) {
			return Entry{}, unix.EIO
		}

		nameBytes := d.todo[nameOffset:de.Reclen]
		d.todo = d.todo[de.Reclen:]

		l := 0
		for l < len(nameBytes) && nameBytes[l] != 0 {
			l++
		}
		if l == 0 {
			continue
		}

		return Entry{
			DirEntry: fuse.DirEntry{
				Ino:  de.Ino,
				Mode: uint32(de.Type) << 12,
				Name: string(nameBytes[:l]),
			},
		}, nil
	}
}
