package fs

import (
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

// AtFDCWD is the directory descriptor meaning "current working directory"
const AtFDCWD = unix.AT_FDCWD

// PathCodec converts a caller's raw path argument to and from a Go string
type PathCodec[P any] interface {
	// Decode reports false for arguments that are not ours to rewrite
	Decode(p P) (string, bool)
	// Encode builds a replacement argument and the function releasing it
	Encode(s string) (p P, release func())
}

// Dispatcher applies overlay resolution to raw path arguments
type Dispatcher[P any] struct {
	resolver *Resolver
	codec    PathCodec[P]
}

// NewDispatcher creates a Dispatcher
func NewDispatcher[P any](resolver *Resolver, codec PathCodec[P]) *Dispatcher[P] {
	return &Dispatcher[P]{
		resolver: resolver,
		codec:    codec,
	}
}

// Resolver returns the resolver behind the dispatcher
func (d *Dispatcher[P]) Resolver() *Resolver {
	return d.resolver
}

// Substitute returns the overlay replacement for p. ok is false when p must
// be forwarded unchanged; release must be called once the replacement is no
// longer used.
func (d *Dispatcher[P]) Substitute(p P, kind Kind) (repl P, release func(), ok bool) {
	path, ok := d.codec.Decode(p)
	if !ok {
		return repl, nil, false
	}
	target, ok := d.resolver.Resolve(path, kind)
	if !ok {
		return repl, nil, false
	}
	repl, release = d.codec.Encode(target)
	return repl, release, true
}

// Single forwards a one-path call, substituting the overlay path when one
// matches
func Single[P, T any](d *Dispatcher[P], p P, kind Kind, call func(P) T) T {
	repl, release, ok := d.Substitute(p, kind)
	if !ok {
		return call(p)
	}
	defer release()
	return call(repl)
}

// At forwards an "at" call. Paths relative to a descriptor other than
// AT_FDCWD are forwarded unchanged.
func At[P, T any](d *Dispatcher[P], dirfd int, p P, kind Kind, call func(P) T) T {
	if dirfd != AtFDCWD {
		return call(p)
	}
	return Single(d, p, kind, call)
}

// Pair forwards a two-path call. Both paths are substituted or neither is,
// so a rename or link never mixes an overlay path with a base path.
func Pair[P, T any](d *Dispatcher[P], oldp, newp P, kind Kind, call func(oldp, newp P) T) T {
	oldRepl, oldRelease, ok := d.Substitute(oldp, kind)
	if !ok {
		return call(oldp, newp)
	}
	defer oldRelease()

	newRepl, newRelease, ok := d.Substitute(newp, kind)
	if !ok {
		return call(oldp, newp)
	}
	defer newRelease()

	return call(oldRepl, newRepl)
}

// PairAt forwards a two-path "at" call; both descriptors must be AT_FDCWD
func PairAt[P, T any](d *Dispatcher[P], olddirfd int, oldp P, newdirfd int, newp P, kind Kind, call func(oldp, newp P) T) T {
	if olddirfd != AtFDCWD || newdirfd != AtFDCWD {
		return call(oldp, newp)
	}
	return Pair(d, oldp, newp, kind, call)
}

// StringCodec is the PathCodec for Go strings. Empty and non UTF-8 paths are
// left alone.
type StringCodec struct{}

func (StringCodec) Decode(p string) (string, bool) {
	if p == "" || !utf8.ValidString(p) {
		return "", false
	}
	return p, true
}

func (StringCodec) Encode(s string) (string, func()) {
	return s, func() {}
}
