package fs

// Guard is the re-entrancy flag consulted before any overlay resolution.
//
// The flag belongs to one OS thread. It is held while the resolver probes an
// overlay candidate so that lookups the probe triggers on the same thread go
// straight to the real filesystem. Implementations must never share the flag
// between threads.
type Guard interface {
	// Enter sets the flag and returns a function restoring its prior value
	Enter() (release func())
	// Active reports whether the calling thread holds the flag
	Active() bool
}

// noGuard never reports an active flag
type noGuard struct{}

func (noGuard) Enter() func() { return func() {} }
func (noGuard) Active() bool  { return false }
