package fs

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Symbol names one real implementation the layer forwards to
type Symbol struct {
	Name string
	// Optional symbols may be missing on some platforms; callers must
	// report ENOSYS instead of calling them
	Optional bool
}

// SymbolTable resolves every real implementation once, on first use, and
// caches the addresses for the lifetime of the process
type SymbolTable struct {
	symbols []Symbol
	lookup  func(name string) unsafe.Pointer
	fatal   func(format string, args ...interface{})

	once     sync.Once
	resolved atomic.Bool
	addrs    map[string]unsafe.Pointer
}

// NewSymbolTable creates a table. lookup returns nil for unknown names;
// fatal is called for a missing mandatory symbol and must not return.
func NewSymbolTable(symbols []Symbol, lookup func(string) unsafe.Pointer, fatal func(string, ...interface{})) *SymbolTable {
	return &SymbolTable{
		symbols: symbols,
		lookup:  lookup,
		fatal:   fatal,
	}
}

func (t *SymbolTable) resolve() {
	t.once.Do(func() {
		Debug("resolving %d real symbols", len(t.symbols))
		addrs := make(map[string]unsafe.Pointer, len(t.symbols))
		for _, sym := range t.symbols {
			addr := t.lookup(sym.Name)
			if addr == nil {
				if !sym.Optional {
					Error("failed to load critical symbol: %s", sym.Name)
					t.fatal("failed to load critical symbol: %s", sym.Name)
					continue
				}
				Debug("optional symbol %s not available", sym.Name)
				continue
			}
			addrs[sym.Name] = addr
		}
		t.addrs = addrs
		t.resolved.Store(true)
	})
}

// Get returns the real implementation of name, false when it is absent
func (t *SymbolTable) Get(name string) (unsafe.Pointer, bool) {
	t.resolve()
	addr, ok := t.addrs[name]
	return addr, ok
}

// MustGet returns the real implementation of a mandatory symbol
func (t *SymbolTable) MustGet(name string) unsafe.Pointer {
	addr, ok := t.Get(name)
	if !ok {
		t.fatal("symbol %s requested but not resolved", name)
	}
	return addr
}

// Resolved reports whether the table has been populated
func (t *SymbolTable) Resolved() bool {
	return t.resolved.Load()
}
