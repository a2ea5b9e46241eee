package pathutil

import (
	"testing"
)

func TestQualify(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		path     string
		expected string
	}{
		{
			name:     "simple file",
			root:     "/overlay/high",
			path:     "/etc/foo.conf",
			expected: "/overlay/high/etc/foo.conf",
		},
		{
			name:     "root directory",
			root:     "/overlay/high",
			path:     "/",
			expected: "/overlay/high/",
		},
		{
			name:     "nested path",
			root:     "/overlay/low",
			path:     "/usr/share/doc/readme",
			expected: "/overlay/low/usr/share/doc/readme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Qualify(tt.root, tt.path)
			if result != tt.expected {
				t.Errorf("Qualify(%s, %s) = %s, expected %s", tt.root, tt.path, result, tt.expected)
			}
		})
	}
}

func TestStripRoot(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		root     string
		expected string
		ok       bool
	}{
		{
			name:     "simple file",
			path:     "/overlay/high/etc/foo.conf",
			root:     "/overlay/high",
			expected: "/etc/foo.conf",
			ok:       true,
		},
		{
			name:     "root itself",
			path:     "/overlay/high",
			root:     "/overlay/high",
			expected: "/",
			ok:       true,
		},
		{
			name: "sibling with same prefix",
			path: "/overlay/highway/etc",
			root: "/overlay/high",
			ok:   false,
		},
		{
			name: "outside root",
			path: "/etc/foo.conf",
			root: "/overlay/high",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := StripRoot(tt.path, tt.root)
			if ok != tt.ok || result != tt.expected {
				t.Errorf("StripRoot(%s, %s) = (%s, %v), expected (%s, %v)", tt.path, tt.root, result, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestIsAbs(t *testing.T) {
	tests := map[string]bool{
		"/etc":     true,
		"/":        true,
		"etc/foo":  false,
		"./foo":    false,
		"":         false,
		"../x/..":  false,
		"//double": true,
	}

	for path, expected := range tests {
		if result := IsAbs(path); result != expected {
			t.Errorf("IsAbs(%q) = %v, expected %v", path, result, expected)
		}
	}
}

func TestHasPathPrefix(t *testing.T) {
	if !HasPathPrefix("/etc/preloadfs-overlays.conf", "/etc/preloadfs-overlays.conf") {
		t.Error("a path should have itself as prefix")
	}
	if !HasPathPrefix("/etc/preloadfs-overlays.conf.bak", "/etc/preloadfs-overlays.conf") {
		t.Error("prefix match is textual")
	}
	if HasPathPrefix("/etc/anything", "") {
		t.Error("an empty prefix never matches")
	}
}
