//go:build !linux
// +build !linux

package rootinit

import (
	"fmt"
)

// FindMount needs the Linux mount table
func FindMount(path string) (Mount, error) {
	return Mount{}, fmt.Errorf("mount table is not available on this platform")
}

// IsMountPoint needs the Linux mount table
func IsMountPoint(dir string) (bool, error) {
	return false, fmt.Errorf("mount table is not available on this platform")
}
