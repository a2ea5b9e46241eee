//go:build linux
// +build linux

package rootinit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const procMounts = "/proc/mounts"

// parseMounts reads the /proc/mounts format:
// device mount_point filesystem options dump pass
func parseMounts(r io.Reader) ([]Mount, error) {
	var mounts []Mount
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts = append(mounts, Mount{
			Device: unescapeMountField(fields[0]),
			Dir:    filepath.Clean(unescapeMountField(fields[1])),
			FSType: fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading mount table: %w", err)
	}
	return mounts, nil
}

// unescapeMountField decodes the octal escapes the kernel uses for space,
// tab, newline and backslash
func unescapeMountField(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// containing returns the deepest mount whose directory holds path
func containing(mounts []Mount, path string) (Mount, bool) {
	var best Mount
	found := false
	for _, m := range mounts {
		within := m.Dir == "/" || path == m.Dir || strings.HasPrefix(path, m.Dir+"/")
		if !within {
			continue
		}
		// later entries stack over earlier ones on the same directory
		if !found || len(m.Dir) >= len(best.Dir) {
			best = m
			found = true
		}
	}
	return best, found
}

func readMounts() ([]Mount, error) {
	file, err := os.Open(procMounts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", procMounts, err)
	}
	defer file.Close()
	return parseMounts(file)
}

// FindMount returns the mount holding path
func FindMount(path string) (Mount, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Mount{}, fmt.Errorf("failed to normalize path: %w", err)
	}

	mounts, err := readMounts()
	if err != nil {
		return Mount{}, err
	}
	m, ok := containing(mounts, filepath.Clean(abs))
	if !ok {
		return Mount{}, fmt.Errorf("no mount holds %s", path)
	}
	return m, nil
}

// IsMountPoint reports whether dir is itself the target of a mount
func IsMountPoint(dir string) (bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("failed to normalize mount point: %w", err)
	}
	abs = filepath.Clean(abs)

	mounts, err := readMounts()
	if err != nil {
		return false, err
	}
	for _, m := range mounts {
		if m.Dir == abs {
			return true, nil
		}
	}
	return false, nil
}
