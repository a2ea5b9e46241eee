package rootinit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pleclech/preloadfs/fs/utils"
)

// GetMountPoint turns a directory argument into a canonical absolute path.
// Symlinks are resolved so that two spellings of the same directory compare
// equal. The directory must exist.
func GetMountPoint(dir string) (string, error) {
	dir = filepath.Clean(dir)
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(cwd, dir)
	}

	resolved, err := filepath.EvalSymlinks(dir)
	switch {
	case err == nil:
		dir = resolved
	case !os.IsNotExist(err):
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	st, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory does not exist:\n%w", err)
		}
		return "", fmt.Errorf("stat error:\n%w", err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s must be a directory", dir)
	}
	return dir, nil
}

// CheckNotNested fails when mountPoint lies inside srcDir. A view mounted
// inside its own source would list itself on every lookup.
func CheckNotNested(mountPoint, srcDir string) error {
	if _, err := utils.ValidatePathWithinRoot(mountPoint, srcDir); err == nil {
		return fmt.Errorf("mount point %s is inside source directory %s", mountPoint, srcDir)
	}
	return nil
}

// Mount is one entry of the system mount table
type Mount struct {
	Device string
	Dir    string
	FSType string
}
