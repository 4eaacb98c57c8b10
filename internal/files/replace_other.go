//go:build !windows

package files

import "os"

// replaceFile moves tmp over dst; rename(2) within one directory is atomic.
func replaceFile(tmp, dst string) error {
	return os.Rename(tmp, dst)
}

// Only Windows has reparse points. Symlinks are caught by Lstat.
func isReparsePoint(string) (bool, error) {
	return false, nil
}
