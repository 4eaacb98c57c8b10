package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/oukeidos/mqcomet/internal/logger"
)

const tempPattern = "mqcomet-*.tmp"

// writeTemp writes data to a synced temp file in dir and returns its path.
// The caller owns the file and must rename or remove it.
func writeTemp(dir string, data []byte, perms os.FileMode) (string, error) {
	tmpFile, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	fail := func(step string, err error) (string, error) {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to %s temp file: %w", step, err)
	}
	if err := tmpFile.Chmod(perms); err != nil && runtime.GOOS != "windows" {
		return fail("set permissions on", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmpPath, nil
}

// AtomicWrite writes data to a temp file and renames it into place,
// replacing any existing file at path.
func AtomicWrite(path string, data []byte, perms os.FileMode) error {
	if err := RejectSymlinkPath(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmpPath, err := writeTemp(dir, data, perms)
	if err != nil {
		return err
	}
	if err := replaceFile(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file to destination: %w", err)
	}
	if err := syncDir(dir); err != nil {
		logger.Warn("Directory fsync failed (safe to ignore on some platforms)", "path", dir, "error", err)
	}
	return nil
}

// WriteExclusive writes data to path without ever replacing an existing
// file. When path is taken it tries the SafePath siblings in order and
// returns the path actually written.
func WriteExclusive(path string, data []byte, perms os.FileMode) (string, error) {
	if err := RejectSymlinkPath(path); err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	tmpPath, err := writeTemp(dir, data, perms)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpPath)

	var lastErr error
	for _, candidate := range append([]string{path}, candidates(path)...) {
		// Link fails with ErrExist instead of clobbering the destination.
		err := os.Link(tmpPath, candidate)
		if err == nil {
			if err := syncDir(dir); err != nil {
				logger.Warn("Directory fsync failed (safe to ignore on some platforms)", "path", dir, "error", err)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to place %s: %w", candidate, err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("no free path next to %s: %w", path, lastErr)
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
