package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/oukeidos/mqcomet/internal/apperrors"
)

// ErrLinkedPath marks a write target that would be reached through a
// symlink or a Windows reparse point.
var ErrLinkedPath = errors.New("write target goes through a link")

// RejectSymlinkPath refuses report and log targets when the file itself or
// any existing ancestor directory is a link. Components that do not exist
// yet end the walk.
func RejectSymlinkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return apperrors.New(apperrors.KindValidation, "No output path was given.", errors.New("empty write target"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	at, what, err := firstLink(abs)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", abs, err)
	}
	if at == "" {
		return nil
	}
	return apperrors.New(
		apperrors.KindValidation,
		fmt.Sprintf("Refusing to write %s: %s is a %s. Choose another output path.", filepath.Base(abs), at, what),
		fmt.Errorf("%w: %s (%s at %s)", ErrLinkedPath, abs, what, at),
	)
}

// firstLink returns the outermost linked component of abs and what it is.
func firstLink(abs string) (string, string, error) {
	for _, p := range lineage(abs) {
		info, err := os.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", nil
		}
		if err != nil {
			return "", "", err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return p, "symlink", nil
		}
		reparse, err := isReparsePoint(p)
		if err != nil {
			return "", "", err
		}
		if reparse {
			return p, "reparse point", nil
		}
	}
	return "", "", nil
}

// lineage lists abs and its ancestors from the volume root down.
func lineage(abs string) []string {
	var out []string
	for p := filepath.Clean(abs); ; {
		out = append(out, p)
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	slices.Reverse(out)
	return out
}
