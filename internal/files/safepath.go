package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// ReportSuffix is appended to the input stem to name the report.
	ReportSuffix = "_comet_scores"
	// TableSuffix names a rescored copy of an existing workbook.
	TableSuffix = "_with_scores"
)

// OutputPath returns <dir>/<stem><suffix><ext> for inputPath. The input's own
// extension is replaced by ext.
func OutputPath(inputPath, suffix, ext string) string {
	dir := filepath.Dir(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, stem+suffix+ext)
}

// candidates yields the sibling names tried when path is taken: _1.._9, then
// a UUID suffix.
func candidates(path string) []string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	out := make([]string, 0, 10)
	for i := 1; i <= 9; i++ {
		out = append(out, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
	return append(out, fmt.Sprintf("%s_%s%s", base, uniqueSuffix(), ext))
}

func uniqueSuffix() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()[:8]
	}
	return u.String()
}

// SafePath returns a non-existing path by appending _1.._9, then a UUID suffix.
// If the original path does not exist, it is returned unchanged.
func SafePath(path string) (string, bool, error) {
	if path == "" {
		return "", false, fmt.Errorf("path is empty")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, false, nil
	} else if err != nil {
		return "", false, err
	}

	for _, candidate := range candidates(path) {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, true, nil
		} else if err != nil {
			return "", false, err
		}
	}
	return "", false, fmt.Errorf("no free path next to %s", path)
}
