package report

import (
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// MaxCellChars is the xlsx limit on characters per cell.
const MaxCellChars = 32767

// Truncate cuts s to at most MaxCellChars characters without splitting a
// grapheme cluster.
func Truncate(s string) string {
	return TruncateGraphemes(s, MaxCellChars, "")
}

// TruncateGraphemes keeps whole grapheme clusters while the rune count,
// including the suffix, stays within limit. The suffix is appended only when
// something was cut.
func TruncateGraphemes(s string, limit int, suffix string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	budget := limit - utf8.RuneCountInString(suffix)
	if budget <= 0 {
		return ""
	}

	used, end := 0, 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		n := utf8.RuneCountInString(cluster)
		if used+n > budget {
			break
		}
		used += n
		end += len(cluster)
	}
	return s[:end] + suffix
}
