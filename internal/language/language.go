// Package language turns document language tags into display names.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var namer = display.English.Tags()

// Parse reads a tag as written in a bilingual file. memoQ writes both
// BCP 47 ("fr-FR") and ISO 639-2 based ("deu-DE", "eng") forms, in any case
// and sometimes with underscores.
func Parse(tag string) (language.Tag, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
	if s == "" {
		return language.Und, false
	}
	t, err := language.Parse(s)
	if err != nil {
		return language.Und, false
	}
	return t, true
}

// Canonical returns the BCP 47 form of tag, or tag unchanged when it cannot
// be parsed.
func Canonical(tag string) string {
	t, ok := Parse(tag)
	if !ok {
		return strings.TrimSpace(tag)
	}
	return t.String()
}

// Name returns an English display name such as "French (France)". Unknown
// tags are returned as written; an empty tag yields "".
func Name(tag string) string {
	t, ok := Parse(tag)
	if !ok {
		return strings.TrimSpace(tag)
	}
	if name := namer.Name(t); name != "" {
		return name
	}
	return t.String()
}

// PairLabel renders "English → French" for display, using "unknown" for a
// missing side.
func PairLabel(source, target string) string {
	label := func(tag string) string {
		if n := Name(tag); n != "" {
			return n
		}
		return "unknown"
	}
	return label(source) + " → " + label(target)
}
