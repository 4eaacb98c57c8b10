// Package xliff extracts scoring triples from memoQ bilingual XLIFF files.
package xliff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oukeidos/mqcomet/internal/apperrors"
)

const (
	// VendorNamespace is the URI memoQ binds to the "mq" prefix.
	VendorNamespace = "MQXliff"
	vendorPrefix    = "mq"

	// StatusManuallyConfirmed is the only mq:status eligible for scoring.
	StatusManuallyConfirmed = "ManuallyConfirmed"

	mtMatchType   = "1"
	mtLabelPrefix = "mt /"
)

// Extensions lists the file extensions memoQ uses for bilingual exports.
var Extensions = []string{".mqxliff", ".xlf", ".xliff"}

// HasKnownExtension reports whether path ends in one of Extensions.
func HasKnownExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseFile reads and extracts the document at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.InputNotFound(fmt.Sprintf("cannot read %s", path), err)
	}
	return ParseBytes(filepath.Base(path), data)
}

// Parse reads r to the end and extracts it. name is used in messages only.
func Parse(name string, r io.Reader) (*Document, error) {
	if r == nil {
		return nil, apperrors.InputNotFound(fmt.Sprintf("no content for %s", name), errors.New("nil reader"))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.InputNotFound(fmt.Sprintf("cannot read %s", name), err)
	}
	return ParseBytes(name, data)
}

// ParseBytes extracts every approved unit from an in-memory document.
func ParseBytes(name string, data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperrors.InputNotFound(fmt.Sprintf("%s is empty", name), errors.New("empty document"))
	}
	root, err := decodeTree(data)
	if err != nil {
		return nil, apperrors.MalformedDocument(fmt.Sprintf("%s is not well-formed XML: %v", name, err), err)
	}
	doc := extract(root)
	doc.Name = name
	return doc, nil
}

// names bundles the matchers for one document. Document elements are
// namespace-qualified when the root declared a namespace and matched by
// local name only otherwise.
type names struct {
	doc []string
}

func newNames(root *element) names {
	if root.name.Space == "" {
		return names{}
	}
	return names{doc: []string{root.name.Space}}
}

func (n names) el(local string) matcher { return named(local, n.doc...) }

func vendor(local string) matcher { return named(local, VendorNamespace, vendorPrefix) }

func plain(local string) matcher { return named(local, "") }

func extract(root *element) *Document {
	n := newNames(root)
	doc := &Document{Units: []Unit{}}

	if file := findFirst(root, n.el("file")); file != nil {
		doc.Languages = LanguagePair{
			Source: firstAttr(file, "source-language", "source_language"),
			Target: firstAttr(file, "target-language", "target_language"),
		}
	}

	units := findAll(root, n.el("trans-unit"))
	doc.Stats.TransUnits = len(units)

	for _, tu := range units {
		status, _ := attr(tu, vendor("status"))
		if status != StatusManuallyConfirmed {
			doc.Stats.SkippedStatus++
			continue
		}

		unit := Unit{
			Source:    flatText(child(tu, n.el("source"))),
			Reference: flatText(child(tu, n.el("target"))),
		}
		unit.ID, _ = attr(tu, plain("id"))
		unit.SegmentGUID, _ = attr(tu, vendor("segmentguid"))
		unit.MTProvider, unit.Hypothesis = machineMatch(tu, n)

		if unit.Source == "" || unit.Reference == "" || unit.Hypothesis == "" {
			doc.Stats.SkippedMissing++
			continue
		}
		doc.Units = append(doc.Units, unit)
	}
	return doc
}

// machineMatch returns the label and target text of the first inserted match
// that came from an MT engine. The first qualifying match wins regardless of
// any later candidate. Matches are searched at any depth, not only as direct
// children, so exports that wrap them in mq:insertedmatches are read too.
func machineMatch(tu *element, n names) (string, string) {
	for _, m := range findAll(tu, vendor("insertedmatch")) {
		matchType, _ := attr(m, plain("matchtype"))
		label, _ := attr(m, plain("source"))
		label = strings.TrimSpace(label)
		if matchType != mtMatchType || !strings.HasPrefix(strings.ToLower(label), mtLabelPrefix) {
			continue
		}
		return label, flatText(child(m, n.el("target")))
	}
	return "", ""
}

func firstAttr(el *element, spellings ...string) string {
	for _, s := range spellings {
		if v, ok := attr(el, plain(s)); ok && v != "" {
			return v
		}
	}
	return ""
}
