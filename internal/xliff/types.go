package xliff

// Unit is one approved segment with its source, machine translation and
// human-confirmed reference.
type Unit struct {
	ID          string
	SegmentGUID string
	MTProvider  string
	Source      string
	Hypothesis  string
	Reference   string
}

// LanguagePair holds the language tags declared on the document's <file>
// element. Either field may be empty.
type LanguagePair struct {
	Source string
	Target string
}

// Known reports whether both tags were declared.
func (p LanguagePair) Known() bool {
	return p.Source != "" && p.Target != ""
}

// Stats counts what happened to every trans-unit during extraction.
type Stats struct {
	TransUnits     int
	SkippedStatus  int // mq:status != ManuallyConfirmed
	SkippedMissing int // confirmed, but source, reference or MT text empty
}

// Document is the result of extracting a bilingual file.
type Document struct {
	Name      string
	Units     []Unit
	Languages LanguagePair
	Stats     Stats
}
