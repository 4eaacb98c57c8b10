package metadata

import "strings"

// Backend names accepted by --backend and the web form.
const (
	BackendComet  = "comet"
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendStatic = "static"
)

// Model is one known scoring model.
type Model struct {
	ID      string
	Backend string
	Label   string
	// ReferenceFree models score (source, mt) only.
	ReferenceFree bool
}

const (
	DefaultCometModel  = "Unbabel/wmt22-comet-da"
	DefaultGeminiModel = "gemini-3-flash-preview"
	DefaultOpenAIModel = "gpt-5.2"
)

var Models = []Model{
	{ID: "Unbabel/wmt22-comet-da", Backend: BackendComet, Label: "COMET-22 DA"},
	{ID: "Unbabel/wmt20-comet-da", Backend: BackendComet, Label: "COMET-20 DA"},
	{ID: "Unbabel/XCOMET-XL", Backend: BackendComet, Label: "XCOMET XL"},
	{ID: "Unbabel/wmt22-cometkiwi-da", Backend: BackendComet, Label: "CometKiwi-22 (QE)", ReferenceFree: true},
	{ID: "gemini-3-flash-preview", Backend: BackendGemini, Label: "Gemini 3 Flash (preview) judge"},
	{ID: "gemini-3-pro-preview", Backend: BackendGemini, Label: "Gemini 3 Pro (preview) judge"},
	{ID: "gpt-5.2", Backend: BackendOpenAI, Label: "GPT-5.2 judge"},
}

// Backends lists every backend name in display order.
func Backends() []string {
	return []string{BackendComet, BackendGemini, BackendOpenAI, BackendStatic}
}

// IsBackend reports whether name is a known backend.
func IsBackend(name string) bool {
	for _, b := range Backends() {
		if b == name {
			return true
		}
	}
	return false
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(backend string) string {
	switch backend {
	case BackendGemini:
		return DefaultGeminiModel
	case BackendOpenAI:
		return DefaultOpenAIModel
	case BackendStatic:
		return "static"
	default:
		return DefaultCometModel
	}
}

// ModelsFor returns the catalogue entries for backend, or all of them when
// backend is empty.
func ModelsFor(backend string) []Model {
	out := make([]Model, 0, len(Models))
	for _, m := range Models {
		if backend == "" || m.Backend == backend {
			out = append(out, m)
		}
	}
	return out
}

// Lookup finds a catalogue entry by ID.
func Lookup(id string) (Model, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// IsReferenceFree reports whether id names a quality-estimation model. IDs
// outside the catalogue are judged by the "kiwi" naming convention.
func IsReferenceFree(id string) bool {
	if m, ok := Lookup(id); ok {
		return m.ReferenceFree
	}
	return strings.Contains(strings.ToLower(id), "kiwi")
}
