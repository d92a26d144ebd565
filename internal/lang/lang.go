package lang

// Language represents a supported source language.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Go         Language = "go"
)

// AllLanguages returns all registered languages.
func AllLanguages() []Language {
	return []Language{Python, JavaScript, TypeScript, Go}
}

// LanguageSpec defines the tree-sitter node kinds a language uses for the
// structural constructs the extractor cares about. Registering a spec is all
// it takes to plug a new language into the pipeline; files whose extension
// has no spec are silently skipped by discovery.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string

	// FunctionNodeTypes lists function/method definition node kinds.
	// Asynchronous variants share the same node kind in every grammar we
	// register, so async definitions need no special handling.
	FunctionNodeTypes []string
	// ClassNodeTypes lists class-like container definition node kinds.
	ClassNodeTypes []string
	// CallNodeTypes lists call expression node kinds.
	CallNodeTypes []string
	// ImportNodeTypes lists plain import statement node kinds.
	ImportNodeTypes []string
	// ImportFromTypes lists from-style import node kinds (one IMPORTS edge
	// per statement module, never per imported symbol).
	ImportFromTypes []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".py"),
// or nil if the extension has no registered parser.
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
