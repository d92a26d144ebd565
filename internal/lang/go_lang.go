package lang

func init() {
	Register(&LanguageSpec{
		Language:          Go,
		FileExtensions:    []string{".go"},
		FunctionNodeTypes: []string{"function_declaration", "method_declaration"},
		ClassNodeTypes:    []string{"type_spec"},
		CallNodeTypes:     []string{"call_expression"},
		ImportNodeTypes:   []string{"import_spec"},
	})
}
