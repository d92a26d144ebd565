package lang

func init() {
	Register(&LanguageSpec{
		Language:          Python,
		FileExtensions:    []string{".py"},
		FunctionNodeTypes: []string{"function_definition"},
		ClassNodeTypes:    []string{"class_definition"},
		CallNodeTypes:     []string{"call"},
		ImportNodeTypes:   []string{"import_statement"},
		ImportFromTypes:   []string{"import_from_statement"},
	})
}
