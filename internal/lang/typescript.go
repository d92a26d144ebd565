package lang

func init() {
	Register(&LanguageSpec{
		Language:       TypeScript,
		FileExtensions: []string{".ts"},
		FunctionNodeTypes: []string{
			"function_declaration", "function_expression",
			"generator_function_declaration", "arrow_function",
			"method_definition",
		},
		ClassNodeTypes:  []string{"class_declaration", "abstract_class_declaration"},
		CallNodeTypes:   []string{"call_expression"},
		ImportNodeTypes: []string{"import_statement"},
	})
}
