package parser

import (
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/codegraph/internal/lang"
)

// Node labels and edge types emitted by the extractor.
const (
	LabelFile          = "File"
	LabelModule        = "Module"
	LabelFunction      = "Function"
	LabelAttributeCall = "AttributeCall"

	EdgeDefines      = "DEFINES"
	EdgeImports      = "IMPORTS"
	EdgeCalls        = "CALLS"
	EdgeCallsAttr    = "CALLS_ATTR"
	EdgeInheritsFrom = "INHERITS_FROM"
)

// Ref addresses an edge endpoint by its natural key fields. A Ref with an
// empty Path is a fuzzy, name-only reference: call targets and imported
// modules are resolved by name alone, so the endpoint may match several
// defined nodes or none at all (in which case a ghost node is created at
// merge time).
type Ref struct {
	Label string
	Name  string
	Path  string
}

// Node is a structural fact extracted from one file.
type Node struct {
	Label string
	Name  string
	Path  string // defining file, corpus-relative
	Scope string // enclosing class name, Function nodes only
}

// Edge is a relationship between two Refs.
type Edge struct {
	Type string
	From Ref
	To   Ref
}

// Result is the normalized batch of facts parsed from one file.
// A malformed file yields a zero Result.
type Result struct {
	Nodes []Node
	Edges []Edge
}

// cursor tracks the lexical context during traversal. It is passed down by
// value so per-file extraction shares no mutable state and files can be
// parsed in parallel.
type cursor struct {
	class    string // innermost enclosing class name
	function string // innermost enclosing function, qualified
}

// extraction accumulates the Result for one file.
type extraction struct {
	path    string
	source  []byte
	spec    *lang.LanguageSpec
	res     Result
	imports []string
	seenImp map[string]bool
}

// Extract parses one file's content and returns its structural facts:
// Module and Function nodes plus DEFINES, IMPORTS, CALLS, CALLS_ATTR and
// INHERITS_FROM edges. It never fails: files with syntax errors, and files
// whose extension has no registered language, contribute an empty Result.
//
// Call targets are recorded by name only. A bare call like print() yields a
// CALLS edge even when the callee is a builtin defined nowhere in the
// corpus; the merge stage materializes such targets as ghost nodes.
func Extract(content []byte, path string) Result {
	spec := lang.ForExtension(filepath.Ext(path))
	if spec == nil {
		return Result{}
	}

	tree, err := Parse(spec.Language, content)
	if err != nil {
		return Result{}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return Result{}
	}

	ex := &extraction{
		path:    path,
		source:  content,
		spec:    spec,
		seenImp: make(map[string]bool),
	}
	ex.visit(root, cursor{})

	// One IMPORTS edge per distinct imported module, however many symbols
	// the statement pulled in.
	for _, mod := range ex.imports {
		ex.res.Edges = append(ex.res.Edges, Edge{
			Type: EdgeImports,
			From: Ref{Label: LabelFile, Path: path},
			To:   Ref{Label: LabelModule, Name: mod},
		})
	}
	return ex.res
}

func (ex *extraction) visit(node *tree_sitter.Node, cur cursor) {
	kind := node.Kind()

	switch {
	case contains(ex.spec.FunctionNodeTypes, kind):
		cur = ex.enterFunction(node, cur)
	case contains(ex.spec.ClassNodeTypes, kind):
		cur = ex.enterClass(node, cur)
	case contains(ex.spec.CallNodeTypes, kind):
		ex.recordCall(node, cur)
	case contains(ex.spec.ImportNodeTypes, kind):
		ex.recordImports(node)
		return
	case contains(ex.spec.ImportFromTypes, kind):
		ex.recordImportFrom(node)
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			ex.visit(child, cur)
		}
	}
}

// enterFunction emits a Function node and its DEFINES edge, returning the
// updated cursor for the function body. Async definitions share the same
// node kind as their synchronous form in every registered grammar.
func (ex *extraction) enterFunction(node *tree_sitter.Node, cur cursor) cursor {
	name := ex.functionName(node)
	if name == "" {
		// Anonymous function: keep the enclosing context so calls inside
		// are attributed to the nearest named function.
		return cur
	}

	scope := cur.class
	if ex.spec.Language == lang.Go && node.Kind() == "method_declaration" {
		scope = ex.goReceiverType(node)
	}

	qualified := name
	if scope != "" {
		qualified = scope + "." + name
	}

	ex.res.Nodes = append(ex.res.Nodes, Node{
		Label: LabelFunction,
		Name:  qualified,
		Path:  ex.path,
		Scope: scope,
	})

	from := Ref{Label: LabelFile, Path: ex.path}
	if scope != "" {
		from = Ref{Label: LabelModule, Name: scope, Path: ex.path}
	}
	ex.res.Edges = append(ex.res.Edges, Edge{
		Type: EdgeDefines,
		From: from,
		To:   Ref{Label: LabelFunction, Name: qualified, Path: ex.path},
	})

	cur.function = qualified
	return cur
}

// enterClass emits a Module node, its DEFINES edge, and INHERITS_FROM edges
// for base classes referenced by a simple name. The parent's defining file
// is unknown at parse time, so the edge targets a name-only Ref.
func (ex *extraction) enterClass(node *tree_sitter.Node, cur cursor) cursor {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return cur
	}
	name := NodeText(nameNode, ex.source)
	if name == "" {
		return cur
	}

	ex.res.Nodes = append(ex.res.Nodes, Node{
		Label: LabelModule,
		Name:  name,
		Path:  ex.path,
	})
	ex.res.Edges = append(ex.res.Edges, Edge{
		Type: EdgeDefines,
		From: Ref{Label: LabelFile, Path: ex.path},
		To:   Ref{Label: LabelModule, Name: name, Path: ex.path},
	})

	for _, base := range ex.baseClasses(node) {
		ex.res.Edges = append(ex.res.Edges, Edge{
			Type: EdgeInheritsFrom,
			From: Ref{Label: LabelModule, Name: name, Path: ex.path},
			To:   Ref{Label: LabelModule, Name: base},
		})
	}

	cur.class = name
	return cur
}

// recordCall emits a CALLS or CALLS_ATTR edge for a call expression.
// Calls outside any function body are not recorded. The receiver of an
// attribute call is discarded: no type inference is attempted.
func (ex *extraction) recordCall(node *tree_sitter.Node, cur cursor) {
	if cur.function == "" {
		return
	}

	target := node.ChildByFieldName("function")
	if target == nil {
		return
	}

	from := Ref{Label: LabelFunction, Name: cur.function, Path: ex.path}

	switch target.Kind() {
	case "identifier":
		name := NodeText(target, ex.source)
		if name == "" {
			return
		}
		ex.res.Edges = append(ex.res.Edges, Edge{
			Type: EdgeCalls,
			From: from,
			To:   Ref{Label: LabelFunction, Name: name},
		})
	case "attribute", "member_expression", "selector_expression":
		attr := ex.attributeName(target)
		if attr == "" {
			return
		}
		ex.res.Edges = append(ex.res.Edges, Edge{
			Type: EdgeCallsAttr,
			From: from,
			To:   Ref{Label: LabelAttributeCall, Name: attr},
		})
	}
}

func (ex *extraction) addImport(module string) {
	module = strings.TrimLeft(module, ".")
	if module == "" || ex.seenImp[module] {
		return
	}
	ex.seenImp[module] = true
	ex.imports = append(ex.imports, module)
}

// recordImports handles plain import statements: Python `import a, b.c`,
// JS/TS `import ... from "x"`, Go import specs.
func (ex *extraction) recordImports(node *tree_sitter.Node) {
	switch ex.spec.Language {
	case lang.Python:
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "dotted_name":
				ex.addImport(NodeText(child, ex.source))
			case "aliased_import":
				if n := child.ChildByFieldName("name"); n != nil {
					ex.addImport(NodeText(n, ex.source))
				}
			}
		}
	case lang.JavaScript, lang.TypeScript:
		if src := node.ChildByFieldName("source"); src != nil {
			ex.addImport(strings.Trim(NodeText(src, ex.source), `"'`))
		}
	case lang.Go:
		if p := node.ChildByFieldName("path"); p != nil {
			ex.addImport(strings.Trim(NodeText(p, ex.source), `"`))
		}
	}
}

// recordImportFrom handles Python `from X import a, b`: exactly one IMPORTS
// edge to X regardless of the imported symbols. Relative imports with no
// module part (`from . import x`) are skipped.
func (ex *extraction) recordImportFrom(node *tree_sitter.Node) {
	mod := node.ChildByFieldName("module_name")
	if mod == nil {
		return
	}
	ex.addImport(NodeText(mod, ex.source))
}

// functionName resolves the name of a function definition node, handling
// arrow functions assigned to a variable (the name lives on the parent
// variable_declarator).
func (ex *extraction) functionName(node *tree_sitter.Node) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return NodeText(nameNode, ex.source)
	}
	if node.Kind() == "arrow_function" {
		if p := node.Parent(); p != nil && p.Kind() == "variable_declarator" {
			if nameNode := p.ChildByFieldName("name"); nameNode != nil {
				return NodeText(nameNode, ex.source)
			}
		}
	}
	return ""
}

// attributeName extracts the attribute/property/field name from an
// attribute-style call target.
func (ex *extraction) attributeName(target *tree_sitter.Node) string {
	for _, field := range []string{"attribute", "property", "field"} {
		if n := target.ChildByFieldName(field); n != nil {
			return NodeText(n, ex.source)
		}
	}
	return ""
}

// baseClasses returns the simple-name base classes of a class definition.
// Bases referenced by attribute access or subscript are ignored.
func (ex *extraction) baseClasses(node *tree_sitter.Node) []string {
	var bases []string
	switch ex.spec.Language {
	case lang.Python:
		supers := node.ChildByFieldName("superclasses")
		if supers == nil {
			return nil
		}
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			child := supers.NamedChild(i)
			if child != nil && child.Kind() == "identifier" {
				bases = append(bases, NodeText(child, ex.source))
			}
		}
	case lang.JavaScript, lang.TypeScript:
		// The JavaScript grammar puts the base expression directly under
		// class_heritage; the TypeScript grammar nests it in an
		// extends_clause.
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil || child.Kind() != "class_heritage" {
				continue
			}
			for j := uint(0); j < child.NamedChildCount(); j++ {
				expr := child.NamedChild(j)
				if expr == nil {
					continue
				}
				switch expr.Kind() {
				case "identifier":
					bases = append(bases, NodeText(expr, ex.source))
				case "extends_clause":
					for k := uint(0); k < expr.NamedChildCount(); k++ {
						if base := expr.NamedChild(k); base != nil && base.Kind() == "identifier" {
							bases = append(bases, NodeText(base, ex.source))
						}
					}
				}
			}
		}
	}
	return bases
}

// goReceiverType extracts the receiver type name of a Go method, with any
// pointer star stripped.
func (ex *extraction) goReceiverType(node *tree_sitter.Node) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := uint(0); i < recv.NamedChildCount(); i++ {
		param := recv.NamedChild(i)
		if param == nil || param.Kind() != "parameter_declaration" {
			continue
		}
		typ := param.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		return strings.TrimPrefix(NodeText(typ, ex.source), "*")
	}
	return ""
}

func contains(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
