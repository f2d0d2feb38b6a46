package chart

import (
	"fmt"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// DefaultModules are the top-level modules a chart program may import.
var DefaultModules = []string{
	"matplotlib", "numpy", "math", "statistics", "collections",
	"itertools", "textwrap", "decimal", "fractions",
}

// DefaultForbiddenCalls are builtins a chart program may not call.
var DefaultForbiddenCalls = []string{
	"exec", "eval", "compile", "open", "__import__", "input", "globals",
	"locals", "vars", "breakpoint", "getattr", "setattr", "delattr",
}

// Inspection summarises a chart program that passed inspection.
type Inspection struct {
	Imports []string // top-level modules, sorted, deduplicated
	Lines   int
}

// Inspector statically checks chart programs before execution.
type Inspector struct {
	modules   map[string]bool
	forbidden map[string]bool
	language  *tree_sitter.Language
}

// NewInspector creates an Inspector with the default module allowlist and
// forbidden calls.
func NewInspector() *Inspector {
	return NewInspectorWith(DefaultModules, DefaultForbiddenCalls)
}

// NewInspectorWith creates an Inspector with explicit policy lists.
func NewInspectorWith(modules, forbiddenCalls []string) *Inspector {
	in := &Inspector{
		modules:   make(map[string]bool, len(modules)),
		forbidden: make(map[string]bool, len(forbiddenCalls)),
		language:  tree_sitter.NewLanguage(tree_sitter_python.Language()),
	}
	for _, m := range modules {
		in.modules[m] = true
	}
	for _, c := range forbiddenCalls {
		in.forbidden[c] = true
	}
	return in
}

// Inspect parses program and enforces the policy. Violations and syntax
// errors are execution errors; a program that never assigns fig is a
// binding error. A new parser is created per call, so Inspect is safe for
// concurrent use.
func (in *Inspector) Inspect(program string) (res *Inspection, err error) {
	// Catch panics from the CGO grammar.
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, executionErr(0, "inspect: parser panic: %v", r)
		}
	}()

	source := []byte(program)
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(in.language); err != nil {
		return nil, fmt.Errorf("chart: set language: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, executionErr(0, "program could not be parsed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, executionErr(firstErrorLine(root), "syntax error")
	}

	w := &walker{in: in, source: source, imports: make(map[string]bool)}
	cursor := root.Walk()
	defer cursor.Close()
	w.walk(cursor)
	if w.err != nil {
		return nil, w.err
	}
	if !w.bound {
		return nil, bindingErr("program never assigns %s", FigureName)
	}

	imports := make([]string, 0, len(w.imports))
	for m := range w.imports {
		imports = append(imports, m)
	}
	sort.Strings(imports)
	return &Inspection{Imports: imports, Lines: strings.Count(program, "\n") + 1}, nil
}

// walker visits every node and records the first policy violation.
type walker struct {
	in      *Inspector
	source  []byte
	imports map[string]bool
	bound   bool
	err     error
}

func (w *walker) walk(cursor *tree_sitter.TreeCursor) {
	if w.err != nil {
		return
	}
	node := cursor.Node()

	switch node.Kind() {
	case "import_statement":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "dotted_name":
				w.checkModule(child, child.Utf8Text(w.source))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					w.checkModule(child, name.Utf8Text(w.source))
				}
			}
		}

	case "import_from_statement":
		mod := node.ChildByFieldName("module_name")
		if mod == nil || mod.Kind() == "relative_import" {
			w.fail(node, "relative imports are not allowed")
			return
		}
		w.checkModule(node, mod.Utf8Text(w.source))

	case "future_import_statement":
		// from __future__ import ... is harmless

	case "call":
		if fn := node.ChildByFieldName("function"); fn != nil && fn.Kind() == "identifier" {
			if name := fn.Utf8Text(w.source); w.in.forbidden[name] {
				w.fail(node, "call to %s is not allowed", name)
				return
			}
		}

	case "attribute":
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			if name := attr.Utf8Text(w.source); isDunder(name) {
				w.fail(node, "access to %s is not allowed", name)
				return
			}
		}

	case "identifier":
		if name := node.Utf8Text(w.source); name == "__builtins__" || name == "__loader__" {
			w.fail(node, "access to %s is not allowed", name)
			return
		}

	case "assignment":
		if left := node.ChildByFieldName("left"); left != nil && w.binds(left) {
			w.bound = true
		}

	case "named_expression":
		if name := node.ChildByFieldName("name"); name != nil && name.Utf8Text(w.source) == FigureName {
			w.bound = true
		}
	}

	if cursor.GotoFirstChild() {
		w.walk(cursor)
		for cursor.GotoNextSibling() {
			w.walk(cursor)
		}
		cursor.GotoParent()
	}
}

// binds reports whether an assignment target binds FigureName, directly or
// through tuple/list unpacking such as "fig, ax = plt.subplots()".
func (w *walker) binds(target *tree_sitter.Node) bool {
	switch target.Kind() {
	case "identifier":
		return target.Utf8Text(w.source) == FigureName
	case "pattern_list", "tuple_pattern", "list_pattern", "parenthesized_expression":
		for i := uint(0); i < target.NamedChildCount(); i++ {
			if child := target.NamedChild(i); child != nil && w.binds(child) {
				return true
			}
		}
	}
	return false
}

func (w *walker) checkModule(node *tree_sitter.Node, dotted string) {
	top, _, _ := strings.Cut(strings.TrimSpace(dotted), ".")
	if !w.in.modules[top] {
		w.fail(node, "import of %s is not allowed", top)
		return
	}
	w.imports[top] = true
}

func (w *walker) fail(node *tree_sitter.Node, format string, args ...any) {
	if w.err == nil {
		w.err = executionErr(int(node.StartPosition().Row)+1, format, args...)
	}
}

func isDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// firstErrorLine returns the 1-based line of the first ERROR or missing
// node below n.
func firstErrorLine(n *tree_sitter.Node) int {
	if n.IsError() || n.IsMissing() {
		return int(n.StartPosition().Row) + 1
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			return firstErrorLine(child)
		}
	}
	return int(n.StartPosition().Row) + 1
}
