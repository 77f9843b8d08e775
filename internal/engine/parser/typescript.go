package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// rawImport is an extracted import before disk resolution.
type rawImport struct {
	specifier    string
	identifiers  map[string]bool
	isStar       bool
	isReExported bool
	nsAlias      string
}

// tsExtractor extracts imports, exports and member accesses from
// TypeScript and JavaScript sources.
type tsExtractor struct {
	raw []rawImport
}

func (e *tsExtractor) Extract(root *sitter.Node, source []byte, path string) (*FileResult, []rawImport, error) {
	e.raw = nil
	ctx := &ExtractionContext{
		Source:          source,
		Result:          NewFileResult(path),
		ImportedAliases: make(map[string]string),
		exportCounts:    make(map[string]int),
		lastCommentLine: -1,
	}

	engine := NewExtractorEngine(map[string]NodeHandler{
		"comment":           e.captureComment,
		"import_statement":  e.extractImport,
		"export_statement":  e.extractExport,
		"call_expression":   e.extractCall,
		"member_expression": e.extractMemberAccess,
	})
	engine.Walk(ctx, root)
	ctx.finishDuplicates()

	// Re-key member accesses recorded under renamed local bindings to
	// the imported name, so member usage survives `as` renames.
	for local, imported := range ctx.ImportedAliases {
		if local == imported {
			continue
		}
		members := ctx.Result.Accesses[local]
		if len(members) == 0 {
			continue
		}
		if ctx.Result.Accesses[imported] == nil {
			ctx.Result.Accesses[imported] = make(map[string]bool)
		}
		for member := range members {
			ctx.Result.Accesses[imported][member] = true
		}
	}

	// Fold namespace member accesses back into the consuming import so
	// `ns.foo` counts as importing foo.
	for i := range e.raw {
		alias := e.raw[i].nsAlias
		if alias == "" {
			continue
		}
		for member := range ctx.Result.Accesses[alias] {
			e.raw[i].identifiers[member] = true
		}
	}

	return ctx.Result, e.raw, nil
}

func (e *tsExtractor) captureComment(ctx *ExtractionContext, node *sitter.Node) bool {
	ctx.lastCommentText = ctx.Text(node)
	ctx.lastCommentLine = int(node.EndPosition().Row)
	return true
}

func (e *tsExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	specifier := trimQuoted(ctx.Text(node.ChildByFieldName("source")))
	if specifier == "" {
		if s := ctx.ChildOfKind(node, "string"); s != nil {
			specifier = trimQuoted(ctx.Text(s))
		}
	}
	if specifier == "" {
		return true
	}

	imp := rawImport{specifier: specifier, identifiers: make(map[string]bool)}

	clause := ctx.ChildOfKind(node, "import_clause")
	if clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			child := clause.Child(i)
			switch child.Kind() {
			case "identifier":
				imp.identifiers["default"] = true
			case "namespace_import":
				if alias := ctx.ChildOfKind(child, "identifier"); alias != nil {
					imp.isStar = true
					imp.nsAlias = ctx.Text(alias)
				}
			case "named_imports":
				e.collectNamedImports(ctx, child, &imp)
			}
		}
	}

	e.raw = append(e.raw, imp)
	return true
}

func (e *tsExtractor) collectNamedImports(ctx *ExtractionContext, node *sitter.Node, imp *rawImport) {
	for i := uint(0); i < node.ChildCount(); i++ {
		spec := node.Child(i)
		if spec.Kind() != "import_specifier" {
			continue
		}
		name := ctx.Text(spec.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		imp.identifiers[name] = true
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			ctx.ImportedAliases[ctx.Text(alias)] = name
		}
	}
}

func (e *tsExtractor) extractExport(ctx *ExtractionContext, node *sitter.Node) bool {
	gap := int(node.StartPosition().Row) - ctx.lastCommentLine
	isPublic := ctx.lastCommentLine >= 0 && gap >= 0 && gap <= 1 &&
		strings.Contains(ctx.lastCommentText, "@public")
	// One annotation covers exactly one export.
	ctx.lastCommentLine = -1
	ctx.lastCommentText = ""

	specifier := trimQuoted(ctx.Text(node.ChildByFieldName("source")))
	if specifier != "" {
		e.extractReExport(ctx, node, specifier, isPublic)
		return true
	}

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		e.extractDeclarationExport(ctx, decl, isPublic)
		// Descend so accesses inside initializers are still recorded.
		return false
	}

	if ctx.ChildOfKind(node, "default") != nil {
		ctx.addExport(&Export{Name: "default", Kind: KindValue, IsPublic: isPublic, Location: ctx.Location(node)})
		return false
	}

	if clause := ctx.ChildOfKind(node, "export_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			spec := clause.Child(i)
			if spec.Kind() != "export_specifier" {
				continue
			}
			name := ctx.Text(spec.ChildByFieldName("name"))
			exported := name
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = ctx.Text(alias)
			}
			if exported == "" {
				continue
			}
			ctx.addExport(&Export{Name: exported, Kind: KindValue, IsPublic: isPublic, Location: ctx.Location(spec)})
		}
		return true
	}

	return false
}

func (e *tsExtractor) extractReExport(ctx *ExtractionContext, node *sitter.Node, specifier string, isPublic bool) {
	imp := rawImport{specifier: specifier, identifiers: make(map[string]bool), isReExported: true}

	if ns := ctx.ChildOfKind(node, "namespace_export"); ns != nil {
		// export * as ns from "x"
		imp.isStar = true
		if alias := ctx.ChildOfKind(ns, "identifier"); alias != nil {
			ctx.addExport(&Export{Name: ctx.Text(alias), Kind: KindValue, IsPublic: isPublic, Location: ctx.Location(node)})
		}
	} else if clause := ctx.ChildOfKind(node, "export_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			spec := clause.Child(i)
			if spec.Kind() != "export_specifier" {
				continue
			}
			name := ctx.Text(spec.ChildByFieldName("name"))
			if name == "" {
				continue
			}
			imp.identifiers[name] = true
			exported := name
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = ctx.Text(alias)
			}
			ctx.addExport(&Export{Name: exported, Kind: KindValue, IsPublic: isPublic, Location: ctx.Location(spec)})
		}
	} else {
		// export * from "x"
		imp.isStar = true
	}

	e.raw = append(e.raw, imp)
}

func (e *tsExtractor) extractDeclarationExport(ctx *ExtractionContext, decl *sitter.Node, isPublic bool) {
	loc := ctx.Location(decl)
	switch decl.Kind() {
	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < decl.ChildCount(); i++ {
			declarator := decl.Child(i)
			if declarator.Kind() != "variable_declarator" {
				continue
			}
			name := declarator.ChildByFieldName("name")
			if name == nil {
				continue
			}
			if name.Kind() == "identifier" {
				ctx.addExport(&Export{Name: ctx.Text(name), Kind: KindValue, IsPublic: isPublic, Location: ctx.Location(name)})
				continue
			}
			for _, bound := range e.patternIdentifiers(ctx, name) {
				ctx.addExport(&Export{Name: bound, Kind: KindValue, IsPublic: isPublic, Location: loc})
			}
		}
	case "function_declaration", "generator_function_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			ctx.addExport(&Export{Name: ctx.Text(name), Kind: KindValue, IsPublic: isPublic, Location: ctx.Location(name)})
		}
	case "class_declaration", "abstract_class_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			ctx.addExport(&Export{
				Name:     ctx.Text(name),
				Kind:     KindClass,
				Members:  e.classMembers(ctx, decl),
				IsPublic: isPublic,
				Location: ctx.Location(name),
			})
		}
	case "interface_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			ctx.addExport(&Export{Name: ctx.Text(name), Kind: KindInterface, IsPublic: isPublic, Location: ctx.Location(name)})
		}
	case "type_alias_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			ctx.addExport(&Export{Name: ctx.Text(name), Kind: KindType, IsPublic: isPublic, Location: ctx.Location(name)})
		}
	case "enum_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			ctx.addExport(&Export{
				Name:     ctx.Text(name),
				Kind:     KindEnum,
				Members:  e.enumMembers(ctx, decl),
				IsPublic: isPublic,
				Location: ctx.Location(name),
			})
		}
	default:
		// Ambient or namespace declarations land in the other bucket.
		if name := decl.ChildByFieldName("name"); name != nil {
			ctx.addExport(&Export{Name: ctx.Text(name), Kind: KindOther, IsPublic: isPublic, Location: loc})
		}
	}
}

func (e *tsExtractor) patternIdentifiers(ctx *ExtractionContext, node *sitter.Node) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "identifier", "shorthand_property_identifier_pattern":
			out = append(out, ctx.Text(n))
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return out
}

func (e *tsExtractor) enumMembers(ctx *ExtractionContext, decl *sitter.Node) []string {
	body := ctx.ChildOfKind(decl, "enum_body")
	if body == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		switch child.Kind() {
		case "property_identifier":
			out = append(out, ctx.Text(child))
		case "enum_assignment":
			if name := child.ChildByFieldName("name"); name != nil {
				out = append(out, ctx.Text(name))
			}
		}
	}
	return out
}

func (e *tsExtractor) classMembers(ctx *ExtractionContext, decl *sitter.Node) []string {
	body := ctx.ChildOfKind(decl, "class_body")
	if body == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		switch child.Kind() {
		case "method_definition", "public_field_definition":
			name := child.ChildByFieldName("name")
			if name == nil || name.Kind() != "property_identifier" {
				continue
			}
			text := ctx.Text(name)
			if text == "constructor" {
				continue
			}
			out = append(out, text)
		}
	}
	return out
}

func (e *tsExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	isImport := fn.Kind() == "import"
	isRequire := fn.Kind() == "identifier" && ctx.Text(fn) == "require"
	if !isImport && !isRequire {
		return false
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return false
	}
	str := ctx.ChildOfKind(args, "string")
	if str == nil {
		return false
	}
	specifier := trimQuoted(ctx.Text(str))
	if specifier == "" {
		return false
	}
	imp := rawImport{specifier: specifier, identifiers: make(map[string]bool)}
	// Dynamic imports consume the whole module.
	imp.isStar = true
	e.raw = append(e.raw, imp)
	return false
}

func (e *tsExtractor) extractMemberAccess(ctx *ExtractionContext, node *sitter.Node) bool {
	object := node.ChildByFieldName("object")
	property := node.ChildByFieldName("property")
	if object == nil || property == nil {
		return false
	}
	if object.Kind() != "identifier" || property.Kind() != "property_identifier" {
		return false
	}
	ctx.recordAccess(ctx.Text(object), ctx.Text(property))
	return false
}

func trimQuoted(value string) string {
	value = strings.TrimSpace(value)
	return strings.Trim(value, "\"'`")
}
