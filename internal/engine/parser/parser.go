// Package parser extracts imports and exports from single source
// files. The engine drives it; it never follows the import graph.
package parser

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"cruft/internal/core/errors"
	"cruft/internal/engine/modspec"
)

var (
	grammarOnce sync.Once
	grammars    map[string]*sitter.Language
)

// loadGrammars compiles the grammars once per process; they are
// read-only afterwards.
func loadGrammars() map[string]*sitter.Language {
	grammarOnce.Do(func() {
		grammars = map[string]*sitter.Language{
			"typescript": sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			"tsx":        sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
			"javascript": sitter.NewLanguage(tree_sitter_javascript.Language()),
		}
	})
	return grammars
}

type Parser struct {
	opts CompilerOptions
}

func New(opts CompilerOptions) *Parser {
	return &Parser{opts: opts}
}

func (p *Parser) Options() CompilerOptions {
	return p.opts
}

func (p *Parser) Supports(path string) bool {
	return detectLanguage(path) != ""
}

func detectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	default:
		return ""
	}
}

// ParseFile parses one file and resolves its specifiers: internal
// imports to absolute paths, bare names to the external set, and
// everything else to the unresolved set.
func (p *Parser) ParseFile(path string) (*FileResult, error) {
	lang := detectLanguage(path)
	if lang == "" {
		return nil, errors.New(errors.CodeParseError, "unsupported file type: "+path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeParseError, "read source file")
	}

	grammar := loadGrammars()[lang]
	tsParser := sitter.NewParser()
	defer tsParser.Close()
	tsParser.SetLanguage(grammar)

	tree := tsParser.Parse(content, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeParseError, "parse failed: "+path)
	}
	defer tree.Close()

	extractor := &tsExtractor{}
	result, raw, err := extractor.Extract(tree.RootNode(), content, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeParseError, "extraction failed")
	}

	p.resolveImports(result, raw)
	return result, nil
}

func (p *Parser) resolveImports(result *FileResult, raw []rawImport) {
	dir := filepath.Dir(result.Path)
	for _, imp := range raw {
		switch modspec.Classify(imp.specifier) {
		case modspec.KindInternal:
			resolved := ResolveFile(dir, imp.specifier)
			if resolved == "" {
				result.Unresolved[imp.specifier] = true
				continue
			}
			p.addInternal(result, resolved, imp)
		case modspec.KindNodeModules:
			result.External[imp.specifier] = true
		case modspec.KindBare:
			if resolved := ResolveAlias(p.opts, imp.specifier); resolved != "" {
				p.addInternal(result, resolved, imp)
				continue
			}
			result.External[imp.specifier] = true
		default:
			result.Unresolved[imp.specifier] = true
		}
	}
}

func (p *Parser) addInternal(result *FileResult, resolved string, imp rawImport) {
	items, ok := result.Internal[resolved]
	if !ok {
		items = NewImportItems(imp.specifier)
		result.Internal[resolved] = items
	}
	for id := range imp.identifiers {
		items.Identifiers[id] = true
	}
	items.IsStar = items.IsStar || imp.isStar
	if imp.isReExported {
		items.IsReExported = true
		items.IsReExportedBy[modspec.Normalize(result.Path)] = true
	}
}
