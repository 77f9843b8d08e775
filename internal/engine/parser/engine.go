package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for the extractor. Returns true when the
// handler has consumed the node's children and the walker should not
// descend.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries shared state used by all handlers.
type ExtractionContext struct {
	Source []byte
	Result *FileResult
	// ImportedAliases maps local binding names back to the imported
	// name they were renamed from.
	ImportedAliases map[string]string
	// exportCounts tracks duplicate exported names.
	exportCounts map[string]int
	// lastComment supports detecting a public annotation directly above
	// an export statement.
	lastCommentText string
	lastCommentLine int
}

type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}

	stop := false
	if handler, ok := e.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}
	if !stop {
		for i := uint(0); i < node.ChildCount(); i++ {
			e.Walk(ctx, node.Child(i))
		}
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

func (c *ExtractionContext) Location(node *sitter.Node) Location {
	return Location{
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

func (c *ExtractionContext) ChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}

func (c *ExtractionContext) recordAccess(object, member string) {
	if object == "" || member == "" {
		return
	}
	if c.Result.Accesses[object] == nil {
		c.Result.Accesses[object] = make(map[string]bool)
	}
	c.Result.Accesses[object][member] = true
}

func (c *ExtractionContext) addExport(exp *Export) {
	c.exportCounts[exp.Name]++
	if _, exists := c.Result.Exports[exp.Name]; !exists {
		c.Result.Exports[exp.Name] = exp
	}
}

func (c *ExtractionContext) finishDuplicates() {
	for name, count := range c.exportCounts {
		if count < 2 {
			continue
		}
		group := make([]string, count)
		for i := range group {
			group[i] = name
		}
		c.Result.DuplicateExports = append(c.Result.DuplicateExports, group)
	}
}
