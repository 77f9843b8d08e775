package principal

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"cruft/internal/engine/parser"
)

// Factory deduplicates principals by a canonical fingerprint of their
// compiler options so workspaces sharing a configuration share state
// and their import graphs connect naturally.
type Factory struct {
	newParser  func(parser.CompilerOptions) parser.SourceParser
	principals map[uint64]*Principal
}

func NewFactory(newParser func(parser.CompilerOptions) parser.SourceParser) *Factory {
	if newParser == nil {
		newParser = func(opts parser.CompilerOptions) parser.SourceParser {
			return parser.New(opts)
		}
	}
	return &Factory{
		newParser:  newParser,
		principals: make(map[uint64]*Principal),
	}
}

// GetPrincipal returns the principal for a compiler-options group,
// creating it on first use. Semantically equal option sets map to the
// same principal regardless of textual differences.
func (f *Factory) GetPrincipal(opts parser.CompilerOptions) *Principal {
	sum := xxhash.Sum64(opts.Canonical())
	if p, ok := f.principals[sum]; ok {
		return p
	}
	p := New(fmt.Sprintf("%016x", sum), f.newParser(opts))
	f.principals[sum] = p
	return p
}

// Principals lists all created principals in deterministic order.
func (f *Factory) Principals() []*Principal {
	out := make([]*Principal, 0, len(f.principals))
	for _, p := range f.principals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
