// Package flowfmt persists flows in a deterministic binary format.
//
// A flow file carries the constructed tree before target optimization, so
// one stored flow can later be compiled for any target. The body is
// canonical CBOR: encoding the same flow always yields the same bytes, and
// the file hash (BLAKE2b-256 of the body) is stable across machines and
// runs.
package flowfmt

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/condition"
)

const (
	// Magic is the file magic number "ATPF" (4 bytes).
	Magic = "ATPF"

	// Version is the format version (uint16, little-endian).
	// Breaking changes increment major, additions increment minor.
	Version uint16 = 0x0001
)

// Flags is a bitmask for optional features. No flags are defined yet; the
// field exists so readers can reject files using features they predate.
type Flags uint16

const (
	maxBodyLen = 32 * 1024 * 1024
	maxDepth   = 200
)

// wireFlow is the CBOR document stored in the file body.
type wireFlow struct {
	Version uint8
	Name    string
	Program string
	Root    wireNode
}

// wireNode mirrors one tree node. Kind names, not numeric tags, go on the
// wire: the node vocabulary can be reordered internally without breaking
// stored flows.
type wireNode struct {
	Kind     string
	Value    wireValue
	Children []wireNode
}

type wireValue struct {
	Kind uint8
	Str  string
	Int  int64
	Bool bool
	Strs []string
}

func toWireNode(n *ast.Node) wireNode {
	v := n.Value()
	wn := wireNode{
		Kind: n.Kind().String(),
		Value: wireValue{
			Kind: uint8(v.Kind),
			Str:  v.Str,
			Int:  v.Int,
			Bool: v.Bool,
			Strs: v.Strs,
		},
	}
	if n.NumChildren() > 0 {
		wn.Children = make([]wireNode, n.NumChildren())
		for i, c := range n.Children() {
			wn.Children[i] = toWireNode(c)
		}
	}
	return wn
}

func fromWireNode(wn *wireNode, depth int) (*ast.Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("tree depth exceeds maximum %d", maxDepth)
	}
	kind := ast.KindFromName(wn.Kind)
	if kind == ast.KindInvalid {
		return nil, fmt.Errorf("unknown node kind %q", wn.Kind)
	}

	v := ast.Value{
		Kind: ast.ValueKind(wn.Value.Kind),
		Str:  wn.Value.Str,
		Int:  wn.Value.Int,
		Bool: wn.Value.Bool,
		Strs: wn.Value.Strs,
	}
	switch v.Kind {
	case ast.ValueNone, ast.ValueString, ast.ValueInt, ast.ValueBool, ast.ValueStrings:
	default:
		return nil, fmt.Errorf("unknown value kind %d", wn.Value.Kind)
	}

	children := make([]*ast.Node, len(wn.Children))
	for i := range wn.Children {
		c, err := fromWireNode(&wn.Children[i], depth+1)
		if err != nil {
			return nil, err
		}
		// The engine only attaches else branches to conditions it can
		// split into a negated sibling; a stored tree must obey the same
		// shape or else removal has no complement to emit.
		if c.Kind() == ast.KindElse {
			if _, ok := condition.Negate(kind); !ok {
				return nil, fmt.Errorf("%s node cannot carry an else branch", kind)
			}
		}
		children[i] = c
	}
	return ast.NewValue(kind, v, children...), nil
}

// marshalBody produces the deterministic CBOR encoding of the document.
func marshalBody(doc *wireFlow) ([]byte, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR encoder: %w", err)
	}
	data, err := encMode.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("CBOR encoding failed: %w", err)
	}
	return data, nil
}

func unmarshalBody(data []byte) (*wireFlow, error) {
	// Every tree level costs two CBOR nesting levels (the node map and its
	// child array), so the decoder limit tracks maxDepth.
	decMode, err := cbor.DecOptions{MaxNestedLevels: 2*maxDepth + 8}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR decoder: %w", err)
	}
	var doc wireFlow
	if err := decMode.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("CBOR decoding failed: %w", err)
	}
	return &doc, nil
}
