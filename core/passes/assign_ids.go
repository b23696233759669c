package passes

import (
	"fmt"

	"github.com/arkohler/atp/core/ast"
)

// idPrefixes names the generated-ID namespace per kind.
var idPrefixes = map[ast.Kind]string{
	ast.KindTest:    "t",
	ast.KindGroup:   "g",
	ast.KindCz:      "cz",
	ast.KindSubTest: "st",
}

// AssignIDs gives every ID-bearing node that lacks an explicit ID a
// generated one, unique within the tree and stable for a given input.
// Nodes that already carry an ID keep it, so re-running the pass on a
// fully-ID'd tree changes nothing.
//
// When suffix is non-empty, every ID in the tree - explicit, kept, or newly
// generated - is rewritten to append "_<suffix>", along with every
// relationship reference to those IDs, so several flows can be merged into
// one program without collisions.
func AssignIDs(root *ast.Node, suffix string) *ast.Node {
	taken := make(map[string]bool)
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Kind() == ast.KindID {
			taken[n.Value().Str] = true
		}
		return true
	})

	counters := make(map[string]int)
	next := func(prefix string) string {
		for {
			counters[prefix]++
			id := fmt.Sprintf("%s%d", prefix, counters[prefix])
			if !taken[id] {
				taken[id] = true
				return id
			}
		}
	}

	out := root.Transform(func(n *ast.Node) *ast.Node {
		prefix, ok := idPrefixes[n.Kind()]
		if !ok || n.Find(ast.KindID) != nil {
			return n
		}
		return n.Append(ast.ID(next(prefix)))
	})

	if suffix == "" {
		return out
	}
	return appendIDSuffix(out, suffix)
}

// appendIDSuffix rewrites every ID and every relationship reference to
// carry the merge suffix. Flag and enable-word guards are left alone: they
// are not per-flow namespaces.
func appendIDSuffix(root *ast.Node, suffix string) *ast.Node {
	rename := func(id string) string { return id + "_" + suffix }

	return root.Transform(func(n *ast.Node) *ast.Node {
		switch {
		case n.Kind() == ast.KindID:
			return n.WithValue(ast.Str(rename(n.Value().Str)))
		case isRelationshipKind(n.Kind()):
			refs := n.Value().List()
			renamed := make([]string, len(refs))
			for i, r := range refs {
				renamed[i] = rename(r)
			}
			if len(renamed) == 1 {
				return n.WithValue(ast.Str(renamed[0]))
			}
			return n.WithValue(ast.Strs(renamed))
		}
		return n
	})
}
