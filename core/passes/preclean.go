package passes

import (
	"github.com/arkohler/atp/core/ast"
)

// PreClean normalizes incidental construction artifacts before any semantic
// pass runs: temp wrappers are spliced into their parent, and wrapper nodes
// the engine opened but never populated (empty conditions, groups with no
// members, empty else branches) are dropped.
func PreClean(root *ast.Node) *ast.Node {
	return root.Rewrite(func(n *ast.Node) []*ast.Node {
		switch {
		case n.Kind() == ast.KindTemp:
			return n.Children()
		case n.IsCondition() && n.NumChildren() == 0:
			return nil
		case n.Kind() == ast.KindElse && n.NumChildren() == 0:
			return nil
		case n.Kind() == ast.KindGroup && !hasMembers(n):
			return nil
		}
		return []*ast.Node{n}
	})
}

// hasMembers reports whether a group contains anything beyond its own
// bookkeeping children.
func hasMembers(group *ast.Node) bool {
	for _, c := range group.Children() {
		switch c.Kind() {
		case ast.KindName, ast.KindID, ast.KindOnFail, ast.KindOnPass:
		default:
			return true
		}
	}
	return false
}
