package passes

import (
	"github.com/arkohler/atp/core/ast"
)

// RemoveRedundantConditions splices out a condition that exactly repeats an
// enclosing one (same kind, same guard): inside if_flag(F) a nested
// if_flag(F) is always true and its body executes unconditionally.
func RemoveRedundantConditions(root *ast.Node) *ast.Node {
	return stripRedundant(root, nil)
}

func stripRedundant(n *ast.Node, active []*ast.Node) *ast.Node {
	if n.NumChildren() == 0 {
		return n
	}

	inner := active
	if n.IsCondition() {
		inner = append(active, n)
	}

	children := make([]*ast.Node, 0, n.NumChildren())
	for _, c := range n.Children() {
		if c.IsCondition() && covered(c, inner) {
			// Splice the body; the guard already holds here.
			stripped := stripRedundant(c, inner)
			children = append(children, stripped.Children()...)
			continue
		}
		children = append(children, stripRedundant(c, inner))
	}
	return n.WithChildren(children...)
}

func covered(c *ast.Node, active []*ast.Node) bool {
	for _, a := range active {
		if a.Kind() == c.Kind() && a.Value().Equal(c.Value()) {
			return true
		}
	}
	return false
}
