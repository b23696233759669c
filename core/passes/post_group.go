package passes

import (
	"github.com/arkohler/atp/core/ast"
)

// ApplyPostGroupActions distributes a group's on_fail/on_pass actions onto
// every test the group contains. Row-based targets have no group scope to
// hang branch actions on, so each member test carries them directly. The
// group keeps its structural children; only the branches are removed.
func ApplyPostGroupActions(root *ast.Node) *ast.Node {
	return root.Transform(func(n *ast.Node) *ast.Node {
		if n.Kind() != ast.KindGroup {
			return n
		}
		fail := n.Find(ast.KindOnFail)
		pass := n.Find(ast.KindOnPass)
		if fail == nil && pass == nil {
			return n
		}

		n = n.Without(ast.KindOnFail).Without(ast.KindOnPass)
		children := make([]*ast.Node, 0, n.NumChildren())
		for _, c := range n.Children() {
			children = append(children, pushBranchActions(c, fail, pass))
		}
		return n.WithChildren(children...)
	})
}

// pushBranchActions appends the group branch actions to every test or
// characterization block under n, descending through nested groups and
// conditions.
func pushBranchActions(n *ast.Node, fail, pass *ast.Node) *ast.Node {
	switch {
	case n.Kind() == ast.KindTest || n.Kind() == ast.KindCz:
		if fail != nil {
			n = appendBranchActions(n, ast.KindOnFail, fail.Children())
		}
		if pass != nil {
			n = appendBranchActions(n, ast.KindOnPass, pass.Children())
		}
		return n
	case n.Kind() == ast.KindGroup || n.IsCondition():
		children := make([]*ast.Node, 0, n.NumChildren())
		for _, c := range n.Children() {
			children = append(children, pushBranchActions(c, fail, pass))
		}
		return n.WithChildren(children...)
	}
	return n
}
