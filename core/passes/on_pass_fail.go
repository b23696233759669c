package passes

import (
	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/invariant"
)

// inlineBranchAction reports whether a row-based target can execute the
// action inline within an on_pass/on_fail branch. Everything else must be
// un-nested into the enclosing scope.
func inlineBranchAction(k ast.Kind) bool {
	switch k {
	case ast.KindBin, ast.KindSoftBin, ast.KindSetFlag, ast.KindSetResult, ast.KindContinue:
		return true
	}
	return false
}

// RemoveOnPassFail un-nests the actions a row-based target cannot execute
// inline out of on_pass/on_fail branches: the moved actions follow the test
// as a sibling condition on the test's own outcome, which the Relationship
// pass later lowers to a flag check. Bin assignments and flag sets stay
// inside the branch.
//
// Requires assigned IDs: the synthesized condition references the test by
// its ID.
func RemoveOnPassFail(root *ast.Node) *ast.Node {
	return root.Rewrite(func(n *ast.Node) []*ast.Node {
		if n.Kind() != ast.KindTest && n.Kind() != ast.KindCz {
			return []*ast.Node{n}
		}

		out := []*ast.Node{n}
		for _, branch := range []struct {
			branch ast.Kind
			cond   ast.Kind
		}{
			{ast.KindOnFail, ast.KindIfFailed},
			{ast.KindOnPass, ast.KindIfPassed},
		} {
			node := out[0]
			br := node.Find(branch.branch)
			if br == nil {
				continue
			}

			var inline, moved []*ast.Node
			for _, a := range br.Children() {
				if inlineBranchAction(a.Kind()) {
					inline = append(inline, a)
				} else {
					moved = append(moved, a)
				}
			}
			if len(moved) == 0 {
				continue
			}

			id := node.ID()
			invariant.Invariant(id != "",
				"%s un-nesting requires test IDs; AssignIDs must run first", branch.branch)

			out[0] = replaceDirectChild(node, br, br.WithChildren(inline...))
			out = append(out, ast.Condition(branch.cond, ast.Str(id), moved...))
		}
		return out
	})
}

// replaceDirectChild swaps one direct child for another, preserving order.
func replaceDirectChild(n, old, new *ast.Node) *ast.Node {
	children := make([]*ast.Node, n.NumChildren())
	for i, c := range n.Children() {
		if c == old {
			children[i] = new
		} else {
			children[i] = c
		}
	}
	return n.WithChildren(children...)
}
