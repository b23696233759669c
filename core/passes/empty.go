package passes

import (
	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/condition"
)

// RemoveEmptyBranches deletes scopes that no longer contain statements:
// empty on_fail/on_pass branches, empty else branches, and conditions whose
// body emptied out. A condition with an empty body but a live else branch
// is replaced by the complementary condition over the else statements. The
// pass is idempotent.
func RemoveEmptyBranches(root *ast.Node) *ast.Node {
	return root.Rewrite(func(n *ast.Node) []*ast.Node {
		switch {
		case n.Kind() == ast.KindOnFail, n.Kind() == ast.KindOnPass, n.Kind() == ast.KindElse:
			if n.NumChildren() == 0 {
				return nil
			}
		case n.IsCondition():
			if !emptyBody(n) {
				return []*ast.Node{n}
			}
			els := n.Find(ast.KindElse)
			if els == nil {
				return nil
			}
			neg, ok := condition.Negate(n.Kind())
			if !ok {
				return nil
			}
			return []*ast.Node{ast.Condition(neg, n.Value(), els.Children()...)}
		case n.Kind() == ast.KindGroup:
			if !hasMembers(n) {
				return nil
			}
		}
		return []*ast.Node{n}
	})
}

// emptyBody reports whether a condition has no executable statements left.
// An else branch alone does not keep the condition alive: if the body is
// empty the else should have been un-nested or is itself empty.
func emptyBody(n *ast.Node) bool {
	for _, c := range n.Children() {
		if c.Kind() != ast.KindElse {
			return false
		}
	}
	return true
}
