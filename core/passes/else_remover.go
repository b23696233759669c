package passes

import (
	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/condition"
	"github.com/arkohler/atp/core/invariant"
)

// RemoveElses un-nests every else branch into a sibling condition of the
// complementary kind: if_enabled(v){X} else {Y} becomes the two siblings
// if_enabled(v){X} and unless_enabled(v){Y}. Row-based targets cannot
// represent an else branch as a nested scope.
func RemoveElses(root *ast.Node) *ast.Node {
	return root.Rewrite(func(n *ast.Node) []*ast.Node {
		if !n.IsCondition() {
			return []*ast.Node{n}
		}
		els := n.Find(ast.KindElse)
		if els == nil {
			return []*ast.Node{n}
		}

		neg, ok := condition.Negate(n.Kind())
		if !ok {
			// The construction engine only attaches else branches through
			// CondElse, which is limited to negatable kinds.
			invariant.Unreachable("%s carries an else branch but has no complement", n.Kind())
		}
		return []*ast.Node{
			n.Without(ast.KindElse),
			ast.Condition(neg, n.Value(), els.Children()...),
		}
	})
}
