package passes

import (
	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/invariant"
)

// LowerConditions gives later passes a uniform condition vocabulary: the
// only condition kinds left afterwards are if_flag/unless_flag plus the
// kinds the targets execute natively (enable words and jobs).
//
// When the Relationship pass already ran, any surviving relationship
// condition is a pipeline-composition bug, not a user error; when it was
// skipped, the same lowering is applied here. Directly nested duplicates of
// one condition (same kind, same guard) collapse to a single wrapper.
func LowerConditions(root *ast.Node, relationshipsApplied bool) *ast.Node {
	if relationshipsApplied {
		ast.Walk(root, func(n *ast.Node) bool {
			if isRelationshipKind(n.Kind()) {
				invariant.Unreachable(
					"%s condition survived relationship lowering; pipeline ran passes out of order", n.Kind())
			}
			return true
		})
	} else {
		root = lowerRelationships(root)
	}

	return root.Transform(collapseNestedDuplicate)
}

// collapseNestedDuplicate unwraps a condition whose sole child is the same
// condition again: if_flag(F){ if_flag(F){ body } } guards body exactly
// once either way.
func collapseNestedDuplicate(n *ast.Node) *ast.Node {
	if !n.IsCondition() || n.NumChildren() != 1 {
		return n
	}
	child := n.Child(0)
	if child.Kind() == n.Kind() && child.Value().Equal(n.Value()) {
		return n.WithChildren(child.Children()...)
	}
	return n
}
