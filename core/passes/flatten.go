package passes

import (
	"github.com/arkohler/atp/core/ast"
)

// Flatten rewrites the tree into a linear statement sequence: every group
// scope is spliced away and every remaining statement is wrapped in its own
// chain of single-statement condition wrappers, outermost first. The result
// has no shared condition scopes, which makes it trivial to replay or diff.
//
// Group on_fail/on_pass branches are distributed onto member tests before
// flattening; else branches and test-level branch un-nesting must already
// have run.
func Flatten(root *ast.Node) *ast.Node {
	root = ApplyPostGroupActions(root)

	out := []*ast.Node{}
	for _, c := range root.Children() {
		switch c.Kind() {
		case ast.KindName, ast.KindVolatile:
			// Declarations stay unconditioned at the top level.
			out = append(out, c)
		default:
			out = flattenInto(out, c, nil)
		}
	}
	return root.WithChildren(out...)
}

// flattenInto appends the flattened form of n to out. conds is the chain of
// enclosing condition nodes, outermost first; each emitted statement gets a
// fresh copy of the chain as nested single-child wrappers.
func flattenInto(out []*ast.Node, n *ast.Node, conds []*ast.Node) []*ast.Node {
	switch {
	case n.IsCondition():
		for _, c := range n.Children() {
			out = flattenInto(out, c, append(conds, n))
		}
		return out
	case n.Kind() == ast.KindGroup:
		for _, c := range n.Children() {
			switch c.Kind() {
			case ast.KindName, ast.KindID:
				continue
			}
			out = flattenInto(out, c, conds)
		}
		return out
	}

	wrapped := n
	for i := len(conds) - 1; i >= 0; i-- {
		wrapped = ast.Condition(conds[i].Kind(), conds[i].Value(), wrapped)
	}
	return append(out, wrapped)
}
