package passes

import (
	"github.com/arkohler/atp/core/ast"
)

// CombineAdjacentIfs merges consecutive sibling conditions with the same
// kind and guard into one scope, so the renderer emits a single branch
// instead of re-evaluating the guard per statement.
//
// A merge is skipped when it would change behavior: when either condition
// carries an else branch, when the first body writes a flag the shared
// guard reads, or when any guard flag is declared volatile (an external
// agent may flip it between the two scopes).
func CombineAdjacentIfs(root *ast.Node) *ast.Node {
	volatile := volatileFlags(root)
	return root.Transform(func(n *ast.Node) *ast.Node {
		if n.NumChildren() < 2 {
			return n
		}
		children := n.Children()
		merged := make([]*ast.Node, 0, len(children))
		merged = append(merged, children[0])
		for _, c := range children[1:] {
			prev := merged[len(merged)-1]
			if canMerge(prev, c, volatile) {
				merged[len(merged)-1] = prev.WithChildren(
					append(prev.Children(), c.Children()...)...)
			} else {
				merged = append(merged, c)
			}
		}
		if len(merged) == len(children) {
			return n
		}
		return n.WithChildren(merged...)
	})
}

func canMerge(a, b *ast.Node, volatile map[string]bool) bool {
	if !a.IsCondition() || a.Kind() != b.Kind() || !a.Value().Equal(b.Value()) {
		return false
	}
	if a.Find(ast.KindElse) != nil || b.Find(ast.KindElse) != nil {
		return false
	}
	switch a.Kind() {
	case ast.KindIfFlag, ast.KindUnlessFlag:
		for _, flag := range a.Value().List() {
			if volatile[flag] || setsFlag(a, flag) {
				return false
			}
		}
	case ast.KindIfEnabled, ast.KindUnlessEnabled:
		for _, word := range a.Value().List() {
			if togglesWord(a, word) {
				return false
			}
		}
	}
	return true
}

// togglesWord reports whether any statement under n enables or disables word.
func togglesWord(n *ast.Node, word string) bool {
	found := false
	ast.Walk(n, func(c *ast.Node) bool {
		if (c.Kind() == ast.KindEnable || c.Kind() == ast.KindDisable) && c.Value().Str == word {
			found = true
		}
		return !found
	})
	return found
}

// setsFlag reports whether any statement under n writes flag.
func setsFlag(n *ast.Node, flag string) bool {
	found := false
	ast.Walk(n, func(c *ast.Node) bool {
		if c.Kind() == ast.KindSetFlag && c.Value().Str == flag {
			found = true
		}
		return !found
	})
	return found
}

// volatileFlags collects every flag named by a volatile declaration.
func volatileFlags(root *ast.Node) map[string]bool {
	flags := make(map[string]bool)
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Kind() == ast.KindVolatile {
			for _, f := range n.Children() {
				flags[f.Value().Str] = true
			}
		}
		return true
	})
	return flags
}
