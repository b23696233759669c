package passes

import (
	"strings"

	"github.com/arkohler/atp/core/ast"
)

// outcomes records which of a test's outcomes other nodes reference.
type outcomes struct {
	failed bool
	passed bool
	ran    bool
}

// ApplyRelationships rewrites pass/fail/ran references between tests into
// explicit flag set/check pairs: the referenced test gains a set_flag
// action on the relevant outcome, and the referencing condition becomes an
// if_flag/unless_flag check on that flag. After this pass no relationship
// condition kinds remain in the tree.
func ApplyRelationships(root *ast.Node) *ast.Node {
	return lowerRelationships(root)
}

func lowerRelationships(root *ast.Node) *ast.Node {
	needs := collectOutcomeRefs(root)
	if len(needs) == 0 {
		return root
	}

	// First give every referenced test its outcome flags, then rewrite the
	// references; the two walks are independent of each other's order.
	withFlags := root.Transform(func(n *ast.Node) *ast.Node {
		if !carriesID(n.Kind()) {
			return n
		}
		o, ok := needs[n.ID()]
		if !ok {
			return n
		}
		id := n.ID()
		if o.failed || o.ran {
			var flags []*ast.Node
			if o.failed {
				flags = append(flags, ast.SetFlag(outcomeFlag(id, "FAILED")))
			}
			if o.ran {
				flags = append(flags, ast.SetFlag(outcomeFlag(id, "RAN")))
			}
			n = appendBranchActions(n, ast.KindOnFail, flags)
		}
		if o.passed || o.ran {
			var flags []*ast.Node
			if o.passed {
				flags = append(flags, ast.SetFlag(outcomeFlag(id, "PASSED")))
			}
			if o.ran {
				flags = append(flags, ast.SetFlag(outcomeFlag(id, "RAN")))
			}
			n = appendBranchActions(n, ast.KindOnPass, flags)
		}
		return n
	})

	return withFlags.Transform(rewriteRelationshipCondition)
}

func collectOutcomeRefs(root *ast.Node) map[string]*outcomes {
	needs := make(map[string]*outcomes)
	mark := func(id string, set func(*outcomes)) {
		o := needs[id]
		if o == nil {
			o = &outcomes{}
			needs[id] = o
		}
		set(o)
	}
	ast.Walk(root, func(n *ast.Node) bool {
		switch n.Kind() {
		case ast.KindIfFailed, ast.KindIfAnyFailed, ast.KindIfAllFailed:
			for _, id := range n.Value().List() {
				mark(id, func(o *outcomes) { o.failed = true })
			}
		case ast.KindIfPassed, ast.KindIfAnyPassed, ast.KindIfAllPassed:
			for _, id := range n.Value().List() {
				mark(id, func(o *outcomes) { o.passed = true })
			}
		case ast.KindIfRan, ast.KindUnlessRan:
			for _, id := range n.Value().List() {
				mark(id, func(o *outcomes) { o.ran = true })
			}
		}
		return true
	})
	return needs
}

// rewriteRelationshipCondition converts one relationship condition into its
// flag-gated equivalent. An any-family guard becomes a single multi-flag
// check (true when any flag is set); an all-family guard becomes nested
// single-flag checks. A trailing else branch stays on the outermost node.
func rewriteRelationshipCondition(n *ast.Node) *ast.Node {
	var kind ast.Kind
	var outcome string
	all := false

	switch n.Kind() {
	case ast.KindIfFailed, ast.KindIfAnyFailed:
		kind, outcome = ast.KindIfFlag, "FAILED"
	case ast.KindIfAllFailed:
		kind, outcome, all = ast.KindIfFlag, "FAILED", true
	case ast.KindIfPassed, ast.KindIfAnyPassed:
		kind, outcome = ast.KindIfFlag, "PASSED"
	case ast.KindIfAllPassed:
		kind, outcome, all = ast.KindIfFlag, "PASSED", true
	case ast.KindIfRan:
		kind, outcome = ast.KindIfFlag, "RAN"
	case ast.KindUnlessRan:
		kind, outcome = ast.KindUnlessFlag, "RAN"
	default:
		return n
	}

	flags := make([]string, 0, len(n.Value().List()))
	for _, id := range n.Value().List() {
		flags = append(flags, outcomeFlag(id, outcome))
	}

	// Split off a trailing else branch so nesting never buries it.
	body := n.Children()
	var els *ast.Node
	if len(body) > 0 && body[len(body)-1].Kind() == ast.KindElse {
		els = body[len(body)-1]
		body = body[:len(body)-1]
	}

	var out *ast.Node
	if all && len(flags) > 1 {
		inner := ast.Condition(kind, ast.Str(flags[len(flags)-1]), body...)
		for i := len(flags) - 2; i >= 1; i-- {
			inner = ast.Condition(kind, ast.Str(flags[i]), inner)
		}
		out = ast.Condition(kind, ast.Str(flags[0]), inner)
	} else {
		var guard ast.Value
		if len(flags) == 1 {
			guard = ast.Str(flags[0])
		} else {
			guard = ast.Strs(flags)
		}
		out = ast.Condition(kind, guard, body...)
	}

	if els != nil {
		out = out.Append(els)
	}
	return out
}

// appendBranchActions appends actions to the named branch of a test,
// creating the branch if the test has none. Actions already present (same
// kind and value) are not duplicated, so the lowering is idempotent.
func appendBranchActions(test *ast.Node, branch ast.Kind, actions []*ast.Node) *ast.Node {
	existing := test.Find(branch)
	if existing == nil {
		return test.Append(ast.New(branch, actions...))
	}

	added := existing
	for _, a := range actions {
		dup := false
		for _, c := range existing.Children() {
			if c.Equal(a) {
				dup = true
				break
			}
		}
		if !dup {
			added = added.Append(a)
		}
	}
	if added == existing {
		return test
	}

	children := make([]*ast.Node, 0, test.NumChildren())
	for _, c := range test.Children() {
		if c == existing {
			children = append(children, added)
		} else {
			children = append(children, c)
		}
	}
	return test.WithChildren(children...)
}

// outcomeFlag names the synthesized flag for one test outcome.
func outcomeFlag(id, outcome string) string {
	return strings.ToUpper(id) + "_" + outcome
}
