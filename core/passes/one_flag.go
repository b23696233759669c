package passes

import (
	"github.com/arkohler/atp/core/ast"
)

// EnforceOneFlagPerTest limits every test to writing a single outcome flag.
// Row-based targets allot one flag column per test row; additional flags
// become follow-up rows that copy the primary flag's state.
//
// The first fail flag (or, failing that, the first pass flag) is kept as
// the primary. Remaining fail flags are re-set behind if_flag(primary);
// remaining pass flags behind unless_flag(primary) when the primary is a
// fail flag.
func EnforceOneFlagPerTest(root *ast.Node) *ast.Node {
	return root.Rewrite(func(n *ast.Node) []*ast.Node {
		if n.Kind() != ast.KindTest && n.Kind() != ast.KindCz {
			return []*ast.Node{n}
		}
		failFlags := branchFlags(n, ast.KindOnFail)
		passFlags := branchFlags(n, ast.KindOnPass)
		if len(failFlags)+len(passFlags) <= 1 {
			return []*ast.Node{n}
		}

		primary := ""
		primaryFails := false
		if len(failFlags) > 0 {
			primary, primaryFails = failFlags[0], true
		} else {
			primary = passFlags[0]
		}

		out := []*ast.Node{stripExtraFlags(n, primary)}
		emit := func(kind ast.Kind, flags []string) {
			actions := make([]*ast.Node, len(flags))
			for i, f := range flags {
				actions[i] = ast.SetFlag(f)
			}
			out = append(out, ast.Condition(kind, ast.Str(primary), actions...))
		}

		if primaryFails {
			if len(failFlags) > 1 {
				emit(ast.KindIfFlag, failFlags[1:])
			}
			if len(passFlags) > 0 {
				emit(ast.KindUnlessFlag, passFlags)
			}
		} else if len(passFlags) > 1 {
			emit(ast.KindIfFlag, passFlags[1:])
		}
		return out
	})
}

// branchFlags lists the flags a test's branch writes, in order.
func branchFlags(test *ast.Node, branch ast.Kind) []string {
	br := test.Find(branch)
	if br == nil {
		return nil
	}
	var flags []string
	for _, c := range br.Children() {
		if c.Kind() == ast.KindSetFlag {
			flags = append(flags, c.Value().Str)
		}
	}
	return flags
}

// stripExtraFlags removes every set_flag except the primary from both
// branches.
func stripExtraFlags(test *ast.Node, primary string) *ast.Node {
	children := make([]*ast.Node, 0, test.NumChildren())
	for _, c := range test.Children() {
		if c.Kind() != ast.KindOnFail && c.Kind() != ast.KindOnPass {
			children = append(children, c)
			continue
		}
		kept := make([]*ast.Node, 0, c.NumChildren())
		for _, a := range c.Children() {
			if a.Kind() == ast.KindSetFlag && a.Value().Str != primary {
				continue
			}
			kept = append(kept, a)
		}
		children = append(children, c.WithChildren(kept...))
	}
	return test.WithChildren(children...)
}
