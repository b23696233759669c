package passes_test

import (
	"testing"

	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/passes"
)

func collectIDs(root *ast.Node) []string {
	var ids []string
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Kind() == ast.KindID {
			ids = append(ids, n.Value().Str)
		}
		return true
	})
	return ids
}

func TestAssignIDsCoversEveryCarrier(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("a")),
		ast.Group("g",
			ast.Test(ast.Name("b")),
			ast.Cz("setup", ast.Test(ast.Name("c"), ast.ID("explicit"))),
		),
	)

	got := passes.AssignIDs(tree, "")
	ids := collectIDs(got)

	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate generated ID %q in %v", id, ids)
		}
		seen[id] = true
	}

	// Two tests, one group, one cz and the explicitly-ID'd test.
	if len(ids) != 5 {
		t.Fatalf("got %d IDs (%v), want 5", len(ids), ids)
	}
	if !seen["explicit"] {
		t.Error("explicit ID was not preserved")
	}
	if !seen["t1"] || !seen["g1"] || !seen["cz1"] {
		t.Errorf("expected per-kind prefixes in %v", ids)
	}
}

func TestAssignIDsIdempotent(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("a")),
		ast.Test(ast.Name("b")),
	)
	once := passes.AssignIDs(tree, "")
	twice := passes.AssignIDs(once, "")
	if !once.Equal(twice) {
		t.Errorf("second run changed the tree:\n%s\nvs:\n%s", once, twice)
	}
}

func TestAssignIDsSkipsTakenNames(t *testing.T) {
	// An explicit "t1" must not collide with the generator's first pick.
	tree := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t1")),
		ast.Test(ast.Name("b")),
	)
	got := passes.AssignIDs(tree, "")
	ids := collectIDs(got)
	if ids[0] != "t1" || ids[1] != "t2" {
		t.Errorf("ids = %v, want [t1 t2]", ids)
	}
}

func TestAssignIDsUniqueSuffix(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t_leak")),
		ast.Condition(ast.KindIfFailed, ast.Str("t_leak"), ast.Bin(5)),
	)
	got := passes.AssignIDs(tree, "ws1")

	ids := collectIDs(got)
	if len(ids) != 1 || ids[0] != "t_leak_ws1" {
		t.Fatalf("ids = %v, want [t_leak_ws1]", ids)
	}

	cond := got.Find(ast.KindIfFailed)
	if cond == nil {
		t.Fatal("condition lost")
	}
	if cond.Value().Str != "t_leak_ws1" {
		t.Errorf("reference = %q, want t_leak_ws1", cond.Value().Str)
	}
}
