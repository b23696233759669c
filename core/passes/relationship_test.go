package passes_test

import (
	"testing"

	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/passes"
)

func requireTree(t *testing.T, want, got *ast.Node) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("tree mismatch\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestApplyRelationshipsFailedReference(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("t1"), ast.ID("t1")),
		ast.Condition(ast.KindIfFailed, ast.Str("t1"),
			ast.Bin(10)),
	)

	got := passes.ApplyRelationships(tree)
	want := ast.Flow("f",
		ast.Test(ast.Name("t1"), ast.ID("t1"),
			ast.OnFail(ast.SetFlag("T1_FAILED"))),
		ast.Condition(ast.KindIfFlag, ast.Str("T1_FAILED"),
			ast.Bin(10)),
	)
	requireTree(t, want, got)
}

func TestApplyRelationshipsRanSetsBothBranches(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("t1"), ast.ID("t1")),
		ast.Condition(ast.KindUnlessRan, ast.Str("t1"), ast.Log("skipped")),
	)

	got := passes.ApplyRelationships(tree)
	want := ast.Flow("f",
		ast.Test(ast.Name("t1"), ast.ID("t1"),
			ast.OnFail(ast.SetFlag("T1_RAN")),
			ast.OnPass(ast.SetFlag("T1_RAN"))),
		ast.Condition(ast.KindUnlessFlag, ast.Str("T1_RAN"), ast.Log("skipped")),
	)
	requireTree(t, want, got)
}

func TestApplyRelationshipsAnyFamily(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t1")),
		ast.Test(ast.Name("b"), ast.ID("t2")),
		ast.Condition(ast.KindIfAnyFailed, ast.Strs([]string{"t1", "t2"}),
			ast.Bin(10)),
	)

	got := passes.ApplyRelationships(tree)
	want := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t1"), ast.OnFail(ast.SetFlag("T1_FAILED"))),
		ast.Test(ast.Name("b"), ast.ID("t2"), ast.OnFail(ast.SetFlag("T2_FAILED"))),
		ast.Condition(ast.KindIfFlag, ast.Strs([]string{"T1_FAILED", "T2_FAILED"}),
			ast.Bin(10)),
	)
	requireTree(t, want, got)
}

func TestApplyRelationshipsAllFamilyNests(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t1")),
		ast.Test(ast.Name("b"), ast.ID("t2")),
		ast.Condition(ast.KindIfAllPassed, ast.Strs([]string{"t1", "t2"}),
			ast.SetFlag("BOTH_OK")),
	)

	got := passes.ApplyRelationships(tree)
	want := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t1"), ast.OnPass(ast.SetFlag("T1_PASSED"))),
		ast.Test(ast.Name("b"), ast.ID("t2"), ast.OnPass(ast.SetFlag("T2_PASSED"))),
		ast.Condition(ast.KindIfFlag, ast.Str("T1_PASSED"),
			ast.Condition(ast.KindIfFlag, ast.Str("T2_PASSED"),
				ast.SetFlag("BOTH_OK"))),
	)
	requireTree(t, want, got)
}

func TestApplyRelationshipsKeepsElseOutermost(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t1")),
		ast.Test(ast.Name("b"), ast.ID("t2")),
		ast.Condition(ast.KindIfAllFailed, ast.Strs([]string{"t1", "t2"}),
			ast.Bin(10),
			ast.Else(ast.Log("fine"))),
	)

	got := passes.ApplyRelationships(tree)
	cond := got.Find(ast.KindIfFlag)
	if cond == nil {
		t.Fatalf("no if_flag produced:\n%s", got)
	}
	last := cond.Child(cond.NumChildren() - 1)
	if last.Kind() != ast.KindElse {
		t.Errorf("else not on the outermost condition:\n%s", got)
	}
	if cond.Find(ast.KindIfFlag) == nil {
		t.Errorf("all-family should nest an inner if_flag:\n%s", got)
	}
}

func TestApplyRelationshipsExistingBranchNotDuplicated(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t1"),
			ast.OnFail(ast.Bin(5), ast.SetFlag("T1_FAILED"))),
		ast.Condition(ast.KindIfFailed, ast.Str("t1"), ast.Log("x")),
	)

	got := passes.ApplyRelationships(tree)
	branch := got.Find(ast.KindTest).Find(ast.KindOnFail)
	if n := len(branch.FindAll(ast.KindSetFlag)); n != 1 {
		t.Errorf("set_flag duplicated, %d occurrences:\n%s", n, got)
	}
}

func TestLowerConditionsCollapsesNestedDuplicate(t *testing.T) {
	tree := ast.Flow("f",
		ast.Condition(ast.KindIfFlag, ast.Str("F"),
			ast.Condition(ast.KindIfFlag, ast.Str("F"),
				ast.Bin(5))),
	)
	got := passes.LowerConditions(tree, false)
	want := ast.Flow("f",
		ast.Condition(ast.KindIfFlag, ast.Str("F"), ast.Bin(5)),
	)
	requireTree(t, want, got)
}

func TestLowerConditionsLowersWhenRelationshipsSkipped(t *testing.T) {
	tree := ast.Flow("f",
		ast.Test(ast.Name("a"), ast.ID("t1")),
		ast.Condition(ast.KindIfPassed, ast.Str("t1"), ast.Log("x")),
	)
	got := passes.LowerConditions(tree, false)
	if got.Find(ast.KindIfPassed) != nil {
		t.Errorf("relationship condition survived lowering:\n%s", got)
	}
	if got.Find(ast.KindIfFlag) == nil {
		t.Errorf("no flag check produced:\n%s", got)
	}
}

func TestLowerConditionsPanicsOnPipelineBug(t *testing.T) {
	tree := ast.Flow("f",
		ast.Condition(ast.KindIfFailed, ast.Str("t1"), ast.Bin(5)),
	)
	defer func() {
		if recover() == nil {
			t.Error("surviving relationship condition after lowering must panic")
		}
	}()
	passes.LowerConditions(tree, true)
}
