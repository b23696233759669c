package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/condition"
	"github.com/arkohler/atp/core/flow"
)

func requireTree(t *testing.T, want, got *ast.Node) {
	t.Helper()
	require.True(t, want.Equal(got), "tree mismatch\nwant:\n%s\ngot:\n%s", want, got)
}

type instance struct {
	name   string
	number int64
}

func (i instance) TestName() string  { return i.name }
func (i instance) TestNumber() int64 { return i.number }

func TestSimpleTest(t *testing.T) {
	f := flow.New("wafer_sort", "probe_a")
	f.Test("vdd_min", flow.TestOptions{Number: 1010, Bin: 5, SoftBin: 505})

	want := ast.Flow("wafer_sort",
		ast.Test(
			ast.Object("vdd_min"),
			ast.Name("vdd_min"),
			ast.Number(1010),
			ast.OnFail(ast.Bin(5).Append(ast.SoftBin(505))),
		),
	)
	requireTree(t, want, f.Raw())
	assert.Equal(t, "wafer_sort", f.Name())
	assert.Equal(t, "probe_a", f.Program())
}

func TestInstanceResolution(t *testing.T) {
	f := flow.New("f", "")
	f.Test(instance{name: "leak", number: 2000}, flow.TestOptions{})
	f.Test(instance{name: "idd", number: 2010}, flow.TestOptions{Name: "idd_retest", Number: 9000})

	want := ast.Flow("f",
		ast.Test(ast.Object("leak"), ast.Name("leak"), ast.Number(2000)),
		ast.Test(ast.Object("idd_retest"), ast.Name("idd_retest"), ast.Number(9000)),
	)
	requireTree(t, want, f.Raw())
}

func TestTestParts(t *testing.T) {
	f := flow.New("f", "")
	f.Test("big", flow.TestOptions{
		ID:          "t_big",
		Description: "full surface",
		Continue:    true,
		Pins:        []string{"vdd", "vss"},
		Patterns:    []string{"scan1"},
		Levels:      []*ast.Node{ast.Level("vdd", 3300)},
		Limits:      []*ast.Node{ast.Limit("lte", 100)},
		Meta:        map[string]ast.Value{"lot": ast.Str("A1"), "cold": ast.Bool(true)},
		OnPass:      &flow.Actions{SetFlag: "BIG_OK"},
	})

	want := ast.Flow("f",
		ast.Test(
			ast.Object("big"),
			ast.Name("big"),
			ast.ID("t_big"),
			ast.Attribute("description", ast.Str("full surface")),
			ast.Pin("vdd"),
			ast.Pin("vss"),
			ast.Pattern("scan1"),
			ast.Level("vdd", 3300),
			ast.Limit("lte", 100),
			ast.Meta("cold", ast.Bool(true)), // meta sorted by key
			ast.Meta("lot", ast.Str("A1")),
			ast.OnFail(ast.Continue()),
			ast.OnPass(ast.SetFlag("BIG_OK")),
		),
	)
	requireTree(t, want, f.Raw())
}

func TestConditionsWrapOuterToInner(t *testing.T) {
	f := flow.New("f", "")
	f.Log("msg", flow.Common{Conditions: []condition.Condition{
		{Kind: ast.KindIfJob, Values: []string{"cp1"}},
		{Kind: ast.KindIfEnabled, Values: []string{"WORD"}},
	}})

	want := ast.Flow("f",
		ast.Condition(ast.KindIfJob, ast.Str("cp1"),
			ast.Condition(ast.KindIfEnabled, ast.Str("WORD"),
				ast.Log("msg"))),
	)
	requireTree(t, want, f.Raw())
}

func TestCondNesting(t *testing.T) {
	f := flow.New("f", "")
	f.Cond(condition.Condition{Kind: ast.KindIfEnabled, Values: []string{"A"}}, func(f *flow.Flow) {
		f.Log("inside", flow.Common{})
		f.Cond(condition.Condition{Kind: ast.KindIfFlag, Values: []string{"F"}}, func(f *flow.Flow) {
			f.Bin(7, flow.BinOptions{})
		})
	})

	want := ast.Flow("f",
		ast.Condition(ast.KindIfEnabled, ast.Str("A"),
			ast.Log("inside"),
			ast.Condition(ast.KindIfFlag, ast.Str("F"),
				ast.SetResult("fail", ast.Bin(7)))),
	)
	requireTree(t, want, f.Raw())
}

func TestCondElse(t *testing.T) {
	f := flow.New("f", "")
	f.CondElse(condition.Condition{Kind: ast.KindIfEnabled, Values: []string{"A"}},
		func(f *flow.Flow) { f.Log("then", flow.Common{}) },
		func(f *flow.Flow) { f.Log("else", flow.Common{}) },
	)

	want := ast.Flow("f",
		ast.Condition(ast.KindIfEnabled, ast.Str("A"),
			ast.Log("then"),
			ast.Else(ast.Log("else"))),
	)
	requireTree(t, want, f.Raw())
}

func TestCondElseRejectsNonNegatable(t *testing.T) {
	f := flow.New("f", "")
	assert.Panics(t, func() {
		f.CondElse(condition.Condition{Kind: ast.KindIfAnyFailed, Values: []string{"t1", "t2"}},
			func(f *flow.Flow) {}, func(f *flow.Flow) {})
	})
}

func TestContextCurrent(t *testing.T) {
	f := flow.New("f", "")
	f.Test("leak", flow.TestOptions{Common: flow.Common{Conditions: []condition.Condition{
		{Kind: ast.KindIfEnabled, Values: []string{"WORD"}},
	}}})
	// The bin re-applies the previous statement's condition context.
	f.Bin(10, flow.BinOptions{Common: flow.Common{Context: flow.ContextCurrent}})

	want := ast.Flow("f",
		ast.Condition(ast.KindIfEnabled, ast.Str("WORD"),
			ast.Test(ast.Object("leak"), ast.Name("leak"))),
		ast.Condition(ast.KindIfEnabled, ast.Str("WORD"),
			ast.SetResult("fail", ast.Bin(10))),
	)
	requireTree(t, want, f.Raw())
}

func TestContextCurrentInsideOpenScope(t *testing.T) {
	// Inside an open condition frame the shared prefix must not be
	// re-applied, or the statement would be double-guarded.
	f := flow.New("f", "")
	f.Cond(condition.Condition{Kind: ast.KindIfEnabled, Values: []string{"A"}}, func(f *flow.Flow) {
		f.Test("leak", flow.TestOptions{})
		f.Bin(10, flow.BinOptions{Common: flow.Common{Context: flow.ContextCurrent}})
	})

	want := ast.Flow("f",
		ast.Condition(ast.KindIfEnabled, ast.Str("A"),
			ast.Test(ast.Object("leak"), ast.Name("leak")),
			ast.SetResult("fail", ast.Bin(10))),
	)
	requireTree(t, want, f.Raw())
}

func TestGroup(t *testing.T) {
	f := flow.New("f", "")
	f.Group("rf", flow.GroupOptions{ID: "g_rf", OnFail: &flow.Actions{Bin: 9}}, func(f *flow.Flow) {
		f.Test("s11", flow.TestOptions{})
	})

	want := ast.Flow("f",
		ast.Group("rf",
			ast.Test(ast.Object("s11"), ast.Name("s11")),
		).Append(ast.ID("g_rf"), ast.OnFail(ast.Bin(9))),
	)
	requireTree(t, want, f.Raw())
}

func TestPassAndBin(t *testing.T) {
	f := flow.New("f", "")
	f.Pass(1, flow.BinOptions{SoftBin: 100})
	f.Bin(8, flow.BinOptions{})

	want := ast.Flow("f",
		ast.SetResult("pass", ast.Bin(1).Append(ast.SoftBin(100))),
		ast.SetResult("fail", ast.Bin(8)),
	)
	requireTree(t, want, f.Raw())
}

func TestCz(t *testing.T) {
	f := flow.New("f", "")
	f.Cz("leak", "quick_cz", flow.CzOptions{ID: "cz1"})

	want := ast.Flow("f",
		ast.Cz("quick_cz",
			ast.Test(ast.Object("leak"), ast.Name("leak"), ast.ID("cz1"))),
	)
	requireTree(t, want, f.Raw())
}

func TestVolatileRequiresFlags(t *testing.T) {
	f := flow.New("f", "")
	f.Volatile("A", "B")
	requireTree(t, ast.Flow("f", ast.Volatile("A", "B")), f.Raw())

	assert.Panics(t, func() { f.Volatile() })
}

func TestRehydrateRoundTrip(t *testing.T) {
	f := flow.New("f", "prog")
	f.Test("leak", flow.TestOptions{})
	root := f.Raw()

	r := flow.Rehydrate("f", "prog", root)
	requireTree(t, root, r.Raw())

	assert.Panics(t, func() { flow.Rehydrate("f", "", ast.Log("not a flow")) })
}

func TestDistinctFlowsShareNoState(t *testing.T) {
	a := flow.New("a", "")
	b := flow.New("b", "")
	a.Test("t1", flow.TestOptions{})
	b.Test("t2", flow.TestOptions{})

	require.Len(t, a.Raw().FindAll(ast.KindTest), 1)
	require.Len(t, b.Raw().FindAll(ast.KindTest), 1)
	assert.Equal(t, "t1", a.Raw().Find(ast.KindTest).Find(ast.KindName).Value().Str)
	assert.Equal(t, "t2", b.Raw().Find(ast.KindTest).Find(ast.KindName).Value().Str)
}
