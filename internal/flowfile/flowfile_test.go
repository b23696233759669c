package flowfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/condition"
	"github.com/arkohler/atp/core/flow"
	"github.com/arkohler/atp/internal/flowfile"
)

func requireTree(t *testing.T, want, got *ast.Node) {
	t.Helper()
	require.True(t, got.Equal(want), "tree mismatch\nwant:\n%s\ngot:\n%s", want, got)
}

func TestParseFullFlow(t *testing.T) {
	got, err := flowfile.Parse([]byte(`
flow: wafer_sort
program: probe_a
statements:
  - volatile: [MODE]
  - test:
      name: vdd_min
      id: t_vdd
      number: 1010
      bin: 5
      softbin: 1005
      if_enabled: H_VMAX
      pins: [vdd, vss]
      levels:
        vdd: 3300
      limits:
        lte: 100
      meta:
        lot: A
        cold: true
      sub_tests: [seg_a, seg_b]
      on_fail:
        log: vdd_min failed
  - group:
      name: rf
      on_fail:
        bin: 9
      body:
        - test:
            name: s11
        - continue:
  - if_flag:
      value: T_VDD_FAILED
      body:
        - bin: 10
      else:
        - pass: 1
  - log: done
  - cz:
      test: leak
      setup: seeker
      id: cz1
  - set_flag:
      value: DONE
`))
	require.NoError(t, err)
	require.Equal(t, "wafer_sort", got.Name())
	require.Equal(t, "probe_a", got.Program())

	want := flow.New("wafer_sort", "probe_a")
	want.Volatile("MODE")
	want.Test("vdd_min", flow.TestOptions{
		Common: flow.Common{Conditions: []condition.Condition{
			{Kind: ast.KindIfEnabled, Values: []string{"H_VMAX"}},
		}},
		ID:      "t_vdd",
		Number:  1010,
		Bin:     5,
		SoftBin: 1005,
		Pins:    []string{"vdd", "vss"},
		Levels:  []*ast.Node{ast.Level("vdd", 3300)},
		Limits:  []*ast.Node{ast.Limit("lte", 100)},
		Meta: map[string]ast.Value{
			"lot": ast.Str("A"), "cold": ast.Bool(true),
		},
		SubTests: []*ast.Node{
			ast.SubTest(ast.Name("seg_a")),
			ast.SubTest(ast.Name("seg_b")),
		},
		OnFail: &flow.Actions{Log: "vdd_min failed"},
	})
	want.Group("rf", flow.GroupOptions{OnFail: &flow.Actions{Bin: 9}}, func(f *flow.Flow) {
		f.Test("s11", flow.TestOptions{})
		f.Continue(flow.Common{})
	})
	want.CondElse(condition.Condition{Kind: ast.KindIfFlag, Values: []string{"T_VDD_FAILED"}},
		func(f *flow.Flow) { f.Bin(10, flow.BinOptions{}) },
		func(f *flow.Flow) { f.Pass(1, flow.BinOptions{}) })
	want.Log("done", flow.Common{})
	want.Cz("leak", "seeker", flow.CzOptions{ID: "cz1"})
	want.SetFlag("DONE", flow.Common{})

	requireTree(t, want.Raw(), got.Raw())
}

func TestParseConditionsWrapInDocumentOrder(t *testing.T) {
	got, err := flowfile.Parse([]byte(`
flow: f
statements:
  - test:
      name: a
      if_job: cp1
      if_enabled: W
`))
	require.NoError(t, err)

	want := flow.New("f", "")
	want.Test("a", flow.TestOptions{Common: flow.Common{Conditions: []condition.Condition{
		{Kind: ast.KindIfJob, Values: []string{"cp1"}},
		{Kind: ast.KindIfEnabled, Values: []string{"W"}},
	}}})
	requireTree(t, want.Raw(), got.Raw())
}

func TestParseGroupAliasWrapsTest(t *testing.T) {
	// Inside a test mapping "group" is a condition alias, not a statement.
	got, err := flowfile.Parse([]byte(`
flow: f
statements:
  - test:
      name: a
      group: rf
`))
	require.NoError(t, err)

	want := flow.New("f", "")
	want.Test("a", flow.TestOptions{Common: flow.Common{Conditions: []condition.Condition{
		{Kind: ast.KindGroup, Values: []string{"rf"}},
	}}})
	requireTree(t, want.Raw(), got.Raw())
}

func TestParseContextCurrent(t *testing.T) {
	got, err := flowfile.Parse([]byte(`
flow: f
statements:
  - test:
      name: a
      if_enabled: W
  - log:
      value: after
      context: current
`))
	require.NoError(t, err)

	want := flow.New("f", "")
	want.Test("a", flow.TestOptions{Common: flow.Common{Conditions: []condition.Condition{
		{Kind: ast.KindIfEnabled, Values: []string{"W"}},
	}}})
	want.Log("after", flow.Common{Context: flow.ContextCurrent})
	requireTree(t, want.Raw(), got.Raw())
}

func TestParseUnknownStatementKey(t *testing.T) {
	_, err := flowfile.Parse([]byte(`
flow: f
statements:
  - tst:
      name: a
`))
	var unknown *flowfile.UnknownKeyError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "tst", unknown.Key)
	require.Equal(t, "test", unknown.Suggestion)
	require.NotZero(t, unknown.Line)
}

func TestParseUnknownTestKey(t *testing.T) {
	_, err := flowfile.Parse([]byte(`
flow: f
statements:
  - test:
      name: a
      descriptio: broken
`))
	var unknown *flowfile.UnknownKeyError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "test", unknown.Scope)
	require.Equal(t, "description", unknown.Suggestion)
}

func TestParseConflictingAliases(t *testing.T) {
	_, err := flowfile.Parse([]byte(`
flow: f
statements:
  - test:
      name: a
      if_enabled: W
      enabled: X
`))
	var conflict *condition.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, ast.KindIfEnabled, conflict.Canonical)
}

func TestParseElseOnNonNegatable(t *testing.T) {
	_, err := flowfile.Parse([]byte(`
flow: f
statements:
  - if_any_failed:
      values: [t1, t2]
      body:
        - bin: 10
      else:
        - log: fine
`))
	require.ErrorContains(t, err, "cannot carry an else branch")
}

func TestParseMissingFlowName(t *testing.T) {
	_, err := flowfile.Parse([]byte(`
program: p
statements: []
`))
	require.ErrorContains(t, err, "flow name missing")
}

func TestParseRejectsNonMappingStatement(t *testing.T) {
	_, err := flowfile.Parse([]byte(`
flow: f
statements:
  - just a string
`))
	require.ErrorContains(t, err, "single-key mapping")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
flow: f
statements:
  - test:
      name: a
`), 0o644))

	f, err := flowfile.Load(path)
	require.NoError(t, err)
	require.Equal(t, "f", f.Name())

	_, err = flowfile.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
