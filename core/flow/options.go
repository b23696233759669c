package flow

import (
	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/condition"
)

// Context selects how a new statement relates to the conditions applied to
// the statement before it.
type Context uint8

const (
	// ContextNone applies only the conditions supplied on this call.
	ContextNone Context = iota

	// ContextCurrent re-applies the exact condition context of the previous
	// non-condition append, instead of the conditions supplied on this call.
	ContextCurrent
)

// Common carries the options every flow operation recognizes.
type Common struct {
	Conditions []condition.Condition
	Context    Context
}

// Actions describes the body of an on_fail or on_pass branch. The fixed
// fields cover the actions the targets execute inline; Custom carries any
// additional pre-built action nodes in source order after them.
type Actions struct {
	Bin       int64
	SoftBin   int64
	SetFlag   string
	SetResult string
	Log       string
	Render    string
	Continue  bool
	Custom    []*ast.Node
}

// nodes expands the action set into tree nodes in a fixed order: result
// override, bin assignment, flag set, log, render, continue, then customs.
func (a *Actions) nodes() []*ast.Node {
	if a == nil {
		return nil
	}
	var out []*ast.Node
	if a.SetResult != "" {
		out = append(out, ast.SetResult(a.SetResult))
	}
	if a.Bin != 0 {
		bin := ast.Bin(a.Bin)
		if a.SoftBin != 0 {
			bin = bin.Append(ast.SoftBin(a.SoftBin))
		}
		out = append(out, bin)
	} else if a.SoftBin != 0 {
		out = append(out, ast.SoftBin(a.SoftBin))
	}
	if a.SetFlag != "" {
		out = append(out, ast.SetFlag(a.SetFlag))
	}
	if a.Log != "" {
		out = append(out, ast.Log(a.Log))
	}
	if a.Render != "" {
		out = append(out, ast.Render(a.Render))
	}
	if a.Continue {
		out = append(out, ast.Continue())
	}
	out = append(out, a.Custom...)
	return out
}

// TestOptions lists every option a test call recognizes. Unknown keys do
// not exist at this level: open-keyed bundles survive only at the flowfile
// boundary, which resolves them before calling in.
type TestOptions struct {
	Common

	ID          string
	Name        string // overrides the instance's own name
	Number      int64  // 0 means take the instance's number, if it has one
	Description string

	// Shortcuts for the common single-action branches.
	Bin      int64
	SoftBin  int64
	Continue bool

	OnFail *Actions
	OnPass *Actions

	Pins     []string
	Patterns []string
	Levels   []*ast.Node // built with ast.Level
	Limits   []*ast.Node // built with ast.Limit
	Meta     map[string]ast.Value
	SubTests []*ast.Node
}

// BinOptions lists the options of a standalone bin or pass call.
type BinOptions struct {
	Common

	SoftBin     int64
	Description string
}

// GroupOptions lists the options of a group call.
type GroupOptions struct {
	Common

	ID     string
	OnFail *Actions
	OnPass *Actions
}

// CzOptions lists the options of a characterization (cz) call.
type CzOptions struct {
	Common

	ID string
}
