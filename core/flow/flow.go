// Package flow implements the construction engine that turns imperative
// flow-description calls into a properly nested tree.
//
// A Flow owns a LIFO stack of "open" nodes. Appending adds a child to the
// top frame (by replacing the frame with a copy, nodes being immutable);
// nesting constructs push a fresh frame, populate it through their body
// callback, then pop and fold it into the parent. Once construction
// finishes the stack collapses to a single rooted flow node.
package flow

import (
	"sort"

	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/condition"
	"github.com/arkohler/atp/core/invariant"
	"github.com/arkohler/atp/core/passes"
)

// Instance is the caller-supplied test object. The engine only performs
// attribute lookups on it; resolution of anything richer stays with the
// caller.
type Instance interface {
	TestName() string
}

// Numbered is optionally implemented by instances that carry a test number.
type Numbered interface {
	TestNumber() int64
}

// Flow builds one flow tree. Each Flow owns its own stack and tree; distinct
// flows share no state and may be built concurrently.
type Flow struct {
	name    string
	program string
	stack   []*ast.Node

	// Condition context of the last non-condition append, for ContextCurrent.
	lastCtx []condition.Condition
}

// New creates an empty flow. program is an opaque handle naming the test
// program the flow belongs to; the engine only carries it through.
func New(name, program string) *Flow {
	return &Flow{
		name:    name,
		program: program,
		stack:   []*ast.Node{ast.Flow(name)},
	}
}

// Rehydrate restores a construction engine around an existing tree, as the
// persistence adapter requires: the result's Raw() is the given root.
func Rehydrate(name, program string, root *ast.Node) *Flow {
	invariant.Precondition(root != nil && root.Kind() == ast.KindFlow,
		"rehydrate requires a flow root node")
	return &Flow{name: name, program: program, stack: []*ast.Node{root}}
}

// Name returns the flow's name.
func (f *Flow) Name() string { return f.name }

// Program returns the program handle the flow belongs to.
func (f *Flow) Program() string { return f.program }

// Raw returns the unoptimized tree. Every scope opened during construction
// must have been closed: an open frame here is a programmer error.
func (f *Flow) Raw() *ast.Node {
	invariant.Invariant(len(f.stack) == 1,
		"flow %q has %d open frames at extraction", f.name, len(f.stack))
	return f.stack[0]
}

// AST runs the selected validation and optimization pipeline over the raw
// tree and returns the result. The raw tree is never modified.
func (f *Flow) AST(opts passes.Options) (*ast.Node, error) {
	return passes.Run(f.Raw(), opts)
}

// Append adds node to the open frame and returns the updated frame. A
// non-condition append records the currently active condition context so a
// later ContextCurrent call can re-apply it.
func (f *Flow) Append(node *ast.Node) *ast.Node {
	if !node.IsCondition() {
		f.lastCtx = f.openConditions()
	}
	top := f.pop()
	top = top.Append(node)
	f.push(top)
	return top
}

// AppendTo pushes node as a new open frame, runs body (whose appends land in
// that frame), then pops and returns the populated frame. This is the
// nesting mechanism for groups, block conditions, and sub-tests.
func (f *Flow) AppendTo(node *ast.Node, body func(*Flow)) *ast.Node {
	depth := len(f.stack)
	f.push(node)
	if body != nil {
		body(f)
	}
	populated := f.pop()
	invariant.Invariant(len(f.stack) == depth,
		"flow %q: body left %d unclosed frames", f.name, len(f.stack)-depth)
	return populated
}

// WithConditions builds node, wraps it in the supplied conditions
// (outer-to-inner in supply order), and appends the outermost wrapper.
// ContextCurrent ignores the supplied conditions and re-applies the
// condition context recorded by the previous non-condition append.
func (f *Flow) WithConditions(opts Common, build func() *ast.Node) {
	node := build()

	conds := opts.Conditions
	if opts.Context == ContextCurrent {
		// Conditions already active as open frames must not be re-applied,
		// or the node would be double-guarded; drop that common prefix.
		conds = trimPrefix(f.lastCtx, f.openConditions())
	}

	wrapped := node
	for i := len(conds) - 1; i >= 0; i-- {
		wrapped = conds[i].Wrap(wrapped)
	}
	f.Append(wrapped)

	if !node.IsCondition() {
		f.lastCtx = append(f.openConditions(), conds...)
	}
}

// Cond opens a condition (or group) scope around body. This is the single
// dispatch point for every canonical condition kind; callers pass the kind
// explicitly instead of going through per-alias entry points.
func (f *Flow) Cond(c condition.Condition, body func(*Flow)) {
	f.Append(f.AppendTo(c.Wrap(), body))
}

// CondElse opens a condition scope with an else branch. The else body lands
// in a trailing else child of the condition node. Only conditions with a
// complement can carry an else: the row-based pipeline must be able to
// split the branch into a negated sibling.
func (f *Flow) CondElse(c condition.Condition, body, elseBody func(*Flow)) {
	_, negatable := condition.Negate(c.Kind)
	invariant.Precondition(negatable, "%s cannot carry an else branch", c.Kind)
	wrapper := f.AppendTo(c.Wrap(), body)
	wrapper = wrapper.Append(f.AppendTo(ast.Else(), elseBody))
	f.Append(wrapper)
}

// Test appends a test statement. object is the caller-supplied instance or
// a bare name string.
func (f *Flow) Test(object any, opts TestOptions) {
	f.WithConditions(opts.Common, func() *ast.Node {
		return f.buildTest(object, opts)
	})
}

// Group appends a named group populated by body.
func (f *Flow) Group(name string, opts GroupOptions, body func(*Flow)) {
	f.WithConditions(opts.Common, func() *ast.Node {
		g := f.AppendTo(ast.Group(name), body)
		if opts.ID != "" {
			g = g.Append(ast.ID(opts.ID))
		}
		if actions := opts.OnFail.nodes(); len(actions) > 0 {
			g = g.Append(ast.OnFail(actions...))
		}
		if actions := opts.OnPass.nodes(); len(actions) > 0 {
			g = g.Append(ast.OnPass(actions...))
		}
		return g
	})
}

// Bin appends a standalone fail-bin assignment (the flow hard-bins and
// fails at this point unless the enclosing conditions say otherwise).
func (f *Flow) Bin(number int64, opts BinOptions) {
	f.WithConditions(opts.Common, func() *ast.Node {
		bin := ast.Bin(number)
		if opts.SoftBin != 0 {
			bin = bin.Append(ast.SoftBin(opts.SoftBin))
		}
		return ast.SetResult("fail", bin)
	})
}

// Pass appends a standalone pass-bin assignment.
func (f *Flow) Pass(number int64, opts BinOptions) {
	f.WithConditions(opts.Common, func() *ast.Node {
		bin := ast.Bin(number)
		if opts.SoftBin != 0 {
			bin = bin.Append(ast.SoftBin(opts.SoftBin))
		}
		return ast.SetResult("pass", bin)
	})
}

// Log appends a datalog message.
func (f *Flow) Log(msg string, opts Common) {
	f.WithConditions(opts, func() *ast.Node { return ast.Log(msg) })
}

// Enable appends an enable-word set action.
func (f *Flow) Enable(word string, opts Common) {
	f.WithConditions(opts, func() *ast.Node { return ast.Enable(word) })
}

// Disable appends an enable-word clear action.
func (f *Flow) Disable(word string, opts Common) {
	f.WithConditions(opts, func() *ast.Node { return ast.Disable(word) })
}

// Render appends raw program text passed through to the target renderer.
func (f *Flow) Render(text string, opts Common) {
	f.WithConditions(opts, func() *ast.Node { return ast.Render(text) })
}

// Continue appends a continue-on-fail marker.
func (f *Flow) Continue(opts Common) {
	f.WithConditions(opts, func() *ast.Node { return ast.Continue() })
}

// SetFlag appends a flag-set action.
func (f *Flow) SetFlag(flag string, opts Common) {
	f.WithConditions(opts, func() *ast.Node { return ast.SetFlag(flag) })
}

// SetResult appends a bare result override ("pass" or "fail") with no bin.
func (f *Flow) SetResult(result string, opts Common) {
	f.WithConditions(opts, func() *ast.Node { return ast.SetResult(result) })
}

// Volatile declares flags whose value may change mid-flow. Declarations
// accumulate at the top of the flow body, ahead of any statement.
func (f *Flow) Volatile(flags ...string) {
	invariant.Precondition(len(flags) > 0, "volatile requires at least one flag")
	f.Append(ast.Volatile(flags...))
}

// Cz appends a characterization run of a test under the named cz setup.
func (f *Flow) Cz(object any, setup string, opts CzOptions) {
	f.WithConditions(opts.Common, func() *ast.Node {
		test := f.buildTest(object, TestOptions{ID: opts.ID})
		return ast.Cz(setup, test)
	})
}

func (f *Flow) buildTest(object any, opts TestOptions) *ast.Node {
	name, number := resolveInstance(object)
	if opts.Name != "" {
		name = opts.Name
	}
	if opts.Number != 0 {
		number = opts.Number
	}

	parts := []*ast.Node{ast.Object(name)}
	parts = append(parts, ast.Name(name))
	if number != 0 {
		parts = append(parts, ast.Number(number))
	}
	if opts.ID != "" {
		parts = append(parts, ast.ID(opts.ID))
	}
	if opts.Description != "" {
		parts = append(parts, ast.Attribute("description", ast.Str(opts.Description)))
	}
	for _, pin := range opts.Pins {
		parts = append(parts, ast.Pin(pin))
	}
	for _, pat := range opts.Patterns {
		parts = append(parts, ast.Pattern(pat))
	}
	parts = append(parts, opts.Levels...)
	parts = append(parts, opts.Limits...)
	for _, key := range sortedKeys(opts.Meta) {
		parts = append(parts, ast.Meta(key, opts.Meta[key]))
	}
	parts = append(parts, opts.SubTests...)

	onFail := opts.OnFail.nodes()
	if opts.Bin != 0 || opts.SoftBin != 0 {
		// bin/softbin shortcuts are sugar for the fail branch
		shortcut := &Actions{Bin: opts.Bin, SoftBin: opts.SoftBin}
		onFail = append(shortcut.nodes(), onFail...)
	}
	if opts.Continue {
		onFail = append(onFail, ast.Continue())
	}
	if len(onFail) > 0 {
		parts = append(parts, ast.OnFail(onFail...))
	}
	if onPass := opts.OnPass.nodes(); len(onPass) > 0 {
		parts = append(parts, ast.OnPass(onPass...))
	}

	return ast.Test(parts...)
}

// resolveInstance performs the name/number attribute lookup on the caller's
// test object. Anything other than a string or Instance is a caller bug.
func resolveInstance(object any) (string, int64) {
	switch obj := object.(type) {
	case string:
		return obj, 0
	case Instance:
		name := obj.TestName()
		if numbered, ok := obj.(Numbered); ok {
			return name, numbered.TestNumber()
		}
		return name, 0
	default:
		invariant.Unreachable("test object must be a string or flow.Instance, got %T", object)
		return "", 0
	}
}

func (f *Flow) push(n *ast.Node) { f.stack = append(f.stack, n) }

func (f *Flow) pop() *ast.Node {
	invariant.Invariant(len(f.stack) > 0, "flow %q: pop on empty stack", f.name)
	n := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return n
}

// openConditions collects the condition wrappers among the currently open
// frames, outermost first.
func (f *Flow) openConditions() []condition.Condition {
	var out []condition.Condition
	for _, frame := range f.stack {
		if frame.IsCondition() {
			out = append(out, condition.Condition{
				Kind:   frame.Kind(),
				Values: frame.Value().List(),
			})
		}
	}
	return out
}

// trimPrefix drops from ctx the leading conditions still active in open, so
// ContextCurrent never re-applies a guard the node is already nested under.
func trimPrefix(ctx, open []condition.Condition) []condition.Condition {
	i := 0
	for i < len(ctx) && i < len(open) &&
		ctx[i].Kind == open[i].Kind && sameValues(ctx[i].Values, open[i].Values) {
		i++
	}
	return ctx[i:]
}

func sameValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]ast.Value) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
