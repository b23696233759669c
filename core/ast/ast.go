// Package ast defines the immutable tree representation of a test program
// flow. Every other component of the compiler - the construction engine,
// the validation passes, and the optimization pipelines - operates on these
// nodes and never mutates them in place: a structural change always produces
// a new node.
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the grammar construct a node represents.
// The set is closed: there is no user-extensible node vocabulary.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindFlow
	KindName
	KindTest
	KindObject
	KindNumber
	KindID
	KindLevel
	KindLimit
	KindPin
	KindPattern
	KindMeta
	KindAttribute
	KindSubTest
	KindOnFail
	KindOnPass
	KindGroup
	KindLog
	KindEnable
	KindDisable
	KindRender
	KindContinue
	KindSetFlag
	KindSetResult
	KindBin
	KindSoftBin
	KindCz
	KindVolatile
	KindFlag
	KindElse
	KindTemp

	// Condition kinds gate execution of their children on a guard value.
	KindIfEnabled
	KindUnlessEnabled
	KindIfFailed
	KindIfPassed
	KindIfAnyFailed
	KindIfAllFailed
	KindIfAnyPassed
	KindIfAllPassed
	KindIfRan
	KindUnlessRan
	KindIfJob
	KindUnlessJob
	KindIfFlag
	KindUnlessFlag
)

var kindNames = map[Kind]string{
	KindInvalid:       "invalid",
	KindFlow:          "flow",
	KindName:          "name",
	KindTest:          "test",
	KindObject:        "object",
	KindNumber:        "number",
	KindID:            "id",
	KindLevel:         "level",
	KindLimit:         "limit",
	KindPin:           "pin",
	KindPattern:       "pattern",
	KindMeta:          "meta",
	KindAttribute:     "attribute",
	KindSubTest:       "sub_test",
	KindOnFail:        "on_fail",
	KindOnPass:        "on_pass",
	KindGroup:         "group",
	KindLog:           "log",
	KindEnable:        "enable",
	KindDisable:       "disable",
	KindRender:        "render",
	KindContinue:      "continue",
	KindSetFlag:       "set_flag",
	KindSetResult:     "set_result",
	KindBin:           "bin",
	KindSoftBin:       "softbin",
	KindCz:            "cz",
	KindVolatile:      "volatile",
	KindFlag:          "flag",
	KindElse:          "else",
	KindTemp:          "temp",
	KindIfEnabled:     "if_enabled",
	KindUnlessEnabled: "unless_enabled",
	KindIfFailed:      "if_failed",
	KindIfPassed:      "if_passed",
	KindIfAnyFailed:   "if_any_failed",
	KindIfAllFailed:   "if_all_failed",
	KindIfAnyPassed:   "if_any_passed",
	KindIfAllPassed:   "if_all_passed",
	KindIfRan:         "if_ran",
	KindUnlessRan:     "unless_ran",
	KindIfJob:         "if_job",
	KindUnlessJob:     "unless_job",
	KindIfFlag:        "if_flag",
	KindUnlessFlag:    "unless_flag",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// KindFromName resolves the wire/display name of a kind back to the enum.
// Returns KindInvalid for unknown names.
func KindFromName(name string) Kind {
	return kindsByName[name]
}

// IsCondition reports whether k is one of the condition kinds.
func (k Kind) IsCondition() bool {
	return k >= KindIfEnabled && k <= KindUnlessFlag
}

// ValueKind identifies which field of a Value is valid.
type ValueKind uint8

const (
	ValueNone    ValueKind = iota // No payload
	ValueString                   // Str field valid
	ValueInt                      // Int field valid
	ValueBool                     // Bool field valid
	ValueStrings                  // Strs field valid (multi-reference guards)
)

// Value is the scalar payload of a leaf-like node. It is a union type:
// only the field selected by Kind is meaningful.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Bool bool
	Strs []string
}

// NoValue is the zero payload carried by purely structural nodes.
var NoValue = Value{}

// Str returns a string payload.
func Str(s string) Value { return Value{Kind: ValueString, Str: s} }

// Int returns an integer payload.
func Int(i int64) Value { return Value{Kind: ValueInt, Int: i} }

// Bool returns a boolean payload.
func Bool(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// Strs returns a string-list payload. The slice is copied so the payload
// cannot alias caller-owned storage.
func Strs(ss []string) Value {
	cp := make([]string, len(ss))
	copy(cp, ss)
	return Value{Kind: ValueStrings, Strs: cp}
}

// Equal reports value equality. String lists compare element-wise in order.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueNone:
		return true
	case ValueString:
		return v.Str == o.Str
	case ValueInt:
		return v.Int == o.Int
	case ValueBool:
		return v.Bool == o.Bool
	case ValueStrings:
		if len(v.Strs) != len(o.Strs) {
			return false
		}
		for i := range v.Strs {
			if v.Strs[i] != o.Strs[i] {
				return false
			}
		}
		return true
	}
	return false
}

// List returns the payload as a string slice: a single string becomes a
// one-element list, a string list is returned as-is. Other kinds are empty.
func (v Value) List() []string {
	switch v.Kind {
	case ValueString:
		return []string{v.Str}
	case ValueStrings:
		return v.Strs
	}
	return nil
}

func (v Value) String() string {
	switch v.Kind {
	case ValueNone:
		return ""
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueStrings:
		quoted := make([]string, len(v.Strs))
		for i, s := range v.Strs {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	}
	return ""
}

// Node is a single tree node: a kind tag, an optional scalar payload, and an
// ordered child list. Child order is semantically significant (an on_fail
// node's children run in source order; a condition node's children are the
// guarded body, with an optional trailing else branch).
//
// Nodes are immutable. WithChildren and WithValue return new nodes; the
// receiver is never modified. Children never reference parents, so ownership
// is strictly top-down and trees from different flows never share state.
type Node struct {
	kind     Kind
	value    Value
	children []*Node
}

// New constructs a node with no scalar payload.
func New(kind Kind, children ...*Node) *Node {
	return &Node{kind: kind, children: children}
}

// NewValue constructs a node carrying a scalar payload.
func NewValue(kind Kind, value Value, children ...*Node) *Node {
	return &Node{kind: kind, value: value, children: children}
}

// Kind returns the node's kind tag.
func (n *Node) Kind() Kind { return n.kind }

// Value returns the node's scalar payload (NoValue for structural nodes).
func (n *Node) Value() Value { return n.value }

// Children returns the child list. The returned slice is owned by the node
// and must not be mutated; build a new node via WithChildren instead.
func (n *Node) Children() []*Node { return n.children }

// NumChildren returns the number of direct children.
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the i-th direct child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// WithChildren returns a new node of the same kind and value with the given
// child list.
func (n *Node) WithChildren(children ...*Node) *Node {
	return &Node{kind: n.kind, value: n.value, children: children}
}

// WithValue returns a new node of the same kind and children with a
// replaced payload.
func (n *Node) WithValue(v Value) *Node {
	return &Node{kind: n.kind, value: v, children: n.children}
}

// Append returns a new node with extra children appended.
func (n *Node) Append(children ...*Node) *Node {
	merged := make([]*Node, 0, len(n.children)+len(children))
	merged = append(merged, n.children...)
	merged = append(merged, children...)
	return n.WithChildren(merged...)
}

// Equal reports structural equality: kind, value, and children compare
// recursively. Two independently built trees from the same calls are equal.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.kind != o.kind || !n.value.Equal(o.value) {
		return false
	}
	if len(n.children) != len(o.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// IsCondition reports whether the node is a condition wrapper.
func (n *Node) IsCondition() bool { return n.kind.IsCondition() }

// Find returns the first direct child of the given kind, or nil.
func (n *Node) Find(kind Kind) *Node {
	for _, c := range n.children {
		if c.kind == kind {
			return c
		}
	}
	return nil
}

// FindAll returns every direct child of the given kind, in order.
func (n *Node) FindAll(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Without returns a new node whose direct children of the given kinds are
// removed. Returns the receiver unchanged if nothing matched.
func (n *Node) Without(kinds ...Kind) *Node {
	drop := func(k Kind) bool {
		for _, d := range kinds {
			if k == d {
				return true
			}
		}
		return false
	}
	kept := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		if !drop(c.kind) {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(n.children) {
		return n
	}
	return n.WithChildren(kept...)
}

// ID returns the value of the node's direct id child, or "" if it has none.
func (n *Node) ID() string {
	if id := n.Find(KindID); id != nil {
		return id.value.Str
	}
	return ""
}

// Walk visits n and its descendants in depth-first preorder. Returning false
// from visit skips the node's children.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.children {
		Walk(c, visit)
	}
}

// Rewrite rebuilds the tree bottom-up. fn maps each descendant (already
// rewritten below) to its replacement sequence: one node keeps it, several
// splice siblings in, an empty slice deletes it. fn is not applied to the
// root itself. The input tree is never modified.
func (n *Node) Rewrite(fn func(*Node) []*Node) *Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, fn(c.Rewrite(fn))...)
	}
	return n.WithChildren(out...)
}

// Transform rebuilds the tree bottom-up with a one-for-one mapping. fn is
// applied to every node including the root, after its children have been
// transformed.
func (n *Node) Transform(fn func(*Node) *Node) *Node {
	out := make([]*Node, len(n.children))
	for i, c := range n.children {
		out[i] = c.Transform(fn)
	}
	return fn(n.WithChildren(out...))
}

// String renders the tree as an indented s-expression. The form is stable
// and used in tests and diagnostics.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b, 0)
	return b.String()
}

func (n *Node) write(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteByte('(')
	b.WriteString(n.kind.String())
	if n.value.Kind != ValueNone {
		b.WriteByte(' ')
		b.WriteString(n.value.String())
	}
	for _, c := range n.children {
		b.WriteByte('\n')
		c.write(b, depth+1)
	}
	b.WriteByte(')')
}

// Dump renders the tree with box-drawing connectors for terminal display.
func (n *Node) Dump() string {
	var b strings.Builder
	b.WriteString(n.label())
	b.WriteByte('\n')
	for i, c := range n.children {
		c.dump(&b, "", i == len(n.children)-1)
	}
	return b.String()
}

func (n *Node) label() string {
	if n.value.Kind != ValueNone {
		return n.kind.String() + " " + n.value.String()
	}
	return n.kind.String()
}

func (n *Node) dump(b *strings.Builder, prefix string, last bool) {
	connector, nextPrefix := "├─ ", prefix+"│  "
	if last {
		connector, nextPrefix = "└─ ", prefix+"   "
	}
	b.WriteString(prefix)
	b.WriteString(connector)
	b.WriteString(n.label())
	b.WriteByte('\n')
	for i, c := range n.children {
		c.dump(b, nextPrefix, i == len(n.children)-1)
	}
}
