package ast

// Factory functions for well-formed leaf and composite nodes. These are the
// only constructors the rest of the compiler uses, so every node shape in a
// tree is produced here or by a pass rebuilding an existing shape.
//
// Builders are pure: the same inputs always produce structurally equal
// output. They coerce, they do not validate - semantic checks belong to the
// validation passes.
//
// Nodes that pair a name with a scalar (attribute, meta, level, limit) carry
// the name as their value and the scalar as a single payload child.

// Flow builds the root of a flow tree: flow -> name -> body.
func Flow(name string, body ...*Node) *Node {
	children := make([]*Node, 0, len(body)+1)
	children = append(children, Name(name))
	children = append(children, body...)
	return New(KindFlow, children...)
}

// Name builds a canonical string name node.
func Name(s string) *Node { return NewValue(KindName, Str(s)) }

// ID builds an explicit identifier node.
func ID(s string) *Node { return NewValue(KindID, Str(s)) }

// Object builds a reference to a caller-supplied test instance.
func Object(name string) *Node { return NewValue(KindObject, Str(name)) }

// Number builds an integer leaf.
func Number(i int64) *Node { return NewValue(KindNumber, Int(i)) }

// Bin builds a hard bin assignment.
func Bin(n int64) *Node { return NewValue(KindBin, Int(n)) }

// SoftBin builds a softbin assignment.
func SoftBin(n int64) *Node { return NewValue(KindSoftBin, Int(n)) }

// Pattern builds a pattern reference.
func Pattern(name string) *Node { return NewValue(KindPattern, Str(name)) }

// Pin builds a pin reference.
func Pin(name string) *Node { return NewValue(KindPin, Str(name)) }

// Level builds a named level with an integer setting.
func Level(name string, value int64) *Node {
	return NewValue(KindLevel, Str(name), Number(value))
}

// Limit builds a test limit: rule names the comparison (e.g. "gte", "lte").
func Limit(rule string, value int64) *Node {
	return NewValue(KindLimit, Str(rule), Number(value))
}

// Attribute builds a named attribute carrying an arbitrary scalar.
func Attribute(name string, value Value) *Node {
	return NewValue(KindAttribute, Str(name), NewValue(KindObject, value))
}

// Meta builds a metadata entry.
func Meta(key string, value Value) *Node {
	return NewValue(KindMeta, Str(key), NewValue(KindObject, value))
}

// SetFlag builds a flag-set action.
func SetFlag(flag string) *Node { return NewValue(KindSetFlag, Str(flag)) }

// SetResult builds an explicit result override ("pass" or "fail").
func SetResult(result string, actions ...*Node) *Node {
	return NewValue(KindSetResult, Str(result), actions...)
}

// Continue builds a continue-on-fail marker.
func Continue() *Node { return New(KindContinue) }

// Log builds a datalog message.
func Log(msg string) *Node { return NewValue(KindLog, Str(msg)) }

// Render builds a raw program-text passthrough for the target renderer.
func Render(text string) *Node { return NewValue(KindRender, Str(text)) }

// Enable builds an enable-word set action.
func Enable(flag string) *Node { return NewValue(KindEnable, Str(flag)) }

// Disable builds an enable-word clear action.
func Disable(flag string) *Node { return NewValue(KindDisable, Str(flag)) }

// OnFail builds a fail-branch action list; children run in source order.
func OnFail(actions ...*Node) *Node { return New(KindOnFail, actions...) }

// OnPass builds a pass-branch action list; children run in source order.
func OnPass(actions ...*Node) *Node { return New(KindOnPass, actions...) }

// Group builds a named group: group -> name -> members.
func Group(name string, members ...*Node) *Node {
	children := make([]*Node, 0, len(members)+1)
	children = append(children, Name(name))
	children = append(children, members...)
	return New(KindGroup, children...)
}

// SubTest builds a nested sub-test under a parent test.
func SubTest(children ...*Node) *Node { return New(KindSubTest, children...) }

// Test builds a test node from pre-built parts (object, name, number, id,
// on_fail, on_pass, ...). The construction engine assembles the parts.
func Test(parts ...*Node) *Node { return New(KindTest, parts...) }

// Cz builds a characterization wrapper: the setup name plus the wrapped test.
func Cz(setup string, test *Node) *Node {
	return NewValue(KindCz, Str(setup), test)
}

// Flag builds a flag reference leaf.
func Flag(name string) *Node { return NewValue(KindFlag, Str(name)) }

// Volatile declares flags whose value may change mid-flow; optimization
// passes must not assume their stability.
func Volatile(flags ...string) *Node {
	children := make([]*Node, len(flags))
	for i, f := range flags {
		children[i] = Flag(f)
	}
	return New(KindVolatile, children...)
}

// Else builds the else branch of a condition node.
func Else(body ...*Node) *Node { return New(KindElse, body...) }

// Temp builds a transparent wrapper used by the construction engine; the
// PreCleaner splices its children into the parent.
func Temp(children ...*Node) *Node { return New(KindTemp, children...) }

// Condition wraps body in a condition node of the given kind. The guard is
// carried as the node value; the children are the guarded body. kind must be
// a condition kind.
func Condition(kind Kind, guard Value, body ...*Node) *Node {
	if !kind.IsCondition() {
		panic("ast: Condition called with non-condition kind " + kind.String())
	}
	return NewValue(kind, guard, body...)
}
