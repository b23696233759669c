package flowfile

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/arkohler/atp/core/ast"
	"github.com/arkohler/atp/core/condition"
	"github.com/arkohler/atp/core/flow"
)

// buildStatements replays a statement sequence onto f. Each statement is a
// single-key mapping: the key names the operation (or a condition alias for
// a conditional block), the value carries its options.
func buildStatements(f *flow.Flow, seq *yaml.Node) error {
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: statements must be a sequence", seq.Line)
	}
	for _, item := range seq.Content {
		if err := buildStatement(f, item); err != nil {
			return err
		}
	}
	return nil
}

func buildStatement(f *flow.Flow, item *yaml.Node) error {
	if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
		return fmt.Errorf("line %d: statement must be a single-key mapping", item.Line)
	}
	key, val := item.Content[0], item.Content[1]

	// Operation keys win over condition aliases: "group" is both, and a
	// group statement is the more specific reading.
	switch key.Value {
	case "test":
		return buildTest(f, val)
	case "cz":
		return buildCz(f, val)
	case "group":
		return buildGroup(f, val)
	case "bin":
		return buildBin(f, val, f.Bin)
	case "pass":
		return buildBin(f, val, f.Pass)
	case "log":
		return buildMessage(f, val, f.Log)
	case "render":
		return buildMessage(f, val, f.Render)
	case "enable":
		return buildMessage(f, val, f.Enable)
	case "disable":
		return buildMessage(f, val, f.Disable)
	case "set_flag":
		return buildMessage(f, val, f.SetFlag)
	case "set_result":
		return buildMessage(f, val, f.SetResult)
	case "continue":
		return buildContinue(f, val)
	case "volatile":
		flags, err := stringList(val)
		if err != nil {
			return decodeError(key.Value, val, err)
		}
		f.Volatile(flags...)
		return nil
	}
	if condition.IsKey(key.Value) {
		return buildConditionBlock(f, key, val)
	}
	return unknownKey("statement", key, statementKeys())
}

func statementKeys() []string {
	keys := []string{
		"test", "cz", "group", "bin", "pass", "log", "render",
		"enable", "disable", "set_flag", "set_result", "continue", "volatile",
	}
	return append(keys, condition.Keys()...)
}

// buildConditionBlock handles a statement keyed by a condition alias:
//
//	- if_enabled:
//	    value: H_VMAX
//	    body:
//	      - test: {name: vmax}
//	    else:
//	      - bin: 10
func buildConditionBlock(f *flow.Flow, key, val *yaml.Node) error {
	var guard any
	var body, els *yaml.Node
	for _, kv := range mappingPairs(val) {
		k, v := kv[0], kv[1]
		switch k.Value {
		case "value", "values":
			g, err := scalarOrList(v)
			if err != nil {
				return decodeError(k.Value, v, err)
			}
			guard = g
		case "body":
			body = v
		case "else":
			els = v
		default:
			return unknownKey(key.Value, k, []string{"value", "values", "body", "else"})
		}
	}
	if val.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s block must be a mapping", val.Line, key.Value)
	}
	if guard == nil {
		return fmt.Errorf("line %d: %s block has no value", val.Line, key.Value)
	}
	if body == nil {
		return fmt.Errorf("line %d: %s block has no body", val.Line, key.Value)
	}

	conds, err := condition.Extract([]condition.Raw{{Key: key.Value, Value: guard}})
	if err != nil {
		return fmt.Errorf("line %d: %w", key.Line, err)
	}
	c := conds[0]

	if els == nil {
		var bodyErr error
		f.Cond(c, func(f *flow.Flow) {
			bodyErr = buildStatements(f, body)
		})
		return bodyErr
	}

	if _, ok := condition.Negate(c.Kind); !ok {
		return fmt.Errorf("line %d: %s cannot carry an else branch", key.Line, key.Value)
	}
	var bodyErr error
	f.CondElse(c,
		func(f *flow.Flow) {
			if err := buildStatements(f, body); err != nil && bodyErr == nil {
				bodyErr = err
			}
		},
		func(f *flow.Flow) {
			if err := buildStatements(f, els); err != nil && bodyErr == nil {
				bodyErr = err
			}
		})
	return bodyErr
}

func buildTest(f *flow.Flow, val *yaml.Node) error {
	var opts flow.TestOptions
	var name string
	var raw []condition.Raw

	for _, kv := range mappingPairs(val) {
		k, v := kv[0], kv[1]
		if condition.IsKey(k.Value) {
			g, err := scalarOrList(v)
			if err != nil {
				return decodeError(k.Value, v, err)
			}
			raw = append(raw, condition.Raw{Key: k.Value, Value: g})
			continue
		}
		var err error
		switch k.Value {
		case "name":
			err = v.Decode(&name)
		case "id":
			err = v.Decode(&opts.ID)
		case "number":
			err = v.Decode(&opts.Number)
		case "description":
			err = v.Decode(&opts.Description)
		case "bin":
			err = v.Decode(&opts.Bin)
		case "softbin":
			err = v.Decode(&opts.SoftBin)
		case "continue":
			err = v.Decode(&opts.Continue)
		case "pins":
			opts.Pins, err = stringList(v)
		case "patterns":
			opts.Patterns, err = stringList(v)
		case "levels":
			opts.Levels, err = pairNodes(v, ast.Level)
		case "limits":
			opts.Limits, err = pairNodes(v, ast.Limit)
		case "meta":
			opts.Meta, err = metaValues(v)
		case "sub_tests":
			opts.SubTests, err = subTests(v)
		case "on_fail":
			opts.OnFail, err = actions(v)
		case "on_pass":
			opts.OnPass, err = actions(v)
		case "context":
			opts.Context, err = contextValue(v)
		default:
			return unknownKey("test", k, testKeys())
		}
		if err != nil {
			return decodeError(k.Value, v, err)
		}
	}
	if name == "" {
		return fmt.Errorf("line %d: test has no name", val.Line)
	}

	conds, err := condition.Extract(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", val.Line, err)
	}
	opts.Conditions = conds
	f.Test(name, opts)
	return nil
}

func testKeys() []string {
	keys := []string{
		"name", "id", "number", "description", "bin", "softbin", "continue",
		"pins", "patterns", "levels", "limits", "meta", "sub_tests",
		"on_fail", "on_pass", "context",
	}
	return append(keys, condition.Keys()...)
}

func buildCz(f *flow.Flow, val *yaml.Node) error {
	var opts flow.CzOptions
	var name, setup string
	var raw []condition.Raw

	for _, kv := range mappingPairs(val) {
		k, v := kv[0], kv[1]
		if condition.IsKey(k.Value) {
			g, err := scalarOrList(v)
			if err != nil {
				return decodeError(k.Value, v, err)
			}
			raw = append(raw, condition.Raw{Key: k.Value, Value: g})
			continue
		}
		var err error
		switch k.Value {
		case "test":
			err = v.Decode(&name)
		case "setup":
			err = v.Decode(&setup)
		case "id":
			err = v.Decode(&opts.ID)
		case "context":
			opts.Context, err = contextValue(v)
		default:
			return unknownKey("cz", k,
				append([]string{"test", "setup", "id", "context"}, condition.Keys()...))
		}
		if err != nil {
			return decodeError(k.Value, v, err)
		}
	}
	if name == "" || setup == "" {
		return fmt.Errorf("line %d: cz needs both test and setup", val.Line)
	}

	conds, err := condition.Extract(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", val.Line, err)
	}
	opts.Conditions = conds
	f.Cz(name, setup, opts)
	return nil
}

func buildGroup(f *flow.Flow, val *yaml.Node) error {
	var opts flow.GroupOptions
	var name string
	var body *yaml.Node
	var raw []condition.Raw

	for _, kv := range mappingPairs(val) {
		k, v := kv[0], kv[1]
		if condition.IsKey(k.Value) {
			g, err := scalarOrList(v)
			if err != nil {
				return decodeError(k.Value, v, err)
			}
			raw = append(raw, condition.Raw{Key: k.Value, Value: g})
			continue
		}
		var err error
		switch k.Value {
		case "name":
			err = v.Decode(&name)
		case "id":
			err = v.Decode(&opts.ID)
		case "on_fail":
			opts.OnFail, err = actions(v)
		case "on_pass":
			opts.OnPass, err = actions(v)
		case "body":
			body = v
		case "context":
			opts.Context, err = contextValue(v)
		default:
			return unknownKey("group", k,
				append([]string{"name", "id", "on_fail", "on_pass", "body", "context"},
					condition.Keys()...))
		}
		if err != nil {
			return decodeError(k.Value, v, err)
		}
	}
	if name == "" {
		return fmt.Errorf("line %d: group has no name", val.Line)
	}
	if body == nil {
		return fmt.Errorf("line %d: group has no body", val.Line)
	}

	conds, err := condition.Extract(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", val.Line, err)
	}
	opts.Conditions = conds

	var bodyErr error
	f.Group(name, opts, func(f *flow.Flow) {
		bodyErr = buildStatements(f, body)
	})
	return bodyErr
}

func buildBin(f *flow.Flow, val *yaml.Node, op func(int64, flow.BinOptions)) error {
	// Scalar shorthand: "bin: 10".
	if val.Kind == yaml.ScalarNode {
		var number int64
		if err := val.Decode(&number); err != nil {
			return decodeError("bin", val, err)
		}
		op(number, flow.BinOptions{})
		return nil
	}

	var opts flow.BinOptions
	var number int64
	var raw []condition.Raw
	for _, kv := range mappingPairs(val) {
		k, v := kv[0], kv[1]
		if condition.IsKey(k.Value) {
			g, err := scalarOrList(v)
			if err != nil {
				return decodeError(k.Value, v, err)
			}
			raw = append(raw, condition.Raw{Key: k.Value, Value: g})
			continue
		}
		var err error
		switch k.Value {
		case "number":
			err = v.Decode(&number)
		case "softbin":
			err = v.Decode(&opts.SoftBin)
		case "description":
			err = v.Decode(&opts.Description)
		case "context":
			opts.Context, err = contextValue(v)
		default:
			return unknownKey("bin", k,
				append([]string{"number", "softbin", "description", "context"},
					condition.Keys()...))
		}
		if err != nil {
			return decodeError(k.Value, v, err)
		}
	}
	conds, err := condition.Extract(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", val.Line, err)
	}
	opts.Conditions = conds
	op(number, opts)
	return nil
}

func buildMessage(f *flow.Flow, val *yaml.Node, op func(string, flow.Common)) error {
	// Scalar shorthand: `log: "probing site 2"`.
	if val.Kind == yaml.ScalarNode {
		var msg string
		if err := val.Decode(&msg); err != nil {
			return decodeError("message", val, err)
		}
		op(msg, flow.Common{})
		return nil
	}

	var msg string
	common, err := commonOptions(val, func(k, v *yaml.Node) (bool, error) {
		if k.Value == "value" {
			return true, v.Decode(&msg)
		}
		return false, nil
	}, []string{"value", "context"})
	if err != nil {
		return err
	}
	op(msg, common)
	return nil
}

func buildContinue(f *flow.Flow, val *yaml.Node) error {
	// Bare form: "continue:" or "continue: true".
	if val.Kind == yaml.ScalarNode {
		f.Continue(flow.Common{})
		return nil
	}
	common, err := commonOptions(val, nil, []string{"context"})
	if err != nil {
		return err
	}
	f.Continue(common)
	return nil
}

// commonOptions parses a mapping containing only condition aliases, the
// context key, and whatever extra keys the caller's hook claims.
func commonOptions(val *yaml.Node, extra func(k, v *yaml.Node) (bool, error), known []string) (flow.Common, error) {
	var common flow.Common
	var raw []condition.Raw
	for _, kv := range mappingPairs(val) {
		k, v := kv[0], kv[1]
		if condition.IsKey(k.Value) {
			g, err := scalarOrList(v)
			if err != nil {
				return common, decodeError(k.Value, v, err)
			}
			raw = append(raw, condition.Raw{Key: k.Value, Value: g})
			continue
		}
		if k.Value == "context" {
			ctx, err := contextValue(v)
			if err != nil {
				return common, decodeError(k.Value, v, err)
			}
			common.Context = ctx
			continue
		}
		if extra != nil {
			claimed, err := extra(k, v)
			if err != nil {
				return common, decodeError(k.Value, v, err)
			}
			if claimed {
				continue
			}
		}
		return common, unknownKey("statement", k, append(known, condition.Keys()...))
	}
	conds, err := condition.Extract(raw)
	if err != nil {
		return common, fmt.Errorf("line %d: %w", val.Line, err)
	}
	common.Conditions = conds
	return common, nil
}

// actions parses an on_fail/on_pass mapping.
func actions(val *yaml.Node) (*flow.Actions, error) {
	a := &flow.Actions{}
	for _, kv := range mappingPairs(val) {
		k, v := kv[0], kv[1]
		var err error
		switch k.Value {
		case "bin":
			err = v.Decode(&a.Bin)
		case "softbin":
			err = v.Decode(&a.SoftBin)
		case "set_flag":
			err = v.Decode(&a.SetFlag)
		case "set_result":
			err = v.Decode(&a.SetResult)
		case "log":
			err = v.Decode(&a.Log)
		case "render":
			err = v.Decode(&a.Render)
		case "continue":
			err = v.Decode(&a.Continue)
		default:
			return nil, unknownKey("action", k,
				[]string{"bin", "softbin", "set_flag", "set_result", "log", "render", "continue"})
		}
		if err != nil {
			return nil, decodeError(k.Value, v, err)
		}
	}
	return a, nil
}

func contextValue(v *yaml.Node) (flow.Context, error) {
	var s string
	if err := v.Decode(&s); err != nil {
		return flow.ContextNone, err
	}
	switch s {
	case "", "none":
		return flow.ContextNone, nil
	case "current":
		return flow.ContextCurrent, nil
	}
	return flow.ContextNone, fmt.Errorf("unknown context %q (want \"current\" or \"none\")", s)
}

// scalarOrList decodes a condition guard: a scalar becomes a string, a
// sequence a string slice.
func scalarOrList(v *yaml.Node) (any, error) {
	if v.Kind == yaml.SequenceNode {
		var list []string
		if err := v.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var s string
	if err := v.Decode(&s); err != nil {
		return nil, err
	}
	return s, nil
}

func stringList(v *yaml.Node) ([]string, error) {
	if v.Kind == yaml.ScalarNode {
		var s string
		if err := v.Decode(&s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	var list []string
	if err := v.Decode(&list); err != nil {
		return nil, err
	}
	return list, nil
}

// pairNodes decodes a mapping into builder nodes, one per key/value pair,
// in document order.
func pairNodes(v *yaml.Node, build func(name string, value int64) *ast.Node) ([]*ast.Node, error) {
	var out []*ast.Node
	for _, kv := range mappingPairs(v) {
		k, val := kv[0], kv[1]
		var n int64
		if err := val.Decode(&n); err != nil {
			return nil, err
		}
		out = append(out, build(k.Value, n))
	}
	return out, nil
}

func metaValues(v *yaml.Node) (map[string]ast.Value, error) {
	out := make(map[string]ast.Value)
	for _, kv := range mappingPairs(v) {
		k, val := kv[0], kv[1]
		var scalar any
		if err := val.Decode(&scalar); err != nil {
			return nil, err
		}
		switch s := scalar.(type) {
		case string:
			out[k.Value] = ast.Str(s)
		case int:
			out[k.Value] = ast.Int(int64(s))
		case int64:
			out[k.Value] = ast.Int(s)
		case bool:
			out[k.Value] = ast.Bool(s)
		default:
			return nil, fmt.Errorf("meta %q: unsupported value type %T", k.Value, scalar)
		}
	}
	return out, nil
}

func subTests(v *yaml.Node) ([]*ast.Node, error) {
	names, err := stringList(v)
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Node, len(names))
	for i, n := range names {
		out[i] = ast.SubTest(ast.Name(n))
	}
	return out, nil
}
