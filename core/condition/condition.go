// Package condition normalizes the user-facing condition vocabulary into the
// canonical condition kinds carried on the tree. Callers may spell a guard
// many ways (enable, enabled, if_enabled, ...); the table below is the single
// place those aliases are resolved, checked once at the call boundary instead
// of being synthesized into per-alias entry points.
package condition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arkohler/atp/core/ast"
)

// Condition is a canonical guard extracted from an options bundle: the
// condition kind plus the guard identifiers (enable words, test IDs, job
// names, flag names, or a group name).
type Condition struct {
	Kind   ast.Kind
	Values []string
}

// aliases maps every user-facing condition key to its canonical kind.
// KindGroup is a condition kind at this boundary: a group: key wraps the
// guarded body in a named group node.
var aliases = map[string]ast.Kind{
	"if_enabled":  ast.KindIfEnabled,
	"if_enable":   ast.KindIfEnabled,
	"enabled":     ast.KindIfEnabled,
	"enable_flag": ast.KindIfEnabled,
	"enable_if":   ast.KindIfEnabled,

	"unless_enabled": ast.KindUnlessEnabled,
	"unless_enable":  ast.KindUnlessEnabled,
	"disabled":       ast.KindUnlessEnabled,
	"disable_if":     ast.KindUnlessEnabled,

	"if_failed":     ast.KindIfFailed,
	"unless_passed": ast.KindIfFailed,
	"failed":        ast.KindIfFailed,

	"if_passed":     ast.KindIfPassed,
	"unless_failed": ast.KindIfPassed,
	"passed":        ast.KindIfPassed,

	"if_any_failed":     ast.KindIfAnyFailed,
	"unless_all_passed": ast.KindIfAnyFailed,

	"if_all_failed":     ast.KindIfAllFailed,
	"unless_any_passed": ast.KindIfAllFailed,

	"if_any_passed":     ast.KindIfAnyPassed,
	"unless_all_failed": ast.KindIfAnyPassed,

	"if_all_passed":     ast.KindIfAllPassed,
	"unless_any_failed": ast.KindIfAllPassed,

	"if_ran": ast.KindIfRan,
	"ran":    ast.KindIfRan,

	"unless_ran": ast.KindUnlessRan,

	"if_job":  ast.KindIfJob,
	"if_jobs": ast.KindIfJob,
	"job":     ast.KindIfJob,
	"jobs":    ast.KindIfJob,

	"unless_job":  ast.KindUnlessJob,
	"unless_jobs": ast.KindUnlessJob,

	"if_flag":     ast.KindIfFlag,
	"unless_flag": ast.KindUnlessFlag,

	"group": ast.KindGroup,
}

// singleReference lists the kinds whose guard must name exactly one test,
// and the key the caller should have used for multiple references.
var singleReference = map[ast.Kind]string{
	ast.KindIfFailed:  "if_any_failed or if_all_failed",
	ast.KindIfPassed:  "if_any_passed or if_all_passed",
	ast.KindIfRan:     "if_ran accepts a single test reference only",
	ast.KindUnlessRan: "unless_ran accepts a single test reference only",
}

// negations pairs each negatable condition kind with its complement.
var negations = map[ast.Kind]ast.Kind{
	ast.KindIfEnabled:     ast.KindUnlessEnabled,
	ast.KindUnlessEnabled: ast.KindIfEnabled,
	ast.KindIfFlag:        ast.KindUnlessFlag,
	ast.KindUnlessFlag:    ast.KindIfFlag,
	ast.KindIfJob:         ast.KindUnlessJob,
	ast.KindUnlessJob:     ast.KindIfJob,
	ast.KindIfRan:         ast.KindUnlessRan,
	ast.KindUnlessRan:     ast.KindIfRan,
	ast.KindIfFailed:      ast.KindIfPassed,
	ast.KindIfPassed:      ast.KindIfFailed,
}

// IsKey reports whether key is a recognized condition alias.
func IsKey(key string) bool {
	_, ok := aliases[key]
	return ok
}

// Canonical resolves an alias to its canonical condition kind.
func Canonical(alias string) (ast.Kind, bool) {
	k, ok := aliases[alias]
	return k, ok
}

// Keys returns every recognized alias, sorted. Used for suggestions in
// boundary error messages.
func Keys() []string {
	out := make([]string, 0, len(aliases))
	for k := range aliases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Negate returns the complement of a condition kind, for else-branch
// splitting. The second result is false for kinds with no complement
// (the any/all relationship families).
func Negate(kind ast.Kind) (ast.Kind, bool) {
	n, ok := negations[kind]
	return n, ok
}

// ConflictError reports two aliases in one options bundle resolving to the
// same canonical condition kind. This is a caller bug: the engine cannot
// know which guard was intended.
type ConflictError struct {
	Canonical     ast.Kind
	First, Second string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conditions %q and %q are aliases for %s and cannot both be supplied in one call",
		e.First, e.Second, e.Canonical)
}

// SingleReferenceError reports a list of test references supplied to a
// condition that is only defined over a single reference.
type SingleReferenceError struct {
	Kind  ast.Kind
	Alias string
	Got   []string
}

func (e *SingleReferenceError) Error() string {
	return fmt.Sprintf("%s expects a single test reference, got %d (%s); use %s",
		e.Alias, len(e.Got), strings.Join(e.Got, ", "), singleReference[e.Kind])
}

// ValueError reports a guard value of an unusable shape (e.g. a nested
// options bundle where an identifier was expected).
type ValueError struct {
	Alias string
	Value any
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("condition %q requires a string or list of strings, got %T", e.Alias, e.Value)
}

// Raw is one key/value pair from an options bundle, in the order supplied
// by the caller. Order matters: conditions wrap outer-to-inner in supply
// order.
type Raw struct {
	Key   string
	Value any
}

// Extract pulls every condition key out of an ordered options bundle and
// normalizes it. Non-condition keys are ignored. It fails on two aliases
// mapping to one canonical kind, on list guards for single-reference kinds,
// and on guard values that are not identifiers.
func Extract(raw []Raw) ([]Condition, error) {
	var out []Condition
	seen := map[ast.Kind]string{}

	for _, kv := range raw {
		kind, ok := aliases[kv.Key]
		if !ok {
			continue
		}
		if first, dup := seen[kind]; dup {
			return nil, &ConflictError{Canonical: kind, First: first, Second: kv.Key}
		}
		seen[kind] = kv.Key

		values, err := coerceValues(kv.Key, kv.Value)
		if err != nil {
			return nil, err
		}
		if _, single := singleReference[kind]; single && len(values) > 1 {
			return nil, &SingleReferenceError{Kind: kind, Alias: kv.Key, Got: values}
		}
		out = append(out, Condition{Kind: kind, Values: values})
	}
	return out, nil
}

// coerceValues accepts a bare identifier, a list of identifiers, or (for
// flowfile input) a list of any-typed strings.
func coerceValues(alias string, v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &ValueError{Alias: alias, Value: item}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &ValueError{Alias: alias, Value: v}
	}
}

// Guard converts the condition's identifiers into a node payload: a single
// identifier becomes a string value, several become a string list.
func (c Condition) Guard() ast.Value {
	if len(c.Values) == 1 {
		return ast.Str(c.Values[0])
	}
	return ast.Strs(c.Values)
}

// Wrap builds the tree node for the condition around body. A group
// condition produces a named group node; every other kind produces a
// condition node with the guard as its value.
func (c Condition) Wrap(body ...*ast.Node) *ast.Node {
	if c.Kind == ast.KindGroup {
		name := ""
		if len(c.Values) > 0 {
			name = c.Values[0]
		}
		return ast.Group(name, body...)
	}
	return ast.Condition(c.Kind, c.Guard(), body...)
}
