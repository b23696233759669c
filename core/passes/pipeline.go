// Package passes implements the validation and optimization passes that
// rewrite a raw flow tree into the shape a target renderer consumes.
//
// Every pass is a pure tree-to-tree transform: the input tree is never
// modified and no pass retains references into a tree another pass will
// rebuild. Pass ordering within a pipeline is data-dependent and fixed -
// later passes assume invariants only earlier passes establish.
package passes

import (
	"github.com/arkohler/atp/core/ast"
)

// Optimization selects the target execution model the tree is shaped for.
type Optimization uint8

const (
	// OptimizationNone runs only validation, ID assignment, condition
	// lowering and cleanup.
	OptimizationNone Optimization = iota

	// OptimizationSMT shapes the tree for a C-like conditional-branch
	// execution model.
	OptimizationSMT

	// OptimizationIGXL shapes the tree for a row/table-based execution
	// model that cannot represent nested scopes.
	OptimizationIGXL

	// OptimizationFlat fully flattens the tree into a linear sequence of
	// conditioned leaf actions (reference/simulation model).
	OptimizationFlat
)

func (o Optimization) String() string {
	switch o {
	case OptimizationNone:
		return "none"
	case OptimizationSMT:
		return "smt"
	case OptimizationIGXL:
		return "igxl"
	case OptimizationFlat:
		return "flat"
	}
	return "unknown"
}

// OptimizationFromName resolves the option-surface name of a pipeline.
func OptimizationFromName(name string) (Optimization, bool) {
	switch name {
	case "", "none":
		return OptimizationNone, true
	case "smt":
		return OptimizationSMT, true
	case "igxl":
		return OptimizationIGXL, true
	case "flat":
		return OptimizationFlat, true
	}
	return OptimizationNone, false
}

// Options enumerates everything a caller can ask of the pipeline.
type Options struct {
	Optimization Optimization

	// AddIDs assigns a unique ID to every node that lacks one.
	AddIDs bool

	// UniqueID, when non-empty, is appended to every ID in the tree so
	// multiple flows can be merged into one program without collisions.
	UniqueID string

	// ApplyRelationships lowers pass/fail references between tests into
	// flag set/check pairs ahead of condition lowering.
	ApplyRelationships bool

	// OneFlagPerTest restricts every test to setting a single outcome
	// flag, inserting auxiliary flag-copy nodes where needed (row-based
	// targets only).
	OneFlagPerTest bool

	// OptimizeFlags coalesces flags with disjoint set/check windows
	// (conditional-branch target only).
	OptimizeFlags bool
}

// DefaultOptions returns the options used when the caller expresses no
// preference: IDs are assigned and relationships lowered.
func DefaultOptions() Options {
	return Options{AddIDs: true, ApplyRelationships: true}
}

// Run executes the pipeline selected by opts over root and returns the
// rewritten tree. Validation failures abort the whole run; no error is
// retried or repaired.
func Run(root *ast.Node, opts Options) (*ast.Node, error) {
	n := PreClean(root)
	if err := Validate(n); err != nil {
		return nil, err
	}
	if opts.AddIDs {
		n = AssignIDs(n, opts.UniqueID)
	} else if opts.Optimization == OptimizationIGXL || opts.Optimization == OptimizationFlat {
		// These pipelines un-nest branch actions into conditions that
		// reference the test by ID; without assignment the IDs must
		// already be there.
		if err := CheckBranchIDs(n); err != nil {
			return nil, err
		}
	}

	switch opts.Optimization {
	case OptimizationSMT:
		if opts.ApplyRelationships {
			n = ApplyRelationships(n)
		}
		n = LowerConditions(n, opts.ApplyRelationships)
		if opts.OptimizeFlags {
			n = OptimizeFlags(n)
		}
		n = CombineAdjacentIfs(n)
		n = RemoveEmptyBranches(n)

	case OptimizationIGXL:
		n = RemoveElses(n)
		n = RemoveOnPassFail(n)
		if opts.ApplyRelationships {
			n = ApplyRelationships(n)
		}
		n = LowerConditions(n, opts.ApplyRelationships)
		n = ApplyPostGroupActions(n)
		if opts.OneFlagPerTest {
			n = EnforceOneFlagPerTest(n)
		}
		n = RemoveRedundantConditions(n)
		n = RemoveEmptyBranches(n)

	case OptimizationFlat:
		n = RemoveElses(n)
		n = RemoveOnPassFail(n)
		n = LowerConditions(n, false)
		n = Flatten(n)
		n = RemoveEmptyBranches(n)

	default:
		n = LowerConditions(n, false)
		n = RemoveEmptyBranches(n)
	}

	return n, nil
}

// Validate runs the full validation pass set over a constructed tree.
func Validate(root *ast.Node) error {
	if err := CheckDuplicateIDs(root); err != nil {
		return err
	}
	if err := CheckMissingIDs(root); err != nil {
		return err
	}
	return CheckJobs(root)
}

// isRelationshipKind reports whether k references another test's outcome.
func isRelationshipKind(k ast.Kind) bool {
	switch k {
	case ast.KindIfFailed, ast.KindIfPassed,
		ast.KindIfAnyFailed, ast.KindIfAllFailed,
		ast.KindIfAnyPassed, ast.KindIfAllPassed,
		ast.KindIfRan, ast.KindUnlessRan:
		return true
	}
	return false
}

// carriesID reports whether nodes of this kind are ID-bearing statements.
func carriesID(k ast.Kind) bool {
	switch k {
	case ast.KindTest, ast.KindGroup, ast.KindCz, ast.KindSubTest:
		return true
	}
	return false
}
