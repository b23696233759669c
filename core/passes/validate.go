package passes

import (
	"fmt"

	"github.com/arkohler/atp/core/ast"
)

// DuplicateIDError reports an explicit ID appearing more than once in a
// flow. IDs are the anchors relationship lowering resolves against, so a
// duplicate makes the references ambiguous.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate test ID %q: every ID in a flow must be unique", e.ID)
}

// MissingIDError reports a relationship condition referencing a test ID
// that no node in the flow defines.
type MissingIDError struct {
	Ref  string
	Kind ast.Kind // the condition kind holding the dangling reference
}

func (e *MissingIDError) Error() string {
	return fmt.Sprintf("%s references test ID %q, but no test in the flow carries that ID",
		e.Kind, e.Ref)
}

// UnassignedIDError reports a test or cz a row-based pipeline must reference
// by ID (to un-nest its branch actions into a sibling condition) that
// carries none while ID assignment is disabled.
type UnassignedIDError struct {
	Name string
	Kind ast.Kind
}

func (e *UnassignedIDError) Error() string {
	return fmt.Sprintf("%s %q has no ID, but its branch actions must be un-nested into a condition referencing it; set an explicit id or enable ID assignment", e.Kind, e.Name)
}

// JobConflictError reports a node both restricted to and excluded from the
// same job.
type JobConflictError struct {
	Job string
}

func (e *JobConflictError) Error() string {
	return fmt.Sprintf("job %q is both selected by an enclosing if_job and excluded by unless_job; the guarded body can never run", e.Job)
}

// CheckDuplicateIDs collects every explicit id leaf in depth-first order
// and fails on the first value that repeats.
func CheckDuplicateIDs(root *ast.Node) error {
	seen := make(map[string]bool)
	var err error
	ast.Walk(root, func(n *ast.Node) bool {
		if err != nil {
			return false
		}
		if n.Kind() == ast.KindID {
			id := n.Value().Str
			if seen[id] {
				err = &DuplicateIDError{ID: id}
				return false
			}
			seen[id] = true
		}
		return true
	})
	return err
}

// CheckMissingIDs verifies that every test reference in a relationship
// condition resolves to an ID defined somewhere in the flow. Downstream
// relationship lowering rewrites those references into flag pairs and
// cannot anchor a flag to a test that does not exist.
func CheckMissingIDs(root *ast.Node) error {
	defined := make(map[string]bool)
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Kind() == ast.KindID {
			defined[n.Value().Str] = true
		}
		return true
	})

	var err error
	ast.Walk(root, func(n *ast.Node) bool {
		if err != nil {
			return false
		}
		if isRelationshipKind(n.Kind()) {
			for _, ref := range n.Value().List() {
				if !defined[ref] {
					err = &MissingIDError{Ref: ref, Kind: n.Kind()}
					return false
				}
			}
		}
		return true
	})
	return err
}

// CheckBranchIDs verifies that every test or cz whose on_fail/on_pass holds
// an action a row-based target cannot execute inline also carries an ID.
// Run performs this check for the pipelines that un-nest branches when ID
// assignment is disabled; with assignment enabled every node has an ID by
// the time un-nesting runs.
func CheckBranchIDs(root *ast.Node) error {
	var err error
	ast.Walk(root, func(n *ast.Node) bool {
		if err != nil {
			return false
		}
		if n.Kind() != ast.KindTest && n.Kind() != ast.KindCz {
			return true
		}
		if n.ID() != "" {
			return true
		}
		for _, k := range []ast.Kind{ast.KindOnFail, ast.KindOnPass} {
			br := n.Find(k)
			if br == nil {
				continue
			}
			for _, a := range br.Children() {
				if !inlineBranchAction(a.Kind()) {
					name := ""
					if nm := n.Find(ast.KindName); nm != nil {
						name = nm.Value().Str
					}
					err = &UnassignedIDError{Name: name, Kind: n.Kind()}
					return false
				}
			}
		}
		return true
	})
	return err
}

// CheckJobs verifies job-condition consistency: a body nested under
// if_job(j) must not also sit under unless_job(j), and vice versa.
func CheckJobs(root *ast.Node) error {
	return checkJobs(root, map[string]bool{}, map[string]bool{})
}

func checkJobs(n *ast.Node, selected, excluded map[string]bool) error {
	switch n.Kind() {
	case ast.KindIfJob:
		for _, job := range n.Value().List() {
			if excluded[job] {
				return &JobConflictError{Job: job}
			}
		}
		selected = withJobs(selected, n.Value().List())
	case ast.KindUnlessJob:
		for _, job := range n.Value().List() {
			if selected[job] {
				return &JobConflictError{Job: job}
			}
		}
		excluded = withJobs(excluded, n.Value().List())
	}
	for _, c := range n.Children() {
		if err := checkJobs(c, selected, excluded); err != nil {
			return err
		}
	}
	return nil
}

func withJobs(base map[string]bool, jobs []string) map[string]bool {
	out := make(map[string]bool, len(base)+len(jobs))
	for k := range base {
		out[k] = true
	}
	for _, j := range jobs {
		out[j] = true
	}
	return out
}
