package passes

import (
	"sort"

	"github.com/arkohler/atp/core/ast"
)

// setter describes the outcome that writes a flag. Flags are sticky: a set
// is never cleared, so two flags may only share storage when their setting
// outcomes cannot both happen, or when the later set is unconditional (it
// overwrites whatever the earlier outcome left behind).
type setter struct {
	test    string   // ID of the test whose branch performs the set
	branch  ast.Kind // KindOnFail or KindOnPass when test is non-empty
	guarded bool     // set under a condition, with no exclusivity proof
}

func (s setter) unconditional() bool { return s.test == "" && !s.guarded }

// exclusive reports whether the two setting outcomes can never both happen:
// the fail and pass branches of the same test.
func exclusive(a, b setter) bool {
	return a.test != "" && a.test == b.test && a.branch != b.branch
}

// flagUsage records where in document order a flag is written and read, and
// under which outcome the write happens.
type flagUsage struct {
	name    string
	sets    []int
	setters []setter
	checks  []int
	lastUse int
}

// OptimizeFlags coalesces flags whose live windows never overlap: when one
// flag's last read precedes another flag's only write, the second flag can
// reuse the first's storage under the first's name. Only flags with exactly
// one setter whose reads all follow the write are candidates; volatile
// flags are never touched. A disjoint window alone is not enough: the
// candidate's set must be unconditional or mutually exclusive with every
// outcome already writing the pool flag, or a stale earlier set would
// satisfy the candidate's checks.
func OptimizeFlags(root *ast.Node) *ast.Node {
	usage := collectFlagUsage(root)
	volatile := volatileFlags(root)

	var candidates []*flagUsage
	for _, u := range usage {
		if volatile[u.name] || len(u.sets) != 1 || len(u.checks) == 0 {
			continue
		}
		ok := true
		for _, c := range u.checks {
			if c < u.sets[0] {
				ok = false
				break
			}
		}
		if ok {
			candidates = append(candidates, u)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].sets[0] < candidates[j].sets[0]
	})

	// Greedy window packing: each pool entry is a representative flag, the
	// position of its pool's latest read, and the outcomes writing it. A
	// candidate joins a pool only when its write happens after that read
	// and cannot be shadowed by an earlier pool member's set.
	rename := make(map[string]string)
	type pool struct {
		name    string
		lastUse int
		setters []setter
	}
	var pools []*pool
	for _, u := range candidates {
		placed := false
		for _, p := range pools {
			if p.name != u.name && p.lastUse < u.sets[0] && joinable(p.setters, u.setters[0]) {
				rename[u.name] = p.name
				p.lastUse = u.lastUse
				p.setters = append(p.setters, u.setters[0])
				placed = true
				break
			}
		}
		if !placed {
			pools = append(pools, &pool{name: u.name, lastUse: u.lastUse, setters: []setter{u.setters[0]}})
		}
	}
	if len(rename) == 0 {
		return root
	}
	return renameFlags(root, rename)
}

// joinable reports whether a set under outcome c can share storage with a
// pool already written by members: either c always happens (unconditional,
// so a stale member set is overwritten by an identical value), or c is
// provably exclusive with every member outcome.
func joinable(members []setter, c setter) bool {
	if c.unconditional() {
		return true
	}
	for _, m := range members {
		if !exclusive(m, c) {
			return false
		}
	}
	return true
}

// collectFlagUsage indexes every flag write and read by preorder position,
// recording the outcome context of each write.
func collectFlagUsage(root *ast.Node) map[string]*flagUsage {
	usage := make(map[string]*flagUsage)
	at := func(name string) *flagUsage {
		u := usage[name]
		if u == nil {
			u = &flagUsage{name: name}
			usage[name] = u
		}
		return u
	}

	pos := 0
	var walk func(n *ast.Node, s setter)
	walk = func(n *ast.Node, s setter) {
		pos++
		switch n.Kind() {
		case ast.KindSetFlag:
			u := at(n.Value().Str)
			u.sets = append(u.sets, pos)
			u.setters = append(u.setters, s)
			if pos > u.lastUse {
				u.lastUse = pos
			}
		case ast.KindIfFlag, ast.KindUnlessFlag:
			// The guard holds for the whole subtree; the flag stays live
			// until the scope closes.
			end := pos + subtreeSize(n)
			for _, f := range n.Value().List() {
				u := at(f)
				u.checks = append(u.checks, pos)
				if end > u.lastUse {
					u.lastUse = end
				}
			}
		}

		next := s
		if n.IsCondition() {
			next.guarded = true
		}
		if n.Kind() == ast.KindTest || n.Kind() == ast.KindCz {
			id := n.ID()
			for _, c := range n.Children() {
				cs := next
				if c.Kind() == ast.KindOnFail || c.Kind() == ast.KindOnPass {
					// Conditions inside the branch only narrow the outcome;
					// the branches stay exclusive with each other.
					cs = setter{test: id, branch: c.Kind(), guarded: id == ""}
				}
				walk(c, cs)
			}
			return
		}
		for _, c := range n.Children() {
			walk(c, next)
		}
	}
	walk(root, setter{})
	return usage
}

func subtreeSize(n *ast.Node) int {
	size := 0
	ast.Walk(n, func(*ast.Node) bool {
		size++
		return true
	})
	return size
}

// renameFlags rewrites set_flag values and flag-condition guards through
// the rename table.
func renameFlags(root *ast.Node, rename map[string]string) *ast.Node {
	mapped := func(f string) string {
		if to, ok := rename[f]; ok {
			return to
		}
		return f
	}
	return root.Transform(func(n *ast.Node) *ast.Node {
		switch n.Kind() {
		case ast.KindSetFlag:
			if to, ok := rename[n.Value().Str]; ok {
				return n.WithValue(ast.Str(to))
			}
		case ast.KindIfFlag, ast.KindUnlessFlag:
			flags := n.Value().List()
			changed := false
			next := make([]string, len(flags))
			for i, f := range flags {
				next[i] = mapped(f)
				changed = changed || next[i] != f
			}
			if changed {
				if len(next) == 1 {
					return n.WithValue(ast.Str(next[0]))
				}
				return n.WithValue(ast.Strs(next))
			}
		}
		return n
	})
}
