// Package merge implements the structural three-way merge between two
// transactions that both branched from a common base: g, the side already
// committed, and p, the side being rebased onto it. Rather than replaying
// either side's operations against a fresh tree, it walks both trees with
// a synchronized pair of bptree.MergeCursors, narrowing the coarser side
// to the finer range at each step, and either descends further, adopts g's subtree in
// place of p's (a pointer swap, not a copy), or reports a conflict — per
// spec.md §4.8's decision table. p.Tree is mutated in place and is the
// merge's result.
package merge

import (
	"vtree/pkg/bptree"
	"vtree/pkg/logtree"
	"vtree/pkg/rangelog"
)

// Conflict describes one range both sides changed incompatibly.
type Conflict struct {
	Key uint64
	Len uint64
}

// Result is the outcome of a merge attempt.
type Result struct {
	Conflicts []Conflict
}

// OK reports whether the merge produced no conflicts.
func (r Result) OK() bool { return len(r.Conflicts) == 0 }

// Merge rebases p's edits onto g in place, returning every conflicting
// range found. On conflict, p.Tree is left partially rewritten (every
// range resolved before the first conflict has already been adopted) —
// callers must discard it and not install it as a commit result.
func Merge(g, p *logtree.Tree) Result {
	gc := bptree.NewMergeCursor(g.Tree)
	pc := bptree.NewMergeCursor(p.Tree)

	var conflicts []Conflict
	for !(gc.End() && pc.End()) {
		bptree.Sync(gc, pc)
		rng := pc.Range()

		switch decide(toLogRange(rng), gc, pc, g.Log, p.Log) {
		case descend:
			gc.Down()
			pc.Down()
			continue
		case conflict:
			conflicts = append(conflicts, Conflict{Key: rng.Key, Len: rng.Len})
		case replace:
			if !pc.Replace(gc) {
				conflicts = append(conflicts, Conflict{Key: rng.Key, Len: rng.Len})
			}
		case advance:
		}
		gc.Next()
		pc.Next()
	}

	return Result{Conflicts: conflicts}
}

type outcome int

const (
	advance outcome = iota
	descend
	replace
	conflict
)

func toLogRange(r bptree.Range) rangelog.Range {
	return rangelog.Range{Key: r.Key, Len: r.Len}
}

// decide classifies rng per spec.md §4.8's decision table: rs (read set)
// and ds (delete set) are what gate a conflict, never the write set —
// writes that neither side ever read back pass through as a last-writer
// (here, p, the side being rebased) wins with no conflict recorded.
func decide(rng rangelog.Range, gc, pc *bptree.MergeCursor, gLog, pLog *rangelog.Log) outcome {
	gChanged := gLog.WriteSetHasRange(rng, 0) || gLog.DeleteSetHasRange(rng, 0)
	pChanged := pLog.WriteSetHasRange(rng, 0) || pLog.DeleteSetHasRange(rng, 0)

	if !gChanged {
		return advance
	}
	if !pChanged {
		if pLog.ReadSetHasRange(rng, 0) {
			return conflict
		}
		return replace
	}

	gNull, pNull := gc.IsNull(), pc.IsNull()
	switch {
	case gNull && pNull:
		if pLog.ReadSetHasRange(rng, 0) {
			return conflict
		}
		return advance
	case pNull:
		if pLog.ReadSetHasRange(rng, 0) || pLog.DeleteSetHasRange(rng, 0) {
			return conflict
		}
		return replace
	case gNull:
		if !gLog.DeleteSetHasRange(rng, 0) && !pLog.ReadSetHasRange(rng, 0) {
			return advance
		}
		if rng.Len == 1 && !pLog.ReadSetHasKey(rng.Key, 0) {
			return advance
		}
		return conflict
	default:
		if rng.Len == 1 {
			if pLog.ReadSetHasKey(rng.Key, 0) {
				return conflict
			}
			return advance
		}
		return descend
	}
}
