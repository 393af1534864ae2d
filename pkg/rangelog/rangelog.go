// Package rangelog implements the per-transaction range-based access log:
// read, write and delete sets recorded as (start, len) ranges rather than
// individual keys. Overlapping or adjacent keys fold into one range; each
// disjoint run of keys adds a range of its own.
package rangelog

import (
	"errors"
	"math/bits"
)

// State is the log's lifecycle stage. A log only ever moves forward:
// UNINITIALIZED -> STARTED -> FINALIZED.
type State int

const (
	Uninitialized State = iota
	Started
	Finalized
)

// ErrFinalized is returned by any mutating call once the log has been
// finalized: a finalized log's ranges are read-only history from then on.
var ErrFinalized = errors.New("rangelog: log is finalized")

// Range is an inclusive key span [Key, Key+Len-1], recorded with
// saturating arithmetic so a span that would overflow uint64 clamps to
// KeyMax instead of wrapping.
type Range struct {
	Key uint64
	Len uint64
}

const keyMax = ^uint64(0)

// High returns the range's inclusive upper bound, saturating at keyMax.
func (r Range) High() uint64 {
	if r.Len == 0 {
		return r.Key
	}
	sum, carry := bits.Add64(r.Key, r.Len-1, 0)
	if carry != 0 || sum < r.Key {
		return keyMax
	}
	return sum
}

// Contains reports whether key falls within r.
func (r Range) Contains(key uint64) bool {
	return key >= r.Key && key <= r.High()
}

// Intersects reports whether r and o overlap.
func (r Range) Intersects(o Range) bool {
	return r.Key <= o.High() && o.Key <= r.High()
}

// merge widens r to also cover o, used by the widen-only insert below.
func (r Range) merge(o Range) Range {
	lo := r.Key
	if o.Key < lo {
		lo = o.Key
	}
	hi := r.High()
	if oh := o.High(); oh > hi {
		hi = oh
	}
	length := hi - lo
	if length == keyMax {
		return Range{Key: lo, Len: keyMax}
	}
	return Range{Key: lo, Len: length + 1}
}

// Log is one transaction's access record: a read set, a write set and a
// delete set, each a list of ranges, plus an
// optional parent log consulted by the exists* queries so a nested
// transaction's conflict checks see its ancestors' footprints too.
type Log struct {
	state  State
	parent *Log
	rd     []Range
	wr     []Range
	rm     []Range
}

// New creates a STARTED log with no parent.
func New() *Log {
	return &Log{state: Started}
}

// NewChild creates a STARTED log whose exists* queries also walk parent's
// ranges (and parent's own parent, and so on).
func NewChild(parent *Log) *Log {
	return &Log{state: Started, parent: parent}
}

// State reports the log's current lifecycle stage.
func (l *Log) State() State { return l.state }

// Finalize moves the log to FINALIZED, after which no further
// read/write/delete may be recorded.
func (l *Log) Finalize() {
	l.state = Finalized
}

// widen merges r into the first recorded range it overlaps or abuts, or
// appends it if there is none. Ranges already in the set are not merged
// with each other, so after a widening two of them may overlap.
func widen(set []Range, r Range) []Range {
	for i := range set {
		if set[i].Intersects(r) || adjacent(set[i], r) {
			set[i] = set[i].merge(r)
			return set
		}
	}
	return append(set, r)
}

func adjacent(a, b Range) bool {
	return a.High() != keyMax && a.High()+1 == b.Key || b.High() != keyMax && b.High()+1 == a.Key
}

// Read records that the transaction observed r's keys. It never shrinks an
// existing recorded range, only widens the set to cover r.
func (l *Log) Read(r Range) error {
	if l.state == Finalized {
		return ErrFinalized
	}
	l.rd = widen(l.rd, r)
	return nil
}

// Write records that the transaction wrote within r.
func (l *Log) Write(r Range) error {
	if l.state == Finalized {
		return ErrFinalized
	}
	l.wr = widen(l.wr, r)
	return nil
}

// Delete records that the transaction deleted within r.
func (l *Log) Delete(r Range) error {
	if l.state == Finalized {
		return ErrFinalized
	}
	l.rm = widen(l.rm, r)
	return nil
}

func anyContains(set []Range, key uint64) bool {
	for _, r := range set {
		if r.Contains(key) {
			return true
		}
	}
	return false
}

func anyIntersects(set []Range, r Range) bool {
	for _, s := range set {
		if s.Intersects(r) {
			return true
		}
	}
	return false
}

// ReadSetHasKey walks l and its ancestors up to depth levels, reporting
// whether key was read anywhere along the chain.
func (l *Log) ReadSetHasKey(key uint64, depth int) bool {
	for cur, i := l, 0; cur != nil && i <= depth; cur, i = cur.parent, i+1 {
		if anyContains(cur.rd, key) {
			return true
		}
	}
	return false
}

// ReadSetHasRange is ReadSetHasKey generalized to a range.
func (l *Log) ReadSetHasRange(r Range, depth int) bool {
	for cur, i := l, 0; cur != nil && i <= depth; cur, i = cur.parent, i+1 {
		if anyIntersects(cur.rd, r) {
			return true
		}
	}
	return false
}

// WriteSetHasKey is ReadSetHasKey over the write set.
func (l *Log) WriteSetHasKey(key uint64, depth int) bool {
	for cur, i := l, 0; cur != nil && i <= depth; cur, i = cur.parent, i+1 {
		if anyContains(cur.wr, key) {
			return true
		}
	}
	return false
}

// DeleteSetHasKey is ReadSetHasKey over the delete set.
func (l *Log) DeleteSetHasKey(key uint64, depth int) bool {
	for cur, i := l, 0; cur != nil && i <= depth; cur, i = cur.parent, i+1 {
		if anyContains(cur.rm, key) {
			return true
		}
	}
	return false
}

// DeleteSetHasRange is DeleteSetHasKey generalized to a range.
func (l *Log) DeleteSetHasRange(r Range, depth int) bool {
	for cur, i := l, 0; cur != nil && i <= depth; cur, i = cur.parent, i+1 {
		if anyIntersects(cur.rm, r) {
			return true
		}
	}
	return false
}

// WriteSetHasRange is WriteSetHasKey generalized to a range.
func (l *Log) WriteSetHasRange(r Range, depth int) bool {
	for cur, i := l, 0; cur != nil && i <= depth; cur, i = cur.parent, i+1 {
		if anyIntersects(cur.wr, r) {
			return true
		}
	}
	return false
}

// WriteRanges returns a copy of l's recorded write ranges.
func (l *Log) WriteRanges() []Range { return append([]Range(nil), l.wr...) }

// DeleteRanges returns a copy of l's recorded delete ranges.
func (l *Log) DeleteRanges() []Range { return append([]Range(nil), l.rm...) }

// ReadRanges returns a copy of l's recorded read ranges.
func (l *Log) ReadRanges() []Range { return append([]Range(nil), l.rd...) }
