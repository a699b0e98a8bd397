package edb

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// Cursor walks a collection's entries within a bounded key range — spec.md
// §4.5. Bounds are fixed at construction, but position and direction are
// not: Seek/SeekExact/First/Last/Next/Prev/NextKey/PrevKey/NextDup/PrevDup
// may be called in any order and any mix, matching spec.md §8 scenario 2's
// seek-then-walk-backward-then-reseek usage. Keys and values are expressed
// in the collection's own Key shape; Cursor translates to and from the
// on-disk sort transform internally.
type Cursor struct {
	cs   CollectionSnapshot
	bc   *bbolt.Cursor
	rang rawBoundedRange
	k, v []byte
	init bool

	// dupC/dupKey track position within the current key's duplicate set,
	// independent of the top-level (k, v) position — allow_duplicates
	// collections only. dupC is nil whenever the current key has no
	// duplicate set positioned (not a dup collection, or c.k == nil).
	dupC   *bbolt.Cursor
	dupKey []byte
}

type rawBoundedRange struct {
	lower, upper       []byte
	lowerInc, upperInc bool
}

// NewCursor opens a cursor bounded by [min, max] (NoKey on either side
// means unbounded on that side), per spec.md §4.5. minIncl/maxIncl select
// whether the respective bound is inclusive. The cursor starts unpositioned;
// call First, Last, Seek, SeekExact, Next, or Prev to position it.
func NewCursor(cs CollectionSnapshot, min, max Key, minIncl, maxIncl bool) (*Cursor, error) {
	b, err := cs.bucket()
	if err != nil {
		return nil, err
	}
	var lower, upper []byte
	if !min.IsNone() {
		lower = encKey(cs.coll, min)
	}
	if !max.IsNone() {
		upper = encKey(cs.coll, max)
	}
	return &Cursor{
		cs: cs,
		bc: b.Cursor(),
		rang: rawBoundedRange{
			lower: lower, upper: upper,
			lowerInc: minIncl, upperInc: maxIncl,
		},
	}, nil
}

// First positions the cursor at the lowest matching entry.
func (c *Cursor) First() bool {
	k, v := c.rang.first(c.bc)
	return c.setPos(k, v, true)
}

// Last positions the cursor at the highest matching entry.
func (c *Cursor) Last() bool {
	k, v := c.rang.last(c.bc)
	return c.setPos(k, v, false)
}

// Seek positions the cursor at the first matching entry with key >= key
// (clamped to the cursor's lower bound), per spec.md §4.5 — e.g.
// Seek("key") lands on "key-00" in a collection holding "key-00".."key-99".
func (c *Cursor) Seek(key Key) bool {
	target := encKey(c.cs.coll, key)
	if c.rang.lower != nil && bytes.Compare(target, c.rang.lower) < 0 {
		target = c.rang.lower
	}
	k, v := c.bc.Seek(target)
	if k != nil && c.rang.lower != nil && !c.rang.lowerInc && bytes.Equal(k, c.rang.lower) {
		k, v = c.bc.Next()
	}
	if k != nil && !c.rang.match(k) {
		k, v = nil, nil
	}
	return c.setPos(k, v, true)
}

// SeekExact positions the cursor at key only if it exists (and is within
// bounds); otherwise the cursor is left with no current entry (HasValue
// reports false) and SeekExact reports false — spec.md §4.5's "seek_exact".
func (c *Cursor) SeekExact(key Key) bool {
	target := encKey(c.cs.coll, key)
	k, v := c.bc.Seek(target)
	if k == nil || !bytes.Equal(k, target) || !c.rang.match(k) {
		return c.setPos(nil, nil, true)
	}
	return c.setPos(k, v, true)
}

// Next advances the cursor and reports whether a new entry is available.
// The first call after construction behaves like First; after a later move
// that found no entry, Next steps on from the underlying bbolt cursor's
// position rather than restarting. On an allow_duplicates collection this
// walks duplicate values before advancing to the next key, visiting every
// (key, value) pair exhaustively.
func (c *Cursor) Next() bool {
	if !c.init {
		return c.First()
	}
	if c.k != nil && c.cs.coll.allowDups && c.NextDup() {
		return true
	}
	return c.NextKey()
}

// Prev is the mirror of Next, walking backward.
func (c *Cursor) Prev() bool {
	if !c.init {
		return c.Last()
	}
	if c.k != nil && c.cs.coll.allowDups && c.PrevDup() {
		return true
	}
	return c.PrevKey()
}

// NextKey advances to the next distinct key, skipping any remaining
// duplicate values at the current key — spec.md §4.5's "next_key".
func (c *Cursor) NextKey() bool {
	if !c.init {
		return c.First()
	}
	k, v := c.bc.Next()
	if k != nil && !c.rang.match(k) {
		k, v = nil, nil
	}
	return c.setPos(k, v, true)
}

// PrevKey is the mirror of NextKey, walking backward.
func (c *Cursor) PrevKey() bool {
	if !c.init {
		return c.Last()
	}
	k, v := c.bc.Prev()
	if k != nil && !c.rang.match(k) {
		k, v = nil, nil
	}
	return c.setPos(k, v, false)
}

// NextDup advances within the current key's duplicate set only, reporting
// false (without changing position) once there are no more duplicates —
// spec.md §4.5's "next_dup". A no-op on collections without duplicates.
func (c *Cursor) NextDup() bool {
	if c.dupC == nil {
		return false
	}
	k, _ := c.dupC.Next()
	if k == nil {
		return false
	}
	c.dupKey = k
	return true
}

// PrevDup is the mirror of NextDup, walking backward within the current
// key's duplicate set.
func (c *Cursor) PrevDup() bool {
	if c.dupC == nil {
		return false
	}
	k, _ := c.dupC.Prev()
	if k == nil {
		return false
	}
	c.dupKey = k
	return true
}

// OnFirst reports whether the cursor is positioned at the lowest matching
// entry, without disturbing its position.
func (c *Cursor) OnFirst() bool {
	if c.k == nil {
		return false
	}
	b, err := c.cs.bucket()
	if err != nil {
		return false
	}
	k, _ := c.rang.first(b.Cursor())
	return k != nil && bytes.Equal(k, c.k)
}

// OnLast reports whether the cursor is positioned at the highest matching
// entry, without disturbing its position.
func (c *Cursor) OnLast() bool {
	if c.k == nil {
		return false
	}
	b, err := c.cs.bucket()
	if err != nil {
		return false
	}
	k, _ := c.rang.last(b.Cursor())
	return k != nil && bytes.Equal(k, c.k)
}

// CompareKey compares the cursor's current key against key, in the same
// sense as bytes.Compare: negative if the current key is smaller, zero if
// equal, positive if larger. Undefined if the cursor is unpositioned.
func (c *Cursor) CompareKey(key Key) int {
	return bytes.Compare(c.k, encKey(c.cs.coll, key))
}

// HasValue reports whether the cursor is currently positioned on an entry.
func (c *Cursor) HasValue() bool { return c.init && c.k != nil }

// Key returns the current entry's logical key view.
func (c *Cursor) Key() KeyView {
	return decKeyView(c.cs.coll, c.k, &c.cs.snap.gen)
}

// KeyInt64 decodes the current entry's key as a native integer, valid
// only for KeyNativeInt collections.
func (c *Cursor) KeyInt64() int64 { return nativeIntFromDisk(c.k) }

// Value returns the current entry's zero-copy value view. For
// allow_duplicates collections this is whichever duplicate Next/Prev/
// NextDup/PrevDup last positioned on; a move that lands on a new key starts
// at its first duplicate (First, NextKey, Seek, SeekExact) or its last
// (Last, PrevKey) — see setPos.
func (c *Cursor) Value() ValueView {
	if c.cs.coll.allowDups {
		if c.dupKey == nil {
			return newValueView(nil, &c.cs.snap.gen)
		}
		return c.cs.decodeDupValueView(c.dupKey)
	}
	return newValueView(c.v, &c.cs.snap.gen)
}

// ValueLen reports the current value's raw encoded length without
// materializing a ValueView, per spec.md §4.5's "value_len".
func (c *Cursor) ValueLen() int {
	if c.cs.coll.allowDups {
		return len(c.dupKey)
	}
	return len(c.v)
}

// ValueCount reports how many duplicate values exist at the current key
// (1 for non-dup collections).
func (c *Cursor) ValueCount() int {
	if !c.cs.coll.allowDups {
		if c.k == nil {
			return 0
		}
		return 1
	}
	nested := c.nestedBucket()
	if nested == nil {
		return 0
	}
	return nested.Stats().KeyN
}

// Dups yields every duplicate value at the current key, in value-sort
// order (reverse if rev is set). It uses its own cursor over the nested
// bucket and does not disturb NextDup/PrevDup's position.
func (c *Cursor) Dups(rev bool) func(yield func(ValueView) bool) {
	return func(yield func(ValueView) bool) {
		nested := c.nestedBucket()
		if nested == nil {
			return
		}
		dc := nested.Cursor()
		var k []byte
		if rev {
			k, _ = dc.Last()
		} else {
			k, _ = dc.First()
		}
		for k != nil {
			if !yield(c.cs.decodeDupValueView(k)) {
				return
			}
			if rev {
				k, _ = dc.Prev()
			} else {
				k, _ = dc.Next()
			}
		}
	}
}

// Pairs ranges over every (key, value) pair the cursor visits. It has the
// iterator shape of Go 1.23 range-over-func, but this module declares go
// 1.21, so callers invoke it directly with a yield function.
func (c *Cursor) Pairs() func(yield func(KeyView, ValueView) bool) {
	return func(yield func(KeyView, ValueView) bool) {
		for c.Next() {
			if !yield(c.Key(), c.Value()) {
				return
			}
		}
	}
}

// setPos lands the cursor on (k, v) and, for allow_duplicates collections,
// establishes the duplicate-set cursor at its first or last entry per
// dupFirst — forward-landing moves (First, NextKey, Seek, SeekExact) want
// the first (smallest) duplicate current; backward-landing moves (Last,
// PrevKey) want the last, so that an exhaustive Prev walk visits every
// duplicate in the same order a forward walk would, just reversed.
func (c *Cursor) setPos(k, v []byte, dupFirst bool) bool {
	c.init = true
	c.k, c.v = k, v
	c.dupC, c.dupKey = nil, nil
	if k != nil && c.cs.coll.allowDups {
		if nested := c.nestedBucket(); nested != nil {
			c.dupC = nested.Cursor()
			if dupFirst {
				c.dupKey, _ = c.dupC.First()
			} else {
				c.dupKey, _ = c.dupC.Last()
			}
		}
	}
	return k != nil
}

func (c *Cursor) nestedBucket() *bbolt.Bucket {
	if !c.cs.coll.allowDups || c.k == nil {
		return nil
	}
	top := c.cs.coll.bucket(c.cs.snap.btx)
	if top == nil {
		return nil
	}
	return top.Bucket(c.k)
}

// first/last/match below are the bounded-scan primitives, adapted from the
// teacher's scan.go RawRange onto *bbolt.Cursor directly (bbolt has no
// SeekLast, so the upper-bound path seeks forward then steps back one).

func (r *rawBoundedRange) first(bc *bbolt.Cursor) ([]byte, []byte) {
	var k, v []byte
	if r.lower != nil {
		k, v = bc.Seek(r.lower)
		if k != nil && !r.lowerInc && bytes.Equal(k, r.lower) {
			k, v = bc.Next()
		}
	} else {
		k, v = bc.First()
	}
	if k != nil && !r.match(k) {
		return nil, nil
	}
	return k, v
}

func (r *rawBoundedRange) last(bc *bbolt.Cursor) ([]byte, []byte) {
	var k, v []byte
	if r.upper != nil {
		k, v = seekLast(bc, r.upper)
		if k != nil && !r.upperInc && bytes.Equal(k, r.upper) {
			k, v = bc.Prev()
		}
	} else {
		k, v = bc.Last()
	}
	if k != nil && !r.match(k) {
		return nil, nil
	}
	return k, v
}

// seekLast finds the last key <= target: bbolt's Seek finds the first key
// >= target, so we seek and step back if we overshot.
func seekLast(bc *bbolt.Cursor, target []byte) ([]byte, []byte) {
	k, v := bc.Seek(target)
	if k == nil {
		return bc.Last()
	}
	if !bytes.Equal(k, target) {
		return bc.Prev()
	}
	return k, v
}

func (r *rawBoundedRange) match(k []byte) bool {
	if r.lower != nil {
		cmp := bytes.Compare(k, r.lower)
		if cmp < 0 || (cmp == 0 && !r.lowerInc) {
			return false
		}
	}
	if r.upper != nil {
		cmp := bytes.Compare(k, r.upper)
		if cmp > 0 || (cmp == 0 && !r.upperInc) {
			return false
		}
	}
	return true
}
