package edb

import (
	"bytes"
	"sort"
	"sync/atomic"
)

// IndexKeyFunc derives zero or more secondary-index keys from a source
// row's (key, value) — spec.md §4.6. Returning nil or an empty slice
// means the row contributes no entries (a partial index).
type IndexKeyFunc func(key Key, value []byte) []*Collatable

// Index is a secondary index over a source Collection, kept consistent by
// a change hook that diffs the old and new emitted key sets on every
// write — spec.md §4.6 and §9 "Index update-diff", grounded in the
// teacher's encindexkeys.go findRemovedIndexKeys/indexDiffer merge-walk,
// generalized here from "remove only" (old vs already-written new rows)
// to a full symmetric difference over one (source-row, index) pair.
type Index struct {
	source  *Collection
	backing *Collection
	fn      IndexKeyFunc
	hook    *changeHookNode
	updates atomic.Uint64
}

// IndexFlags mirrors CollectionFlags for the backing index collection.
type IndexFlags struct {
	Create bool
}

// OpenIndex opens (optionally creating and rebuilding) a secondary index
// named name over source, keyed by fn. The backing collection lives under
// a literal "index::<source>::<name>" name, following spec.md §4.6.
//
// Indexing a duplicate-keys source collection is not supported: the
// rebuild and change-hook paths below assume one value per source key.
func OpenIndex(tx *Transaction, source *Collection, name string, fn IndexKeyFunc, flags IndexFlags) (*Index, error) {
	if source.allowDups {
		return nil, errIncompatible("index %q: indexing a duplicate-keys collection is not supported", name)
	}
	backingName := "index::" + source.name + "::" + name

	if existing, ok := tx.db.lookupIndex(backingName); ok {
		return existing, nil
	}

	backing, err := OpenCollection(tx, backingName, KeyLexForward, ValueLexForward, CollectionFlags{
		Create: flags.Create, AllowDuplicates: true,
	})
	if err != nil {
		return nil, err
	}

	idx := &Index{source: source, backing: backing, fn: fn}
	if !backing.WasInitialized() {
		if err := idx.rebuild(tx); err != nil {
			return nil, err
		}
	}
	idx.hook = source.AddChangeHook(idx.onChange)
	tx.db.registerIndex(idx)
	if !backing.WasInitialized() {
		tx.pendingNewIndexes = append(tx.pendingNewIndexes, idx)
	}
	return idx, nil
}

// UpdateCount reports how many change-hook invocations have touched this
// index since it was opened in this process — spec.md §4.6's
// "update_count" diagnostic.
func (idx *Index) UpdateCount() uint64 { return idx.updates.Load() }

// Rebuild drops every entry in the backing collection and recomputes it
// from scratch by walking the source collection, reporting progress via
// the database's logger every 10000 rows when Options.Verbose is set — the
// SPEC_FULL.md §4.6 "Index rebuild progress" operation. Unlike the one done automatically by
// OpenIndex on first creation, this can be called at any time, e.g. after
// fn's logic changes.
func (idx *Index) Rebuild(tx *Transaction) error {
	if err := WithTx(idx.backing, tx).DelAll(); err != nil {
		return err
	}
	return idx.rebuild(tx)
}

// Name returns the index's backing collection name.
func (idx *Index) Name() string { return idx.backing.name }

// Backing exposes the index's own collection, letting callers open a
// CollectionSnapshot/CollectionTransaction and a Cursor over it the same
// way they would any other collection — spec.md §4.6/§6.3's "index as a
// regular collection" query path, range-scanned by the Collatable prefix
// emitted by IndexKeyFunc rather than looked up item-by-item via Query.
func (idx *Index) Backing() *Collection { return idx.backing }

// DeleteIndex removes idx's backing collection and detaches its change
// hook from the source collection, breaking the Index→Collection cycle —
// spec.md §9 "Cycles".
func DeleteIndex(tx *Transaction, idx *Index) error {
	idx.hook.clear()
	tx.db.forgetIndex(idx.backing.name)
	return WithTx(idx.backing, tx).DeleteCollection()
}

func (idx *Index) rebuild(tx *Transaction) error {
	b, err := WithTx(idx.source, tx).bucket()
	if err != nil {
		return err
	}
	bc := b.Cursor()
	var n int
	for k, v := bc.First(); k != nil; k, v = bc.Next() {
		if v == nil {
			continue // nested (dup) bucket; source is guaranteed non-dup by OpenIndex
		}
		srcKey := decodeSourceKey(idx.source.keySort, k)
		if err := idx.insertEntries(tx, srcKey, idx.emit(srcKey, v)); err != nil {
			return err
		}
		n++
		if tx.db.verbose && n%10000 == 0 {
			tx.db.logger.Info("edb: rebuilding index", "index", idx.backing.name, "rows", n)
		}
	}
	return nil
}

func (idx *Index) insertEntries(tx *Transaction, srcKey Key, keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	b, err := WithTx(idx.backing, tx).bucket()
	if err != nil {
		return err
	}
	srcRaw := encKey(idx.source, srcKey)
	for _, ik := range keys {
		nested, err := b.CreateBucketIfNotExists(ik)
		if err != nil {
			return errEngine(err, "indexing into %q", idx.backing.name)
		}
		if err := nested.Put(srcRaw, emptyMarker); err != nil {
			return errEngine(err, "indexing into %q", idx.backing.name)
		}
	}
	return nil
}

// onChange is the registered ChangeHook: it diffs what fn emits for
// oldValue against what it emits for newValue and applies only the
// symmetric difference to the backing collection.
func (idx *Index) onChange(tx *Transaction, op Op, key Key, oldValue, newValue ValueView, flags PutFlags) {
	oldKeys := idx.emitView(key, oldValue)
	newKeys := idx.emitView(key, newValue)
	removed, added := diffIndexKeys(oldKeys, newKeys)
	if len(removed) == 0 && len(added) == 0 {
		return
	}

	b, err := WithTx(idx.backing, tx).bucket()
	if err != nil {
		tx.db.logger.Error("edb: index update failed", "index", idx.backing.name, "error", err)
		return
	}
	srcRaw := encKey(idx.source, key)
	for _, ik := range removed {
		nested := b.Bucket(ik)
		if nested == nil {
			continue
		}
		if err := nested.Delete(srcRaw); err != nil {
			tx.db.logger.Error("edb: index entry removal failed", "index", idx.backing.name, "error", err)
			continue
		}
		if nested.Stats().KeyN == 0 {
			_ = b.DeleteBucket(ik)
		}
	}
	for _, ik := range added {
		nested, err := b.CreateBucketIfNotExists(ik)
		if err != nil {
			tx.db.logger.Error("edb: index entry insert failed", "index", idx.backing.name, "error", err)
			continue
		}
		if err := nested.Put(srcRaw, emptyMarker); err != nil {
			tx.db.logger.Error("edb: index entry insert failed", "index", idx.backing.name, "error", err)
		}
	}
	idx.updates.Add(1)
}

func (idx *Index) emit(key Key, rawValue []byte) [][]byte {
	cols := idx.fn(key, rawValue)
	if len(cols) == 0 {
		return nil
	}
	out := make([][]byte, len(cols))
	for i, c := range cols {
		out[i] = append([]byte(nil), c.Bytes()...)
	}
	return out
}

func (idx *Index) emitView(key Key, v ValueView) [][]byte {
	if v.IsNil() {
		return nil
	}
	return idx.emit(key, v.Bytes())
}

// diffIndexKeys splits the before/after emitted key sets into what must
// be removed and what must be added, via the same sorted merge-walk
// pattern as the teacher's findRemovedIndexKeys/indexDiffer, reduced here
// to a single index ordinal (OpenIndex handles one index at a time,
// unlike the teacher's multi-index-per-row sweep).
func diffIndexKeys(oldKeys, newKeys [][]byte) (removed, added [][]byte) {
	sort.Slice(oldKeys, func(i, j int) bool { return bytes.Compare(oldKeys[i], oldKeys[j]) < 0 })
	sort.Slice(newKeys, func(i, j int) bool { return bytes.Compare(newKeys[i], newKeys[j]) < 0 })
	i, j := 0, 0
	for i < len(oldKeys) && j < len(newKeys) {
		c := bytes.Compare(oldKeys[i], newKeys[j])
		switch {
		case c < 0:
			removed = append(removed, oldKeys[i])
			i++
		case c > 0:
			added = append(added, newKeys[j])
			j++
		default:
			i++
			j++
		}
	}
	removed = append(removed, oldKeys[i:]...)
	added = append(added, newKeys[j:]...)
	return
}

func decodeSourceKey(ks KeySort, raw []byte) Key {
	switch ks {
	case KeyNativeInt:
		if len(raw) == 4 {
			return Int32Key(int32(nativeIntFromDisk(raw)))
		}
		return Int64Key(nativeIntFromDisk(raw))
	case KeyLexReverse:
		return BytesKey(complement(nil, raw))
	default:
		return BytesKey(raw)
	}
}

// Query returns every source key indexed under the given item prefix —
// e.g. Query(snap, "alice") for an index on a "last name" field, or
// Query(snap, "alice", 2024) for a compound index — spec.md §4.6.
func (idx *Index) Query(snap *Snapshot, items ...any) ([]Key, error) {
	cs := With(idx.backing, snap)
	b, err := cs.bucket()
	if err != nil {
		return nil, err
	}
	prefix := NewCollatable(items...).Bytes()
	bc := b.Cursor()
	var out []Key
	for k, v := bc.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = bc.Next() {
		if v != nil {
			continue
		}
		nested := b.Bucket(k)
		if nested == nil {
			continue
		}
		dc := nested.Cursor()
		for dk, _ := dc.First(); dk != nil; dk, _ = dc.Next() {
			out = append(out, decodeSourceKey(idx.source.keySort, dk))
		}
	}
	return out, nil
}
