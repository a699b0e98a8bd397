package edb

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// KeyView is a zero-copy view of a key, with the same lifetime discipline
// as ValueView. Many collections' keys need no transform to read back
// (LexForward/opaque), in which case KeyView aliases mmap directly.
type KeyView = ValueView

func encKey(c *Collection, key Key) []byte { return encodeKey(c.keySort, key) }

// decKeyView wraps a raw on-disk key back into caller-facing bytes. For
// KeyLexReverse it must allocate (complement is not safe to do in place
// over mmap'd, read-only pages); for KeyNativeInt the logical value is an
// integer, not bytes, so callers should use KeyNativeValue instead.
func decKeyView(c *Collection, raw []byte, life *generation) KeyView {
	if raw == nil {
		return newValueView(nil, life)
	}
	if c.keySort == KeyLexReverse {
		return newValueView(complement(nil, raw), life)
	}
	return newValueView(raw, life)
}

// KeyNativeValue decodes a KeyNativeInt collection's raw on-disk key back
// into a native int64 (narrow to int32 yourself if the collection was
// declared with 4-byte keys).
func KeyNativeValue(raw []byte) int64 { return nativeIntFromDisk(raw) }

func dupSubBucket(b *bbolt.Bucket, keyRaw []byte, create bool) (*bbolt.Bucket, error) {
	if create {
		return b.CreateBucketIfNotExists(keyRaw)
	}
	return b.Bucket(keyRaw), nil
}

// Get returns the zero-copy value at key, or a nil ValueView on miss —
// spec.md §4.4. For dup collections this returns the first (smallest)
// duplicate value.
func (cs CollectionSnapshot) Get(key Key) (ValueView, error) {
	b, err := cs.bucket()
	if err != nil {
		return ValueView{}, err
	}
	raw := encKey(cs.coll, key)
	if cs.coll.allowDups {
		sub, _ := dupSubBucket(b, raw, false)
		if sub == nil {
			return newValueView(nil, &cs.snap.gen), nil
		}
		k, _ := sub.Cursor().First()
		return cs.decodeDupValueView(k), nil
	}
	v := b.Get(raw)
	return newValueView(v, &cs.snap.gen), nil
}

// GetCallback calls cb with the zero-copy value bytes if key is present,
// and reports whether it was present — spec.md §4.4 "get(key, callback)".
func (cs CollectionSnapshot) GetCallback(key Key, cb func(value []byte)) (bool, error) {
	v, err := cs.Get(key)
	if err != nil {
		return false, err
	}
	if v.IsNil() {
		return false, nil
	}
	cb(v.Bytes())
	return true, nil
}

// GetGreaterOrEqual returns the smallest key >= key and its value, both
// empty views on miss — spec.md §4.4.
func (cs CollectionSnapshot) GetGreaterOrEqual(key Key) (KeyView, ValueView, error) {
	b, err := cs.bucket()
	if err != nil {
		return KeyView{}, ValueView{}, err
	}
	target := encKey(cs.coll, key)
	c := b.Cursor()
	k, v := c.Seek(target)
	if k == nil {
		return newValueView(nil, &cs.snap.gen), newValueView(nil, &cs.snap.gen), nil
	}
	if cs.coll.allowDups {
		sub, _ := dupSubBucket(b, k, false)
		firstVal, _ := sub.Cursor().First()
		return decKeyView(cs.coll, k, &cs.snap.gen), cs.decodeDupValueView(firstVal), nil
	}
	return decKeyView(cs.coll, k, &cs.snap.gen), newValueView(v, &cs.snap.gen), nil
}

func (cs CollectionSnapshot) decodeDupValueView(raw []byte) ValueView {
	if raw == nil {
		return newValueView(nil, &cs.snap.gen)
	}
	if cs.coll.valueSort == ValueLexReverse {
		return newValueView(complement(nil, raw), &cs.snap.gen)
	}
	return newValueView(raw, &cs.snap.gen)
}

// --- writes ---

// Put upserts key→value; if value is NoKey, it deletes the key instead —
// spec.md §4.4.
func (ct CollectionTransaction) Put(key, value Key) error {
	if value.IsNone() {
		_, err := ct.Del(key)
		return err
	}
	_, err := ct.putFlags(key, value, FlagUpsert)
	return err
}

// Insert inserts key→value only if absent (for dup collections, only if
// the exact pair is absent). Returns false, not an error, if refused.
func (ct CollectionTransaction) Insert(key, value Key) (bool, error) {
	return ct.putFlags(key, value, FlagInsert)
}

// Update replaces key's value only if key is present. Returns false if
// absent.
func (ct CollectionTransaction) Update(key, value Key) (bool, error) {
	return ct.putFlags(key, value, FlagUpdate)
}

// UpdateAndGet is Update, additionally returning the owned old value
// (empty if key was absent).
func (ct CollectionTransaction) UpdateAndGet(key, value Key) ([]byte, error) {
	old, err := ct.Get(key)
	if err != nil {
		return nil, err
	}
	oldOwned := old.Owned()
	ok, err := ct.Update(key, value)
	if err != nil || !ok {
		return nil, err
	}
	return oldOwned, nil
}

// Append writes key→value, requiring key to be strictly greater than
// every existing key; otherwise raises KeyMismatch.
func (ct CollectionTransaction) Append(key, value Key) error {
	_, err := ct.putFlags(key, value, FlagAppend)
	return err
}

// PutWithFlags is the full flag-aware writer of spec.md §4.4. Soft
// failures (KeyExist/NotFound/MultipleValues) collapse to false; other
// failures raise.
func (ct CollectionTransaction) PutWithFlags(key, value Key, flags PutFlags) (bool, error) {
	return ct.putFlags(key, value, flags)
}

func (ct CollectionTransaction) putFlags(key, value Key, flags PutFlags) (bool, error) {
	b, err := ct.bucket()
	if err != nil {
		return false, err
	}
	keyRaw := encKey(ct.coll, key)

	if ct.coll.allowDups {
		return ct.putDup(b, key, keyRaw, value, flags)
	}
	return ct.putSingle(b, key, keyRaw, value, flags)
}

func (ct CollectionTransaction) putSingle(b *bbolt.Bucket, key Key, keyRaw []byte, value Key, flags PutFlags) (bool, error) {
	// FlagAllDups/FlagNoDupData/FlagAppendDup only make sense against a
	// collection with a duplicate-values state to check — spec.md §7's
	// "flag incompatible with dup-key collection state" collapses to
	// false here, the same soft-failure shape as FlagInsert/FlagUpdate
	// mismatches below, rather than silently ignoring the flag.
	if flags.has(FlagAllDups | FlagNoDupData | FlagAppendDup) {
		return false, nil
	}

	existing := b.Get(keyRaw)
	exists := existing != nil

	if flags.has(FlagInsert) && exists {
		return false, nil
	}
	if flags.has(FlagUpdate) && !exists {
		return false, nil
	}
	if flags.has(FlagAppend) {
		last, _ := b.Cursor().Last()
		if last != nil && bytes.Compare(keyRaw, last) <= 0 {
			return false, errKeyMismatch("append key must be greater than every existing key")
		}
	}

	valueRaw := ct.encodeOpaqueValue(value)

	var oldView ValueView
	hasHooks := ct.coll.hooks != nil
	if hasHooks && exists {
		oldOwned := append([]byte(nil), existing...)
		oldView = newValueView(oldOwned, &ct.snap.gen)
	} else {
		oldView = newValueView(nil, &ct.snap.gen)
	}

	if err := b.Put(keyRaw, valueRaw); err != nil {
		return false, errEngine(err, "put into %q", ct.coll.name)
	}
	newView := newValueView(valueRaw, &ct.snap.gen)
	if hasHooks {
		ct.coll.fireChangeHooks(ct.tx, OpPut, key, oldView, newView, flags)
	}
	ct.tx.db.writeCount.Add(1)
	ct.tx.db.metricWrites.Inc()
	return true, nil
}

func (ct CollectionTransaction) encodeOpaqueValue(value Key) []byte {
	switch ct.coll.valueSort {
	case ValueOpaque, ValueLexForward, ValueFixed:
		return value.Bytes()
	case ValueLexReverse:
		return complement(nil, value.Bytes())
	case ValueNativeInt:
		width := 8
		if value.isInt32() {
			width = 4
		}
		return nativeIntOnDisk(value.Int64(), width)
	default:
		panic("edb: unknown value sort")
	}
}

func (ct CollectionTransaction) putDup(b *bbolt.Bucket, key Key, keyRaw []byte, value Key, flags PutFlags) (bool, error) {
	valRaw := encodeDupValue(ct.coll.valueSort, value)

	sub, err := dupSubBucket(b, keyRaw, false)
	if err != nil {
		return false, errEngine(err, "opening duplicate bucket for %q", ct.coll.name)
	}

	if flags.has(FlagAppend) {
		last, _ := b.Cursor().Last()
		if last != nil && bytes.Compare(keyRaw, last) <= 0 {
			return false, errKeyMismatch("append key must be greater than every existing key")
		}
	}

	var existedPair bool
	if sub != nil {
		existedPair = sub.Get(valRaw) != nil
	}

	if flags.has(FlagInsert) && existedPair {
		return false, nil
	}
	if flags.has(FlagNoDupData) && existedPair {
		return false, nil
	}
	if flags.has(FlagUpdate) && sub == nil {
		return false, nil
	}
	if flags.has(FlagAppendDup) && sub != nil {
		last, _ := sub.Cursor().Last()
		if last != nil && bytes.Compare(valRaw, last) <= 0 {
			return false, errKeyMismatch("append-dup value must be greater than every existing value at key")
		}
	}

	hasHooks := ct.coll.hooks != nil
	var oldView ValueView
	if hasHooks {
		if sub != nil {
			if first, _ := sub.Cursor().First(); first != nil {
				oldView = newValueView(append([]byte(nil), first...), &ct.snap.gen)
			} else {
				oldView = newValueView(nil, &ct.snap.gen)
			}
		} else {
			oldView = newValueView(nil, &ct.snap.gen)
		}
	}

	if flags.has(FlagAllDups) && sub != nil {
		if err := b.DeleteBucket(keyRaw); err != nil && err != bbolt.ErrBucketNotFound {
			return false, errEngine(err, "clearing duplicates for key in %q", ct.coll.name)
		}
		sub = nil
	}

	sub, err = dupSubBucket(b, keyRaw, true)
	if err != nil {
		return false, errEngine(err, "creating duplicate bucket for %q", ct.coll.name)
	}
	if err := sub.Put(valRaw, emptyMarker); err != nil {
		return false, errEngine(err, "put duplicate into %q", ct.coll.name)
	}

	if hasHooks {
		newView := newValueView(valRaw, &ct.snap.gen)
		ct.coll.fireChangeHooks(ct.tx, OpPut, key, oldView, newView, flags)
	}
	ct.tx.db.writeCount.Add(1)
	ct.tx.db.metricWrites.Inc()
	return true, nil
}

var emptyMarker = []byte{}

// PutReserve reserves value_len bytes and calls fill to populate them in
// place. bbolt has no true zero-copy reservation primitive (unlike the
// abstract engine's Reserve flag in spec.md §6.2); this allocates a plain
// buffer, calls fill, then writes it — see DESIGN.md.
func (ct CollectionTransaction) PutReserve(key Key, valueLen int, flags PutFlags, fill func(buf []byte)) (bool, error) {
	buf := make([]byte, valueLen)
	fill(buf)
	return ct.putFlags(key, BytesKey(buf), flags)
}

// PutDuplicates bulk-inserts count equal-size values from a concatenated
// buffer into a dup-fixed collection. Precondition:
// len(concatenated) % count == 0. Per spec.md §4.4, this path does NOT
// fire change hooks — a documented limitation carried over from the
// source, see DESIGN.md "Open Questions".
func (ct CollectionTransaction) PutDuplicates(key Key, concatenated []byte, count int, flags PutFlags) error {
	if count <= 0 || len(concatenated)%count != 0 {
		return errEngine(nil, "put_duplicates: concatenated length %d not divisible by count %d", len(concatenated), count)
	}
	if !ct.coll.allowDups {
		return errEngine(nil, "put_duplicates requires a duplicate-keys collection")
	}
	b, err := ct.bucket()
	if err != nil {
		return err
	}
	keyRaw := encKey(ct.coll, key)
	sub, err := dupSubBucket(b, keyRaw, true)
	if err != nil {
		return errEngine(err, "creating duplicate bucket for %q", ct.coll.name)
	}
	itemLen := len(concatenated) / count
	for i := 0; i < count; i++ {
		v := concatenated[i*itemLen : (i+1)*itemLen]
		if err := sub.Put(v, emptyMarker); err != nil {
			return errEngine(err, "put_duplicates into %q", ct.coll.name)
		}
	}
	return nil
}

// --- deletes ---

// Del deletes all values at key, reporting whether key existed.
func (ct CollectionTransaction) Del(key Key) (bool, error) {
	b, err := ct.bucket()
	if err != nil {
		return false, err
	}
	keyRaw := encKey(ct.coll, key)

	if ct.coll.allowDups {
		sub := b.Bucket(keyRaw)
		if sub == nil {
			return false, nil
		}
		var oldView ValueView
		if ct.coll.hooks != nil {
			if first, _ := sub.Cursor().First(); first != nil {
				oldView = newValueView(append([]byte(nil), first...), &ct.snap.gen)
			}
		}
		if err := b.DeleteBucket(keyRaw); err != nil {
			return false, errEngine(err, "deleting %q", ct.coll.name)
		}
		if ct.coll.hooks != nil {
			newView := newValueView(nil, &ct.snap.gen)
			ct.coll.fireChangeHooks(ct.tx, OpDelete, key, oldView, newView, 0)
		}
		return true, nil
	}

	existing := b.Get(keyRaw)
	if existing == nil {
		return false, nil
	}
	var oldView ValueView
	if ct.coll.hooks != nil {
		oldView = newValueView(append([]byte(nil), existing...), &ct.snap.gen)
	}
	if err := b.Delete(keyRaw); err != nil {
		return false, errEngine(err, "deleting %q", ct.coll.name)
	}
	if ct.coll.hooks != nil {
		newView := newValueView(nil, &ct.snap.gen)
		ct.coll.fireChangeHooks(ct.tx, OpDelete, key, oldView, newView, 0)
	}
	return true, nil
}

// DelValue deletes only the exact (key, value) pair, for dup collections.
func (ct CollectionTransaction) DelValue(key, value Key) (bool, error) {
	if !ct.coll.allowDups {
		ok, err := ct.Get(key)
		if err != nil {
			return false, err
		}
		if ok.IsNil() || !bytes.Equal(ok.Bytes(), value.Bytes()) {
			return false, nil
		}
		return ct.Del(key)
	}
	b, err := ct.bucket()
	if err != nil {
		return false, err
	}
	keyRaw := encKey(ct.coll, key)
	sub := b.Bucket(keyRaw)
	if sub == nil {
		return false, nil
	}
	valRaw := encodeDupValue(ct.coll.valueSort, value)
	if sub.Get(valRaw) == nil {
		return false, nil
	}
	if ct.coll.hooks != nil {
		oldView := newValueView(append([]byte(nil), valRaw...), &ct.snap.gen)
		if err := sub.Delete(valRaw); err != nil {
			return false, errEngine(err, "deleting duplicate from %q", ct.coll.name)
		}
		newView := newValueView(nil, &ct.snap.gen)
		ct.coll.fireChangeHooks(ct.tx, OpDelete, key, oldView, newView, 0)
	} else if err := sub.Delete(valRaw); err != nil {
		return false, errEngine(err, "deleting duplicate from %q", ct.coll.name)
	}
	if sub.Stats().KeyN == 0 {
		_ = b.DeleteBucket(keyRaw)
	}
	return true, nil
}

// DelAndGet is Del, additionally returning the owned old value (empty if
// key was absent).
func (ct CollectionTransaction) DelAndGet(key Key) ([]byte, error) {
	old, err := ct.Get(key)
	if err != nil {
		return nil, err
	}
	oldOwned := old.Owned()
	existed, err := ct.Del(key)
	if err != nil || !existed {
		return nil, err
	}
	return oldOwned, nil
}
