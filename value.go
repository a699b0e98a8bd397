package edb

import "encoding/binary"

// ValueView is an untyped (pointer, length) view into memory mapped by
// bbolt, tagged with the generation of the snapshot/transaction that
// produced it. It is the zero-copy read path of spec.md §3 "Value view".
//
// bbolt already hands back byte slices that alias its mmap and are only
// valid for the lifetime of the transaction that produced them; ValueView
// adds the generation check spec.md §9 calls for so that using one after
// its owner has finished is detected rather than silently reading
// unmapped or reused memory.
type ValueView struct {
	raw  []byte
	gen  uint64
	life *generation
}

// generation is shared by a Snapshot/Transaction and every ValueView it
// hands out; Finish/Commit/Abort bump it so outstanding views fail their
// next access instead of reading through a stale mapping.
type generation struct {
	current uint64
}

func (g *generation) stamp() uint64 { return g.current }
func (g *generation) bump()         { g.current++ }

func newValueView(raw []byte, life *generation) ValueView {
	if raw == nil {
		return ValueView{life: life, gen: life.stamp()}
	}
	return ValueView{raw: raw, gen: life.stamp(), life: life}
}

func (v ValueView) checkLive() {
	if v.life != nil && v.life.stamp() != v.gen {
		panic(errUseAfterFinish())
	}
}

// IsNil reports whether this view represents a missing value (a miss on
// get, or the "old value" of an insert / "new value" of a delete in a
// change-hook callback).
func (v ValueView) IsNil() bool { return v.raw == nil }

// Len returns the byte length of the value, without a liveness check —
// safe to call after the owner has finished, like bbolt's own []byte len.
func (v ValueView) Len() int { return len(v.raw) }

// Bytes returns the zero-copy byte slice. It must not be retained past
// the lifetime of the owning snapshot/transaction, and must not be
// mutated.
func (v ValueView) Bytes() []byte {
	v.checkLive()
	return v.raw
}

// Owned returns an owned copy of the bytes, safe to retain indefinitely.
func (v ValueView) Owned() []byte {
	v.checkLive()
	if v.raw == nil {
		return nil
	}
	out := make([]byte, len(v.raw))
	copy(out, v.raw)
	return out
}

// String returns an owned string conversion.
func (v ValueView) String() string {
	v.checkLive()
	return string(v.raw)
}

// AsInt32 interprets the value as a native-endian 4-byte integer.
func (v ValueView) AsInt32() (int32, error) {
	v.checkLive()
	if len(v.raw) != 4 {
		return 0, errBadValueSize("value is %d bytes, want 4 for int32", len(v.raw))
	}
	return int32(binary.NativeEndian.Uint32(v.raw)), nil
}

// AsInt64 interprets the value as a native-endian 8-byte integer.
func (v ValueView) AsInt64() (int64, error) {
	v.checkLive()
	if len(v.raw) != 8 {
		return 0, errBadValueSize("value is %d bytes, want 8 for int64", len(v.raw))
	}
	return int64(binary.NativeEndian.Uint64(v.raw)), nil
}
