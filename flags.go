package edb

// PutFlags mirrors spec.md §4.4's flag set for put(key, value, flags):
// {Insert, Update, Append, AllDups, NoDupData, AppendDup}. The naming
// follows the canonical engine flag set of spec.md §6.2
// (NoOverwrite/Current/Append/AllDups/NoDupData/AppendDup), which the
// pack's gdbx reference implementation (other_examples/Giulio2002-gdbx)
// also exposes under these exact names — grounding for the constants
// below, though gdbx itself is not a dependency of this module.
type PutFlags uint32

const FlagUpsert PutFlags = 0 // insert or overwrite unconditionally

const (
	// FlagInsert ("NoOverwrite"): fail if the key (or, for dup
	// collections, the exact pair) already exists.
	FlagInsert PutFlags = 1 << iota
	// FlagUpdate ("Current"): fail unless the key already exists.
	FlagUpdate
	// FlagAppend: key must be strictly greater than every existing key.
	FlagAppend
	// FlagAllDups: replace every duplicate value at key with this one.
	FlagAllDups
	// FlagNoDupData: for dup collections, fail if the exact pair exists.
	FlagNoDupData
	// FlagAppendDup: for dup collections, value must be strictly greater
	// than every existing value at key.
	FlagAppendDup
)

func (f PutFlags) has(bit PutFlags) bool { return f&bit != 0 }
