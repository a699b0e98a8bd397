package edb

// KeyKind tags which concrete shape a Key carries. CRUD operations
// accept keys and values "shaped from: byte slice, string, 32-bit int,
// 64-bit int, or a no-data sentinel" per spec.md §4.4.
type KeyKind int

const (
	KindBytes KeyKind = iota
	KindString
	KindInt32
	KindInt64
	KeyKindNone // "no data" — used as a put value meaning delete, and as an open cursor bound
)

// Key is a typed, immutable key or value shape passed into CRUD and
// Cursor operations. Construct one with BytesKey/StringKey/Int32Key/
// Int64Key, or use NoKey for "no data".
type Key struct {
	kind  KeyKind
	bytes []byte
	i64   int64
}

func BytesKey(b []byte) Key  { return Key{kind: KindBytes, bytes: b} }
func StringKey(s string) Key { return Key{kind: KindString, bytes: []byte(s)} }
func Int32Key(v int32) Key   { return Key{kind: KindInt32, i64: int64(v)} }
func Int64Key(v int64) Key   { return Key{kind: KindInt64, i64: v} }

// NoKey is the "no data" sentinel: as a Put value it means delete the key;
// as a Cursor bound it means "open" (unbounded) on that side.
var NoKey = Key{kind: KeyKindNone}

func (k Key) Kind() KeyKind { return k.kind }
func (k Key) IsNone() bool  { return k.kind == KeyKindNone }

// Bytes returns the byte-string representation used for lex-ordered
// collections. It panics for KindInt32/KindInt64 — those are handled by
// the native-integer path in sortkind.go, which needs the numeric value,
// not a byte rendering of it.
func (k Key) Bytes() []byte {
	switch k.kind {
	case KindBytes, KindString:
		return k.bytes
	default:
		panic("edb: Key.Bytes: not a byte/string key")
	}
}

func (k Key) Int64() int64 {
	switch k.kind {
	case KindInt32, KindInt64:
		return k.i64
	default:
		panic("edb: Key.Int64: not an integer key")
	}
}

func (k Key) isInt32() bool { return k.kind == KindInt32 }
