package edb

import "bytes"

// item type ranks, low to high: null < bool < int < string.
const (
	tagNull       byte = 0x00
	tagFalse      byte = 0x01
	tagTrue       byte = 0x02
	tagNegBase    byte = 0x10 // 0x10 + (8 - payloadLen)
	tagPosBase    byte = 0x20 // 0x20 + payloadLen
	tagString     byte = 0x30
	stringTerm    byte = 0x00
)

// Collatable is a heterogeneous, order-preserving byte encoding of a tuple
// of items (null, bool, signed 64-bit integer, or byte string). The
// concatenation of item encodings, compared byte-for-byte, yields the same
// ordering as the semantic tuple ordering — see spec.md §4.2.
//
// The buffer-growth machinery below is the same grow/appendRaw shape the
// teacher's byteutil.go uses; the tag scheme itself is spec-mandated and
// does not resemble the teacher's own length-prefixed tuple format
// (enctuple.go), which is not byte-wise order preserving across mixed
// item types and so cannot serve this purpose.
type Collatable struct {
	buf []byte
}

// NewCollatable returns an empty Collatable, optionally seeded with items.
func NewCollatable(items ...any) *Collatable {
	c := &Collatable{}
	for _, it := range items {
		c.add(it)
	}
	return c
}

func (c *Collatable) add(it any) *Collatable {
	switch v := it.(type) {
	case nil:
		return c.AddNull()
	case bool:
		return c.AddBool(v)
	case string:
		return c.AddString(v)
	case []byte:
		return c.AddBytes(v)
	case int:
		return c.AddInt64(int64(v))
	case int32:
		return c.AddInt64(int64(v))
	case int64:
		return c.AddInt64(v)
	case uint32:
		return c.AddInt64(int64(v))
	case uint64:
		return c.AddInt64(int64(v))
	default:
		panic("edb: Collatable: unsupported item type")
	}
}

// AddNull appends a null item.
func (c *Collatable) AddNull() *Collatable {
	c.buf = append(c.buf, tagNull)
	return c
}

// AddBool appends a boolean item.
func (c *Collatable) AddBool(v bool) *Collatable {
	if v {
		c.buf = append(c.buf, tagTrue)
	} else {
		c.buf = append(c.buf, tagFalse)
	}
	return c
}

// AddInt64 appends a signed 64-bit integer item.
func (c *Collatable) AddInt64(v int64) *Collatable {
	if v < 0 {
		// Big-endian two's complement payload with leading 0xFF bytes
		// suppressed. Fewer suppressed bytes (larger tag) means a number
		// closer to -1, i.e. numerically larger — so tag-byte ordering
		// tracks numeric ordering on the negative side.
		var full [8]byte
		u := uint64(v)
		for i := 0; i < 8; i++ {
			full[i] = byte(u >> (56 - 8*i))
		}
		start := 0
		for start < 7 && full[start] == 0xFF {
			start++
		}
		payload := full[start:]
		c.buf = append(c.buf, tagNegBase+byte(8-len(payload)))
		c.buf = append(c.buf, payload...)
	} else {
		var full [8]byte
		u := uint64(v)
		for i := 0; i < 8; i++ {
			full[i] = byte(u >> (56 - 8*i))
		}
		start := 0
		for start < 8 && full[start] == 0x00 {
			start++
		}
		payload := full[start:]
		c.buf = append(c.buf, tagPosBase+byte(len(payload)))
		c.buf = append(c.buf, payload...)
	}
	return c
}

// AddString appends a string item. The string must not contain an
// embedded NUL byte (0x00); this is a documented precondition of the
// encoding, not a runtime-checked one, matching spec.md §4.2's choice to
// forbid rather than escape.
func (c *Collatable) AddString(s string) *Collatable {
	c.buf = append(c.buf, tagString)
	c.buf = append(c.buf, s...)
	c.buf = append(c.buf, stringTerm)
	return c
}

// AddBytes appends a byte-string item, encoded identically to AddString.
// The bytes must not contain an embedded 0x00.
func (c *Collatable) AddBytes(b []byte) *Collatable {
	c.buf = append(c.buf, tagString)
	c.buf = append(c.buf, b...)
	c.buf = append(c.buf, stringTerm)
	return c
}

// Concat appends another Collatable's encoded bytes in place, producing
// the tuple obtained by concatenating both tuples' items.
func (c *Collatable) Concat(other *Collatable) *Collatable {
	c.buf = append(c.buf, other.buf...)
	return c
}

// Clear empties the Collatable, retaining its backing buffer.
func (c *Collatable) Clear() *Collatable {
	c.buf = c.buf[:0]
	return c
}

// Bytes returns the encoded byte string. The returned slice aliases the
// Collatable's internal buffer and must not be mutated.
func (c *Collatable) Bytes() []byte { return c.buf }

// Len returns the number of items encoded so far. It walks the buffer,
// since item boundaries are not separately tracked.
func (c *Collatable) Len() int {
	n := 0
	rest := c.buf
	for len(rest) > 0 {
		_, next := decodeItem(rest)
		rest = next
		n++
	}
	return n
}

func (c *Collatable) IsEmpty() bool { return len(c.buf) == 0 }

// Cmp performs a byte-wise comparison, which by construction has the same
// sign as the semantic tuple comparison (spec.md §4.2, §8).
func (c *Collatable) Cmp(other *Collatable) int {
	return bytes.Compare(c.buf, other.buf)
}

// Item is one decoded Collatable element.
type Item struct {
	Null  bool
	Bool  bool
	Int   int64
	Str   string
	IsInt bool
	IsStr bool
}

// At returns the i'th item, decoding lazily from the start. Past the end
// of the tuple it returns a sentinel null item, as spec.md §4.2 requires.
func (c *Collatable) At(i int) Item {
	rest := c.buf
	for j := 0; j <= i; j++ {
		if len(rest) == 0 {
			return Item{Null: true}
		}
		it, next := decodeItem(rest)
		if j == i {
			return it
		}
		rest = next
	}
	return Item{Null: true}
}

// Items decodes the whole tuple into a slice.
func (c *Collatable) Items() []Item {
	var out []Item
	rest := c.buf
	for len(rest) > 0 {
		it, next := decodeItem(rest)
		out = append(out, it)
		rest = next
	}
	return out
}

func decodeItem(buf []byte) (Item, []byte) {
	tag := buf[0]
	rest := buf[1:]
	switch {
	case tag == tagNull:
		return Item{Null: true}, rest
	case tag == tagFalse:
		return Item{Bool: false}, rest
	case tag == tagTrue:
		return Item{Bool: true}, rest
	case tag >= tagNegBase && tag < tagNegBase+9:
		payloadLen := 8 - int(tag-tagNegBase)
		payload := rest[:payloadLen]
		rest = rest[payloadLen:]
		var full [8]byte
		for i := range full {
			full[i] = 0xFF
		}
		copy(full[8-payloadLen:], payload)
		var u uint64
		for _, b := range full {
			u = u<<8 | uint64(b)
		}
		return Item{Int: int64(u), IsInt: true}, rest
	case tag >= tagPosBase && tag < tagPosBase+9:
		payloadLen := int(tag - tagPosBase)
		payload := rest[:payloadLen]
		rest = rest[payloadLen:]
		var u uint64
		for _, b := range payload {
			u = u<<8 | uint64(b)
		}
		return Item{Int: int64(u), IsInt: true}, rest
	case tag == tagString:
		end := bytes.IndexByte(rest, stringTerm)
		if end < 0 {
			panic("edb: Collatable: unterminated string item")
		}
		s := string(rest[:end])
		return Item{Str: s, IsStr: true}, rest[end+1:]
	default:
		panic("edb: Collatable: invalid tag byte")
	}
}
