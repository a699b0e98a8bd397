package edb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func putStrings(t *testing.T, db *Database, collName string, pairs map[string]string) *Collection {
	t.Helper()
	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	coll, err := OpenCollection(tx, collName, KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	ct := WithTx(coll, tx)
	for k, v := range pairs {
		require.NoError(t, ct.Put(StringKey(k), StringKey(v)))
	}
	require.NoError(t, tx.Commit())
	return coll
}

func collectKeys(t *testing.T, cur *Cursor) []string {
	t.Helper()
	var out []string
	for cur.Next() {
		out = append(out, cur.Key().String())
	}
	return out
}

func collectKeysReverse(t *testing.T, cur *Cursor) []string {
	t.Helper()
	var out []string
	for cur.Prev() {
		out = append(out, cur.Key().String())
	}
	return out
}

func TestCursor_FullForwardScan(t *testing.T) {
	db := openTestDB(t)
	coll := putStrings(t, db, "letters", map[string]string{"a": "1", "b": "2", "c": "3"})

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	cur, err := NewCursor(With(coll, snap), NoKey, NoKey, true, true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, collectKeys(t, cur))
}

func TestCursor_ReverseScan(t *testing.T) {
	db := openTestDB(t)
	coll := putStrings(t, db, "letters", map[string]string{"a": "1", "b": "2", "c": "3"})

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	// Prev(), called on an unpositioned cursor, behaves like Last and then
	// walks backward — no separate reverse-construction flag needed.
	cur, err := NewCursor(With(coll, snap), NoKey, NoKey, true, true)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, collectKeysReverse(t, cur))
}

func TestCursor_InclusiveExclusiveBounds(t *testing.T) {
	db := openTestDB(t)
	coll := putStrings(t, db, "letters", map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"})

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	cur, err := NewCursor(With(coll, snap), StringKey("b"), StringKey("d"), true, false)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, collectKeys(t, cur))

	cur2, err := NewCursor(With(coll, snap), StringKey("b"), StringKey("d"), false, true)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, collectKeys(t, cur2))
}

func TestCursor_ValueAndCount(t *testing.T) {
	db := openTestDB(t)
	coll := putStrings(t, db, "letters", map[string]string{"a": "1"})

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	cur, err := NewCursor(With(coll, snap), NoKey, NoKey, true, true)
	require.NoError(t, err)
	require.True(t, cur.Next())
	require.Equal(t, "1", cur.Value().String())
	require.Equal(t, 1, cur.ValueCount())
	require.Equal(t, 1, cur.ValueLen())
	require.False(t, cur.Next())
}

// TestCursor_SeekAndMixedDirection mirrors spec.md §8 scenario 2: seek to a
// key, seek_exact to a known member, walk backward, then reseek forward —
// exercising the positioning API as mutable state rather than a fixed
// construction-time direction.
func TestCursor_SeekAndMixedDirection(t *testing.T) {
	db := openTestDB(t)
	pairs := map[string]string{}
	for i := 0; i < 30; i++ {
		pairs[fmt.Sprintf("key-%02d", i)] = fmt.Sprintf("v%d", i)
	}
	coll := putStrings(t, db, "seekable", pairs)

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	cur, err := NewCursor(With(coll, snap), NoKey, NoKey, true, true)
	require.NoError(t, err)

	require.True(t, cur.Seek(StringKey("key-1")))
	require.Equal(t, "key-10", cur.Key().String())

	require.True(t, cur.SeekExact(StringKey("key-23")))
	require.Equal(t, "key-23", cur.Key().String())
	require.False(t, cur.OnFirst())
	require.False(t, cur.OnLast())

	require.True(t, cur.Prev())
	require.Equal(t, "key-22", cur.Key().String())

	require.False(t, cur.Seek(StringKey("key-999")))

	require.True(t, cur.First())
	require.True(t, cur.OnFirst())
	require.Equal(t, "key-00", cur.Key().String())
	require.Equal(t, -1, cur.CompareKey(StringKey("key-01")))

	require.True(t, cur.Last())
	require.True(t, cur.OnLast())
	require.Equal(t, "key-29", cur.Key().String())
}
