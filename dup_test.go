package edb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openDupCollection(t *testing.T, db *Database, name string) *Collection {
	t.Helper()
	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	coll, err := OpenCollection(tx, name, KeyLexForward, ValueLexForward, CollectionFlags{Create: true, AllowDuplicates: true})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return coll
}

func TestDup_InsertAndEnumerate(t *testing.T) {
	db := openTestDB(t)
	coll := openDupCollection(t, db, "tags")

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	ct := WithTx(coll, tx)
	for _, v := range []string{"blue", "red", "green"} {
		ok, err := ct.Insert(StringKey("fruit"), StringKey(v))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, tx.Commit())

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	cur, err := NewCursor(With(coll, snap), NoKey, NoKey, true, true)
	require.NoError(t, err)
	require.True(t, cur.Next())
	require.Equal(t, 3, cur.ValueCount())

	var got []string
	cur.Dups(false)(func(v ValueView) bool {
		got = append(got, v.String())
		return true
	})
	require.Equal(t, []string{"blue", "green", "red"}, got)
}

func TestDup_NoDupDataRejectsExactPair(t *testing.T) {
	db := openTestDB(t)
	coll := openDupCollection(t, db, "tags")

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	ct := WithTx(coll, tx)
	ok, err := ct.PutWithFlags(StringKey("fruit"), StringKey("blue"), FlagNoDupData)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = ct.PutWithFlags(StringKey("fruit"), StringKey("blue"), FlagNoDupData)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, tx.Commit())
}

func TestDup_DelValueRemovesOnlyThatPair(t *testing.T) {
	db := openTestDB(t)
	coll := openDupCollection(t, db, "tags")

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	ct := WithTx(coll, tx)
	_, err = ct.Insert(StringKey("fruit"), StringKey("blue"))
	require.NoError(t, err)
	_, err = ct.Insert(StringKey("fruit"), StringKey("red"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2, err := BeginTransaction(db)
	require.NoError(t, err)
	ct2 := WithTx(coll, tx2)
	ok, err := ct2.DelValue(StringKey("fruit"), StringKey("blue"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tx2.Commit())

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()
	cur, err := NewCursor(With(coll, snap), NoKey, NoKey, true, true)
	require.NoError(t, err)
	require.True(t, cur.Next())
	require.Equal(t, 1, cur.ValueCount())
}

func TestDup_DelAllClearsNestedBuckets(t *testing.T) {
	db := openTestDB(t)
	coll := openDupCollection(t, db, "tags")

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	ct := WithTx(coll, tx)
	_, err = ct.Insert(StringKey("fruit"), StringKey("blue"))
	require.NoError(t, err)
	_, err = ct.Insert(StringKey("veggie"), StringKey("green"))
	require.NoError(t, err)
	require.NoError(t, ct.DelAll())
	require.NoError(t, tx.Commit())

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()
	n, err := With(coll, snap).EntryCount()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestDup_AllDupsReplacesEverything(t *testing.T) {
	db := openTestDB(t)
	coll := openDupCollection(t, db, "tags")

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	ct := WithTx(coll, tx)
	_, err = ct.Insert(StringKey("fruit"), StringKey("blue"))
	require.NoError(t, err)
	_, err = ct.Insert(StringKey("fruit"), StringKey("red"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2, err := BeginTransaction(db)
	require.NoError(t, err)
	ct2 := WithTx(coll, tx2)
	ok, err := ct2.PutWithFlags(StringKey("fruit"), StringKey("green"), FlagAllDups)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tx2.Commit())

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()
	cur, err := NewCursor(With(coll, snap), NoKey, NoKey, true, true)
	require.NoError(t, err)
	require.True(t, cur.Next())
	require.Equal(t, 1, cur.ValueCount())
	require.Equal(t, "green", cur.Value().String())
}
