package edb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.edb")
	db, err := Open(path, Options{IsTesting: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.edb")
	db, err := Open(path, Options{IsTesting: true})
	require.NoError(t, err)
	require.Equal(t, path, db.Path())
	require.NoError(t, db.Close())

	db2, err := Open(path, Options{IsTesting: true})
	require.NoError(t, err)
	defer db2.Close()
	require.Greater(t, db2.Stats().Size, int64(0))
}

func TestDatabase_ClosedOperationsFail(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Close())
	_, err := BeginSnapshot(db)
	require.True(t, IsKind(err, KindClosed))
}

func TestDatabase_PutAndGet(t *testing.T) {
	db := openTestDB(t)

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	coll, err := OpenCollection(tx, "widgets", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	require.False(t, coll.WasInitialized())

	ct := WithTx(coll, tx)
	require.NoError(t, ct.Put(StringKey("a"), StringKey("1")))
	require.NoError(t, tx.Commit())

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	coll2, err := lookupOpenedCollection(db, "widgets")
	require.NoError(t, err)
	cs := With(coll2, snap)
	v, err := cs.Get(StringKey("a"))
	require.NoError(t, err)
	require.Equal(t, "1", v.String())

	miss, err := cs.Get(StringKey("nope"))
	require.NoError(t, err)
	require.True(t, miss.IsNil())
}

// lookupOpenedCollection retrieves a Collection already registered on db
// (tests share one *Database across tx/snapshot, as application code
// would across requests).
func lookupOpenedCollection(db *Database, name string) (*Collection, error) {
	c, ok := db.lookupCollection(name)
	if !ok {
		return nil, errIncompatible("collection %q not open", name)
	}
	return c, nil
}

func TestTransaction_AbortDiscardsWrites(t *testing.T) {
	db := openTestDB(t)

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	coll, err := OpenCollection(tx, "widgets", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	require.NoError(t, WithTx(coll, tx).Put(StringKey("a"), StringKey("1")))
	require.NoError(t, tx.Abort())

	tx2, err := BeginTransaction(db)
	require.NoError(t, err)
	coll2, err := OpenCollection(tx2, "widgets", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	v, err := WithTx(coll2, tx2).Get(StringKey("a"))
	require.NoError(t, err)
	require.True(t, v.IsNil())
	require.NoError(t, tx2.Abort())
}

func TestValueView_UseAfterFinishPanics(t *testing.T) {
	db := openTestDB(t)

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	coll, err := OpenCollection(tx, "widgets", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	require.NoError(t, WithTx(coll, tx).Put(StringKey("a"), StringKey("1")))
	require.NoError(t, tx.Commit())

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	v, err := With(coll, snap).Get(StringKey("a"))
	require.NoError(t, err)
	require.NoError(t, snap.Finish())

	require.Panics(t, func() { v.Bytes() })
}
