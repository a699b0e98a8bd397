package edb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// byLastName indexes a "First Last" value by its last name token.
func byLastName(key Key, value []byte) []*Collatable {
	s := string(value)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return []*Collatable{NewCollatable(s[i+1:])}
		}
	}
	return []*Collatable{NewCollatable(s)}
}

func TestIndex_RebuildOnOpenAndQuery(t *testing.T) {
	db := openTestDB(t)

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	people, err := OpenCollection(tx, "people", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	pt := WithTx(people, tx)
	require.NoError(t, pt.Put(StringKey("1"), StringKey("Ada Lovelace")))
	require.NoError(t, pt.Put(StringKey("2"), StringKey("Alan Turing")))
	require.NoError(t, pt.Put(StringKey("3"), StringKey("Grace Hopper")))
	require.NoError(t, tx.Commit())

	tx2, err := BeginTransaction(db)
	require.NoError(t, err)
	people2, err := OpenCollection(tx2, "people", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	idx, err := OpenIndex(tx2, people2, "by_last_name", byLastName, IndexFlags{Create: true})
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	keys, err := idx.Query(snap, "Lovelace")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "1", string(keys[0].Bytes()))

	turingKeys, err := idx.Query(snap, "Turing")
	require.NoError(t, err)
	require.Len(t, turingKeys, 1)
	require.Equal(t, "2", string(turingKeys[0].Bytes()))
}

func TestIndex_StaysConsistentAcrossUpdates(t *testing.T) {
	db := openTestDB(t)

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	people, err := OpenCollection(tx, "people", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	idx, err := OpenIndex(tx, people, "by_last_name", byLastName, IndexFlags{Create: true})
	require.NoError(t, err)

	pt := WithTx(people, tx)
	require.NoError(t, pt.Put(StringKey("1"), StringKey("Ada Lovelace")))
	require.NoError(t, tx.Commit())

	snap1, err := BeginSnapshot(db)
	require.NoError(t, err)
	keys, err := idx.Query(snap1, "Lovelace")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NoError(t, snap1.Finish())

	tx2, err := BeginTransaction(db)
	require.NoError(t, err)
	require.NoError(t, WithTx(people, tx2).Put(StringKey("1"), StringKey("Ada Byron")))
	require.NoError(t, tx2.Commit())

	snap2, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap2.Finish()

	goneKeys, err := idx.Query(snap2, "Lovelace")
	require.NoError(t, err)
	require.Len(t, goneKeys, 0)

	newKeys, err := idx.Query(snap2, "Byron")
	require.NoError(t, err)
	require.Len(t, newKeys, 1)
	require.Greater(t, idx.UpdateCount(), uint64(0))
}

func TestIndex_RebuildRecomputesFromScratch(t *testing.T) {
	db := openTestDB(t)

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	people, err := OpenCollection(tx, "people", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	idx, err := OpenIndex(tx, people, "by_last_name", byLastName, IndexFlags{Create: true})
	require.NoError(t, err)
	pt := WithTx(people, tx)
	require.NoError(t, pt.Put(StringKey("1"), StringKey("Ada Lovelace")))
	require.NoError(t, pt.Put(StringKey("2"), StringKey("Alan Turing")))
	require.NoError(t, tx.Commit())

	tx2, err := BeginTransaction(db)
	require.NoError(t, err)
	require.NoError(t, idx.Rebuild(tx2))
	require.NoError(t, tx2.Commit())

	snap, err := BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	keys, err := idx.Query(snap, "Lovelace")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "1", string(keys[0].Bytes()))

	turingKeys, err := idx.Query(snap, "Turing")
	require.NoError(t, err)
	require.Len(t, turingKeys, 1)
	require.Equal(t, "2", string(turingKeys[0].Bytes()))
}

func TestIndex_DeleteIndexDropsBackingAndHook(t *testing.T) {
	db := openTestDB(t)

	tx, err := BeginTransaction(db)
	require.NoError(t, err)
	people, err := OpenCollection(tx, "people", KeyLexForward, ValueOpaque, CollectionFlags{Create: true})
	require.NoError(t, err)
	idx, err := OpenIndex(tx, people, "by_last_name", byLastName, IndexFlags{Create: true})
	require.NoError(t, err)
	require.NoError(t, WithTx(people, tx).Put(StringKey("1"), StringKey("Ada Lovelace")))
	require.NoError(t, DeleteIndex(tx, idx))
	require.NoError(t, tx.Commit())

	// The put above ran while the index was live, so its hook observed it;
	// DeleteIndex then cleared the hook node and dropped the backing
	// collection in the same tx. A later put must not panic or error even
	// though idx's hook node is cleared.
	tx2, err := BeginTransaction(db)
	require.NoError(t, err)
	require.NoError(t, WithTx(people, tx2).Put(StringKey("2"), StringKey("Alan Turing")))
	require.NoError(t, tx2.Commit())
}
