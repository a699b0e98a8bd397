package edb

import (
	"runtime"
	"time"

	"go.etcd.io/bbolt"
)

// Snapshot is a read-only, point-in-time view of the database —
// spec.md §3/§4.3.
type Snapshot struct {
	db        *Database
	btx       *bbolt.Tx
	gen       generation
	finished  bool
	startTime time.Time
}

// Transaction is a read-write view of the database, mutually exclusive
// with any other writer — spec.md §3/§4.3.
type Transaction struct {
	Snapshot
	pendingNew        []*Collection // collections newly created in this tx; see finishWrite
	pendingNewIndexes []*Index      // indexes newly opened (and rebuilt) in this tx
}

// BeginSnapshot opens an engine read transaction, per spec.md §4.3.
func BeginSnapshot(db *Database) (*Snapshot, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	btx, err := db.eng.begin(false)
	if err != nil {
		return nil, err
	}
	db.readerN.Add(1)
	db.txnCount.Add(1)
	db.metricTxns.Inc()
	snap := &Snapshot{db: db, btx: btx, startTime: time.Now()}
	runtime.SetFinalizer(snap, func(s *Snapshot) { s.Finish() })
	return snap, nil
}

// BeginTransaction opens an engine read-write transaction. It blocks
// until any concurrent writer, in any process, finishes — spec.md §4.3/§5.
// bbolt's own Begin(true) already provides the cross-process exclusion
// and the blocking wait; PendingWriterCount/WriterCount here only expose
// that state, the way the teacher's db.go atomics do.
func BeginTransaction(db *Database) (*Transaction, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	db.pendingWriterN.Add(1)
	btx, err := db.eng.begin(true)
	db.pendingWriterN.Add(-1)
	if err != nil {
		return nil, err
	}
	db.writerN.Add(1)
	db.txnCount.Add(1)
	db.metricTxns.Inc()
	tx := &Transaction{Snapshot: Snapshot{db: db, btx: btx, startTime: time.Now()}}
	runtime.SetFinalizer(tx, func(t *Transaction) { t.finishWrite(false) })
	return tx, nil
}

func (s *Snapshot) checkLive() error {
	if s.finished {
		return errUseAfterFinish()
	}
	return nil
}

// Finish ends a read-only snapshot; a no-op if already finished.
func (s *Snapshot) Finish() error {
	if s.finished {
		return nil
	}
	s.finished = true
	s.gen.bump()
	s.db.readerN.Add(-1)
	runtime.SetFinalizer(s, nil)
	if err := s.btx.Rollback(); err != nil && err != bbolt.ErrTxClosed {
		return errEngine(err, "finishing snapshot")
	}
	return nil
}

// Commit commits a transaction, making its writes durable and visible to
// future snapshots. Spec.md §4.3.
func (t *Transaction) Commit() error {
	return t.finishWrite(true)
}

// Abort discards every write made in the transaction. Spec.md §4.3.
func (t *Transaction) Abort() error {
	return t.finishWrite(false)
}

func (t *Transaction) finishWrite(commit bool) error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.gen.bump()
	t.db.writerN.Add(-1)
	runtime.SetFinalizer(t, nil)
	if commit {
		if err := t.btx.Commit(); err != nil {
			return errEngine(err, "committing transaction")
		}
		return nil
	}
	for _, c := range t.pendingNew {
		t.db.forgetCollection(c.name)
	}
	for _, idx := range t.pendingNewIndexes {
		idx.hook.clear()
		t.db.forgetIndex(idx.backing.name)
	}
	if err := t.btx.Rollback(); err != nil && err != bbolt.ErrTxClosed {
		return errEngine(err, "aborting transaction")
	}
	return nil
}

// InSnapshot runs f against a freshly begun Snapshot, auto-finishing it
// on exit even if f panics — spec.md §4.3's in_snapshot helper.
func InSnapshot(db *Database, f func(snap *Snapshot) error) error {
	snap, err := BeginSnapshot(db)
	if err != nil {
		return err
	}
	defer snap.Finish()
	return f(snap)
}

// InTransaction runs f against a freshly begun Transaction, auto-finishing
// (aborting, not committing) it on exit. f must call Commit explicitly to
// persist writes — spec.md §4.3 is explicit that in_transaction "does not
// implicitly commit".
func InTransaction(db *Database, f func(tx *Transaction) error) error {
	tx, err := BeginTransaction(db)
	if err != nil {
		return err
	}
	defer tx.Abort()
	return f(tx)
}

// CollectionSnapshot is a (collection, snapshot) scoped view — spec.md §3.
type CollectionSnapshot struct {
	coll *Collection
	snap *Snapshot
}

// CollectionTransaction is a (collection, transaction) scoped view.
type CollectionTransaction struct {
	CollectionSnapshot
	tx *Transaction
}

// With pairs a Collection with a Snapshot, borrowing from both.
func With(coll *Collection, snap *Snapshot) CollectionSnapshot {
	return CollectionSnapshot{coll: coll, snap: snap}
}

// WithTx pairs a Collection with a Transaction.
func WithTx(coll *Collection, tx *Transaction) CollectionTransaction {
	return CollectionTransaction{CollectionSnapshot: CollectionSnapshot{coll: coll, snap: &tx.Snapshot}, tx: tx}
}

func (cs CollectionSnapshot) Collection() *Collection { return cs.coll }

func (cs CollectionSnapshot) bucket() (*bbolt.Bucket, error) {
	if err := cs.snap.checkLive(); err != nil {
		return nil, err
	}
	b := cs.coll.bucket(cs.snap.btx)
	if b == nil {
		return nil, errEngine(bbolt.ErrBucketNotFound, "collection %q has no bucket", cs.coll.name)
	}
	return b, nil
}

// EntryCount returns the number of entries in the collection, derived
// from bucket stats — spec.md §6.3. For allow_duplicates collections every
// (key, value) pair is one entry.
func (cs CollectionSnapshot) EntryCount() (int, error) {
	b, err := cs.bucket()
	if err != nil {
		return 0, err
	}
	// bbolt's KeyN also counts each nested duplicate bucket's own key in
	// the parent; BucketN-1 is the number of such nested buckets.
	s := b.Stats()
	return s.KeyN - (s.BucketN - 1), nil
}

// LastSequence returns the collection's current sequence counter value,
// per spec.md §4.3.
func (cs CollectionSnapshot) LastSequence() (uint64, error) {
	b, err := cs.bucket()
	if err != nil {
		return 0, err
	}
	return b.Sequence(), nil
}

// NextSequence atomically advances the counter by count, returning the
// first value of the newly reserved range — spec.md §4.3. Visible to
// other snapshots only after commit, since it is ordinary bucket state.
func (ct CollectionTransaction) NextSequence(count uint64) (uint64, error) {
	b, err := ct.bucket()
	if err != nil {
		return 0, err
	}
	first := b.Sequence() + 1
	if err := b.SetSequence(b.Sequence() + count); err != nil {
		return 0, errEngine(err, "advancing sequence for %q", ct.coll.name)
	}
	return first, nil
}

// DelAll empties the collection, keeping its handle — spec.md §4.4. Dup
// collections (and index backing collections, which are always dup
// collections) store each key as a nested bucket, which bbolt rejects as
// the argument to Bucket.Delete; those entries are dropped with
// DeleteBucket instead.
func (ct CollectionTransaction) DelAll() error {
	b, err := ct.bucket()
	if err != nil {
		return err
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.First() {
		if v == nil {
			if err := b.DeleteBucket(k); err != nil {
				return errEngine(err, "clearing %q", ct.coll.name)
			}
			continue
		}
		if err := b.Delete(k); err != nil {
			return errEngine(err, "clearing %q", ct.coll.name)
		}
	}
	return nil
}

// DeleteCollection drops the collection entirely — spec.md §4.4.
func (ct CollectionTransaction) DeleteCollection() error {
	if err := ct.tx.btx.DeleteBucket([]byte(ct.coll.name)); err != nil {
		return errEngine(err, "deleting collection %q", ct.coll.name)
	}
	ct.coll.db.forgetCollection(ct.coll.name)
	return nil
}
