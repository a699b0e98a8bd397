package edb

import (
	"sync"

	"go.etcd.io/bbolt"
)

// Op classifies a change-hook invocation — spec.md §4.4.
type Op int

const (
	OpNone Op = iota
	OpPut
	OpDelete
)

// ChangeHook observes every single-entry mutation on a Collection. Hooks
// run synchronously, in reverse-registration order (last registered runs
// first), inside the transaction that caused the change — spec.md §4.4.
// oldValue is nil for inserts, newValue is nil for deletes.
type ChangeHook func(tx *Transaction, op Op, key Key, oldValue, newValue ValueView, flags PutFlags)

// changeHookNode is one link of the collection's change-hook chain
// (spec.md §9 "Change-hook chain"): a singly-linked list, last-registered
// first, the same shape as the teacher's own per-collection hook list —
// generalized here from a row-oriented callback (change.go's Change
// struct) to the byte-oriented (key, old, new) shape CRUD works with.
type changeHookNode struct {
	hook    ChangeHook
	next    *changeHookNode
	cleared bool // tombstone: breaks the cycle when an owning Index is deleted
}

// Collection is a named, ordered key→value namespace — spec.md §3.
type Collection struct {
	db   *Database
	name string

	keySort   KeySort
	valueSort ValueSort
	allowDups bool

	initialized bool

	hooksMu sync.Mutex
	hooks   *changeHookNode
}

// CollectionFlags mirror spec.md §4.6's {Create, AllowDuplicates} open
// flags and the Incompatible-on-mismatch reopen rule of spec.md §3.
type CollectionFlags struct {
	Create          bool
	AllowDuplicates bool
}

// OpenCollection opens (optionally creating) a named collection within
// tx, enforcing spec.md §3's invariants:
//   - allow_duplicates implies value_sort != opaque-blob, and vice versa;
//   - reopening with a mismatched key/value sort fails with Incompatible;
//   - at most one instance of a given Collection per open Database.
//
// The sort kinds are not persisted: the mismatch check only compares
// against a Collection already opened through this Database, so the first
// open of an existing bucket in a process accepts whatever sorts it is given.
func OpenCollection(tx *Transaction, name string, keySort KeySort, valueSort ValueSort, flags CollectionFlags) (*Collection, error) {
	if flags.AllowDuplicates && valueSort == ValueOpaque {
		return nil, errIncompatible("collection %q: allow_duplicates requires a non-opaque value sort", name)
	}
	if !flags.AllowDuplicates && valueSort != ValueOpaque {
		return nil, errIncompatible("collection %q: value sort %s requires allow_duplicates", name, valueSort)
	}

	if existing, ok := tx.db.lookupCollection(name); ok {
		if existing.keySort != keySort || existing.valueSort != valueSort || existing.allowDups != flags.AllowDuplicates {
			return nil, errIncompatible("collection %q: reopened with a different key/value sort", name)
		}
		return existing, nil
	}

	btx := tx.btx
	var bucket *bbolt.Bucket
	var err error
	initialized := true
	if flags.Create {
		existed := btx.Bucket([]byte(name)) != nil
		bucket, err = btx.CreateBucketIfNotExists([]byte(name))
		initialized = existed
	} else {
		bucket = btx.Bucket([]byte(name))
		if bucket == nil {
			return nil, errEngine(bbolt.ErrBucketNotFound, "collection %q does not exist", name)
		}
	}
	if err != nil {
		return nil, errEngine(err, "opening collection %q", name)
	}

	c := &Collection{
		db:          tx.db,
		name:        name,
		keySort:     keySort,
		valueSort:   valueSort,
		allowDups:   flags.AllowDuplicates,
		initialized: initialized,
	}
	if err := tx.db.registerCollection(c); err != nil {
		return nil, err
	}
	if !initialized {
		// The bucket didn't exist before this transaction, so its creation
		// rolls back with the transaction; keep the in-memory registry in
		// sync by forgetting c too if tx aborts. See tx.go finishWrite.
		tx.pendingNew = append(tx.pendingNew, c)
	}
	return c, nil
}

func (c *Collection) Name() string           { return c.name }
func (c *Collection) KeySort() KeySort       { return c.keySort }
func (c *Collection) ValueSort() ValueSort   { return c.valueSort }
func (c *Collection) AllowsDuplicates() bool { return c.allowDups }
func (c *Collection) WasInitialized() bool   { return c.initialized }
func (c *Collection) Database() *Database    { return c.db }

// AddChangeHook registers hook, returning a handle usable to clear it
// later (Index uses this to break the Index↔Collection cycle on
// deletion, per spec.md §9 "Cycles").
func (c *Collection) AddChangeHook(hook ChangeHook) *changeHookNode {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	node := &changeHookNode{hook: hook, next: c.hooks}
	c.hooks = node
	return node
}

func (node *changeHookNode) clear() {
	node.cleared = true
}

// fireChangeHooks invokes every live hook in reverse-registration order.
// A failing hook is trapped and logged, not propagated — spec.md §9's
// "source swallows and logs a stack trace" choice, see DESIGN.md Open
// Questions.
func (c *Collection) fireChangeHooks(tx *Transaction, op Op, key Key, oldValue, newValue ValueView, flags PutFlags) {
	c.hooksMu.Lock()
	node := c.hooks
	c.hooksMu.Unlock()

	for n := node; n != nil; n = n.next {
		if n.cleared {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					tx.db.logger.Error("edb: change hook panicked",
						"collection", c.name, "recover", r)
				}
			}()
			n.hook(tx, op, key, oldValue, newValue, flags)
		}()
	}
}

func (c *Collection) bucket(btx *bbolt.Tx) *bbolt.Bucket {
	return btx.Bucket([]byte(c.name))
}
