package edb

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Geometry mirrors spec.md §3 "Database" geometry: minimum size, maximum
// size, growth step, shrink threshold, page size. bbolt auto-grows its
// mmap and exposes neither a fixed upper bound nor a growth-step knob, so
// only InitialMmapSize is wired onto bbolt.Options; the other fields are
// neither stored nor enforced — documented in SPEC_FULL.md §3.
type Geometry struct {
	LowerBound      int64
	UpperBound      int64
	GrowthStep      int64
	ShrinkThreshold int64
	PageSize        int
	InitialMmapSize int
}

// Options configures Open, in the style of the teacher's db.go Options.
type Options struct {
	Logger         *slog.Logger
	Verbose        bool
	IsTesting      bool
	NoSubdir       bool
	ReadOnly       bool
	MaxCollections int
	Geometry       Geometry
	// OpenTimeout bounds how long Open waits for the file lock; zero
	// (the default) blocks indefinitely, matching bbolt's own behavior.
	OpenTimeout time.Duration
}

// Database is a durable, file-backed collection store. See spec.md §3.
type Database struct {
	eng     *engine
	logger  *slog.Logger
	verbose bool
	maxColl int

	mu          sync.Mutex
	collections map[string]*Collection
	indexes     map[string]*Index
	closed      atomic.Bool

	readCount      atomic.Uint64
	writeCount     atomic.Uint64
	txnCount       atomic.Uint64
	readerN        atomic.Int64
	writerN        atomic.Int64
	pendingWriterN atomic.Int64

	metricReads  *metrics.Counter
	metricWrites *metrics.Counter
	metricTxns   *metrics.Counter
}

// ReaderCount, WriterCount and PendingWriterCount report live concurrency
// state, in the style of the teacher's db.go atomic counters.
func (db *Database) ReaderCount() int64        { return db.readerN.Load() }
func (db *Database) WriterCount() int64        { return db.writerN.Load() }
func (db *Database) PendingWriterCount() int64 { return db.pendingWriterN.Load() }

// Open creates or opens a database file. See spec.md §4.1.
func Open(path string, opt Options) (*Database, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxColl := opt.MaxCollections
	if maxColl <= 0 {
		maxColl = 1 << 20
	}

	eng, err := openEngine(path, 0666, opt.Geometry, opt)
	if err != nil {
		return nil, err
	}

	db := &Database{
		eng:         eng,
		logger:      logger,
		verbose:     opt.Verbose,
		maxColl:     maxColl,
		collections: make(map[string]*Collection),
		indexes:     make(map[string]*Index),
	}
	db.metricReads = metrics.GetOrCreateCounter(`edb_reads_total{path=` + quoteLabel(path) + `}`)
	db.metricWrites = metrics.GetOrCreateCounter(`edb_writes_total{path=` + quoteLabel(path) + `}`)
	db.metricTxns = metrics.GetOrCreateCounter(`edb_txns_total{path=` + quoteLabel(path) + `}`)

	return db, nil
}

func (db *Database) checkOpen() error {
	if db.closed.Load() {
		return errClosed()
	}
	return nil
}

// Close releases the engine handle. Any operation on derived objects
// afterwards raises Closed, per spec.md §4.1.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.eng.close()
}

func (db *Database) Path() string          { return db.eng.path() }
func (db *Database) IsReadOnly() bool      { return db.eng.isReadOnly() }
func (db *Database) Logger() *slog.Logger  { return db.logger }

// Stats returns point-in-time engine statistics, per spec.md §4.1.
func (db *Database) Stats() Stat {
	db.mu.Lock()
	n := len(db.collections)
	db.mu.Unlock()
	return db.eng.stat(n)
}

// CopyTo creates a consistent copy of the database file, optionally
// compacting it, per spec.md §4.1.
func (db *Database) CopyTo(path string, compact bool) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.eng.copyTo(path, 0666, compact)
}

func (db *Database) registerCollection(c *Collection) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if existing, ok := db.collections[c.name]; ok {
		return errIncompatible("collection %q is already tracked by a different handle", existing.name)
	}
	if len(db.collections) >= db.maxColl {
		return errEngine(nil, "collection cap (%d) reached", db.maxColl)
	}
	db.collections[c.name] = c
	return nil
}

func (db *Database) lookupCollection(name string) (*Collection, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.collections[name]
	return c, ok
}

func (db *Database) forgetCollection(name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.collections, name)
}

func (db *Database) lookupIndex(name string) (*Index, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	idx, ok := db.indexes[name]
	return idx, ok
}

func (db *Database) registerIndex(idx *Index) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.indexes[idx.backing.name] = idx
}

func (db *Database) forgetIndex(name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.indexes, name)
}
