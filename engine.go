package edb

import (
	"os"
	"time"

	"go.etcd.io/bbolt"
)

// engine binds the abstract primitives of spec.md §6.2 onto bbolt.
//
// Unlike the teacher's storage/storageTx/storageBucket/storageCursor
// interfaces (storage.go), which exist to let andreyvit/edb swap Bolt for
// an in-memory test backend, this layer binds directly to bbolt: spec.md
// §1 already treats the page engine as the opaque, external abstraction
// boundary, so a second Go interface underneath it would just duplicate
// that boundary without adding a real backend swap — see DESIGN.md.
type engine struct {
	bdb *bbolt.DB
}

func openEngine(path string, mode os.FileMode, geo Geometry, opt Options) (*engine, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.OpenTimeout
	bopt.NoSync = opt.IsTesting
	bopt.NoFreelistSync = opt.IsTesting
	bopt.NoGrowSync = opt.NoSubdir
	bopt.ReadOnly = opt.ReadOnly
	if geo.InitialMmapSize > 0 {
		bopt.InitialMmapSize = geo.InitialMmapSize
	}

	bdb, err := bbolt.Open(path, mode, &bopt)
	if err != nil {
		return nil, errEngine(err, "opening %s", path)
	}
	return &engine{bdb: bdb}, nil
}

func (e *engine) close() error {
	if err := e.bdb.Close(); err != nil {
		return errEngine(err, "closing database")
	}
	return nil
}

func (e *engine) begin(writable bool) (*bbolt.Tx, error) {
	btx, err := e.bdb.Begin(writable)
	if err != nil {
		return nil, errEngine(err, "beginning transaction")
	}
	return btx, nil
}

func (e *engine) path() string { return e.bdb.Path() }

func (e *engine) isReadOnly() bool { return e.bdb.IsReadOnly() }

// Stat mirrors a useful subset of bbolt's own stats, per spec.md §4.1.
type Stat struct {
	Size            int64
	PageSize        int
	FreePages       int
	PendingPages    int
	TxnCount        int
	OpenCollections int
}

func (e *engine) stat(openCollections int) Stat {
	s := e.bdb.Stats()
	return Stat{
		Size:            e.sizeLocked(),
		PageSize:        e.bdb.Info().PageSize,
		FreePages:       s.FreePageN,
		PendingPages:    s.PendingPageN,
		TxnCount:        s.TxN,
		OpenCollections: openCollections,
	}
}

func (e *engine) sizeLocked() int64 {
	info, err := os.Stat(e.bdb.Path())
	if err != nil {
		return 0
	}
	return info.Size()
}

// copyTo writes a consistent copy of the database to path, compacting it
// when compact is set, per spec.md §4.1 "copy_to".
func (e *engine) copyTo(path string, mode os.FileMode, compact bool) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return errOS(err, "creating copy destination %s", path)
	}
	defer f.Close()

	return e.bdb.View(func(tx *bbolt.Tx) error {
		if compact {
			dst, err := bbolt.Open(path+".compact.tmp", mode, nil)
			if err != nil {
				return errEngine(err, "opening compact destination")
			}
			defer os.Remove(path + ".compact.tmp")
			if err := compactCopy(dst, tx); err != nil {
				dst.Close()
				return err
			}
			if err := dst.Close(); err != nil {
				return errEngine(err, "closing compact destination")
			}
			return os.Rename(path+".compact.tmp", path)
		}
		if _, err := tx.WriteTo(f); err != nil {
			return errEngine(err, "copying database")
		}
		return nil
	})
}

// compactCopy rewrites every bucket from src into dst bucket-by-bucket and
// key-by-key, which drops free/overflow pages — the "compact" variant of
// copy_to.
func compactCopy(dst *bbolt.DB, src *bbolt.Tx) error {
	return dst.Update(func(dtx *bbolt.Tx) error {
		return src.ForEach(func(name []byte, b *bbolt.Bucket) error {
			db, err := dtx.CreateBucketIfNotExists(name)
			if err != nil {
				return errEngine(err, "creating bucket %s in compact copy", name)
			}
			return copyBucket(db, b)
		})
	})
}

func copyBucket(dst, src *bbolt.Bucket) error {
	c := src.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v == nil {
			sub := src.Bucket(k)
			dsub, err := dst.CreateBucketIfNotExists(k)
			if err != nil {
				return err
			}
			if err := copyBucket(dsub, sub); err != nil {
				return err
			}
			continue
		}
		if err := dst.Put(k, v); err != nil {
			return err
		}
	}
	return nil
}

// EraseMode mirrors spec.md §4.1's erase/delete mode enum.
type EraseMode int

const (
	EraseForce EraseMode = iota
	EraseRequireUnused
	EraseWaitForUnused
)

// Erase removes a database file. Standalone, not tied to an open
// *Database, per spec.md §4.1.
func Erase(path string, mode EraseMode) error {
	switch mode {
	case EraseRequireUnused:
		bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Millisecond})
		if err != nil {
			return errEngine(err, "database is in use")
		}
		bdb.Close()
	case EraseWaitForUnused:
		bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 30 * time.Second})
		if err != nil {
			return errEngine(err, "timed out waiting for database to become unused")
		}
		bdb.Close()
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errOS(err, "erasing %s", path)
	}
	return nil
}

// Delete is an alias of Erase, matching spec.md §4.1's naming of both
// "erase" and "delete" for the same standalone operation.
func Delete(path string, mode EraseMode) error { return Erase(path, mode) }
