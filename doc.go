// Package edb is a typed, zero-copy layer over an embedded, memory-mapped,
// ACID key-value store (go.etcd.io/bbolt).
//
// A Database holds any number of named Collections, each an ordered
// key→value namespace with a configurable key sort order (lexicographic,
// reverse-lexicographic, or native integer) and an optional
// duplicate-keys mode with its own value sort order. Reads happen inside
// a Snapshot, writes inside a Transaction; both are zero-copy where
// bbolt's own mmap allows it, with ValueView guarding against use after
// the owning Snapshot/Transaction has finished.
//
// Collections support change hooks, which Index builds on to maintain
// secondary indexes transactionally as rows are written. Collatable
// provides an order-preserving byte encoding for heterogeneous tuples,
// used to build index and compound keys.
package edb
