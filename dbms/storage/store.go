// Package storage persists B-tree units. A storage location holds one
// durable unit per node, addressed by a NodeID the store hands out, plus one
// metadata unit. Stores know nothing about the unit encoding.
//
// Backends:
//
//	dir     one file per node inside a directory, replaced via rename
//	pebble  a pebble LSM database, one key per node
//	sqlite  a single SQLite file with a nodes table
//	pages   a single page file, one 4 KB page per node
//	memory  process-local, for tests and benchmarks
//
// Missing units are reported as errs.ErrCorruptIndex, failed reads and writes
// as errs.ErrIO, failures to set up a location as errs.ErrStorageInit.
package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/logging"
)

// NodeID names a node unit. It is stable for the node's lifetime and unique
// within a storage location.
type NodeID string

// Store is the persistence abstraction used by the tree.
type Store interface {
	// Allocate reserves a fresh NodeID. Nothing is readable under it until
	// the first WriteNode.
	Allocate() (NodeID, error)
	ReadNode(id NodeID) ([]byte, error)
	// WriteNode fully replaces the unit stored under id before returning.
	WriteNode(id NodeID, unit []byte) error
	ReadMeta() ([]byte, error)
	WriteMeta(unit []byte) error
	Kind() Kind
	Close() error
}

type Kind string

const (
	KindDir    Kind = "dir"
	KindPebble Kind = "pebble"
	KindSQLite Kind = "sqlite"
	KindPages  Kind = "pages"
	KindMemory Kind = "memory"
)

// Kinds lists the path-addressable backends.
var Kinds = []Kind{KindDir, KindPebble, KindSQLite, KindPages}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDir, KindPebble, KindSQLite, KindPages, KindMemory:
		return k, nil
	case "":
		return KindDir, nil
	default:
		return "", errs.StorageInitf("storage: unknown backend %q", s)
	}
}

type Options struct {
	// NoSync lets unit writes return before they reach stable storage. By
	// default every write is forced to disk before it returns.
	NoSync bool
	// CacheBytes > 0 puts a read cache of encoded units in front of the store.
	CacheBytes int64
	// PageCache is the number of pages the pages backend keeps in its page cache.
	PageCache int
	Logger    *logging.Logger
}

func (o *Options) logger() *logging.Logger {
	if o == nil || o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

func (o *Options) sync() bool { return o == nil || !o.NoSync }

func (o *Options) pageCache() int {
	if o == nil || o.PageCache <= 0 {
		return 64
	}
	return o.PageCache
}

// Create initializes a new storage location of the given kind. The location
// must not already exist.
func Create(kind Kind, location string, opts *Options) (Store, error) {
	var (
		st  Store
		err error
	)
	switch kind {
	case KindDir:
		st, err = CreateDir(location, opts)
	case KindPebble:
		st, err = CreatePebble(location, opts)
	case KindSQLite:
		st, err = CreateSQLite(location, opts)
	case KindPages:
		st, err = CreatePages(location, opts)
	default:
		return nil, errs.StorageInitf("storage: backend %q cannot be created at a path", kind)
	}
	if err != nil {
		return nil, err
	}
	opts.logger().Infof("created %s store at %s", kind, location)
	return withCache(st, opts)
}

// Open opens an existing storage location of the given kind.
func Open(kind Kind, location string, opts *Options) (Store, error) {
	var (
		st  Store
		err error
	)
	switch kind {
	case KindDir:
		st, err = OpenDir(location, opts)
	case KindPebble:
		st, err = OpenPebble(location, opts)
	case KindSQLite:
		st, err = OpenSQLite(location, opts)
	case KindPages:
		st, err = OpenPages(location, opts)
	default:
		return nil, errs.Corruptf("storage: backend %q cannot be opened from a path", kind)
	}
	if err != nil {
		return nil, err
	}
	opts.logger().Infof("opened %s store at %s", kind, location)
	return withCache(st, opts)
}

func withCache(st Store, opts *Options) (Store, error) {
	if opts == nil || opts.CacheBytes <= 0 {
		return st, nil
	}
	c, err := NewCached(st, opts.CacheBytes)
	if err != nil {
		st.Close()
		return nil, err
	}
	return c, nil
}

// DiskUsage sums the sizes of every file making up a storage location,
// including sibling files such as SQLite's -wal and -shm.
func DiskUsage(location string) (int64, error) {
	var total int64
	info, err := os.Stat(location)
	if err != nil {
		return 0, errs.IO(err, "storage: stat %s", location)
	}
	if !info.IsDir() {
		total = info.Size()
		siblings, _ := filepath.Glob(location + "-*")
		for _, s := range siblings {
			if si, err := os.Stat(s); err == nil {
				total += si.Size()
			}
		}
		return total, nil
	}
	err = filepath.WalkDir(location, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	if err != nil {
		return 0, errs.IO(err, "storage: walk %s", location)
	}
	return total, nil
}

func mustNotExist(location string) error {
	_, err := os.Stat(location)
	if err == nil {
		return errs.StorageInitf("storage: %s already exists", location)
	}
	if !os.IsNotExist(err) {
		return errs.StorageInit(err, "storage: stat %s", location)
	}
	return nil
}

func mustExist(location string) error {
	if _, err := os.Stat(location); err != nil {
		return errs.Corrupt(err, "storage: no index at %s", location)
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
