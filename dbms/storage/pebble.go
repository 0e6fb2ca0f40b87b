package storage

import (
	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

// Key layout inside the pebble keyspace.
var (
	pebbleMetaKey    = []byte("m")
	pebbleNodePrefix = []byte("n/")
)

// PebbleStore keeps node units as pebble keys. Pebble's WAL gives every
// single-unit write atomicity; multi-unit splits are still not atomic.
type PebbleStore struct {
	db *pebble.DB
	wo *pebble.WriteOptions
}

// CreatePebble creates a new pebble database at dir, which must not exist.
func CreatePebble(dir string, opts *Options) (*PebbleStore, error) {
	if err := mustNotExist(dir); err != nil {
		return nil, err
	}
	db, err := pebble.Open(dir, &pebble.Options{
		ErrorIfExists: true,
		Logger:        opts.logger(),
	})
	if err != nil {
		return nil, errs.StorageInit(err, "storage: pebble create %s", dir)
	}
	return &PebbleStore{db: db, wo: writeOptions(opts)}, nil
}

// OpenPebble opens an existing pebble database at dir.
func OpenPebble(dir string, opts *Options) (*PebbleStore, error) {
	if err := mustExist(dir); err != nil {
		return nil, err
	}
	db, err := pebble.Open(dir, &pebble.Options{
		ErrorIfNotExists: true,
		Logger:           opts.logger(),
	})
	if err != nil {
		return nil, errs.Corrupt(err, "storage: pebble open %s", dir)
	}
	return &PebbleStore{db: db, wo: writeOptions(opts)}, nil
}

func writeOptions(opts *Options) *pebble.WriteOptions {
	if opts.sync() {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (s *PebbleStore) Kind() Kind { return KindPebble }

func (s *PebbleStore) Allocate() (NodeID, error) {
	return NodeID(uuid.NewString()), nil
}

func (s *PebbleStore) ReadNode(id NodeID) ([]byte, error) {
	return s.get(nodeKey(id), "node "+string(id))
}

func (s *PebbleStore) WriteNode(id NodeID, unit []byte) error {
	if err := s.db.Set(nodeKey(id), unit, s.wo); err != nil {
		return errs.IO(err, "storage: pebble write node %s", id)
	}
	return nil
}

func (s *PebbleStore) ReadMeta() ([]byte, error) {
	return s.get(pebbleMetaKey, "metadata")
}

func (s *PebbleStore) WriteMeta(unit []byte) error {
	if err := s.db.Set(pebbleMetaKey, unit, s.wo); err != nil {
		return errs.IO(err, "storage: pebble write metadata")
	}
	return nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (s *PebbleStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.IO(err, "storage: pebble close")
	}
	return nil
}

func (s *PebbleStore) get(key []byte, what string) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errs.Corrupt(err, "storage: %s missing", what)
	}
	if err != nil {
		return nil, errs.IO(err, "storage: pebble read %s", what)
	}
	// val is only valid until closer.Close(), so we copy it.
	out := clone(val)
	if err := closer.Close(); err != nil {
		return nil, errs.IO(err, "storage: pebble release %s", what)
	}
	return out, nil
}

func nodeKey(id NodeID) []byte {
	return append(clone(pebbleNodePrefix), id...)
}
