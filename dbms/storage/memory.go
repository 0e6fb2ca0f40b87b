package storage

import (
	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/google/btree"
	"github.com/google/uuid"
)

type memUnit struct {
	id   NodeID
	data []byte
}

// MemStore is an in-process arena of node units ordered by ID. It is not
// path-addressable; reopen a tree by passing the same MemStore to btree.Open.
type MemStore struct {
	units *btree.BTreeG[memUnit]
	meta  []byte
}

func NewMemory() *MemStore {
	return &MemStore{
		units: btree.NewG(16, func(a, b memUnit) bool { return a.id < b.id }),
	}
}

func (s *MemStore) Kind() Kind { return KindMemory }

func (s *MemStore) Allocate() (NodeID, error) {
	return NodeID(uuid.NewString()), nil
}

func (s *MemStore) ReadNode(id NodeID) ([]byte, error) {
	u, ok := s.units.Get(memUnit{id: id})
	if !ok {
		return nil, errs.Corruptf("storage: node %s missing", id)
	}
	return clone(u.data), nil
}

func (s *MemStore) WriteNode(id NodeID, unit []byte) error {
	s.units.ReplaceOrInsert(memUnit{id: id, data: clone(unit)})
	return nil
}

func (s *MemStore) ReadMeta() ([]byte, error) {
	if s.meta == nil {
		return nil, errs.Corruptf("storage: metadata missing")
	}
	return clone(s.meta), nil
}

func (s *MemStore) WriteMeta(unit []byte) error {
	s.meta = clone(unit)
	return nil
}

func (s *MemStore) Close() error { return nil }

// Len is the number of node units written so far.
func (s *MemStore) Len() int { return s.units.Len() }

// IDs returns every stored node ID in ascending order.
func (s *MemStore) IDs() []NodeID {
	ids := make([]NodeID, 0, s.units.Len())
	s.units.Ascend(func(u memUnit) bool {
		ids = append(ids, u.id)
		return true
	})
	return ids
}
