package storage

import (
	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/dgraph-io/ristretto/v2"
)

// Cached fronts a Store with a ristretto cache of encoded units. Writes go
// through to the inner store first, so the cache never holds a unit the
// store does not.
type Cached struct {
	Store
	cache *ristretto.Cache[string, []byte]
}

func NewCached(inner Store, maxBytes int64) (*Cached, error) {
	// Units run to a few hundred bytes; ristretto wants ~10 counters per item.
	counters := maxBytes / 256 * 10
	if counters < 1000 {
		counters = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        counters,
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errs.StorageInit(err, "storage: node cache")
	}
	return &Cached{Store: inner, cache: c}, nil
}

func (c *Cached) ReadNode(id NodeID) ([]byte, error) {
	if unit, ok := c.cache.Get(string(id)); ok {
		return clone(unit), nil
	}
	unit, err := c.Store.ReadNode(id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(string(id), clone(unit), int64(len(unit)))
	return unit, nil
}

func (c *Cached) WriteNode(id NodeID, unit []byte) error {
	if err := c.Store.WriteNode(id, unit); err != nil {
		c.cache.Del(string(id))
		return err
	}
	// A read miss may still have the previous unit queued; an update racing
	// it is dropped by admission. Delete first so the queue applies
	// old, delete, new in that order, and drain it before returning.
	c.cache.Del(string(id))
	c.cache.Set(string(id), clone(unit), int64(len(unit)))
	c.cache.Wait()
	return nil
}

func (c *Cached) Close() error {
	c.cache.Close()
	return c.Store.Close()
}
