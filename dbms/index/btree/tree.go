// Package btree implements a disk-resident B-tree of minimum degree order
// over index.Record values.
//
// Every node is an independent unit in a storage.Store, referenced by its
// NodeID. Only the root stays in memory between operations; insertion and
// search load one node per level on the way down. Insertion splits full
// nodes before descending into them, so a single top-down pass suffices and
// the tree grows only at the root.
//
// Each mutated node is written back before the operation returns. A split
// touches three units and the metadata unit for a root split; those writes
// are not atomic as a group, and an interrupted split can leave the index
// inconsistent. Verify detects such damage; the remedy is a rebuild from
// the source file.
package btree

import (
	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/logging"
	"github.com/btree-query-bench/lineindex/dbms/storage"
)

var _ index.Index = (*Tree)(nil)

// MinOrder is the smallest minimum degree: at most 3 records per node.
const MinOrder = 2

type Options struct {
	Backend storage.Kind
	Storage storage.Options
	Logger  *logging.Logger
}

func (o *Options) normalize() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Backend == "" {
		out.Backend = storage.KindDir
	}
	if out.Logger == nil {
		out.Logger = logging.Discard()
	}
	if out.Storage.Logger == nil {
		out.Storage.Logger = out.Logger
	}
	return out
}

// Tree is a B-tree whose nodes live in a storage.Store. It is not safe for
// concurrent use.
type Tree struct {
	root     *Node
	order    int
	height   int
	location string
	store    storage.Store
	log      *logging.Logger
}

// Create initializes a new index at location, which must not exist.
func Create(location string, order int, opts *Options) (*Tree, error) {
	if order < MinOrder {
		return nil, errs.StorageInitf("btree: order %d below minimum %d", order, MinOrder)
	}
	o := opts.normalize()
	st, err := storage.Create(o.Backend, location, &o.Storage)
	if err != nil {
		return nil, err
	}
	t, err := create(st, order, location, o.Logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return t, nil
}

// New initializes a new tree in an empty, already acquired store.
func New(st storage.Store, order int, opts *Options) (*Tree, error) {
	if order < MinOrder {
		return nil, errs.StorageInitf("btree: order %d below minimum %d", order, MinOrder)
	}
	o := opts.normalize()
	return create(st, order, "", o.Logger)
}

func create(st storage.Store, order int, location string, log *logging.Logger) (*Tree, error) {
	root, err := NewNode(st, order, true)
	if err != nil {
		return nil, errs.StorageInit(err, "btree: allocate root")
	}
	if err := root.Save(); err != nil {
		return nil, errs.StorageInit(err, "btree: write root")
	}
	t := &Tree{
		root:     root,
		order:    order,
		height:   1,
		location: location,
		store:    st,
		log:      log,
	}
	if err := t.writeMeta(); err != nil {
		return nil, errs.StorageInit(err, "btree: write metadata")
	}
	return t, nil
}

// Load reopens the index persisted at location.
func Load(location string, opts *Options) (*Tree, error) {
	o := opts.normalize()
	st, err := storage.Open(o.Backend, location, &o.Storage)
	if err != nil {
		return nil, err
	}
	t, err := load(st, location, o.Logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return t, nil
}

// Open reopens the tree persisted in an already acquired store.
func Open(st storage.Store, opts *Options) (*Tree, error) {
	o := opts.normalize()
	return load(st, "", o.Logger)
}

func load(st storage.Store, location string, log *logging.Logger) (*Tree, error) {
	unit, err := st.ReadMeta()
	if err != nil {
		return nil, errs.Corrupt(err, "btree: read metadata")
	}
	m, err := decodeMeta(unit)
	if err != nil {
		return nil, err
	}
	if m.backend != st.Kind() {
		return nil, errs.Corruptf("btree: index written by %s backend, opened with %s", m.backend, st.Kind())
	}
	if location == "" {
		location = m.location
	} else if location != m.location {
		log.Infof("index created at %s is now at %s", m.location, location)
	}

	root, err := LoadNode(st, m.root)
	if err != nil {
		return nil, errs.Corrupt(err, "btree: load root")
	}
	t := &Tree{
		root:     root,
		order:    m.order,
		location: location,
		store:    st,
		log:      log,
	}
	if t.height, err = t.measureHeight(); err != nil {
		return nil, err
	}
	return t, nil
}

// Insert adds rec to the tree. Duplicate values are kept; a new record lands
// before the existing records with the same value in its leaf.
func (t *Tree) Insert(rec index.Record) error {
	if t.root.IsFull(t.order) {
		root, err := NewNode(t.store, t.order, false)
		if err != nil {
			return err
		}
		root.Children = append(root.Children, t.root.ID)
		if _, err := root.splitChild(0, t.root, t.order); err != nil {
			return err
		}
		t.root = root
		t.height++
		if err := t.writeMeta(); err != nil {
			return err
		}
		t.log.Infof("root split: new root %s, height %d", root.ID, t.height)
	}
	return t.root.Insert(rec, t.order)
}

// Search returns the record whose value equals value. With duplicates, which
// of the equal records is returned is unspecified.
func (t *Tree) Search(value string) (index.Record, bool, error) {
	n := t.root
	for {
		i := 0
		for ; i < len(n.Records); i++ {
			r := n.Records[i]
			if r.Value == value {
				return r, true, nil
			}
			if r.Value > value {
				break
			}
		}
		if n.Leaf {
			return index.Record{}, false, nil
		}
		child, err := LoadNode(t.store, n.Children[i])
		if err != nil {
			return index.Record{}, false, err
		}
		n = child
	}
}

// Close releases the store. The tree must not be used afterwards.
func (t *Tree) Close() error {
	return t.store.Close()
}

func (t *Tree) Order() int { return t.order }

func (t *Tree) Height() int { return t.height }

func (t *Tree) Location() string { return t.location }

func (t *Tree) Backend() storage.Kind { return t.store.Kind() }

func (t *Tree) RootID() storage.NodeID { return t.root.ID }

func (t *Tree) writeMeta() error {
	return t.store.WriteMeta(encodeMeta(meta{
		order:    t.order,
		root:     t.root.ID,
		location: t.location,
		backend:  t.store.Kind(),
	}))
}

// measureHeight follows the leftmost path; all leaves share one depth.
func (t *Tree) measureHeight() (int, error) {
	h := 1
	for n := t.root; !n.Leaf; h++ {
		child, err := LoadNode(t.store, n.Children[0])
		if err != nil {
			return 0, err
		}
		n = child
	}
	return h, nil
}
