package btree

import (
	"slices"
	"sort"

	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/storage"
	"github.com/cockroachdb/errors"
)

// Node is one B-tree node. It owns its records; children are referenced by
// ID and loaded from the store on demand. Every mutation rewrites the node's
// unit before returning.
type Node struct {
	ID       storage.NodeID
	Records  []index.Record
	Children []storage.NodeID // len(Records)+1 when internal, empty when leaf
	Leaf     bool

	store storage.Store
}

// NewNode returns an empty node under a freshly allocated ID, with room for
// a full node's records and children. The node is not persisted until its
// first Save.
func NewNode(st storage.Store, order int, leaf bool) (*Node, error) {
	id, err := st.Allocate()
	if err != nil {
		return nil, err
	}
	return &Node{
		ID:       id,
		Records:  make([]index.Record, 0, maxRecords(order)),
		Children: make([]storage.NodeID, 0, 2*order),
		Leaf:     leaf,
		store:    st,
	}, nil
}

// LoadNode reads the node stored under id.
func LoadNode(st storage.Store, id storage.NodeID) (*Node, error) {
	unit, err := st.ReadNode(id)
	if err != nil {
		return nil, err
	}
	n, err := decodeNode(id, unit)
	if err != nil {
		return nil, err
	}
	n.store = st
	return n, nil
}

// Save replaces the node's persisted unit with its current contents.
func (n *Node) Save() error {
	return n.store.WriteNode(n.ID, encodeNode(n))
}

func (n *Node) IsFull(order int) bool {
	return len(n.Records) == maxRecords(order)
}

// FindPosition returns the index of the first record whose value is >= value,
// or len(Records). For a leaf it is the insertion point; for an internal node
// it is the child to descend into.
func (n *Node) FindPosition(value string) int {
	return sort.Search(len(n.Records), func(i int) bool {
		return n.Records[i].Value >= value
	})
}

// AddKey inserts rec at position i and persists the node.
func (n *Node) AddKey(i int, rec index.Record) error {
	n.Records = slices.Insert(n.Records, i, rec)
	return n.Save()
}

// Split splits the full child at Children[pivot] around its median record,
// which moves up into this node at Records[pivot]. The upper half goes to a
// new sibling at Children[pivot+1].
func (n *Node) Split(pivot, order int) error {
	if n.Leaf || pivot < 0 || pivot >= len(n.Children) {
		return errors.AssertionFailedf("split at pivot %d of node %s with %d children", pivot, n.ID, len(n.Children))
	}
	child, err := LoadNode(n.store, n.Children[pivot])
	if err != nil {
		return err
	}
	_, err = n.splitChild(pivot, child, order)
	return err
}

// splitChild does the work of Split on an already loaded child and returns
// the new sibling. Units are written sibling first, then the truncated child,
// then this node; a failure in between leaves the sibling unreferenced or
// the child's upper half reachable only through the sibling.
func (n *Node) splitChild(pivot int, child *Node, order int) (*Node, error) {
	if n.Children[pivot] != child.ID {
		return nil, errors.AssertionFailedf("node %s is not child %d of %s", child.ID, pivot, n.ID)
	}
	if !child.IsFull(order) {
		return nil, errors.AssertionFailedf("split of node %s holding %d records at order %d", child.ID, len(child.Records), order)
	}

	sibling, err := NewNode(n.store, order, child.Leaf)
	if err != nil {
		return nil, err
	}
	median := child.Records[order-1]
	sibling.Records = append(sibling.Records, child.Records[order:]...)
	child.Records = child.Records[:order-1]
	if !child.Leaf {
		sibling.Children = append(sibling.Children, child.Children[order:]...)
		child.Children = child.Children[:order]
	}

	n.Records = slices.Insert(n.Records, pivot, median)
	n.Children = slices.Insert(n.Children, pivot+1, sibling.ID)

	if err := sibling.Save(); err != nil {
		return nil, err
	}
	if err := child.Save(); err != nil {
		return nil, err
	}
	if err := n.Save(); err != nil {
		return nil, err
	}
	return sibling, nil
}

// Insert places rec in the subtree rooted at n, which must not be full.
// Full children are split before the descent, so nothing propagates back up.
func (n *Node) Insert(rec index.Record, order int) error {
	if n.Leaf {
		return n.AddKey(n.FindPosition(rec.Value), rec)
	}

	i := n.FindPosition(rec.Value)
	child, err := LoadNode(n.store, n.Children[i])
	if err != nil {
		return err
	}
	if child.IsFull(order) {
		sibling, err := n.splitChild(i, child, order)
		if err != nil {
			return err
		}
		if n.FindPosition(rec.Value) != i {
			child = sibling
		}
	}
	return child.Insert(rec, order)
}

func maxRecords(order int) int { return 2*order - 1 }
