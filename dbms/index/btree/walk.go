package btree

import (
	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/storage"
)

// Ascend calls fn for every record in ascending value order until fn
// returns false.
func (t *Tree) Ascend(fn func(index.Record) bool) error {
	_, err := t.ascend(t.root, nil, fn)
	return err
}

// AscendRange calls fn for every record with from <= Value <= to, in order.
func (t *Tree) AscendRange(from, to string, fn func(index.Record) bool) error {
	if from > to {
		return nil
	}
	_, err := t.ascend(t.root, &bounds{from: from, to: to}, fn)
	return err
}

type bounds struct {
	from, to string
}

func (t *Tree) ascend(n *Node, b *bounds, fn func(index.Record) bool) (bool, error) {
	for i := 0; i <= len(n.Records); i++ {
		// Children[i] only holds values <= Records[i].
		if b != nil && i < len(n.Records) && n.Records[i].Value < b.from {
			continue
		}
		if !n.Leaf {
			child, err := LoadNode(t.store, n.Children[i])
			if err != nil {
				return false, err
			}
			if more, err := t.ascend(child, b, fn); err != nil || !more {
				return false, err
			}
		}
		if i == len(n.Records) {
			break
		}
		r := n.Records[i]
		if b != nil && r.Value > b.to {
			return false, nil
		}
		if !fn(r) {
			return false, nil
		}
	}
	return true, nil
}

// Stats summarizes the shape of a tree.
type Stats struct {
	Order   int
	Height  int
	Nodes   int
	Leaves  int
	Records int
	// Fill is Records over the capacity of all nodes.
	Fill float64
}

// Stats visits every node once.
func (t *Tree) Stats() (Stats, error) {
	s := Stats{Order: t.order, Height: t.height}
	err := t.visit(func(n *Node, _ int) error {
		s.Nodes++
		s.Records += len(n.Records)
		if n.Leaf {
			s.Leaves++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	s.Fill = float64(s.Records) / float64(s.Nodes*maxRecords(t.order))
	return s, nil
}

// visit walks the tree breadth first, loading each node once.
func (t *Tree) visit(fn func(n *Node, depth int) error) error {
	type item struct {
		n     *Node
		depth int
	}
	queue := []item{{t.root, 1}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if err := fn(it.n, it.depth); err != nil {
			return err
		}
		for _, id := range it.n.Children {
			child, err := LoadNode(t.store, id)
			if err != nil {
				return err
			}
			queue = append(queue, item{child, it.depth + 1})
		}
	}
	return nil
}

// Verify checks the structural invariants of every node: record ordering,
// separator bounds, capacity, minimum fill below the root, child counts, a
// single leaf depth and the absence of shared nodes. The first violation is
// returned as a corrupt index error.
func (t *Tree) Verify() error {
	v := verifier{t: t, seen: make(map[storage.NodeID]bool), leafDepth: -1}
	return v.check(t.root, 1, nil, nil)
}

type verifier struct {
	t         *Tree
	seen      map[storage.NodeID]bool
	leafDepth int
}

// check verifies n, whose values must lie within [lo, hi] when those are set.
func (v *verifier) check(n *Node, depth int, lo, hi *string) error {
	order := v.t.order
	if v.seen[n.ID] {
		return errs.Corruptf("verify: node %s reachable twice", n.ID)
	}
	v.seen[n.ID] = true

	if len(n.Records) > maxRecords(order) {
		return errs.Corruptf("verify: node %s holds %d records, max %d", n.ID, len(n.Records), maxRecords(order))
	}
	isRoot := n == v.t.root
	if !isRoot && len(n.Records) < order-1 {
		return errs.Corruptf("verify: node %s holds %d records, min %d", n.ID, len(n.Records), order-1)
	}
	if isRoot && len(n.Records) == 0 && !n.Leaf {
		return errs.Corruptf("verify: empty internal root %s", n.ID)
	}
	for i, r := range n.Records {
		if i > 0 && r.Value < n.Records[i-1].Value {
			return errs.Corruptf("verify: node %s out of order at %d: %q after %q", n.ID, i, r.Value, n.Records[i-1].Value)
		}
		if lo != nil && r.Value < *lo {
			return errs.Corruptf("verify: node %s value %q below separator %q", n.ID, r.Value, *lo)
		}
		if hi != nil && r.Value > *hi {
			return errs.Corruptf("verify: node %s value %q above separator %q", n.ID, r.Value, *hi)
		}
	}

	if n.Leaf {
		if v.leafDepth == -1 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return errs.Corruptf("verify: leaf %s at depth %d, others at %d", n.ID, depth, v.leafDepth)
		}
		return nil
	}
	if len(n.Children) != len(n.Records)+1 {
		return errs.Corruptf("verify: node %s has %d records and %d children", n.ID, len(n.Records), len(n.Children))
	}
	for i, id := range n.Children {
		child, err := LoadNode(v.t.store, id)
		if err != nil {
			return err
		}
		clo, chi := lo, hi
		if i > 0 {
			clo = &n.Records[i-1].Value
		}
		if i < len(n.Records) {
			chi = &n.Records[i].Value
		}
		if err := v.check(child, depth+1, clo, chi); err != nil {
			return err
		}
	}
	return nil
}
