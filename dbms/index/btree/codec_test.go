package btree

import (
	"testing"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/storage"
	"github.com/cockroachdb/errors"
)

func TestDecodeNodeRejectsDamage(t *testing.T) {
	n := &Node{
		ID:       "n1",
		Records:  []index.Record{rec("a"), rec("b")},
		Children: []storage.NodeID{"c1", "c2", "c3"},
	}
	good := encodeNode(n)
	if _, err := decodeNode("n1", good); err != nil {
		t.Fatalf("intact unit: %v", err)
	}

	flipped := append([]byte(nil), good...)
	flipped[5] ^= 0xff

	wrongShape := encodeNode(&Node{ID: "n1", Records: []index.Record{rec("a")}, Children: []storage.NodeID{"c1"}})
	leafWithKids := encodeNode(&Node{ID: "n1", Leaf: true, Children: []storage.NodeID{"c1"}})

	for name, unit := range map[string][]byte{
		"empty":          nil,
		"truncated":      good[:len(good)-3],
		"bit flip":       flipped,
		"metadata magic": encodeMeta(meta{order: 3, root: "r"}),
		"child count":    wrongShape,
		"leaf children":  leafWithKids,
	} {
		if _, err := decodeNode("n1", unit); !errors.Is(err, errs.ErrCorruptIndex) {
			t.Errorf("%s: expected corrupt index, got %v", name, err)
		}
	}

	if _, err := decodeNode("other", good); !errors.Is(err, errs.ErrCorruptIndex) {
		t.Errorf("unit stored under the wrong id: expected corrupt index, got %v", err)
	}
}

func TestDecodeMeta(t *testing.T) {
	want := meta{order: 4, root: "root", location: "/tmp/idx", backend: storage.KindSQLite}
	got, err := decodeMeta(encodeMeta(want))
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	for name, m := range map[string]meta{
		"order":   {order: 1, root: "r"},
		"no root": {order: 3},
	} {
		if _, err := decodeMeta(encodeMeta(m)); !errors.Is(err, errs.ErrCorruptIndex) {
			t.Errorf("%s: expected corrupt index, got %v", name, err)
		}
	}
}
