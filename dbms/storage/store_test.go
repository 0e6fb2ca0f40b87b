package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

func TestBackendsRoundTrip(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			loc := filepath.Join(t.TempDir(), "idx")

			st, err := Create(kind, loc, nil)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if st.Kind() != kind {
				t.Fatalf("expected kind %s, got %s", kind, st.Kind())
			}
			a, err := st.Allocate()
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}
			b, err := st.Allocate()
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}
			if a == b {
				t.Fatalf("allocate returned %s twice", a)
			}
			if err := st.WriteNode(a, []byte("first")); err != nil {
				t.Fatalf("write a: %v", err)
			}
			if err := st.WriteNode(a, []byte("second")); err != nil {
				t.Fatalf("rewrite a: %v", err)
			}
			if err := st.WriteNode(b, []byte("other")); err != nil {
				t.Fatalf("write b: %v", err)
			}
			if err := st.WriteMeta([]byte("meta")); err != nil {
				t.Fatalf("write meta: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			st, err = Open(kind, loc, &Options{})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer st.Close()

			got, err := st.ReadNode(a)
			if err != nil || string(got) != "second" {
				t.Fatalf("read a = %q, %v; want second", got, err)
			}
			got, err = st.ReadNode(b)
			if err != nil || string(got) != "other" {
				t.Fatalf("read b = %q, %v; want other", got, err)
			}
			got, err = st.ReadMeta()
			if err != nil || string(got) != "meta" {
				t.Fatalf("read meta = %q, %v; want meta", got, err)
			}
		})
	}
}

func TestBackendsRejectExistingLocation(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			loc := filepath.Join(t.TempDir(), "idx")
			if err := os.WriteFile(loc, []byte("taken"), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Create(kind, loc, nil)
			if !errors.Is(err, errs.ErrStorageInit) {
				t.Fatalf("expected storage init error, got %v", err)
			}
		})
	}
}

func TestBackendsMissingLocation(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			_, err := Open(kind, filepath.Join(t.TempDir(), "absent"), nil)
			if !errors.Is(err, errs.ErrCorruptIndex) {
				t.Fatalf("expected corrupt index error, got %v", err)
			}
		})
	}
}

func TestBackendsMissingUnits(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			st, err := Create(kind, filepath.Join(t.TempDir(), "idx"), nil)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			defer st.Close()

			if _, err := st.ReadMeta(); !errors.Is(err, errs.ErrCorruptIndex) {
				t.Fatalf("meta: expected corrupt index error, got %v", err)
			}
			id, err := st.Allocate()
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}
			if _, err := st.ReadNode(id); !errors.Is(err, errs.ErrCorruptIndex) {
				t.Fatalf("node: expected corrupt index error, got %v", err)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	st := NewMemory()
	if _, err := st.ReadMeta(); !errors.Is(err, errs.ErrCorruptIndex) {
		t.Fatalf("expected corrupt index error, got %v", err)
	}

	ids := make([]NodeID, 3)
	for i := range ids {
		id, _ := st.Allocate()
		ids[i] = id
		if err := st.WriteNode(id, []byte{byte(i)}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if st.Len() != 3 {
		t.Fatalf("expected 3 units, got %d", st.Len())
	}
	listed := st.IDs()
	for i := 1; i < len(listed); i++ {
		if listed[i-1] >= listed[i] {
			t.Fatalf("ids not ascending: %v", listed)
		}
	}

	// The store must not alias caller buffers.
	buf := []byte("abc")
	st.WriteNode(ids[0], buf)
	buf[0] = 'x'
	got, _ := st.ReadNode(ids[0])
	if string(got) != "abc" {
		t.Fatalf("store aliased caller buffer: %q", got)
	}
}

func TestMemoryNotPathAddressable(t *testing.T) {
	if _, err := Create(KindMemory, t.TempDir(), nil); !errors.Is(err, errs.ErrStorageInit) {
		t.Fatalf("expected storage init error, got %v", err)
	}
}

func TestPagesRejectOversizedUnit(t *testing.T) {
	st, err := CreatePages(filepath.Join(t.TempDir(), "idx"), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer st.Close()
	id, _ := st.Allocate()

	err = st.WriteNode(id, bytes.Repeat([]byte{1}, maxPageUnit+1))
	if !errors.Is(err, ErrUnitTooLarge) || !errors.Is(err, errs.ErrIO) {
		t.Fatalf("expected io error wrapping ErrUnitTooLarge, got %v", err)
	}
	if err := st.WriteNode(id, bytes.Repeat([]byte{1}, maxPageUnit)); err != nil {
		t.Fatalf("unit filling the page should fit: %v", err)
	}
}

func TestDirRejectsPathLikeIDs(t *testing.T) {
	st, err := CreateDir(filepath.Join(t.TempDir(), "idx"), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, id := range []NodeID{"", "../escape", "a/b", "x.node"} {
		if _, err := st.ReadNode(id); !errors.Is(err, errs.ErrCorruptIndex) {
			t.Errorf("id %q: expected corrupt index error, got %v", id, err)
		}
	}
}

func TestCachedServesWrites(t *testing.T) {
	inner := NewMemory()
	c, err := NewCached(inner, 1<<20)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer c.Close()

	id, _ := c.Allocate()
	for _, v := range []string{"one", "two", "three"} {
		if err := c.WriteNode(id, []byte(v)); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := c.ReadNode(id)
		if err != nil || string(got) != v {
			t.Fatalf("read = %q, %v; want %s", got, err, v)
		}
	}
	got, _ := inner.ReadNode(id)
	if string(got) != "three" {
		t.Fatalf("write did not reach inner store: %q", got)
	}
	if c.Kind() != KindMemory {
		t.Fatalf("expected inner kind, got %s", c.Kind())
	}
}

func TestCachedWriteAfterReadMiss(t *testing.T) {
	inner := NewMemory()
	c, err := NewCached(inner, 4<<20)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer c.Close()

	stale := 0
	const rounds = 2000
	for i := 0; i < rounds; i++ {
		id, _ := inner.Allocate()
		inner.WriteNode(id, []byte("old"))
		if got, err := c.ReadNode(id); err != nil || string(got) != "old" {
			t.Fatalf("first read = %q, %v", got, err)
		}
		if err := c.WriteNode(id, []byte("new")); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := c.ReadNode(id)
		if err != nil {
			t.Fatalf("second read: %v", err)
		}
		if string(got) != "new" {
			stale++
		}
	}
	if stale > 0 {
		t.Fatalf("%d of %d reads after a write returned the previous unit", stale, rounds)
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{"": KindDir, "dir": KindDir, " Pebble ": KindPebble, "SQLITE": KindSQLite, "pages": KindPages, "memory": KindMemory}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseKind("bolt"); err == nil || !strings.Contains(err.Error(), "bolt") {
		t.Errorf("expected error naming the backend, got %v", err)
	}
}

func TestDiskUsage(t *testing.T) {
	loc := filepath.Join(t.TempDir(), "idx")
	st, err := Create(KindDir, loc, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, _ := st.Allocate()
	st.WriteNode(id, make([]byte, 100))
	st.WriteMeta(make([]byte, 20))

	n, err := DiskUsage(loc)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if n != 120 {
		t.Fatalf("expected 120 bytes, got %d", n)
	}
}

func TestWritesSyncByDefault(t *testing.T) {
	dir := t.TempDir()

	ds, err := CreateDir(filepath.Join(dir, "dir"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ds.sync {
		t.Error("dir store with nil options does not fsync")
	}
	ps, err := CreatePebble(filepath.Join(dir, "pebble"), &Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer ps.Close()
	if ps.wo != pebble.Sync {
		t.Error("pebble store with zero options does not sync")
	}

	relaxed, err := CreateDir(filepath.Join(dir, "relaxed"), &Options{NoSync: true})
	if err != nil {
		t.Fatal(err)
	}
	if relaxed.sync {
		t.Error("NoSync ignored")
	}
}
