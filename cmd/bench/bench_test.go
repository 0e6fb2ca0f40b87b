package main

import (
	"encoding/csv"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/btree-query-bench/lineindex/dbms/logging"
	"github.com/btree-query-bench/lineindex/dbms/source"
	"github.com/btree-query-bench/lineindex/dbms/storage"
)

func TestParseOrders(t *testing.T) {
	got, err := parseOrders("2, 8,32")
	if err != nil || len(got) != 3 || got[1] != 8 {
		t.Fatalf("unexpected %v %v", got, err)
	}
	for _, bad := range []string{"1", "x", "4,,8"} {
		if _, err := parseOrders(bad); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestSuiteRun(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(7))
	const n = 500
	src, err := GenerateSource(dir, n, rng)
	if err != nil {
		t.Fatal(err)
	}

	s := &suite{
		src:     src,
		work:    dir,
		lines:   n,
		lookups: 50,
		scans:   5,
		rng:     rng,
		log:     logging.Discard(),
		w:       csv.NewWriter(io.Discard),
	}
	for _, k := range []storage.Kind{storage.KindMemory, storage.KindDir} {
		if err := s.run(k, 4); err != nil {
			t.Fatalf("%s: %v", k, err)
		}
	}
	// Build plus four workloads per configuration.
	if len(s.results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(s.results))
	}
	if s.results[5].DiskBytes == 0 {
		t.Fatal("dir backend reported no disk usage")
	}

	path := filepath.Join(dir, "hit.png")
	if err := PlotLatency(s.results, Hit, path); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("chart not written: %v", err)
	}
}

func TestWorkloadsFind(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(3))
	const n = 300
	path, err := GenerateSource(dir, n, rng)
	if err != nil {
		t.Fatal(err)
	}
	s := &suite{work: dir, log: logging.Discard()}
	tr, _, err := s.open(storage.KindMemory, 3)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := os.Open(path)
	defer f.Close()

	if err := source.IndexSource(f, tr); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		w    WorkloadType
		want int
	}{
		{Hit, 20}, {Miss, 0}, {Scan, 20},
	} {
		got, err := ExecuteWorkload(tr, f, tc.w, n, 20, rng)
		if err != nil || got != tc.want {
			t.Errorf("%s: found %d, expected %d (%v)", tc.w, got, tc.want, err)
		}
	}
	if got, _ := ExecuteWorkload(tr, f, Range, n, 10, rng); got == 0 {
		t.Error("range workload found nothing")
	}
}
