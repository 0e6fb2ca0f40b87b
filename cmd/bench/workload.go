package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/index/btree"
	"github.com/btree-query-bench/lineindex/dbms/source"
)

type WorkloadType string

const (
	Hit   WorkloadType = "Lookup_Hit"
	Miss  WorkloadType = "Lookup_Miss"
	Range WorkloadType = "Range_100"
	Scan  WorkloadType = "Scan_Hit"
)

func key(i int) string { return fmt.Sprintf("%09d", i) }

// GenerateSource writes n lines "key,payload" with keys 0..n-1 in random
// order and returns the path.
func GenerateSource(dir string, n int, rng *rand.Rand) (string, error) {
	path := filepath.Join(dir, "source.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)
	for _, k := range rng.Perm(n) {
		fmt.Fprintf(w, "%s,%d,%x\n", key(k), rng.Intn(1000), rng.Int63())
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// ExecuteWorkload runs ops operations of one kind against tr and returns
// how many of them found something.
func ExecuteWorkload(tr *btree.Tree, src *os.File, wType WorkloadType, n, ops int, rng *rand.Rand) (int, error) {
	found := 0
	for i := 0; i < ops; i++ {
		k := rng.Intn(n)
		switch wType {
		case Hit:
			r, ok, err := tr.Search(key(k))
			if err != nil {
				return found, err
			}
			if ok {
				if _, err := source.ReadRange(src, r.Location); err != nil {
					return found, err
				}
				found++
			}
		case Miss:
			_, ok, err := tr.Search(key(n + k))
			if err != nil {
				return found, err
			}
			if ok {
				found++
			}
		case Range:
			err := tr.AscendRange(key(k), key(k+99), func(index.Record) bool {
				found++
				return true
			})
			if err != nil {
				return found, err
			}
		case Scan:
			if _, err := src.Seek(0, io.SeekStart); err != nil {
				return found, err
			}
			_, ok, err := source.Scan(src, key(k), ',')
			if err != nil {
				return found, err
			}
			if ok {
				found++
			}
		}
	}
	return found, nil
}
