// Command bench measures index build and lookup cost across orders and
// storage backends against a linear scan of the same file, and writes the
// results as CSV and latency charts.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/btree-query-bench/lineindex/dbms/index/btree"
	"github.com/btree-query-bench/lineindex/dbms/logging"
	"github.com/btree-query-bench/lineindex/dbms/source"
	"github.com/btree-query-bench/lineindex/dbms/storage"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

func main() {
	lines := flag.Int("lines", 100000, "number of lines in the generated source")
	orders := flag.String("orders", "2,8,32,128", "comma separated minimum degrees")
	backends := flag.String("backends", "memory,dir,pebble,sqlite,pages", "comma separated storage backends")
	lookups := flag.Int("lookups", 2000, "point lookups per workload")
	scans := flag.Int("scans", 20, "linear scan lookups per configuration")
	outDir := flag.String("out", "results", "directory for results.csv and charts")
	sync := flag.Bool("sync", false, "fsync every unit write")
	seed := flag.Int64("seed", 1, "random seed")
	verbose := flag.Bool("v", false, "log index activity")
	flag.Parse()

	log := logging.New(os.Stderr, "bench: ", *verbose)

	orderList, err := parseOrders(*orders)
	if err != nil {
		log.Fatalf("%v", err)
	}
	var kinds []storage.Kind
	for _, b := range strings.Split(*backends, ",") {
		k, err := storage.ParseKind(b)
		if err != nil {
			log.Fatalf("%v", err)
		}
		kinds = append(kinds, k)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("%v", err)
	}
	work, err := os.MkdirTemp("", "lineindex-bench-")
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer os.RemoveAll(work)

	rng := rand.New(rand.NewSource(*seed))
	srcPath, err := GenerateSource(work, *lines, rng)
	if err != nil {
		log.Fatalf("generate source: %v", err)
	}
	if fi, err := os.Stat(srcPath); err == nil {
		fmt.Printf("Source: %s lines, %s\n", humanize.Comma(int64(*lines)), humanize.Bytes(uint64(fi.Size())))
	}

	f, err := os.Create(filepath.Join(*outDir, "results.csv"))
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write(header)

	s := &suite{
		src:     srcPath,
		work:    work,
		lines:   *lines,
		lookups: *lookups,
		scans:   *scans,
		sync:    *sync,
		rng:     rng,
		log:     log,
		w:       w,
	}
	for _, k := range kinds {
		for _, o := range orderList {
			if err := s.run(k, o); err != nil {
				log.Errorf("%s order %d: %v", k, o, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("write results: %v", err)
	}

	for _, op := range []WorkloadType{Hit, Miss, Range} {
		path := filepath.Join(*outDir, strings.ToLower(string(op))+".png")
		if err := PlotLatency(s.results, op, path); err != nil {
			log.Errorf("plot %s: %v", op, err)
		}
	}
	fmt.Println("Benchmark complete. Results in", *outDir)
}

func parseOrders(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		o, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || o < btree.MinOrder {
			return nil, errors.Newf("invalid order %q", f)
		}
		out = append(out, o)
	}
	return out, nil
}

type suite struct {
	src     string
	work    string
	lines   int
	lookups int
	scans   int
	sync    bool
	rng     *rand.Rand
	log     *logging.Logger
	w       *csv.Writer
	results []BenchResult
}

func (s *suite) record(r BenchResult) {
	s.results = append(s.results, r)
	Record(s.w, r)
}

func (s *suite) open(kind storage.Kind, order int) (*btree.Tree, string, error) {
	opts := &btree.Options{Backend: kind, Logger: s.log, Storage: storage.Options{NoSync: !s.sync}}
	if kind == storage.KindMemory {
		tr, err := btree.New(storage.NewMemory(), order, opts)
		return tr, "", err
	}
	loc := filepath.Join(s.work, fmt.Sprintf("%s-%d", kind, order))
	tr, err := btree.Create(loc, order, opts)
	return tr, loc, err
}

func (s *suite) run(kind storage.Kind, order int) error {
	fmt.Printf("Testing %s (order %d)\n", kind, order)

	src, err := os.Open(s.src)
	if err != nil {
		return err
	}
	defer src.Close()

	tr, loc, err := s.open(kind, order)
	if err != nil {
		return err
	}
	defer tr.Close()

	start := time.Now()
	st, err := (&source.Indexer{Logger: s.log}).Index(src, tr)
	if err != nil {
		return err
	}
	buildNs := time.Since(start).Nanoseconds() / int64(max(st.Indexed, 1))

	var disk int64
	if loc != "" {
		disk, _ = storage.DiskUsage(loc)
	}
	mem := GetDetailedMem()
	s.record(BenchResult{
		Backend:   string(kind),
		Order:     order,
		Operation: "Build",
		LatencyNs: buildNs,
		MemMB:     mem.AllocMB,
		Objects:   mem.HeapObjects,
		DiskBytes: disk,
	})
	s.log.Infof("%s order %d: height %d, %s on disk", kind, order, tr.Height(), humanize.Bytes(uint64(disk)))

	for _, wl := range []struct {
		t   WorkloadType
		ops int
	}{
		{Hit, s.lookups},
		{Miss, s.lookups},
		{Range, max(s.lookups/10, 1)},
		{Scan, s.scans},
	} {
		start := time.Now()
		if _, err := ExecuteWorkload(tr, src, wl.t, s.lines, wl.ops, s.rng); err != nil {
			return err
		}
		s.record(BenchResult{
			Backend:   string(kind),
			Order:     order,
			Operation: string(wl.t),
			LatencyNs: time.Since(start).Nanoseconds() / int64(max(wl.ops, 1)),
			MemMB:     GetDetailedMem().AllocMB,
			DiskBytes: disk,
		})
	}
	return nil
}
