// Command lineindex builds and queries a disk-resident B-tree index over the
// first field of every line of a delimited text file.
//
//	lineindex [flags] build <source>
//	lineindex [flags] lookup <source> <key>...
//	lineindex [flags] dump
//	lineindex [flags] stats
//	lineindex [flags] verify
//	lineindex [flags] dot [file]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/btree-query-bench/lineindex/config"
	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/index/btree"
	"github.com/btree-query-bench/lineindex/dbms/logging"
	"github.com/btree-query-bench/lineindex/dbms/source"
	"github.com/btree-query-bench/lineindex/dbms/storage"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default: configs/lineindex.yaml or lineindex.yaml)")
	indexPath := flag.String("index", "", "index location, overrides index.path")
	backend := flag.String("backend", "", "storage backend: dir, pebble, sqlite or pages")
	order := flag.Int("order", 0, "minimum degree for build, overrides index.order")
	verbose := flag.Bool("v", false, "log index activity")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "index":
			cfg.Index.Path = *indexPath
		case "backend":
			cfg.Index.Backend = *backend
		case "order":
			cfg.Index.Order = *order
		case "v":
			cfg.Log.Verbose = *verbose
		}
	})

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	log := logging.New(os.Stderr, "lineindex: ", cfg.Log.Verbose)
	if err := run(cfg, log, args[0], args[1:], os.Stdout); err != nil {
		log.Errorf("%s: %v", args[0], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: lineindex [flags] <command> [args]

commands:
  build <source>           index the first field of every line of source
  lookup <source> <key>... print the line stored under each key
  dump                     print every record in key order
  stats                    print tree shape and on-disk size
  verify                   check the tree invariants
  dot [file]               write the tree as a Graphviz digraph

flags:
`)
	flag.PrintDefaults()
}

func run(cfg *config.Config, log *logging.Logger, cmd string, args []string, out io.Writer) error {
	kind, err := storage.ParseKind(cfg.Index.Backend)
	if err != nil {
		return err
	}
	opts := &btree.Options{
		Backend: kind,
		Logger:  log,
		Storage: storage.Options{
			NoSync:     !cfg.Index.Sync,
			CacheBytes: cfg.Index.CacheBytes,
			Logger:     log,
		},
	}

	switch cmd {
	case "build":
		if len(args) != 1 {
			return errors.Newf("expected one source file, got %d arguments", len(args))
		}
		return build(cfg, opts, args[0], out)
	case "lookup":
		if len(args) < 2 {
			return errors.New("expected a source file and at least one key")
		}
		return lookup(cfg, opts, args[0], args[1:], out)
	case "dump", "stats", "verify", "dot":
		tr, err := btree.Load(cfg.Index.Path, opts)
		if err != nil {
			return err
		}
		defer tr.Close()
		switch cmd {
		case "dump":
			return dump(tr, out)
		case "stats":
			return stats(tr, out)
		case "verify":
			if err := tr.Verify(); err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		default:
			return dot(tr, args, out)
		}
	default:
		return errors.Newf("unknown command %q", cmd)
	}
}

func build(cfg *config.Config, opts *btree.Options, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tr, err := btree.Create(cfg.Index.Path, cfg.Index.Order, opts)
	if err != nil {
		return err
	}
	defer tr.Close()

	start := time.Now()
	ix := &source.Indexer{Delimiter: cfg.Delimiter(), Logger: opts.Logger}
	s, err := ix.Index(f, tr)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "indexed %s of %s lines (%s skipped) from %s in %v\n",
		humanize.Comma(int64(s.Indexed)), humanize.Comma(int64(s.Lines)), humanize.Comma(int64(s.Skipped)),
		humanize.Bytes(s.Bytes), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "order %d, height %d, %s backend at %s\n", tr.Order(), tr.Height(), tr.Backend(), cfg.Index.Path)
	return nil
}

func lookup(cfg *config.Config, opts *btree.Options, path string, keys []string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tr, err := btree.Load(cfg.Index.Path, opts)
	if err != nil {
		return err
	}
	defer tr.Close()

	for _, k := range keys {
		r, ok, err := tr.Search(k)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(out, "%s: not found\n", k)
			continue
		}
		line, err := source.ReadRange(f, r.Location)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s", k, line)
		if len(line) == 0 || line[len(line)-1] != '\n' {
			fmt.Fprintln(out)
		}
	}
	return nil
}

func dump(tr *btree.Tree, out io.Writer) error {
	return tr.Ascend(func(r index.Record) bool {
		fmt.Fprintf(out, "%s\t%s\n", r.Value, r.Location)
		return true
	})
}

func stats(tr *btree.Tree, out io.Writer) error {
	s, err := tr.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "backend  %s\n", tr.Backend())
	fmt.Fprintf(out, "order    %d\n", s.Order)
	fmt.Fprintf(out, "height   %d\n", s.Height)
	fmt.Fprintf(out, "nodes    %s (%s leaves)\n", humanize.Comma(int64(s.Nodes)), humanize.Comma(int64(s.Leaves)))
	fmt.Fprintf(out, "records  %s\n", humanize.Comma(int64(s.Records)))
	fmt.Fprintf(out, "fill     %.1f%%\n", s.Fill*100)
	if size, err := storage.DiskUsage(tr.Location()); err == nil {
		fmt.Fprintf(out, "on disk  %s\n", humanize.Bytes(uint64(size)))
	}
	return nil
}

func dot(tr *btree.Tree, args []string, out io.Writer) error {
	if len(args) == 0 {
		return tr.WriteDOT(out)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := tr.WriteDOT(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
