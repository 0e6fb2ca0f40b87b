package source

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/index/btree"
	"github.com/btree-query-bench/lineindex/dbms/logging"
	"github.com/btree-query-bench/lineindex/dbms/storage"
	"github.com/cockroachdb/errors"
)

type recorder struct {
	recs []index.Record
	fail error
}

func (r *recorder) Insert(rec index.Record) error {
	if r.fail != nil {
		return r.fail
	}
	r.recs = append(r.recs, rec)
	return nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestKey(t *testing.T) {
	for _, tc := range []struct {
		line, want string
	}{
		{"10,20,30\n", "10"},
		{"10,20,30", "10"},
		{"abc\r\n", "abc"},
		{"abc,def\r\n", "abc"},
		{"solo\n", "solo"},
		{",20\n", ""},
		{"\n", ""},
		{"\r\n", ""},
		{"trailing\r", "trailing\r"},
	} {
		if got := Key([]byte(tc.line), ','); got != tc.want {
			t.Errorf("Key(%q) = %q, expected %q", tc.line, got, tc.want)
		}
	}
	if got := Key([]byte("a|b\n"), '|'); got != "a" {
		t.Errorf("pipe delimiter: got %q", got)
	}
}

func TestIndexOffsets(t *testing.T) {
	src := "10,20,30\n\n,skip\r\n20,40,60\r\nlast"
	var r recorder
	s, err := (&Indexer{Logger: logging.Discard()}).Index(strings.NewReader(src), &r)
	if err != nil {
		t.Fatal(err)
	}
	want := []index.Record{
		index.NewRecord("10", 0, 9),
		index.NewRecord("20", 17, 10),
		index.NewRecord("last", 27, 4),
	}
	if len(r.recs) != len(want) {
		t.Fatalf("expected %d records, got %v", len(want), r.recs)
	}
	for i := range want {
		if r.recs[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], r.recs[i])
		}
	}
	if s.Lines != 5 || s.Indexed != 3 || s.Skipped != 2 || s.Bytes != uint64(len(src)) {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestIndexErrors(t *testing.T) {
	if err := IndexSource(failingReader{}, &recorder{}); !errors.Is(err, errs.ErrIO) {
		t.Fatalf("read failure: expected i/o error, got %v", err)
	}

	boom := errors.New("boom")
	err := IndexSource(strings.NewReader("a\nb\n"), &recorder{fail: boom})
	if !errors.Is(err, boom) || errors.Is(err, errs.ErrIO) {
		t.Fatalf("insert failure should pass through unchanged, got %v", err)
	}

	if err := IndexSource(strings.NewReader(""), &recorder{}); err != nil {
		t.Fatalf("empty source: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")
	if err := os.WriteFile(path, []byte("10,20,30\n20,40,60\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tr, err := btree.Create(filepath.Join(t.TempDir(), "idx"), 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if err := IndexSource(f, tr); err != nil {
		t.Fatal(err)
	}

	for key, line := range map[string]string{"10": "10,20,30\n", "20": "20,40,60\n"} {
		r, ok, err := tr.Search(key)
		if err != nil || !ok {
			t.Fatalf("search %s: %v %v", key, ok, err)
		}
		got, err := ReadRange(f, r.Location)
		if err != nil {
			t.Fatalf("read %s: %v", r.Location, err)
		}
		if got != line {
			t.Fatalf("key %s: expected %q, got %q", key, line, got)
		}
	}
	if _, ok, _ := tr.Search("99"); ok {
		t.Fatal("99 should not be found")
	}
}

func TestReadRangeErrors(t *testing.T) {
	r := bytes.NewReader([]byte("ok\n\xff\xfe\n"))

	if _, err := ReadRange(r, index.Location{Offset: 1, Length: 10}); !errors.Is(err, errs.ErrIO) {
		t.Fatalf("short read: expected i/o error, got %v", err)
	}
	if _, err := ReadRange(r, index.Location{Offset: 3, Length: 3}); !errors.Is(err, errs.ErrDecode) {
		t.Fatalf("invalid utf-8: expected decode error, got %v", err)
	}
	for _, length := range []uint64{1 << 30, 1 << 62, math.MaxUint64} {
		if _, err := ReadRange(r, index.Location{Offset: 0, Length: length}); !errors.Is(err, errs.ErrIO) {
			t.Fatalf("length %d past the end: expected i/o error, got %v", length, err)
		}
	}
	got, err := ReadRange(r, index.Location{Offset: 0, Length: 0})
	if err != nil || got != "" {
		t.Fatalf("empty range: %q %v", got, err)
	}
}

func TestScanAgreesWithIndex(t *testing.T) {
	var sb strings.Builder
	for _, k := range []string{"m", "c", "x", "c", "a", "", "q"} {
		sb.WriteString(k + ",payload\n")
	}
	src := sb.String()

	tr, err := btree.New(storage.NewMemory(), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := IndexSource(strings.NewReader(src), tr); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"m", "x", "a", "q", "zz", ""} {
		want, wantOK, err := tr.Search(k)
		if err != nil {
			t.Fatal(err)
		}
		got, ok, err := Scan(strings.NewReader(src), k, ',')
		if err != nil {
			t.Fatal(err)
		}
		if ok != wantOK || got != want {
			t.Errorf("key %q: scan %+v %v, index %+v %v", k, got, ok, want, wantOK)
		}
	}
	// With duplicates the scan returns the first line.
	got, ok, _ := Scan(strings.NewReader(src), "c", 0)
	if !ok || got.Location.Offset != 10 {
		t.Fatalf("expected first c at offset 10, got %+v %v", got, ok)
	}
}
