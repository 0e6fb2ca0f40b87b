package btree

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWriteDOT(t *testing.T) {
	tr, _ := memTree(t, 2)
	for _, v := range []string{"a", "b", "c", "d", "<e>"} {
		tr.Insert(rec(v))
	}

	var buf bytes.Buffer
	if err := tr.WriteDOT(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "digraph BTree {") || !strings.HasSuffix(out, "}\n") {
		t.Fatalf("not a digraph:\n%s", out)
	}
	s, _ := tr.Stats()
	if got := strings.Count(out, "[label="); got != s.Nodes {
		t.Fatalf("expected %d nodes, got %d", s.Nodes, got)
	}
	if got := strings.Count(out, "->"); got != s.Nodes-1 {
		t.Fatalf("expected %d edges, got %d", s.Nodes-1, got)
	}
	if strings.Contains(out, "<e>") || !strings.Contains(out, "&lt;e&gt;") {
		t.Fatal("record values must be escaped")
	}
}

func TestWriteDOTTruncatesOnRunes(t *testing.T) {
	tr, _ := memTree(t, 2)
	long := strings.Repeat("é", 20)
	tr.Insert(rec(long))
	tr.Insert(rec("short"))

	var buf bytes.Buffer
	if err := tr.WriteDOT(&buf); err != nil {
		t.Fatal(err)
	}
	if !utf8.Valid(buf.Bytes()) {
		t.Fatal("output is not valid UTF-8")
	}
	out := buf.String()
	if !strings.Contains(out, strings.Repeat("é", 12)+"..") {
		t.Fatalf("expected a 12 rune preview:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("é", 13)) {
		t.Fatal("preview longer than 12 runes")
	}
	if !strings.Contains(out, "short") || strings.Contains(out, "short..") {
		t.Fatal("short values must be rendered whole")
	}
}
