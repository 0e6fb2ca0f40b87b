package btree

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/storage"
)

// WriteDOT renders the tree as a Graphviz digraph, one table per node.
// Render it with: dot -Tpng tree.dot -o tree.png
func (t *Tree) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph BTree {")
	fmt.Fprintln(bw, "  graph [ranksep=0.8, nodesep=0.5, bgcolor=\"#ffffff\", rankdir=TB];")
	fmt.Fprintln(bw, "  node [shape=none, fontname=\"Helvetica\", fontsize=10];")
	fmt.Fprintln(bw, "  edge [arrowsize=0.8, color=\"#444444\"];")

	names := make(map[storage.NodeID]string)
	name := func(id storage.NodeID) string {
		if n, ok := names[id]; ok {
			return n
		}
		n := fmt.Sprintf("node%d", len(names))
		names[id] = n
		return n
	}

	capacity := float64(maxRecords(t.order))
	err := t.visit(func(n *Node, depth int) error {
		fill := float64(len(n.Records)) / capacity * 100
		kind, color := "INTERNAL", "#DAE8FC"
		if n.Leaf {
			kind, color = "LEAF", "#D5E8D4"
		}

		var sb strings.Builder
		cols := 2*len(n.Records) + 1
		if n.Leaf {
			cols = max(len(n.Records), 1)
		}
		sb.WriteString(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`)
		fmt.Fprintf(&sb, `<TR><TD COLSPAN="%d" BGCOLOR="%s"><B>%s</B><BR/><FONT POINT-SIZE="8">%s depth %d, fill %.1f%%</FONT></TD></TR><TR>`,
			cols, color, html.EscapeString(shortID(n.ID)), kind, depth, fill)
		for i, r := range n.Records {
			if !n.Leaf {
				fmt.Fprintf(&sb, `<TD PORT="f%d" BGCOLOR="#E1F5FE"> </TD>`, i)
			}
			fmt.Fprintf(&sb, `<TD BGCOLOR="#FFFFFF"><B>%s</B><BR/><FONT POINT-SIZE="7" COLOR="#666666">%s</FONT></TD>`,
				html.EscapeString(preview(r.Value)), r.Location)
		}
		if !n.Leaf {
			fmt.Fprintf(&sb, `<TD PORT="f%d" BGCOLOR="#E1F5FE"> </TD>`, len(n.Records))
		} else if len(n.Records) == 0 {
			sb.WriteString(`<TD BGCOLOR="#F5F5F5">empty</TD>`)
		}
		sb.WriteString(`</TR></TABLE>>`)

		self := name(n.ID)
		fmt.Fprintf(bw, "  %s [label=%s];\n", self, sb.String())
		for i, c := range n.Children {
			fmt.Fprintf(bw, "  %s:f%d -> %s;\n", self, i, name(c))
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(bw, "}")
	if err := bw.Flush(); err != nil {
		return errs.IO(err, "btree: write dot")
	}
	return nil
}

func shortID(id storage.NodeID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// preview shortens v to 12 runes.
func preview(v string) string {
	if utf8.RuneCountInString(v) > 12 {
		return string([]rune(v)[:12]) + ".."
	}
	return v
}
