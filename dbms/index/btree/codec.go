package btree

import (
	"encoding/binary"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/storage"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// Unit layout (node and metadata alike):
//
//	[0]      magic ('N' node, 'M' metadata)
//	[1]      format version
//	[2..n-8] body, varint framed
//	[n-8..n] xxhash64 of bytes [0..n-8), little endian
//
// Node body:
//
//	flags byte (bit 0: leaf)
//	id            string
//	nrecords      uvarint
//	  value       string
//	  offset      uvarint
//	  length      uvarint
//	nchildren     uvarint
//	  child id    string
//
// Metadata body:
//
//	order uvarint, root string, location string, backend string
//
// Strings are a uvarint length followed by the bytes.
const (
	nodeMagic     = byte('N')
	metaMagic     = byte('M')
	formatVersion = byte(1)

	flagLeaf = byte(1 << 0)

	checksumSize = 8
	headerSize   = 2
)

type meta struct {
	order    int
	root     storage.NodeID
	location string
	backend  storage.Kind
}

func encodeNode(n *Node) []byte {
	buf := make([]byte, 0, 64+len(n.Records)*24+len(n.Children)*40)
	buf = append(buf, nodeMagic, formatVersion)

	var flags byte
	if n.Leaf {
		flags |= flagLeaf
	}
	buf = append(buf, flags)
	buf = appendString(buf, string(n.ID))

	buf = binary.AppendUvarint(buf, uint64(len(n.Records)))
	for _, r := range n.Records {
		buf = appendString(buf, r.Value)
		buf = binary.AppendUvarint(buf, r.Location.Offset)
		buf = binary.AppendUvarint(buf, r.Location.Length)
	}
	buf = binary.AppendUvarint(buf, uint64(len(n.Children)))
	for _, c := range n.Children {
		buf = appendString(buf, string(c))
	}
	return seal(buf)
}

// decodeNode rebuilds the node stored under id. Any framing, checksum or
// shape problem is reported as a corrupt index.
func decodeNode(id storage.NodeID, unit []byte) (*Node, error) {
	d, err := open(unit, nodeMagic)
	if err != nil {
		return nil, errs.Corrupt(err, "node %s", id)
	}

	flags := d.byte()
	stored := storage.NodeID(d.string())

	nrec := d.count(3)
	n := &Node{
		ID:      stored,
		Leaf:    flags&flagLeaf != 0,
		Records: make([]index.Record, 0, nrec),
	}
	for i := 0; i < nrec; i++ {
		value := d.string()
		offset := d.uvarint()
		length := d.uvarint()
		n.Records = append(n.Records, index.NewRecord(value, offset, length))
	}
	nchild := d.count(1)
	n.Children = make([]storage.NodeID, 0, nchild)
	for i := 0; i < nchild; i++ {
		n.Children = append(n.Children, storage.NodeID(d.string()))
	}
	if err := d.finish(); err != nil {
		return nil, errs.Corrupt(err, "node %s", id)
	}

	if stored != id {
		return nil, errs.Corruptf("node %s: unit belongs to node %s", id, stored)
	}
	if n.Leaf && len(n.Children) != 0 {
		return nil, errs.Corruptf("node %s: leaf with %d children", id, len(n.Children))
	}
	if !n.Leaf && len(n.Children) != len(n.Records)+1 {
		return nil, errs.Corruptf("node %s: %d records but %d children", id, len(n.Records), len(n.Children))
	}
	return n, nil
}

func encodeMeta(m meta) []byte {
	buf := make([]byte, 0, 64+len(m.location))
	buf = append(buf, metaMagic, formatVersion)
	buf = binary.AppendUvarint(buf, uint64(m.order))
	buf = appendString(buf, string(m.root))
	buf = appendString(buf, m.location)
	buf = appendString(buf, string(m.backend))
	return seal(buf)
}

func decodeMeta(unit []byte) (meta, error) {
	d, err := open(unit, metaMagic)
	if err != nil {
		return meta{}, errs.Corrupt(err, "metadata")
	}
	order := d.uvarint()
	m := meta{
		root:     storage.NodeID(d.string()),
		location: d.string(),
		backend:  storage.Kind(d.string()),
	}
	if err := d.finish(); err != nil {
		return meta{}, errs.Corrupt(err, "metadata")
	}
	if order < 2 || order > 1<<20 {
		return meta{}, errs.Corruptf("metadata: order %d out of range", order)
	}
	if m.root == "" {
		return meta{}, errs.Corruptf("metadata: empty root id")
	}
	m.order = int(order)
	return m, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func seal(buf []byte) []byte {
	return binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(buf))
}

// open checks framing and checksum and returns a decoder over the body.
func open(unit []byte, magic byte) (*decoder, error) {
	if len(unit) < headerSize+checksumSize {
		return nil, errors.Newf("unit of %d bytes is too short", len(unit))
	}
	body, sum := unit[:len(unit)-checksumSize], unit[len(unit)-checksumSize:]
	if got, want := xxhash.Sum64(body), binary.LittleEndian.Uint64(sum); got != want {
		return nil, errors.Newf("checksum mismatch: %016x != %016x", got, want)
	}
	if body[0] != magic {
		return nil, errors.Newf("magic %q, expected %q", body[0], magic)
	}
	if body[1] != formatVersion {
		return nil, errors.Newf("format version %d not supported", body[1])
	}
	return &decoder{buf: body, off: headerSize}, nil
}

// decoder reads varint framed fields; the first failure sticks.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = errors.Newf(format, args...)
	}
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	if d.off >= len(d.buf) {
		d.fail("truncated at byte %d", d.off)
		return 0
	}
	b := d.buf[d.off]
	d.off++
	return b
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.fail("bad varint at byte %d", d.off)
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) string() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if n > uint64(len(d.buf)-d.off) {
		d.fail("string of %d bytes overruns unit at byte %d", n, d.off)
		return ""
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s
}

// count reads an element count, rejecting counts the remaining bytes could
// not hold given each element takes at least minSize bytes.
func (d *decoder) count(minSize int) int {
	n := d.uvarint()
	if d.err != nil {
		return 0
	}
	if n > uint64((len(d.buf)-d.off)/minSize) {
		d.fail("count %d overruns unit at byte %d", n, d.off)
		return 0
	}
	return int(n)
}

func (d *decoder) finish() error {
	if d.err == nil && d.off != len(d.buf) {
		d.fail("%d trailing bytes", len(d.buf)-d.off)
	}
	return d.err
}
