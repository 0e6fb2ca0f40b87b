package storage

import (
	"encoding/binary"
	"strconv"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/pager"
	"github.com/cockroachdb/errors"
)

// ErrUnitTooLarge is returned by the pages backend when an encoded node does
// not fit in one page; lower the order or pick another backend.
var ErrUnitTooLarge = errors.New("unit larger than a page")

const (
	metaPage    = uint64(1)
	unitHeader  = 4 // uint32 payload length
	maxPageUnit = pager.PageSize - unitHeader
)

// PageStore maps every node onto one page of a pager file. Page 1 holds the
// metadata unit; node IDs are decimal page numbers.
type PageStore struct {
	pg *pager.Pager
}

func CreatePages(path string, opts *Options) (*PageStore, error) {
	pg, err := pager.Create(path, opts.pageCache(), opts.sync())
	if err != nil {
		return nil, err
	}
	id, err := pg.Allocate()
	if err != nil {
		pg.Close()
		return nil, errs.StorageInit(err, "storage: reserve metadata page")
	}
	if id != metaPage {
		pg.Close()
		return nil, errs.StorageInitf("storage: metadata landed on page %d", id)
	}
	return &PageStore{pg: pg}, nil
}

func OpenPages(path string, opts *Options) (*PageStore, error) {
	pg, err := pager.Open(path, opts.pageCache(), opts.sync())
	if err != nil {
		return nil, err
	}
	if pg.PageCount() <= metaPage {
		pg.Close()
		return nil, errs.Corruptf("storage: %s has no metadata page", path)
	}
	return &PageStore{pg: pg}, nil
}

func (s *PageStore) Kind() Kind { return KindPages }

func (s *PageStore) Allocate() (NodeID, error) {
	id, err := s.pg.Allocate()
	if err != nil {
		return "", err
	}
	return NodeID(strconv.FormatUint(id, 10)), nil
}

func (s *PageStore) ReadNode(id NodeID) ([]byte, error) {
	pid, err := s.pageID(id)
	if err != nil {
		return nil, err
	}
	return s.read(pid, "node "+string(id))
}

func (s *PageStore) WriteNode(id NodeID, unit []byte) error {
	pid, err := s.pageID(id)
	if err != nil {
		return err
	}
	return s.write(pid, unit, "node "+string(id))
}

func (s *PageStore) ReadMeta() ([]byte, error) {
	return s.read(metaPage, "metadata")
}

func (s *PageStore) WriteMeta(unit []byte) error {
	return s.write(metaPage, unit, "metadata")
}

func (s *PageStore) Close() error { return s.pg.Close() }

func (s *PageStore) pageID(id NodeID) (uint64, error) {
	pid, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil || pid <= metaPage {
		return 0, errs.Corruptf("storage: invalid node id %q", id)
	}
	return pid, nil
}

func (s *PageStore) read(pid uint64, what string) ([]byte, error) {
	p, err := s.pg.Read(pid)
	if err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(p[:unitHeader])
	if n == 0 {
		return nil, errs.Corruptf("storage: %s missing", what)
	}
	if n > maxPageUnit {
		return nil, errs.Corruptf("storage: %s claims %d bytes", what, n)
	}
	return clone(p[unitHeader : unitHeader+n]), nil
}

func (s *PageStore) write(pid uint64, unit []byte, what string) error {
	if len(unit) > maxPageUnit {
		return errs.IO(errors.Wrapf(ErrUnitTooLarge, "%s is %d bytes, page holds %d", what, len(unit), maxPageUnit),
			"storage: write %s", what)
	}
	p := new(pager.Page)
	binary.LittleEndian.PutUint32(p[:unitHeader], uint32(len(unit)))
	copy(p[unitHeader:], unit)
	return s.pg.Write(pid, p)
}
