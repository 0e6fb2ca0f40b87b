package pager

import (
	"encoding/binary"
	"os"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/dgraph-io/ristretto/v2"
)

const (
	PageSize = 4096 // one OS page
)

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// Pager manages a file of fixed-size pages and caches frequently used ones.
// Page 0 holds the pager header; callers own pages 1 and up.
type Pager struct {
	file      *os.File
	cache     *ristretto.Cache[uint64, *Page]
	pageCount uint64 // total number of pages ever allocated
	sync      bool
}

// Create makes a new page file at path. The file must not exist.
// cacheSize is the number of pages the cache may hold.
func Create(path string, cacheSize int, sync bool) (*Pager, error) {
	cache, err := newPageCache(cacheSize)
	if err != nil {
		return nil, errs.StorageInit(err, "pager: page cache")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		cache.Close()
		return nil, errs.StorageInit(err, "pager create %s", path)
	}
	p := &Pager{file: f, cache: cache, pageCount: 1, sync: sync}
	if err := p.writePageCount(); err != nil {
		p.release()
		return nil, err
	}
	return p, nil
}

// Open opens an existing page file.
func Open(path string, cacheSize int, sync bool) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errs.Corrupt(err, "pager open %s", path)
	}
	cache, err := newPageCache(cacheSize)
	if err != nil {
		f.Close()
		return nil, errs.StorageInit(err, "pager: page cache")
	}
	p := &Pager{file: f, cache: cache, sync: sync}

	pg, err := p.readPageFromDisk(0)
	if err != nil {
		p.release()
		return nil, errs.Corrupt(err, "pager: read header")
	}
	p.pageCount = binary.LittleEndian.Uint64(pg[:8])
	if p.pageCount == 0 {
		p.release()
		return nil, errs.Corruptf("pager: header of %s records no pages", path)
	}
	return p, nil
}

// Allocate reserves a new page on disk and returns its page ID.
func (p *Pager) Allocate() (uint64, error) {
	id := p.pageCount
	p.pageCount++

	// Write an empty page to extend the file.
	var blank Page
	if err := p.writePageToDisk(id, &blank); err != nil {
		return 0, err
	}
	if err := p.writePageCount(); err != nil {
		return 0, err
	}
	return id, nil
}

// Read returns the page with the given ID, from cache or disk.
// The returned page is shared with the cache and must not be modified.
func (p *Pager) Read(id uint64) (*Page, error) {
	if id == 0 || id >= p.pageCount {
		return nil, errs.Corruptf("pager: page %d not allocated (count %d)", id, p.pageCount)
	}
	if pg, ok := p.cache.Get(id); ok {
		return pg, nil
	}
	pg, err := p.readPageFromDisk(id)
	if err != nil {
		return nil, err
	}
	p.cache.Set(id, pg, 1)
	return pg, nil
}

// Write writes a page back to disk and updates the cache. The pager keeps
// pg; the caller must not modify it afterwards.
func (p *Pager) Write(id uint64, pg *Page) error {
	if id == 0 || id >= p.pageCount {
		return errs.IOf("pager: write to unallocated page %d", id)
	}
	// A read miss may still have the old page queued. The delete lands
	// behind it, so the new page cannot be mistaken for a stale update.
	p.cache.Del(id)
	if err := p.writePageToDisk(id, pg); err != nil {
		return err
	}
	p.cache.Set(id, pg, 1)
	p.cache.Wait()
	return nil
}

// Close flushes and closes the underlying file.
func (p *Pager) Close() error {
	if err := p.file.Sync(); err != nil {
		p.release()
		return errs.IO(err, "pager: sync before close")
	}
	p.cache.Close()
	return p.file.Close()
}

// PageCount returns the total number of allocated pages.
func (p *Pager) PageCount() uint64 {
	return p.pageCount
}

// --- internal helpers ---

// newPageCache holds up to size pages, each costing 1.
func newPageCache(size int) (*ristretto.Cache[uint64, *Page], error) {
	size = max(size, 1)
	return ristretto.NewCache(&ristretto.Config[uint64, *Page]{
		NumCounters:        int64(max(size*10, 100)),
		MaxCost:            int64(size),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
}

func (p *Pager) release() {
	p.cache.Close()
	p.file.Close()
}

func (p *Pager) offset(id uint64) int64 {
	return int64(id) * PageSize
}

func (p *Pager) readPageFromDisk(id uint64) (*Page, error) {
	pg := new(Page)
	_, err := p.file.ReadAt(pg[:], p.offset(id))
	if err != nil {
		return nil, errs.IO(err, "pager: read page %d", id)
	}
	return pg, nil
}

func (p *Pager) writePageToDisk(id uint64, pg *Page) error {
	if _, err := p.file.WriteAt(pg[:], p.offset(id)); err != nil {
		return errs.IO(err, "pager: write page %d", id)
	}
	if p.sync {
		if err := p.file.Sync(); err != nil {
			return errs.IO(err, "pager: sync page %d", id)
		}
	}
	return nil
}

func (p *Pager) writePageCount() error {
	var hdr Page
	binary.LittleEndian.PutUint64(hdr[:8], p.pageCount)
	return p.writePageToDisk(0, &hdr)
}
