// Package source connects a delimited text file to an index: it feeds every
// line's key and byte range into a tree, reads a line back from a recorded
// range, and provides the linear scan the index is measured against.
package source

import (
	"io"

	"github.com/btree-query-bench/lineindex/dbms/index"
	"github.com/btree-query-bench/lineindex/dbms/logging"
)

// Inserter receives the records produced by an Indexer.
type Inserter interface {
	Insert(rec index.Record) error
}

// Stats counts the lines seen by one Index run.
type Stats struct {
	Lines   int
	Indexed int
	// Skipped lines had an empty key; their bytes still count towards the
	// offsets of later lines.
	Skipped int
	Bytes   uint64
}

type Indexer struct {
	Delimiter byte
	Logger    *logging.Logger
}

// IndexSource indexes r into t by its first comma separated field.
func IndexSource(r io.Reader, t Inserter) error {
	_, err := (&Indexer{}).Index(r, t)
	return err
}

// Index reads r to the end and inserts one record per line with a
// non-empty key. Read failures are reported as errs.ErrIO; insertion
// failures are returned unchanged.
func (ix *Indexer) Index(r io.Reader, t Inserter) (Stats, error) {
	delim := ix.Delimiter
	if delim == 0 {
		delim = DefaultDelimiter
	}
	log := ix.Logger
	if log == nil {
		log = logging.Discard()
	}

	var s Stats
	err := eachLine(r, func(line []byte, offset uint64) (bool, error) {
		s.Lines++
		s.Bytes += uint64(len(line))
		key := Key(line, delim)
		if key == "" {
			s.Skipped++
			return true, nil
		}
		if err := t.Insert(index.NewRecord(key, offset, uint64(len(line)))); err != nil {
			return false, err
		}
		s.Indexed++
		return true, nil
	})
	if err != nil {
		return s, err
	}
	if s.Skipped > 0 {
		log.Infof("skipped %d of %d lines with an empty key", s.Skipped, s.Lines)
	}
	log.Infof("indexed %d lines, %d bytes", s.Indexed, s.Bytes)
	return s, nil
}
